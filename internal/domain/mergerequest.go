package domain

import (
	"sort"
)

// MergeRequestInfo represents one proposed change under review.
// Treat it as a value object: it is never mutated once built.
type MergeRequestInfo struct {
	ID           int // Global identifier, unique and stable across calls
	IID          int // Project-scoped identifier shown as !IID
	Title        string
	SourceBranch string
	TargetBranch string
	State        string // "opened", "closed", "merged"
	WebURL       string

	// ChangedFiles holds the union of added, modified, renamed and deleted paths.
	// Set semantics: duplicates collapse and order carries no meaning.
	// Never nil; an empty slice means the merge request touches nothing.
	ChangedFiles []string
}

// NewMergeRequestInfo builds a MergeRequestInfo with a normalized file set
// (non-nil, de-duplicated, sorted).
func NewMergeRequestInfo(id, iid int, title, sourceBranch, targetBranch string, files []string) MergeRequestInfo {
	return MergeRequestInfo{
		ID:           id,
		IID:          iid,
		Title:        title,
		SourceBranch: sourceBranch,
		TargetBranch: targetBranch,
		State:        StateOpened,
		ChangedFiles: UniqueSorted(files),
	}
}

// WithChangedFiles returns a copy of the merge request carrying the given file set.
func (m MergeRequestInfo) WithChangedFiles(files []string) MergeRequestInfo {
	m.ChangedFiles = UniqueSorted(files)
	return m
}

// UniqueSorted returns a new sorted slice without duplicates and empty strings.
// The result is never nil.
func UniqueSorted(files []string) []string {
	seen := make(map[string]struct{}, len(files))
	result := make([]string, 0, len(files))
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		result = append(result, f)
	}
	sort.Strings(result)
	return result
}

// Note represents a comment posted on a merge request.
type Note struct {
	ID     int
	Body   string
	System bool // true for notes generated by GitLab itself
}
