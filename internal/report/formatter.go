// Package report renders detected conflicts as human-readable text suitable for
// terminal output and merge request notes.
package report

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/vilaca/mr-conflict-detector/internal/domain"
)

const (
	// DefaultMaxFilesListed caps the per-conflict file list in a note.
	DefaultMaxFilesListed = 10

	// NoConflictsMessage is returned by FormatConflicts for an empty list.
	NoConflictsMessage = "No conflicts detected."
	// AllResolvedMessage ends a note when no conflict remains.
	AllResolvedMessage = "All conflicts with other merge requests have been resolved. :tada:"

	noteHeader     = "## :warning: Merge request conflict report"
	noteIntro      = "This merge request modifies files that are also modified by other open merge requests."
	resolvedHeader = "### Resolved conflicts"
	closingLine    = "Please coordinate with the authors of the merge requests above before merging, " +
		"and rebase once the other changes land."
)

// Formatter renders conflicts.
type Formatter interface {
	FormatConflict(conflict domain.MergeRequestConflict) string
	FormatConflicts(conflicts []domain.MergeRequestConflict) string
	FormatConflictNote(conflicts []domain.MergeRequestConflict, currentMRID int, resolved []domain.MergeRequestInfo) string
}

// Options configures a MarkdownFormatter. Zero values fall back to defaults.
type Options struct {
	MaxTitleLength int
	MaxFilesListed int
	Logger         *slog.Logger
}

// MarkdownFormatter renders GitLab-flavoured markdown.
// It holds only immutable configuration and is safe for concurrent use.
type MarkdownFormatter struct {
	maxTitleLength int
	maxFilesListed int
	logger         *slog.Logger
}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter(opts Options) *MarkdownFormatter {
	f := &MarkdownFormatter{
		maxTitleLength: opts.MaxTitleLength,
		maxFilesListed: opts.MaxFilesListed,
		logger:         opts.Logger,
	}
	if f.maxTitleLength <= 0 {
		f.maxTitleLength = DefaultMaxTitleLength
	}
	if f.maxFilesListed <= 0 {
		f.maxFilesListed = DefaultMaxFilesListed
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// FormatConflict renders a single conflict as a title line followed by a
// description listing every conflicting file.
func (f *MarkdownFormatter) FormatConflict(conflict domain.MergeRequestConflict) string {
	return fmt.Sprintf("%s <-> %s\n  %s",
		f.label(conflict.FirstMR),
		f.label(conflict.SecondMR),
		describeFiles(conflict))
}

// FormatConflicts renders each conflict on its own block, or NoConflictsMessage.
func (f *MarkdownFormatter) FormatConflicts(conflicts []domain.MergeRequestConflict) string {
	if len(conflicts) == 0 {
		return NoConflictsMessage
	}

	lines := make([]string, len(conflicts))
	for i, c := range conflicts {
		lines[i] = f.FormatConflict(c)
	}
	return strings.Join(lines, "\n")
}

// FormatConflictNote builds the note posted on the merge request currentMRID.
// Only conflicts involving currentMRID are rendered. resolved lists the
// merge requests that conflicted previously but no longer do.
func (f *MarkdownFormatter) FormatConflictNote(conflicts []domain.MergeRequestConflict, currentMRID int, resolved []domain.MergeRequestInfo) string {
	var sb strings.Builder
	sb.WriteString(noteHeader)
	sb.WriteString("\n\n")

	if len(resolved) > 0 {
		f.writeResolved(&sb, resolved)
	}

	var relevant []domain.MergeRequestConflict
	for _, c := range conflicts {
		if c.Involves(currentMRID) {
			relevant = append(relevant, c)
		}
	}

	if len(relevant) == 0 {
		sb.WriteString(AllResolvedMessage)
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString(noteIntro)
	sb.WriteString("\n\n")
	for _, c := range relevant {
		other, _ := c.Other(currentMRID)
		f.writeConflict(&sb, c, other)
	}

	sb.WriteString(closingLine)
	sb.WriteString("\n")
	return sb.String()
}

func (f *MarkdownFormatter) writeResolved(sb *strings.Builder, resolved []domain.MergeRequestInfo) {
	var lines []string
	for _, mr := range resolved {
		cause, ok := resolutionCause(mr.State)
		if !ok {
			f.logger.Warn("skipping resolved conflict with unrecognized state",
				"mr_id", mr.ID,
				"mr_iid", mr.IID,
				"state", mr.State)
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", f.label(mr), cause))
	}
	if len(lines) == 0 {
		return
	}

	sb.WriteString(resolvedHeader)
	sb.WriteString("\n\n")
	sb.WriteString(strings.Join(lines, "\n"))
	sb.WriteString("\n\n")
}

func (f *MarkdownFormatter) writeConflict(sb *strings.Builder, c domain.MergeRequestConflict, other domain.MergeRequestInfo) {
	fmt.Fprintf(sb, "### Conflict with %s\n\n", f.link(other))
	fmt.Fprintf(sb, "- **Source branch:** `%s`\n", other.SourceBranch)
	fmt.Fprintf(sb, "- **Target branch:** `%s`\n", other.TargetBranch)
	fmt.Fprintf(sb, "- **Reason:** %s\n", c.Reason)
	fmt.Fprintf(sb, "- **Conflicting files (%d):**\n", len(c.ConflictingFiles))

	listed := c.ConflictingFiles
	if len(listed) > f.maxFilesListed {
		listed = listed[:f.maxFilesListed]
	}
	for i, file := range listed {
		fmt.Fprintf(sb, "  %d. `%s`\n", i+1, file)
	}
	if remaining := len(c.ConflictingFiles) - len(listed); remaining > 0 {
		fmt.Fprintf(sb, "  - ...and %d more %s\n", remaining, plural(remaining, "file", "files"))
	}
	sb.WriteString("\n")
}

// label renders "!IID Title" with the title bounded.
func (f *MarkdownFormatter) label(mr domain.MergeRequestInfo) string {
	return fmt.Sprintf("!%d %s", mr.IID, TruncateTitle(mr.Title, f.maxTitleLength))
}

// link renders the label as a markdown link when the web URL is known.
func (f *MarkdownFormatter) link(mr domain.MergeRequestInfo) string {
	if mr.WebURL == "" {
		return f.label(mr)
	}
	return fmt.Sprintf("[%s](%s)", f.label(mr), mr.WebURL)
}

// resolutionCause maps a lifecycle state to the sentence explaining why the
// conflict is gone.
func resolutionCause(state string) (string, bool) {
	switch state {
	case domain.StateMerged:
		return "was merged, rebase this merge request onto the target branch to pick up its changes.", true
	case domain.StateClosed:
		return "was closed without being merged.", true
	case domain.StateOpened:
		return "no longer modifies the same files.", true
	default:
		return "", false
	}
}

func describeFiles(c domain.MergeRequestConflict) string {
	files := c.ConflictingFiles
	if c.IsSingleFile() {
		return fmt.Sprintf("conflict in modification of `%s`", files[0])
	}

	quoted := make([]string, len(files))
	for i, file := range files {
		quoted[i] = "`" + file + "`"
	}
	return fmt.Sprintf("conflicts in modification of `%d` files: %s", len(files), strings.Join(quoted, ", "))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
