// Package detector finds merge requests whose changed files overlap.
package detector

import (
	"fmt"
	"sort"

	"github.com/vilaca/mr-conflict-detector/internal/domain"
	"github.com/vilaca/mr-conflict-detector/internal/filter"
)

// Detector defines the conflict detection contract.
type Detector interface {
	DetectConflicts(mergeRequests []*domain.MergeRequestInfo) ([]domain.MergeRequestConflict, error)
}

// ConflictDetector compares every pair of merge requests and reports the pairs
// whose effective file sets intersect. It holds only its path filter and is safe
// for concurrent use.
type ConflictDetector struct {
	filter filter.PathFilter
}

// NewConflictDetector creates a detector. A nil filter ignores nothing.
func NewConflictDetector(pathFilter filter.PathFilter) *ConflictDetector {
	if pathFilter == nil {
		pathFilter = filter.None()
	}
	return &ConflictDetector{filter: pathFilter}
}

// candidate is a merge request retained for comparison with its effective file set.
type candidate struct {
	mr    *domain.MergeRequestInfo
	files map[string]struct{}
}

// DetectConflicts returns one conflict per colliding pair. Pairs are reported in
// input order: the outer index i ascends, and for each i the inner index j > i
// ascends. FirstMR is always the merge request that appears earlier in the input.
func (d *ConflictDetector) DetectConflicts(mergeRequests []*domain.MergeRequestInfo) ([]domain.MergeRequestConflict, error) {
	if err := validate(mergeRequests); err != nil {
		return nil, err
	}

	candidates := d.effectiveFileSets(mergeRequests)

	// file -> indices of candidates touching it, ascending
	index := make(map[string][]int)
	for i, c := range candidates {
		for f := range c.files {
			index[f] = append(index[f], i)
		}
	}

	conflicts := []domain.MergeRequestConflict{}
	for i, a := range candidates {
		for _, j := range partners(a, i, index) {
			b := candidates[j]
			overlap := intersect(a.files, b.files)
			if len(overlap) == 0 {
				continue
			}
			conflicts = append(conflicts, newConflict(*a.mr, *b.mr, overlap))
		}
	}

	return conflicts, nil
}

// validate rejects contract violations before any work is done.
func validate(mergeRequests []*domain.MergeRequestInfo) error {
	if mergeRequests == nil {
		return fmt.Errorf("%w: merge request collection is nil", domain.ErrInvalidInput)
	}
	for i, mr := range mergeRequests {
		if mr == nil {
			return fmt.Errorf("%w: merge request at index %d is nil", domain.ErrInvalidInput, i)
		}
		if mr.ChangedFiles == nil {
			return fmt.Errorf("%w: merge request %d has a nil changed file set", domain.ErrInvalidInput, mr.ID)
		}
	}
	return nil
}

// effectiveFileSets filters each merge request once and drops repeated IDs,
// keeping the first occurrence.
func (d *ConflictDetector) effectiveFileSets(mergeRequests []*domain.MergeRequestInfo) []candidate {
	seen := make(map[int]struct{}, len(mergeRequests))
	candidates := make([]candidate, 0, len(mergeRequests))

	for _, mr := range mergeRequests {
		if _, dup := seen[mr.ID]; dup {
			continue
		}
		seen[mr.ID] = struct{}{}

		files := make(map[string]struct{}, len(mr.ChangedFiles))
		for _, f := range filter.Apply(d.filter, mr.ChangedFiles) {
			if f == "" {
				continue
			}
			files[f] = struct{}{}
		}
		candidates = append(candidates, candidate{mr: mr, files: files})
	}

	return candidates
}

// partners returns the ascending indices j > i of candidates sharing at least
// one file with candidate i.
func partners(c candidate, i int, index map[string][]int) []int {
	set := make(map[int]struct{})
	for f := range c.files {
		for _, j := range index[f] {
			if j > i {
				set[j] = struct{}{}
			}
		}
	}

	result := make([]int, 0, len(set))
	for j := range set {
		result = append(result, j)
	}
	sort.Ints(result)
	return result
}

// intersect returns the sorted paths present in both sets.
func intersect(a, b map[string]struct{}) []string {
	if len(b) < len(a) {
		a, b = b, a
	}
	var overlap []string
	for f := range a {
		if _, ok := b[f]; ok {
			overlap = append(overlap, f)
		}
	}
	sort.Strings(overlap)
	return overlap
}

func newConflict(first, second domain.MergeRequestInfo, files []string) domain.MergeRequestConflict {
	// Results must not alias caller-owned slices.
	first.ChangedFiles = append([]string{}, first.ChangedFiles...)
	second.ChangedFiles = append([]string{}, second.ChangedFiles...)

	return domain.MergeRequestConflict{
		FirstMR:          first,
		SecondMR:         second,
		ConflictingFiles: files,
		Reason:           Reason(files),
	}
}

// Reason classifies an overlap as a single-file or multi-file conflict.
func Reason(files []string) string {
	if len(files) == 1 {
		return fmt.Sprintf(domain.ReasonSingleFile, files[0])
	}
	return fmt.Sprintf(domain.ReasonMultipleFiles, len(files))
}
