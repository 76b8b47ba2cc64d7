package domain

// ReasonSingleFile and ReasonMultipleFiles are the reason templates used to
// classify a conflict by the number of files it involves.
const (
	ReasonSingleFile    = "conflict in modification of `%s`"
	ReasonMultipleFiles = "conflicts in modification of `%d` files"
)

// MergeRequestConflict represents a detected collision between exactly two
// merge requests. ConflictingFiles is never empty and FirstMR.ID != SecondMR.ID.
type MergeRequestConflict struct {
	FirstMR          MergeRequestInfo
	SecondMR         MergeRequestInfo
	ConflictingFiles []string // sorted
	Reason           string
}

// IsSingleFile reports whether the conflict involves exactly one file.
func (c MergeRequestConflict) IsSingleFile() bool {
	return len(c.ConflictingFiles) == 1
}

// Involves reports whether the merge request with the given ID is part of the pair.
func (c MergeRequestConflict) Involves(id int) bool {
	return c.FirstMR.ID == id || c.SecondMR.ID == id
}

// Other returns the counterpart of the merge request with the given ID.
// The second return value is false when id is not part of the pair.
func (c MergeRequestConflict) Other(id int) (MergeRequestInfo, bool) {
	switch id {
	case c.FirstMR.ID:
		return c.SecondMR, true
	case c.SecondMR.ID:
		return c.FirstMR, true
	default:
		return MergeRequestInfo{}, false
	}
}
