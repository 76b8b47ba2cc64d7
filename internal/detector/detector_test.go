package detector

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilaca/mr-conflict-detector/internal/domain"
	"github.com/vilaca/mr-conflict-detector/internal/filter"
)

func mr(id int, files ...string) *domain.MergeRequestInfo {
	info := domain.NewMergeRequestInfo(id, id, fmt.Sprintf("MR %d", id), fmt.Sprintf("feature-%d", id), "main", files)
	return &info
}

// TestDetectConflicts_SingleSharedFile follows AAA (Arrange, Act, Assert) pattern.
func TestDetectConflicts_SingleSharedFile(t *testing.T) {
	// Arrange
	d := NewConflictDetector(nil)
	input := []*domain.MergeRequestInfo{mr(1, "a.txt", "b.txt"), mr(2, "b.txt", "c.txt")}

	// Act
	conflicts, err := d.DetectConflicts(input)

	// Assert
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, 1, conflicts[0].FirstMR.ID)
	assert.Equal(t, 2, conflicts[0].SecondMR.ID)
	assert.Equal(t, []string{"b.txt"}, conflicts[0].ConflictingFiles)
	assert.Contains(t, conflicts[0].Reason, "b.txt")
}

func TestDetectConflicts_IgnoredFilesRemoveConflict(t *testing.T) {
	// Arrange
	f, err := filter.NewGlobFilter([]string{"*.TXT"}, false)
	require.NoError(t, err)
	d := NewConflictDetector(f)
	input := []*domain.MergeRequestInfo{mr(1, "a.txt", "b.txt"), mr(2, "b.txt", "c.txt")}

	// Act
	conflicts, err := d.DetectConflicts(input)

	// Assert
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestDetectConflicts_OnlyOverlappingPairReported(t *testing.T) {
	// Arrange
	d := NewConflictDetector(nil)
	input := []*domain.MergeRequestInfo{
		mr(1, "shared.go", "one.go"),
		mr(2, "two.go"),
		mr(3, "shared.go", "three.go"),
	}

	// Act
	conflicts, err := d.DetectConflicts(input)

	// Assert
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, 1, conflicts[0].FirstMR.ID)
	assert.Equal(t, 3, conflicts[0].SecondMR.ID)
	assert.Equal(t, []string{"shared.go"}, conflicts[0].ConflictingFiles)
}

func TestDetectConflicts_Symmetry(t *testing.T) {
	// Arrange
	d := NewConflictDetector(nil)
	a := mr(1, "x.go", "y.go", "z.go")
	b := mr(2, "z.go", "y.go", "w.go")

	// Act
	forward, errForward := d.DetectConflicts([]*domain.MergeRequestInfo{a, b})
	backward, errBackward := d.DetectConflicts([]*domain.MergeRequestInfo{b, a})

	// Assert
	require.NoError(t, errForward)
	require.NoError(t, errBackward)
	require.Len(t, forward, 1)
	require.Len(t, backward, 1)
	assert.Equal(t, forward[0].ConflictingFiles, backward[0].ConflictingFiles)
	assert.Equal(t, 1, forward[0].FirstMR.ID)
	assert.Equal(t, 2, backward[0].FirstMR.ID)
	assert.Equal(t, "conflicts in modification of `2` files", forward[0].Reason)
}

func TestDetectConflicts_NoSelfConflict(t *testing.T) {
	tests := []struct {
		name  string
		input []*domain.MergeRequestInfo
	}{
		{"single element", []*domain.MergeRequestInfo{mr(1, "a.go")}},
		{"duplicate ids", []*domain.MergeRequestInfo{mr(1, "a.go"), mr(1, "a.go")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflicts, err := NewConflictDetector(nil).DetectConflicts(tt.input)

			require.NoError(t, err)
			assert.Empty(t, conflicts)
		})
	}
}

func TestDetectConflicts_DuplicateIDComparedOnce(t *testing.T) {
	// Arrange
	input := []*domain.MergeRequestInfo{mr(1, "a.go"), mr(2, "a.go"), mr(1, "a.go")}

	// Act
	conflicts, err := NewConflictDetector(nil).DetectConflicts(input)

	// Assert
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, 1, conflicts[0].FirstMR.ID)
	assert.Equal(t, 2, conflicts[0].SecondMR.ID)
}

func TestDetectConflicts_DeterministicPairOrder(t *testing.T) {
	// Arrange
	input := []*domain.MergeRequestInfo{
		mr(4, "common.go"),
		mr(2, "common.go", "other.go"),
		mr(9, "other.go"),
		mr(1, "common.go"),
	}

	// Act
	conflicts, err := NewConflictDetector(nil).DetectConflicts(input)

	// Assert
	require.NoError(t, err)
	var pairs [][2]int
	for _, c := range conflicts {
		pairs = append(pairs, [2]int{c.FirstMR.ID, c.SecondMR.ID})
	}
	assert.Equal(t, [][2]int{{4, 2}, {4, 1}, {2, 9}, {2, 1}}, pairs)
}

func TestDetectConflicts_EmptyInputs(t *testing.T) {
	d := NewConflictDetector(nil)

	empty, err := d.DetectConflicts([]*domain.MergeRequestInfo{})
	require.NoError(t, err)
	assert.Empty(t, empty)

	noFiles, err := d.DetectConflicts([]*domain.MergeRequestInfo{mr(1), mr(2)})
	require.NoError(t, err)
	assert.Empty(t, noFiles)
}

func TestDetectConflicts_InvalidInput(t *testing.T) {
	nilFiles := &domain.MergeRequestInfo{ID: 5}

	tests := []struct {
		name  string
		input []*domain.MergeRequestInfo
	}{
		{"nil collection", nil},
		{"nil entry", []*domain.MergeRequestInfo{mr(1, "a.go"), nil}},
		{"nil file set", []*domain.MergeRequestInfo{mr(1, "a.go"), nilFiles}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflicts, err := NewConflictDetector(nil).DetectConflicts(tt.input)

			assert.True(t, errors.Is(err, domain.ErrInvalidInput), "expected ErrInvalidInput, got %v", err)
			assert.Nil(t, conflicts)
		})
	}
}

func TestDetectConflicts_EmptyPathNeverConflicts(t *testing.T) {
	d := NewConflictDetector(nil)
	input := []*domain.MergeRequestInfo{
		{ID: 1, IID: 1, ChangedFiles: []string{""}},
		{ID: 2, IID: 2, ChangedFiles: []string{"", "a.go"}},
		{ID: 3, IID: 3, ChangedFiles: []string{"a.go", ""}},
	}

	conflicts, err := d.DetectConflicts(input)

	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, 2, conflicts[0].FirstMR.ID)
	assert.Equal(t, 3, conflicts[0].SecondMR.ID)
	assert.Equal(t, []string{"a.go"}, conflicts[0].ConflictingFiles)
}

func TestDetectConflicts_ResultDoesNotAliasInput(t *testing.T) {
	// Arrange
	a := mr(1, "a.go")
	b := mr(2, "a.go")

	// Act
	conflicts, err := NewConflictDetector(nil).DetectConflicts([]*domain.MergeRequestInfo{a, b})
	require.NoError(t, err)
	a.ChangedFiles[0] = "mutated.go"

	// Assert
	assert.Equal(t, []string{"a.go"}, conflicts[0].FirstMR.ChangedFiles)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "conflict in modification of `b.txt`", Reason([]string{"b.txt"}))
	assert.Equal(t, "conflicts in modification of `3` files", Reason([]string{"a", "b", "c"}))
}
