package api

import (
	"context"

	"github.com/vilaca/mr-conflict-detector/internal/domain"
)

// Client defines the interface for code-review platform clients.
// Consumers depend on this interface, not on a concrete platform SDK.
type Client interface {
	// ListOpenMergeRequests returns every open merge request of a project.
	// ChangedFiles is left empty; use ChangedFiles to load it.
	ListOpenMergeRequests(ctx context.Context, projectID string) ([]domain.MergeRequestInfo, error)

	// GetMergeRequest returns a single merge request in its current state.
	GetMergeRequest(ctx context.Context, projectID string, iid int) (*domain.MergeRequestInfo, error)

	// ChangedFiles returns the union of old and new paths touched by a merge request.
	ChangedFiles(ctx context.Context, projectID string, iid int) ([]string, error)
}

// NotesClient extends Client with merge request note operations.
// Only needed when the report is posted back to the platform.
type NotesClient interface {
	Client

	// ListNotes returns the notes of a merge request.
	ListNotes(ctx context.Context, projectID string, iid int) ([]domain.Note, error)

	// CreateNote posts a new note on a merge request.
	CreateNote(ctx context.Context, projectID string, iid int, body string) error

	// UpdateNote replaces the body of an existing note.
	UpdateNote(ctx context.Context, projectID string, iid, noteID int, body string) error
}

// ClientConfig holds common configuration for API clients.
type ClientConfig struct {
	BaseURL string
	Token   string
}
