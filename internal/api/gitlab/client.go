package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/AlekSi/pointer"
	"github.com/xanzy/go-gitlab"

	"github.com/vilaca/mr-conflict-detector/internal/api"
	"github.com/vilaca/mr-conflict-detector/internal/domain"
)

// pageSize is the number of items requested per page.
const pageSize = 100

// Client implements api.NotesClient for GitLab.
type Client struct {
	mergeRequests MergeRequests
	notes         Notes
}

// NewClient creates a new GitLab client on top of go-gitlab.
// Retries are left to the transport of httpClient (see api.RetryTransport),
// so the SDK's own retry loop is disabled.
func NewClient(config api.ClientConfig, httpClient *http.Client) (*Client, error) {
	baseURL := strings.TrimSuffix(config.BaseURL, "/") + "/api/v4"

	git, err := gitlab.NewClient(config.Token,
		gitlab.WithBaseURL(baseURL),
		gitlab.WithHTTPClient(httpClient),
		gitlab.WithCustomRetryMax(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up GitLab client: %w", err)
	}

	return NewClientWithServices(git.MergeRequests, git.Notes), nil
}

// NewClientWithServices creates a Client from already-built SDK services.
func NewClientWithServices(mergeRequests MergeRequests, notes Notes) *Client {
	return &Client{
		mergeRequests: mergeRequests,
		notes:         notes,
	}
}

// ListOpenMergeRequests retrieves all open merge requests of a project, following pagination.
func (c *Client) ListOpenMergeRequests(ctx context.Context, projectID string) ([]domain.MergeRequestInfo, error) {
	opt := &gitlab.ListProjectMergeRequestsOptions{
		ListOptions: gitlab.ListOptions{PerPage: pageSize, Page: 1},
		State:       pointer.ToString(domain.StateOpened),
	}

	var result []domain.MergeRequestInfo
	for {
		glMRs, resp, err := c.mergeRequests.ListProjectMergeRequests(projectID, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list merge requests: %w", err)
		}

		for _, glMR := range glMRs {
			result = append(result, convertMergeRequest(glMR))
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}

	return result, nil
}

// GetMergeRequest retrieves a single merge request.
func (c *Client) GetMergeRequest(ctx context.Context, projectID string, iid int) (*domain.MergeRequestInfo, error) {
	glMR, _, err := c.mergeRequests.GetMergeRequest(projectID, iid, &gitlab.GetMergeRequestsOptions{}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get merge request !%d: %w", iid, err)
	}

	mr := convertMergeRequest(glMR)
	return &mr, nil
}

// ChangedFiles retrieves the paths touched by a merge request. Both the old and
// the new path of every change are included, so renames and deletions count.
func (c *Client) ChangedFiles(ctx context.Context, projectID string, iid int) ([]string, error) {
	glMR, _, err := c.mergeRequests.GetMergeRequestChanges(projectID, iid, &gitlab.GetMergeRequestChangesOptions{}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get changes of merge request !%d: %w", iid, err)
	}

	files := make([]string, 0, 2*len(glMR.Changes))
	for _, change := range glMR.Changes {
		files = append(files, change.OldPath, change.NewPath)
	}

	return domain.UniqueSorted(files), nil
}

// ListNotes retrieves all notes of a merge request, following pagination.
func (c *Client) ListNotes(ctx context.Context, projectID string, iid int) ([]domain.Note, error) {
	opt := &gitlab.ListMergeRequestNotesOptions{
		ListOptions: gitlab.ListOptions{PerPage: pageSize, Page: 1},
	}

	var result []domain.Note
	for {
		glNotes, resp, err := c.notes.ListMergeRequestNotes(projectID, iid, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list notes of merge request !%d: %w", iid, err)
		}

		for _, n := range glNotes {
			result = append(result, domain.Note{
				ID:     n.ID,
				Body:   n.Body,
				System: n.System,
			})
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}

	return result, nil
}

// CreateNote posts a new note on a merge request.
func (c *Client) CreateNote(ctx context.Context, projectID string, iid int, body string) error {
	_, _, err := c.notes.CreateMergeRequestNote(projectID, iid, &gitlab.CreateMergeRequestNoteOptions{
		Body: pointer.ToString(body),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to create note on merge request !%d: %w", iid, err)
	}
	return nil
}

// UpdateNote replaces the body of an existing note.
func (c *Client) UpdateNote(ctx context.Context, projectID string, iid, noteID int, body string) error {
	_, _, err := c.notes.UpdateMergeRequestNote(projectID, iid, noteID, &gitlab.UpdateMergeRequestNoteOptions{
		Body: pointer.ToString(body),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to update note %d on merge request !%d: %w", noteID, iid, err)
	}
	return nil
}

// convertMergeRequest converts a GitLab merge request to the domain model.
func convertMergeRequest(glMR *gitlab.MergeRequest) domain.MergeRequestInfo {
	return domain.MergeRequestInfo{
		ID:           glMR.ID,
		IID:          glMR.IID,
		Title:        glMR.Title,
		SourceBranch: glMR.SourceBranch,
		TargetBranch: glMR.TargetBranch,
		State:        convertState(glMR.State),
		WebURL:       glMR.WebURL,
		ChangedFiles: []string{},
	}
}

// convertState maps GitLab states onto the domain constants.
// Unknown states such as "locked" pass through unchanged.
func convertState(glState string) string {
	switch glState {
	case "opened", "reopened":
		return domain.StateOpened
	case "merged":
		return domain.StateMerged
	case "closed":
		return domain.StateClosed
	default:
		return glState
	}
}
