// Package service orchestrates detection runs against a code-review platform.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/vilaca/mr-conflict-detector/internal/api"
	"github.com/vilaca/mr-conflict-detector/internal/detector"
	"github.com/vilaca/mr-conflict-detector/internal/domain"
	"github.com/vilaca/mr-conflict-detector/internal/report"
)

// DefaultConcurrency bounds concurrent change-set requests to the platform.
const DefaultConcurrency = 5

// NoteAction describes what a check did with the merge request note.
type NoteAction string

const (
	NoteCreated   NoteAction = "created"
	NoteUpdated   NoteAction = "updated"
	NoteUnchanged NoteAction = "unchanged"
	NoteSkipped   NoteAction = "skipped" // nothing to report and no earlier note
	NoteDryRun    NoteAction = "dry-run"
)

// ErrNotesUnsupported is returned when posting is requested from a client that cannot post notes.
var ErrNotesUnsupported = errors.New("client does not support merge request notes")

// Options configures a ConflictService.
type Options struct {
	Concurrency          int
	SameTargetBranchOnly bool
	Logger               *slog.Logger
}

// CheckResult is the outcome of checking one merge request.
type CheckResult struct {
	Current   domain.MergeRequestInfo
	Conflicts []domain.MergeRequestConflict // only conflicts involving Current
	Resolved  []domain.MergeRequestInfo
	Note      string
	Action    NoteAction
}

// ConflictService wires the platform client to the detection core.
type ConflictService struct {
	client      api.Client
	notes       api.NotesClient // nil when the client cannot read or post notes
	detector    detector.Detector
	formatter   report.Formatter
	concurrency int
	sameTarget  bool
	logger      *slog.Logger
}

// NewConflictService creates a new conflict service.
func NewConflictService(client api.Client, d detector.Detector, f report.Formatter, opts Options) *ConflictService {
	notes, _ := client.(api.NotesClient)

	s := &ConflictService{
		client:      client,
		notes:       notes,
		detector:    d,
		formatter:   f,
		concurrency: opts.Concurrency,
		sameTarget:  opts.SameTargetBranchOnly,
		logger:      opts.Logger,
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Scan detects conflicts between all open merge requests of a project.
func (s *ConflictService) Scan(ctx context.Context, projectID string) ([]domain.MergeRequestConflict, error) {
	mrs, err := s.client.ListOpenMergeRequests(ctx, projectID)
	if err != nil {
		return nil, err
	}

	loaded, err := s.loadChangedFiles(ctx, projectID, mrs)
	if err != nil {
		return nil, err
	}

	conflicts, err := s.detector.DetectConflicts(loaded)
	if err != nil {
		return nil, fmt.Errorf("failed to detect conflicts: %w", err)
	}

	s.logger.InfoContext(ctx, "scan finished",
		"project", projectID,
		"merge_requests", len(loaded),
		"conflicts", len(conflicts))
	return conflicts, nil
}

// Check detects the conflicts of one merge request against the other open
// merge requests, reconciles them with the previously posted note and, unless
// dryRun is set, creates or updates that note.
func (s *ConflictService) Check(ctx context.Context, projectID string, iid int, dryRun bool) (*CheckResult, error) {
	mrs, err := s.client.ListOpenMergeRequests(ctx, projectID)
	if err != nil {
		return nil, err
	}

	current, mrs, err := s.locateCurrent(ctx, projectID, iid, mrs)
	if err != nil {
		return nil, err
	}
	if s.sameTarget {
		mrs = sameTargetBranch(mrs, current.TargetBranch)
	}

	loaded, err := s.loadChangedFiles(ctx, projectID, mrs)
	if err != nil {
		return nil, err
	}

	all, err := s.detector.DetectConflicts(loaded)
	if err != nil {
		return nil, fmt.Errorf("failed to detect conflicts: %w", err)
	}

	result := &CheckResult{Current: current}
	var conflictingIIDs []int
	for _, c := range all {
		if other, ok := c.Other(current.ID); ok {
			result.Conflicts = append(result.Conflicts, c)
			conflictingIIDs = append(conflictingIIDs, other.IID)
		}
	}

	previous, err := s.previousNote(ctx, projectID, iid)
	if err != nil {
		return nil, err
	}
	var previousClean bool
	if previous != nil {
		reported, ok := s.reportedConflicts(ctx, *previous)
		previousClean = ok && len(reported) == 0
		result.Resolved = s.resolvedSince(ctx, projectID, reported, conflictingIIDs)
	}

	result.Note = s.formatter.FormatConflictNote(result.Conflicts, current.ID, result.Resolved) +
		"\n" + report.EncodeState(conflictingIIDs) + "\n"

	s.logger.InfoContext(ctx, "check finished",
		"project", projectID,
		"mr", iid,
		"compared", len(loaded),
		"conflicts", len(result.Conflicts),
		"resolved", len(result.Resolved))

	if dryRun {
		result.Action = NoteDryRun
		return result, nil
	}

	result.Action, err = s.publish(ctx, projectID, iid, previous, previousClean, result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// locateCurrent finds the checked merge request among the open ones. A merge
// request that is not open any more is fetched directly and still compared.
func (s *ConflictService) locateCurrent(ctx context.Context, projectID string, iid int, mrs []domain.MergeRequestInfo) (domain.MergeRequestInfo, []domain.MergeRequestInfo, error) {
	for _, mr := range mrs {
		if mr.IID == iid {
			return mr, mrs, nil
		}
	}

	mr, err := s.client.GetMergeRequest(ctx, projectID, iid)
	if err != nil {
		return domain.MergeRequestInfo{}, nil, err
	}
	s.logger.WarnContext(ctx, "merge request is not open, comparing it anyway",
		"mr", iid,
		"state", mr.State)

	return *mr, append([]domain.MergeRequestInfo{*mr}, mrs...), nil
}

// loadChangedFiles fetches every change set concurrently and returns the merge
// requests in their original order.
func (s *ConflictService) loadChangedFiles(ctx context.Context, projectID string, mrs []domain.MergeRequestInfo) ([]*domain.MergeRequestInfo, error) {
	loaded := make([]*domain.MergeRequestInfo, len(mrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, mr := range mrs {
		g.Go(func() error {
			files, err := s.client.ChangedFiles(gctx, projectID, mr.IID)
			if err != nil {
				return err
			}
			withFiles := mr.WithChangedFiles(files)
			loaded[i] = &withFiles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load changed files: %w", err)
	}

	return loaded, nil
}

// previousNote returns the latest note written by this tool, or nil.
func (s *ConflictService) previousNote(ctx context.Context, projectID string, iid int) (*domain.Note, error) {
	if s.notes == nil {
		return nil, nil
	}

	notes, err := s.notes.ListNotes(ctx, projectID, iid)
	if err != nil {
		return nil, err
	}

	var found *domain.Note
	for i := range notes {
		if !notes[i].System && report.HasMarker(notes[i].Body) {
			if found == nil || notes[i].ID > found.ID {
				found = &notes[i]
			}
		}
	}
	return found, nil
}

// reportedConflicts returns the counterpart IIDs recorded in the previous note.
// ok is false when the marker cannot be decoded.
func (s *ConflictService) reportedConflicts(ctx context.Context, previous domain.Note) (iids []int, ok bool) {
	state, err := report.DecodeState(previous.Body)
	if err != nil {
		s.logger.WarnContext(ctx, "ignoring unreadable state in previous note", "note", previous.ID, "error", err)
		return nil, false
	}
	return state.Conflicts, true
}

// resolvedSince returns the merge requests listed in the previous note that no
// longer conflict, with their current lifecycle state. Merge requests that
// cannot be fetched any more are left out.
func (s *ConflictService) resolvedSince(ctx context.Context, projectID string, reported, current []int) []domain.MergeRequestInfo {
	still := make(map[int]struct{}, len(current))
	for _, id := range current {
		still[id] = struct{}{}
	}

	var resolvedIIDs []int
	for _, id := range reported {
		if _, ok := still[id]; !ok {
			resolvedIIDs = append(resolvedIIDs, id)
		}
	}
	sort.Ints(resolvedIIDs)

	var resolved []domain.MergeRequestInfo
	for _, id := range resolvedIIDs {
		mr, err := s.client.GetMergeRequest(ctx, projectID, id)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load resolved merge request", "mr", id, "error", err)
			continue
		}
		resolved = append(resolved, *mr)
	}
	return resolved
}

// publish writes the note. Nothing is posted when there is neither a conflict
// nor an earlier note, so merge requests without conflicts stay quiet.
// previousClean reports that the earlier note recorded no conflicts.
func (s *ConflictService) publish(ctx context.Context, projectID string, iid int, previous *domain.Note, previousClean bool, result *CheckResult) (NoteAction, error) {
	if s.notes == nil {
		return "", ErrNotesUnsupported
	}

	switch {
	case previous != nil && previous.Body == result.Note:
		return NoteUnchanged, nil
	case previousClean && len(result.Conflicts) == 0 && len(result.Resolved) == 0:
		// The earlier note already reports that nothing conflicts.
		return NoteUnchanged, nil
	case previous != nil:
		if err := s.notes.UpdateNote(ctx, projectID, iid, previous.ID, result.Note); err != nil {
			return "", err
		}
		s.logger.InfoContext(ctx, "updated conflict note", "mr", iid, "note", previous.ID)
		return NoteUpdated, nil
	case len(result.Conflicts) > 0:
		if err := s.notes.CreateNote(ctx, projectID, iid, result.Note); err != nil {
			return "", err
		}
		s.logger.InfoContext(ctx, "created conflict note", "mr", iid)
		return NoteCreated, nil
	default:
		return NoteSkipped, nil
	}
}

func sameTargetBranch(mrs []domain.MergeRequestInfo, target string) []domain.MergeRequestInfo {
	result := make([]domain.MergeRequestInfo, 0, len(mrs))
	for _, mr := range mrs {
		if mr.TargetBranch == target {
			result = append(result, mr)
		}
	}
	return result
}

// InvolvedIIDs returns the sorted IIDs of every merge request appearing in conflicts.
func InvolvedIIDs(conflicts []domain.MergeRequestConflict) []int {
	seen := make(map[int]struct{})
	var iids []int
	for _, c := range conflicts {
		for _, mr := range []domain.MergeRequestInfo{c.FirstMR, c.SecondMR} {
			if _, ok := seen[mr.IID]; !ok {
				seen[mr.IID] = struct{}{}
				iids = append(iids, mr.IID)
			}
		}
	}
	sort.Ints(iids)
	return iids
}
