package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/wrenkin/repochat-backend/internal/domain"
	"github.com/wrenkin/repochat-backend/internal/pkg/apperr"
)

func newIndexerFixture(t *testing.T, gh *fakeGithubClient, ai *fakeAI) (IndexerService, *fakeStateRepo, *fakeVectorRepo) {
	t.Helper()
	states := newFakeStateRepo()
	vectors := newFakeVectorRepo()
	svc := NewIndexerService(nil, testLogger(t), states, vectors, &fakeGithubFactory{client: gh}, ai)
	return svc, states, vectors
}

func waitForTerminal(t *testing.T, states *fakeStateRepo, id uuid.UUID) *types.RepoIndexState {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		s := states.get(id)
		if s != nil && (s.Status == types.IndexStatusCompleted || s.Status == types.IndexStatusError) {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("indexing run did not reach a terminal status")
	return nil
}

func TestIndexerRunWithPartialFailure(t *testing.T) {
	gh := &fakeGithubClient{files: map[string]string{}, fetchFails: map[string]error{}}
	for i := 0; i < 10; i++ {
		path := fmt.Sprintf("pkg/file%d.go", i)
		content := fmt.Sprintf("package pkg\n\n// file %d\n", i)
		if i == 3 {
			content = "FAILME\n" + content
		}
		gh.files[path] = content
		gh.fileOrder = append(gh.fileOrder, path)
	}
	ai := &fakeAI{embedFails: map[string]error{"FAILME": fmt.Errorf("%w: rejected", apperr.ErrProvider)}}

	svc, states, vectors := newIndexerFixture(t, gh, ai)
	userID := uuid.New()

	state, err := svc.StartIndexing(requestCtx(userID), "octo", "hello-world")
	if err != nil {
		t.Fatalf("StartIndexing: %v", err)
	}

	final := waitForTerminal(t, states, state.ID)
	if final.Status != types.IndexStatusError {
		t.Fatalf("status: want=%s got=%s", types.IndexStatusError, final.Status)
	}
	if final.ProgressCurrent != 10 || final.ProgressTotal != 10 || final.ProgressFailed != 1 {
		t.Fatalf("progress: got current=%d total=%d failed=%d",
			final.ProgressCurrent, final.ProgressTotal, final.ProgressFailed)
	}
	if final.LastError != "1 of 10 files failed" {
		t.Fatalf("last_error: got %q", final.LastError)
	}

	count, _ := vectors.CountByUserRepo(nil, nil, userID, "octo/hello-world")
	if count != 9 {
		t.Fatalf("stored records: want=9 got=%d", count)
	}
	rows, _ := vectors.ListByUserRepo(nil, nil, userID, "octo/hello-world")
	for _, r := range rows {
		if r.FilePath == "pkg/file3.go" {
			t.Fatalf("failed file must not be stored")
		}
		if len(r.Vector()) == 0 {
			t.Fatalf("record %s missing embedding", r.FilePath)
		}
		if r.Language != "go" {
			t.Fatalf("record %s language: got %q", r.FilePath, r.Language)
		}
	}
}

func TestIndexerRunSuccess(t *testing.T) {
	gh := &fakeGithubClient{
		files:     map[string]string{"main.go": "package main\n", "README.md": "# readme\n"},
		fileOrder: []string{"main.go", "README.md"},
	}
	svc, states, _ := newIndexerFixture(t, gh, &fakeAI{})
	userID := uuid.New()

	state, err := svc.StartIndexing(requestCtx(userID), "octo", "hello-world")
	if err != nil {
		t.Fatalf("StartIndexing: %v", err)
	}
	final := waitForTerminal(t, states, state.ID)
	if final.Status != types.IndexStatusCompleted {
		t.Fatalf("status: want=%s got=%s (last_error=%q)", types.IndexStatusCompleted, final.Status, final.LastError)
	}
	if final.ProgressCurrent != 2 || final.ProgressTotal != 2 || final.ProgressFailed != 0 {
		t.Fatalf("progress: got %+v", final)
	}
}

func TestIndexerEmptyRepoCompletesImmediately(t *testing.T) {
	gh := &fakeGithubClient{files: map[string]string{}}
	svc, states, _ := newIndexerFixture(t, gh, &fakeAI{})

	state, err := svc.StartIndexing(requestCtx(uuid.New()), "octo", "empty")
	if err != nil {
		t.Fatalf("StartIndexing: %v", err)
	}
	final := waitForTerminal(t, states, state.ID)
	if final.Status != types.IndexStatusCompleted {
		t.Fatalf("status: want=%s got=%s", types.IndexStatusCompleted, final.Status)
	}
	if final.ProgressTotal != 0 || final.ProgressCurrent != 0 {
		t.Fatalf("progress: got %+v", final)
	}
}

func TestIndexerTreeFailureMarksRunError(t *testing.T) {
	gh := &fakeGithubClient{listErr: fmt.Errorf("%w: boom", apperr.ErrProvider)}
	svc, states, vectors := newIndexerFixture(t, gh, &fakeAI{})
	userID := uuid.New()

	state, err := svc.StartIndexing(requestCtx(userID), "octo", "hello-world")
	if err != nil {
		t.Fatalf("StartIndexing: %v", err)
	}
	final := waitForTerminal(t, states, state.ID)
	if final.Status != types.IndexStatusError {
		t.Fatalf("status: want=%s got=%s", types.IndexStatusError, final.Status)
	}
	if final.LastError == "" {
		t.Fatalf("expected a stored failure message")
	}
	if count, _ := vectors.CountByUserRepo(nil, nil, userID, "octo/hello-world"); count != 0 {
		t.Fatalf("no records expected, got %d", count)
	}
}

func TestIndexerRejectsActiveRun(t *testing.T) {
	gh := &fakeGithubClient{files: map[string]string{}}
	svc, states, _ := newIndexerFixture(t, gh, &fakeAI{})
	userID := uuid.New()

	now := time.Now().UTC()
	if _, err := states.Create(nil, nil, &types.RepoIndexState{
		UserID:            userID,
		Owner:             "octo",
		Name:              "hello-world",
		Status:            types.IndexStatusIndexing,
		ProgressUpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := svc.StartIndexing(requestCtx(userID), "octo", "hello-world")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestIndexerReclaimsStaleRun(t *testing.T) {
	gh := &fakeGithubClient{
		files:     map[string]string{"main.go": "package main\n"},
		fileOrder: []string{"main.go"},
	}
	svc, states, _ := newIndexerFixture(t, gh, &fakeAI{})
	userID := uuid.New()

	stale := time.Now().UTC().Add(-10 * time.Minute)
	seeded, err := states.Create(nil, nil, &types.RepoIndexState{
		UserID:            userID,
		Owner:             "octo",
		Name:              "hello-world",
		Status:            types.IndexStatusIndexing,
		ProgressUpdatedAt: stale,
		ProgressCurrent:   7,
		ProgressTotal:     40,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	state, err := svc.StartIndexing(requestCtx(userID), "octo", "hello-world")
	if err != nil {
		t.Fatalf("StartIndexing should reclaim a stale run: %v", err)
	}
	if state.ID != seeded.ID {
		t.Fatalf("reclaim must reuse the state row")
	}

	final := waitForTerminal(t, states, state.ID)
	if final.Status != types.IndexStatusCompleted {
		t.Fatalf("status after reclaim: want=%s got=%s", types.IndexStatusCompleted, final.Status)
	}
	if final.ProgressTotal != 1 || final.ProgressCurrent != 1 {
		t.Fatalf("reclaimed run progress: got %+v", final)
	}
}

func TestStatusFlipsAbandonedRun(t *testing.T) {
	gh := &fakeGithubClient{files: map[string]string{}}
	svc, states, _ := newIndexerFixture(t, gh, &fakeAI{})
	userID := uuid.New()

	stale := time.Now().UTC().Add(-10 * time.Minute)
	if _, err := states.Create(nil, nil, &types.RepoIndexState{
		UserID:            userID,
		Owner:             "octo",
		Name:              "hello-world",
		Status:            types.IndexStatusIndexing,
		ProgressUpdatedAt: stale,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	views, err := svc.Status(requestCtx(userID))
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("views: want=1 got=%d", len(views))
	}
	if views[0].Status != types.IndexStatusError {
		t.Fatalf("stale run should report error, got %s", views[0].Status)
	}
	if views[0].LastError != "indexing run timed out" {
		t.Fatalf("last_error: got %q", views[0].LastError)
	}
}

func TestDeleteIndexAndResetAll(t *testing.T) {
	gh := &fakeGithubClient{
		files:     map[string]string{"a.go": "package a\n", "b.go": "package b\n"},
		fileOrder: []string{"a.go", "b.go"},
	}
	svc, states, vectors := newIndexerFixture(t, gh, &fakeAI{})
	userID := uuid.New()
	ctx := requestCtx(userID)

	state, err := svc.StartIndexing(ctx, "octo", "hello-world")
	if err != nil {
		t.Fatalf("StartIndexing: %v", err)
	}
	waitForTerminal(t, states, state.ID)

	if err := svc.DeleteIndex(ctx, "octo", "hello-world"); err != nil {
		t.Fatalf("DeleteIndex: %v", err)
	}
	if count, _ := vectors.CountByUserRepo(nil, nil, userID, "octo/hello-world"); count != 0 {
		t.Fatalf("vectors should be gone, got %d", count)
	}
	if _, err := states.GetByUserRepo(nil, nil, userID, "octo", "hello-world"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("state should be gone, got %v", err)
	}

	if err := svc.DeleteIndex(ctx, "octo", "hello-world"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("DeleteIndex on missing repo: expected ErrNotFound, got %v", err)
	}

	state, err = svc.StartIndexing(ctx, "octo", "hello-world")
	if err != nil {
		t.Fatalf("StartIndexing (again): %v", err)
	}
	waitForTerminal(t, states, state.ID)

	if err := svc.ResetAll(ctx); err != nil {
		t.Fatalf("ResetAll: %v", err)
	}
	if rows, _ := vectors.ListByUser(nil, nil, userID); len(rows) != 0 {
		t.Fatalf("ResetAll left %d vectors", len(rows))
	}
	if rows, _ := states.ListByUser(nil, nil, userID); len(rows) != 0 {
		t.Fatalf("ResetAll left %d states", len(rows))
	}
}
