package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	indexrepo "github.com/wrenkin/repochat-backend/internal/data/repos/index"
	types "github.com/wrenkin/repochat-backend/internal/domain"
	"github.com/wrenkin/repochat-backend/internal/indexing"
	"github.com/wrenkin/repochat-backend/internal/pkg/apperr"
	"github.com/wrenkin/repochat-backend/internal/pkg/ctxutil"
	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
	"github.com/wrenkin/repochat-backend/internal/platform/gemini"
	ghplatform "github.com/wrenkin/repochat-backend/internal/platform/github"
)

// staleAfter bounds how long an indexing run may go without a progress
// write before a new request may reclaim its state row.
const staleAfter = 5 * time.Minute

const progressEvery = 5

type RecentFile struct {
	Path         string    `json:"path"`
	LastModified time.Time `json:"last_modified"`
}

type RepoStats struct {
	TotalFiles  int64        `json:"total_files"`
	RecentFiles []RecentFile `json:"recent_files"`
}

type ProgressView struct {
	Current     int       `json:"current"`
	Total       int       `json:"total"`
	Failed      int       `json:"failed"`
	LastUpdated time.Time `json:"last_updated"`
}

type RepoStatusView struct {
	Owner       string       `json:"owner"`
	Name        string       `json:"name"`
	Status      string       `json:"status"`
	LastIndexed time.Time    `json:"last_indexed"`
	LastError   string       `json:"last_error,omitempty"`
	Progress    ProgressView `json:"progress"`
	Stats       RepoStats    `json:"stats"`
}

type IndexerService interface {
	// StartIndexing accepts the request and runs the indexing in the
	// background. A genuinely active run for the same repo rejects with
	// apperr.ErrConflict; an abandoned one is reclaimed.
	StartIndexing(ctx context.Context, owner, repo string) (*types.RepoIndexState, error)

	Status(ctx context.Context) ([]RepoStatusView, error)
	ListVectors(ctx context.Context, owner, repo string) ([]*types.VectorRecord, error)
	DeleteIndex(ctx context.Context, owner, repo string) error
	ResetAll(ctx context.Context) error
}

type indexerService struct {
	db         *gorm.DB
	log        *logger.Logger
	stateRepo  indexrepo.RepoIndexStateRepo
	vectorRepo indexrepo.VectorRepo
	ghFactory  ghplatform.Factory
	ai         gemini.Client
}

func NewIndexerService(
	db *gorm.DB,
	baseLog *logger.Logger,
	stateRepo indexrepo.RepoIndexStateRepo,
	vectorRepo indexrepo.VectorRepo,
	ghFactory ghplatform.Factory,
	ai gemini.Client,
) IndexerService {
	return &indexerService{
		db:         db,
		log:        baseLog.With("service", "IndexerService"),
		stateRepo:  stateRepo,
		vectorRepo: vectorRepo,
		ghFactory:  ghFactory,
		ai:         ai,
	}
}

func (is *indexerService) StartIndexing(ctx context.Context, owner, repo string) (*types.RepoIndexState, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.GithubToken == "" {
		return nil, apperr.ErrUnauthorized
	}
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("%w: missing owner or repo", apperr.ErrInvalidArgument)
	}

	now := time.Now().UTC()
	state, err := is.stateRepo.GetByUserRepo(ctx, nil, rd.UserID, owner, repo)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		state, err = is.stateRepo.Create(ctx, nil, &types.RepoIndexState{
			UserID:            rd.UserID,
			Owner:             owner,
			Name:              repo,
			Status:            types.IndexStatusIndexing,
			LastIndexed:       now,
			ProgressUpdatedAt: now,
		})
		if err != nil {
			return nil, fmt.Errorf("create index state: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load index state: %w", err)
	default:
		// The guarded claim wins for finished and abandoned rows; a run
		// that wrote progress inside the staleness window keeps the row.
		claimed, cErr := is.stateRepo.ClaimForIndexing(ctx, nil, state.ID, now.Add(-staleAfter), now)
		if cErr != nil {
			return nil, fmt.Errorf("reclaim index state: %w", cErr)
		}
		if !claimed {
			return nil, fmt.Errorf("%w: repository %s/%s is already being indexed", apperr.ErrConflict, owner, repo)
		}
		state.Status = types.IndexStatusIndexing
		state.LastError = ""
		state.LastIndexed = now
		state.ProgressCurrent = 0
		state.ProgressTotal = 0
		state.ProgressFailed = 0
		state.ProgressUpdatedAt = now
	}

	go is.run(rd.UserID, rd.GithubToken, state.ID, owner, repo)

	return state, nil
}

// run is the background indexing pass. It owns the state row it was
// started with; if a checkpoint discovers the row was reclaimed by a
// newer request, the run stops without writing anything further.
func (is *indexerService) run(userID uuid.UUID, githubToken string, stateID uuid.UUID, owner, repo string) {
	ctx := context.Background()
	log := is.log.With("owner", owner, "repo", repo, "user_id", userID)
	repoID := owner + "/" + repo
	gh := is.ghFactory.ForToken(githubToken)

	now := time.Now().UTC()
	if err := is.stateRepo.UpdateFields(ctx, nil, stateID, map[string]any{
		"status":              types.IndexStatusIndexing,
		"last_indexed":        now,
		"progress_updated_at": now,
	}); err != nil {
		log.Error("Failed to mark run as indexing", "error", err)
		return
	}

	files, err := gh.ListProcessableFiles(ctx, owner, repo)
	if err != nil {
		log.Error("Tree enumeration failed", "error", err)
		is.failRun(ctx, stateID, fmt.Sprintf("listing repository files failed: %v", err))
		return
	}
	total := len(files)
	log.Info("Indexing started", "total_files", total)

	if !is.checkpoint(ctx, log, userID, stateID, owner, repo, 0, total, 0) {
		return
	}

	failed := 0
	for i, file := range files {
		if err := is.indexFile(ctx, gh, userID, repoID, owner, repo, file); err != nil {
			failed++
			log.Warn("File failed during indexing", "path", file.Path, "error", err)
		}

		if (i+1)%progressEvery == 0 || i == total-1 {
			if !is.checkpoint(ctx, log, userID, stateID, owner, repo, i+1, total, failed) {
				return
			}
		}
	}

	finalStatus := types.IndexStatusCompleted
	if failed > 0 {
		finalStatus = types.IndexStatusError
	}
	done := time.Now().UTC()
	updates := map[string]any{
		"status":              finalStatus,
		"last_indexed":        done,
		"progress_current":    total,
		"progress_total":      total,
		"progress_failed":     failed,
		"progress_updated_at": done,
	}
	if failed > 0 {
		updates["last_error"] = fmt.Sprintf("%d of %d files failed", failed, total)
	}
	if err := is.stateRepo.UpdateFields(ctx, nil, stateID, updates); err != nil {
		log.Error("Failed to write final index state", "error", err)
		return
	}
	log.Info("Indexing finished", "status", finalStatus, "total", total, "failed", failed)
}

func (is *indexerService) indexFile(ctx context.Context, gh ghplatform.Client, userID uuid.UUID, repoID, owner, repo string, file ghplatform.TreeFile) error {
	content, err := gh.FetchFileContent(ctx, owner, repo, file.Path)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	processed := indexing.TruncateLines(content, indexing.MaxEmbedBytes)

	vector, err := is.ai.Embed(ctx, processed)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	embedding, err := types.EncodeVector(vector)
	if err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}

	// The description is best-effort context for search results; a
	// provider failure here does not fail the file.
	description := ""
	if processed != "" {
		prompt := fmt.Sprintf("Summarize the purpose of the file %s in one sentence:\n\n%s", file.Path, processed)
		if d, dErr := is.ai.GenerateText(ctx, prompt); dErr == nil {
			description = d
		}
	}

	now := time.Now().UTC()
	return is.vectorRepo.Upsert(ctx, nil, &types.VectorRecord{
		UserID:       userID,
		RepoID:       repoID,
		FilePath:     file.Path,
		Content:      processed,
		Description:  description,
		Embedding:    embedding,
		Language:     indexing.Extension(file.Path),
		LastModified: now,
		SizeBytes:    int(file.SizeBytes),
	})
}

// checkpoint persists progress and verifies the run still owns its state
// row. It returns false when the run should stop.
func (is *indexerService) checkpoint(ctx context.Context, log *logger.Logger, userID, stateID uuid.UUID, owner, repo string, current, total, failed int) bool {
	state, err := is.stateRepo.GetByUserRepo(ctx, nil, userID, owner, repo)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Info("Index state deleted mid-run; stopping")
		return false
	}
	if err != nil {
		log.Error("Failed to reload index state at checkpoint", "error", err)
		is.failRun(ctx, stateID, fmt.Sprintf("progress write failed: %v", err))
		return false
	}
	if state.ID != stateID || state.Status != types.IndexStatusIndexing {
		log.Info("Index state reclaimed by a newer run; stopping",
			"state_id", state.ID, "status", state.Status)
		return false
	}

	if err := is.stateRepo.UpdateFields(ctx, nil, stateID, map[string]any{
		"progress_current":    current,
		"progress_total":      total,
		"progress_failed":     failed,
		"progress_updated_at": time.Now().UTC(),
	}); err != nil {
		log.Error("Failed to persist progress", "error", err)
		is.failRun(ctx, stateID, fmt.Sprintf("progress write failed: %v", err))
		return false
	}
	return true
}

func (is *indexerService) failRun(ctx context.Context, stateID uuid.UUID, message string) {
	now := time.Now().UTC()
	if err := is.stateRepo.UpdateFields(ctx, nil, stateID, map[string]any{
		"status":              types.IndexStatusError,
		"last_error":          message,
		"progress_updated_at": now,
	}); err != nil {
		is.log.Error("Failed to record run failure", "state_id", stateID, "error", err)
	}
}

// isActive reports whether an `indexing` row belongs to a live run. A
// row without a progress write inside the staleness window is treated as
// abandoned and flipped to error on the spot.
func (is *indexerService) isActive(ctx context.Context, state *types.RepoIndexState) bool {
	if state.Status != types.IndexStatusIndexing {
		return false
	}

	ref := state.ProgressUpdatedAt
	if ref.IsZero() {
		ref = state.UpdatedAt
	}
	if time.Since(ref) <= staleAfter {
		return true
	}

	if err := is.stateRepo.UpdateFields(ctx, nil, state.ID, map[string]any{
		"status":     types.IndexStatusError,
		"last_error": "indexing run timed out",
	}); err != nil {
		is.log.Warn("Failed to mark stale run", "state_id", state.ID, "error", err)
	}
	state.Status = types.IndexStatusError
	state.LastError = "indexing run timed out"
	return false
}

func (is *indexerService) Status(ctx context.Context) ([]RepoStatusView, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return nil, apperr.ErrUnauthorized
	}

	states, err := is.stateRepo.ListByUser(ctx, nil, rd.UserID)
	if err != nil {
		return nil, fmt.Errorf("list index states: %w", err)
	}

	out := make([]RepoStatusView, 0, len(states))
	for _, state := range states {
		// Flips abandoned runs to error before reporting them.
		is.isActive(ctx, state)

		repoID := state.RepoID()
		count, cErr := is.vectorRepo.CountByUserRepo(ctx, nil, rd.UserID, repoID)
		if cErr != nil {
			return nil, fmt.Errorf("count vectors for %s: %w", repoID, cErr)
		}
		recent, rErr := is.vectorRepo.ListRecentByUserRepo(ctx, nil, rd.UserID, repoID, 5)
		if rErr != nil {
			return nil, fmt.Errorf("recent vectors for %s: %w", repoID, rErr)
		}

		recentFiles := make([]RecentFile, 0, len(recent))
		for _, v := range recent {
			recentFiles = append(recentFiles, RecentFile{Path: v.FilePath, LastModified: v.LastModified})
		}

		out = append(out, RepoStatusView{
			Owner:       state.Owner,
			Name:        state.Name,
			Status:      state.Status,
			LastIndexed: state.LastIndexed,
			LastError:   state.LastError,
			Progress: ProgressView{
				Current:     state.ProgressCurrent,
				Total:       state.ProgressTotal,
				Failed:      state.ProgressFailed,
				LastUpdated: state.ProgressUpdatedAt,
			},
			Stats: RepoStats{
				TotalFiles:  count,
				RecentFiles: recentFiles,
			},
		})
	}
	return out, nil
}

func (is *indexerService) ListVectors(ctx context.Context, owner, repo string) ([]*types.VectorRecord, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return nil, apperr.ErrUnauthorized
	}
	return is.vectorRepo.ListByUserRepo(ctx, nil, rd.UserID, owner+"/"+repo)
}

func (is *indexerService) DeleteIndex(ctx context.Context, owner, repo string) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return apperr.ErrUnauthorized
	}

	state, err := is.stateRepo.GetByUserRepo(ctx, nil, rd.UserID, owner, repo)
	if err != nil {
		return err
	}
	if _, dErr := is.vectorRepo.DeleteByUserRepo(ctx, nil, rd.UserID, owner+"/"+repo); dErr != nil {
		return fmt.Errorf("delete vectors: %w", dErr)
	}
	return is.stateRepo.Delete(ctx, nil, state.ID)
}

func (is *indexerService) ResetAll(ctx context.Context) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return apperr.ErrUnauthorized
	}

	if _, err := is.vectorRepo.DeleteByUser(ctx, nil, rd.UserID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return is.stateRepo.DeleteByUser(ctx, nil, rd.UserID)
}
