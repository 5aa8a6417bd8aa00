package index

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/wrenkin/repochat-backend/internal/domain"
	"github.com/wrenkin/repochat-backend/internal/pkg/apperr"
	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
)

type RepoIndexStateRepo interface {
	Create(ctx context.Context, tx *gorm.DB, state *types.RepoIndexState) (*types.RepoIndexState, error)
	GetByUserRepo(ctx context.Context, tx *gorm.DB, userID uuid.UUID, owner, name string) (*types.RepoIndexState, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.RepoIndexState, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error
	ClaimForIndexing(ctx context.Context, tx *gorm.DB, id uuid.UUID, staleBefore, now time.Time) (bool, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	DeleteByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type repoIndexStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepoIndexStateRepo(db *gorm.DB, baseLog *logger.Logger) RepoIndexStateRepo {
	return &repoIndexStateRepo{
		db:  db,
		log: baseLog.With("repo", "RepoIndexStateRepo"),
	}
}

func (r *repoIndexStateRepo) Create(ctx context.Context, tx *gorm.DB, state *types.RepoIndexState) (*types.RepoIndexState, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if state == nil {
		return nil, apperr.ErrInvalidArgument
	}
	if state.ID == uuid.Nil {
		state.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(state).Error; err != nil {
		return nil, err
	}
	return state, nil
}

func (r *repoIndexStateRepo) GetByUserRepo(ctx context.Context, tx *gorm.DB, userID uuid.UUID, owner, name string) (*types.RepoIndexState, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var out types.RepoIndexState
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND owner = ? AND name = ?", userID, owner, name).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *repoIndexStateRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.RepoIndexState, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var out []*types.RepoIndexState
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("owner ASC, name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repoIndexStateRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]any{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(ctx).
		Model(&types.RepoIndexState{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ClaimForIndexing flips an existing state row into a fresh indexing run
// in one guarded update. The claim loses against a run that wrote
// progress at or after staleBefore, in which case it reports false and
// the row is untouched.
func (r *repoIndexStateRepo) ClaimForIndexing(ctx context.Context, tx *gorm.DB, id uuid.UUID, staleBefore, now time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, apperr.ErrInvalidArgument
	}
	res := transaction.WithContext(ctx).
		Model(&types.RepoIndexState{}).
		Where("id = ? AND (status <> ? OR progress_updated_at < ?)",
			id, types.IndexStatusIndexing, staleBefore).
		Updates(map[string]any{
			"status":              types.IndexStatusIndexing,
			"last_error":          "",
			"last_indexed":        now,
			"progress_current":    0,
			"progress_total":      0,
			"progress_failed":     0,
			"progress_updated_at": now,
			"updated_at":          now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repoIndexStateRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.RepoIndexState{}).Error
}

func (r *repoIndexStateRepo) DeleteByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&types.RepoIndexState{}).Error
}
