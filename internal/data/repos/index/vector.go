package index

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/wrenkin/repochat-backend/internal/domain"
	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
)

type VectorRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, record *types.VectorRecord) error
	ListByUserRepo(ctx context.Context, tx *gorm.DB, userID uuid.UUID, repoID string) ([]*types.VectorRecord, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.VectorRecord, error)
	CountByUserRepo(ctx context.Context, tx *gorm.DB, userID uuid.UUID, repoID string) (int64, error)
	ListRecentByUserRepo(ctx context.Context, tx *gorm.DB, userID uuid.UUID, repoID string, limit int) ([]*types.VectorRecord, error)
	DeleteByUserRepo(ctx context.Context, tx *gorm.DB, userID uuid.UUID, repoID string) (int64, error)
	DeleteByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
}

type vectorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVectorRepo(db *gorm.DB, baseLog *logger.Logger) VectorRepo {
	return &vectorRepo{
		db:  db,
		log: baseLog.With("repo", "VectorRepo"),
	}
}

// Upsert keys on (user_id, repo_id, file_path) so re-indexing a repo
// replaces stale file records instead of duplicating them.
func (r *vectorRepo) Upsert(ctx context.Context, tx *gorm.DB, record *types.VectorRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if record == nil || record.UserID == uuid.Nil {
		return nil
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.UpdatedAt = time.Now().UTC()

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "repo_id"}, {Name: "file_path"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"content",
				"description",
				"embedding",
				"language",
				"last_modified",
				"size_bytes",
				"updated_at",
			}),
		}).
		Create(record).Error
}

func (r *vectorRepo) ListByUserRepo(ctx context.Context, tx *gorm.DB, userID uuid.UUID, repoID string) ([]*types.VectorRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var out []*types.VectorRecord
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND repo_id = ?", userID, repoID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *vectorRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.VectorRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var out []*types.VectorRecord
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *vectorRepo) CountByUserRepo(ctx context.Context, tx *gorm.DB, userID uuid.UUID, repoID string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.VectorRecord{}).
		Where("user_id = ? AND repo_id = ?", userID, repoID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *vectorRepo) ListRecentByUserRepo(ctx context.Context, tx *gorm.DB, userID uuid.UUID, repoID string, limit int) ([]*types.VectorRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 5
	}

	var out []*types.VectorRecord
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND repo_id = ?", userID, repoID).
		Order("last_modified DESC NULLS LAST").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *vectorRepo) DeleteByUserRepo(ctx context.Context, tx *gorm.DB, userID uuid.UUID, repoID string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Where("user_id = ? AND repo_id = ?", userID, repoID).
		Delete(&types.VectorRecord{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *vectorRepo) DeleteByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&types.VectorRecord{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
