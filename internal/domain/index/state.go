package index

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusIndexing  = "indexing"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// RepoIndexState is the per-repository indexing job record. At most one row
// exists per (user, owner, name); the indexer is its single writer, except
// for the stale-job check which may flip status to error.
type RepoIndexState struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_repo_index_state_user_repo,priority:1" json:"user_id"`

	Owner string `gorm:"column:owner;not null;uniqueIndex:idx_repo_index_state_user_repo,priority:2" json:"owner"`
	Name  string `gorm:"column:name;not null;uniqueIndex:idx_repo_index_state_user_repo,priority:3" json:"name"`

	// pending|indexing|completed|error
	Status      string    `gorm:"column:status;not null;default:'pending';index" json:"status"`
	LastIndexed time.Time `gorm:"column:last_indexed;not null;default:now()" json:"last_indexed"`
	LastError   string    `gorm:"column:last_error" json:"last_error,omitempty"`

	ProgressCurrent   int       `gorm:"column:progress_current;not null;default:0" json:"progress_current"`
	ProgressTotal     int       `gorm:"column:progress_total;not null;default:0" json:"progress_total"`
	ProgressFailed    int       `gorm:"column:progress_failed;not null;default:0" json:"progress_failed"`
	ProgressUpdatedAt time.Time `gorm:"column:progress_updated_at;not null;default:now()" json:"progress_updated_at"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (RepoIndexState) TableName() string { return "repo_index_state" }

// RepoID is the "owner/name" key vector records are stored under.
func (s *RepoIndexState) RepoID() string {
	return s.Owner + "/" + s.Name
}
