package index

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// VectorRecord is one embedded repository file. Unique on
// (user_id, repo_id, file_path); re-indexing the same file upserts in place.
type VectorRecord struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_vector_record_user_repo_path,priority:1" json:"user_id"`

	RepoID   string `gorm:"column:repo_id;not null;index;uniqueIndex:idx_vector_record_user_repo_path,priority:2" json:"repo_id"`
	FilePath string `gorm:"column:file_path;not null;uniqueIndex:idx_vector_record_user_repo_path,priority:3" json:"file_path"`

	Content     string `gorm:"column:content;type:text;not null" json:"content"`
	Description string `gorm:"column:description;type:text" json:"description,omitempty"`

	Embedding datatypes.JSON `gorm:"type:jsonb;column:embedding;not null" json:"embedding"`

	Language     string    `gorm:"column:language" json:"language,omitempty"`
	LastModified time.Time `gorm:"column:last_modified" json:"last_modified"`
	SizeBytes    int       `gorm:"column:size_bytes;not null;default:0" json:"size_bytes"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (VectorRecord) TableName() string { return "vector_record" }

// Vector decodes the stored embedding payload. A nil slice is returned for
// malformed payloads; the similarity engine treats those as degenerate.
func (v *VectorRecord) Vector() []float32 {
	if len(v.Embedding) == 0 {
		return nil
	}
	var out []float32
	if err := json.Unmarshal(v.Embedding, &out); err != nil {
		return nil
	}
	return out
}

// EncodeVector marshals vec into the JSONB embedding column.
func EncodeVector(vec []float32) (datatypes.JSON, error) {
	raw, err := json.Marshal(vec)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
