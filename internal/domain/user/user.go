package user

import (
	"time"

	"github.com/google/uuid"
)

// User is an account connected to the source-hosting provider. It is created
// on the first successful login and never hard-deleted.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	GithubID  string    `gorm:"column:github_id;uniqueIndex;not null" json:"github_id"`
	Username  string    `gorm:"column:username;not null" json:"username"`
	Email     string    `gorm:"column:email" json:"email,omitempty"`
	AvatarURL string    `gorm:"column:avatar_url" json:"avatar_url,omitempty"`

	// AccessToken is the current hosting-provider credential. It is refreshed
	// whenever a newly presented token differs from the stored one.
	AccessToken string `gorm:"column:access_token;not null" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string { return "user" }
