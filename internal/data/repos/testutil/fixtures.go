package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	types "github.com/wrenkin/repochat-backend/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, githubID string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:          uuid.New(),
		GithubID:    githubID,
		Username:    "octocat-" + githubID,
		Email:       githubID + "@example.com",
		AccessToken: "gho_test",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedIndexState(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, owner, name, status string) *types.RepoIndexState {
	tb.Helper()
	s := &types.RepoIndexState{
		ID:     uuid.New(),
		UserID: userID,
		Owner:  owner,
		Name:   name,
		Status: status,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed index state: %v", err)
	}
	return s
}

func SeedVectorRecord(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, repoID, filePath string) *types.VectorRecord {
	tb.Helper()
	v := &types.VectorRecord{
		ID:        uuid.New(),
		UserID:    userID,
		RepoID:    repoID,
		FilePath:  filePath,
		Content:   "package main\n",
		Embedding: datatypes.JSON([]byte("[0.1,0.2,0.3]")),
		Language:  "go",
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed vector record: %v", err)
	}
	return v
}

func SeedChatMessage(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, kind, text string, createdAt time.Time) *types.ChatMessage {
	tb.Helper()
	m := &types.ChatMessage{
		ID:        uuid.New(),
		UserID:    userID,
		Username:  "octocat",
		Text:      text,
		Kind:      kind,
		CreatedAt: createdAt,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed chat message: %v", err)
	}
	return m
}

func PtrTime(v time.Time) *time.Time { return &v }
