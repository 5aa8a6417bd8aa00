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

func seedVector(t *testing.T, vectors *fakeVectorRepo, userID uuid.UUID, repoID, path string, vec []float32) {
	t.Helper()
	emb, err := types.EncodeVector(vec)
	if err != nil {
		t.Fatalf("EncodeVector: %v", err)
	}
	if uErr := vectors.Upsert(nil, nil, &types.VectorRecord{
		UserID:       userID,
		RepoID:       repoID,
		FilePath:     path,
		Content:      "content of " + path,
		Embedding:    emb,
		Language:     "go",
		LastModified: time.Now().UTC(),
	}); uErr != nil {
		t.Fatalf("seed vector: %v", uErr)
	}
}

func TestSearchReturnsEmptyForUnindexedRepo(t *testing.T) {
	vectors := newFakeVectorRepo()
	svc := NewSearchService(nil, testLogger(t), vectors, &fakeAI{})

	results, err := svc.Search(requestCtx(uuid.New()), "octo/unknown", "anything")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
}

func TestSearchRanksAndCaps(t *testing.T) {
	vectors := newFakeVectorRepo()
	ai := &fakeAI{}
	svc := NewSearchService(nil, testLogger(t), vectors, ai)
	userID := uuid.New()
	repoID := "octo/hello-world"

	// 12 candidates so the cap at 10 is observable.
	for i := 0; i < 12; i++ {
		seedVector(t, vectors, userID, repoID, fmt.Sprintf("f%02d.go", i), []float32{1, float32(i) / 12, 0})
	}

	results, err := svc.Search(requestCtx(userID), repoID, "query text")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("results: want=10 got=%d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Fatalf("results not sorted descending at %d", i)
		}
	}
	if results[0].Content == "" || results[0].Metadata.Language != "go" {
		t.Fatalf("result payload incomplete: %+v", results[0])
	}
}

func TestSearchSkipsDegenerateCandidates(t *testing.T) {
	vectors := newFakeVectorRepo()
	svc := NewSearchService(nil, testLogger(t), vectors, &fakeAI{})
	userID := uuid.New()
	repoID := "octo/hello-world"

	seedVector(t, vectors, userID, repoID, "good.go", []float32{1, 0.5, 0})
	seedVector(t, vectors, userID, repoID, "zero.go", []float32{0, 0, 0})

	results, err := svc.Search(requestCtx(userID), repoID, "query")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].FilePath != "good.go" {
		t.Fatalf("degenerate candidate should be skipped, got %+v", results)
	}
}

func TestSearchSurfacesProviderError(t *testing.T) {
	vectors := newFakeVectorRepo()
	ai := &fakeAI{embedFails: map[string]error{"query": fmt.Errorf("%w: down", apperr.ErrProvider)}}
	svc := NewSearchService(nil, testLogger(t), vectors, ai)

	_, err := svc.Search(requestCtx(uuid.New()), "octo/hello-world", "query")
	if !errors.Is(err, apperr.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}

func TestSearchValidatesInput(t *testing.T) {
	svc := NewSearchService(nil, testLogger(t), newFakeVectorRepo(), &fakeAI{})

	if _, err := svc.Search(requestCtx(uuid.New()), "", "query"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("missing repoID: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := svc.Search(requestCtx(uuid.New()), "octo/x", ""); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("missing query: expected ErrInvalidArgument, got %v", err)
	}
}
