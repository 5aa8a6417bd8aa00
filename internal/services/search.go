package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	indexrepo "github.com/wrenkin/repochat-backend/internal/data/repos/index"
	"github.com/wrenkin/repochat-backend/internal/indexing"
	"github.com/wrenkin/repochat-backend/internal/pkg/apperr"
	"github.com/wrenkin/repochat-backend/internal/pkg/ctxutil"
	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
	"github.com/wrenkin/repochat-backend/internal/platform/gemini"
)

const searchLimit = 10

type SearchResultMetadata struct {
	Language     string    `json:"language,omitempty"`
	LastModified time.Time `json:"last_modified"`
	SizeBytes    int       `json:"size_bytes"`
}

type SearchResult struct {
	FilePath    string               `json:"file_path"`
	Content     string               `json:"content"`
	Description string               `json:"description,omitempty"`
	Similarity  float64              `json:"similarity"`
	Metadata    SearchResultMetadata `json:"metadata"`
}

type SearchService interface {
	// Search embeds the query and ranks the user's vectors for repoID.
	// An unindexed repo yields an empty list, not an error.
	Search(ctx context.Context, repoID, query string) ([]SearchResult, error)
}

type searchService struct {
	db         *gorm.DB
	log        *logger.Logger
	vectorRepo indexrepo.VectorRepo
	ai         gemini.Client
}

func NewSearchService(db *gorm.DB, baseLog *logger.Logger, vectorRepo indexrepo.VectorRepo, ai gemini.Client) SearchService {
	return &searchService{
		db:         db,
		log:        baseLog.With("service", "SearchService"),
		vectorRepo: vectorRepo,
		ai:         ai,
	}
}

func (ss *searchService) Search(ctx context.Context, repoID, query string) ([]SearchResult, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return nil, apperr.ErrUnauthorized
	}
	if repoID == "" || query == "" {
		return nil, fmt.Errorf("%w: missing repoId or query", apperr.ErrInvalidArgument)
	}

	queryVector, err := ss.ai.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	records, err := ss.vectorRepo.ListByUserRepo(ctx, nil, rd.UserID, repoID)
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}

	matches := indexing.Rank(queryVector, records, searchLimit)
	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, SearchResult{
			FilePath:    m.Record.FilePath,
			Content:     m.Record.Content,
			Description: m.Record.Description,
			Similarity:  m.Similarity,
			Metadata: SearchResultMetadata{
				Language:     m.Record.Language,
				LastModified: m.Record.LastModified,
				SizeBytes:    m.Record.SizeBytes,
			},
		})
	}
	return results, nil
}
