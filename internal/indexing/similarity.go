package indexing

import (
	"math"
	"sort"

	types "github.com/wrenkin/repochat-backend/internal/domain"
	"github.com/wrenkin/repochat-backend/internal/pkg/apperr"
)

// CosineSimilarity computes the cosine of the angle between two vectors
// in float64. It returns apperr.ErrDegenerateVector when the vectors are
// empty, differ in length, or either has zero magnitude.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, apperr.ErrDegenerateVector
	}

	var dot, normA, normB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0, apperr.ErrDegenerateVector
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Match pairs a stored record with its similarity to a query vector.
type Match struct {
	Record     *types.VectorRecord
	Similarity float64
}

// Rank scores every record against the query vector and returns the top
// matches, highest similarity first. Candidates whose stored embedding is
// missing, malformed, or degenerate are excluded rather than aborting the
// ranking; ordering among equal scores keeps candidate order.
func Rank(query []float32, records []*types.VectorRecord, limit int) []Match {
	matches := make([]Match, 0, len(records))
	for _, rec := range records {
		score, err := CosineSimilarity(query, rec.Vector())
		if err != nil {
			continue
		}
		matches = append(matches, Match{Record: rec, Similarity: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
