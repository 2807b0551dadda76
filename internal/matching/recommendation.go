package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	apperrors "github.com/meetsmatch/matchengine/internal/errors"
	"github.com/meetsmatch/matchengine/internal/telemetry"
)

// Recommendation reasons
const (
	ReasonContent       = "Content-based similarity"
	ReasonCollaborative = "Recommended by users with similar preferences"
)

// Recommendation sources, used for metrics and the CLI mode flag
const (
	SourceContent       = "content"
	SourceCollaborative = "collaborative"
	SourceHybrid        = "hybrid"
	SourceDiscovery     = "discover"
)

// Recommendation is one ranked candidate
type Recommendation struct {
	CandidateID string  `json:"candidate_id"`
	Score       float64 `json:"score"`
	Reason      string  `json:"reason"`
}

// Recommender ranks candidates for a user
type Recommender interface {
	Recommend(ctx context.Context, userID string, limit int) ([]Recommendation, error)
}

// rank sorts by score descending with ties broken by candidate ID, then
// truncates to limit
func rank(recs []Recommendation, limit int) []Recommendation {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].CandidateID < recs[j].CandidateID
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	if recs == nil {
		recs = []Recommendation{}
	}
	return recs
}

// checkLimit rejects negative limits. Zero is valid and yields no results.
func checkLimit(ctx context.Context, limit int) error {
	if limit < 0 {
		return apperrors.NewValidationError("limit", fmt.Sprintf("limit must not be negative, got %d", limit)).
			WithCorrelationID(telemetry.GetCorrelationID(ctx))
	}
	return nil
}

// checkCancelled maps a done context to a timeout error
func checkCancelled(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewTimeoutError(op, err).WithCorrelationID(telemetry.GetCorrelationID(ctx))
	}
	return nil
}

// excludedCandidates collects users recommended within the window and users
// in a block relation with userID
func excludedCandidates(ctx context.Context, history RecommendationHistory, blocks BlockReader, userID string, since time.Time) (map[string]struct{}, error) {
	recommended, err := history.RecommendedUserIDs(ctx, userID, since)
	if err != nil {
		return nil, storeError(ctx, "recommended_user_ids", err)
	}
	blocked, err := blocks.ListBlockedUserIDs(ctx, userID)
	if err != nil {
		return nil, storeError(ctx, "list_blocked", err)
	}

	excluded := toSet(recommended)
	for _, id := range blocked {
		excluded[id] = struct{}{}
	}
	excluded[userID] = struct{}{}
	return excluded, nil
}
