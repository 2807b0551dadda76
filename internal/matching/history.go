package matching

import (
	"context"

	"github.com/meetsmatch/matchengine/internal/database"
)

// RecommendationRecorder persists recommendations on behalf of callers so
// later runs can exclude them
type RecommendationRecorder struct {
	store RecommendationStore
	opts  options
}

func NewRecommendationRecorder(store RecommendationStore, opts ...Option) *RecommendationRecorder {
	return &RecommendationRecorder{store: store, opts: newOptions(opts)}
}

// RecordRecommendations saves recs as active recommendations for userID and
// then notifies the marker, if any. A marker failure is logged, not returned.
func (r *RecommendationRecorder) RecordRecommendations(ctx context.Context, userID string, recs []Recommendation) ([]*database.Recommendation, error) {
	if len(recs) == 0 {
		return []*database.Recommendation{}, nil
	}

	now := r.opts.now()
	rows := make([]*database.Recommendation, 0, len(recs))
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, &database.Recommendation{
			ID:                r.opts.newID(),
			UserID:            userID,
			RecommendedUserID: rec.CandidateID,
			Score:             rec.Score,
			Reason:            rec.Reason,
			Status:            database.RecommendationActive,
			CreatedAt:         now,
		})
		ids = append(ids, rec.CandidateID)
	}

	if err := r.store.SaveRecommendations(ctx, rows); err != nil {
		return nil, storeError(ctx, "save_recommendations", err)
	}

	logger := operationLogger(ctx, "record_recommendations", userID).WithField("count", len(rows))
	if r.opts.marker != nil {
		if err := r.opts.marker.MarkRecommended(ctx, userID, ids, now); err != nil {
			logger.WithError(err).Warn("Failed to mark recommendations in ledger")
		}
	}
	logger.Debug("Recommendations recorded")
	return rows, nil
}

// History returns the most recent recommendations made to userID
func (r *RecommendationRecorder) History(ctx context.Context, userID string, limit int) ([]*database.Recommendation, error) {
	if err := checkLimit(ctx, limit); err != nil {
		return nil, err
	}
	if limit == 0 {
		return []*database.Recommendation{}, nil
	}
	recs, err := r.store.ListRecommendations(ctx, userID, limit)
	if err != nil {
		return nil, storeError(ctx, "list_recommendations", err)
	}
	if recs == nil {
		recs = []*database.Recommendation{}
	}
	return recs, nil
}
