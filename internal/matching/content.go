package matching

import (
	"context"
	"time"

	"github.com/meetsmatch/matchengine/internal/monitoring"
	"go.opentelemetry.io/otel/attribute"
)

// ContentStore is what the content recommender reads
type ContentStore interface {
	ProfileReader
	BlockReader
	RecommendationHistory
}

// ContentRecommender ranks active users by attribute similarity, filtered by
// the requester's own preferences
type ContentRecommender struct {
	store   ContentStore
	history RecommendationHistory
	opts    options
}

func NewContentRecommender(store ContentStore, opts ...Option) *ContentRecommender {
	o := newOptions(opts)
	history := o.history
	if history == nil {
		history = store
	}
	return &ContentRecommender{store: store, history: history, opts: o}
}

// Recommend returns up to limit candidates scoring above the discovery
// threshold. A requester without a profile gets an empty list.
func (r *ContentRecommender) Recommend(ctx context.Context, userID string, limit int) (recs []Recommendation, err error) {
	started := time.Now()
	ctx, span := r.opts.inst.StartOperation(ctx, "RecommendContent",
		attribute.String("user_id", userID), attribute.Int("limit", limit))
	defer func() {
		if err == nil {
			r.opts.inst.RecordRecommendations(ctx, SourceContent, len(recs), time.Since(started))
		}
		monitoring.EndOperation(span, err)
	}()

	if err := checkLimit(ctx, limit); err != nil {
		return nil, err
	}
	logger := operationLogger(ctx, "recommend_content", userID)

	if _, err := requireUser(ctx, r.store, userID); err != nil {
		return nil, err
	}

	profile, err := optionalProfile(ctx, r.store, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		logger.Debug("Requester has no profile, no content recommendations")
		return []Recommendation{}, nil
	}
	pref, err := optionalPreference(ctx, r.store, userID)
	if err != nil {
		return nil, err
	}

	now := r.opts.now()
	excluded, err := excludedCandidates(ctx, r.history, r.store, userID, r.opts.policy.exclusionSince(now))
	if err != nil {
		return nil, err
	}

	ids, err := r.store.ListActiveUserIDs(ctx)
	if err != nil {
		return nil, storeError(ctx, "list_active_users", err)
	}

	for _, id := range ids {
		if err := checkCancelled(ctx, "recommend_content"); err != nil {
			return nil, err
		}
		if _, skip := excluded[id]; skip {
			continue
		}
		candidate, err := optionalProfile(ctx, r.store, id)
		if err != nil {
			return nil, err
		}
		if candidate == nil {
			continue
		}

		score := ContentScore(profile, pref, candidate, now)
		if score <= r.opts.policy.DiscoveryThreshold {
			continue
		}
		recs = append(recs, Recommendation{CandidateID: id, Score: score, Reason: ReasonContent})
	}

	recs = rank(recs, limit)
	logger.WithFields(map[string]interface{}{
		"candidates": len(ids),
		"returned":   len(recs),
	}).Debug("Content recommendations computed")
	return recs, nil
}
