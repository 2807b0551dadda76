package matching

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/meetsmatch/matchengine/internal/monitoring"
	"go.opentelemetry.io/otel/attribute"
)

// CollaborativeStore is what the collaborative recommender reads
type CollaborativeStore interface {
	ProfileReader
	InterestStore
	BlockReader
	RecommendationHistory
}

// CollaborativeRecommender ranks candidates liked by users whose likes
// overlap with the requester's
type CollaborativeRecommender struct {
	store   CollaborativeStore
	history RecommendationHistory
	opts    options
}

func NewCollaborativeRecommender(store CollaborativeStore, opts ...Option) *CollaborativeRecommender {
	o := newOptions(opts)
	history := o.history
	if history == nil {
		history = store
	}
	return &CollaborativeRecommender{store: store, history: history, opts: o}
}

type similarUser struct {
	id    string
	count int
}

// Recommend returns up to limit candidates. A requester who has liked nobody
// gets an empty list.
func (r *CollaborativeRecommender) Recommend(ctx context.Context, userID string, limit int) (recs []Recommendation, err error) {
	started := time.Now()
	ctx, span := r.opts.inst.StartOperation(ctx, "RecommendCollaborative",
		attribute.String("user_id", userID), attribute.Int("limit", limit))
	defer func() {
		if err == nil {
			r.opts.inst.RecordRecommendations(ctx, SourceCollaborative, len(recs), time.Since(started))
		}
		monitoring.EndOperation(span, err)
	}()

	if err := checkLimit(ctx, limit); err != nil {
		return nil, err
	}
	logger := operationLogger(ctx, "recommend_collaborative", userID)

	if _, err := requireUser(ctx, r.store, userID); err != nil {
		return nil, err
	}

	liked, err := r.store.ListLikedUserIDs(ctx, userID)
	if err != nil {
		return nil, storeError(ctx, "list_liked", err)
	}
	if len(liked) == 0 {
		logger.Debug("Requester has no likes, no collaborative signal")
		return []Recommendation{}, nil
	}
	likedSet := toSet(liked)

	similar, err := r.similarUsers(ctx, userID, liked)
	if err != nil {
		return nil, err
	}
	if len(similar) == 0 {
		return []Recommendation{}, nil
	}

	excluded, err := excludedCandidates(ctx, r.history, r.store, userID, r.opts.policy.exclusionSince(r.opts.now()))
	if err != nil {
		return nil, err
	}
	active, err := r.store.ListActiveUserIDs(ctx)
	if err != nil {
		return nil, storeError(ctx, "list_active_users", err)
	}
	activeSet := toSet(active)

	best := make(map[string]float64)
	for _, su := range similar {
		if err := checkCancelled(ctx, "recommend_collaborative"); err != nil {
			return nil, err
		}
		targets, err := r.store.ListLikedUserIDs(ctx, su.id)
		if err != nil {
			return nil, storeError(ctx, "list_liked", err)
		}

		strength := math.Min(float64(su.count)/float64(len(liked)), 1)
		for _, target := range targets {
			if _, ok := likedSet[target]; ok {
				continue
			}
			if _, ok := excluded[target]; ok {
				continue
			}
			if _, ok := activeSet[target]; !ok {
				continue
			}
			if strength > best[target] {
				best[target] = strength
			}
		}
	}

	for id, score := range best {
		recs = append(recs, Recommendation{CandidateID: id, Score: score, Reason: ReasonCollaborative})
	}
	recs = rank(recs, limit)

	logger.WithFields(map[string]interface{}{
		"liked":         len(liked),
		"similar_users": len(similar),
		"returned":      len(recs),
	}).Debug("Collaborative recommendations computed")
	return recs, nil
}

// similarUsers counts, for every other user, how many of the requester's
// liked targets they also liked, and keeps the top fanout by count
func (r *CollaborativeRecommender) similarUsers(ctx context.Context, userID string, liked []string) ([]similarUser, error) {
	edges, err := r.store.ListInterestsTo(ctx, liked)
	if err != nil {
		return nil, storeError(ctx, "list_interests_to", err)
	}

	counts := make(map[string]int)
	for _, edge := range edges {
		if edge.FromUser == userID {
			continue
		}
		counts[edge.FromUser]++
	}

	similar := make([]similarUser, 0, len(counts))
	for id, count := range counts {
		similar = append(similar, similarUser{id: id, count: count})
	}
	sort.Slice(similar, func(i, j int) bool {
		if similar[i].count != similar[j].count {
			return similar[i].count > similar[j].count
		}
		return similar[i].id < similar[j].id
	})
	if fanout := r.opts.policy.SimilarUserFanout; len(similar) > fanout {
		similar = similar[:fanout]
	}
	return similar, nil
}
