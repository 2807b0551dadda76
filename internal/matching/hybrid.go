package matching

import (
	"context"
	"time"

	"github.com/meetsmatch/matchengine/internal/monitoring"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// HybridBlender merges content and collaborative rankings with fixed weights
type HybridBlender struct {
	content       Recommender
	collaborative Recommender
	opts          options
}

func NewHybridBlender(content, collaborative Recommender, opts ...Option) *HybridBlender {
	return &HybridBlender{content: content, collaborative: collaborative, opts: newOptions(opts)}
}

// Recommend over-fetches twice the limit from both sources, weights each
// source's scores and sums them per candidate. A candidate keeps the reason
// of the first source that produced it, content first.
func (h *HybridBlender) Recommend(ctx context.Context, userID string, limit int) (recs []Recommendation, err error) {
	started := time.Now()
	ctx, span := h.opts.inst.StartOperation(ctx, "RecommendHybrid",
		attribute.String("user_id", userID), attribute.Int("limit", limit))
	defer func() {
		if err == nil {
			h.opts.inst.RecordRecommendations(ctx, SourceHybrid, len(recs), time.Since(started))
		}
		monitoring.EndOperation(span, err)
	}()

	if err := checkLimit(ctx, limit); err != nil {
		return nil, err
	}
	fetch := 2 * limit

	var contentRecs, collaborativeRecs []Recommendation
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		contentRecs, err = h.content.Recommend(gctx, userID, fetch)
		return err
	})
	g.Go(func() error {
		var err error
		collaborativeRecs, err = h.collaborative.Recommend(gctx, userID, fetch)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recs = blend(contentRecs, collaborativeRecs, h.opts.policy.ContentBlendWeight, h.opts.policy.CollaborativeBlendWeight)
	recs = rank(recs, limit)

	operationLogger(ctx, "recommend_hybrid", userID).WithFields(map[string]interface{}{
		"content":       len(contentRecs),
		"collaborative": len(collaborativeRecs),
		"returned":      len(recs),
	}).Debug("Hybrid recommendations computed")
	return recs, nil
}

// blend sums weighted scores per candidate, preserving first-seen order
func blend(content, collaborative []Recommendation, contentWeight, collaborativeWeight float64) []Recommendation {
	index := make(map[string]int, len(content)+len(collaborative))
	var out []Recommendation

	add := func(recs []Recommendation, weight float64) {
		for _, rec := range recs {
			if i, ok := index[rec.CandidateID]; ok {
				out[i].Score += rec.Score * weight
				continue
			}
			index[rec.CandidateID] = len(out)
			out = append(out, Recommendation{
				CandidateID: rec.CandidateID,
				Score:       rec.Score * weight,
				Reason:      rec.Reason,
			})
		}
	}
	add(content, contentWeight)
	add(collaborative, collaborativeWeight)
	return out
}
