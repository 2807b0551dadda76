package matching

import (
	"context"

	"github.com/meetsmatch/matchengine/internal/database"
)

// Engine wires every component over one store
type Engine struct {
	scorer        *Scorer
	creator       *MatchCreator
	content       *ContentRecommender
	collaborative *CollaborativeRecommender
	hybrid        *HybridBlender
	interests     *InterestService
	matches       *MatchService
	recorder      *RecommendationRecorder
}

func NewEngine(store Store, opts ...Option) *Engine {
	creator := NewMatchCreator(store, opts...)
	content := NewContentRecommender(store, opts...)
	collaborative := NewCollaborativeRecommender(store, opts...)

	return &Engine{
		scorer:        NewScorer(store, opts...),
		creator:       creator,
		content:       content,
		collaborative: collaborative,
		hybrid:        NewHybridBlender(content, collaborative, opts...),
		interests:     NewInterestService(store, creator, opts...),
		matches:       NewMatchService(store, opts...),
		recorder:      NewRecommendationRecorder(store, opts...),
	}
}

func (e *Engine) Score(ctx context.Context, a, b string) (float64, error) {
	return e.scorer.Score(ctx, a, b)
}

func (e *Engine) Evaluate(ctx context.Context, a, b string) (*Compatibility, error) {
	return e.scorer.Evaluate(ctx, a, b)
}

func (e *Engine) TryCreateMatch(ctx context.Context, a, b string) (*MatchResult, error) {
	return e.creator.TryCreateMatch(ctx, a, b)
}

func (e *Engine) RecommendContent(ctx context.Context, userID string, limit int) ([]Recommendation, error) {
	return e.content.Recommend(ctx, userID, limit)
}

func (e *Engine) RecommendCollaborative(ctx context.Context, userID string, limit int) ([]Recommendation, error) {
	return e.collaborative.Recommend(ctx, userID, limit)
}

func (e *Engine) RecommendHybrid(ctx context.Context, userID string, limit int) ([]Recommendation, error) {
	return e.hybrid.Recommend(ctx, userID, limit)
}

func (e *Engine) ExpressInterest(ctx context.Context, from, to string, kind database.InterestKind) (*InterestResult, error) {
	return e.interests.ExpressInterest(ctx, from, to, kind)
}

func (e *Engine) FindPotentialMatches(ctx context.Context, userID string, limit int) ([]Recommendation, error) {
	return e.matches.FindPotentialMatches(ctx, userID, limit)
}

func (e *Engine) ListMatches(ctx context.Context, userID string) ([]*database.Match, error) {
	return e.matches.ListMatches(ctx, userID)
}

func (e *Engine) Unmatch(ctx context.Context, matchID, userID string) (*database.Match, error) {
	return e.matches.Unmatch(ctx, matchID, userID)
}

func (e *Engine) RecordRecommendations(ctx context.Context, userID string, recs []Recommendation) ([]*database.Recommendation, error) {
	return e.recorder.RecordRecommendations(ctx, userID, recs)
}

func (e *Engine) RecommendationHistory(ctx context.Context, userID string, limit int) ([]*database.Recommendation, error) {
	return e.recorder.History(ctx, userID, limit)
}
