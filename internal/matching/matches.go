package matching

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/meetsmatch/matchengine/internal/database"
	apperrors "github.com/meetsmatch/matchengine/internal/errors"
	"github.com/meetsmatch/matchengine/internal/monitoring"
	"github.com/meetsmatch/matchengine/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// MatchService lists, discovers and dissolves matches
type MatchService struct {
	store  MatchCreatorStore
	scorer *Scorer
	opts   options
}

func NewMatchService(store MatchCreatorStore, opts ...Option) *MatchService {
	return &MatchService{store: store, scorer: NewScorer(store, opts...), opts: newOptions(opts)}
}

// FindPotentialMatches scores every active user the requester is neither
// matched with nor blocked from using the mutual score, and keeps those above
// the discovery threshold.
func (s *MatchService) FindPotentialMatches(ctx context.Context, userID string, limit int) (recs []Recommendation, err error) {
	started := time.Now()
	ctx, span := s.opts.inst.StartOperation(ctx, "FindPotentialMatches",
		attribute.String("user_id", userID), attribute.Int("limit", limit))
	defer func() {
		if err == nil {
			s.opts.inst.RecordRecommendations(ctx, SourceDiscovery, len(recs), time.Since(started))
		}
		monitoring.EndOperation(span, err)
	}()

	if err := checkLimit(ctx, limit); err != nil {
		return nil, err
	}

	if _, err := requireUser(ctx, s.store, userID); err != nil {
		return nil, err
	}

	matches, err := s.store.ListMatchesForUser(ctx, userID, "")
	if err != nil {
		return nil, storeError(ctx, "list_matches", err)
	}
	blocked, err := s.store.ListBlockedUserIDs(ctx, userID)
	if err != nil {
		return nil, storeError(ctx, "list_blocked", err)
	}
	excluded := toSet(blocked)
	for _, m := range matches {
		excluded[m.Partner(userID)] = struct{}{}
	}
	excluded[userID] = struct{}{}

	ids, err := s.store.ListActiveUserIDs(ctx)
	if err != nil {
		return nil, storeError(ctx, "list_active_users", err)
	}

	for _, id := range ids {
		if err := checkCancelled(ctx, "find_potential_matches"); err != nil {
			return nil, err
		}
		if _, skip := excluded[id]; skip {
			continue
		}
		c, err := s.scorer.evaluateUnblocked(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if c.Score <= s.opts.policy.DiscoveryThreshold {
			continue
		}
		recs = append(recs, Recommendation{
			CandidateID: id,
			Score:       c.Score,
			Reason:      fmt.Sprintf("Compatibility score: %.0f%%", c.Score*100),
		})
	}

	return rank(recs, limit), nil
}

// ListMatches returns the user's active matches, newest first
func (s *MatchService) ListMatches(ctx context.Context, userID string) ([]*database.Match, error) {
	if _, err := requireUser(ctx, s.store, userID); err != nil {
		return nil, err
	}
	matches, err := s.store.ListMatchesForUser(ctx, userID, database.MatchActive)
	if err != nil {
		return nil, storeError(ctx, "list_matches", err)
	}
	if matches == nil {
		matches = []*database.Match{}
	}
	return matches, nil
}

// Unmatch marks the match unmatched on behalf of one of its parties. The row
// is kept, so the pair stays matched for idempotency purposes.
func (s *MatchService) Unmatch(ctx context.Context, matchID, userID string) (m *database.Match, err error) {
	ctx, span := s.opts.inst.StartOperation(ctx, "Unmatch",
		attribute.String("user_id", userID), attribute.String("match_id", matchID))
	defer func() { monitoring.EndOperation(span, err) }()

	correlationID := telemetry.GetCorrelationID(ctx)

	m, err = s.store.GetMatch(ctx, matchID)
	if err != nil {
		if stderrors.Is(err, database.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("match", matchID).WithCorrelationID(correlationID)
		}
		return nil, storeError(ctx, "get_match", err)
	}
	if !m.Involves(userID) {
		return nil, apperrors.NewNotFoundError("match", matchID).WithCorrelationID(correlationID)
	}
	if m.Status == database.MatchUnmatched {
		return m, nil
	}

	m, err = s.store.UpdateMatchStatus(ctx, matchID, database.MatchUnmatched)
	if err != nil {
		return nil, storeError(ctx, "update_match_status", err)
	}
	operationLogger(ctx, "unmatch", userID).WithField("match_id", matchID).Info("Match dissolved")
	return m, nil
}
