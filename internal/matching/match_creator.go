package matching

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/meetsmatch/matchengine/internal/database"
	apperrors "github.com/meetsmatch/matchengine/internal/errors"
	"github.com/meetsmatch/matchengine/internal/monitoring"
	"github.com/meetsmatch/matchengine/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// MatchOutcome is the result kind of a match creation attempt
type MatchOutcome string

const (
	MatchCreated       MatchOutcome = "created"
	MatchAlreadyExists MatchOutcome = "already_exists"
	MatchNotCompatible MatchOutcome = "not_compatible"
)

// MatchResult is returned by TryCreateMatch. Match is nil when the outcome
// is MatchNotCompatible.
type MatchResult struct {
	Outcome       MatchOutcome    `json:"outcome"`
	Match         *database.Match `json:"match,omitempty"`
	Compatibility *Compatibility  `json:"compatibility,omitempty"`
}

// MatchCreatorStore is what the match creator reads and writes
type MatchCreatorStore interface {
	ScoringStore
	MatchStore
}

// MatchCreator turns a compatible pair into a match with its chat and
// notifications
type MatchCreator struct {
	store  MatchCreatorStore
	scorer *Scorer
	opts   options
}

func NewMatchCreator(store MatchCreatorStore, opts ...Option) *MatchCreator {
	return &MatchCreator{
		store:  store,
		scorer: NewScorer(store, opts...),
		opts:   newOptions(opts),
	}
}

// TryCreateMatch creates a match between a and b when their score clears the
// match threshold and either they like each other or the score clears the
// strong threshold. It is idempotent per unordered pair: an existing match,
// including one created concurrently, is returned as MatchAlreadyExists.
// A failed write is a fatal error and leaves nothing behind. Pairs where
// either account is not active are never matched.
func (m *MatchCreator) TryCreateMatch(ctx context.Context, a, b string) (res *MatchResult, err error) {
	ctx = telemetry.EnsureCorrelationID(ctx)
	ctx, span := m.opts.inst.StartOperation(ctx, "TryCreateMatch",
		attribute.String("user_id", a), attribute.String("target_id", b))
	defer func() { monitoring.EndOperation(span, err) }()

	logger := operationLogger(ctx, "try_create_match", a).WithField("target_id", b)

	if a == b {
		return nil, apperrors.NewValidationError("target_id", "cannot match a user with themselves").
			WithCorrelationID(telemetry.GetCorrelationID(ctx))
	}
	userA, err := requireUser(ctx, m.store, a)
	if err != nil {
		return nil, err
	}
	userB, err := requireUser(ctx, m.store, b)
	if err != nil {
		return nil, err
	}
	if !userA.IsActive() || !userB.IsActive() {
		logger.WithFields(map[string]interface{}{
			"user_status":   userA.AccountStatus,
			"target_status": userB.AccountStatus,
		}).Debug("Inactive account, not creating match")
		m.opts.inst.RecordMatchAttempt(ctx, monitoring.OutcomeInactive)
		return &MatchResult{
			Outcome:       MatchNotCompatible,
			Compatibility: &Compatibility{UserA: a, UserB: b},
		}, nil
	}

	existing, err := m.existingMatch(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.WithField("match_id", existing.ID).Debug("Match already exists for pair")
		m.opts.inst.RecordMatchAttempt(ctx, monitoring.OutcomeAlreadyExists)
		return &MatchResult{Outcome: MatchAlreadyExists, Match: existing}, nil
	}

	blocked, err := m.store.IsBlocked(ctx, a, b)
	if err != nil {
		return nil, storeError(ctx, "is_blocked", err)
	}
	if blocked {
		logger.Debug("Pair is blocked, not creating match")
		m.opts.inst.RecordMatchAttempt(ctx, monitoring.OutcomeBlocked)
		return &MatchResult{
			Outcome:       MatchNotCompatible,
			Compatibility: &Compatibility{UserA: a, UserB: b, Blocked: true},
		}, nil
	}

	compat, err := m.scorer.evaluateUnblocked(ctx, a, b)
	if err != nil {
		return nil, err
	}
	m.opts.inst.RecordCompatibility(ctx, compat.Score)

	if !m.qualifies(compat) {
		logger.WithFields(map[string]interface{}{
			"score":        compat.Score,
			"mutual_edges": compat.MutualEdges,
		}).Debug("Pair does not qualify for a match")
		m.opts.inst.RecordMatchAttempt(ctx, monitoring.OutcomeNotCompatible)
		return &MatchResult{Outcome: MatchNotCompatible, Compatibility: compat}, nil
	}

	bundle := m.buildBundle(a, b, compat)
	if err := m.store.CreateMatchBundle(ctx, bundle); err != nil {
		if stderrors.Is(err, database.ErrDuplicateMatch) {
			winner, lookupErr := m.existingMatch(ctx, a, b)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if winner == nil {
				return nil, apperrors.NewConflictError("match collision reported but no match found").
					WithCorrelationID(telemetry.GetCorrelationID(ctx))
			}
			logger.WithField("match_id", winner.ID).Warn("Concurrent match creation detected, returning existing match")
			m.opts.inst.RecordMatchAttempt(ctx, monitoring.OutcomeAlreadyExists)
			return &MatchResult{Outcome: MatchAlreadyExists, Match: winner, Compatibility: compat}, nil
		}

		logger.WithError(err).Error("Match creation transaction failed")
		m.opts.inst.RecordMatchAttempt(ctx, monitoring.OutcomeFailed)
		return nil, apperrors.NewFatalError("create_match", err).
			WithCorrelationID(telemetry.GetCorrelationID(ctx)).
			WithMetadata("user_lo", bundle.Match.UserLo).
			WithMetadata("user_hi", bundle.Match.UserHi)
	}

	logger.WithFields(map[string]interface{}{
		"match_id": bundle.Match.ID,
		"score":    compat.Score,
	}).Info("Match created")
	m.opts.inst.RecordMatchAttempt(ctx, monitoring.OutcomeCreated)
	return &MatchResult{Outcome: MatchCreated, Match: bundle.Match, Compatibility: compat}, nil
}

func (m *MatchCreator) qualifies(c *Compatibility) bool {
	p := m.opts.policy
	if c.Score < p.MatchThreshold {
		return false
	}
	return c.MutualEdges >= p.MutualInterestEdges || c.Score >= p.StrongMatchThreshold
}

func (m *MatchCreator) existingMatch(ctx context.Context, a, b string) (*database.Match, error) {
	match, err := m.store.GetMatchByPair(ctx, a, b)
	if err != nil {
		if stderrors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, storeError(ctx, "get_match_by_pair", err)
	}
	return match, nil
}

// buildBundle assembles the match, a chat opened by a towards b, and one
// notification per party
func (m *MatchCreator) buildBundle(a, b string, c *Compatibility) *database.MatchBundle {
	now := m.opts.now()
	lo, hi := database.CanonicalPair(a, b)

	match := &database.Match{
		ID:                 m.opts.newID(),
		UserLo:             lo,
		UserHi:             hi,
		CompatibilityScore: c.Score,
		Status:             database.MatchActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	chat := &database.Chat{
		ID:          m.opts.newID(),
		MatchID:     match.ID,
		InitiatorID: a,
		ReceiverID:  b,
		State:       database.ChatActive,
		CreatedAt:   now,
	}

	return &database.MatchBundle{
		Match: match,
		Chat:  chat,
		Notifications: []*database.Notification{
			m.newMatchNotification(a, c.profileB, match.ID),
			m.newMatchNotification(b, c.profileA, match.ID),
		},
	}
}

func (m *MatchCreator) newMatchNotification(recipient string, partner *database.Profile, matchID string) *database.Notification {
	body := "You have a new match!"
	if partner != nil && partner.FirstName != "" {
		body = fmt.Sprintf("You have a new match with %s!", partner.FirstName)
	}
	return &database.Notification{
		ID:                m.opts.newID(),
		UserID:            recipient,
		Type:              database.NotificationNewMatch,
		Title:             "New Match!",
		Body:              body,
		RelatedEntityType: "match",
		RelatedEntityID:   matchID,
		CreatedAt:         m.opts.now(),
	}
}
