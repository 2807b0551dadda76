package matching

import (
	"context"
	stderrors "errors"

	"github.com/meetsmatch/matchengine/internal/database"
	apperrors "github.com/meetsmatch/matchengine/internal/errors"
	"github.com/meetsmatch/matchengine/internal/monitoring"
	"github.com/meetsmatch/matchengine/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// InterestResult is the recorded like and the match attempt it triggered
type InterestResult struct {
	Interest *database.Interest `json:"interest"`
	Match    *MatchResult       `json:"match,omitempty"`
}

// InterestService records likes and attempts a match after each one
type InterestService struct {
	store   MatchCreatorStore
	creator *MatchCreator
	opts    options
}

func NewInterestService(store MatchCreatorStore, creator *MatchCreator, opts ...Option) *InterestService {
	return &InterestService{store: store, creator: creator, opts: newOptions(opts)}
}

// ExpressInterest records from's interest in to. An empty kind is a like.
// When the match attempt fails the recorded interest is still returned
// alongside the error.
func (s *InterestService) ExpressInterest(ctx context.Context, from, to string, kind database.InterestKind) (res *InterestResult, err error) {
	ctx = telemetry.EnsureCorrelationID(ctx)
	ctx, span := s.opts.inst.StartOperation(ctx, "ExpressInterest",
		attribute.String("user_id", from), attribute.String("target_id", to))
	defer func() { monitoring.EndOperation(span, err) }()

	correlationID := telemetry.GetCorrelationID(ctx)
	logger := operationLogger(ctx, "express_interest", from).WithField("target_id", to)

	if kind == "" {
		kind = database.InterestLike
	}
	if kind != database.InterestLike && kind != database.InterestSuperLike {
		return nil, apperrors.NewValidationError("kind", "unknown interest kind: "+string(kind)).
			WithCorrelationID(correlationID)
	}
	if from == to {
		return nil, apperrors.NewValidationError("target_id", "cannot express interest in yourself").
			WithCorrelationID(correlationID)
	}
	sender, err := requireUser(ctx, s.store, from)
	if err != nil {
		return nil, err
	}
	if !sender.IsActive() {
		return nil, apperrors.NewValidationError("user_id", "account is not active").
			WithCorrelationID(correlationID)
	}
	target, err := requireUser(ctx, s.store, to)
	if err != nil {
		return nil, err
	}
	if !target.IsActive() {
		return nil, apperrors.NewValidationError("target_id", "target account is not active").
			WithCorrelationID(correlationID)
	}

	blocked, err := s.store.IsBlocked(ctx, from, to)
	if err != nil {
		return nil, storeError(ctx, "is_blocked", err)
	}
	if blocked {
		return nil, apperrors.NewValidationError("target_id", "users are blocked").
			WithCorrelationID(correlationID)
	}

	interest := &database.Interest{
		ID:        s.opts.newID(),
		FromUser:  from,
		ToUser:    to,
		Kind:      kind,
		CreatedAt: s.opts.now(),
	}
	if err := s.store.CreateInterest(ctx, interest); err != nil {
		if stderrors.Is(err, database.ErrDuplicateInterest) {
			return nil, apperrors.NewConflictError("interest already expressed").
				WithCorrelationID(correlationID).
				WithMetadata("target_id", to)
		}
		return nil, storeError(ctx, "create_interest", err)
	}
	logger.WithField("kind", kind).Info("Interest recorded")

	res = &InterestResult{Interest: interest}
	res.Match, err = s.creator.TryCreateMatch(ctx, from, to)
	if err != nil {
		return res, err
	}
	return res, nil
}
