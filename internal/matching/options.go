package matching

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/meetsmatch/matchengine/internal/database"
	apperrors "github.com/meetsmatch/matchengine/internal/errors"
	"github.com/meetsmatch/matchengine/internal/monitoring"
	"github.com/meetsmatch/matchengine/internal/telemetry"
)

// Option configures engine components
type Option func(*options)

type options struct {
	policy  Policy
	now     func() time.Time
	newID   func() string
	inst    *monitoring.EngineInstrumentation
	history RecommendationHistory
	marker  RecommendationMarker
}

func newOptions(opts []Option) options {
	o := options{
		policy: DefaultPolicy(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithPolicy overrides the default thresholds
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithClock sets the time source used for ages and recommendation windows
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator sets the generator for new entity IDs
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// WithInstrumentation enables spans and metrics
func WithInstrumentation(inst *monitoring.EngineInstrumentation) Option {
	return func(o *options) { o.inst = inst }
}

// WithHistory replaces the store as the source of already-recommended users
func WithHistory(h RecommendationHistory) Option {
	return func(o *options) { o.history = h }
}

// WithMarker registers a sink notified after recommendations are recorded
func WithMarker(m RecommendationMarker) Option {
	return func(o *options) { o.marker = m }
}

// operationLogger returns the contextual logger for one engine operation
func operationLogger(ctx context.Context, operation, userID string) *telemetry.ContextualLogger {
	return telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
		"operation": operation,
		"user_id":   userID,
	})
}

// storeError converts a store failure into an AppError
func storeError(ctx context.Context, op string, err error) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError(op, err).WithCorrelationID(telemetry.GetCorrelationID(ctx))
	}
	return apperrors.NewDatabaseError(op, err).WithCorrelationID(telemetry.GetCorrelationID(ctx))
}

// requireUser loads a user, mapping a missing row to a NotFound error
func requireUser(ctx context.Context, store ProfileReader, id string) (*database.User, error) {
	user, err := store.GetUser(ctx, id)
	if err != nil {
		if stderrors.Is(err, database.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("user", id).WithCorrelationID(telemetry.GetCorrelationID(ctx))
		}
		return nil, storeError(ctx, "get_user", err)
	}
	return user, nil
}

// optionalProfile returns nil without error when the user has no profile
func optionalProfile(ctx context.Context, store ProfileReader, userID string) (*database.Profile, error) {
	p, err := store.GetProfile(ctx, userID)
	if err != nil {
		if stderrors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, storeError(ctx, "get_profile", err)
	}
	return p, nil
}

// optionalPreference returns nil without error when the user has no preference
func optionalPreference(ctx context.Context, store ProfileReader, userID string) (*database.Preference, error) {
	p, err := store.GetPreference(ctx, userID)
	if err != nil {
		if stderrors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, storeError(ctx, "get_preference", err)
	}
	return p, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
