package matching

import (
	"context"
	"time"

	"github.com/meetsmatch/matchengine/internal/database"
)

// ProfileReader reads the scoring inputs of a user
type ProfileReader interface {
	GetUser(ctx context.Context, id string) (*database.User, error)
	ListActiveUserIDs(ctx context.Context) ([]string, error)
	GetProfile(ctx context.Context, userID string) (*database.Profile, error)
	GetPreference(ctx context.Context, userID string) (*database.Preference, error)
}

// InterestStore reads and records like edges
type InterestStore interface {
	CreateInterest(ctx context.Context, interest *database.Interest) error
	CountInterestsBetween(ctx context.Context, a, b string) (int, error)
	ListLikedUserIDs(ctx context.Context, userID string) ([]string, error)
	ListInterestsTo(ctx context.Context, targets []string) ([]*database.Interest, error)
}

// BlockReader resolves block relations in both directions
type BlockReader interface {
	IsBlocked(ctx context.Context, a, b string) (bool, error)
	ListBlockedUserIDs(ctx context.Context, userID string) ([]string, error)
}

// MatchStore persists matches. CreateMatchBundle must be all-or-nothing and
// return database.ErrDuplicateMatch when the pair already has a match.
type MatchStore interface {
	GetMatch(ctx context.Context, id string) (*database.Match, error)
	GetMatchByPair(ctx context.Context, a, b string) (*database.Match, error)
	ListMatchesForUser(ctx context.Context, userID string, status database.MatchStatus) ([]*database.Match, error)
	CreateMatchBundle(ctx context.Context, bundle *database.MatchBundle) error
	UpdateMatchStatus(ctx context.Context, matchID string, status database.MatchStatus) (*database.Match, error)
}

// RecommendationHistory answers which users were recommended to a user at or
// after since. The zero since covers the whole history.
type RecommendationHistory interface {
	RecommendedUserIDs(ctx context.Context, userID string, since time.Time) ([]string, error)
}

// RecommendationStore persists recommendation rows
type RecommendationStore interface {
	RecommendationHistory
	SaveRecommendations(ctx context.Context, recs []*database.Recommendation) error
	ListRecommendations(ctx context.Context, userID string, limit int) ([]*database.Recommendation, error)
}

// RecommendationMarker is told about recommendations after they are persisted
type RecommendationMarker interface {
	MarkRecommended(ctx context.Context, userID string, recommendedIDs []string, at time.Time) error
}

// Store is everything the engine needs from persistence
type Store interface {
	ProfileReader
	InterestStore
	BlockReader
	MatchStore
	RecommendationStore
}

var (
	_ Store = (*database.PostgresStore)(nil)
	_ Store = (*database.MemoryStore)(nil)
)
