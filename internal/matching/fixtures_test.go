package matching

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meetsmatch/matchengine/internal/database"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func birthday(age int) *time.Time {
	dob := time.Date(fixedNow.Year()-age, time.January, 15, 0, 0, 0, 0, time.UTC)
	return &dob
}

// world seeds a MemoryStore for engine tests
type world struct {
	t     *testing.T
	ctx   context.Context
	store *database.MemoryStore
}

func newWorld(t *testing.T) *world {
	t.Helper()
	return &world{t: t, ctx: context.Background(), store: database.NewMemoryStore()}
}

func (w *world) user(id string, status database.AccountStatus) {
	w.t.Helper()
	require.NoError(w.t, w.store.CreateUser(w.ctx, &database.User{ID: id, AccountStatus: status}))
}

// member creates an active user with a profile
func (w *world) member(id string, p database.Profile) {
	w.t.Helper()
	w.user(id, database.AccountActive)
	p.UserID = id
	require.NoError(w.t, w.store.SaveProfile(w.ctx, &p))
}

// memberWithStatus creates a user with the given account status and a profile
func (w *world) memberWithStatus(id string, status database.AccountStatus, p database.Profile) {
	w.t.Helper()
	w.user(id, status)
	p.UserID = id
	require.NoError(w.t, w.store.SaveProfile(w.ctx, &p))
}

func (w *world) prefer(id string, p database.Preference) {
	w.t.Helper()
	p.UserID = id
	require.NoError(w.t, w.store.SavePreference(w.ctx, &p))
}

func (w *world) like(from, to string) {
	w.t.Helper()
	require.NoError(w.t, w.store.CreateInterest(w.ctx, &database.Interest{FromUser: from, ToUser: to, Kind: database.InterestLike}))
}

func (w *world) block(blocker, blocked string) {
	w.t.Helper()
	require.NoError(w.t, w.store.BlockUser(w.ctx, blocker, blocked))
}

func (w *world) recommended(userID, target string, at time.Time) {
	w.t.Helper()
	require.NoError(w.t, w.store.SaveRecommendations(w.ctx, []*database.Recommendation{{
		ID: fmt.Sprintf("rec-%s-%s", userID, target), UserID: userID, RecommendedUserID: target,
		Score: 0.5, Status: database.RecommendationActive, CreatedAt: at,
	}}))
}

// sequentialIDs returns a deterministic ID generator
func sequentialIDs(prefix string) func() string {
	var n int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, atomic.AddInt64(&n, 1))
	}
}

func testOptions(extra ...Option) []Option {
	return append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(sequentialIDs("id")),
	}, extra...)
}

// strongProfile shares seven equality attributes with itself for a 0.75
// attribute score between two copies
func strongProfile(name string) database.Profile {
	return database.Profile{
		FirstName:      name,
		Religion:       "Hindu",
		Caste:          "Brahmin",
		EducationLevel: "Masters",
		Profession:     "Engineer",
		Rashi:          "Mesh",
		Nakshatra:      "Ashwini",
		ManglikStatus:  "No",
	}
}
