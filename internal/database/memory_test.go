package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBundle(id, a, b string) *MatchBundle {
	lo, hi := CanonicalPair(a, b)
	now := time.Now().UTC()
	return &MatchBundle{
		Match: &Match{ID: id, UserLo: lo, UserHi: hi, CompatibilityScore: 0.9, Status: MatchActive, CreatedAt: now, UpdatedAt: now},
		Chat:  &Chat{ID: "chat-" + id, MatchID: id, InitiatorID: a, ReceiverID: b, State: ChatActive, CreatedAt: now},
		Notifications: []*Notification{
			{ID: "n1-" + id, UserID: a, Type: NotificationNewMatch, RelatedEntityType: "match", RelatedEntityID: id, CreatedAt: now},
			{ID: "n2-" + id, UserID: b, Type: NotificationNewMatch, RelatedEntityType: "match", RelatedEntityID: id, CreatedAt: now},
		},
	}
}

func TestMemoryStore_Users(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateUser(ctx, &User{ID: "b", AccountStatus: AccountActive}))
	require.NoError(t, s.CreateUser(ctx, &User{ID: "a", AccountStatus: AccountActive}))
	require.NoError(t, s.CreateUser(ctx, &User{ID: "c", AccountStatus: AccountSuspended}))

	ids, err := s.ListActiveUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	u, err := s.GetUser(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, AccountSuspended, u.AccountStatus)
}

func TestMemoryStore_Interests(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateInterest(ctx, &Interest{FromUser: "a", ToUser: "b", Kind: InterestLike}))
	err := s.CreateInterest(ctx, &Interest{FromUser: "a", ToUser: "b", Kind: InterestSuperLike})
	assert.ErrorIs(t, err, ErrDuplicateInterest)

	count, err := s.CountInterestsBetween(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.CreateInterest(ctx, &Interest{FromUser: "b", ToUser: "a", Kind: InterestLike}))
	require.NoError(t, s.CreateInterest(ctx, &Interest{FromUser: "c", ToUser: "b", Kind: InterestLike}))

	count, err = s.CountInterestsBetween(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	liked, err := s.ListLikedUserIDs(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, liked)

	edges, err := s.ListInterestsTo(ctx, []string{"b"})
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, "a", edges[0].FromUser)
	assert.Equal(t, "c", edges[1].FromUser)
}

func TestMemoryStore_Blocks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.BlockUser(ctx, "a", "b"))
	require.NoError(t, s.BlockUser(ctx, "c", "a"))

	blocked, err := s.IsBlocked(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, blocked)

	ids, err := s.ListBlockedUserIDs(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids)

	blocked, err = s.IsBlocked(ctx, "b", "c")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestMemoryStore_CreateMatchBundle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateMatchBundle(ctx, newBundle("m1", "bob", "alice")))

	m, err := s.GetMatchByPair(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "alice", m.UserLo)

	chat, err := s.GetChatByMatch(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, ChatActive, chat.State)
	assert.Equal(t, "bob", chat.InitiatorID)

	err = s.CreateMatchBundle(ctx, newBundle("m2", "alice", "bob"))
	assert.ErrorIs(t, err, ErrDuplicateMatch)
	assert.Equal(t, 1, s.MatchCount())
	assert.Equal(t, 2, s.NotificationCount())
}

func TestMemoryStore_CreateMatchBundleFaultLeavesNoRows(t *testing.T) {
	for _, op := range []string{FaultInsertMatch, FaultInsertChat, FaultInsertNotification} {
		t.Run(op, func(t *testing.T) {
			ctx := context.Background()
			s := NewMemoryStore()
			boom := errors.New("boom")
			s.InjectFault(op, boom)

			err := s.CreateMatchBundle(ctx, newBundle("m1", "a", "b"))
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, 0, s.MatchCount())
			assert.Equal(t, 0, s.NotificationCount())

			_, err = s.GetMatchByPair(ctx, "a", "b")
			assert.ErrorIs(t, err, ErrNotFound)

			s.InjectFault(op, nil)
			require.NoError(t, s.CreateMatchBundle(ctx, newBundle("m1", "a", "b")))
		})
	}
}

func TestMemoryStore_MatchStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateMatchBundle(ctx, newBundle("m1", "a", "b")))
	require.NoError(t, s.CreateMatchBundle(ctx, newBundle("m2", "a", "c")))

	m, err := s.UpdateMatchStatus(ctx, "m1", MatchUnmatched)
	require.NoError(t, err)
	assert.Equal(t, MatchUnmatched, m.Status)

	active, err := s.ListMatchesForUser(ctx, "a", MatchActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "m2", active[0].ID)

	all, err := s.ListMatchesForUser(ctx, "a", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.UpdateMatchStatus(ctx, "missing", MatchUnmatched)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Recommendations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	require.NoError(t, s.SaveRecommendations(ctx, []*Recommendation{
		{ID: "r1", UserID: "a", RecommendedUserID: "b", Score: 0.5, CreatedAt: old},
		{ID: "r2", UserID: "a", RecommendedUserID: "c", Score: 0.7, CreatedAt: recent},
		{ID: "r3", UserID: "z", RecommendedUserID: "d", Score: 0.9, CreatedAt: recent},
	}))

	ids, err := s.RecommendedUserIDs(ctx, "a", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids)

	ids, err = s.RecommendedUserIDs(ctx, "a", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids)

	recs, err := s.ListRecommendations(ctx, "a", 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "r2", recs[0].ID)
}

func TestMemoryStore_ReadFaults(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boom := errors.New("read failed")

	s.InjectFault(FaultGetProfile, boom)
	_, err := s.GetProfile(ctx, "a")
	assert.ErrorIs(t, err, boom)

	s.ClearFaults()
	_, err = s.GetProfile(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}
