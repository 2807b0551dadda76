package matching

import (
	"testing"

	"github.com/meetsmatch/matchengine/internal/database"
	apperrors "github.com/meetsmatch/matchengine/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPotentialMatches(t *testing.T) {
	w := newWorld(t)
	w.member("me", strongProfile("Me"))
	w.member("matched", strongProfile("Matched"))
	w.member("blocked", strongProfile("Blocked"))
	w.member("open", strongProfile("Open"))
	w.member("weak", database.Profile{Religion: "Hindu"})
	w.member("picky", strongProfile("Picky"))
	w.prefer("picky", database.Preference{PreferredReligions: database.ParseStringSet("Buddhist")})
	w.block("blocked", "me")
	w.like("me", "matched")
	w.like("matched", "me")

	engine := NewEngine(w.store, testOptions()...)
	res, err := engine.TryCreateMatch(w.ctx, "me", "matched")
	require.NoError(t, err)
	require.Equal(t, MatchCreated, res.Outcome)

	recs, err := engine.FindPotentialMatches(w.ctx, "me", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"open"}, candidateIDs(recs))
	assert.InDelta(t, 0.75, recs[0].Score, 1e-9)
	assert.Equal(t, "Compatibility score: 75%", recs[0].Reason)
}

func TestFindPotentialMatches_MutualBoostApplies(t *testing.T) {
	w := newWorld(t)
	w.member("me", database.Profile{Religion: "Hindu"})
	w.member("liked", database.Profile{Religion: "Hindu"})
	w.member("plain", database.Profile{Religion: "Hindu"})
	w.like("me", "liked")
	w.like("liked", "me")

	recs, err := NewEngine(w.store, testOptions()...).FindPotentialMatches(w.ctx, "me", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"liked"}, candidateIDs(recs))
	assert.InDelta(t, 0.45, recs[0].Score, 1e-9)
}

func TestUnmatch(t *testing.T) {
	w := newWorld(t)
	w.member("a", strongProfile("A"))
	w.member("b", strongProfile("B"))
	w.member("c", strongProfile("C"))
	w.like("a", "b")
	w.like("b", "a")
	engine := NewEngine(w.store, testOptions()...)

	res, err := engine.TryCreateMatch(w.ctx, "a", "b")
	require.NoError(t, err)
	matchID := res.Match.ID

	_, err = engine.Unmatch(w.ctx, matchID, "c")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))

	_, err = engine.Unmatch(w.ctx, "missing", "a")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))

	m, err := engine.Unmatch(w.ctx, matchID, "b")
	require.NoError(t, err)
	assert.Equal(t, database.MatchUnmatched, m.Status)

	again, err := engine.Unmatch(w.ctx, matchID, "a")
	require.NoError(t, err)
	assert.Equal(t, database.MatchUnmatched, again.Status)

	active, err := engine.ListMatches(w.ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.NotNil(t, active)

	recs, err := engine.FindPotentialMatches(w.ctx, "a", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, candidateIDs(recs))
}

func TestListMatches_UnknownUser(t *testing.T) {
	w := newWorld(t)
	_, err := NewEngine(w.store, testOptions()...).ListMatches(w.ctx, "ghost")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}
