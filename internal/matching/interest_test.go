package matching

import (
	"errors"
	"testing"

	"github.com/meetsmatch/matchengine/internal/database"
	apperrors "github.com/meetsmatch/matchengine/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpressInterest_SecondLikeCreatesMatch(t *testing.T) {
	w := newWorld(t)
	w.member("a", strongProfile("Asha"))
	w.member("b", strongProfile("Bikash"))
	engine := NewEngine(w.store, testOptions()...)

	first, err := engine.ExpressInterest(w.ctx, "a", "b", "")
	require.NoError(t, err)
	assert.Equal(t, database.InterestLike, first.Interest.Kind)
	assert.Equal(t, fixedNow, first.Interest.CreatedAt)
	require.NotNil(t, first.Match)
	assert.Equal(t, MatchNotCompatible, first.Match.Outcome)

	second, err := engine.ExpressInterest(w.ctx, "b", "a", database.InterestSuperLike)
	require.NoError(t, err)
	assert.Equal(t, database.InterestSuperLike, second.Interest.Kind)
	require.Equal(t, MatchCreated, second.Match.Outcome)
	assert.Equal(t, 1.0, second.Match.Match.CompatibilityScore)

	matches, err := engine.ListMatches(w.ctx, "a")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, second.Match.Match.ID, matches[0].ID)
}

func TestExpressInterest_Validation(t *testing.T) {
	w := newWorld(t)
	w.member("a", strongProfile("A"))
	w.member("b", strongProfile("B"))
	w.member("c", strongProfile("C"))
	w.block("c", "a")
	engine := NewEngine(w.store, testOptions()...)

	tests := []struct {
		name     string
		from, to string
		kind     database.InterestKind
		errType  apperrors.ErrorType
	}{
		{"self", "a", "a", "", apperrors.ErrorTypeValidation},
		{"unknown kind", "a", "b", "wink", apperrors.ErrorTypeValidation},
		{"unknown target", "a", "ghost", "", apperrors.ErrorTypeNotFound},
		{"unknown sender", "ghost", "a", "", apperrors.ErrorTypeNotFound},
		{"blocked", "a", "c", "", apperrors.ErrorTypeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.ExpressInterest(w.ctx, tt.from, tt.to, tt.kind)
			require.Error(t, err)
			assert.True(t, apperrors.IsErrorType(err, tt.errType), "got %v", err)
		})
	}
}

func TestExpressInterest_InactiveAccounts(t *testing.T) {
	w := newWorld(t)
	w.member("a", strongProfile("Asha"))
	w.memberWithStatus("s", database.AccountSuspended, strongProfile("Sita"))
	w.memberWithStatus("d", database.AccountDeleted, strongProfile("Dipa"))
	engine := NewEngine(w.store, testOptions()...)

	for _, pair := range [][2]string{{"a", "s"}, {"a", "d"}, {"s", "a"}} {
		res, err := engine.ExpressInterest(w.ctx, pair[0], pair[1], database.InterestLike)
		require.Error(t, err)
		assert.Nil(t, res)
		assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation), "got %v", err)

		n, err := w.store.CountInterestsBetween(w.ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.Zero(t, n)
	}
	assert.Equal(t, 0, w.store.MatchCount())
}

func TestExpressInterest_Duplicate(t *testing.T) {
	w := newWorld(t)
	w.member("a", strongProfile("A"))
	w.member("b", strongProfile("B"))
	engine := NewEngine(w.store, testOptions()...)

	_, err := engine.ExpressInterest(w.ctx, "a", "b", database.InterestLike)
	require.NoError(t, err)

	_, err = engine.ExpressInterest(w.ctx, "a", "b", database.InterestSuperLike)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConflict))
}

func TestExpressInterest_MatchFailureKeepsInterest(t *testing.T) {
	w := newWorld(t)
	w.member("a", strongProfile("A"))
	w.member("b", strongProfile("B"))
	w.like("b", "a")
	w.store.InjectFault(database.FaultInsertNotification, errors.New("constraint violation"))
	engine := NewEngine(w.store, testOptions()...)

	res, err := engine.ExpressInterest(w.ctx, "a", "b", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeFatal))
	require.NotNil(t, res)
	assert.Equal(t, "a", res.Interest.FromUser)
	assert.Nil(t, res.Match)

	edges, err := w.store.CountInterestsBetween(w.ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, edges)
	assert.Equal(t, 0, w.store.MatchCount())
}
