package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStringSet(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected StringSet
	}{
		{"empty", "", nil},
		{"whitespace only", "  ,  , ", nil},
		{"single", "reading", StringSet{"reading"}},
		{"trims tokens", " reading , music ", StringSet{"reading", "music"}},
		{"drops duplicates", "music,music,travel", StringSet{"music", "travel"}},
		{"case sensitive", "Music,music", StringSet{"Music", "music"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseStringSet(tt.raw))
		})
	}
}

func TestStringSet_ScanAndValue(t *testing.T) {
	var s StringSet
	require.NoError(t, s.Scan([]byte("a, b,,c")))
	assert.Equal(t, StringSet{"a", "b", "c"}, s)

	require.NoError(t, s.Scan("x"))
	assert.Equal(t, StringSet{"x"}, s)

	require.NoError(t, s.Scan(nil))
	assert.Nil(t, s)

	assert.Error(t, s.Scan(42))

	v, err := StringSet{"a", "b"}.Value()
	require.NoError(t, err)
	assert.Equal(t, "a,b", v)

	v, err = StringSet(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStringSet_Contains(t *testing.T) {
	s := ParseStringSet("Hindu,Jain")
	assert.True(t, s.Contains("Hindu"))
	assert.False(t, s.Contains("hindu"))
	assert.Equal(t, StringSet{"Hindu", "Jain"}, ParseStringSet("Jain,Hindu").Sorted())
}

func TestCanonicalPair(t *testing.T) {
	lo, hi := CanonicalPair("bob", "alice")
	assert.Equal(t, "alice", lo)
	assert.Equal(t, "bob", hi)

	lo2, hi2 := CanonicalPair("alice", "bob")
	assert.Equal(t, lo, lo2)
	assert.Equal(t, hi, hi2)
}

func TestMatch_Partner(t *testing.T) {
	m := &Match{UserLo: "alice", UserHi: "bob"}
	assert.True(t, m.Involves("alice"))
	assert.True(t, m.Involves("bob"))
	assert.False(t, m.Involves("carol"))
	assert.Equal(t, "bob", m.Partner("alice"))
	assert.Equal(t, "alice", m.Partner("bob"))
}

func TestUser_IsActive(t *testing.T) {
	assert.True(t, (&User{AccountStatus: AccountActive}).IsActive())
	for _, status := range []AccountStatus{AccountInactive, AccountSuspended, AccountDeleted} {
		assert.False(t, (&User{AccountStatus: status}).IsActive(), status)
	}
}
