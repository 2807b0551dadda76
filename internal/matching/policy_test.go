package matching

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/meetsmatch/matchengine/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	tests := []struct {
		name   string
		mutate func(*Policy)
		errMsg string
	}{
		{"threshold out of range", func(p *Policy) { p.DiscoveryThreshold = 1.5 }, "discovery_threshold"},
		{"negative boost", func(p *Policy) { p.MutualInterestBoost = -0.1 }, "mutual_interest_boost"},
		{"strong below match", func(p *Policy) { p.StrongMatchThreshold = 0.6 }, "strong_match_threshold"},
		{"weights do not sum", func(p *Policy) { p.ContentBlendWeight = 0.7 }, "blend weights"},
		{"zero edges", func(p *Policy) { p.MutualInterestEdges = 0 }, "mutual_interest_edges"},
		{"zero fanout", func(p *Policy) { p.SimilarUserFanout = 0 }, "similar_user_fanout"},
		{"zero limit", func(p *Policy) { p.DefaultLimit = 0 }, "default_limit"},
		{"negative window", func(p *Policy) { p.RecommendationExclusionWindow = -time.Hour }, "recommendation_exclusion_window"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			err := p.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestPolicy_ExclusionSince(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, p.exclusionSince(fixedNow).IsZero())

	p.RecommendationExclusionWindow = 30 * 24 * time.Hour
	assert.Equal(t, fixedNow.AddDate(0, 0, -30), p.exclusionSince(fixedNow))
}

func TestCheckLimit(t *testing.T) {
	assert.NoError(t, checkLimit(context.Background(), 0))
	assert.NoError(t, checkLimit(context.Background(), 4))

	err := checkLimit(context.Background(), -3)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
}
