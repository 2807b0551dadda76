package matching

import (
	"fmt"
	"math"
	"time"
)

// Default engine policy values
const (
	DiscoveryThreshold       = 0.3
	MatchThreshold           = 0.7
	StrongMatchThreshold     = 0.8
	MutualInterestBoost      = 0.3
	MutualInterestEdges      = 2
	ContentBlendWeight       = 0.6
	CollaborativeBlendWeight = 0.4
	SimilarUserFanout        = 5
	DefaultLimit             = 10
)

// Policy holds the tunable thresholds of the engine. Discovery and commitment
// thresholds are deliberately separate knobs.
type Policy struct {
	DiscoveryThreshold       float64 `koanf:"discovery_threshold"`
	MatchThreshold           float64 `koanf:"match_threshold"`
	StrongMatchThreshold     float64 `koanf:"strong_match_threshold"`
	MutualInterestBoost      float64 `koanf:"mutual_interest_boost"`
	MutualInterestEdges      int     `koanf:"mutual_interest_edges"`
	ContentBlendWeight       float64 `koanf:"content_blend_weight"`
	CollaborativeBlendWeight float64 `koanf:"collaborative_blend_weight"`
	SimilarUserFanout        int     `koanf:"similar_user_fanout"`
	// DefaultLimit is the result size callers use when none is given
	DefaultLimit int `koanf:"default_limit"`

	// RecommendationExclusionWindow bounds how long a recommendation keeps
	// its target out of later results. Zero excludes forever.
	RecommendationExclusionWindow time.Duration `koanf:"recommendation_exclusion_window"`
}

// DefaultPolicy returns the standard engine policy
func DefaultPolicy() Policy {
	return Policy{
		DiscoveryThreshold:       DiscoveryThreshold,
		MatchThreshold:           MatchThreshold,
		StrongMatchThreshold:     StrongMatchThreshold,
		MutualInterestBoost:      MutualInterestBoost,
		MutualInterestEdges:      MutualInterestEdges,
		ContentBlendWeight:       ContentBlendWeight,
		CollaborativeBlendWeight: CollaborativeBlendWeight,
		SimilarUserFanout:        SimilarUserFanout,
		DefaultLimit:             DefaultLimit,
	}
}

// Validate reports the first inconsistent setting
func (p Policy) Validate() error {
	unit := []struct {
		name  string
		value float64
	}{
		{"discovery_threshold", p.DiscoveryThreshold},
		{"match_threshold", p.MatchThreshold},
		{"strong_match_threshold", p.StrongMatchThreshold},
		{"mutual_interest_boost", p.MutualInterestBoost},
		{"content_blend_weight", p.ContentBlendWeight},
		{"collaborative_blend_weight", p.CollaborativeBlendWeight},
	}
	for _, u := range unit {
		if u.value < 0 || u.value > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", u.name, u.value)
		}
	}
	if p.StrongMatchThreshold < p.MatchThreshold {
		return fmt.Errorf("strong_match_threshold (%v) must not be below match_threshold (%v)",
			p.StrongMatchThreshold, p.MatchThreshold)
	}
	if math.Abs(p.ContentBlendWeight+p.CollaborativeBlendWeight-1) > 1e-9 {
		return fmt.Errorf("blend weights must sum to 1, got %v",
			p.ContentBlendWeight+p.CollaborativeBlendWeight)
	}
	if p.MutualInterestEdges < 1 {
		return fmt.Errorf("mutual_interest_edges must be positive, got %d", p.MutualInterestEdges)
	}
	if p.SimilarUserFanout < 1 {
		return fmt.Errorf("similar_user_fanout must be positive, got %d", p.SimilarUserFanout)
	}
	if p.DefaultLimit < 1 {
		return fmt.Errorf("default_limit must be positive, got %d", p.DefaultLimit)
	}
	if p.RecommendationExclusionWindow < 0 {
		return fmt.Errorf("recommendation_exclusion_window must not be negative, got %s",
			p.RecommendationExclusionWindow)
	}
	return nil
}

// exclusionSince is the oldest recommendation time that still excludes a
// candidate. The zero time means the whole history.
func (p Policy) exclusionSince(now time.Time) time.Time {
	if p.RecommendationExclusionWindow <= 0 {
		return time.Time{}
	}
	return now.Add(-p.RecommendationExclusionWindow)
}
