package matching

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/meetsmatch/matchengine/internal/database"
	"github.com/meetsmatch/matchengine/internal/monitoring"
	"go.opentelemetry.io/otel/attribute"
)

// attributeRule scores one profile attribute. An empty extracted value on
// either side contributes nothing.
type attributeRule struct {
	name    string
	weight  float64
	extract func(*database.Profile) string
	compare func(a, b string) float64
}

func equalValues(a, b string) float64 {
	if a == b {
		return 1
	}
	return 0
}

// jaccard compares two comma-separated token sets
func jaccard(a, b string) float64 {
	left, right := database.ParseStringSet(a), database.ParseStringSet(b)
	union := make(map[string]struct{}, len(left)+len(right))
	for _, t := range left {
		union[t] = struct{}{}
	}
	intersection := 0
	for _, t := range right {
		if _, ok := union[t]; ok {
			intersection++
		}
		union[t] = struct{}{}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}

func salaryText(p *database.Profile) string {
	if p.AnnualSalary == nil || *p.AnnualSalary == 0 {
		return ""
	}
	return strconv.FormatInt(*p.AnnualSalary, 10)
}

// attributeRules is the fixed weighted attribute table. Weights sum to 1.
var attributeRules = []attributeRule{
	{"religion", 0.15, func(p *database.Profile) string { return p.Religion }, equalValues},
	{"caste", 0.10, func(p *database.Profile) string { return p.Caste }, equalValues},
	{"education_level", 0.10, func(p *database.Profile) string { return p.EducationLevel }, equalValues},
	{"profession", 0.10, func(p *database.Profile) string { return p.Profession }, equalValues},
	{"city", 0.05, func(p *database.Profile) string { return p.City }, equalValues},
	{"district", 0.05, func(p *database.Profile) string { return p.District }, equalValues},
	{"hobbies", 0.10, func(p *database.Profile) string { return p.Hobbies.String() }, jaccard},
	{"annual_salary", 0.05, salaryText, equalValues},
	{"rashi", 0.10, func(p *database.Profile) string { return p.Rashi }, equalValues},
	{"nakshatra", 0.10, func(p *database.Profile) string { return p.Nakshatra }, equalValues},
	{"manglik_status", 0.10, func(p *database.Profile) string { return p.ManglikStatus }, equalValues},
}

// AttributeSimilarity is the weighted attribute component of the score,
// rounded to nine decimal places so threshold comparisons are not skewed by
// floating point summation.
func AttributeSimilarity(a, b *database.Profile) float64 {
	if a == nil || b == nil {
		return 0
	}
	score := 0.0
	for _, rule := range attributeRules {
		left, right := rule.extract(a), rule.extract(b)
		if left == "" || right == "" {
			continue
		}
		score += rule.weight * rule.compare(left, right)
	}
	return math.Round(score*1e9) / 1e9
}

// AgeOn returns the age in whole years on the given day
func AgeOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// FilterViolation names the hard filter a profile fails, or "" when it
// passes. A nil preference never filters.
func FilterViolation(pref *database.Preference, candidate *database.Profile, now time.Time) string {
	if pref == nil || candidate == nil {
		return ""
	}
	if candidate.DateOfBirth != nil {
		age := AgeOn(*candidate.DateOfBirth, now)
		if pref.MinAge != nil && age < *pref.MinAge {
			return "min_age"
		}
		if pref.MaxAge != nil && age > *pref.MaxAge {
			return "max_age"
		}
	}
	if candidate.HeightCM != nil {
		if pref.MinHeightCM != nil && *candidate.HeightCM < *pref.MinHeightCM {
			return "min_height"
		}
		if pref.MaxHeightCM != nil && *candidate.HeightCM > *pref.MaxHeightCM {
			return "max_height"
		}
	}
	if len(pref.PreferredReligions) > 0 && candidate.Religion != "" &&
		!pref.PreferredReligions.Contains(candidate.Religion) {
		return "preferred_religions"
	}
	if len(pref.PreferredCastes) > 0 && candidate.Caste != "" &&
		!pref.PreferredCastes.Contains(candidate.Caste) {
		return "preferred_castes"
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ScoringStore is what the scorer reads
type ScoringStore interface {
	ProfileReader
	InterestStore
	BlockReader
}

// Compatibility explains one pair score
type Compatibility struct {
	UserA       string  `json:"user_a"`
	UserB       string  `json:"user_b"`
	Score       float64 `json:"score"`
	Attribute   float64 `json:"attribute_score"`
	MutualEdges int     `json:"mutual_edges"`
	Boosted     bool    `json:"boosted"`
	Blocked     bool    `json:"blocked,omitempty"`
	MissingData bool    `json:"missing_profile,omitempty"`
	FilteredBy  string  `json:"filtered_by,omitempty"`

	profileA, profileB *database.Profile
}

// Scorer computes the mutual compatibility of two users
type Scorer struct {
	store ScoringStore
	opts  options
}

func NewScorer(store ScoringStore, opts ...Option) *Scorer {
	return &Scorer{store: store, opts: newOptions(opts)}
}

// Score returns the compatibility of a and b within [0,1]
func (s *Scorer) Score(ctx context.Context, a, b string) (float64, error) {
	c, err := s.Evaluate(ctx, a, b)
	if err != nil {
		return 0, err
	}
	return c.Score, nil
}

// Evaluate scores the pair and reports how the score was reached. Unknown
// users are NotFound errors; a missing profile or a block scores 0.
func (s *Scorer) Evaluate(ctx context.Context, a, b string) (c *Compatibility, err error) {
	ctx, span := s.opts.inst.StartOperation(ctx, "Score",
		attribute.String("user_id", a), attribute.String("target_id", b))
	defer func() { monitoring.EndOperation(span, err) }()

	logger := operationLogger(ctx, "score", a).WithField("target_id", b)

	if _, err := requireUser(ctx, s.store, a); err != nil {
		return nil, err
	}
	if _, err := requireUser(ctx, s.store, b); err != nil {
		return nil, err
	}

	c = &Compatibility{UserA: a, UserB: b}

	blocked, err := s.store.IsBlocked(ctx, a, b)
	if err != nil {
		return nil, storeError(ctx, "is_blocked", err)
	}
	if blocked {
		logger.Debug("Pair is blocked, scoring 0")
		c.Blocked = true
		return c, nil
	}

	c, err = s.evaluateUnblocked(ctx, a, b)
	if err != nil {
		return nil, err
	}
	s.opts.inst.RecordCompatibility(ctx, c.Score)
	logger.WithFields(map[string]interface{}{
		"score":       c.Score,
		"filtered_by": c.FilteredBy,
		"boosted":     c.Boosted,
	}).Debug("Computed compatibility score")
	return c, nil
}

// evaluateUnblocked runs the profile, filter, attribute and boost steps for
// two known users.
func (s *Scorer) evaluateUnblocked(ctx context.Context, a, b string) (*Compatibility, error) {
	c := &Compatibility{UserA: a, UserB: b}

	profileA, err := optionalProfile(ctx, s.store, a)
	if err != nil {
		return nil, err
	}
	profileB, err := optionalProfile(ctx, s.store, b)
	if err != nil {
		return nil, err
	}
	if profileA == nil || profileB == nil {
		c.MissingData = true
		return c, nil
	}
	c.profileA, c.profileB = profileA, profileB

	prefA, err := optionalPreference(ctx, s.store, a)
	if err != nil {
		return nil, err
	}
	prefB, err := optionalPreference(ctx, s.store, b)
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	if v := FilterViolation(prefA, profileB, now); v != "" {
		c.FilteredBy = a + ":" + v
		return c, nil
	}
	if v := FilterViolation(prefB, profileA, now); v != "" {
		c.FilteredBy = b + ":" + v
		return c, nil
	}

	c.Attribute = AttributeSimilarity(profileA, profileB)
	score := c.Attribute

	edges, err := s.store.CountInterestsBetween(ctx, a, b)
	if err != nil {
		return nil, storeError(ctx, "count_interests", err)
	}
	c.MutualEdges = edges
	if edges >= s.opts.policy.MutualInterestEdges {
		score += s.opts.policy.MutualInterestBoost
		c.Boosted = true
	}

	c.Score = clamp01(score)
	return c, nil
}

// ContentScore is the one-directional score used for content
// recommendations: the requester's preference filters the candidate, then
// attribute similarity applies. No interest boost.
func ContentScore(requester *database.Profile, pref *database.Preference, candidate *database.Profile, now time.Time) float64 {
	if requester == nil || candidate == nil {
		return 0
	}
	if FilterViolation(pref, candidate, now) != "" {
		return 0
	}
	return clamp01(AttributeSimilarity(requester, candidate))
}
