package database

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"
	"time"
)

// AccountStatus is the lifecycle state of a user account
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountInactive  AccountStatus = "inactive"
	AccountSuspended AccountStatus = "suspended"
	AccountDeleted   AccountStatus = "deleted"
)

// InterestKind distinguishes a regular like from a super like
type InterestKind string

const (
	InterestLike      InterestKind = "like"
	InterestSuperLike InterestKind = "super_like"
)

// MatchStatus is the state of a match between two users
type MatchStatus string

const (
	MatchActive    MatchStatus = "active"
	MatchUnmatched MatchStatus = "unmatched"
)

// ChatState gates messaging inside a chat
type ChatState string

const (
	ChatRequest ChatState = "request"
	ChatActive  ChatState = "active"
)

// NotificationType identifies the event a notification is about
type NotificationType string

const NotificationNewMatch NotificationType = "new_match"

// RecommendationStatus tracks what the user did with a recommendation
type RecommendationStatus string

const (
	RecommendationActive     RecommendationStatus = "active"
	RecommendationViewed     RecommendationStatus = "viewed"
	RecommendationInteracted RecommendationStatus = "interacted"
)

// User is the identity row; only active users are candidates
type User struct {
	ID            string        `json:"id" db:"id"`
	AccountStatus AccountStatus `json:"account_status" db:"account_status"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

// IsActive reports whether the user may be matched or recommended
func (u *User) IsActive() bool {
	return u.AccountStatus == AccountActive
}

// Profile holds the scoring attributes of a user. At most one per user.
type Profile struct {
	UserID         string     `json:"user_id" db:"user_id"`
	FirstName      string     `json:"first_name" db:"first_name"`
	Religion       string     `json:"religion" db:"religion"`
	Caste          string     `json:"caste" db:"caste"`
	EducationLevel string     `json:"education_level" db:"education_level"`
	Profession     string     `json:"profession" db:"profession"`
	City           string     `json:"city" db:"city"`
	District       string     `json:"district" db:"district"`
	Hobbies        StringSet  `json:"hobbies" db:"hobbies"`
	AnnualSalary   *int64     `json:"annual_salary,omitempty" db:"annual_salary"`
	Rashi          string     `json:"rashi" db:"rashi"`
	Nakshatra      string     `json:"nakshatra" db:"nakshatra"`
	ManglikStatus  string     `json:"manglik_status" db:"manglik_status"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`
	HeightCM       *int       `json:"height_cm,omitempty" db:"height_cm"`
}

// Preference holds one user's hard filters. Nil bounds are unset.
type Preference struct {
	UserID             string    `json:"user_id" db:"user_id"`
	MinAge             *int      `json:"min_age,omitempty" db:"min_age"`
	MaxAge             *int      `json:"max_age,omitempty" db:"max_age"`
	MinHeightCM        *int      `json:"min_height_cm,omitempty" db:"min_height_cm"`
	MaxHeightCM        *int      `json:"max_height_cm,omitempty" db:"max_height_cm"`
	PreferredReligions StringSet `json:"preferred_religions" db:"preferred_religions"`
	PreferredCastes    StringSet `json:"preferred_castes" db:"preferred_castes"`
}

// Interest is a directed like edge, unique per ordered pair
type Interest struct {
	ID        string       `json:"id" db:"id"`
	FromUser  string       `json:"from_user" db:"from_user_id"`
	ToUser    string       `json:"to_user" db:"to_user_id"`
	Kind      InterestKind `json:"kind" db:"kind"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// Match pairs two users; UserLo < UserHi is the uniqueness key
type Match struct {
	ID                 string      `json:"id" db:"id"`
	UserLo             string      `json:"user_lo" db:"user_lo"`
	UserHi             string      `json:"user_hi" db:"user_hi"`
	CompatibilityScore float64     `json:"compatibility_score" db:"compatibility_score"`
	Status             MatchStatus `json:"status" db:"status"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"`
}

// Involves reports whether userID is one of the two parties
func (m *Match) Involves(userID string) bool {
	return m.UserLo == userID || m.UserHi == userID
}

// Partner returns the other party of the match
func (m *Match) Partner(userID string) string {
	if m.UserLo == userID {
		return m.UserHi
	}
	return m.UserLo
}

// CanonicalPair orders two user IDs into the (lo, hi) match key
func CanonicalPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// Chat is created exactly once per match
type Chat struct {
	ID          string    `json:"id" db:"id"`
	MatchID     string    `json:"match_id" db:"match_id"`
	InitiatorID string    `json:"initiator_id" db:"initiator_user_id"`
	ReceiverID  string    `json:"receiver_id" db:"receiver_user_id"`
	State       ChatState `json:"state" db:"state"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Notification is one record per recipient per event
type Notification struct {
	ID                string           `json:"id" db:"id"`
	UserID            string           `json:"user_id" db:"user_id"`
	Type              NotificationType `json:"type" db:"notification_type"`
	Title             string           `json:"title" db:"title"`
	Body              string           `json:"body" db:"message_body"`
	RelatedEntityType string           `json:"related_entity_type" db:"related_entity_type"`
	RelatedEntityID   string           `json:"related_entity_id" db:"related_entity_id"`
	IsRead            bool             `json:"is_read" db:"is_read"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
}

// Recommendation is a persisted suggestion used to avoid repeats
type Recommendation struct {
	ID                string               `json:"id" db:"id"`
	UserID            string               `json:"user_id" db:"user_id"`
	RecommendedUserID string               `json:"recommended_user_id" db:"recommended_user_id"`
	Score             float64              `json:"score" db:"recommendation_score"`
	Reason            string               `json:"reason" db:"reason"`
	Status            RecommendationStatus `json:"status" db:"status"`
	CreatedAt         time.Time            `json:"created_at" db:"created_at"`
}

// BlockedUser is a directed suppression edge
type BlockedUser struct {
	BlockerID string    `json:"blocker_id" db:"blocker_user_id"`
	BlockedID string    `json:"blocked_id" db:"blocked_user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MatchBundle is everything written for one match creation. It is persisted
// all-or-nothing.
type MatchBundle struct {
	Match         *Match
	Chat          *Chat
	Notifications []*Notification
}

// StringSet is a set of tokens stored as comma-separated text
type StringSet []string

// ParseStringSet splits comma-separated text, trimming whitespace and
// dropping empty and duplicate tokens.
func ParseStringSet(raw string) StringSet {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out StringSet
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

// Contains reports whether token is a member of the set
func (s StringSet) Contains(token string) bool {
	for _, t := range s {
		if t == token {
			return true
		}
	}
	return false
}

// String joins the set back into its stored form
func (s StringSet) String() string {
	return strings.Join(s, ",")
}

// Sorted returns a sorted copy of the set
func (s StringSet) Sorted() StringSet {
	out := append(StringSet(nil), s...)
	sort.Strings(out)
	return out
}

// Value implements driver.Valuer
func (s StringSet) Value() (driver.Value, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return s.String(), nil
}

// Scan implements sql.Scanner
func (s *StringSet) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = nil
	case []byte:
		*s = ParseStringSet(string(v))
	case string:
		*s = ParseStringSet(v)
	default:
		return fmt.Errorf("cannot scan %T into StringSet", value)
	}
	return nil
}
