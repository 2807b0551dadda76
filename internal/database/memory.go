package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation names accepted by MemoryStore.InjectFault
const (
	FaultGetUser            = "get_user"
	FaultListActiveUsers    = "list_active_users"
	FaultGetProfile         = "get_profile"
	FaultGetPreference      = "get_preference"
	FaultCountInterests     = "count_interests"
	FaultCreateInterest     = "create_interest"
	FaultListInterests      = "list_interests"
	FaultListBlocked        = "list_blocked"
	FaultGetMatch           = "get_match"
	FaultInsertMatch        = "insert_match"
	FaultInsertChat         = "insert_chat"
	FaultInsertNotification = "insert_notification"
	FaultUpdateMatch        = "update_match"
	FaultSaveRecommendation = "save_recommendation"
	FaultListRecommended    = "list_recommended"
)

// pairKey is an ordered pair of user IDs
type pairKey struct{ a, b string }

// MemoryStore is an in-process store with the same semantics as
// PostgresStore. Faults can be injected per operation.
type MemoryStore struct {
	mu sync.RWMutex

	users           map[string]*User
	profiles        map[string]*Profile
	preferences     map[string]*Preference
	interests       map[pairKey]*Interest // keyed by (from, to)
	blocks          map[pairKey]time.Time // keyed by (blocker, blocked)
	matches         map[string]*Match
	matchesByPair   map[pairKey]string
	chats           map[string]*Chat // keyed by match ID
	notifications   []*Notification
	recommendations []*Recommendation

	faults map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*User),
		profiles:      make(map[string]*Profile),
		preferences:   make(map[string]*Preference),
		interests:     make(map[pairKey]*Interest),
		blocks:        make(map[pairKey]time.Time),
		matches:       make(map[string]*Match),
		matchesByPair: make(map[pairKey]string),
		chats:         make(map[string]*Chat),
		faults:        make(map[string]error),
	}
}

// InjectFault makes op fail with err until cleared. A nil err clears it.
func (s *MemoryStore) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// ClearFaults removes every injected fault
func (s *MemoryStore) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]error)
}

// fault must be called with mu held
func (s *MemoryStore) fault(op string) error {
	return s.faults[op]
}

func (s *MemoryStore) CreateUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	u := *user
	s.users[u.ID] = &u
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(FaultGetUser); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *MemoryStore) ListActiveUserIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(FaultListActiveUsers); err != nil {
		return nil, err
	}
	var ids []string
	for id, u := range s.users {
		if u.IsActive() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) SaveProfile(_ context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.Hobbies = append(StringSet(nil), p.Hobbies...)
	s.profiles[p.UserID] = &cp
	return nil
}

func (s *MemoryStore) GetProfile(_ context.Context, userID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(FaultGetProfile); err != nil {
		return nil, err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

func (s *MemoryStore) SavePreference(_ context.Context, p *Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.preferences[p.UserID] = &cp
	return nil
}

func (s *MemoryStore) GetPreference(_ context.Context, userID string) (*Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(FaultGetPreference); err != nil {
		return nil, err
	}
	p, ok := s.preferences[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

func (s *MemoryStore) CreateInterest(_ context.Context, interest *Interest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(FaultCreateInterest); err != nil {
		return err
	}
	key := pairKey{interest.FromUser, interest.ToUser}
	if _, exists := s.interests[key]; exists {
		return ErrDuplicateInterest
	}
	if interest.ID == "" {
		interest.ID = uuid.New().String()
	}
	if interest.CreatedAt.IsZero() {
		interest.CreatedAt = time.Now().UTC()
	}
	cp := *interest
	s.interests[key] = &cp
	return nil
}

func (s *MemoryStore) CountInterestsBetween(_ context.Context, a, b string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(FaultCountInterests); err != nil {
		return 0, err
	}
	count := 0
	if _, ok := s.interests[pairKey{a, b}]; ok {
		count++
	}
	if _, ok := s.interests[pairKey{b, a}]; ok {
		count++
	}
	return count, nil
}

func (s *MemoryStore) ListLikedUserIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(FaultListInterests); err != nil {
		return nil, err
	}
	var ids []string
	for key := range s.interests {
		if key.a == userID {
			ids = append(ids, key.b)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) ListInterestsTo(_ context.Context, targets []string) ([]*Interest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(FaultListInterests); err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		wanted[t] = struct{}{}
	}
	var out []*Interest
	for key, interest := range s.interests {
		if _, ok := wanted[key.b]; ok {
			cp := *interest
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromUser != out[j].FromUser {
			return out[i].FromUser < out[j].FromUser
		}
		return out[i].ToUser < out[j].ToUser
	})
	return out, nil
}

func (s *MemoryStore) BlockUser(_ context.Context, blockerID, blockedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{blockerID, blockedID}
	if _, ok := s.blocks[key]; !ok {
		s.blocks[key] = time.Now().UTC()
	}
	return nil
}

func (s *MemoryStore) IsBlocked(_ context.Context, a, b string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(FaultListBlocked); err != nil {
		return false, err
	}
	_, ab := s.blocks[pairKey{a, b}]
	_, ba := s.blocks[pairKey{b, a}]
	return ab || ba, nil
}

func (s *MemoryStore) ListBlockedUserIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(FaultListBlocked); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for key := range s.blocks {
		switch userID {
		case key.a:
			seen[key.b] = struct{}{}
		case key.b:
			seen[key.a] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) GetMatch(_ context.Context, id string) (*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(FaultGetMatch); err != nil {
		return nil, err
	}
	m, ok := s.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *m
	return &out, nil
}

func (s *MemoryStore) GetMatchByPair(_ context.Context, a, b string) (*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(FaultGetMatch); err != nil {
		return nil, err
	}
	lo, hi := CanonicalPair(a, b)
	id, ok := s.matchesByPair[pairKey{lo, hi}]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s.matches[id]
	return &out, nil
}

func (s *MemoryStore) ListMatchesForUser(_ context.Context, userID string, status MatchStatus) ([]*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(FaultGetMatch); err != nil {
		return nil, err
	}
	var out []*Match
	for _, m := range s.matches {
		if !m.Involves(userID) || (status != "" && m.Status != status) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateMatchBundle validates every row before writing any of them, so an
// injected fault leaves the store untouched.
func (s *MemoryStore) CreateMatchBundle(_ context.Context, bundle *MatchBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := bundle.Match
	key := pairKey{m.UserLo, m.UserHi}
	if _, exists := s.matchesByPair[key]; exists {
		return ErrDuplicateMatch
	}
	if err := s.fault(FaultInsertMatch); err != nil {
		return err
	}
	if err := s.fault(FaultInsertChat); err != nil {
		return err
	}
	if _, exists := s.chats[bundle.Chat.MatchID]; exists {
		return ErrDuplicateMatch
	}
	if len(bundle.Notifications) > 0 {
		if err := s.fault(FaultInsertNotification); err != nil {
			return err
		}
	}

	mc := *m
	s.matches[mc.ID] = &mc
	s.matchesByPair[key] = mc.ID
	cc := *bundle.Chat
	s.chats[cc.MatchID] = &cc
	for _, n := range bundle.Notifications {
		nc := *n
		s.notifications = append(s.notifications, &nc)
	}
	return nil
}

func (s *MemoryStore) UpdateMatchStatus(_ context.Context, matchID string, status MatchStatus) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(FaultUpdateMatch); err != nil {
		return nil, err
	}
	m, ok := s.matches[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	m.Status = status
	m.UpdatedAt = time.Now().UTC()
	out := *m
	return &out, nil
}

func (s *MemoryStore) GetChatByMatch(_ context.Context, matchID string) (*Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, userID string) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MatchCount returns the number of match rows
func (s *MemoryStore) MatchCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches)
}

// NotificationCount returns the number of notification rows
func (s *MemoryStore) NotificationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notifications)
}

func (s *MemoryStore) SaveRecommendations(_ context.Context, recs []*Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(FaultSaveRecommendation); err != nil {
		return err
	}
	for _, r := range recs {
		cp := *r
		s.recommendations = append(s.recommendations, &cp)
	}
	return nil
}

func (s *MemoryStore) RecommendedUserIDs(_ context.Context, userID string, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(FaultListRecommended); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, r := range s.recommendations {
		if r.UserID == userID && !r.CreatedAt.Before(since) {
			seen[r.RecommendedUserID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) ListRecommendations(_ context.Context, userID string, limit int) ([]*Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fault(FaultListRecommended); err != nil {
		return nil, err
	}
	var out []*Recommendation
	for _, r := range s.recommendations {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Score > out[j].Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
