package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// PostgresStore implements the engine's persistence on PostgreSQL
type PostgresStore struct {
	db *DB
}

func NewPostgresStore(db *DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, account_status, created_at`

func (s *PostgresStore) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, account_status, created_at) VALUES ($1, $2, $3)`,
		user.ID, user.AccountStatus, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.AccountStatus, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) ListActiveUserIDs(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx,
		`SELECT id FROM users WHERE account_status = $1 ORDER BY id`, AccountActive)
}

const profileColumns = `
	user_id, COALESCE(first_name, ''), COALESCE(religion, ''), COALESCE(caste, ''),
	COALESCE(education_level, ''), COALESCE(profession, ''), COALESCE(city, ''),
	COALESCE(district, ''), hobbies, annual_salary, COALESCE(rashi, ''),
	COALESCE(nakshatra, ''), COALESCE(manglik_status, ''), date_of_birth, height_cm`

func (s *PostgresStore) SaveProfile(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (
			user_id, first_name, religion, caste, education_level, profession,
			city, district, hobbies, annual_salary, rashi, nakshatra,
			manglik_status, date_of_birth, height_cm
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			religion = EXCLUDED.religion,
			caste = EXCLUDED.caste,
			education_level = EXCLUDED.education_level,
			profession = EXCLUDED.profession,
			city = EXCLUDED.city,
			district = EXCLUDED.district,
			hobbies = EXCLUDED.hobbies,
			annual_salary = EXCLUDED.annual_salary,
			rashi = EXCLUDED.rashi,
			nakshatra = EXCLUDED.nakshatra,
			manglik_status = EXCLUDED.manglik_status,
			date_of_birth = EXCLUDED.date_of_birth,
			height_cm = EXCLUDED.height_cm
	`
	_, err := s.db.ExecContext(ctx, query,
		p.UserID, p.FirstName, p.Religion, p.Caste, p.EducationLevel, p.Profession,
		p.City, p.District, p.Hobbies, p.AnnualSalary, p.Rashi, p.Nakshatra,
		p.ManglikStatus, p.DateOfBirth, p.HeightCM,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID,
	).Scan(
		&p.UserID, &p.FirstName, &p.Religion, &p.Caste,
		&p.EducationLevel, &p.Profession, &p.City,
		&p.District, &p.Hobbies, &p.AnnualSalary, &p.Rashi,
		&p.Nakshatra, &p.ManglikStatus, &p.DateOfBirth, &p.HeightCM,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) SavePreference(ctx context.Context, p *Preference) error {
	query := `
		INSERT INTO preferences (
			user_id, min_age, max_age, min_height_cm, max_height_cm,
			preferred_religions, preferred_castes
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			min_age = EXCLUDED.min_age,
			max_age = EXCLUDED.max_age,
			min_height_cm = EXCLUDED.min_height_cm,
			max_height_cm = EXCLUDED.max_height_cm,
			preferred_religions = EXCLUDED.preferred_religions,
			preferred_castes = EXCLUDED.preferred_castes
	`
	_, err := s.db.ExecContext(ctx, query,
		p.UserID, p.MinAge, p.MaxAge, p.MinHeightCM, p.MaxHeightCM,
		p.PreferredReligions, p.PreferredCastes,
	)
	if err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPreference(ctx context.Context, userID string) (*Preference, error) {
	var p Preference
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, min_age, max_age, min_height_cm, max_height_cm,
			preferred_religions, preferred_castes
		FROM preferences WHERE user_id = $1`, userID,
	).Scan(
		&p.UserID, &p.MinAge, &p.MaxAge, &p.MinHeightCM, &p.MaxHeightCM,
		&p.PreferredReligions, &p.PreferredCastes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) CreateInterest(ctx context.Context, interest *Interest) error {
	if interest.ID == "" {
		interest.ID = uuid.New().String()
	}
	if interest.CreatedAt.IsZero() {
		interest.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interests (id, from_user_id, to_user_id, kind, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		interest.ID, interest.FromUser, interest.ToUser, interest.Kind, interest.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateInterest
		}
		return fmt.Errorf("failed to insert interest: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountInterestsBetween(ctx context.Context, a, b string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM interests
		WHERE (from_user_id = $1 AND to_user_id = $2)
		   OR (from_user_id = $2 AND to_user_id = $1)`, a, b,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count interests: %w", err)
	}
	return count, nil
}

// ListLikedUserIDs returns the targets of every interest expressed by userID
func (s *PostgresStore) ListLikedUserIDs(ctx context.Context, userID string) ([]string, error) {
	return s.queryIDs(ctx,
		`SELECT to_user_id FROM interests WHERE from_user_id = $1 ORDER BY to_user_id`, userID)
}

// ListInterestsTo returns every interest edge pointing at one of targets
func (s *PostgresStore) ListInterestsTo(ctx context.Context, targets []string) ([]*Interest, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_user_id, to_user_id, kind, created_at
		FROM interests WHERE to_user_id = ANY($1)
		ORDER BY from_user_id, to_user_id`, pq.Array(targets),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list interests: %w", err)
	}
	defer rows.Close()

	var out []*Interest
	for rows.Next() {
		var i Interest
		if err := rows.Scan(&i.ID, &i.FromUser, &i.ToUser, &i.Kind, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interest: %w", err)
		}
		out = append(out, &i)
	}
	return out, rows.Err()
}

func (s *PostgresStore) BlockUser(ctx context.Context, blockerID, blockedID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocked_users (blocker_user_id, blocked_user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (blocker_user_id, blocked_user_id) DO NOTHING`,
		blockerID, blockedID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to block user: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM blocked_users
			WHERE (blocker_user_id = $1 AND blocked_user_id = $2)
			   OR (blocker_user_id = $2 AND blocked_user_id = $1)
		)`, a, b,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check block: %w", err)
	}
	return exists, nil
}

// ListBlockedUserIDs returns everyone in a block relation with userID, in either direction
func (s *PostgresStore) ListBlockedUserIDs(ctx context.Context, userID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT blocked_user_id FROM blocked_users WHERE blocker_user_id = $1
		UNION
		SELECT blocker_user_id FROM blocked_users WHERE blocked_user_id = $1`, userID)
}

const matchColumns = `id, user_lo, user_hi, compatibility_score, status, created_at, updated_at`

func scanMatch(row interface{ Scan(...interface{}) error }) (*Match, error) {
	var m Match
	if err := row.Scan(&m.ID, &m.UserLo, &m.UserHi, &m.CompatibilityScore, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) GetMatch(ctx context.Context, id string) (*Match, error) {
	m, err := scanMatch(s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) GetMatchByPair(ctx context.Context, a, b string) (*Match, error) {
	lo, hi := CanonicalPair(a, b)
	m, err := scanMatch(s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE user_lo = $1 AND user_hi = $2`, lo, hi))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// ListMatchesForUser returns the user's matches; an empty status returns all of them
func (s *PostgresStore) ListMatchesForUser(ctx context.Context, userID string, status MatchStatus) ([]*Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches
		WHERE (user_lo = $1 OR user_hi = $1) AND ($2::text = '' OR status = $2)
		ORDER BY created_at DESC, id`
	rows, err := s.db.QueryContext(ctx, query, userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var out []*Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateMatchBundle writes the match, its chat and its notifications in one
// transaction. A pair collision returns ErrDuplicateMatch.
func (s *PostgresStore) CreateMatchBundle(ctx context.Context, bundle *MatchBundle) error {
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		m := bundle.Match
		_, err := tx.ExecContext(ctx, `
			INSERT INTO matches (`+matchColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			m.ID, m.UserLo, m.UserHi, m.CompatibilityScore, m.Status, m.CreatedAt, m.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateMatch
			}
			return fmt.Errorf("failed to insert match: %w", err)
		}

		c := bundle.Chat
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chats (id, match_id, initiator_user_id, receiver_user_id, state, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.MatchID, c.InitiatorID, c.ReceiverID, c.State, c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chat: %w", err)
		}

		for _, n := range bundle.Notifications {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO notifications (
					id, user_id, notification_type, title, message_body,
					related_entity_type, related_entity_id, is_read, created_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				n.ID, n.UserID, n.Type, n.Title, n.Body,
				n.RelatedEntityType, n.RelatedEntityID, n.IsRead, n.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert notification: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) UpdateMatchStatus(ctx context.Context, matchID string, status MatchStatus) (*Match, error) {
	m, err := scanMatch(s.db.QueryRowContext(ctx, `
		UPDATE matches SET status = $1, updated_at = $2
		WHERE id = $3
		RETURNING `+matchColumns, status, time.Now().UTC(), matchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update match: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) GetChatByMatch(ctx context.Context, matchID string) (*Chat, error) {
	var c Chat
	err := s.db.QueryRowContext(ctx, `
		SELECT id, match_id, initiator_user_id, receiver_user_id, state, created_at
		FROM chats WHERE match_id = $1`, matchID,
	).Scan(&c.ID, &c.MatchID, &c.InitiatorID, &c.ReceiverID, &c.State, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string) ([]*Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, notification_type, title, message_body,
			related_entity_type, related_entity_id, is_read, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC, id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body,
			&n.RelatedEntityType, &n.RelatedEntityID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveRecommendations(ctx context.Context, recs []*Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO recommendations (
				id, user_id, recommended_user_id, recommendation_score, reason, status, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`)
		if err != nil {
			return fmt.Errorf("failed to prepare recommendation insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range recs {
			if _, err := stmt.ExecContext(ctx,
				r.ID, r.UserID, r.RecommendedUserID, r.Score, r.Reason, r.Status, r.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to insert recommendation: %w", err)
			}
		}
		return nil
	})
}

// RecommendedUserIDs returns the distinct users recommended to userID at or
// after since. A zero since covers the whole history.
func (s *PostgresStore) RecommendedUserIDs(ctx context.Context, userID string, since time.Time) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT DISTINCT recommended_user_id FROM recommendations
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY recommended_user_id`, userID, since)
}

func (s *PostgresStore) ListRecommendations(ctx context.Context, userID string, limit int) ([]*Recommendation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, recommended_user_id, recommendation_score, reason, status, created_at
		FROM recommendations WHERE user_id = $1
		ORDER BY created_at DESC, recommendation_score DESC
		LIMIT $2`, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	defer rows.Close()

	var out []*Recommendation
	for rows.Next() {
		var r Recommendation
		if err := rows.Scan(&r.ID, &r.UserID, &r.RecommendedUserID, &r.Score, &r.Reason, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) queryIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
