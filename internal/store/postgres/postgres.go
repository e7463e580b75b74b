// Package postgres implements store.Store on PostgreSQL through database/sql
// and lib/pq. The schema is embedded and applied with golang-migrate.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"github.com/skillswap/swap-app/internal/models"
	"github.com/skillswap/swap-app/internal/store"
)

// foreignKeyViolation is the SQLSTATE raised when a message references a
// missing match.
const foreignKeyViolation = "23503"

// Store is a store.Store backed by a *sql.DB.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New wraps an open database handle. The schema must already be migrated.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn, pings it and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	log.Println("[postgres] connected, schema up to date")
	return New(db), nil
}

// DB exposes the handle for callers that need raw access (tests, tooling).
func (s *Store) DB() *sql.DB {
	return s.db
}

const profileColumns = `uid, name, bio, photo_url, skills_offer, skills_want, availability,
	location_name, lat, lng, radius_miles, created_at, updated_at`

func (s *Store) GetProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE uid = $1`, uid)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get profile: %w", err)
	}
	return p, nil
}

func (s *Store) PutProfile(ctx context.Context, p *models.UserProfile) error {
	var avail []byte
	if p.Availability != nil {
		var err error
		if avail, err = json.Marshal(p.Availability); err != nil {
			return fmt.Errorf("postgres: encode availability: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (uid) DO UPDATE SET
			name = EXCLUDED.name,
			bio = EXCLUDED.bio,
			photo_url = EXCLUDED.photo_url,
			skills_offer = EXCLUDED.skills_offer,
			skills_want = EXCLUDED.skills_want,
			availability = EXCLUDED.availability,
			location_name = EXCLUDED.location_name,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			radius_miles = EXCLUDED.radius_miles,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at`,
		p.UID, p.Name, p.Bio, p.PhotoURL,
		pq.Array(nonNil(p.SkillsOffer)), pq.Array(nonNil(p.SkillsWant)), avail,
		p.LocationName, p.Lat, p.Lng, p.RadiusMiles, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put profile: %w", err)
	}
	return nil
}

func (s *Store) ListCandidates(ctx context.Context, excludeUID string) ([]*models.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE uid <> $1 ORDER BY uid`, excludeUID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list candidates: %w", err)
	}
	defer rows.Close()

	var out []*models.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan candidate: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) PutSwipe(ctx context.Context, sw *models.SwipeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO swipes (from_uid, to_uid, direction, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (from_uid, to_uid) DO UPDATE SET
			direction = EXCLUDED.direction,
			created_at = EXCLUDED.created_at`,
		sw.FromUID, sw.ToUID, string(sw.Direction), sw.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: put swipe: %w", err)
	}
	return nil
}

func (s *Store) GetSwipe(ctx context.Context, from, to string) (*models.SwipeRecord, error) {
	sw := &models.SwipeRecord{FromUID: from, ToUID: to}
	var dir string
	err := s.db.QueryRowContext(ctx,
		`SELECT direction, created_at FROM swipes WHERE from_uid = $1 AND to_uid = $2`, from, to,
	).Scan(&dir, &sw.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get swipe: %w", err)
	}
	sw.Direction = models.Direction(dir)
	return sw, nil
}

func (s *Store) SwipedTargets(ctx context.Context, from string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT to_uid FROM swipes WHERE from_uid = $1`, from)
	if err != nil {
		return nil, fmt.Errorf("postgres: swiped targets: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("postgres: scan swiped target: %w", err)
		}
		out[uid] = struct{}{}
	}
	return out, rows.Err()
}

const matchColumns = `id, user_a, user_b, created_at, last_message_at, last_message_text`

func (s *Store) GetMatch(ctx context.Context, id string) (*models.MatchRecord, error) {
	m, err := scanMatch(s.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get match: %w", err)
	}
	return m, nil
}

func (s *Store) PutMatch(ctx context.Context, m *models.MatchRecord) error {
	var lastAt *time.Time
	if !m.LastMessageAt.IsZero() {
		lastAt = &m.LastMessageAt
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (`+matchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		m.ID, m.Users[0], m.Users[1], m.CreatedAt, lastAt, m.LastMessageText)
	if err != nil {
		return fmt.Errorf("postgres: put match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: put match: %w", err)
	}
	if n == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (s *Store) ListMatches(ctx context.Context, uid string) ([]*models.MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+matchColumns+` FROM matches
		WHERE user_a = $1 OR user_b = $1
		ORDER BY GREATEST(created_at, last_message_at) DESC, id`, uid)
	if err != nil {
		return nil, fmt.Errorf("postgres: list matches: %w", err)
	}
	defer rows.Close()

	var out []*models.MatchRecord
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) AppendMessage(ctx context.Context, matchID string, m *models.MessageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, match_id, from_uid, text, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, matchID, m.FromUID, m.Text, m.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: append message: %w", err)
	}
	return nil
}

func (s *Store) UpdateMatchProjection(ctx context.Context, matchID string, at time.Time, text string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE matches SET last_message_at = $2, last_message_text = $3
		WHERE id = $1 AND (last_message_at IS NULL OR last_message_at <= $2)`,
		matchID, at, text)
	if err != nil {
		return fmt.Errorf("postgres: update projection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: update projection: %w", err)
	}
	if n > 0 {
		return nil
	}

	// Either the match is missing or the stored projection is newer.
	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM matches WHERE id = $1)`, matchID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("postgres: update projection: %w", err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, matchID string) ([]*models.MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, match_id, from_uid, text, created_at FROM messages
		WHERE match_id = $1
		ORDER BY created_at, seq`, matchID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list messages: %w", err)
	}
	defer rows.Close()

	var out []*models.MessageRecord
	for rows.Next() {
		var m models.MessageRecord
		if err := rows.Scan(&m.ID, &m.MatchID, &m.FromUID, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan message: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*models.UserProfile, error) {
	var (
		p     models.UserProfile
		avail []byte
		lat   sql.NullFloat64
		lng   sql.NullFloat64
	)
	err := row.Scan(&p.UID, &p.Name, &p.Bio, &p.PhotoURL,
		pq.Array(&p.SkillsOffer), pq.Array(&p.SkillsWant), &avail,
		&p.LocationName, &lat, &lng, &p.RadiusMiles, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(avail) > 0 {
		if err := json.Unmarshal(avail, &p.Availability); err != nil {
			return nil, fmt.Errorf("decode availability: %w", err)
		}
	}
	if lat.Valid {
		p.Lat = &lat.Float64
	}
	if lng.Valid {
		p.Lng = &lng.Float64
	}
	return &p, nil
}

func scanMatch(row scanner) (*models.MatchRecord, error) {
	var (
		m      models.MatchRecord
		lastAt sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.Users[0], &m.Users[1], &m.CreatedAt, &lastAt, &m.LastMessageText); err != nil {
		return nil, err
	}
	if lastAt.Valid {
		m.LastMessageAt = lastAt.Time
	}
	return &m, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
