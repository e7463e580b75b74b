package matching

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/skillswap/swap-app/internal/metrics"
	"github.com/skillswap/swap-app/internal/models"
	"github.com/skillswap/swap-app/internal/store"
)

// Match formation outcomes, used as metric labels.
const (
	OutcomeCreated  = "created"
	OutcomeExisting = "existing"
	OutcomeNone     = "none"
	OutcomeConflict = "conflict"
)

// Options tune the engine's product policies.
type Options struct {
	// StickyPass makes a pass final: a later like on the same target is
	// rejected instead of overwriting the pass.
	StickyPass bool

	// DeckLimit caps deck size when the caller does not ask for a limit.
	// Zero means unlimited.
	DeckLimit int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Engine records swipes, forms matches on mutual likes and builds decks.
// It keeps no state of its own; everything lives in the store.
type Engine struct {
	store  store.Store
	notify Notifier
	opts   Options
}

// SwipeResult describes what a swipe led to.
type SwipeResult struct {
	Direction models.Direction    `json:"direction"`
	Matched   bool                `json:"matched"`
	Created   bool                `json:"created,omitempty"`
	Match     *models.MatchRecord `json:"match,omitempty"`
}

// NewEngine creates an engine. A nil notifier disables notifications.
func NewEngine(st store.Store, n Notifier, opts Options) *Engine {
	if n == nil {
		n = nopNotifier{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{store: st, notify: n, opts: opts}
}

// RecordSwipe stores from's decision about to. A repeat swipe replaces the
// earlier one unless StickyPass forbids turning a pass into a like.
func (e *Engine) RecordSwipe(ctx context.Context, from, to string, dir models.Direction) error {
	if err := validatePair(from, to); err != nil {
		return err
	}
	if !dir.Valid() {
		return fmt.Errorf("matching: unknown direction %q: %w", dir, models.ErrInvalidInput)
	}

	if e.opts.StickyPass && dir == models.Like {
		prev, err := e.store.GetSwipe(ctx, from, to)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return collaborator("read swipe", err)
		case prev.Direction == models.Pass:
			return fmt.Errorf("matching: %s already passed on %s: %w", from, to, models.ErrInvalidInput)
		}
	}

	rec := &models.SwipeRecord{
		FromUID:   from,
		ToUID:     to,
		Direction: dir,
		CreatedAt: e.opts.Now().UTC(),
	}
	if err := e.store.PutSwipe(ctx, rec); err != nil {
		return collaborator("record swipe", err)
	}
	metrics.SwipesTotal.WithLabelValues(string(dir)).Inc()
	return nil
}

// EnsureMatch creates the match between a and b if both have liked each
// other. It returns the match id and whether a match now exists. Calling it
// again, or concurrently from both sides, yields the same single match.
func (e *Engine) EnsureMatch(ctx context.Context, a, b string) (string, bool, error) {
	m, _, err := e.ensureMatch(ctx, a, b)
	if err != nil || m == nil {
		return "", false, err
	}
	return m.ID, true, nil
}

func (e *Engine) ensureMatch(ctx context.Context, a, b string) (*models.MatchRecord, string, error) {
	if err := validatePair(a, b); err != nil {
		return nil, "", err
	}

	for _, pair := range [][2]string{{b, a}, {a, b}} {
		liked, err := e.likes(ctx, pair[0], pair[1])
		if err != nil {
			return nil, "", err
		}
		if !liked {
			metrics.MatchesTotal.WithLabelValues(OutcomeNone).Inc()
			return nil, OutcomeNone, nil
		}
	}

	id := MatchID(a, b)
	existing, err := e.store.GetMatch(ctx, id)
	if err == nil {
		metrics.MatchesTotal.WithLabelValues(OutcomeExisting).Inc()
		return existing, OutcomeExisting, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, "", collaborator("read match", err)
	}

	lo, hi := SortPair(a, b)
	m := &models.MatchRecord{
		ID:        id,
		Users:     [2]string{lo, hi},
		CreatedAt: e.opts.Now().UTC(),
	}
	err = e.store.PutMatch(ctx, m)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost the race to the other participant; their record stands.
		metrics.MatchesTotal.WithLabelValues(OutcomeConflict).Inc()
		stored, gerr := e.store.GetMatch(ctx, id)
		if gerr != nil {
			log.Printf("[engine] re-read match %s after conflict: %v", id, gerr)
		} else {
			m = stored
		}
		return m, OutcomeConflict, nil
	}
	if err != nil {
		return nil, "", collaborator("create match", err)
	}

	metrics.MatchesTotal.WithLabelValues(OutcomeCreated).Inc()
	log.Printf("[engine] match created: id=%s users=%s,%s", id, lo, hi)

	if err := e.notify.MatchCreated(ctx, m); err != nil {
		metrics.NotifyFailures.Inc()
		log.Printf("[engine] notify match %s: %v", id, err)
	}
	return m, OutcomeCreated, nil
}

// Swipe records the decision and, for a like, checks for a mutual match.
func (e *Engine) Swipe(ctx context.Context, from, to string, dir models.Direction) (*SwipeResult, error) {
	if err := e.RecordSwipe(ctx, from, to, dir); err != nil {
		return nil, err
	}

	res := &SwipeResult{Direction: dir}
	if dir != models.Like {
		return res, nil
	}

	m, outcome, err := e.ensureMatch(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if m != nil {
		res.Matched = true
		res.Created = outcome == OutcomeCreated
		res.Match = m
	}
	return res, nil
}

// Deck ranks every unswiped candidate for uid. limit caps the result; zero
// falls back to the configured DeckLimit.
func (e *Engine) Deck(ctx context.Context, uid string, limit int) ([]Candidate, error) {
	start := time.Now()

	viewer, err := e.store.GetProfile(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("matching: profile %s: %w", uid, models.ErrNotFound)
	}
	if err != nil {
		return nil, collaborator("load viewer", err)
	}

	pool, err := e.store.ListCandidates(ctx, uid)
	if err != nil {
		return nil, collaborator("list candidates", err)
	}
	swiped, err := e.store.SwipedTargets(ctx, uid)
	if err != nil {
		return nil, collaborator("load swipes", err)
	}

	deck := Rank(viewer, pool, swiped)
	if limit <= 0 {
		limit = e.opts.DeckLimit
	}
	if limit > 0 && len(deck) > limit {
		deck = deck[:limit]
	}

	metrics.DeckSize.Observe(float64(len(deck)))
	metrics.DeckLatency.Observe(time.Since(start).Seconds())
	return deck, nil
}

// ListMatches returns uid's matches, most recent activity first.
func (e *Engine) ListMatches(ctx context.Context, uid string) ([]*models.MatchRecord, error) {
	if uid == "" {
		return nil, fmt.Errorf("matching: empty uid: %w", models.ErrInvalidInput)
	}
	ms, err := e.store.ListMatches(ctx, uid)
	if err != nil {
		return nil, collaborator("list matches", err)
	}
	return ms, nil
}

func (e *Engine) likes(ctx context.Context, from, to string) (bool, error) {
	sw, err := e.store.GetSwipe(ctx, from, to)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, collaborator("read swipe", err)
	}
	return sw.Direction == models.Like, nil
}

func validatePair(a, b string) error {
	if a == "" || b == "" {
		return fmt.Errorf("matching: empty uid: %w", models.ErrInvalidInput)
	}
	if a == b {
		return fmt.Errorf("matching: %s cannot swipe on themselves: %w", a, models.ErrInvalidInput)
	}
	return nil
}

func collaborator(op string, err error) error {
	return fmt.Errorf("matching: %s: %w: %w", op, models.ErrCollaborator, err)
}
