// Package review runs flashcard review sessions over a persisted deck.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/srs"
	"github.com/conorfennell/studydeck/internal/storage"
)

// Recorder is told about every graded card.
type Recorder interface {
	RecordReview(ctx context.Context) error
}

// Options configures a Controller. Zero fields take defaults.
type Options struct {
	Scheduler *srs.Scheduler
	Recorder  Recorder
	Clock     Clock
	Shuffler  Shuffler
	Logger    *slog.Logger
}

// Controller owns the deck. All mutations are applied to a fresh copy of the
// deck, swapped in, and then written to the store as one blob.
type Controller struct {
	mu        sync.Mutex
	deck      domain.Deck
	store     storage.Store
	scheduler *srs.Scheduler
	recorder  Recorder
	clock     Clock
	shuffler  Shuffler
	logger    *slog.Logger
}

// NewController creates a controller with an empty deck. Call Load to read the stored deck.
func NewController(store storage.Store, opts Options) *Controller {
	if store == nil {
		panic("review: store cannot be nil")
	}
	if opts.Scheduler == nil {
		opts.Scheduler = srs.NewScheduler(nil)
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Shuffler == nil {
		opts.Shuffler = NewRandShuffler(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		store:     store,
		scheduler: opts.Scheduler,
		recorder:  opts.Recorder,
		clock:     opts.Clock,
		shuffler:  opts.Shuffler,
		logger:    opts.Logger.With("component", "review"),
	}
}

// Load reads the deck from the store. A missing deck is an empty one.
// Cards stored without an ID, or with an ID an earlier card already has, are
// given a fresh one and the deck is written back.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.store.Get(ctx, storage.DeckKey)
	if errors.Is(err, storage.ErrNotFound) {
		c.deck = domain.Deck{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read deck: %w", err)
	}

	deck, err := domain.UnmarshalDeck(data)
	if err != nil {
		return err
	}

	assigned := 0
	seen := make(map[string]bool, len(deck))
	for i := range deck {
		if deck[i].ID == "" || seen[deck[i].ID] {
			deck[i].ID = domain.NewID()
			assigned++
		}
		seen[deck[i].ID] = true
	}
	c.deck = deck
	c.logger.Debug("deck loaded", "cards", len(deck))

	if assigned > 0 {
		c.logger.Info("assigned ids to cards with missing or repeated ids", "count", assigned)
		return c.persist(ctx, "load", deck)
	}
	return nil
}

// Deck returns a copy of the current deck.
func (c *Controller) Deck() domain.Deck {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deck.Clone()
}

// Due returns the cards due today.
func (c *Controller) Due() []domain.Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	return DueCards(c.deck, c.clock.Now())
}

// StartSession snapshots and shuffles today's due cards. With nothing due the
// session is empty and Done straight away.
func (c *Controller) StartSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := newSession(DueCards(c.deck, c.clock.Now()), c.shuffler)
	c.logger.Info("review session started", "cards", s.Len())
	return s
}

// Grade schedules the session's current card with quality q, persists the
// deck, records the review and advances the session.
//
// A store failure is returned as a *PersistenceError after the in-memory deck,
// the review record and the cursor have all moved on.
func (c *Controller) Grade(ctx context.Context, s *Session, q srs.Quality) (domain.Deck, error) {
	if !q.Valid() {
		return c.Deck(), fmt.Errorf("%w: got %d", srs.ErrInvalidQuality, int(q))
	}
	current, ok := s.Current()
	if !ok {
		return c.Deck(), ErrEmptySession
	}

	c.mu.Lock()
	idx := c.deck.IndexOf(current.ID)
	if idx < 0 {
		c.mu.Unlock()
		c.logger.Warn("session card no longer in deck", "card_id", current.ID)
		s.advance()
		return c.Deck(), ErrCardNotFound
	}

	now := c.clock.Now()
	next, err := c.scheduler.Schedule(c.deck[idx].Scheduling, q, now)
	if err != nil {
		c.mu.Unlock()
		return c.Deck(), err
	}

	deck := c.deck.Clone()
	deck[idx].Scheduling = &next
	c.deck = deck
	persistErr := c.persist(ctx, "grade", deck)
	c.mu.Unlock()

	c.logger.Debug("card graded",
		"card_id", current.ID,
		"quality", q.String(),
		"interval", next.Interval,
		"ease_factor", next.EaseFactor,
		"due", next.DueDate.Format("2006-01-02"))

	if c.recorder != nil {
		if err := c.recorder.RecordReview(ctx); err != nil {
			c.logger.Warn("failed to record review", "error", err)
		}
	}

	s.advance()
	if s.Done() {
		c.logger.Info("review session complete", "cards", s.Len())
	}
	return deck.Clone(), persistErr
}

// AddCards appends cards to the deck without deduplication. Cards without an
// ID, or whose ID is already taken in the deck or earlier in the batch, get a
// fresh one. Any invalid card rejects the whole batch.
func (c *Controller) AddCards(ctx context.Context, cards ...domain.Card) (domain.Deck, error) {
	added := make([]domain.Card, 0, len(cards))
	for _, card := range cards {
		if err := card.Validate(); err != nil {
			return c.Deck(), err
		}
		added = append(added, card.Clone())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	taken := make(map[string]bool, len(c.deck)+len(added))
	for _, card := range c.deck {
		taken[card.ID] = true
	}
	for i := range added {
		if added[i].ID == "" || taken[added[i].ID] {
			added[i].ID = domain.NewID()
		}
		taken[added[i].ID] = true
	}

	deck := make(domain.Deck, 0, len(c.deck)+len(added))
	deck = append(deck, c.deck.Clone()...)
	deck = append(deck, added...)
	c.deck = deck

	c.logger.Info("cards added", "added", len(added), "total", len(deck))
	return deck.Clone(), c.persist(ctx, "add", deck)
}

// RemoveAll empties the deck. It cannot be undone; callers confirm first.
func (c *Controller) RemoveAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deck = domain.Deck{}
	if err := c.store.Delete(ctx, storage.DeckKey); err != nil {
		return &PersistenceError{Operation: "remove_all", Key: storage.DeckKey, Err: err}
	}
	c.logger.Info("deck removed")
	return nil
}

// persist must be called with c.mu held.
func (c *Controller) persist(ctx context.Context, op string, deck domain.Deck) error {
	data, err := domain.MarshalDeck(deck)
	if err != nil {
		return &PersistenceError{Operation: op, Key: storage.DeckKey, Err: err}
	}
	if err := c.store.Put(ctx, storage.DeckKey, data); err != nil {
		c.logger.Error("failed to persist deck", "operation", op, "error", err)
		return &PersistenceError{Operation: op, Key: storage.DeckKey, Err: err}
	}
	return nil
}
