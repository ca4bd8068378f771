package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/srs"
	"github.com/conorfennell/studydeck/internal/storage"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

// reverseShuffler produces a predictable permutation.
type reverseShuffler struct{}

func (reverseShuffler) Shuffle(n int, swap func(i, j int)) {
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		swap(i, j)
	}
}

type countingRecorder struct{ calls int }

func (r *countingRecorder) RecordReview(context.Context) error {
	r.calls++
	return nil
}

type flakyStore struct {
	*storage.Memory
	failPuts bool
	puts     int
}

func (s *flakyStore) Put(ctx context.Context, key string, value []byte) error {
	s.puts++
	if s.failPuts {
		return errors.New("quota exceeded")
	}
	return s.Memory.Put(ctx, key, value)
}

var testNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return domain.DateOf(testNow).AddDate(0, 0, offset)
}

type fixture struct {
	ctrl     *Controller
	store    *flakyStore
	recorder *countingRecorder
	clock    *fixedClock
}

func newFixture(t *testing.T, deck domain.Deck) *fixture {
	t.Helper()
	f := &fixture{
		store:    &flakyStore{Memory: storage.NewMemory()},
		recorder: &countingRecorder{},
		clock:    &fixedClock{t: testNow},
	}
	if deck != nil {
		data, err := domain.MarshalDeck(deck)
		require.NoError(t, err)
		require.NoError(t, f.store.Memory.Put(context.Background(), storage.DeckKey, data))
	}
	f.ctrl = NewController(f.store, Options{
		Recorder: f.recorder,
		Clock:    f.clock,
		Shuffler: reverseShuffler{},
	})
	require.NoError(t, f.ctrl.Load(context.Background()))
	return f
}

func (f *fixture) stored(t *testing.T) domain.Deck {
	t.Helper()
	data, err := f.store.Get(context.Background(), storage.DeckKey)
	require.NoError(t, err)
	deck, err := domain.UnmarshalDeck(data)
	require.NoError(t, err)
	return deck
}

func sampleDeck() domain.Deck {
	return domain.Deck{
		{ID: "new", Front: "never reviewed", Back: "1"},
		{ID: "today", Front: "due today", Back: "2", Scheduling: &domain.Scheduling{Interval: 6, EaseFactor: 2.5, DueDate: day(0)}},
		{ID: "future", Front: "due tomorrow", Back: "3", Scheduling: &domain.Scheduling{Interval: 1, EaseFactor: 2.5, DueDate: day(1)}},
		{ID: "overdue", Front: "overdue", Back: "4", Scheduling: &domain.Scheduling{Interval: 1, EaseFactor: 2.5, DueDate: day(-3)}},
	}
}

func ids(cards []domain.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func TestDueCards(t *testing.T) {
	due := DueCards(sampleDeck(), testNow)
	assert.Equal(t, []string{"new", "today", "overdue"}, ids(due))

	assert.Empty(t, DueCards(nil, testNow))
	assert.Empty(t, DueCards(domain.Deck{sampleDeck()[2]}, testNow))
}

func TestLoadMissingDeck(t *testing.T) {
	f := newFixture(t, nil)
	assert.Empty(t, f.ctrl.Deck())
	assert.True(t, f.ctrl.StartSession().Done())
}

func TestLoadAssignsIDsToLegacyCards(t *testing.T) {
	f := newFixture(t, domain.Deck{{Front: "old", Back: "card"}, {ID: "kept", Front: "x", Back: "y"}})

	deck := f.ctrl.Deck()
	require.Len(t, deck, 2)
	assert.NotEmpty(t, deck[0].ID)
	assert.Equal(t, "kept", deck[1].ID)
	assert.Equal(t, deck, f.stored(t))
}

func TestLoadReassignsRepeatedIDs(t *testing.T) {
	f := newFixture(t, domain.Deck{
		{ID: "x", Front: "A", Back: "1"},
		{ID: "x", Front: "B", Back: "2"},
	})

	deck := f.ctrl.Deck()
	require.Len(t, deck, 2)
	assert.Equal(t, "x", deck[0].ID)
	assert.NotEqual(t, "x", deck[1].ID)
	assert.NotEmpty(t, deck[1].ID)
	assert.Equal(t, deck, f.stored(t))
}

func TestLoadCorruptDeck(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.Put(context.Background(), storage.DeckKey, []byte("{")))
	err := NewController(store, Options{}).Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
}

func TestStartSession(t *testing.T) {
	f := newFixture(t, sampleDeck())

	s := f.ctrl.StartSession()
	assert.Equal(t, []string{"overdue", "today", "new"}, ids(s.Cards()))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 1, s.Position())
	assert.False(t, s.Revealed())

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "overdue", cur.ID)
}

func TestStartSessionWithNothingDue(t *testing.T) {
	deck := domain.Deck{sampleDeck()[2]}
	f := newFixture(t, deck)
	putsBefore := f.store.puts

	s := f.ctrl.StartSession()
	assert.True(t, s.Done())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, putsBefore, f.store.puts)
	assert.Equal(t, deck, f.ctrl.Deck())
}

func TestReveal(t *testing.T) {
	f := newFixture(t, sampleDeck())
	s := f.ctrl.StartSession()
	before := f.ctrl.Deck()

	s.Reveal()
	assert.True(t, s.Revealed())
	s.Reveal()
	assert.False(t, s.Revealed())
	assert.Equal(t, before, f.ctrl.Deck())
}

func TestGradeWholeSession(t *testing.T) {
	f := newFixture(t, sampleDeck())
	ctx := context.Background()
	s := f.ctrl.StartSession()

	// overdue: {1, 2.5} graded Easy -> 6 days, 2.6
	s.Reveal()
	deck, err := f.ctrl.Grade(ctx, s, srs.Easy)
	require.NoError(t, err)
	got := deck[deck.IndexOf("overdue")].Scheduling
	assert.Equal(t, 6, got.Interval)
	assert.InDelta(t, 2.6, got.EaseFactor, 1e-9)
	assert.Equal(t, day(6), got.DueDate)
	assert.Equal(t, 2, s.Position())
	assert.False(t, s.Revealed(), "reveal is cleared on advance")

	// today: {6, 2.5} graded Good -> 15 days, 2.36
	deck, err = f.ctrl.Grade(ctx, s, srs.Good)
	require.NoError(t, err)
	got = deck[deck.IndexOf("today")].Scheduling
	assert.Equal(t, 15, got.Interval)
	assert.InDelta(t, 2.36, got.EaseFactor, 1e-9)
	assert.Equal(t, day(15), got.DueDate)

	// new: graded Hard -> 1 day
	deck, err = f.ctrl.Grade(ctx, s, srs.Hard)
	require.NoError(t, err)
	got = deck[deck.IndexOf("new")].Scheduling
	assert.Equal(t, 1, got.Interval)
	assert.Equal(t, day(1), got.DueDate)

	assert.True(t, s.Done())
	_, ok := s.Current()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Position())

	assert.Equal(t, 3, f.recorder.calls)
	assert.Equal(t, f.ctrl.Deck(), f.stored(t))
	assert.Equal(t, []string{"new", "today", "future", "overdue"}, ids(f.ctrl.Deck()), "deck order is preserved")
	assert.Empty(t, f.ctrl.Due())
}

func TestGradeInvalidQuality(t *testing.T) {
	f := newFixture(t, sampleDeck())
	s := f.ctrl.StartSession()
	before := f.ctrl.Deck()
	putsBefore := f.store.puts

	for _, q := range []srs.Quality{-1, 6} {
		_, err := f.ctrl.Grade(context.Background(), s, q)
		assert.ErrorIs(t, err, srs.ErrInvalidQuality)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	}

	assert.Equal(t, before, f.ctrl.Deck())
	assert.Equal(t, putsBefore, f.store.puts)
	assert.Equal(t, 0, f.recorder.calls)
	assert.Equal(t, 1, s.Position())
}

func TestGradeEmptySession(t *testing.T) {
	f := newFixture(t, sampleDeck())
	s := f.ctrl.StartSession()
	s.End()

	_, err := f.ctrl.Grade(context.Background(), s, srs.Good)
	assert.ErrorIs(t, err, ErrEmptySession)
	assert.Equal(t, 0, f.recorder.calls)

	_, err = f.ctrl.Grade(context.Background(), nil, srs.Good)
	assert.ErrorIs(t, err, ErrEmptySession)
}

func TestNilSessionAccessors(t *testing.T) {
	var s *Session
	assert.NotPanics(t, func() {
		s.Reveal()
		assert.False(t, s.Revealed())
		assert.True(t, s.Done())
		assert.Zero(t, s.Position())
		assert.Zero(t, s.Len())
		assert.Zero(t, s.Remaining())
		assert.Nil(t, s.Cards())
		_, ok := s.Current()
		assert.False(t, ok)
		s.End()
	})
}

func TestGradePersistenceFailure(t *testing.T) {
	f := newFixture(t, sampleDeck())
	s := f.ctrl.StartSession()
	f.store.failPuts = true

	deck, err := f.ctrl.Grade(context.Background(), s, srs.Good)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "grade", perr.Operation)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	// The in-memory update stands and the session moved on.
	assert.NotNil(t, deck[deck.IndexOf("overdue")].Scheduling)
	assert.Equal(t, deck, f.ctrl.Deck())
	assert.Equal(t, 2, s.Position())
	assert.Equal(t, 1, f.recorder.calls)

	// The store still holds the old deck.
	assert.Equal(t, sampleDeck(), f.stored(t))
}

func TestAbandonedSessionKeepsGradedCards(t *testing.T) {
	f := newFixture(t, sampleDeck())
	s := f.ctrl.StartSession()

	_, err := f.ctrl.Grade(context.Background(), s, srs.Good)
	require.NoError(t, err)
	s.End()

	stored := f.stored(t)
	assert.NotNil(t, stored[stored.IndexOf("overdue")].Scheduling)
	assert.Equal(t, sampleDeck()[1].Scheduling, stored[stored.IndexOf("today")].Scheduling)
	assert.Nil(t, stored[stored.IndexOf("new")].Scheduling)
	assert.Equal(t, 1, f.recorder.calls)
}

func TestDuplicateFrontsAreScheduledIndependently(t *testing.T) {
	deck := domain.Deck{
		{ID: "a", Front: "same", Back: "first"},
		{ID: "b", Front: "same", Back: "second"},
	}
	f := newFixture(t, deck)
	s := f.ctrl.StartSession()

	cur, _ := s.Current()
	require.Equal(t, "b", cur.ID)

	out, err := f.ctrl.Grade(context.Background(), s, srs.Good)
	require.NoError(t, err)
	assert.Nil(t, out[0].Scheduling)
	require.NotNil(t, out[1].Scheduling)
}

func TestGradeCardRemovedMidSession(t *testing.T) {
	f := newFixture(t, sampleDeck())
	s := f.ctrl.StartSession()
	require.NoError(t, f.ctrl.RemoveAll(context.Background()))

	_, err := f.ctrl.Grade(context.Background(), s, srs.Good)
	assert.ErrorIs(t, err, ErrCardNotFound)
	assert.Equal(t, 2, s.Position())
	assert.Equal(t, 0, f.recorder.calls)
}

func TestSessionUsesSnapshot(t *testing.T) {
	f := newFixture(t, sampleDeck())
	s := f.ctrl.StartSession()

	_, err := f.ctrl.AddCards(context.Background(), domain.Card{Front: "late", Back: "addition"})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
}

func TestAddCards(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	deck, err := f.ctrl.AddCards(ctx,
		domain.Card{Front: "Q1", Back: "A1"},
		domain.Card{Front: "Q1", Back: "A1"},
	)
	require.NoError(t, err)
	require.Len(t, deck, 2)
	assert.NotEmpty(t, deck[0].ID)
	assert.NotEqual(t, deck[0].ID, deck[1].ID)
	assert.Equal(t, deck, f.stored(t))

	_, err = f.ctrl.AddCards(ctx, domain.Card{Front: "ok", Back: "ok"}, domain.Card{Front: "", Back: "missing front"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Len(t, f.ctrl.Deck(), 2)
}

func TestAddCardsReplacesTakenIDs(t *testing.T) {
	f := newFixture(t, sampleDeck())
	ctx := context.Background()

	deck, err := f.ctrl.AddCards(ctx,
		domain.Card{ID: "new", Front: "clashes with deck", Back: "1"},
		domain.Card{ID: "x", Front: "A", Back: "2"},
		domain.Card{ID: "x", Front: "B", Back: "3"},
	)
	require.NoError(t, err)
	require.Len(t, deck, 7)

	seen := map[string]bool{}
	for _, c := range deck {
		assert.False(t, seen[c.ID], "repeated id %q", c.ID)
		seen[c.ID] = true
	}
	assert.Equal(t, "x", deck[5].ID)
	assert.NotEqual(t, "new", deck[4].ID)

	// Every card in the session is scheduled exactly once.
	s := f.ctrl.StartSession()
	for !s.Done() {
		_, err := f.ctrl.Grade(ctx, s, srs.Good)
		require.NoError(t, err)
	}
	for _, c := range f.ctrl.Deck() {
		if c.ID != "future" {
			require.NotNil(t, c.Scheduling, c.Front)
		}
	}
	assert.Empty(t, f.ctrl.Due())
}

func TestRemoveAll(t *testing.T) {
	f := newFixture(t, sampleDeck())
	require.NoError(t, f.ctrl.RemoveAll(context.Background()))

	assert.Empty(t, f.ctrl.Deck())
	_, err := f.store.Get(context.Background(), storage.DeckKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeckRoundTripThroughStore(t *testing.T) {
	f := newFixture(t, sampleDeck())
	s := f.ctrl.StartSession()
	_, err := f.ctrl.Grade(context.Background(), s, srs.Good)
	require.NoError(t, err)

	reloaded := NewController(f.store, Options{Clock: f.clock})
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Equal(t, f.ctrl.Deck(), reloaded.Deck())
}

func TestDeckSnapshotIsReadOnly(t *testing.T) {
	f := newFixture(t, sampleDeck())
	snap := f.ctrl.Deck()
	snap[1].Scheduling.Interval = 999
	snap[0].Front = "mutated"

	deck := f.ctrl.Deck()
	assert.Equal(t, 6, deck[1].Scheduling.Interval)
	assert.Equal(t, "never reviewed", deck[0].Front)
}

func TestNewRandShufflerIsAPermutation(t *testing.T) {
	cards := make([]domain.Card, 20)
	for i := range cards {
		cards[i] = domain.Card{ID: string(rune('a' + i))}
	}
	s := newSession(cards, NewRandShuffler(7))

	seen := map[string]bool{}
	for _, c := range s.Cards() {
		seen[c.ID] = true
	}
	assert.Len(t, seen, 20)

	again := make([]domain.Card, 20)
	for i := range again {
		again[i] = domain.Card{ID: string(rune('a' + i))}
	}
	assert.Equal(t, ids(s.Cards()), ids(newSession(again, NewRandShuffler(7)).Cards()), "same seed, same order")
}
