package review

import (
	"math/rand/v2"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
)

// Clock supplies the current time. Only its calendar date matters for scheduling.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Shuffler permutes a session's cards, with the same contract as rand.Shuffle.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// NewRandShuffler returns a uniform shuffler. A zero seed draws a random one.
func NewRandShuffler(seed uint64) Shuffler {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// DueCards returns the cards that are unscheduled or due on or before today, in deck order.
func DueCards(deck domain.Deck, today time.Time) []domain.Card {
	var due []domain.Card
	for _, c := range deck {
		if c.IsDue(today) {
			due = append(due, c.Clone())
		}
	}
	return due
}

// Session is one pass over a snapshot of due cards. It is never persisted and
// never the source of truth for scheduling.
type Session struct {
	cards    []domain.Card
	cursor   int
	revealed bool
}

func newSession(cards []domain.Card, shuffler Shuffler) *Session {
	s := &Session{cards: cards}
	if shuffler != nil && len(cards) > 1 {
		shuffler.Shuffle(len(cards), func(i, j int) {
			s.cards[i], s.cards[j] = s.cards[j], s.cards[i]
		})
	}
	return s
}

// Current returns the card under the cursor.
func (s *Session) Current() (domain.Card, bool) {
	if s.Done() {
		return domain.Card{}, false
	}
	return s.cards[s.cursor], true
}

// Reveal flips the current card.
func (s *Session) Reveal() {
	if s.Done() {
		return
	}
	s.revealed = !s.revealed
}

// Revealed reports whether the back of the current card is showing.
func (s *Session) Revealed() bool { return s != nil && s.revealed }

// Position is the 1-based index of the current card, or 0 once done.
func (s *Session) Position() int {
	if s.Done() {
		return 0
	}
	return s.cursor + 1
}

// Len is the number of cards the session started with.
func (s *Session) Len() int {
	if s == nil {
		return 0
	}
	return len(s.cards)
}

// Remaining is the number of cards not yet graded.
func (s *Session) Remaining() int {
	if s.Done() {
		return 0
	}
	return len(s.cards) - s.cursor
}

// Done reports whether there is no current card.
func (s *Session) Done() bool {
	return s == nil || s.cursor >= len(s.cards)
}

// Cards returns the session order.
func (s *Session) Cards() []domain.Card {
	if s == nil {
		return nil
	}
	out := make([]domain.Card, len(s.cards))
	copy(out, s.cards)
	return out
}

// End abandons the session. Already graded cards keep their new scheduling.
func (s *Session) End() {
	if s == nil {
		return
	}
	s.cursor = len(s.cards)
	s.revealed = false
}

func (s *Session) advance() {
	s.cursor++
	s.revealed = false
}
