package srs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
)

// ErrInvalidQuality is returned for grades outside 0..5.
var ErrInvalidQuality = fmt.Errorf("%w: quality must be between 0 and 5", domain.ErrInvalidArgument)

// Quality is the learner's 0..5 recall grade.
type Quality int

// The grades offered by the review screen.
const (
	Hard Quality = 1
	Good Quality = 3
	Easy Quality = 5
)

// Valid reports whether q is within 0..5.
func (q Quality) Valid() bool {
	return q >= 0 && q <= 5
}

func (q Quality) String() string {
	switch q {
	case Hard:
		return "hard"
	case Good:
		return "good"
	case Easy:
		return "easy"
	}
	return strconv.Itoa(int(q))
}

// ParseQuality accepts "hard", "good", "easy" or a single digit 0..5.
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hard":
		return Hard, nil
	case "good":
		return Good, nil
	case "easy":
		return Easy, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || !Quality(n).Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidQuality, s)
	}
	return Quality(n), nil
}

// Params holds the constants of the SM-2 variant.
type Params struct {
	InitialEaseFactor  float64 // ease factor of a never-reviewed card
	MinEaseFactor      float64 // floor applied after every review
	GraduatingInterval int     // interval after the second successful review
}

// DefaultParams returns the classic SM-2 values.
func DefaultParams() *Params {
	return &Params{
		InitialEaseFactor:  2.5,
		MinEaseFactor:      1.3,
		GraduatingInterval: 6,
	}
}

// Scheduler computes the next review state of a card. It holds no mutable state.
type Scheduler struct {
	params *Params
}

// NewScheduler returns a scheduler using p, or DefaultParams when p is nil.
func NewScheduler(p *Params) *Scheduler {
	if p == nil {
		p = DefaultParams()
	}
	return &Scheduler{params: p}
}

// Schedule returns the scheduling state after grading a card with quality q on the day of now.
// prev is nil for a card that has never been reviewed.
func (s *Scheduler) Schedule(prev *domain.Scheduling, q Quality, now time.Time) (domain.Scheduling, error) {
	if !q.Valid() {
		return domain.Scheduling{}, fmt.Errorf("%w: got %d", ErrInvalidQuality, int(q))
	}

	interval, ease := 0, s.params.InitialEaseFactor
	if prev != nil {
		interval, ease = prev.Interval, prev.EaseFactor
	}

	next := s.nextInterval(interval, ease, q)

	return domain.Scheduling{
		Interval:   next,
		EaseFactor: s.nextEaseFactor(ease, q),
		DueDate:    domain.DateOf(now).AddDate(0, 0, next),
	}, nil
}

func (s *Scheduler) nextInterval(interval int, ease float64, q Quality) int {
	if q < Good {
		return 1 // lapse
	}
	switch interval {
	case 0:
		return 1
	case 1:
		return s.params.GraduatingInterval
	default:
		return int(math.Round(float64(interval) * ease))
	}
}

// nextEaseFactor applies EF' = EF + (0.1 - (5-q)(0.08 + (5-q)0.02)), floored at MinEaseFactor.
func (s *Scheduler) nextEaseFactor(ease float64, q Quality) float64 {
	d := float64(5 - q)
	ease += 0.1 - d*(0.08+d*0.02)
	if ease < s.params.MinEaseFactor {
		ease = s.params.MinEaseFactor
	}
	return ease
}
