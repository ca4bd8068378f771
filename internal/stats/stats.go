// Package stats keeps the learner's activity counters and study streak.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/storage"
)

const dateLayout = "2006-01-02"

// Stats is the persisted dashboard record.
type Stats struct {
	Streak             int     `json:"streak"`
	LastActivityDate   string  `json:"lastActivityDate,omitempty"` // YYYY-MM-DD
	QuizzesCompleted   int     `json:"quizzesCompleted"`
	AvgScore           float64 `json:"avgScore"` // percent
	FlashcardsReviewed int     `json:"flashcardsReviewed"`
	TasksCompleted     int     `json:"tasksCompleted"`
}

// Tracker reads and writes Stats through a Store. Each Record call is a
// read-modify-write of the whole record.
type Tracker struct {
	mu     sync.Mutex
	store  storage.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewTracker returns a tracker. now defaults to time.Now.
func NewTracker(store storage.Store, now func() time.Time, logger *slog.Logger) *Tracker {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, now: now, logger: logger.With("component", "stats")}
}

// Get returns the current stats, or zero stats when none were recorded yet.
func (t *Tracker) Get(ctx context.Context) (Stats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx)
}

// RecordReview counts one graded flashcard and updates the streak.
func (t *Tracker) RecordReview(ctx context.Context) error {
	return t.update(ctx, func(s *Stats) error {
		s.FlashcardsReviewed++
		t.touch(s)
		return nil
	})
}

// RecordQuiz folds a quiz result into the running average score.
func (t *Tracker) RecordQuiz(ctx context.Context, score, total int) error {
	if total <= 0 || score < 0 || score > total {
		return fmt.Errorf("%w: quiz score %d/%d", domain.ErrInvalidArgument, score, total)
	}
	return t.update(ctx, func(s *Stats) error {
		points := s.AvgScore*float64(s.QuizzesCompleted) + float64(score)/float64(total)*100
		s.QuizzesCompleted++
		s.AvgScore = points / float64(s.QuizzesCompleted)
		t.touch(s)
		return nil
	})
}

// RecordTask counts a study plan task as done or undone. Only completion
// counts as activity for the streak.
func (t *Tracker) RecordTask(ctx context.Context, completed bool) error {
	return t.update(ctx, func(s *Stats) error {
		if completed {
			s.TasksCompleted++
			t.touch(s)
			return nil
		}
		if s.TasksCompleted > 0 {
			s.TasksCompleted--
		}
		return nil
	})
}

func (t *Tracker) update(ctx context.Context, fn func(*Stats) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(&s); err != nil {
		return err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	if err := t.store.Put(ctx, storage.StatsKey, data); err != nil {
		return fmt.Errorf("%w: stats: %v", domain.ErrPersistence, err)
	}
	t.logger.Debug("stats updated", "streak", s.Streak, "reviewed", s.FlashcardsReviewed)
	return nil
}

func (t *Tracker) load(ctx context.Context) (Stats, error) {
	data, err := t.store.Get(ctx, storage.StatsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return Stats{}, nil
	}
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read stats: %w", err)
	}
	var s Stats
	if err := json.Unmarshal(data, &s); err != nil {
		return Stats{}, fmt.Errorf("%w: stats: %v", domain.ErrInvalidFormat, err)
	}
	return s, nil
}

func (t *Tracker) touch(s *Stats) {
	*s = advanceStreak(*s, t.now())
}

// advanceStreak marks now as an active day. Activity on consecutive days
// extends the streak, a gap resets it to one.
func advanceStreak(s Stats, now time.Time) Stats {
	today := now.Format(dateLayout)
	if s.LastActivityDate == today {
		return s
	}
	yesterday := now.AddDate(0, 0, -1).Format(dateLayout)
	if s.LastActivityDate == yesterday {
		s.Streak++
	} else {
		s.Streak = 1
	}
	s.LastActivityDate = today
	return s
}

// Badge is an achievement unlocked by reaching a threshold.
type Badge struct {
	ID       string
	Label    string
	Unlocked bool
}

// Badges evaluates the dashboard achievements for s.
func Badges(s Stats) []Badge {
	return []Badge{
		{ID: "first-quiz", Label: "Quiz Taker", Unlocked: s.QuizzesCompleted > 0},
		{ID: "ten-flashcards", Label: "Quick Learner", Unlocked: s.FlashcardsReviewed >= 10},
		{ID: "five-day-streak", Label: "5-Day Streak", Unlocked: s.Streak >= 5},
		{ID: "master-planner", Label: "Master Planner", Unlocked: s.TasksCompleted >= 10},
	}
}
