// Package recurring turns recurring expense templates into expenses as their
// occurrences come due.
package recurring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

// maxCatchUp bounds how many missed occurrences one template may produce in a
// single run.
const maxCatchUp = 1000

// NextOccurrence returns the occurrence after t for the given frequency.
// Monthly and yearly steps follow time.AddDate normalization, so Jan 31 plus
// one month lands on Mar 3 (or Mar 2 in a leap year).
func NextOccurrence(freq models.Frequency, t time.Time) (time.Time, error) {
	switch freq {
	case models.FrequencyDaily:
		return t.AddDate(0, 0, 1), nil
	case models.FrequencyWeekly:
		return t.AddDate(0, 0, 7), nil
	case models.FrequencyMonthly:
		return t.AddDate(0, 1, 0), nil
	case models.FrequencyYearly:
		return t.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown frequency %q", freq)
	}
}

// Scheduler materializes due recurring expenses.
type Scheduler struct {
	store    storage.RecurringStore
	interval time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewScheduler creates a scheduler that checks for due templates every interval.
func NewScheduler(store storage.RecurringStore, interval time.Duration, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		store:    store,
		interval: interval,
		metrics:  m,
		now:      time.Now,
	}
}

// Run checks for due templates immediately and then every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("Recurring expense scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if n, err := s.RunOnce(ctx, s.now()); err != nil {
			slog.Error("Recurring expense run failed", "error", err)
		} else if n > 0 {
			slog.Info("Recurring expenses materialized", "count", n)
		}

		select {
		case <-ctx.Done():
			slog.Info("Recurring expense scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce materializes every occurrence due at or before now and returns how
// many expenses were created. A failing template is logged and skipped.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.ListDueRecurringExpenses(ctx, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to list due recurring expenses: %w", err)
	}

	created := 0
	for _, rec := range due {
		n, err := s.catchUp(ctx, rec, now)
		created += n
		if err != nil {
			if ctx.Err() != nil {
				return created, ctx.Err()
			}
			s.metrics.RecurringFailures.Inc()
			slog.Error("Failed to materialize recurring expense",
				"recurring_id", rec.ID,
				"group_id", rec.GroupID,
				"error", err,
			)
		}
	}
	return created, nil
}

// catchUp creates one expense per occurrence of rec up to now, advancing the
// template after each so a crash never duplicates an occurrence.
func (s *Scheduler) catchUp(ctx context.Context, rec *models.RecurringExpense, now time.Time) (int, error) {
	created := 0
	for i := 0; i < maxCatchUp && rec.NextRunAt <= now.Unix() && rec.Active(rec.NextRunAt); i++ {
		occurrence := time.Unix(rec.NextRunAt, 0).UTC()
		next, err := NextOccurrence(rec.Frequency, occurrence)
		if err != nil {
			return created, err
		}

		expense := &models.Expense{
			GroupID:     rec.GroupID,
			PayerID:     rec.PayerID,
			Description: rec.Description,
			Amount:      rec.Amount,
			CreatedAt:   rec.NextRunAt,
		}

		err = s.store.MaterializeRecurringExpense(ctx, rec, expense, next.Unix())
		if errors.Is(err, storage.ErrNotFound) {
			// Another scheduler advanced or deleted the template first
			return created, nil
		}
		if err != nil {
			return created, err
		}

		created++
		s.metrics.RecurringMaterialized.Inc()
		slog.Debug("Recurring expense materialized",
			"recurring_id", rec.ID,
			"expense_id", expense.ID,
			"occurrence", occurrence,
		)
	}
	return created, nil
}
