package recurring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage/sqlite"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 9, 0, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	start := date(2024, time.January, 31)

	tests := []struct {
		freq models.Frequency
		want time.Time
	}{
		{models.FrequencyDaily, date(2024, time.February, 1)},
		{models.FrequencyWeekly, date(2024, time.February, 7)},
		{models.FrequencyMonthly, date(2024, time.March, 2)},
		{models.FrequencyYearly, date(2025, time.January, 31)},
	}

	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			got, err := NextOccurrence(tt.freq, start)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NextOccurrence("hourly", start)
	assert.Error(t, err)
}

type fixture struct {
	store     *sqlite.SQLiteStore
	scheduler *Scheduler
	metrics   *metrics.Metrics
	groupID   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	group := &models.Group{Name: "Flat", AdminID: "alice", Members: []string{"bob"}}
	require.NoError(t, store.CreateGroup(context.Background(), group))

	m := metrics.New()
	return &fixture{
		store:     store,
		scheduler: NewScheduler(store, time.Hour, m),
		metrics:   m,
		groupID:   group.ID,
	}
}

func (f *fixture) template(t *testing.T, freq models.Frequency, start, end time.Time) *models.RecurringExpense {
	t.Helper()
	rec := &models.RecurringExpense{
		GroupID:     f.groupID,
		PayerID:     "alice",
		Description: "Internet",
		Amount:      60,
		Frequency:   freq,
		StartDate:   start.Unix(),
	}
	if !end.IsZero() {
		rec.EndDate = end.Unix()
	}
	require.NoError(t, f.store.CreateRecurringExpense(context.Background(), rec))
	return rec
}

func TestRunOnce_CatchesUpMissedOccurrences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.template(t, models.FrequencyMonthly, date(2024, time.January, 31), time.Time{})

	n, err := f.scheduler.RunOnce(ctx, date(2024, time.April, 15))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.RecurringMaterialized))

	expenses, err := f.store.ListExpensesByGroup(ctx, f.groupID)
	require.NoError(t, err)
	require.Len(t, expenses, 3)

	wantDates := []time.Time{
		date(2024, time.January, 31),
		date(2024, time.March, 2),
		date(2024, time.April, 2),
	}
	for i, e := range expenses {
		assert.Equal(t, wantDates[i].Unix(), e.CreatedAt, "occurrence %d", i)
		assert.Equal(t, rec.ID, e.RecurringID)
		assert.Equal(t, "alice", e.PayerID)
		assert.Empty(t, e.Shares)
	}

	recs, err := f.store.ListRecurringExpenses(ctx, f.groupID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, date(2024, time.May, 2).Unix(), recs[0].NextRunAt)

	t.Run("second run is a no-op", func(t *testing.T) {
		n, err := f.scheduler.RunOnce(ctx, date(2024, time.April, 15))
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("audit trail credits the payer", func(t *testing.T) {
		entries, err := f.store.ListAuditTrail(ctx, f.groupID, 0, 10)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		for _, e := range entries {
			assert.Equal(t, models.AuditCreated, e.Action)
			assert.Equal(t, "alice", e.UserID)
		}
	})
}

func TestRunOnce_StopsAtEndDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.template(t, models.FrequencyDaily, date(2024, time.January, 1), date(2024, time.January, 3).Add(3*time.Hour))

	n, err := f.scheduler.RunOnce(ctx, date(2024, time.January, 10))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	due, err := f.store.ListDueRecurringExpenses(ctx, date(2024, time.February, 1).Unix())
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestRunOnce_NotYetDue(t *testing.T) {
	f := newFixture(t)
	f.template(t, models.FrequencyWeekly, date(2030, time.January, 1), time.Time{})

	n, err := f.scheduler.RunOnce(context.Background(), date(2024, time.January, 1))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.template(t, models.FrequencyDaily, time.Now().Add(-36*time.Hour), time.Time{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.scheduler.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.RecurringMaterialized) == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
