package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

const recurringColumns = "id, group_id, payer_id, description, amount, frequency, start_date, end_date, next_run_at, created_at"

func (s *PostgresStore) CreateRecurringExpense(ctx context.Context, rec *models.RecurringExpense) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = time.Now().Unix()
	rec.NextRunAt = rec.StartDate

	_, err := s.pool.Exec(ctx,
		`INSERT INTO recurring_expenses (`+recurringColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.GroupID, rec.PayerID, rec.Description, rec.Amount, string(rec.Frequency),
		rec.StartDate, nullableInt(rec.EndDate), rec.NextRunAt, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert recurring expense: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecurringExpenses(ctx context.Context, groupID string) ([]*models.RecurringExpense, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+recurringColumns+" FROM recurring_expenses WHERE group_id = $1 ORDER BY created_at, seq",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring expenses: %w", err)
	}
	return collectRecurring(rows)
}

func (s *PostgresStore) GetRecurringExpense(ctx context.Context, id string) (*models.RecurringExpense, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+recurringColumns+" FROM recurring_expenses WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get recurring expense: %w", err)
	}
	recs, err := collectRecurring(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: recurring expense %s", storage.ErrNotFound, id)
	}
	return recs[0], nil
}

// DeleteRecurringExpense removes a template; materialized expenses keep their recurring_id.
func (s *PostgresStore) DeleteRecurringExpense(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM recurring_expenses WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete recurring expense: %w", err)
	}
	return requireAffected(tag, "recurring expense", id)
}

func (s *PostgresStore) ListDueRecurringExpenses(ctx context.Context, now int64) ([]*models.RecurringExpense, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recurringColumns+` FROM recurring_expenses
		 WHERE next_run_at <= $1 AND (end_date IS NULL OR next_run_at <= end_date)
		 ORDER BY next_run_at, seq`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due recurring expenses: %w", err)
	}
	return collectRecurring(rows)
}

// MaterializeRecurringExpense records one occurrence of rec and advances its schedule.
// The conditional update makes a second scheduler racing on the same template a no-op.
func (s *PostgresStore) MaterializeRecurringExpense(ctx context.Context, rec *models.RecurringExpense, expense *models.Expense, nextRunAt int64) error {
	return s.inTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			"UPDATE recurring_expenses SET next_run_at = $1 WHERE id = $2 AND next_run_at = $3",
			nextRunAt, rec.ID, rec.NextRunAt,
		)
		if err != nil {
			return fmt.Errorf("failed to advance recurring expense: %w", err)
		}
		if err := requireAffected(tag, "recurring expense", rec.ID); err != nil {
			return err
		}

		if expense != nil {
			expense.RecurringID = rec.ID
			if err := createExpense(ctx, tx, expense, rec.PayerID); err != nil {
				return err
			}
		}

		rec.NextRunAt = nextRunAt
		return nil
	})
}

func collectRecurring(rows pgx.Rows) ([]*models.RecurringExpense, error) {
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.RecurringExpense, error) {
		rec := &models.RecurringExpense{}
		var frequency string
		var endDate *int64
		err := row.Scan(
			&rec.ID, &rec.GroupID, &rec.PayerID, &rec.Description, &rec.Amount, &frequency,
			&rec.StartDate, &endDate, &rec.NextRunAt, &rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		rec.Frequency = models.Frequency(frequency)
		if endDate != nil {
			rec.EndDate = *endDate
		}
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan recurring expenses: %w", err)
	}
	return recs, nil
}
