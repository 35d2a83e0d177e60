package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

const recurringColumns = "id, group_id, payer_id, description, amount, frequency, start_date, end_date, next_run_at, created_at"

// CreateRecurringExpense persists a new recurring expense template.
func (s *SQLiteStore) CreateRecurringExpense(ctx context.Context, rec *models.RecurringExpense) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = time.Now().Unix()
	rec.NextRunAt = rec.StartDate

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recurring_expenses (`+recurringColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.GroupID, rec.PayerID, rec.Description, rec.Amount, string(rec.Frequency),
		rec.StartDate, nullInt(rec.EndDate), rec.NextRunAt, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert recurring expense: %w", err)
	}
	return nil
}

// ListRecurringExpenses retrieves a group's recurring templates, oldest first.
func (s *SQLiteStore) ListRecurringExpenses(ctx context.Context, groupID string) ([]*models.RecurringExpense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recurringColumns+" FROM recurring_expenses WHERE group_id = ? ORDER BY created_at, rowid",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring expenses: %w", err)
	}
	return scanRecurringRows(rows)
}

// GetRecurringExpense retrieves one template by ID.
func (s *SQLiteStore) GetRecurringExpense(ctx context.Context, id string) (*models.RecurringExpense, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+recurringColumns+" FROM recurring_expenses WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get recurring expense: %w", err)
	}
	recs, err := scanRecurringRows(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: recurring expense %s", storage.ErrNotFound, id)
	}
	return recs[0], nil
}

// DeleteRecurringExpense removes a template. Expenses it already produced stay.
func (s *SQLiteStore) DeleteRecurringExpense(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM recurring_expenses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete recurring expense: %w", err)
	}
	return requireAffected(result, "recurring expense", id)
}

// ListDueRecurringExpenses retrieves templates with an occurrence at or before now.
func (s *SQLiteStore) ListDueRecurringExpenses(ctx context.Context, now int64) ([]*models.RecurringExpense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_expenses
		 WHERE next_run_at <= ? AND (end_date IS NULL OR next_run_at <= end_date)
		 ORDER BY next_run_at, rowid`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due recurring expenses: %w", err)
	}
	return scanRecurringRows(rows)
}

// MaterializeRecurringExpense records one occurrence of rec and advances its schedule.
func (s *SQLiteStore) MaterializeRecurringExpense(ctx context.Context, rec *models.RecurringExpense, expense *models.Expense, nextRunAt int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// Guard against a concurrent run having already advanced the template
		result, err := tx.ExecContext(ctx,
			"UPDATE recurring_expenses SET next_run_at = ? WHERE id = ? AND next_run_at = ?",
			nextRunAt, rec.ID, rec.NextRunAt,
		)
		if err != nil {
			return fmt.Errorf("failed to advance recurring expense: %w", err)
		}
		if err := requireAffected(result, "recurring expense", rec.ID); err != nil {
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

func scanRecurringRows(rows *sql.Rows) ([]*models.RecurringExpense, error) {
	defer rows.Close()

	var recs []*models.RecurringExpense
	for rows.Next() {
		rec := &models.RecurringExpense{}
		var frequency string
		var endDate sql.NullInt64
		err := rows.Scan(
			&rec.ID, &rec.GroupID, &rec.PayerID, &rec.Description, &rec.Amount, &frequency,
			&rec.StartDate, &endDate, &rec.NextRunAt, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring expense: %w", err)
		}
		rec.Frequency = models.Frequency(frequency)
		rec.EndDate = endDate.Int64
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recurring expenses: %w", err)
	}
	return recs, nil
}
