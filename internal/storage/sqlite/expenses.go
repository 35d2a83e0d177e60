package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

const expenseColumns = "id, group_id, payer_id, description, amount, is_settlement, recurring_id, created_at"

// CreateExpense persists a new expense and its audit entry.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense, actorID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return createExpense(ctx, tx, expense, actorID)
	})
}

func createExpense(ctx context.Context, tx *sql.Tx, expense *models.Expense, actorID string) error {
	// Generate ID if not set
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.PayerID, expense.Description, expense.Amount,
		expense.IsSettlement, nullString(expense.RecurringID), expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := insertShares(ctx, tx, expense.ID, expense.Shares); err != nil {
		return err
	}

	entry, err := storage.NewAuditEntry(models.AuditCreated, actorID, nil, expense)
	if err != nil {
		return err
	}
	return insertAuditEntry(ctx, tx, entry)
}

func insertShares(ctx context.Context, tx *sql.Tx, expenseID string, shares map[string]float64) error {
	for memberID, amount := range shares {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expense_shares (expense_id, member_id, amount) VALUES (?, ?, ?)",
			expenseID, memberID, amount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense share: %w", err)
		}
	}
	return nil
}

// GetExpense retrieves an expense by ID, including its shares.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return getExpense(ctx, s.db, expenseID)
}

func getExpense(ctx context.Context, q queryer, expenseID string) (*models.Expense, error) {
	row := q.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", expenseID)
	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: expense %s", storage.ErrNotFound, expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		"SELECT member_id, amount FROM expense_shares WHERE expense_id = ?",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense shares: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var memberID string
		var amount float64
		if err := rows.Scan(&memberID, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan expense share: %w", err)
		}
		if expense.Shares == nil {
			expense.Shares = make(map[string]float64)
		}
		expense.Shares[memberID] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense shares: %w", err)
	}

	return expense, nil
}

// UpdateExpense applies patch to an expense and records the change.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expenseID string, patch models.ExpensePatch, actorID string) (*models.Expense, error) {
	var updated *models.Expense
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		before, err := getExpense(ctx, tx, expenseID)
		if err != nil {
			return err
		}
		after := before.Clone()
		patch.Apply(after)

		_, err = tx.ExecContext(ctx,
			"UPDATE expenses SET description = ?, amount = ? WHERE id = ?",
			after.Description, after.Amount, expenseID,
		)
		if err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}

		if patch.Shares != nil {
			if _, err := tx.ExecContext(ctx, "DELETE FROM expense_shares WHERE expense_id = ?", expenseID); err != nil {
				return fmt.Errorf("failed to clear expense shares: %w", err)
			}
			if err := insertShares(ctx, tx, expenseID, after.Shares); err != nil {
				return err
			}
		}

		entry, err := storage.NewAuditEntry(models.AuditUpdated, actorID, before, after)
		if err != nil {
			return err
		}
		if err := insertAuditEntry(ctx, tx, entry); err != nil {
			return err
		}

		updated = after
		return nil
	})
	return updated, err
}

// DeleteExpense removes an expense and records the deletion.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID, actorID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		before, err := getExpense(ctx, tx, expenseID)
		if err != nil {
			return err
		}

		// Log the deletion before the row is gone
		entry, err := storage.NewAuditEntry(models.AuditDeleted, actorID, before, nil)
		if err != nil {
			return err
		}
		if err := insertAuditEntry(ctx, tx, entry); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID); err != nil {
			return fmt.Errorf("failed to delete expense: %w", err)
		}
		return nil
	})
}

// ListExpensesByGroup retrieves all expenses for a group in the order they were recorded.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	return listExpenses(ctx, s.db, groupID)
}

func listExpenses(ctx context.Context, q queryer, groupID string) ([]*models.Expense, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE group_id = ? ORDER BY created_at, rowid",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by group: %w", err)
	}

	var expenses []*models.Expense
	byID := make(map[string]*models.Expense)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
		byID[expense.ID] = expense
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	shareRows, err := q.QueryContext(ctx,
		`SELECT s.expense_id, s.member_id, s.amount
		 FROM expense_shares s JOIN expenses e ON e.id = s.expense_id
		 WHERE e.group_id = ?`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expense shares: %w", err)
	}
	defer shareRows.Close()

	for shareRows.Next() {
		var expenseID, memberID string
		var amount float64
		if err := shareRows.Scan(&expenseID, &memberID, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan expense share: %w", err)
		}
		expense, ok := byID[expenseID]
		if !ok {
			continue
		}
		if expense.Shares == nil {
			expense.Shares = make(map[string]float64)
		}
		expense.Shares[memberID] = amount
	}
	if err := shareRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense shares: %w", err)
	}

	return expenses, nil
}

// GetLedger reads a group's members and expenses inside a single transaction so
// the two lists describe the same moment.
func (s *SQLiteStore) GetLedger(ctx context.Context, groupID string) (*models.Ledger, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	group, err := getGroup(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	expenses, err := listExpenses(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}

	return &models.Ledger{
		GroupID:  group.ID,
		Members:  group.Members,
		Expenses: expenses,
	}, nil
}

func scanExpense(row scanner) (*models.Expense, error) {
	expense := &models.Expense{}
	var recurringID sql.NullString
	err := row.Scan(
		&expense.ID, &expense.GroupID, &expense.PayerID, &expense.Description,
		&expense.Amount, &expense.IsSettlement, &recurringID, &expense.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	expense.RecurringID = recurringID.String
	return expense, nil
}
