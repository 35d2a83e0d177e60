package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

const expenseColumns = "id, group_id, payer_id, description, amount, is_settlement, recurring_id, created_at"

// CreateExpense persists a new expense and its audit entry.
func (s *PostgresStore) CreateExpense(ctx context.Context, expense *models.Expense, actorID string) error {
	return s.inTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return createExpense(ctx, tx, expense, actorID)
	})
}

func createExpense(ctx context.Context, tx pgx.Tx, expense *models.Expense, actorID string) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		expense.ID, expense.GroupID, expense.PayerID, expense.Description, expense.Amount,
		expense.IsSettlement, nullableString(expense.RecurringID), expense.CreatedAt,
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

func insertShares(ctx context.Context, tx pgx.Tx, expenseID string, shares map[string]float64) error {
	if len(shares) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for memberID, amount := range shares {
		batch.Queue(
			"INSERT INTO expense_shares (expense_id, member_id, amount) VALUES ($1, $2, $3)",
			expenseID, memberID, amount,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert expense shares: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return getExpense(ctx, s.pool, expenseID)
}

func getExpense(ctx context.Context, q querier, expenseID string) (*models.Expense, error) {
	expense, err := scanExpense(q.QueryRow(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = $1", expenseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: expense %s", storage.ErrNotFound, expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	rows, err := q.Query(ctx, "SELECT expense_id, member_id, amount FROM expense_shares WHERE expense_id = $1", expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense shares: %w", err)
	}
	if err := attachShares(rows, map[string]*models.Expense{expense.ID: expense}); err != nil {
		return nil, err
	}
	return expense, nil
}

// UpdateExpense applies patch to an expense and records the change.
func (s *PostgresStore) UpdateExpense(ctx context.Context, expenseID string, patch models.ExpensePatch, actorID string) (*models.Expense, error) {
	var updated *models.Expense
	err := s.inTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		// Lock the row so concurrent edits serialize
		if _, err := tx.Exec(ctx, "SELECT 1 FROM expenses WHERE id = $1 FOR UPDATE", expenseID); err != nil {
			return fmt.Errorf("failed to lock expense: %w", err)
		}
		before, err := getExpense(ctx, tx, expenseID)
		if err != nil {
			return err
		}
		after := before.Clone()
		patch.Apply(after)

		_, err = tx.Exec(ctx,
			"UPDATE expenses SET description = $1, amount = $2 WHERE id = $3",
			after.Description, after.Amount, expenseID,
		)
		if err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}

		if patch.Shares != nil {
			if _, err := tx.Exec(ctx, "DELETE FROM expense_shares WHERE expense_id = $1", expenseID); err != nil {
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
func (s *PostgresStore) DeleteExpense(ctx context.Context, expenseID, actorID string) error {
	return s.inTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		before, err := getExpense(ctx, tx, expenseID)
		if err != nil {
			return err
		}

		entry, err := storage.NewAuditEntry(models.AuditDeleted, actorID, before, nil)
		if err != nil {
			return err
		}
		if err := insertAuditEntry(ctx, tx, entry); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, "DELETE FROM expenses WHERE id = $1", expenseID)
		if err != nil {
			return fmt.Errorf("failed to delete expense: %w", err)
		}
		return requireAffected(tag, "expense", expenseID)
	})
}

// ListExpensesByGroup retrieves a group's expenses in the order they were recorded.
func (s *PostgresStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	return listExpenses(ctx, s.pool, groupID)
}

func listExpenses(ctx context.Context, q querier, groupID string) ([]*models.Expense, error) {
	rows, err := q.Query(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE group_id = $1 ORDER BY created_at, seq",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by group: %w", err)
	}
	expenses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Expense, error) {
		return scanExpense(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan expenses: %w", err)
	}

	byID := make(map[string]*models.Expense, len(expenses))
	for _, e := range expenses {
		byID[e.ID] = e
	}

	shareRows, err := q.Query(ctx,
		`SELECT s.expense_id, s.member_id, s.amount
		 FROM expense_shares s JOIN expenses e ON e.id = s.expense_id
		 WHERE e.group_id = $1`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expense shares: %w", err)
	}
	if err := attachShares(shareRows, byID); err != nil {
		return nil, err
	}
	return expenses, nil
}

// GetLedger reads a group's members and expenses from one repeatable-read snapshot.
func (s *PostgresStore) GetLedger(ctx context.Context, groupID string) (*models.Ledger, error) {
	var ledger *models.Ledger
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := s.inTx(ctx, opts, func(tx pgx.Tx) error {
		group, err := getGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		expenses, err := listExpenses(ctx, tx, groupID)
		if err != nil {
			return err
		}
		ledger = &models.Ledger{GroupID: group.ID, Members: group.Members, Expenses: expenses}
		return nil
	})
	return ledger, err
}

func attachShares(rows pgx.Rows, byID map[string]*models.Expense) error {
	defer rows.Close()
	for rows.Next() {
		var expenseID, memberID string
		var amount float64
		if err := rows.Scan(&expenseID, &memberID, &amount); err != nil {
			return fmt.Errorf("failed to scan expense share: %w", err)
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
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate expense shares: %w", err)
	}
	return nil
}

func scanExpense(row pgx.Row) (*models.Expense, error) {
	expense := &models.Expense{}
	var recurringID *string
	err := row.Scan(
		&expense.ID, &expense.GroupID, &expense.PayerID, &expense.Description,
		&expense.Amount, &expense.IsSettlement, &recurringID, &expense.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if recurringID != nil {
		expense.RecurringID = *recurringID
	}
	return expense, nil
}
