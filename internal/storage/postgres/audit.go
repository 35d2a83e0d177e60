package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

func insertAuditEntry(ctx context.Context, tx pgx.Tx, entry *models.AuditEntry) error {
	oldValue, err := storage.MarshalSnapshot(entry.OldValue)
	if err != nil {
		return err
	}
	newValue, err := storage.MarshalSnapshot(entry.NewValue)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO audit_trail (id, group_id, expense_id, user_id, action, old_value, new_value, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.GroupID, entry.ExpenseID, entry.UserID, string(entry.Action),
		oldValue, newValue, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListAuditTrail retrieves a page of a group's audit entries, newest first.
func (s *PostgresStore) ListAuditTrail(ctx context.Context, groupID string, offset, limit int) ([]*models.AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, group_id, expense_id, user_id, action, old_value::text, new_value::text, created_at
		 FROM audit_trail WHERE group_id = $1
		 ORDER BY seq DESC LIMIT $2 OFFSET $3`,
		groupID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit trail: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.AuditEntry, error) {
		entry := &models.AuditEntry{}
		var action string
		var oldValue, newValue *string
		if err := row.Scan(&entry.ID, &entry.GroupID, &entry.ExpenseID, &entry.UserID,
			&action, &oldValue, &newValue, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Action = models.AuditAction(action)

		var err error
		if entry.OldValue, err = storage.UnmarshalSnapshot(oldValue); err != nil {
			return nil, err
		}
		if entry.NewValue, err = storage.UnmarshalSnapshot(newValue); err != nil {
			return nil, err
		}
		return entry, nil
	})
}
