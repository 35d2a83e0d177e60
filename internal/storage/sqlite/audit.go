package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

func insertAuditEntry(ctx context.Context, tx *sql.Tx, entry *models.AuditEntry) error {
	oldValue, err := storage.MarshalSnapshot(entry.OldValue)
	if err != nil {
		return err
	}
	newValue, err := storage.MarshalSnapshot(entry.NewValue)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_trail (id, group_id, expense_id, user_id, action, old_value, new_value, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.GroupID, entry.ExpenseID, entry.UserID, string(entry.Action),
		oldValue, newValue, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListAuditTrail retrieves a page of a group's audit entries, newest first.
func (s *SQLiteStore) ListAuditTrail(ctx context.Context, groupID string, offset, limit int) ([]*models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, expense_id, user_id, action, old_value, new_value, created_at
		 FROM audit_trail WHERE group_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		groupID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit trail: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		entry := &models.AuditEntry{}
		var action string
		var oldValue, newValue sql.NullString
		if err := rows.Scan(&entry.ID, &entry.GroupID, &entry.ExpenseID, &entry.UserID,
			&action, &oldValue, &newValue, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Action = models.AuditAction(action)

		if entry.OldValue, err = storage.UnmarshalSnapshot(nullableText(oldValue)); err != nil {
			return nil, err
		}
		if entry.NewValue, err = storage.UnmarshalSnapshot(nullableText(newValue)); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit trail: %w", err)
	}

	return entries, nil
}

func nullableText(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
