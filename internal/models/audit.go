package models

import "google.golang.org/protobuf/types/known/structpb"

// AuditAction is what happened to an expense.
type AuditAction string

const (
	AuditCreated AuditAction = "created"
	AuditUpdated AuditAction = "updated"
	AuditDeleted AuditAction = "deleted"
)

// AuditEntry records one change to an expense.
type AuditEntry struct {
	// ID is a ULID, so entries sort by creation time.
	ID        string
	GroupID   string
	ExpenseID string
	UserID    string
	Action    AuditAction

	// OldValue and NewValue are snapshots of the expense before and after the change.
	// OldValue is nil for creations, NewValue is nil for deletions.
	OldValue *structpb.Struct
	NewValue *structpb.Struct

	CreatedAt int64
}

// ExpenseSnapshot captures the audited fields of an expense.
func ExpenseSnapshot(e *Expense) (*structpb.Struct, error) {
	shares := make(map[string]any, len(e.Shares))
	for id, amount := range e.Shares {
		shares[id] = amount
	}
	return structpb.NewStruct(map[string]any{
		"description":   e.Description,
		"amount":        e.Amount,
		"payer_id":      e.PayerID,
		"shares":        shares,
		"is_settlement": e.IsSettlement,
	})
}
