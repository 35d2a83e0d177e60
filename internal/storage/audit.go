package storage

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/settleup/internal/models"
)

// NewAuditEntry builds the audit record for a change to an expense.
// before is nil for creations, after is nil for deletions.
func NewAuditEntry(action models.AuditAction, actorID string, before, after *models.Expense) (*models.AuditEntry, error) {
	entry := &models.AuditEntry{
		ID:        ulid.Make().String(),
		UserID:    actorID,
		Action:    action,
		CreatedAt: time.Now().Unix(),
	}

	for _, e := range []*models.Expense{after, before} {
		if e != nil {
			entry.GroupID = e.GroupID
			entry.ExpenseID = e.ID
			break
		}
	}

	var err error
	if before != nil {
		if entry.OldValue, err = models.ExpenseSnapshot(before); err != nil {
			return nil, fmt.Errorf("failed to snapshot expense: %w", err)
		}
	}
	if after != nil {
		if entry.NewValue, err = models.ExpenseSnapshot(after); err != nil {
			return nil, fmt.Errorf("failed to snapshot expense: %w", err)
		}
	}
	return entry, nil
}

// MarshalSnapshot encodes an audit snapshot for a text column. A nil snapshot encodes to nil.
func MarshalSnapshot(s *structpb.Struct) (*string, error) {
	if s == nil {
		return nil, nil
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit snapshot: %w", err)
	}
	text := string(b)
	return &text, nil
}

// UnmarshalSnapshot decodes a text column written by MarshalSnapshot.
func UnmarshalSnapshot(text *string) (*structpb.Struct, error) {
	if text == nil || *text == "" {
		return nil, nil
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal([]byte(*text), s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit snapshot: %w", err)
	}
	return s, nil
}
