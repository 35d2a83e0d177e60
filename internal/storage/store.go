// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/settleup/internal/models"
)

var (
	// ErrNotFound is returned (wrapped) when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned (wrapped) on a uniqueness conflict.
	ErrAlreadyExists = errors.New("already exists")
)

// Store defines the interface for settleup storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	UserStore
	GroupStore
	ExpenseStore
	RecurringStore

	// Close releases any resources held by the store.
	Close() error
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	// GetUserByEmail returns ErrNotFound if no user has the email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	// GetUsersByIDs omits IDs that do not exist.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// GroupStore persists groups and their membership.
type GroupStore interface {
	// CreateGroup persists a new group. The group.ID and CreatedAt fields are
	// populated by the store, and the admin is added as a member.
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	// ListGroupsForUser returns the groups userID is a member of, newest first.
	ListGroupsForUser(ctx context.Context, userID string) ([]*models.Group, error)
	UpdateGroup(ctx context.Context, groupID string, patch models.GroupPatch) (*models.Group, error)
	// DeleteGroup removes the group along with its expenses, recurring templates and audit trail.
	DeleteGroup(ctx context.Context, groupID string) error

	// AddGroupMember returns ErrAlreadyExists if the user is already a member.
	AddGroupMember(ctx context.Context, groupID, userID string) error
	// RemoveGroupMember returns ErrNotFound if the user is not a member.
	RemoveGroupMember(ctx context.Context, groupID, userID string) error
}

// ExpenseStore persists expenses and their audit trail. Every mutation writes
// its audit entry in the same transaction.
type ExpenseStore interface {
	// CreateExpense populates expense.ID and CreatedAt. actorID is recorded in the audit trail.
	CreateExpense(ctx context.Context, expense *models.Expense, actorID string) error
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)
	// UpdateExpense applies patch and returns the updated expense.
	UpdateExpense(ctx context.Context, expenseID string, patch models.ExpensePatch, actorID string) (*models.Expense, error)
	DeleteExpense(ctx context.Context, expenseID, actorID string) error
	// ListExpensesByGroup returns a group's expenses, oldest first.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error)

	// GetLedger reads a group's members and expenses in one read-only transaction.
	GetLedger(ctx context.Context, groupID string) (*models.Ledger, error)

	// ListAuditTrail returns a group's audit entries, newest first.
	ListAuditTrail(ctx context.Context, groupID string, offset, limit int) ([]*models.AuditEntry, error)
}

// RecurringStore persists recurring expense templates.
type RecurringStore interface {
	// CreateRecurringExpense populates ID, CreatedAt and NextRunAt (= StartDate).
	CreateRecurringExpense(ctx context.Context, rec *models.RecurringExpense) error
	ListRecurringExpenses(ctx context.Context, groupID string) ([]*models.RecurringExpense, error)
	GetRecurringExpense(ctx context.Context, id string) (*models.RecurringExpense, error)
	// DeleteRecurringExpense stops a template. Expenses it already produced are kept.
	DeleteRecurringExpense(ctx context.Context, id string) error
	// ListDueRecurringExpenses returns templates whose NextRunAt is at or before now
	// and not past their EndDate.
	ListDueRecurringExpenses(ctx context.Context, now int64) ([]*models.RecurringExpense, error)
	// MaterializeRecurringExpense records expense as an occurrence of rec and moves
	// rec's NextRunAt to nextRunAt, atomically. An expense of nil only advances the schedule.
	MaterializeRecurringExpense(ctx context.Context, rec *models.RecurringExpense, expense *models.Expense, nextRunAt int64) error
}
