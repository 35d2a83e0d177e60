package models

import "maps"

// Expense represents one payment made by a member on behalf of the group.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group this expense belongs to.
	GroupID string

	// PayerID is the member who paid.
	PayerID string

	// Description is a short human-readable label (e.g., "Groceries").
	Description string

	// Amount is the total paid, in currency units with 2 decimals.
	Amount float64

	// Shares maps member ID to the portion of Amount that member owes.
	// Empty means the amount is split equally across the group's current members.
	Shares map[string]float64

	// IsSettlement marks a recorded debt repayment rather than a purchase.
	IsSettlement bool

	// RecurringID links expenses materialized from a recurring template.
	RecurringID string

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64
}

// Clone returns a deep copy of e.
func (e *Expense) Clone() *Expense {
	c := *e
	c.Shares = maps.Clone(e.Shares)
	return &c
}

// ExpensePatch lists the expense fields an update may change.
// A non-nil Shares pointing at an empty map switches the expense to an equal split.
type ExpensePatch struct {
	Description *string
	Amount      *float64
	Shares      *map[string]float64
}

// Apply copies the set fields of p onto e.
func (p ExpensePatch) Apply(e *Expense) {
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Shares != nil {
		e.Shares = maps.Clone(*p.Shares)
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Description == nil && p.Amount == nil && p.Shares == nil
}

// Ledger is a consistent snapshot of one group's members and expenses,
// read in a single storage transaction.
type Ledger struct {
	GroupID  string
	Members  []string
	Expenses []*Expense
}
