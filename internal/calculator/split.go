package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidExpenseData is returned by ValidateExpense for expenses the engine
// must never see.
var ErrInvalidExpenseData = errors.New("invalid expense data")

// Expense is the minimal view of a recorded expense needed for balance calculations.
type Expense struct {
	PayerID string
	Amount  float64

	// Shares maps member ID to the portion of Amount that member owes.
	// An empty map splits Amount equally across every group member.
	Shares map[string]float64
}

// HasExplicitShares reports whether the expense carries its own share breakdown.
func (e Expense) HasExplicitShares() bool {
	return len(e.Shares) > 0
}

// EqualShare returns one member's share of amount split across memberCount members,
// rounded to cents. Remainders are not reconciled.
func EqualShare(amount float64, memberCount int) float64 {
	if memberCount <= 0 {
		return 0
	}
	return equalShare(toMoney(amount), memberCount).InexactFloat64()
}

func equalShare(amount decimal.Decimal, memberCount int) decimal.Decimal {
	return amount.Div(decimal.NewFromInt(int64(memberCount))).Round(2)
}

// ResolveShares returns what each member owes for e: the explicit shares when
// present, otherwise an equal split over members.
func ResolveShares(e Expense, members []string) map[string]float64 {
	resolved := sharesFor(e, uniqueMembers(members))
	out := make(map[string]float64, len(resolved))
	for id, share := range resolved {
		out[id] = share.InexactFloat64()
	}
	return out
}

func sharesFor(e Expense, members []string) map[string]decimal.Decimal {
	shares := make(map[string]decimal.Decimal)
	if e.HasExplicitShares() {
		for id, share := range e.Shares {
			shares[id] = toMoney(share)
		}
		return shares
	}
	if len(members) == 0 {
		return shares
	}
	share := equalShare(toMoney(e.Amount), len(members))
	for _, id := range members {
		shares[id] = share
	}
	return shares
}

// ValidateExpense checks an expense before it is recorded. Callers run it at the
// edge; ComputeNetBalances assumes its input already passed.
func ValidateExpense(e Expense, members []string) error {
	if e.PayerID == "" {
		return fmt.Errorf("%w: payer is required", ErrInvalidExpenseData)
	}
	if e.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %.2f", ErrInvalidExpenseData, e.Amount)
	}

	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}
	if !memberSet[e.PayerID] {
		return fmt.Errorf("%w: payer %s is not a group member", ErrInvalidExpenseData, e.PayerID)
	}
	if !e.HasExplicitShares() {
		return nil
	}

	sum := decimal.Zero
	for id, share := range e.Shares {
		if share < 0 {
			return fmt.Errorf("%w: share for %s is negative", ErrInvalidExpenseData, id)
		}
		if !memberSet[id] {
			return fmt.Errorf("%w: share names non-member %s", ErrInvalidExpenseData, id)
		}
		sum = sum.Add(toMoney(share))
	}
	if sum.Sub(toMoney(e.Amount)).Abs().GreaterThan(epsilon) {
		return fmt.Errorf("%w: shares sum to %s, amount is %.2f", ErrInvalidExpenseData, sum.StringFixed(2), e.Amount)
	}
	return nil
}
