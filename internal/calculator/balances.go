package calculator

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ComputeNetBalances folds expenses into one signed balance per member.
// Positive = owed money, Negative = owes money.
//
// Algorithm:
// - Every member starts at zero
// - For each expense: payer is credited the full amount
// - Each member with a nonzero share is debited that share
// - Expenses without shares are split equally over members, rounded to cents
//
// An empty membership yields an empty map. Payers or share holders outside
// members are accepted as supplied and get a balance entry of their own.
func ComputeNetBalances(members []string, expenses []Expense) map[string]float64 {
	ids := uniqueMembers(members)
	if len(ids) == 0 {
		return map[string]float64{}
	}

	balances := make(map[string]decimal.Decimal, len(ids))
	for _, id := range ids {
		balances[id] = decimal.Zero
	}

	for _, e := range expenses {
		balances[e.PayerID] = balances[e.PayerID].Add(toMoney(e.Amount))

		for id, share := range sharesFor(e, ids) {
			if share.IsZero() {
				continue
			}
			balances[id] = balances[id].Sub(share)
		}
	}

	out := make(map[string]float64, len(balances))
	for id, bal := range balances {
		out[id] = bal.InexactFloat64()
	}
	return out
}

// Settle computes net balances for a group snapshot and the transactions that
// clear them.
func Settle(members []string, expenses []Expense) (map[string]float64, []Transaction) {
	balances := ComputeNetBalances(members, expenses)
	return balances, Simplify(balances)
}

// uniqueMembers drops empty and duplicate IDs and returns the rest sorted.
func uniqueMembers(members []string) []string {
	seen := make(map[string]bool, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		ids = append(ids, m)
	}
	sort.Strings(ids)
	return ids
}
