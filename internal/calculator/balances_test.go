package calculator

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeNetBalances(t *testing.T) {
	tests := []struct {
		name     string
		members  []string
		expenses []Expense
		want     map[string]float64
	}{
		{
			name:     "two members equal split",
			members:  []string{"A", "B"},
			expenses: []Expense{{PayerID: "A", Amount: 100}},
			want:     map[string]float64{"A": 50, "B": -50},
		},
		{
			name:     "three members one payer",
			members:  []string{"A", "B", "C"},
			expenses: []Expense{{PayerID: "A", Amount: 90}},
			want:     map[string]float64{"A": 60, "B": -30, "C": -30},
		},
		{
			name:    "everyone pays the same",
			members: []string{"A", "B", "C"},
			expenses: []Expense{
				{PayerID: "A", Amount: 30},
				{PayerID: "B", Amount: 30},
				{PayerID: "C", Amount: 30},
			},
			want: map[string]float64{"A": 0, "B": 0, "C": 0},
		},
		{
			name:    "no expenses",
			members: []string{"A", "B"},
			want:    map[string]float64{"A": 0, "B": 0},
		},
		{
			name:     "no members",
			members:  nil,
			expenses: []Expense{{PayerID: "A", Amount: 10}},
			want:     map[string]float64{},
		},
		{
			name:    "explicit shares",
			members: []string{"A", "B", "C"},
			expenses: []Expense{
				{PayerID: "A", Amount: 100, Shares: map[string]float64{"A": 20, "B": 50, "C": 30}},
			},
			want: map[string]float64{"A": 80, "B": -50, "C": -30},
		},
		{
			name:    "zero share is skipped",
			members: []string{"A", "B", "C"},
			expenses: []Expense{
				{PayerID: "B", Amount: 40, Shares: map[string]float64{"A": 40, "C": 0}},
			},
			want: map[string]float64{"A": -40, "B": 40, "C": 0},
		},
		{
			name:     "duplicate members collapse",
			members:  []string{"A", "B", "A"},
			expenses: []Expense{{PayerID: "B", Amount: 10}},
			want:     map[string]float64{"A": -5, "B": 5},
		},
		{
			name:     "payer outside membership is kept as supplied",
			members:  []string{"A", "B"},
			expenses: []Expense{{PayerID: "Z", Amount: 10}},
			want:     map[string]float64{"A": -5, "B": -5, "Z": 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeNetBalances(tt.members, tt.expenses)
			require.Len(t, got, len(tt.want))
			for id, want := range tt.want {
				assert.InDelta(t, want, got[id], 1e-9, "balance for %s", id)
			}
		})
	}
}

func TestComputeNetBalances_EqualSplitRemainderIsNotReconciled(t *testing.T) {
	// 100 / 3 rounds to 33.33; the leftover cent stays with the payer.
	got := ComputeNetBalances([]string{"A", "B", "C"}, []Expense{{PayerID: "A", Amount: 100}})

	assert.InDelta(t, 66.67, got["A"], 1e-9)
	assert.InDelta(t, -33.33, got["B"], 1e-9)
	assert.InDelta(t, -33.33, got["C"], 1e-9)
	assert.InDelta(t, 0.01, sum(got), 1e-9)
}

func TestComputeNetBalances_ZeroSum(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for round := 0; round < 200; round++ {
		members := randomMembers(rng)
		expenses := []Expense{randomExpense(rng, members)}

		balances := ComputeNetBalances(members, expenses)
		assert.LessOrEqual(t, math.Abs(sum(balances)), 0.01*float64(len(members))+1e-9,
			"round %d: balances %v", round, balances)
	}
}

func TestComputeNetBalances_ZeroSumAcrossManyExpenses(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))

	for round := 0; round < 100; round++ {
		members := randomMembers(rng)
		expenses := make([]Expense, 1+rng.IntN(20))
		for i := range expenses {
			expenses[i] = randomExpense(rng, members)
		}

		// Each equal split can leak at most half a cent per member.
		tolerance := 0.005*float64(len(members)*len(expenses)) + 1e-9
		balances := ComputeNetBalances(members, expenses)
		assert.LessOrEqual(t, math.Abs(sum(balances)), tolerance, "round %d", round)
	}
}

func TestComputeNetBalances_DoesNotMutateInput(t *testing.T) {
	members := []string{"B", "A"}
	shares := map[string]float64{"A": 3, "B": 7}
	expenses := []Expense{{PayerID: "A", Amount: 10, Shares: shares}}

	ComputeNetBalances(members, expenses)

	assert.Equal(t, []string{"B", "A"}, members)
	assert.Equal(t, map[string]float64{"A": 3, "B": 7}, shares)
}

func sum(balances map[string]float64) float64 {
	total := 0.0
	for _, b := range balances {
		total += b
	}
	return total
}

func randomMembers(rng *rand.Rand) []string {
	names := []string{"alice", "bob", "carol", "dave", "erin", "frank", "grace", "heidi"}
	return names[:2+rng.IntN(len(names)-1)]
}

// randomExpense returns an equal split or explicit shares that sum exactly to the amount.
func randomExpense(rng *rand.Rand, members []string) Expense {
	cents := 1 + rng.IntN(100000)
	e := Expense{
		PayerID: members[rng.IntN(len(members))],
		Amount:  float64(cents) / 100,
	}
	if rng.IntN(2) == 0 {
		return e
	}

	e.Shares = make(map[string]float64)
	remaining := cents
	for i, m := range members {
		if i == len(members)-1 {
			e.Shares[m] = float64(remaining) / 100
			break
		}
		part := rng.IntN(remaining + 1)
		e.Shares[m] = float64(part) / 100
		remaining -= part
	}
	return e
}
