package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpensePatch(t *testing.T) {
	expense := &Expense{
		Description: "Dinner",
		Amount:      30,
		Shares:      map[string]float64{"a": 10, "b": 20},
	}

	assert.True(t, ExpensePatch{}.IsEmpty())

	amount := 45.0
	patch := ExpensePatch{Amount: &amount}
	assert.False(t, patch.IsEmpty())

	updated := expense.Clone()
	patch.Apply(updated)
	assert.Equal(t, 45.0, updated.Amount)
	assert.Equal(t, "Dinner", updated.Description)
	assert.Equal(t, expense.Shares, updated.Shares)
	assert.Equal(t, 30.0, expense.Amount, "clone must not alias the original")

	// Clearing shares switches to an equal split
	empty := map[string]float64{}
	ExpensePatch{Shares: &empty}.Apply(updated)
	assert.Empty(t, updated.Shares)
	assert.Len(t, expense.Shares, 2)
}

func TestGroup_Roles(t *testing.T) {
	g := &Group{AdminID: "a", Members: []string{"a", "b"}}

	assert.True(t, g.IsMember("a"))
	assert.True(t, g.IsMember("b"))
	assert.False(t, g.IsMember("c"))
	assert.False(t, g.IsMember(""))

	assert.True(t, g.IsAdmin("a"))
	assert.False(t, g.IsAdmin("b"))

	name := "Trip"
	GroupPatch{Name: &name}.Apply(g)
	assert.Equal(t, "Trip", g.Name)
}

func TestParseFrequency(t *testing.T) {
	for _, s := range []string{"daily", "weekly", "monthly", "yearly"} {
		f, err := ParseFrequency(s)
		require.NoError(t, err)
		assert.Equal(t, Frequency(s), f)
	}

	f, err := ParseFrequency("")
	require.NoError(t, err)
	assert.Equal(t, FrequencyMonthly, f)

	_, err = ParseFrequency("fortnightly")
	assert.Error(t, err)
}

func TestRecurringExpense_Active(t *testing.T) {
	open := &RecurringExpense{StartDate: 100}
	assert.False(t, open.Active(99))
	assert.True(t, open.Active(100))
	assert.True(t, open.Active(1_000_000))

	bounded := &RecurringExpense{StartDate: 100, EndDate: 200}
	assert.True(t, bounded.Active(200))
	assert.False(t, bounded.Active(201))
}

func TestExpenseSnapshot(t *testing.T) {
	s, err := ExpenseSnapshot(&Expense{
		PayerID:     "a",
		Description: "Rent",
		Amount:      1000,
		Shares:      map[string]float64{"b": 1000},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"description":   "Rent",
		"amount":        1000.0,
		"payer_id":      "a",
		"shares":        map[string]any{"b": 1000.0},
		"is_settlement": false,
	}, s.AsMap())
}

func TestNewUser(t *testing.T) {
	u := NewUser("a@example.com", "A", "hash")
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, u.CreatedAt, u.UpdatedAt)
	assert.NotEqual(t, u.ID, NewUser("a@example.com", "A", "hash").ID)
}
