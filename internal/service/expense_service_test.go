package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/settleup/pkg/api"
)

func TestCreateExpense(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")
	group := env.createGroup(t, alice, bob)

	resp, err := env.expenses.CreateExpense(ctx, as(alice, &api.CreateExpenseRequest{
		GroupID:     group.ID,
		Description: "Dinner",
		Amount:      45.678,
		Shares:      map[string]float64{alice.ID: 20.004, bob.ID: 25.674},
	}))
	require.NoError(t, err)
	expense := resp.Msg.Expense
	assert.NotEmpty(t, expense.ID)
	assert.Equal(t, alice.ID, expense.PayerID)
	assert.Equal(t, 45.68, expense.Amount)
	assert.Equal(t, map[string]float64{alice.ID: 20.0, bob.ID: 25.67}, expense.Shares)
	assert.False(t, expense.IsSettlement)

	got, err := env.expenses.GetExpense(ctx, as(bob, &api.GetExpenseRequest{ExpenseID: expense.ID}))
	require.NoError(t, err)
	assert.Equal(t, expense.Description, got.Msg.Expense.Description)

	_, err = env.expenses.GetExpense(ctx, as(carol, &api.GetExpenseRequest{ExpenseID: expense.ID}))
	requireCode(t, connect.CodePermissionDenied, err)

	_, err = env.expenses.GetExpense(ctx, as(alice, &api.GetExpenseRequest{ExpenseID: "missing"}))
	requireCode(t, connect.CodeNotFound, err)

	tests := []struct {
		name string
		req  *api.CreateExpenseRequest
		user testUser
		code connect.Code
	}{
		{
			name: "missing description",
			req:  &api.CreateExpenseRequest{GroupID: group.ID, Amount: 10},
			user: alice,
			code: connect.CodeInvalidArgument,
		},
		{
			name: "zero amount",
			req:  &api.CreateExpenseRequest{GroupID: group.ID, Description: "x"},
			user: alice,
			code: connect.CodeInvalidArgument,
		},
		{
			name: "shares do not add up",
			req: &api.CreateExpenseRequest{
				GroupID: group.ID, Description: "x", Amount: 10,
				Shares: map[string]float64{bob.ID: 4},
			},
			user: alice,
			code: connect.CodeInvalidArgument,
		},
		{
			name: "share for non-member",
			req: &api.CreateExpenseRequest{
				GroupID: group.ID, Description: "x", Amount: 10,
				Shares: map[string]float64{carol.ID: 10},
			},
			user: alice,
			code: connect.CodeInvalidArgument,
		},
		{
			name: "payer not a member",
			req:  &api.CreateExpenseRequest{GroupID: group.ID, PayerID: carol.ID, Description: "x", Amount: 10},
			user: alice,
			code: connect.CodeInvalidArgument,
		},
		{
			name: "caller not a member",
			req:  &api.CreateExpenseRequest{GroupID: group.ID, Description: "x", Amount: 10},
			user: carol,
			code: connect.CodePermissionDenied,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.expenses.CreateExpense(ctx, as(tt.user, tt.req))
			requireCode(t, tt.code, err)
		})
	}
}

func TestUpdateExpense(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")
	group := env.createGroup(t, alice, bob, carol)

	expense := env.addExpense(t, bob, group.ID, 30, nil)

	description := "Weekly groceries"
	resp, err := env.expenses.UpdateExpense(ctx, as(bob, &api.UpdateExpenseRequest{
		ExpenseID:   expense.ID,
		Description: &description,
	}))
	require.NoError(t, err)
	assert.Equal(t, description, resp.Msg.Expense.Description)
	assert.Equal(t, 30.0, resp.Msg.Expense.Amount)

	t.Run("only payer or admin", func(t *testing.T) {
		_, err := env.expenses.UpdateExpense(ctx, as(carol, &api.UpdateExpenseRequest{
			ExpenseID:   expense.ID,
			Description: &description,
		}))
		requireCode(t, connect.CodePermissionDenied, err)
	})

	t.Run("admin switches to explicit shares", func(t *testing.T) {
		amount := 60.0
		shares := map[string]float64{alice.ID: 10, carol.ID: 50}
		resp, err := env.expenses.UpdateExpense(ctx, as(alice, &api.UpdateExpenseRequest{
			ExpenseID: expense.ID,
			Amount:    &amount,
			Shares:    &shares,
		}))
		require.NoError(t, err)
		assert.Equal(t, 60.0, resp.Msg.Expense.Amount)
		assert.Equal(t, shares, resp.Msg.Expense.Shares)
	})

	t.Run("amount that breaks existing shares", func(t *testing.T) {
		amount := 61.0
		_, err := env.expenses.UpdateExpense(ctx, as(alice, &api.UpdateExpenseRequest{
			ExpenseID: expense.ID,
			Amount:    &amount,
		}))
		requireCode(t, connect.CodeInvalidArgument, err)
	})

	t.Run("empty shares switch back to equal split", func(t *testing.T) {
		empty := map[string]float64{}
		resp, err := env.expenses.UpdateExpense(ctx, as(bob, &api.UpdateExpenseRequest{
			ExpenseID: expense.ID,
			Shares:    &empty,
		}))
		require.NoError(t, err)
		assert.Empty(t, resp.Msg.Expense.Shares)

		balances, err := env.groups.GetGroupBalances(ctx, as(bob, &api.GetGroupBalancesRequest{GroupID: group.ID}))
		require.NoError(t, err)
		assert.InDelta(t, 40, balanceOf(balances.Msg, bob.ID), 0.001)
		assert.InDelta(t, -20, balanceOf(balances.Msg, alice.ID), 0.001)
	})

	t.Run("empty patch is a no-op", func(t *testing.T) {
		resp, err := env.expenses.UpdateExpense(ctx, as(bob, &api.UpdateExpenseRequest{ExpenseID: expense.ID}))
		require.NoError(t, err)
		assert.Equal(t, 60.0, resp.Msg.Expense.Amount)
	})
}

func TestDeleteAndListExpenses(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	group := env.createGroup(t, alice, bob)

	first := env.addExpense(t, alice, group.ID, 10, nil)
	second := env.addExpense(t, bob, group.ID, 20, nil)

	list, err := env.expenses.ListExpenses(ctx, as(bob, &api.ListExpensesRequest{GroupID: group.ID}))
	require.NoError(t, err)
	require.Len(t, list.Msg.Expenses, 2)
	assert.Equal(t, first.ID, list.Msg.Expenses[0].ID)
	assert.Equal(t, second.ID, list.Msg.Expenses[1].ID)

	_, err = env.expenses.DeleteExpense(ctx, as(bob, &api.DeleteExpenseRequest{ExpenseID: first.ID}))
	requireCode(t, connect.CodePermissionDenied, err)

	// The admin can delete anyone's expense
	_, err = env.expenses.DeleteExpense(ctx, as(alice, &api.DeleteExpenseRequest{ExpenseID: second.ID}))
	require.NoError(t, err)

	_, err = env.expenses.DeleteExpense(ctx, as(alice, &api.DeleteExpenseRequest{ExpenseID: second.ID}))
	requireCode(t, connect.CodeNotFound, err)

	list, err = env.expenses.ListExpenses(ctx, as(alice, &api.ListExpensesRequest{GroupID: group.ID}))
	require.NoError(t, err)
	require.Len(t, list.Msg.Expenses, 1)
	assert.Equal(t, first.ID, list.Msg.Expenses[0].ID)
}

func TestListAuditTrail(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	group := env.createGroup(t, alice, bob)

	expense := env.addExpense(t, bob, group.ID, 10, nil)
	amount := 12.5
	_, err := env.expenses.UpdateExpense(ctx, as(bob, &api.UpdateExpenseRequest{ExpenseID: expense.ID, Amount: &amount}))
	require.NoError(t, err)
	_, err = env.expenses.DeleteExpense(ctx, as(alice, &api.DeleteExpenseRequest{ExpenseID: expense.ID}))
	require.NoError(t, err)

	_, err = env.expenses.ListAuditTrail(ctx, as(bob, &api.ListAuditTrailRequest{GroupID: group.ID}))
	requireCode(t, connect.CodePermissionDenied, err)

	_, err = env.expenses.ListAuditTrail(ctx, as(alice, &api.ListAuditTrailRequest{GroupID: group.ID, Limit: -1}))
	requireCode(t, connect.CodeInvalidArgument, err)

	resp, err := env.expenses.ListAuditTrail(ctx, as(alice, &api.ListAuditTrailRequest{GroupID: group.ID}))
	require.NoError(t, err)
	entries := resp.Msg.Entries
	require.Len(t, entries, 3)

	assert.Equal(t, "deleted", entries[0].Action)
	assert.Equal(t, alice.ID, entries[0].UserID)
	assert.Nil(t, entries[0].NewValue)
	assert.Equal(t, 12.5, entries[0].OldValue["amount"])

	assert.Equal(t, "updated", entries[1].Action)
	assert.Equal(t, 10.0, entries[1].OldValue["amount"])
	assert.Equal(t, 12.5, entries[1].NewValue["amount"])

	assert.Equal(t, "created", entries[2].Action)
	assert.Equal(t, bob.ID, entries[2].UserID)
	assert.Nil(t, entries[2].OldValue)
	assert.Equal(t, "Groceries", entries[2].NewValue["description"])
	for _, e := range entries {
		assert.Equal(t, expense.ID, e.ExpenseID)
	}

	page, err := env.expenses.ListAuditTrail(ctx, as(alice, &api.ListAuditTrailRequest{GroupID: group.ID, Offset: 1, Limit: 1}))
	require.NoError(t, err)
	require.Len(t, page.Msg.Entries, 1)
	assert.Equal(t, "updated", page.Msg.Entries[0].Action)
}

func TestUpdateExpense_AfterPayerLeaves(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")
	group := env.createGroup(t, alice, bob, carol)

	expense := env.addExpense(t, bob, group.ID, 30, nil)
	split := env.addExpense(t, alice, group.ID, 20, map[string]float64{bob.ID: 15, carol.ID: 5})

	_, err := env.groups.RemoveMember(ctx, as(alice, &api.RemoveMemberRequest{GroupID: group.ID, UserID: bob.ID}))
	require.NoError(t, err)

	description := "Groceries (bob)"
	resp, err := env.expenses.UpdateExpense(ctx, as(alice, &api.UpdateExpenseRequest{
		ExpenseID:   expense.ID,
		Description: &description,
	}))
	require.NoError(t, err)
	assert.Equal(t, description, resp.Msg.Expense.Description)
	assert.Equal(t, bob.ID, resp.Msg.Expense.PayerID)

	amount := 36.0
	resp, err = env.expenses.UpdateExpense(ctx, as(alice, &api.UpdateExpenseRequest{
		ExpenseID: expense.ID,
		Amount:    &amount,
	}))
	require.NoError(t, err)
	assert.Equal(t, 36.0, resp.Msg.Expense.Amount)

	// An existing share holder may keep a share after leaving
	shares := map[string]float64{bob.ID: 10, carol.ID: 10}
	_, err = env.expenses.UpdateExpense(ctx, as(alice, &api.UpdateExpenseRequest{
		ExpenseID: split.ID,
		Shares:    &shares,
	}))
	require.NoError(t, err)

	t.Run("new outsiders are still rejected", func(t *testing.T) {
		dave := env.register(t, "dave")
		shares := map[string]float64{dave.ID: 20}
		_, err := env.expenses.UpdateExpense(ctx, as(alice, &api.UpdateExpenseRequest{
			ExpenseID: split.ID,
			Shares:    &shares,
		}))
		requireCode(t, connect.CodeInvalidArgument, err)
	})
}
