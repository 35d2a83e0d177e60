package service

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/pkg/api"
)

const (
	defaultAuditPageSize = 100
	maxAuditPageSize     = 500
)

// ExpenseService implements the Connect ExpenseService.
type ExpenseService struct {
	store storage.Store
}

var _ api.ExpenseServiceHandler = (*ExpenseService)(nil)

// NewExpenseService creates a new ExpenseService with the given storage backend.
func NewExpenseService(store storage.Store) *ExpenseService {
	return &ExpenseService{store: store}
}

// CreateExpense records a payment made on behalf of the group.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateExpense request received",
		"group_id", req.Msg.GroupID,
		"amount", req.Msg.Amount,
		"shares_count", len(req.Msg.Shares),
	)

	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(req.Msg.Description)
	if description == "" {
		return nil, invalidArgument("description is required")
	}

	payerID := req.Msg.PayerID
	if payerID == "" {
		payerID = userID
	}

	expense := &models.Expense{
		GroupID:     group.ID,
		PayerID:     payerID,
		Description: description,
		Amount:      calculator.Round(req.Msg.Amount),
		Shares:      roundShares(req.Msg.Shares),
	}
	if err := calculator.ValidateExpense(toCalculatorExpense(expense), group.Members); err != nil {
		slog.Warn("CreateExpense rejected", "group_id", group.ID, "error", err)
		return nil, toConnectError(err)
	}

	if err := s.store.CreateExpense(ctx, expense, userID); err != nil {
		slog.Error("CreateExpense failed", "group_id", group.ID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Expense created", "expense_id", expense.ID, "group_id", group.ID)
	return connect.NewResponse(&api.CreateExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

// expenseForMember loads an expense and its group, checking the caller belongs to the group.
func (s *ExpenseService) expenseForMember(ctx context.Context, expenseID, userID string) (*models.Expense, *models.Group, error) {
	if expenseID == "" {
		return nil, nil, invalidArgument("expense_id is required")
	}
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, nil, toConnectError(err)
	}
	group, err := memberGroup(ctx, s.store, expense.GroupID, userID)
	if err != nil {
		return nil, nil, err
	}
	return expense, group, nil
}

// GetExpense retrieves an expense by ID.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	expense, _, err := s.expenseForMember(ctx, req.Msg.ExpenseID, userID)
	if err != nil {
		return nil, err
	}

	return connect.NewResponse(&api.GetExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

// UpdateExpense changes the set fields of an expense. Only the payer or the
// group admin may edit.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("UpdateExpense request received", "expense_id", req.Msg.ExpenseID)

	expense, group, err := s.expenseForMember(ctx, req.Msg.ExpenseID, userID)
	if err != nil {
		return nil, err
	}
	if expense.PayerID != userID && !group.IsAdmin(userID) {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotPayer)
	}

	var patch models.ExpensePatch
	if req.Msg.Description != nil {
		description := strings.TrimSpace(*req.Msg.Description)
		if description == "" {
			return nil, invalidArgument("description cannot be empty")
		}
		patch.Description = &description
	}
	if req.Msg.Amount != nil {
		amount := calculator.Round(*req.Msg.Amount)
		patch.Amount = &amount
	}
	if req.Msg.Shares != nil {
		shares := roundShares(*req.Msg.Shares)
		if shares == nil {
			shares = map[string]float64{}
		}
		patch.Shares = &shares
	}

	if patch.IsEmpty() {
		return connect.NewResponse(&api.UpdateExpenseResponse{Expense: toAPIExpense(expense)}), nil
	}

	// Validate the expense as it will look after the update. Members who left
	// the group keep their place in expenses they were already part of.
	merged := expense.Clone()
	patch.Apply(merged)
	if err := calculator.ValidateExpense(toCalculatorExpense(merged), participants(expense, group.Members)); err != nil {
		slog.Warn("UpdateExpense rejected", "expense_id", expense.ID, "error", err)
		return nil, toConnectError(err)
	}

	updated, err := s.store.UpdateExpense(ctx, expense.ID, patch, userID)
	if err != nil {
		slog.Error("UpdateExpense failed", "expense_id", expense.ID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Expense updated", "expense_id", updated.ID)
	return connect.NewResponse(&api.UpdateExpenseResponse{Expense: toAPIExpense(updated)}), nil
}

// participants returns members plus the payer and share holders of expense.
func participants(expense *models.Expense, members []string) []string {
	out := slices.Clone(members)
	out = append(out, expense.PayerID)
	for id := range expense.Shares {
		out = append(out, id)
	}
	return out
}

// DeleteExpense removes an expense. Only the payer or the group admin may delete.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("DeleteExpense request received", "expense_id", req.Msg.ExpenseID)

	expense, group, err := s.expenseForMember(ctx, req.Msg.ExpenseID, userID)
	if err != nil {
		return nil, err
	}
	if expense.PayerID != userID && !group.IsAdmin(userID) {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotPayer)
	}

	if err := s.store.DeleteExpense(ctx, expense.ID, userID); err != nil {
		slog.Error("DeleteExpense failed", "expense_id", expense.ID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Expense deleted", "expense_id", expense.ID)
	return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
}

// ListExpenses returns a group's expenses, oldest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID); err != nil {
		return nil, err
	}

	expenses, err := s.store.ListExpensesByGroup(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Error("ListExpenses failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*api.Expense, len(expenses))
	for i, e := range expenses {
		out[i] = toAPIExpense(e)
	}

	slog.Info("ListExpenses successful", "group_id", req.Msg.GroupID, "count", len(out))
	return connect.NewResponse(&api.ListExpensesResponse{Expenses: out}), nil
}

// ListAuditTrail pages through a group's expense history. Admin only.
func (s *ExpenseService) ListAuditTrail(ctx context.Context, req *connect.Request[api.ListAuditTrailRequest]) (*connect.Response[api.ListAuditTrailResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := adminGroup(ctx, s.store, req.Msg.GroupID, userID); err != nil {
		return nil, err
	}

	limit := req.Msg.Limit
	switch {
	case req.Msg.Offset < 0 || limit < 0:
		return nil, invalidArgument("offset and limit must not be negative")
	case limit == 0:
		limit = defaultAuditPageSize
	case limit > maxAuditPageSize:
		limit = maxAuditPageSize
	}

	entries, err := s.store.ListAuditTrail(ctx, req.Msg.GroupID, req.Msg.Offset, limit)
	if err != nil {
		slog.Error("ListAuditTrail failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*api.AuditEntry, len(entries))
	for i, e := range entries {
		out[i] = toAPIAuditEntry(e)
	}

	return connect.NewResponse(&api.ListAuditTrailResponse{Entries: out}), nil
}
