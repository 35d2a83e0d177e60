package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/pkg/api"
)

// RecurringService implements the Connect RecurringService.
type RecurringService struct {
	store storage.Store
	now   func() time.Time
}

var _ api.RecurringServiceHandler = (*RecurringService)(nil)

// NewRecurringService creates a new RecurringService with the given storage backend.
func NewRecurringService(store storage.Store) *RecurringService {
	return &RecurringService{store: store, now: time.Now}
}

// CreateRecurringExpense defines a template that the scheduler turns into an
// equal-split expense every period, starting at StartDate.
func (s *RecurringService) CreateRecurringExpense(ctx context.Context, req *connect.Request[api.CreateRecurringExpenseRequest]) (*connect.Response[api.CreateRecurringExpenseResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateRecurringExpense request received",
		"group_id", req.Msg.GroupID,
		"frequency", req.Msg.Frequency,
		"amount", req.Msg.Amount,
	)

	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(req.Msg.Description)
	if description == "" {
		return nil, invalidArgument("description is required")
	}
	frequency, err := models.ParseFrequency(req.Msg.Frequency)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	payerID := req.Msg.PayerID
	if payerID == "" {
		payerID = userID
	}
	amount := calculator.Round(req.Msg.Amount)
	if err := calculator.ValidateExpense(calculator.Expense{PayerID: payerID, Amount: amount}, group.Members); err != nil {
		return nil, toConnectError(err)
	}

	start := s.now()
	if req.Msg.StartDate != nil {
		start = *req.Msg.StartDate
	}
	rec := &models.RecurringExpense{
		GroupID:     group.ID,
		PayerID:     payerID,
		Description: description,
		Amount:      amount,
		Frequency:   frequency,
		StartDate:   start.Unix(),
	}
	if req.Msg.EndDate != nil {
		if req.Msg.EndDate.Before(start) {
			return nil, invalidArgument("end_date must not be before start_date")
		}
		rec.EndDate = req.Msg.EndDate.Unix()
	}

	if err := s.store.CreateRecurringExpense(ctx, rec); err != nil {
		slog.Error("CreateRecurringExpense failed", "group_id", group.ID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Recurring expense created", "recurring_id", rec.ID, "group_id", group.ID)
	return connect.NewResponse(&api.CreateRecurringExpenseResponse{RecurringExpense: toAPIRecurring(rec)}), nil
}

// ListRecurringExpenses returns a group's recurring templates.
func (s *RecurringService) ListRecurringExpenses(ctx context.Context, req *connect.Request[api.ListRecurringExpensesRequest]) (*connect.Response[api.ListRecurringExpensesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID); err != nil {
		return nil, err
	}

	recs, err := s.store.ListRecurringExpenses(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Error("ListRecurringExpenses failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*api.RecurringExpense, len(recs))
	for i, r := range recs {
		out[i] = toAPIRecurring(r)
	}
	return connect.NewResponse(&api.ListRecurringExpensesResponse{RecurringExpenses: out}), nil
}

// DeleteRecurringExpense stops a template from producing further expenses.
// Only its payer or the group admin may delete it; past occurrences stay.
func (s *RecurringService) DeleteRecurringExpense(ctx context.Context, req *connect.Request[api.DeleteRecurringExpenseRequest]) (*connect.Response[api.DeleteRecurringExpenseResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("DeleteRecurringExpense request received", "recurring_id", req.Msg.RecurringID)

	if req.Msg.RecurringID == "" {
		return nil, invalidArgument("recurring_id is required")
	}
	rec, err := s.store.GetRecurringExpense(ctx, req.Msg.RecurringID)
	if err != nil {
		return nil, toConnectError(err)
	}
	group, err := memberGroup(ctx, s.store, rec.GroupID, userID)
	if err != nil {
		return nil, err
	}
	if rec.PayerID != userID && !group.IsAdmin(userID) {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotRecurringPayer)
	}

	if err := s.store.DeleteRecurringExpense(ctx, rec.ID); err != nil {
		slog.Error("DeleteRecurringExpense failed", "recurring_id", rec.ID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Recurring expense deleted", "recurring_id", rec.ID, "group_id", rec.GroupID)
	return connect.NewResponse(&api.DeleteRecurringExpenseResponse{}), nil
}
