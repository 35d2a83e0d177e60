package api

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
)

// ExpenseServiceName is the fully-qualified name of the ExpenseService.
const ExpenseServiceName = "settleup.v1.ExpenseService"

const (
	ExpenseServiceCreateExpenseProcedure  = "/settleup.v1.ExpenseService/CreateExpense"
	ExpenseServiceGetExpenseProcedure     = "/settleup.v1.ExpenseService/GetExpense"
	ExpenseServiceUpdateExpenseProcedure  = "/settleup.v1.ExpenseService/UpdateExpense"
	ExpenseServiceDeleteExpenseProcedure  = "/settleup.v1.ExpenseService/DeleteExpense"
	ExpenseServiceListExpensesProcedure   = "/settleup.v1.ExpenseService/ListExpenses"
	ExpenseServiceListAuditTrailProcedure = "/settleup.v1.ExpenseService/ListAuditTrail"
)

// Expense is one payment made on behalf of a group. Empty Shares means the
// amount is split equally between the group's members.
type Expense struct {
	ID           string             `json:"id"`
	GroupID      string             `json:"group_id"`
	PayerID      string             `json:"payer_id"`
	Description  string             `json:"description"`
	Amount       float64            `json:"amount"`
	Shares       map[string]float64 `json:"shares,omitempty"`
	IsSettlement bool               `json:"is_settlement,omitempty"`
	RecurringID  string             `json:"recurring_id,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// AuditEntry is one recorded change to an expense.
type AuditEntry struct {
	ID        string         `json:"id"`
	ExpenseID string         `json:"expense_id"`
	UserID    string         `json:"user_id"`
	Action    string         `json:"action"`
	OldValue  map[string]any `json:"old_value,omitempty"`
	NewValue  map[string]any `json:"new_value,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// CreateExpenseRequest records a payment. PayerID defaults to the caller.
type CreateExpenseRequest struct {
	GroupID     string             `json:"group_id"`
	PayerID     string             `json:"payer_id,omitempty"`
	Description string             `json:"description"`
	Amount      float64            `json:"amount"`
	Shares      map[string]float64 `json:"shares,omitempty"`
}

type CreateExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type GetExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

type GetExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

// UpdateExpenseRequest changes only the fields that are set. Shares set to an
// empty object switches the expense to an equal split.
type UpdateExpenseRequest struct {
	ExpenseID   string              `json:"expense_id"`
	Description *string             `json:"description,omitempty"`
	Amount      *float64            `json:"amount,omitempty"`
	Shares      *map[string]float64 `json:"shares,omitempty"`
}

type UpdateExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

type DeleteExpenseResponse struct{}

type ListExpensesRequest struct {
	GroupID string `json:"group_id"`
}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

// ListAuditTrailRequest pages through a group's audit trail, newest first.
// A zero Limit selects the default page size.
type ListAuditTrailRequest struct {
	GroupID string `json:"group_id"`
	Offset  int    `json:"offset,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type ListAuditTrailResponse struct {
	Entries []*AuditEntry `json:"entries"`
}

// ExpenseServiceHandler is implemented by the server side of the ExpenseService.
type ExpenseServiceHandler interface {
	CreateExpense(context.Context, *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[GetExpenseRequest]) (*connect.Response[GetExpenseResponse], error)
	UpdateExpense(context.Context, *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
	ListAuditTrail(context.Context, *connect.Request[ListAuditTrailRequest]) (*connect.Response[ListAuditTrailResponse], error)
}

// NewExpenseServiceHandler builds an HTTP handler serving every ExpenseService procedure.
func NewExpenseServiceHandler(svc ExpenseServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)

	mux := http.NewServeMux()
	mux.Handle(ExpenseServiceCreateExpenseProcedure, connect.NewUnaryHandler(ExpenseServiceCreateExpenseProcedure, svc.CreateExpense, opts...))
	mux.Handle(ExpenseServiceGetExpenseProcedure, connect.NewUnaryHandler(ExpenseServiceGetExpenseProcedure, svc.GetExpense, opts...))
	mux.Handle(ExpenseServiceUpdateExpenseProcedure, connect.NewUnaryHandler(ExpenseServiceUpdateExpenseProcedure, svc.UpdateExpense, opts...))
	mux.Handle(ExpenseServiceDeleteExpenseProcedure, connect.NewUnaryHandler(ExpenseServiceDeleteExpenseProcedure, svc.DeleteExpense, opts...))
	mux.Handle(ExpenseServiceListExpensesProcedure, connect.NewUnaryHandler(ExpenseServiceListExpensesProcedure, svc.ListExpenses, opts...))
	mux.Handle(ExpenseServiceListAuditTrailProcedure, connect.NewUnaryHandler(ExpenseServiceListAuditTrailProcedure, svc.ListAuditTrail, opts...))
	return "/" + ExpenseServiceName + "/", mux
}

// ExpenseServiceClient calls the ExpenseService.
type ExpenseServiceClient struct {
	createExpense  *connect.Client[CreateExpenseRequest, CreateExpenseResponse]
	getExpense     *connect.Client[GetExpenseRequest, GetExpenseResponse]
	updateExpense  *connect.Client[UpdateExpenseRequest, UpdateExpenseResponse]
	deleteExpense  *connect.Client[DeleteExpenseRequest, DeleteExpenseResponse]
	listExpenses   *connect.Client[ListExpensesRequest, ListExpensesResponse]
	listAuditTrail *connect.Client[ListAuditTrailRequest, ListAuditTrailResponse]
}

// NewExpenseServiceClient creates a client for the ExpenseService served at baseURL.
func NewExpenseServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ExpenseServiceClient {
	opts = clientOptions(opts)
	return &ExpenseServiceClient{
		createExpense:  connect.NewClient[CreateExpenseRequest, CreateExpenseResponse](httpClient, baseURL+ExpenseServiceCreateExpenseProcedure, opts...),
		getExpense:     connect.NewClient[GetExpenseRequest, GetExpenseResponse](httpClient, baseURL+ExpenseServiceGetExpenseProcedure, opts...),
		updateExpense:  connect.NewClient[UpdateExpenseRequest, UpdateExpenseResponse](httpClient, baseURL+ExpenseServiceUpdateExpenseProcedure, opts...),
		deleteExpense:  connect.NewClient[DeleteExpenseRequest, DeleteExpenseResponse](httpClient, baseURL+ExpenseServiceDeleteExpenseProcedure, opts...),
		listExpenses:   connect.NewClient[ListExpensesRequest, ListExpensesResponse](httpClient, baseURL+ExpenseServiceListExpensesProcedure, opts...),
		listAuditTrail: connect.NewClient[ListAuditTrailRequest, ListAuditTrailResponse](httpClient, baseURL+ExpenseServiceListAuditTrailProcedure, opts...),
	}
}

func (c *ExpenseServiceClient) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) GetExpense(ctx context.Context, req *connect.Request[GetExpenseRequest]) (*connect.Response[GetExpenseResponse], error) {
	return c.getExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ListAuditTrail(ctx context.Context, req *connect.Request[ListAuditTrailRequest]) (*connect.Response[ListAuditTrailResponse], error) {
	return c.listAuditTrail.CallUnary(ctx, req)
}
