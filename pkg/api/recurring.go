package api

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
)

// RecurringServiceName is the fully-qualified name of the RecurringService.
const RecurringServiceName = "settleup.v1.RecurringService"

const (
	RecurringServiceCreateRecurringExpenseProcedure = "/settleup.v1.RecurringService/CreateRecurringExpense"
	RecurringServiceListRecurringExpensesProcedure  = "/settleup.v1.RecurringService/ListRecurringExpenses"
	RecurringServiceDeleteRecurringExpenseProcedure = "/settleup.v1.RecurringService/DeleteRecurringExpense"
)

// RecurringExpense is a template that records an equal-split expense every period.
type RecurringExpense struct {
	ID          string     `json:"id"`
	GroupID     string     `json:"group_id"`
	PayerID     string     `json:"payer_id"`
	Description string     `json:"description"`
	Amount      float64    `json:"amount"`
	Frequency   string     `json:"frequency"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	NextRunAt   time.Time  `json:"next_run_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateRecurringExpenseRequest defines a new template. PayerID defaults to the
// caller, Frequency to "monthly" and StartDate to now.
type CreateRecurringExpenseRequest struct {
	GroupID     string     `json:"group_id"`
	PayerID     string     `json:"payer_id,omitempty"`
	Description string     `json:"description"`
	Amount      float64    `json:"amount"`
	Frequency   string     `json:"frequency,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

type CreateRecurringExpenseResponse struct {
	RecurringExpense *RecurringExpense `json:"recurring_expense"`
}

type ListRecurringExpensesRequest struct {
	GroupID string `json:"group_id"`
}

type ListRecurringExpensesResponse struct {
	RecurringExpenses []*RecurringExpense `json:"recurring_expenses"`
}

type DeleteRecurringExpenseRequest struct {
	RecurringID string `json:"recurring_id"`
}

type DeleteRecurringExpenseResponse struct{}

// RecurringServiceHandler is implemented by the server side of the RecurringService.
type RecurringServiceHandler interface {
	CreateRecurringExpense(context.Context, *connect.Request[CreateRecurringExpenseRequest]) (*connect.Response[CreateRecurringExpenseResponse], error)
	ListRecurringExpenses(context.Context, *connect.Request[ListRecurringExpensesRequest]) (*connect.Response[ListRecurringExpensesResponse], error)
	DeleteRecurringExpense(context.Context, *connect.Request[DeleteRecurringExpenseRequest]) (*connect.Response[DeleteRecurringExpenseResponse], error)
}

// NewRecurringServiceHandler builds an HTTP handler serving every RecurringService procedure.
func NewRecurringServiceHandler(svc RecurringServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)

	mux := http.NewServeMux()
	mux.Handle(RecurringServiceCreateRecurringExpenseProcedure, connect.NewUnaryHandler(RecurringServiceCreateRecurringExpenseProcedure, svc.CreateRecurringExpense, opts...))
	mux.Handle(RecurringServiceListRecurringExpensesProcedure, connect.NewUnaryHandler(RecurringServiceListRecurringExpensesProcedure, svc.ListRecurringExpenses, opts...))
	mux.Handle(RecurringServiceDeleteRecurringExpenseProcedure, connect.NewUnaryHandler(RecurringServiceDeleteRecurringExpenseProcedure, svc.DeleteRecurringExpense, opts...))
	return "/" + RecurringServiceName + "/", mux
}

// RecurringServiceClient calls the RecurringService.
type RecurringServiceClient struct {
	createRecurringExpense *connect.Client[CreateRecurringExpenseRequest, CreateRecurringExpenseResponse]
	listRecurringExpenses  *connect.Client[ListRecurringExpensesRequest, ListRecurringExpensesResponse]
	deleteRecurringExpense *connect.Client[DeleteRecurringExpenseRequest, DeleteRecurringExpenseResponse]
}

// NewRecurringServiceClient creates a client for the RecurringService served at baseURL.
func NewRecurringServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *RecurringServiceClient {
	opts = clientOptions(opts)
	return &RecurringServiceClient{
		createRecurringExpense: connect.NewClient[CreateRecurringExpenseRequest, CreateRecurringExpenseResponse](httpClient, baseURL+RecurringServiceCreateRecurringExpenseProcedure, opts...),
		listRecurringExpenses:  connect.NewClient[ListRecurringExpensesRequest, ListRecurringExpensesResponse](httpClient, baseURL+RecurringServiceListRecurringExpensesProcedure, opts...),
		deleteRecurringExpense: connect.NewClient[DeleteRecurringExpenseRequest, DeleteRecurringExpenseResponse](httpClient, baseURL+RecurringServiceDeleteRecurringExpenseProcedure, opts...),
	}
}

func (c *RecurringServiceClient) CreateRecurringExpense(ctx context.Context, req *connect.Request[CreateRecurringExpenseRequest]) (*connect.Response[CreateRecurringExpenseResponse], error) {
	return c.createRecurringExpense.CallUnary(ctx, req)
}

func (c *RecurringServiceClient) ListRecurringExpenses(ctx context.Context, req *connect.Request[ListRecurringExpensesRequest]) (*connect.Response[ListRecurringExpensesResponse], error) {
	return c.listRecurringExpenses.CallUnary(ctx, req)
}

func (c *RecurringServiceClient) DeleteRecurringExpense(ctx context.Context, req *connect.Request[DeleteRecurringExpenseRequest]) (*connect.Response[DeleteRecurringExpenseResponse], error) {
	return c.deleteRecurringExpense.CallUnary(ctx, req)
}
