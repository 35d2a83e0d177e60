package service

import (
	"maps"
	"time"

	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/pkg/api"
)

func unixTime(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}

func toAPIUser(u *models.User) *api.User {
	return &api.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   unixTime(u.CreatedAt),
	}
}

func toAPIGroup(g *models.Group) *api.Group {
	return &api.Group{
		ID:        g.ID,
		Name:      g.Name,
		AdminID:   g.AdminID,
		Members:   g.Members,
		CreatedAt: unixTime(g.CreatedAt),
	}
}

func toAPIExpense(e *models.Expense) *api.Expense {
	return &api.Expense{
		ID:           e.ID,
		GroupID:      e.GroupID,
		PayerID:      e.PayerID,
		Description:  e.Description,
		Amount:       e.Amount,
		Shares:       maps.Clone(e.Shares),
		IsSettlement: e.IsSettlement,
		RecurringID:  e.RecurringID,
		CreatedAt:    unixTime(e.CreatedAt),
	}
}

func toAPIAuditEntry(e *models.AuditEntry) *api.AuditEntry {
	entry := &api.AuditEntry{
		ID:        e.ID,
		ExpenseID: e.ExpenseID,
		UserID:    e.UserID,
		Action:    string(e.Action),
		CreatedAt: unixTime(e.CreatedAt),
	}
	if e.OldValue != nil {
		entry.OldValue = e.OldValue.AsMap()
	}
	if e.NewValue != nil {
		entry.NewValue = e.NewValue.AsMap()
	}
	return entry
}

func toAPIRecurring(r *models.RecurringExpense) *api.RecurringExpense {
	rec := &api.RecurringExpense{
		ID:          r.ID,
		GroupID:     r.GroupID,
		PayerID:     r.PayerID,
		Description: r.Description,
		Amount:      r.Amount,
		Frequency:   string(r.Frequency),
		StartDate:   unixTime(r.StartDate),
		NextRunAt:   unixTime(r.NextRunAt),
		CreatedAt:   unixTime(r.CreatedAt),
	}
	if r.EndDate != 0 {
		end := unixTime(r.EndDate)
		rec.EndDate = &end
	}
	return rec
}

func toCalculatorExpense(e *models.Expense) calculator.Expense {
	return calculator.Expense{
		PayerID: e.PayerID,
		Amount:  e.Amount,
		Shares:  e.Shares,
	}
}

func toCalculatorExpenses(expenses []*models.Expense) []calculator.Expense {
	out := make([]calculator.Expense, len(expenses))
	for i, e := range expenses {
		out[i] = toCalculatorExpense(e)
	}
	return out
}

// roundShares rounds every share to cents. A nil or empty map stays nil.
func roundShares(shares map[string]float64) map[string]float64 {
	if len(shares) == 0 {
		return nil
	}
	out := make(map[string]float64, len(shares))
	for id, amount := range shares {
		out[id] = calculator.Round(amount)
	}
	return out
}
