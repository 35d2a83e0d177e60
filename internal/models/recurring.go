package models

import "fmt"

// Frequency is how often a recurring expense repeats.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// ParseFrequency validates a frequency name. Empty defaults to monthly.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(s); f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return f, nil
	case "":
		return FrequencyMonthly, nil
	default:
		return "", fmt.Errorf("unknown frequency %q", s)
	}
}

// RecurringExpense is a template that produces an equal-split expense every period.
type RecurringExpense struct {
	ID          string
	GroupID     string
	PayerID     string
	Description string
	Amount      float64
	Frequency   Frequency

	// StartDate is the Unix timestamp of the first occurrence.
	StartDate int64

	// EndDate is the Unix timestamp after which no more occurrences are produced.
	// Zero means open-ended.
	EndDate int64

	// NextRunAt is the Unix timestamp of the next occurrence still to materialize.
	NextRunAt int64

	CreatedAt int64
}

// Active reports whether an occurrence at ts falls inside the template's window.
func (r *RecurringExpense) Active(ts int64) bool {
	if ts < r.StartDate {
		return false
	}
	return r.EndDate == 0 || ts <= r.EndDate
}
