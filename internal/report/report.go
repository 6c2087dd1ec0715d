// Package report holds pure aggregation helpers over the finance entities.
// Nothing here touches a store; callers pass in what they loaded.
package report

import (
	"cmp"
	"slices"
	"time"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

// Uncategorized labels expenses without a known category.
const Uncategorized = "Sem categoria"

// UpcomingWindowDays is how far ahead a reminder counts as upcoming.
const UpcomingWindowDays = 7

var hundred = decimal.NewFromInt(100)

type (
	// Period is an inclusive window of calendar days. A zero bound is open.
	Period struct {
		From core.Date `json:"from"`
		To   core.Date `json:"to"`
	}

	Totals struct {
		Income      decimal.Decimal `json:"income"`
		Expenses    decimal.Decimal `json:"expenses"`
		Balance     decimal.Decimal `json:"balance"`
		SavingsRate decimal.Decimal `json:"savingsRate"`
	}

	CategoryAmount struct {
		CategoryID string          `json:"categoryId,omitempty"`
		Name       string          `json:"name"`
		Color      string          `json:"color,omitempty"`
		Amount     decimal.Decimal `json:"amount"`
	}

	MonthAmount struct {
		Month    string          `json:"month"` // YYYY-MM
		Income   decimal.Decimal `json:"income"`
		Expenses decimal.Decimal `json:"expenses"`
		Balance  decimal.Decimal `json:"balance"`
	}

	ReminderPartition struct {
		Overdue  []core.Reminder `json:"overdue"`
		Upcoming []core.Reminder `json:"upcoming"`
	}

	Health struct {
		Total   int `json:"total"`
		Active  int `json:"active"`
		Expired int `json:"expired"`
		Errors  int `json:"errors"`
	}

	// Filter narrows a transaction list. Empty fields match everything.
	Filter struct {
		Period     Period
		AccountID  string
		CategoryID string
	}
)

// Contains reports whether d falls inside the window.
func (p Period) Contains(d core.Date) bool {
	if !p.From.IsZero() && d.Before(p.From) {
		return false
	}
	if !p.To.IsZero() && d.After(p.To) {
		return false
	}
	return true
}

// MonthOf returns the calendar month containing now.
func MonthOf(now time.Time) Period {
	first := core.NewDate(now.Year(), int(now.Month()), 1)
	return Period{From: first, To: core.Date{Time: first.AddDate(0, 1, -1)}}
}

// PresetPeriod maps the report selector to a window starting N months before
// now with an open end. Unknown names fall back to three months.
func PresetPeriod(name string, now time.Time) Period {
	months := 3
	switch name {
	case "1month":
		months = 1
	case "6months":
		months = 6
	case "1year":
		months = 12
	}
	return Period{From: core.DateOf(now).AddMonths(-months)}
}

// TotalBalance sums balances of every non credit card account.
func TotalBalance(accounts []core.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		if !a.IsCredit() {
			total = total.Add(a.Balance)
		}
	}
	return total
}

// CreditUsed sums the absolute balances of credit card accounts.
func CreditUsed(accounts []core.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		if a.IsCredit() {
			total = total.Add(a.Balance.Abs())
		}
	}
	return total
}

// PeriodTotals sums income (signed) and expenses (absolute) inside p.
// SavingsRate is balance/income as a percentage with two decimals, and 0
// when there is no income.
func PeriodTotals(txns []core.Transaction, p Period) Totals {
	t := Totals{Income: decimal.Zero, Expenses: decimal.Zero}
	for _, txn := range txns {
		if !p.Contains(txn.TransactionDate) {
			continue
		}
		switch txn.Type {
		case core.Income:
			t.Income = t.Income.Add(txn.Amount)
		case core.Expense:
			t.Expenses = t.Expenses.Add(txn.Amount.Abs())
		}
	}
	t.Balance = t.Income.Sub(t.Expenses)
	t.SavingsRate = decimal.Zero
	if t.Income.IsPositive() {
		t.SavingsRate = t.Balance.Div(t.Income).Mul(hundred).Round(2)
	}
	return t
}

// CategoryBreakdown totals expenses inside p per category, largest first.
// The amounts add up to PeriodTotals(txns, p).Expenses.
func CategoryBreakdown(txns []core.Transaction, categories []core.Category, p Period) []CategoryAmount {
	byID := make(map[string]core.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	sums := map[string]*CategoryAmount{}
	var order []string
	for _, txn := range txns {
		if txn.Type != core.Expense || !p.Contains(txn.TransactionDate) {
			continue
		}
		key, entry := Uncategorized, CategoryAmount{Name: Uncategorized}
		if txn.CategoryID != nil {
			if c, ok := byID[*txn.CategoryID]; ok {
				key, entry = c.ID, CategoryAmount{CategoryID: c.ID, Name: c.Name, Color: c.Color}
			}
		}
		agg, ok := sums[key]
		if !ok {
			entry.Amount = decimal.Zero
			agg = &entry
			sums[key] = agg
			order = append(order, key)
		}
		agg.Amount = agg.Amount.Add(txn.Amount.Abs())
	}

	out := make([]CategoryAmount, 0, len(order))
	for _, k := range order {
		out = append(out, *sums[k])
	}
	slices.SortStableFunc(out, func(a, b CategoryAmount) int { return b.Amount.Cmp(a.Amount) })
	return out
}

// MonthlySeries groups income and expenses inside p by calendar month in
// ascending order.
func MonthlySeries(txns []core.Transaction, p Period) []MonthAmount {
	byMonth := map[string]*MonthAmount{}
	for _, txn := range txns {
		if !p.Contains(txn.TransactionDate) {
			continue
		}
		key := txn.TransactionDate.Format("2006-01")
		m, ok := byMonth[key]
		if !ok {
			m = &MonthAmount{Month: key, Income: decimal.Zero, Expenses: decimal.Zero}
			byMonth[key] = m
		}
		switch txn.Type {
		case core.Income:
			m.Income = m.Income.Add(txn.Amount)
		case core.Expense:
			m.Expenses = m.Expenses.Add(txn.Amount.Abs())
		}
	}

	out := make([]MonthAmount, 0, len(byMonth))
	for _, m := range byMonth {
		m.Balance = m.Income.Sub(m.Expenses)
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b MonthAmount) int { return cmp.Compare(a.Month, b.Month) })
	return out
}

// TopExpenses returns the n largest expenses inside p, most negative first.
func TopExpenses(txns []core.Transaction, p Period, n int) []core.Transaction {
	var out []core.Transaction
	for _, txn := range txns {
		if txn.Type == core.Expense && p.Contains(txn.TransactionDate) {
			out = append(out, txn)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Transaction) int { return a.Amount.Cmp(b.Amount) })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// FilterTransactions keeps transactions matching every set field of f.
func FilterTransactions(txns []core.Transaction, f Filter) []core.Transaction {
	out := make([]core.Transaction, 0, len(txns))
	for _, txn := range txns {
		if f.AccountID != "" && txn.AccountID != f.AccountID {
			continue
		}
		if f.CategoryID != "" && (txn.CategoryID == nil || *txn.CategoryID != f.CategoryID) {
			continue
		}
		if !f.Period.Contains(txn.TransactionDate) {
			continue
		}
		out = append(out, txn)
	}
	return out
}

// PartitionReminders splits incomplete reminders into overdue (due before
// today) and upcoming (due today through today+7). Completed reminders and
// later ones appear in neither list. Both lists are ascending by due date.
func PartitionReminders(reminders []core.Reminder, now time.Time) ReminderPartition {
	today := core.DateOf(now)
	horizon := today.AddDays(UpcomingWindowDays)

	part := ReminderPartition{Overdue: []core.Reminder{}, Upcoming: []core.Reminder{}}
	for _, r := range reminders {
		switch {
		case r.IsCompleted:
		case r.DueDate.Before(today):
			part.Overdue = append(part.Overdue, r)
		case !r.DueDate.After(horizon):
			part.Upcoming = append(part.Upcoming, r)
		}
	}
	byDue := func(a, b core.Reminder) int { return a.DueDate.Compare(b.DueDate.Time) }
	slices.SortStableFunc(part.Overdue, byDue)
	slices.SortStableFunc(part.Upcoming, byDue)
	return part
}

// RemindersOn returns the reminders due on day, for calendar views.
func RemindersOn(reminders []core.Reminder, day core.Date) []core.Reminder {
	var out []core.Reminder
	for _, r := range reminders {
		if r.DueDate.Equal(day) {
			out = append(out, r)
		}
	}
	return out
}

// ConnectionHealth counts connections by status.
func ConnectionHealth(conns []core.Connection) Health {
	h := Health{Total: len(conns)}
	for _, c := range conns {
		switch c.Status {
		case core.ConnectionConnected:
			h.Active++
		case core.ConnectionExpired:
			h.Expired++
		case core.ConnectionError:
			h.Errors++
		}
	}
	return h
}
