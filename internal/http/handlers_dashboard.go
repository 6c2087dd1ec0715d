package http

import (
	"net/http"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/report"

	"github.com/shopspring/decimal"
)

// recentCount is how many transactions the dashboard lists.
const recentCount = 5

type dashboardResponse struct {
	Mode         string                   `json:"mode"`
	TotalBalance decimal.Decimal          `json:"totalBalance"`
	CreditUsed   decimal.Decimal          `json:"creditUsed"`
	Accounts     int                      `json:"accounts"`
	Month        report.Period            `json:"month"`
	MonthTotals  report.Totals            `json:"monthTotals"`
	Reminders    report.ReminderPartition `json:"reminders"`
	Recent       []core.Transaction       `json:"recentTransactions"`
	Connections  report.Health            `json:"connections"`
}

// handleDashboard summarizes balances, the current month and pending
// reminders from a single snapshot of the data.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := s.data.Snapshot(r.Context(), reportWindow)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	now := s.now()
	month := report.MonthOf(now)
	active := make([]core.Account, 0, len(snap.Accounts))
	for _, a := range snap.Accounts {
		if a.IsActive {
			active = append(active, a)
		}
	}
	recent := snap.Transactions[:min(recentCount, len(snap.Transactions))]

	writeJSON(w, http.StatusOK, dashboardResponse{
		Mode:         snap.Mode.String(),
		TotalBalance: report.TotalBalance(active),
		CreditUsed:   report.CreditUsed(active),
		Accounts:     len(active),
		Month:        month,
		MonthTotals:  report.PeriodTotals(snap.Transactions, month),
		Reminders:    report.PartitionReminders(snap.Reminders, now),
		Recent:       recent,
		Connections:  report.ConnectionHealth(snap.Connections),
	})
}

type reportsResponse struct {
	Period      report.Period           `json:"period"`
	Totals      report.Totals           `json:"totals"`
	Categories  []report.CategoryAmount `json:"categories"`
	Monthly     []report.MonthAmount    `json:"monthly"`
	TopExpenses []core.Transaction      `json:"topExpenses"`
}

// handleReports aggregates ?period=1month|3months|6months|1year (or
// ?from=&to=), optionally narrowed to one account or category.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r, s.now())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	snap, err := s.data.Snapshot(r.Context(), reportWindow)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	// The period is applied by each aggregate; the filter only narrows by
	// account and category here.
	txns := report.FilterTransactions(snap.Transactions, report.Filter{AccountID: f.AccountID, CategoryID: f.CategoryID})
	writeJSON(w, http.StatusOK, reportsResponse{
		Period:      f.Period,
		Totals:      report.PeriodTotals(txns, f.Period),
		Categories:  report.CategoryBreakdown(txns, snap.Categories, f.Period),
		Monthly:     report.MonthlySeries(txns, f.Period),
		TopExpenses: report.TopExpenses(txns, f.Period, recentCount),
	})
}
