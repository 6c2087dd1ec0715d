package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/report"
)

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := s.data.ListReminders(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, reminders)
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var rem core.Reminder
	if err := decodeJSON(w, r, &rem); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	rem.Title = sanitizeInput(rem.Title)
	created, err := s.data.CreateReminder(r.Context(), rem)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	var p core.ReminderPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	sanitizePtr(p.Title)
	updated, err := s.data.UpdateReminder(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := s.data.DeleteReminder(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completeResponse struct {
	Completed core.Reminder  `json:"completed"`
	Next      *core.Reminder `json:"next,omitempty"`
}

func (s *Server) handleCompleteReminder(w http.ResponseWriter, r *http.Request) {
	done, next, err := s.data.CompleteReminder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, completeResponse{Completed: done, Next: next})
}

type calendarDay struct {
	Date      core.Date       `json:"date"`
	Reminders []core.Reminder `json:"reminders"`
}

type calendarResponse struct {
	Month string `json:"month"` // YYYY-MM
	report.ReminderPartition
	Days []calendarDay `json:"days"`
}

// handleCalendar returns overdue and upcoming reminders plus the days of
// ?month=YYYY-MM (default: current month) that have something due.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	month, err := parseMonth(r.URL.Query().Get("month"), now)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	reminders, err := s.data.ListReminders(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	resp := calendarResponse{
		Month:             month.From.Format("2006-01"),
		ReminderPartition: report.PartitionReminders(reminders, now),
		Days:              []calendarDay{},
	}
	for day := month.From; !day.After(month.To); day = day.AddDays(1) {
		if due := report.RemindersOn(reminders, day); len(due) > 0 {
			resp.Days = append(resp.Days, calendarDay{Date: day, Reminders: due})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseMonth(v string, now time.Time) (report.Period, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return report.MonthOf(now), nil
	}
	t, err := time.Parse("2006-01", v)
	if err != nil {
		return report.Period{}, fmt.Errorf("%w: month %q must be YYYY-MM", core.ErrValidation, v)
	}
	return report.MonthOf(t), nil
}
