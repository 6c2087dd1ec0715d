// Package services provides business logic shared by the API and the CLI.
//
// This file implements the Strategy Pattern for reminder recurrence. Each
// repeat type has its own strategy that decides the next due date once a
// reminder has been completed.

package services

import (
	"fmt"
	"time"

	"finboard/internal/core"
)

// Recurrence is the strategy interface for advancing a reminder's due date.
type Recurrence interface {
	// Next returns the due date following due, or false when the reminder
	// does not repeat.
	Next(due core.Date) (core.Date, bool)
}

// OnceRecurrence implements Recurrence for reminders that never repeat.
type OnceRecurrence struct{}

func (OnceRecurrence) Next(core.Date) (core.Date, bool) { return core.Date{}, false }

// MonthlyRecurrence moves to the same day next month, clamped to that
// month's last day (Jan 31 -> Feb 28).
type MonthlyRecurrence struct{}

func (MonthlyRecurrence) Next(due core.Date) (core.Date, bool) {
	return addMonthsClamped(due, 1), true
}

// YearlyRecurrence moves to the same day next year; Feb 29 becomes Feb 28
// in non-leap years.
type YearlyRecurrence struct{}

func (YearlyRecurrence) Next(due core.Date) (core.Date, bool) {
	return addMonthsClamped(due, 12), true
}

func addMonthsClamped(d core.Date, months int) core.Date {
	y, m, day := d.Time.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	last := first.AddDate(0, 1, -1).Day()
	return core.NewDate(first.Year(), int(first.Month()), min(day, last))
}

// recurrences maps repeat types to their strategies.
var recurrences = map[core.RepeatType]Recurrence{
	core.RepeatNone:    OnceRecurrence{},
	core.RepeatMonthly: MonthlyRecurrence{},
	core.RepeatYearly:  YearlyRecurrence{},
}

// GetRecurrence returns the strategy for a repeat type. An empty repeat type
// is treated as none.
func GetRecurrence(repeat core.RepeatType) (Recurrence, error) {
	if repeat == "" {
		repeat = core.RepeatNone
	}
	r, ok := recurrences[repeat]
	if !ok {
		return nil, fmt.Errorf("unknown repeat type: %s", repeat)
	}
	return r, nil
}

// NextDueDate is a convenience wrapper around GetRecurrence.
func NextDueDate(repeat core.RepeatType, due core.Date) (core.Date, bool) {
	r, err := GetRecurrence(repeat)
	if err != nil {
		return core.Date{}, false
	}
	return r.Next(due)
}

// NextOccurrence builds the open reminder that follows a completed one.
func NextOccurrence(r core.Reminder) (core.Reminder, bool) {
	next, ok := NextDueDate(r.RepeatType, r.DueDate)
	if !ok {
		return core.Reminder{}, false
	}
	r.ID, r.CreatedAt = "", time.Time{}
	r.DueDate, r.IsCompleted = next, false
	return r, true
}
