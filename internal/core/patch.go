package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Patches carry partial updates. A nil field is not part of the patch.
// Apply returns the patched copy; stores validate that copy before touching
// any state.
type (
	AccountPatch struct {
		Name        *string          `json:"name,omitempty"`
		Type        *AccountType     `json:"type,omitempty"`
		Institution *string          `json:"institution,omitempty"`
		Balance     *decimal.Decimal `json:"balance,omitempty"`
		CreditLimit *decimal.Decimal `json:"creditLimit,omitempty"`
		DueDate     *int             `json:"dueDate,omitempty"`
		ClosingDate *int             `json:"closingDate,omitempty"`
		Color       *string          `json:"color,omitempty"`
		IsActive    *bool            `json:"isActive,omitempty"`
	}

	CategoryPatch struct {
		Name  *string    `json:"name,omitempty"`
		Type  *EntryType `json:"type,omitempty"`
		Color *string    `json:"color,omitempty"`
		Icon  *string    `json:"icon,omitempty"`
	}

	TransactionPatch struct {
		AccountID          *string          `json:"accountId,omitempty"`
		CategoryID         *string          `json:"categoryId,omitempty"`
		Description        *string          `json:"description,omitempty"`
		Amount             *decimal.Decimal `json:"amount,omitempty"`
		TransactionDate    *Date            `json:"transactionDate,omitempty"`
		Type               *EntryType       `json:"type,omitempty"`
		InstallmentNumber  *int             `json:"installmentNumber,omitempty"`
		TotalInstallments  *int             `json:"totalInstallments,omitempty"`
		InstallmentGroupID *string          `json:"installmentGroupId,omitempty"`
		IsRecurring        *bool            `json:"isRecurring,omitempty"`
		RecurringFrequency *string          `json:"recurringFrequency,omitempty"`
		Notes              *string          `json:"notes,omitempty"`
		IsPending          *bool            `json:"isPending,omitempty"`
	}

	ReminderPatch struct {
		AccountID   *string          `json:"accountId,omitempty"`
		Title       *string          `json:"title,omitempty"`
		Description *string          `json:"description,omitempty"`
		Amount      *decimal.Decimal `json:"amount,omitempty"`
		DueDate     *Date            `json:"dueDate,omitempty"`
		RepeatType  *RepeatType      `json:"repeatType,omitempty"`
		IsCompleted *bool            `json:"isCompleted,omitempty"`
	}

	ConnectionPatch struct {
		InstitutionName *string           `json:"institutionName,omitempty"`
		Status          *ConnectionStatus `json:"status,omitempty"`
		ConsentExpiry   *time.Time        `json:"consentExpiry,omitempty"`
		LastSync        *time.Time        `json:"lastSync,omitempty"`
		ErrorMessage    *string           `json:"errorMessage,omitempty"`
	}
)

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setPtr[T any](dst **T, v *T) {
	if v != nil {
		c := *v
		*dst = &c
	}
}

// Apply patches a copy of a. Moving an account away from credit_card drops
// its credit fields.
func (p AccountPatch) Apply(a Account) Account {
	set(&a.Name, p.Name)
	set(&a.Type, p.Type)
	set(&a.Institution, p.Institution)
	set(&a.Balance, p.Balance)
	setPtr(&a.CreditLimit, p.CreditLimit)
	setPtr(&a.DueDate, p.DueDate)
	setPtr(&a.ClosingDate, p.ClosingDate)
	set(&a.Color, p.Color)
	set(&a.IsActive, p.IsActive)
	if p.Type != nil && !a.IsCredit() && p.CreditLimit == nil && p.DueDate == nil && p.ClosingDate == nil {
		a.CreditLimit, a.DueDate, a.ClosingDate = nil, nil, nil
	}
	return a
}

func (p CategoryPatch) Apply(c Category) Category {
	set(&c.Name, p.Name)
	set(&c.Type, p.Type)
	set(&c.Color, p.Color)
	set(&c.Icon, p.Icon)
	return c
}

func (p TransactionPatch) Apply(t Transaction) Transaction {
	set(&t.AccountID, p.AccountID)
	setPtr(&t.CategoryID, p.CategoryID)
	set(&t.Description, p.Description)
	set(&t.Amount, p.Amount)
	set(&t.TransactionDate, p.TransactionDate)
	set(&t.Type, p.Type)
	set(&t.InstallmentNumber, p.InstallmentNumber)
	set(&t.TotalInstallments, p.TotalInstallments)
	setPtr(&t.InstallmentGroupID, p.InstallmentGroupID)
	set(&t.IsRecurring, p.IsRecurring)
	setPtr(&t.RecurringFrequency, p.RecurringFrequency)
	setPtr(&t.Notes, p.Notes)
	set(&t.IsPending, p.IsPending)
	return t
}

// AmountChanged reports whether applying p to t changes the signed amount.
func (p TransactionPatch) AmountChanged(t Transaction) bool {
	return p.Amount != nil && !p.Amount.Equal(t.Amount)
}

func (p ReminderPatch) Apply(r Reminder) Reminder {
	setPtr(&r.AccountID, p.AccountID)
	set(&r.Title, p.Title)
	setPtr(&r.Description, p.Description)
	setPtr(&r.Amount, p.Amount)
	set(&r.DueDate, p.DueDate)
	set(&r.RepeatType, p.RepeatType)
	set(&r.IsCompleted, p.IsCompleted)
	return r
}

func (p ConnectionPatch) Apply(c Connection) Connection {
	set(&c.InstitutionName, p.InstitutionName)
	set(&c.Status, p.Status)
	setPtr(&c.ConsentExpiry, p.ConsentExpiry)
	setPtr(&c.LastSync, p.LastSync)
	setPtr(&c.ErrorMessage, p.ErrorMessage)
	return c
}
