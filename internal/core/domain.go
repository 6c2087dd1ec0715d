// Package core holds the finance entities, their validation rules and the
// error kinds every store reports.
package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCreditCard AccountType = "credit_card"
	AccountInvestment AccountType = "investment"
)

const (
	Income     EntryType = "income"
	Expense    EntryType = "expense"
	Transfer   EntryType = "transfer"
	Investment EntryType = "investment"
)

const (
	RepeatNone    RepeatType = "none"
	RepeatMonthly RepeatType = "monthly"
	RepeatYearly  RepeatType = "yearly"
)

const (
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDisconnected ConnectionStatus = "disconnected"
	ConnectionExpired      ConnectionStatus = "expired"
	ConnectionError        ConnectionStatus = "error"
)

// DefaultAccountColor is applied when an account is stored without a color.
const DefaultAccountColor = "#0052CC"

const maxDescriptionLen = 200

type (
	AccountType      string
	EntryType        string
	RepeatType       string
	ConnectionStatus string

	Account struct {
		ID          string           `json:"id"`
		UserID      string           `json:"userId"`
		Name        string           `json:"name"`
		Type        AccountType      `json:"type"`
		Institution string           `json:"institution"`
		Balance     decimal.Decimal  `json:"balance"`
		CreditLimit *decimal.Decimal `json:"creditLimit,omitempty"`
		DueDate     *int             `json:"dueDate,omitempty"`
		ClosingDate *int             `json:"closingDate,omitempty"`
		Color       string           `json:"color"`
		IsActive    bool             `json:"isActive"`
		CreatedAt   time.Time        `json:"createdAt"`
		UpdatedAt   time.Time        `json:"updatedAt"`
	}

	Category struct {
		ID        string    `json:"id"`
		UserID    string    `json:"userId"`
		Name      string    `json:"name"`
		Type      EntryType `json:"type"`
		Color     string    `json:"color"`
		Icon      string    `json:"icon"`
		IsDefault bool      `json:"isDefault"`
		CreatedAt time.Time `json:"createdAt"`
	}

	Transaction struct {
		ID                 string          `json:"id"`
		UserID             string          `json:"userId"`
		AccountID          string          `json:"accountId"`
		CategoryID         *string         `json:"categoryId,omitempty"`
		Description        string          `json:"description"`
		Amount             decimal.Decimal `json:"amount"`
		TransactionDate    Date            `json:"transactionDate"`
		Type               EntryType       `json:"type"`
		InstallmentNumber  int             `json:"installmentNumber"`
		TotalInstallments  int             `json:"totalInstallments"`
		InstallmentGroupID *string         `json:"installmentGroupId,omitempty"`
		IsRecurring        bool            `json:"isRecurring"`
		RecurringFrequency *string         `json:"recurringFrequency,omitempty"`
		Notes              *string         `json:"notes,omitempty"`
		IsPending          bool            `json:"isPending"`
		CreatedAt          time.Time       `json:"createdAt"`
		UpdatedAt          time.Time       `json:"updatedAt"`
	}

	Reminder struct {
		ID          string           `json:"id"`
		UserID      string           `json:"userId"`
		AccountID   *string          `json:"accountId,omitempty"`
		Title       string           `json:"title"`
		Description *string          `json:"description,omitempty"`
		Amount      *decimal.Decimal `json:"amount,omitempty"`
		DueDate     Date             `json:"dueDate"`
		RepeatType  RepeatType       `json:"repeatType"`
		IsCompleted bool             `json:"isCompleted"`
		CreatedAt   time.Time        `json:"createdAt"`
	}

	Connection struct {
		ID              string           `json:"id"`
		UserID          string           `json:"userId"`
		InstitutionName string           `json:"institutionName"`
		ConnectionID    string           `json:"connectionId"`
		Status          ConnectionStatus `json:"status"`
		ConsentExpiry   *time.Time       `json:"consentExpiry,omitempty"`
		LastSync        *time.Time       `json:"lastSync,omitempty"`
		ErrorMessage    *string          `json:"errorMessage,omitempty"`
		CreatedAt       time.Time        `json:"createdAt"`
		UpdatedAt       time.Time        `json:"updatedAt"`
	}
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountCreditCard, AccountInvestment:
		return true
	}
	return false
}

func (t EntryType) Valid() bool {
	switch t {
	case Income, Expense, Transfer, Investment:
		return true
	}
	return false
}

func (r RepeatType) Valid() bool {
	switch r {
	case RepeatNone, RepeatMonthly, RepeatYearly:
		return true
	}
	return false
}

func (s ConnectionStatus) Valid() bool {
	switch s {
	case ConnectionConnected, ConnectionDisconnected, ConnectionExpired, ConnectionError:
		return true
	}
	return false
}

// IsCredit reports whether the account is a credit card.
func (a Account) IsCredit() bool { return a.Type == AccountCreditCard }

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return invalid("name", "is required")
	}
	if !a.Type.Valid() {
		return invalid("type", "%q is not an account type", a.Type)
	}
	if !a.IsCredit() && (a.CreditLimit != nil || a.DueDate != nil || a.ClosingDate != nil) {
		return invalid("creditLimit", "credit fields are only allowed on credit_card accounts")
	}
	if a.CreditLimit != nil && a.CreditLimit.IsNegative() {
		return invalid("creditLimit", "must not be negative")
	}
	if err := validDay("dueDate", a.DueDate); err != nil {
		return err
	}
	return validDay("closingDate", a.ClosingDate)
}

func validDay(field string, day *int) error {
	if day != nil && (*day < 1 || *day > 31) {
		return invalid(field, "must be a day of month, got %d", *day)
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", "is required")
	}
	if !c.Type.Valid() {
		return invalid("type", "%q is not a category type", c.Type)
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.AccountID) == "" {
		return invalid("accountId", "is required")
	}
	if strings.TrimSpace(t.Description) == "" {
		return invalid("description", "is required")
	}
	if len(t.Description) > maxDescriptionLen {
		return invalid("description", "too long (max %d characters)", maxDescriptionLen)
	}
	if !t.Type.Valid() {
		return invalid("type", "%q is not a transaction type", t.Type)
	}
	if t.TransactionDate.IsZero() {
		return invalid("transactionDate", "is required")
	}
	if t.InstallmentNumber < 1 {
		return invalid("installmentNumber", "must be at least 1")
	}
	if t.TotalInstallments < t.InstallmentNumber {
		return invalid("totalInstallments", "must be at least installmentNumber (%d)", t.InstallmentNumber)
	}
	return nil
}

// WithDefaults fills the installment fields a caller may leave unset.
func (t Transaction) WithDefaults() Transaction {
	if t.InstallmentNumber == 0 {
		t.InstallmentNumber = 1
	}
	if t.TotalInstallments == 0 {
		t.TotalInstallments = t.InstallmentNumber
	}
	if t.Type == "" {
		t.Type = Expense
	}
	return t
}

func (r Reminder) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return invalid("title", "is required")
	}
	if r.DueDate.IsZero() {
		return invalid("dueDate", "is required")
	}
	if !r.RepeatType.Valid() {
		return invalid("repeatType", "%q is not a repeat type", r.RepeatType)
	}
	if r.Amount != nil && r.Amount.IsNegative() {
		return invalid("amount", "must not be negative")
	}
	return nil
}

// WithDefaults sets RepeatNone when no repeat type was given.
func (r Reminder) WithDefaults() Reminder {
	if r.RepeatType == "" {
		r.RepeatType = RepeatNone
	}
	return r
}

func (c Connection) Validate() error {
	if strings.TrimSpace(c.InstitutionName) == "" {
		return invalid("institutionName", "is required")
	}
	if strings.TrimSpace(c.ConnectionID) == "" {
		return invalid("connectionId", "is required")
	}
	if !c.Status.Valid() {
		return invalid("status", "%q is not a connection status", c.Status)
	}
	return nil
}

// Owner is the authenticated user every record is attributed to.
type Owner struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}
