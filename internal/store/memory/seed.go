package memory

import (
	"time"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

// PlaceholderOwner is used when no owner can be resolved while seeding.
const PlaceholderOwner = "user_1"

// Sample is the demo data set served while the relational store is down.
type Sample struct {
	Accounts     []core.Account
	Categories   []core.Category
	Transactions []core.Transaction
	Reminders    []core.Reminder
}

// SampleData builds the demo data set for owner with dates relative to now.
func SampleData(owner string, now time.Time) Sample {
	today := core.DateOf(now)
	amount := decimal.RequireFromString
	day := func(n int) *int { return &n }
	str := func(s string) *string { return &s }
	money := func(s string) *decimal.Decimal { d := amount(s); return &d }

	accounts := []core.Account{
		{ID: "acc_sample_1", Name: "Conta Corrente Nubank", Type: core.AccountChecking, Institution: "Nubank", Balance: amount("2500.00"), Color: "#8A05BE"},
		{ID: "acc_sample_2", Name: "Cartão Nubank", Type: core.AccountCreditCard, Institution: "Nubank", Balance: amount("-350.00"), CreditLimit: money("1500.00"), DueDate: day(15), ClosingDate: day(10), Color: "#8A05BE"},
		{ID: "acc_sample_3", Name: "Poupança Itaú", Type: core.AccountSavings, Institution: "Itaú", Balance: amount("5000.00"), Color: "#FF7A00"},
	}
	for i := range accounts {
		accounts[i].UserID, accounts[i].IsActive = owner, true
		accounts[i].CreatedAt, accounts[i].UpdatedAt = now, now
	}

	categories := []core.Category{
		{ID: "cat_alimentacao", Name: "Alimentação", Type: core.Expense, Color: "#FF6B6B", Icon: "utensils"},
		{ID: "cat_transporte", Name: "Transporte", Type: core.Expense, Color: "#4ECDC4", Icon: "car"},
		{ID: "cat_moradia", Name: "Moradia", Type: core.Expense, Color: "#45B7D1", Icon: "home"},
		{ID: "cat_saude", Name: "Saúde", Type: core.Expense, Color: "#96CEB4", Icon: "heart"},
		{ID: "cat_lazer", Name: "Lazer", Type: core.Expense, Color: "#FFEAA7", Icon: "gamepad"},
		{ID: "cat_educacao", Name: "Educação", Type: core.Expense, Color: "#DDA0DD", Icon: "book"},
		{ID: "cat_compras", Name: "Compras", Type: core.Expense, Color: "#F8BBD0", Icon: "shopping-bag"},
		{ID: "cat_salario", Name: "Salário", Type: core.Income, Color: "#4CAF50", Icon: "briefcase"},
		{ID: "cat_freelance", Name: "Freelance", Type: core.Income, Color: "#81C784", Icon: "laptop"},
		{ID: "cat_investimentos", Name: "Investimentos", Type: core.Investment, Color: "#A5D6A7", Icon: "trending-up"},
		{ID: "cat_transferencia", Name: "Transferência", Type: core.Transfer, Color: "#2196F3", Icon: "arrow-right"},
	}
	for i := range categories {
		categories[i].UserID, categories[i].IsDefault, categories[i].CreatedAt = owner, true, now
	}

	txn := func(id, account, category, desc, amt string, offset int, typ core.EntryType) core.Transaction {
		return core.Transaction{
			ID: id, UserID: owner, AccountID: account, CategoryID: str(category),
			Description: desc, Amount: amount(amt), TransactionDate: today.AddDays(offset), Type: typ,
			InstallmentNumber: 1, TotalInstallments: 1, CreatedAt: now, UpdatedAt: now,
		}
	}
	transactions := []core.Transaction{
		txn("txn_sample_1", "acc_sample_1", "cat_alimentacao", "Supermercado Pão de Açúcar", "-156.87", -1, core.Expense),
		txn("txn_sample_2", "acc_sample_1", "cat_salario", "Salário Empresa XYZ", "3500.00", -2, core.Income),
		txn("txn_sample_3", "acc_sample_2", "cat_transporte", "Uber", "-23.50", 0, core.Expense),
		txn("txn_sample_4", "acc_sample_2", "cat_lazer", "Netflix", "-25.90", -7, core.Expense),
		txn("txn_sample_5", "acc_sample_2", "cat_moradia", "Aluguel", "-1200.00", -30, core.Expense),
	}

	reminders := []core.Reminder{
		{ID: "rem_sample_1", AccountID: str("acc_sample_2"), Title: "Vencimento Cartão Nubank", Description: str("Lembrete para pagamento da fatura"), Amount: money("350.00"), DueDate: today.AddDays(10)},
		{ID: "rem_sample_2", Title: "Aluguel", Description: str("Pagamento do aluguel"), Amount: money("1200.00"), DueDate: today.AddDays(5)},
		{ID: "rem_sample_3", Title: "Internet", Description: str("Mensalidade da internet"), Amount: money("89.90"), DueDate: today.AddDays(15)},
	}
	for i := range reminders {
		reminders[i].UserID, reminders[i].RepeatType, reminders[i].CreatedAt = owner, core.RepeatMonthly, now
	}

	return Sample{Accounts: accounts, Categories: categories, Transactions: transactions, Reminders: reminders}
}
