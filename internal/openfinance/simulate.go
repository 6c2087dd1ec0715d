package openfinance

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

// Account is an account held at the institution, as reported by it.
type Account struct {
	ID            string           `json:"id"`
	InstitutionID string           `json:"institutionId"`
	Name          string           `json:"name"`
	Type          core.AccountType `json:"type"`
	Balance       decimal.Decimal  `json:"balance"`
	Currency      string           `json:"currency"`
	AccountNumber string           `json:"accountNumber"`
	Branch        string           `json:"branch,omitempty"`
}

// Transaction is a statement line reported by the institution.
type Transaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"accountId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        core.Date       `json:"date"`
	Category    string          `json:"category"`
	Credit      bool            `json:"credit"`
	Merchant    string          `json:"merchant,omitempty"`
}

const transactionsPerAccount = 10

var (
	simulatedCategories = []string{"Alimentação", "Transporte", "Lazer", "Saúde", "Educação", "Moradia"}
	simulatedMerchants  = []string{"Supermercado Extra", "Uber", "Netflix", "Farmácia", "Posto Shell", "Restaurante"}
)

// rng returns a generator seeded from parts, so the same connection always
// reports the same data.
func rng(parts ...string) *rand.Rand {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

func money(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

// simulatedAccounts returns the accounts the institution reports for a
// connection.
func simulatedAccounts(inst Institution, conn core.Connection) []Account {
	switch inst.ID {
	case "nubank":
		return []Account{
			{ID: "acc_nu_conta", InstitutionID: inst.ID, Name: "Conta do Nubank", Type: core.AccountChecking,
				Balance: decimal.RequireFromString("2500.50"), Currency: "BRL", AccountNumber: "****1234"},
			{ID: "acc_nu_credito", InstitutionID: inst.ID, Name: "Cartão de Crédito Nubank", Type: core.AccountCreditCard,
				Balance: decimal.RequireFromString("-850.30"), Currency: "BRL", AccountNumber: "****5678"},
		}
	case "itau":
		return []Account{
			{ID: "acc_itau_cc", InstitutionID: inst.ID, Name: "Conta Corrente Itaú", Type: core.AccountChecking,
				Balance: decimal.RequireFromString("4200.75"), Currency: "BRL", AccountNumber: "12345-6", Branch: "0001"},
			{ID: "acc_itau_poup", InstitutionID: inst.ID, Name: "Poupança Itaú", Type: core.AccountSavings,
				Balance: decimal.RequireFromString("8500.00"), Currency: "BRL", AccountNumber: "12345-7", Branch: "0001"},
		}
	default:
		r := rng(conn.ConnectionID, inst.ID)
		return []Account{{
			ID:            fmt.Sprintf("acc_%s_default", inst.ID),
			InstitutionID: inst.ID,
			Name:          "Conta " + inst.Name,
			Type:          core.AccountChecking,
			Balance:       money(r.Float64() * 10000),
			Currency:      "BRL",
			AccountNumber: fmt.Sprintf("****%04d", r.IntN(10000)),
		}}
	}
}

// transactionPrefix starts the id of every transaction reported for the
// external account accID through conn.
func transactionPrefix(conn core.Connection, accID string) string {
	return fmt.Sprintf("trans_%s_%s_", conn.ID, accID)
}

// simulatedTransactions reports the last 30 days of activity for each
// account. Ids are stable across calls for the same connection.
func simulatedTransactions(conn core.Connection, accounts []Account, now time.Time) []Transaction {
	today := core.DateOf(now)
	var out []Transaction
	for _, acc := range accounts {
		r := rng(conn.ConnectionID, acc.ID)
		for i := range transactionsPerAccount {
			credit := r.Float64() > 0.7
			var amount decimal.Decimal
			if credit {
				amount = money(r.Float64()*1000 + 0.01)
			} else {
				amount = money(r.Float64()*200 + 0.01).Neg()
			}
			out = append(out, Transaction{
				ID:          fmt.Sprintf("%s%d", transactionPrefix(conn, acc.ID), i),
				AccountID:   acc.ID,
				Description: simulatedMerchants[r.IntN(len(simulatedMerchants))],
				Amount:      amount,
				Date:        today.AddDays(-r.IntN(30)),
				Category:    simulatedCategories[r.IntN(len(simulatedCategories))],
				Credit:      credit,
				Merchant:    simulatedMerchants[r.IntN(len(simulatedMerchants))],
			})
		}
	}
	return out
}
