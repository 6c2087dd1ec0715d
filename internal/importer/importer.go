// Package importer turns bank statements into transactions. Extraction is
// pluggable: the hosted AI/OCR service and the local CSV parser both
// produce candidates with a confidence score, and low-confidence candidates
// are stored as pending so the owner reviews them.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"finboard/internal/core"
	"finboard/internal/log"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
)

type (
	// Candidate is one transaction read from a statement.
	Candidate struct {
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Date        core.Date       `json:"date"`
		Category    string          `json:"category,omitempty"`
		Confidence  int             `json:"confidence"`
	}

	// Extractor reads candidates from a statement. It may return candidates
	// together with an error describing the parts it had to skip.
	Extractor interface {
		Extract(ctx context.Context, r io.Reader) ([]Candidate, error)
	}

	// Sink is where imported transactions go; the data service satisfies it.
	Sink interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	}

	// Policy tunes how candidates become transactions.
	Policy struct {
		// PendingThreshold marks candidates below this confidence as pending.
		PendingThreshold int
		// MaxCategoryDistance is the largest edit distance accepted when a
		// category name does not match exactly.
		MaxCategoryDistance int
	}

	// Result summarizes one import.
	Result struct {
		Success      bool               `json:"success"`
		Processed    int                `json:"processedTransactions"`
		Errors       []string           `json:"errors"`
		Transactions []core.Transaction `json:"transactions"`
	}
)

func DefaultPolicy() Policy {
	return Policy{PendingThreshold: 70, MaxCategoryDistance: 2}
}

type Importer struct {
	sink      Sink
	extractor Extractor
	policy    Policy
	logger    *log.Logger
}

func New(sink Sink, extractor Extractor, policy Policy, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.Discard()
	}
	return &Importer{
		sink:      sink,
		extractor: extractor,
		policy:    policy,
		logger:    logger.WithComponent(log.ComponentImporter),
	}
}

// Import extracts candidates from source and records them against
// accountID. Failures on individual candidates are collected in the result;
// the returned error is reserved for failures that stop the whole import.
func (im *Importer) Import(ctx context.Context, accountID string, source io.Reader) (Result, error) {
	res := Result{Errors: []string{}, Transactions: []core.Transaction{}}
	if strings.TrimSpace(accountID) == "" {
		return res, fmt.Errorf("%w: accountId is required", core.ErrValidation)
	}

	candidates, extractErr := im.extractor.Extract(ctx, source)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if extractErr != nil {
		if len(candidates) == 0 && !isRowErrors(extractErr) {
			return res, fmt.Errorf("extract statement: %w", extractErr)
		}
		res.Errors = append(res.Errors, errorLines(extractErr)...)
	}

	categories, err := im.sink.ListCategories(ctx)
	if err != nil {
		return res, fmt.Errorf("load categories: %w", err)
	}

	for _, c := range candidates {
		t := im.transactionFor(accountID, c, categories)
		created, err := im.sink.CreateTransaction(ctx, t)
		if err != nil {
			if core.KindOf(err) == core.KindUnauthenticated {
				return res, err
			}
			res.Errors = append(res.Errors, fmt.Sprintf("Erro ao processar transação: %s", c.Description))
			im.logger.WarnContext(ctx, "Skipping imported candidate",
				log.NewFields().WithOperation(log.OpImport).WithError(err).ToSlice()...)
			continue
		}
		res.Transactions = append(res.Transactions, created)
		res.Processed++
	}

	res.Success = res.Processed > 0
	im.logger.InfoContext(ctx, "Statement imported",
		log.FieldAccountID, accountID,
		log.FieldCount, res.Processed,
		"errors", len(res.Errors))
	return res, nil
}

func (im *Importer) transactionFor(accountID string, c Candidate, categories []core.Category) core.Transaction {
	category := MatchCategory(c.Category, categories, im.policy.MaxCategoryDistance)
	notes := fmt.Sprintf("Importado automaticamente (confiança: %d%%)", c.Confidence)

	t := core.Transaction{
		AccountID:         accountID,
		Description:       c.Description,
		Amount:            c.Amount,
		TransactionDate:   c.Date,
		Type:              Classify(c.Amount, category),
		InstallmentNumber: 1,
		TotalInstallments: 1,
		Notes:             &notes,
		IsPending:         c.Confidence < im.policy.PendingThreshold,
	}
	if category != nil {
		id := category.ID
		t.CategoryID = &id
	}
	return t
}

// Classify picks the entry type for an imported amount. Everything is an
// expense unless the amount is positive and the matched category says
// otherwise.
func Classify(amount decimal.Decimal, category *core.Category) core.EntryType {
	if !amount.IsPositive() || category == nil {
		return core.Expense
	}
	switch category.Type {
	case core.Income, core.Investment, core.Transfer:
		return category.Type
	default:
		return core.Expense
	}
}

// MatchCategory finds the category named name: an exact case-insensitive
// match wins, otherwise the closest name within maxDistance edits.
func MatchCategory(name string, categories []core.Category, maxDistance int) *core.Category {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}

	best, bestDist := -1, maxDistance+1
	for i, c := range categories {
		candidate := strings.ToLower(c.Name)
		if candidate == name {
			return &categories[i]
		}
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return nil
	}
	return &categories[best]
}

func isRowErrors(err error) bool {
	_, ok := err.(interface{ Unwrap() []error })
	return ok
}

func errorLines(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var lines []string
		for _, e := range joined.Unwrap() {
			lines = append(lines, e.Error())
		}
		return lines
	}
	return []string{err.Error()}
}
