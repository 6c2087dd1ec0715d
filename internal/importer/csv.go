package importer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"finboard/internal/core"
)

// Confidence penalties applied when a CSV row needs filling in.
const (
	penaltyNoCategory    = 20
	penaltyNoDescription = 40

	placeholderDescription = "Sem descrição"
)

// CSVExtractor reads bank statements exported as CSV. Columns are either
// named in a header row or positional: date, description, amount and an
// optional category. Comma and semicolon separators are both accepted.
type CSVExtractor struct{}

var headerAliases = map[string]string{
	"date":        colDate,
	"data":        colDate,
	"description": colDescription,
	"descricao":   colDescription,
	"descrição":   colDescription,
	"historico":   colDescription,
	"histórico":   colDescription,
	"amount":      colAmount,
	"valor":       colAmount,
	"category":    colCategory,
	"categoria":   colCategory,
}

const (
	colDate        = "date"
	colDescription = "description"
	colAmount      = "amount"
	colCategory    = "category"
)

// Extract parses every row it can. Rows that cannot be parsed are skipped
// and reported together in the returned error, alongside the candidates
// that did parse.
func (CSVExtractor) Extract(ctx context.Context, r io.Reader) ([]Candidate, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read statement: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = detectSeparator(raw)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	columns, body, firstLine := positionalColumns(), records, 1
	if named, ok := headerColumns(records[0]); ok {
		columns, body, firstLine = named, records[1:], 2
	}

	var (
		candidates []Candidate
		rowErrs    []error
	)
	for i, rec := range body {
		if err := ctx.Err(); err != nil {
			return candidates, err
		}
		if blankRecord(rec) {
			continue
		}
		c, err := parseRow(rec, columns)
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("linha %d: %w", firstLine+i, err))
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, errors.Join(rowErrs...)
}

func detectSeparator(raw []byte) rune {
	first, _ := bufio.NewReader(bytes.NewReader(raw)).ReadString('\n')
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}
	return ','
}

func positionalColumns() map[string]int {
	return map[string]int{colDate: 0, colDescription: 1, colAmount: 2, colCategory: 3}
}

// headerColumns maps a header row to column positions. A row is a header
// when it names at least the date and amount columns.
func headerColumns(rec []string) (map[string]int, bool) {
	columns := make(map[string]int)
	for i, name := range rec {
		if col, ok := headerAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
			columns[col] = i
		}
	}
	_, hasDate := columns[colDate]
	_, hasAmount := columns[colAmount]
	return columns, hasDate && hasAmount
}

func field(rec []string, columns map[string]int, col string) string {
	i, ok := columns[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseRow(rec []string, columns map[string]int) (Candidate, error) {
	date, err := core.ParseDate(field(rec, columns, colDate))
	if err != nil {
		return Candidate{}, err
	}
	amount, err := core.ParseAmount(field(rec, columns, colAmount))
	if err != nil {
		return Candidate{}, err
	}

	c := Candidate{
		Description: field(rec, columns, colDescription),
		Amount:      amount,
		Date:        date,
		Category:    field(rec, columns, colCategory),
		Confidence:  100,
	}
	if c.Category == "" {
		c.Confidence -= penaltyNoCategory
	}
	if c.Description == "" {
		c.Description = placeholderDescription
		c.Confidence -= penaltyNoDescription
	}
	return c, nil
}
