package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/store"
)

// StandardParser reads CSVs with date, description, reference and amount
// columns in any order. Header names are matched after trimming and
// lowercasing; reference may be absent.
type StandardParser struct{}

const (
	colDate        = "date"
	colDescription = "description"
	colReference   = "reference"
	colAmount      = "amount"
)

var standardDateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
}

// Format returns the parser name.
func (p *StandardParser) Format() string { return "standard" }

// Parse reads a standard statement CSV.
func (p *StandardParser) Parse(r io.Reader) ([]store.Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	var rows []store.Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		if blank(rec) {
			continue
		}
		row, err := cols.row(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type columns struct {
	date, description, reference, amount int
}

func indexColumns(header []string) (columns, error) {
	c := columns{date: -1, description: -1, reference: -1, amount: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case colDate:
			c.date = i
		case colDescription:
			c.description = i
		case colReference:
			c.reference = i
		case colAmount:
			c.amount = i
		}
	}

	var missing []string
	if c.date < 0 {
		missing = append(missing, colDate)
	}
	if c.description < 0 {
		missing = append(missing, colDescription)
	}
	if c.amount < 0 {
		missing = append(missing, colAmount)
	}
	if len(missing) > 0 {
		return c, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return c, nil
}

func (c columns) row(rec []string) (store.Row, error) {
	field := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	date, err := parseDate(field(c.date))
	if err != nil {
		return store.Row{}, err
	}

	raw := field(c.amount)
	amount, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return store.Row{}, fmt.Errorf("parsing amount %q: %w", raw, err)
	}

	return store.Row{
		Date:        date,
		Description: field(c.description),
		Reference:   field(c.reference),
		Amount:      amount,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range standardDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q: unrecognized format", s)
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
