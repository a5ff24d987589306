package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"chocolate-storefront/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads catalog spreadsheets exported by staff and upserts products by title.
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
	currency    string
}

func NewCSVImporter(r io.Reader, repo ProductWriter, defaultCurrency string) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	if defaultCurrency == "" {
		defaultCurrency = "TRY"
	}
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
		currency:    defaultCurrency,
	}
}

type csvRow struct {
	line     int
	ID       string
	Title    string
	Desc     string
	Price    string
	Currency string
	InStock  string
	Category string
	ImageURL string
	Position string
}

// Run parses CSV rows and upserts one product per row. Rows without a title are skipped.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["title"]; !ok {
		return 0, errors.New("read headers: title column missing")
	}

	imported := 0
	line := 1
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line++

		row := parseRow(record, index)
		if row.Title == "" {
			continue
		}
		row.line = line
		p, err := i.toProduct(row)
		if err != nil {
			return imported, err
		}
		if _, err := i.productRepo.Upsert(ctx, p); err != nil {
			return imported, fmt.Errorf("upsert product %q: %w", row.Title, err)
		}
		imported++
	}
	return imported, nil
}

func (i *CSVImporter) toProduct(row csvRow) (domain.Product, error) {
	if row.ID != "" && len(row.ID) != 36 {
		return domain.Product{}, fmt.Errorf("line %d: invalid id %q", row.line, row.ID)
	}
	cents, err := parsePrice(row.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("line %d: %w", row.line, err)
	}
	currency := strings.ToUpper(row.Currency)
	if currency == "" {
		currency = i.currency
	}
	inStock := true
	if row.InStock != "" {
		inStock, err = strconv.ParseBool(row.InStock)
		if err != nil {
			return domain.Product{}, fmt.Errorf("line %d: invalid inStock %q", row.line, row.InStock)
		}
	}
	position := 0
	if row.Position != "" {
		position, err = strconv.Atoi(row.Position)
		if err != nil {
			return domain.Product{}, fmt.Errorf("line %d: invalid position %q", row.line, row.Position)
		}
	}
	return domain.Product{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Desc,
		PriceCents:  cents,
		Currency:    currency,
		InStock:     inStock,
		Category:    row.Category,
		ImageURL:    row.ImageURL,
		Position:    position,
	}, nil
}

// parsePrice reads a major-unit decimal such as "300" or "80.5" into cents.
func parsePrice(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("price required")
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	return units*100 + cents, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) csvRow {
	return csvRow{
		ID:       pick(record, index, "id"),
		Title:    pick(record, index, "title"),
		Desc:     pick(record, index, "description"),
		Price:    pick(record, index, "price"),
		Currency: pick(record, index, "currency"),
		InStock:  pick(record, index, "inStock"),
		Category: pick(record, index, "category"),
		ImageURL: pick(record, index, "imageUrl"),
		Position: pick(record, index, "position"),
	}
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
