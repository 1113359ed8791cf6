// Package listing loads raw training listings from files and databases.
package listing

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pricewise/backend/internal/domain"
	"github.com/pricewise/backend/internal/infrastructure/logging"
)

// Reserved CSV columns. Every other column becomes a structured attribute.
const (
	ColumnCategory    = "category"
	ColumnTitle       = "title"
	ColumnDescription = "description"
	ColumnPrice       = "price"
	ColumnSource      = "source"
)

// CSVSource reads listings from a CSV export with a header row
type CSVSource struct {
	path   string
	logger logging.Logger
}

var _ domain.ListingSource = (*CSVSource)(nil)

// NewCSVSource creates a source for the file at path
func NewCSVSource(path string, logger logging.Logger) *CSVSource {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &CSVSource{path: path, logger: logger}
}

// Listings returns the rows of category. The file is re-read on every call.
func (s *CSVSource) Listings(ctx context.Context, category domain.Category) ([]domain.RawListingRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open listings file: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := ReadCSV(ctx, f, category)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	s.logger.Info("Loaded listings from CSV", map[string]interface{}{
		"path":     s.path,
		"category": category,
		"rows":     len(records),
	})
	return records, nil
}

// ReadCSV parses listings of category from r. An empty category keeps every row.
// Unparseable prices are kept as NaN so the preprocessor counts them as dropped.
func ReadCSV(ctx context.Context, r io.Reader, category domain.Category) ([]domain.RawListingRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{ColumnCategory, ColumnTitle, ColumnPrice} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	var out []domain.RawListingRecord
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rec := domain.RawListingRecord{
			Category:    cell(row, columns, ColumnCategory),
			Title:       cell(row, columns, ColumnTitle),
			Description: cell(row, columns, ColumnDescription),
			Price:       parsePrice(cell(row, columns, ColumnPrice)),
			Source:      cell(row, columns, ColumnSource),
			Attributes:  make(map[string]string),
		}
		if category != "" && !strings.EqualFold(strings.TrimSpace(rec.Category), string(category)) {
			continue
		}
		if rec.Source == "" {
			rec.Source = "csv"
		}
		for name, i := range columns {
			switch name {
			case ColumnCategory, ColumnTitle, ColumnDescription, ColumnPrice, ColumnSource:
				continue
			}
			if i < len(row) && strings.TrimSpace(row[i]) != "" {
				rec.Attributes[name] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func cell(row []string, columns map[string]int, name string) string {
	i, ok := columns[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parsePrice(s string) float64 {
	s = strings.NewReplacer(",", "", "₹", "", "$", "", "Rs.", "", "Rs", "").Replace(s)
	p, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return p
}
