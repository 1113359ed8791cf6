package listing

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/lib/pq"

	"github.com/pricewise/backend/internal/domain"
	"github.com/pricewise/backend/internal/infrastructure/logging"
)

// DefaultListingsTable is read when no table is configured
const DefaultListingsTable = "listings"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresConfig holds connection settings for the listings database
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresSource reads listings from a table with the columns
// category, title, description, price, source and a jsonb attributes column.
type PostgresSource struct {
	db     *sql.DB
	query  string
	logger logging.Logger
}

var _ domain.ListingSource = (*PostgresSource)(nil)

// OpenPostgres opens a connection pool and wraps it in a source
func OpenPostgres(cfg PostgresConfig, logger logging.Logger) (*PostgresSource, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime == 0 {
		lifetime = 5 * time.Minute
	}
	db.SetConnMaxLifetime(lifetime)

	src, err := NewPostgresSource(db, cfg.Table, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return src, nil
}

// NewPostgresSource wraps an open database handle
func NewPostgresSource(db *sql.DB, table string, logger logging.Logger) (*PostgresSource, error) {
	if table == "" {
		table = DefaultListingsTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid listings table name %q", table)
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &PostgresSource{
		db: db,
		query: "SELECT title, description, price, source, attributes FROM " + table +
			" WHERE category = $1 ORDER BY 1",
		logger: logger,
	}, nil
}

// Ping tests the database connection
func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresSource) Close() error {
	return s.db.Close()
}

// Listings returns every row of category
func (s *PostgresSource) Listings(ctx context.Context, category domain.Category) ([]domain.RawListingRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.query, string(category))
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.RawListingRecord
	for rows.Next() {
		var (
			title       string
			description sql.NullString
			price       sql.NullFloat64
			source      sql.NullString
			attributes  []byte
		)
		if err := rows.Scan(&title, &description, &price, &source, &attributes); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		attrs, err := decodeAttributes(attributes)
		if err != nil {
			return nil, fmt.Errorf("listing %q: %w", title, err)
		}
		rec := domain.RawListingRecord{
			Category:    string(category),
			Title:       title,
			Description: description.String,
			Price:       math.NaN(),
			Source:      "postgres",
			Attributes:  attrs,
		}
		if price.Valid {
			rec.Price = price.Float64
		}
		if source.Valid && source.String != "" {
			rec.Source = source.String
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}

	s.logger.Info("Loaded listings from postgres", map[string]interface{}{
		"category": category,
		"rows":     len(out),
	})
	return out, nil
}

// decodeAttributes flattens a JSON object into string attributes. Nulls are skipped.
func decodeAttributes(raw []byte) (map[string]string, error) {
	out := make(map[string]string)
	if len(raw) == 0 {
		return out, nil
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	for k, v := range doc {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			nested, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("encode attribute %s: %w", k, err)
			}
			out[k] = string(nested)
		}
	}
	return out, nil
}
