package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PriceDrop/internal/domain/models"
	domrepo "PriceDrop/internal/domain/repository"
	pkgch "PriceDrop/pkg/clickhouse"
	applogger "PriceDrop/pkg/logger"
)

var _ domrepo.HistoryStore = (*CHHistoryStore)(nil)

// CHHistorySchema returns the DDL for the price history table.
func CHHistorySchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            product_id         String,
            date               DateTime64(3, 'UTC'),
            listing_price      Float64,
            storage            Nullable(Float64),
            condition          LowCardinality(String) DEFAULT '',
            sold_count         Nullable(Int64),
            days_since_release Nullable(Float64)
        )
        ENGINE = MergeTree
        ORDER BY (product_id, date)
    `, table)}
}

// CHHistoryStore implements HistoryStore backed by ClickHouse.
type CHHistoryStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHHistoryStore(ch *pkgch.Client, table string) *CHHistoryStore {
	return &CHHistoryStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHHistoryStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHHistoryStore) Range(ctx context.Context, productID string, from, to time.Time) ([]models.PricePoint, error) {
	start := time.Now()
	const qtpl = `
        SELECT product_id, date, listing_price, storage, condition, sold_count, days_since_release
        FROM %s
        WHERE product_id = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, productID, from, to)
	if err != nil {
		s.logErr("clickhouse history query error", productID, err)
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	out := make([]models.PricePoint, 0, 512)
	for rows.Next() {
		var (
			p         models.PricePoint
			storage   sql.NullFloat64
			condition sql.NullString
			sold      sql.NullInt64
			released  sql.NullFloat64
		)
		if err := rows.Scan(&p.ProductID, &p.Date, &p.ListingPrice, &storage, &condition, &sold, &released); err != nil {
			s.logErr("clickhouse history scan error", productID, err)
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		p.Date = p.Date.UTC()
		p.Condition = models.Condition(condition.String)
		if storage.Valid {
			p.Storage = &storage.Float64
		}
		if sold.Valid {
			p.SoldCount = &sold.Int64
		}
		if released.Valid {
			p.DaysSinceRelease = &released.Float64
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		s.logErr("clickhouse history rows error", productID, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse history ok",
			applogger.String("table", s.table),
			applogger.String("product_id", productID),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHHistoryStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHHistoryStore) logErr(msg, productID string, err error) {
	if s.l == nil {
		return
	}
	s.l.Error(msg,
		applogger.String("table", s.table),
		applogger.String("product_id", productID),
		applogger.Error(err),
	)
}
