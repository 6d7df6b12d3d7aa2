package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceDrop/internal/domain/models"
	pkgch "PriceDrop/pkg/clickhouse"
)

var historyColumns = []string{"product_id", "date", "listing_price", "storage", "condition", "sold_count", "days_since_release"}

func newCHStore(t *testing.T) (*CHHistoryStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewCHHistoryStore(pkgch.NewFromDB(db), "pricedrop.price_history"), mock
}

func TestCHHistoryStore_RangeMapsNullableColumns(t *testing.T) {
	s, mock := newCHStore(t)
	from := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	d1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 10)

	mock.ExpectQuery(`SELECT product_id, date, listing_price .* FROM pricedrop.price_history\s+WHERE product_id = \? AND date >= \? AND date <= \?\s+ORDER BY date ASC`).
		WithArgs("iphone-13", from, to).
		WillReturnRows(sqlmock.NewRows(historyColumns).
			AddRow("iphone-13", d1, 1000.0, 128.0, "good", int64(4), 300.0).
			AddRow("iphone-13", d2, 900.0, nil, nil, nil, nil))

	got, err := s.Range(context.Background(), "iphone-13", from, to)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, d1, got[0].Date)
	assert.Equal(t, 1000.0, got[0].ListingPrice)
	require.NotNil(t, got[0].Storage)
	assert.Equal(t, 128.0, *got[0].Storage)
	assert.Equal(t, models.ConditionGood, got[0].Condition)
	require.NotNil(t, got[0].SoldCount)
	assert.EqualValues(t, 4, *got[0].SoldCount)
	require.NotNil(t, got[0].DaysSinceRelease)

	assert.Nil(t, got[1].Storage)
	assert.Nil(t, got[1].SoldCount)
	assert.Nil(t, got[1].DaysSinceRelease)
	assert.Equal(t, models.Condition(""), got[1].Condition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHHistoryStore_RangeEmpty(t *testing.T) {
	s, mock := newCHStore(t)
	mock.ExpectQuery("SELECT product_id").WillReturnRows(sqlmock.NewRows(historyColumns))

	got, err := s.Range(context.Background(), "none", time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCHHistoryStore_RangeQueryError(t *testing.T) {
	s, mock := newCHStore(t)
	mock.ExpectQuery("SELECT product_id").WillReturnError(errors.New("connection refused"))

	_, err := s.Range(context.Background(), "p1", time.Time{}, time.Now())
	assert.ErrorContains(t, err, "query price history")
	assert.ErrorContains(t, err, "connection refused")
}

func TestCHHistorySchema(t *testing.T) {
	stmts := CHHistorySchema("db.t")
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS db.t")
	assert.Contains(t, stmts[0], "ORDER BY (product_id, date)")
}
