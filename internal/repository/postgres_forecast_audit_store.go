package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"PriceDrop/internal/domain/models"
	domrepo "PriceDrop/internal/domain/repository"
	pkgpg "PriceDrop/pkg/postgres"
)

var _ domrepo.ForecastAuditStore = (*PGForecastAuditStore)(nil)

// PGForecastAuditSchema is the DDL for the forecast request log, kept in the
// same database as predictions.
var PGForecastAuditSchema = []string{
	`CREATE TABLE IF NOT EXISTS prediction_requests (
		id            UUID PRIMARY KEY,
		request_id    TEXT NOT NULL,
		user_id       TEXT NOT NULL,
		product_id    TEXT NOT NULL,
		model_version TEXT NOT NULL,
		input         JSONB NOT NULL,
		horizon_days  INT,
		output        JSONB,
		confidence    DOUBLE PRECISION,
		latency_ms    INT NOT NULL,
		status        TEXT NOT NULL,
		error         TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS prediction_requests_request_idx
		ON prediction_requests (request_id)`,
}

// PGForecastAuditStore writes forecast audit rows to PostgreSQL.
type PGForecastAuditStore struct {
	db *sql.DB
}

func NewPGForecastAuditStore(pg *pkgpg.Client) *PGForecastAuditStore {
	return &PGForecastAuditStore{db: pg.DB()}
}

func (s *PGForecastAuditStore) Append(ctx context.Context, a *models.ForecastAudit) error {
	input, err := json.Marshal(a.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	var (
		output  = sql.NullString{String: string(a.Output), Valid: len(a.Output) > 0}
		horizon = sql.NullInt64{Int64: int64(a.HorizonDays), Valid: a.HorizonDays > 0}
		errText = sql.NullString{String: a.Error, Valid: a.Error != ""}
		conf    sql.NullFloat64
	)
	if a.Confidence != nil {
		conf = sql.NullFloat64{Float64: *a.Confidence, Valid: true}
	}

	const q = `
		INSERT INTO prediction_requests (
			id, request_id, user_id, product_id, model_version, input,
			horizon_days, output, confidence, latency_ms, status, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(ctx, q,
		a.ID, a.RequestID, a.UserID, a.ProductID, a.ModelVersion, string(input),
		horizon, output, conf, a.LatencyMS, string(a.Status), errText, a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert forecast audit %s: %w", a.RequestID, err)
	}
	return nil
}

func (s *PGForecastAuditStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
