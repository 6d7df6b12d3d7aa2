package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"PriceDrop/internal/domain/models"
	domrepo "PriceDrop/internal/domain/repository"
	pkgpg "PriceDrop/pkg/postgres"
)

var _ domrepo.PredictionStore = (*PGPredictionStore)(nil)

// PGPredictionSchema is the DDL for the append-only predictions table.
var PGPredictionSchema = []string{
	`CREATE TABLE IF NOT EXISTS predictions (
		id              UUID PRIMARY KEY,
		product_id      TEXT NOT NULL,
		probability     DOUBLE PRECISION NOT NULL,
		will_go_down    BOOLEAN NOT NULL,
		threshold       DOUBLE PRECISION NOT NULL,
		model_version   TEXT NOT NULL,
		features        JSONB NOT NULL,
		fallback_reason TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS predictions_product_created_idx
		ON predictions (product_id, created_at DESC)`,
}

// PGPredictionStore implements PredictionStore on PostgreSQL.
type PGPredictionStore struct {
	db *sql.DB
}

func NewPGPredictionStore(pg *pkgpg.Client) *PGPredictionStore {
	return &PGPredictionStore{db: pg.DB()}
}

// Append inserts a new row. Rows are never updated.
func (s *PGPredictionStore) Append(ctx context.Context, p *models.Prediction) error {
	features, err := json.Marshal(p.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	reason := sql.NullString{String: p.FallbackReason, Valid: p.FallbackReason != ""}

	const q = `
		INSERT INTO predictions (
			id, product_id, probability, will_go_down, threshold,
			model_version, features, fallback_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.ExecContext(ctx, q,
		p.ID, p.ProductID, p.Probability, p.WillGoDown, p.Threshold,
		p.ModelVersion, string(features), reason, p.CreatedAt.UTC(),
	)
	if err != nil {
		if pkgpg.IsUniqueViolation(err) {
			return fmt.Errorf("insert prediction %s: duplicate id: %w", p.ID, err)
		}
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// MostRecent returns the newest row for productID, or nil when there is none.
func (s *PGPredictionStore) MostRecent(ctx context.Context, productID string) (*models.Prediction, error) {
	const q = `
		SELECT id, product_id, probability, will_go_down, threshold,
		       model_version, features, fallback_reason, created_at
		FROM predictions
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var (
		p         models.Prediction
		features  []byte
		reason    sql.NullString
		createdAt time.Time
	)
	err := s.db.QueryRowContext(ctx, q, productID).Scan(
		&p.ID, &p.ProductID, &p.Probability, &p.WillGoDown, &p.Threshold,
		&p.ModelVersion, &features, &reason, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select latest prediction: %w", err)
	}
	if err := json.Unmarshal(features, &p.Features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	p.FallbackReason = reason.String
	p.CreatedAt = createdAt.UTC()
	return &p, nil
}

func (s *PGPredictionStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
