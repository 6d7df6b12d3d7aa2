package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"PriceDrop/internal/domain/models"
	domrepo "PriceDrop/internal/domain/repository"
	domsvc "PriceDrop/internal/domain/service"
	"PriceDrop/internal/services/fallback"
	"PriceDrop/internal/services/features"
	"PriceDrop/internal/services/model"
	applogger "PriceDrop/pkg/logger"
	"PriceDrop/pkg/metrics"
)

const maxProductIDLen = 128

// PredictDownInput is one prediction request. A nil Threshold uses the
// configured default.
type PredictDownInput struct {
	ProductID string
	Threshold *float64
}

// OrchestratorConfig holds the tunables of a prediction run.
type OrchestratorConfig struct {
	DefaultThreshold float64
	FreshnessTTL     time.Duration
	LookbackDays     int
}

// DefaultOrchestratorConfig matches the service defaults.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		DefaultThreshold: 0.5,
		FreshnessTTL:     24 * time.Hour,
		LookbackDays:     features.LookbackDays,
	}
}

// OrchestratorOption configures PredictionOrchestrator.
type OrchestratorOption func(*PredictionOrchestrator)

// WithClock overrides the evaluation clock.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *PredictionOrchestrator) { o.now = now }
}

// WithIDGenerator overrides prediction id generation.
func WithIDGenerator(gen func() string) OrchestratorOption {
	return func(o *PredictionOrchestrator) { o.newID = gen }
}

// WithPublisher announces persisted predictions.
func WithPublisher(p domrepo.PredictionPublisher) OrchestratorOption {
	return func(o *PredictionOrchestrator) { o.publisher = p }
}

func WithMetrics(m domrepo.Metrics) OrchestratorOption {
	return func(o *PredictionOrchestrator) { o.metrics = m }
}

func WithLogger(l *applogger.Logger) OrchestratorOption {
	return func(o *PredictionOrchestrator) { o.l = l }
}

// PredictionOrchestrator runs cache check, feature computation, model call
// with heuristic fallback, and persistence for one product.
//
// Lookups are not serialized: two concurrent misses for the same product may
// both compute and append a row. Readers take the most recent one.
type PredictionOrchestrator struct {
	history     domrepo.HistoryStore
	predictions domrepo.PredictionStore
	predictor   domsvc.DropPredictor
	publisher   domrepo.PredictionPublisher
	metrics     domrepo.Metrics
	l           *applogger.Logger
	cfg         OrchestratorConfig
	now         func() time.Time
	newID       func() string
}

func NewPredictionOrchestrator(
	history domrepo.HistoryStore,
	predictions domrepo.PredictionStore,
	predictor domsvc.DropPredictor,
	cfg OrchestratorConfig,
	opts ...OrchestratorOption,
) *PredictionOrchestrator {
	o := &PredictionOrchestrator{
		history:     history,
		predictions: predictions,
		predictor:   predictor,
		metrics:     metrics.Nop{},
		l:           applogger.Nop(),
		cfg:         cfg,
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg.FreshnessTTL <= 0 {
		o.cfg.FreshnessTTL = 24 * time.Hour
	}
	if o.cfg.LookbackDays <= 0 {
		o.cfg.LookbackDays = features.LookbackDays
	}
	return o
}

// PredictDown returns the drop probability for a product. It fails only with
// ErrInvalidInput, ErrInsufficientHistory, or a history store error; model
// and persistence failures are absorbed.
func (o *PredictionOrchestrator) PredictDown(ctx context.Context, in PredictDownInput) (*models.PredictionResult, error) {
	start := time.Now()
	defer func() { o.metrics.RecordLatency("predict_down", time.Since(start).Seconds()) }()

	productID, threshold, err := o.validate(in)
	if err != nil {
		return nil, err
	}
	now := o.now()

	if res := o.fromCache(ctx, productID, now); res != nil {
		return res, nil
	}

	from := features.Cutoff(now, o.cfg.LookbackDays)
	history, err := o.history.Range(ctx, productID, from, now)
	if err != nil {
		o.metrics.RecordError("history")
		return nil, fmt.Errorf("load price history: %w", err)
	}
	fv, ok := features.ExtractWindow(history, now, o.cfg.LookbackDays)
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, models.ErrInsufficientHistory)
	}

	res := o.score(ctx, productID, fv, threshold)
	res.CreatedAt = now

	pred := &models.Prediction{
		ID:             o.newID(),
		ProductID:      productID,
		Probability:    res.Probability,
		WillGoDown:     res.WillGoDown,
		Threshold:      threshold,
		ModelVersion:   res.ModelVersion,
		Features:       fv,
		FallbackReason: res.fallbackReason,
		CreatedAt:      now,
	}
	res.Persisted = o.persist(ctx, pred)

	o.metrics.RecordPrediction(res.Source)
	o.metrics.RecordProbability(res.Source, res.Probability)
	o.l.Info("prediction computed",
		applogger.String("product_id", productID),
		applogger.String("source", string(res.Source)),
		applogger.Float64("probability", res.Probability),
		applogger.Bool("will_go_down", res.WillGoDown),
		applogger.String("model_version", res.ModelVersion),
		applogger.Bool("persisted", res.Persisted),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return &res.PredictionResult, nil
}

// LatestPrediction returns the current persisted prediction regardless of age.
func (o *PredictionOrchestrator) LatestPrediction(ctx context.Context, productID string) (*models.Prediction, error) {
	productID, err := validateProductID(productID)
	if err != nil {
		return nil, err
	}
	p, err := o.predictions.MostRecent(ctx, productID)
	if err != nil {
		o.metrics.RecordError("prediction_lookup")
		return nil, fmt.Errorf("load latest prediction: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("prediction for %s: %w", productID, models.ErrNotFound)
	}
	return p, nil
}

func (o *PredictionOrchestrator) validate(in PredictDownInput) (string, float64, error) {
	productID, err := validateProductID(in.ProductID)
	if err != nil {
		return "", 0, err
	}
	threshold := o.cfg.DefaultThreshold
	if in.Threshold != nil {
		threshold = *in.Threshold
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return "", 0, fmt.Errorf("threshold must be within [0,1]: %w", models.ErrInvalidInput)
	}
	return productID, threshold, nil
}

func validateProductID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("product id is required: %w", models.ErrInvalidInput)
	}
	if len(id) > maxProductIDLen {
		return "", fmt.Errorf("product id longer than %d bytes: %w", maxProductIDLen, models.ErrInvalidInput)
	}
	return id, nil
}

// fromCache returns the stored prediction when it is younger than the
// freshness TTL. Lookup errors count as a miss.
func (o *PredictionOrchestrator) fromCache(ctx context.Context, productID string, now time.Time) *models.PredictionResult {
	latest, err := o.predictions.MostRecent(ctx, productID)
	if err != nil {
		o.metrics.RecordError("prediction_lookup")
		o.l.Warn("latest prediction lookup failed, recomputing",
			applogger.String("product_id", productID),
			applogger.Error(err),
		)
		return nil
	}
	if latest == nil || now.Sub(latest.CreatedAt) >= o.cfg.FreshnessTTL {
		return nil
	}

	o.metrics.RecordPrediction(models.SourceCache)
	o.l.Debug("prediction served from cache",
		applogger.String("product_id", productID),
		applogger.Time("created_at", latest.CreatedAt),
	)
	return &models.PredictionResult{
		ProductID:    latest.ProductID,
		Probability:  latest.Probability,
		WillGoDown:   latest.WillGoDown,
		Threshold:    latest.Threshold,
		ModelVersion: latest.ModelVersion,
		Features:     latest.Features,
		Source:       models.SourceCache,
		CreatedAt:    latest.CreatedAt,
		Persisted:    true,
	}
}

type scored struct {
	models.PredictionResult
	fallbackReason string
}

func (o *PredictionOrchestrator) score(ctx context.Context, productID string, fv models.FeatureVector, threshold float64) scored {
	callStart := time.Now()
	mp, err := o.predictor.Predict(ctx, fv, threshold)
	o.metrics.RecordLatency("model_call", time.Since(callStart).Seconds())
	if err == nil && !validProbability(mp.Probability) {
		err = &model.Error{Reason: model.ReasonInvalid, Err: fmt.Errorf("probability %v out of range", mp.Probability)}
	}
	if err == nil {
		willGoDown := mp.Probability >= threshold
		if mp.WillGoDown != willGoDown {
			o.l.Warn("model flag disagrees with threshold, using threshold",
				applogger.String("product_id", productID),
				applogger.Float64("probability", mp.Probability),
				applogger.Float64("threshold", threshold),
				applogger.Bool("model_will_go_down", mp.WillGoDown),
			)
		}
		return scored{PredictionResult: models.PredictionResult{
			ProductID:    productID,
			Probability:  mp.Probability,
			WillGoDown:   willGoDown,
			Threshold:    threshold,
			ModelVersion: mp.ModelVersion,
			Features:     fv,
			TopFeatures:  mp.TopFeatures,
			Source:       models.SourceModel,
		}}
	}

	reason := model.ReasonOf(err)
	o.metrics.RecordFallback(string(reason))
	o.l.Warn("model unavailable, using heuristic",
		applogger.String("product_id", productID),
		applogger.String("reason", string(reason)),
		applogger.Error(err),
	)
	est := fallback.EstimateDrop(fv.CurrentPrice, fv.Avg30, threshold)
	return scored{
		PredictionResult: models.PredictionResult{
			ProductID:    productID,
			Probability:  est.Probability,
			WillGoDown:   est.WillGoDown,
			Threshold:    threshold,
			ModelVersion: fallback.ModelVersion,
			Features:     fv,
			TopFeatures:  append([]string(nil), fallback.TopFeatures...),
			Source:       models.SourceHeuristic,
		},
		fallbackReason: string(reason),
	}
}

// persist appends the prediction and announces it. It reports whether the
// row was written.
func (o *PredictionOrchestrator) persist(ctx context.Context, p *models.Prediction) bool {
	if err := o.predictions.Append(ctx, p); err != nil {
		o.metrics.RecordError("persist")
		o.l.Warn("prediction not persisted",
			applogger.String("product_id", p.ProductID),
			applogger.String("prediction_id", p.ID),
			applogger.Error(err),
		)
		return false
	}
	if o.publisher != nil {
		if err := o.publisher.PublishPrediction(ctx, p); err != nil {
			o.metrics.RecordError("publish")
			o.l.Warn("prediction event not published",
				applogger.String("product_id", p.ProductID),
				applogger.String("prediction_id", p.ID),
				applogger.Error(err),
			)
		}
	}
	return true
}

func validProbability(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}
