package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"PriceDrop/internal/domain/models"
	domrepo "PriceDrop/internal/domain/repository"
	domsvc "PriceDrop/internal/domain/service"
	"PriceDrop/internal/services/model"
	applogger "PriceDrop/pkg/logger"
	"PriceDrop/pkg/metrics"
)

// ForecastError is returned when the forecast model gave no usable reply.
// Status is ForecastTimeout or ForecastFailed.
type ForecastError struct {
	RequestID string
	LatencyMS int64
	Status    models.ForecastStatus
	Err       error
}

func (e *ForecastError) Error() string {
	return fmt.Sprintf("forecast %s (%s): %v", e.RequestID, e.Status, e.Err)
}

func (e *ForecastError) Unwrap() error { return e.Err }

// ForecastOption configures ForecastOrchestrator.
type ForecastOption func(*ForecastOrchestrator)

func WithForecastClock(now func() time.Time) ForecastOption {
	return func(o *ForecastOrchestrator) { o.now = now }
}

func WithForecastIDGenerator(gen func() string) ForecastOption {
	return func(o *ForecastOrchestrator) { o.newID = gen }
}

func WithForecastMetrics(m domrepo.Metrics) ForecastOption {
	return func(o *ForecastOrchestrator) { o.metrics = m }
}

func WithForecastLogger(l *applogger.Logger) ForecastOption {
	return func(o *ForecastOrchestrator) { o.l = l }
}

// WithForecastVersion sets the model version recorded when the call fails.
func WithForecastVersion(v string) ForecastOption {
	return func(o *ForecastOrchestrator) {
		if v != "" {
			o.version = v
		}
	}
}

// ForecastOrchestrator forwards catalog features to the forecast model and
// records one audit row per request that reached the model.
type ForecastOrchestrator struct {
	forecaster domsvc.Forecaster
	audits     domrepo.ForecastAuditStore
	metrics    domrepo.Metrics
	l          *applogger.Logger
	version    string
	now        func() time.Time
	newID      func() string
}

func NewForecastOrchestrator(forecaster domsvc.Forecaster, audits domrepo.ForecastAuditStore, opts ...ForecastOption) *ForecastOrchestrator {
	o := &ForecastOrchestrator{
		forecaster: forecaster,
		audits:     audits,
		metrics:    metrics.Nop{},
		l:          applogger.Nop(),
		version:    "v1.0",
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Forecast runs one forecast request. It fails with ErrInvalidInput before
// the model is called, or with *ForecastError after a failed model call.
func (o *ForecastOrchestrator) Forecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResult, error) {
	if err := validateForecast(&req); err != nil {
		return nil, err
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = o.newID()
	}

	start := o.now()
	out, err := o.forecaster.Forecast(ctx, *req.Features, req.HorizonDays)
	done := o.now()
	latency := done.Sub(start)
	o.metrics.RecordLatency("forecast", latency.Seconds())

	audit := &models.ForecastAudit{
		ID:           o.newID(),
		RequestID:    requestID,
		UserID:       req.UserID,
		ProductID:    req.ProductID,
		ModelVersion: o.version,
		Input:        *req.Features,
		HorizonDays:  req.HorizonDays,
		LatencyMS:    latency.Milliseconds(),
		Status:       models.ForecastSuccess,
		CreatedAt:    start.UTC(),
	}

	if err != nil {
		audit.Status = models.ForecastFailed
		if model.ReasonOf(err) == model.ReasonTimeout {
			audit.Status = models.ForecastTimeout
		}
		audit.Error = err.Error()
		o.metrics.RecordError("forecast_" + string(audit.Status))
		o.l.Warn("forecast model call failed",
			applogger.String("request_id", requestID),
			applogger.String("product_id", req.ProductID),
			applogger.String("status", string(audit.Status)),
			applogger.Int64("latency_ms", audit.LatencyMS),
			applogger.Error(err),
		)
		o.record(ctx, audit)
		return nil, &ForecastError{RequestID: requestID, LatencyMS: audit.LatencyMS, Status: audit.Status, Err: err}
	}

	audit.ModelVersion = out.ModelVersion
	audit.Output = out.Body
	audit.Confidence = out.Confidence
	o.record(ctx, audit)

	o.l.Info("forecast served",
		applogger.String("request_id", requestID),
		applogger.String("product_id", req.ProductID),
		applogger.String("user_id", req.UserID),
		applogger.String("model_version", out.ModelVersion),
		applogger.Int64("latency_ms", audit.LatencyMS),
	)
	return &models.ForecastResult{
		RequestID:    requestID,
		ProductID:    req.ProductID,
		UserID:       req.UserID,
		ModelVersion: out.ModelVersion,
		HorizonDays:  req.HorizonDays,
		LatencyMS:    audit.LatencyMS,
		PredictedAt:  done.UTC(),
		Prediction:   out.Body,
	}, nil
}

// record writes the audit row. A failed write is logged and never changes
// the response.
func (o *ForecastOrchestrator) record(ctx context.Context, a *models.ForecastAudit) {
	if err := o.audits.Append(ctx, a); err != nil {
		o.metrics.RecordError("forecast_audit")
		o.l.Warn("forecast audit not written",
			applogger.String("request_id", a.RequestID),
			applogger.Error(err),
		)
	}
}

func validateForecast(req *models.ForecastRequest) error {
	id, err := validateProductID(req.ProductID)
	if err != nil {
		return err
	}
	req.ProductID = id
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return fmt.Errorf("user id is required: %w", models.ErrInvalidInput)
	}
	f := req.Features
	if f == nil || strings.TrimSpace(f.ModelName) == "" || f.StorageGB == nil || f.MonthsSinceLaunch == nil || f.CurrentPriceINR == nil {
		return fmt.Errorf("features are incomplete: %w", models.ErrInvalidInput)
	}
	if req.HorizonDays < 0 || req.HorizonDays > 365 {
		return fmt.Errorf("horizon_days must be within [1,365]: %w", models.ErrInvalidInput)
	}
	return nil
}
