package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceDrop/internal/domain/models"
	"PriceDrop/internal/repository/memory"
	"PriceDrop/internal/services/model"
)

// stubForecaster advances clock by took on every call.
type stubForecaster struct {
	calls   int
	horizon int
	out     models.ForecastOutput
	err     error
	took    time.Duration
	clock   *time.Time
}

func (s *stubForecaster) Forecast(_ context.Context, _ models.ForecastFeatures, horizonDays int) (models.ForecastOutput, error) {
	s.calls++
	s.horizon = horizonDays
	*s.clock = s.clock.Add(s.took)
	return s.out, s.err
}

func fnum(v float64) *float64 { return &v }

func forecastRequest() models.ForecastRequest {
	return models.ForecastRequest{
		RequestID: "req-1",
		ProductID: "iphone-13",
		UserID:    "user-123",
		Features: &models.ForecastFeatures{
			ModelName:         "iPhone 13",
			StorageGB:         fnum(128),
			MonthsSinceLaunch: fnum(30),
			CurrentPriceINR:   fnum(52999),
		},
		HorizonDays: 7,
	}
}

type forecastFixture struct {
	clock      time.Time
	forecaster *stubForecaster
	audits     *memory.ForecastAuditStore
	o          *ForecastOrchestrator
}

func newForecastFixture(t *testing.T) *forecastFixture {
	t.Helper()
	f := &forecastFixture{clock: evalAt, audits: memory.NewForecastAuditStore()}
	f.forecaster = &stubForecaster{clock: &f.clock, took: 120 * time.Millisecond}
	ids := 0
	f.o = NewForecastOrchestrator(f.forecaster, f.audits,
		WithForecastClock(func() time.Time { return f.clock }),
		WithForecastIDGenerator(func() string {
			ids++
			return "gen-" + string(rune('0'+ids))
		}),
	)
	return f
}

func TestForecast_Success(t *testing.T) {
	f := newForecastFixture(t)
	f.forecaster.out = models.ForecastOutput{
		Body:         []byte(`{"predictions":[{"date":"2025-06-16","predicted_price":51900}]}`),
		ModelVersion: "prophet-3",
		Confidence:   fnum(0.8),
	}

	res, err := f.o.Forecast(context.Background(), forecastRequest())
	require.NoError(t, err)

	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, "iphone-13", res.ProductID)
	assert.Equal(t, "user-123", res.UserID)
	assert.Equal(t, "prophet-3", res.ModelVersion)
	assert.Equal(t, 7, res.HorizonDays)
	assert.EqualValues(t, 120, res.LatencyMS)
	assert.True(t, evalAt.Add(120*time.Millisecond).Equal(res.PredictedAt))
	assert.JSONEq(t, `{"predictions":[{"date":"2025-06-16","predicted_price":51900}]}`, string(res.Prediction))
	assert.Equal(t, 7, f.forecaster.horizon)

	rows := f.audits.ByRequestID("req-1")
	require.Len(t, rows, 1)
	assert.Equal(t, models.ForecastSuccess, rows[0].Status)
	assert.Equal(t, "prophet-3", rows[0].ModelVersion)
	assert.Equal(t, 0.8, *rows[0].Confidence)
	assert.EqualValues(t, 120, rows[0].LatencyMS)
	assert.Empty(t, rows[0].Error)
	assert.Equal(t, "iPhone 13", rows[0].Input.ModelName)
	assert.True(t, evalAt.Equal(rows[0].CreatedAt))
}

func TestForecast_GeneratesRequestID(t *testing.T) {
	f := newForecastFixture(t)
	req := forecastRequest()
	req.RequestID = ""

	res, err := f.o.Forecast(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "gen-1", res.RequestID)
	assert.Len(t, f.audits.ByRequestID("gen-1"), 1)
}

func TestForecast_ModelFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.ForecastStatus
	}{
		{"timeout", &model.Error{Reason: model.ReasonTimeout, Err: context.DeadlineExceeded}, models.ForecastTimeout},
		{"bare deadline", context.DeadlineExceeded, models.ForecastTimeout},
		{"status", &model.Error{Reason: model.ReasonStatus, Err: errors.New("http 503")}, models.ForecastFailed},
		{"transport", errors.New("Model service unavailable"), models.ForecastFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newForecastFixture(t)
			f.forecaster.err = tt.err
			f.forecaster.took = 3 * time.Second

			res, err := f.o.Forecast(context.Background(), forecastRequest())
			assert.Nil(t, res)

			var fe *ForecastError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "req-1", fe.RequestID)
			assert.Equal(t, tt.want, fe.Status)
			assert.EqualValues(t, 3000, fe.LatencyMS)
			assert.ErrorIs(t, err, tt.err)

			rows := f.audits.ByRequestID("req-1")
			require.Len(t, rows, 1)
			assert.Equal(t, tt.want, rows[0].Status)
			assert.Equal(t, "v1.0", rows[0].ModelVersion)
			assert.NotEmpty(t, rows[0].Error)
			assert.Nil(t, rows[0].Output)
		})
	}
}

func TestForecast_InvalidInputSkipsModel(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.ForecastRequest)
	}{
		{"no product", func(r *models.ForecastRequest) { r.ProductID = "  " }},
		{"no user", func(r *models.ForecastRequest) { r.UserID = "" }},
		{"no features", func(r *models.ForecastRequest) { r.Features = nil }},
		{"no price", func(r *models.ForecastRequest) { r.Features.CurrentPriceINR = nil }},
		{"horizon too long", func(r *models.ForecastRequest) { r.HorizonDays = 500 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newForecastFixture(t)
			req := forecastRequest()
			tt.mutate(&req)

			_, err := f.o.Forecast(context.Background(), req)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
			assert.Zero(t, f.forecaster.calls)
			assert.Zero(t, f.audits.Len())
		})
	}
}

func TestForecast_AuditFailureKeepsResponse(t *testing.T) {
	f := newForecastFixture(t)
	f.audits.Err = errors.New("pg down")
	f.forecaster.out = models.ForecastOutput{Body: []byte(`{}`), ModelVersion: "v1.0"}

	res, err := f.o.Forecast(context.Background(), forecastRequest())
	require.NoError(t, err)
	assert.Equal(t, "req-1", res.RequestID)

	f.forecaster.err = errors.New("refused")
	_, err = f.o.Forecast(context.Background(), forecastRequest())
	var fe *ForecastError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, models.ForecastFailed, fe.Status)
}
