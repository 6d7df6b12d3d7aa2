package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceDrop/internal/domain/models"
	"PriceDrop/internal/repository/memory"
	"PriceDrop/internal/services/model"
	"PriceDrop/internal/usecase"
)

type scriptedForecaster struct {
	out models.ForecastOutput
	err error
}

func (f scriptedForecaster) Forecast(context.Context, models.ForecastFeatures, int) (models.ForecastOutput, error) {
	return f.out, f.err
}

const validForecastBody = `{
	"request_id": "req-42",
	"user_id": "user-123",
	"product_id": "product-123",
	"features": {"model_name": "iPhone 13", "storage_gb": 128, "months_since_launch": 30, "current_price_inr": 52999},
	"horizon_days": 7
}`

func newForecastServer(t *testing.T, f scriptedForecaster) (*echo.Echo, *memory.ForecastAuditStore) {
	t.Helper()
	audits := memory.NewForecastAuditStore()
	o := usecase.NewForecastOrchestrator(f, audits, usecase.WithForecastClock(func() time.Time { return now }))

	h := NewPredictionsEchoHandler(nil, failingService{})
	h.UseForecastService(o)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, audits
}

func post(t *testing.T, e *echo.Echo, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestForecast_OK(t *testing.T) {
	e, audits := newForecastServer(t, scriptedForecaster{out: models.ForecastOutput{
		Body:         []byte(`{"predictions":[{"date":"2025-11-29","predicted_price":103.1}]}`),
		ModelVersion: "v1.0",
	}})

	rec, env := post(t, e, validForecastBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		RequestID    string `json:"request_id"`
		ModelVersion string `json:"model_version"`
		HorizonDays  int    `json:"horizon_days"`
		PredictedAt  string `json:"predicted_at"`
		LatencyMS    *int64 `json:"latency_ms"`
		Prediction   struct {
			Predictions []json.RawMessage `json:"predictions"`
		} `json:"prediction"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "req-42", res.RequestID)
	assert.Equal(t, "v1.0", res.ModelVersion)
	assert.Equal(t, 7, res.HorizonDays)
	assert.NotEmpty(t, res.PredictedAt)
	assert.NotNil(t, res.LatencyMS)
	assert.NotEmpty(t, res.Prediction.Predictions)

	rows := audits.ByRequestID("req-42")
	require.Len(t, rows, 1)
	assert.Equal(t, models.ForecastSuccess, rows[0].Status)
}

func TestForecast_InvalidInput(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{"missing product", `{"user_id":"u","features":{"model_name":"x","storage_gb":1,"months_since_launch":1,"current_price_inr":1}}`, []string{"product_id"}},
		{"missing user", `{"product_id":"p","features":{"model_name":"x","storage_gb":1,"months_since_launch":1,"current_price_inr":1}}`, []string{"user_id"}},
		{"missing features", `{"product_id":"p","user_id":"u"}`, []string{"features"}},
		{"incomplete features", `{"product_id":"p","user_id":"u","features":{"storage_gb":1}}`,
			[]string{"features.model_name", "features.months_since_launch", "features.current_price_inr"}},
		{"horizon too long", `{"product_id":"p","user_id":"u","horizon_days":500,"features":{"model_name":"x","storage_gb":1,"months_since_launch":1,"current_price_inr":1}}`, []string{"horizon_days"}},
		{"features not an object", `{"product_id":"p","user_id":"u","features":"not-an-object"}`, []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, audits := newForecastServer(t, scriptedForecaster{err: errors.New("must not be called")})

			rec, env := post(t, e, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, http.StatusBadRequest, env.Status)

			var items []errorItem
			require.NoError(t, json.Unmarshal(env.Data, &items))
			var fields []string
			for _, it := range items {
				fields = append(fields, it.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
			assert.Zero(t, audits.Len())
		})
	}
}

type modelErrorItem struct {
	Code   string                 `json:"code"`
	Params map[string]interface{} `json:"params"`
}

func TestForecast_ModelTimeoutIs504(t *testing.T) {
	e, audits := newForecastServer(t, scriptedForecaster{
		err: &model.Error{Reason: model.ReasonTimeout, Err: context.DeadlineExceeded},
	})

	rec, env := post(t, e, validForecastBody)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	var items []modelErrorItem
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "ERR_MODEL_TIMEOUT", items[0].Code)
	assert.Equal(t, "req-42", items[0].Params["request_id"])
	assert.Contains(t, items[0].Params, "latency_ms")
	assert.Contains(t, rec.Body.String(), "timeout")

	rows := audits.ByRequestID("req-42")
	require.Len(t, rows, 1)
	assert.Equal(t, models.ForecastTimeout, rows[0].Status)
}

func TestForecast_ModelErrorIs502(t *testing.T) {
	e, audits := newForecastServer(t, scriptedForecaster{err: errors.New("Model service unavailable")})

	rec, env := post(t, e, validForecastBody)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Model service unavailable")

	var items []modelErrorItem
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "ERR_MODEL_UNAVAILABLE", items[0].Code)
	assert.Equal(t, "req-42", items[0].Params["request_id"])

	rows := audits.ByRequestID("req-42")
	require.Len(t, rows, 1)
	assert.Equal(t, models.ForecastFailed, rows[0].Status)
}

func TestForecast_RouteAbsentWithoutService(t *testing.T) {
	e, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(validForecastBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
