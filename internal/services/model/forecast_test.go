package model

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceDrop/internal/domain/models"
)

var catalogFeatures = models.ForecastFeatures{
	ModelName:         "iPhone 13",
	StorageGB:         avg(128),
	MonthsSinceLaunch: avg(30),
	CurrentPriceINR:   avg(52999),
}

func TestForecast_Success(t *testing.T) {
	var calls int32
	srv := newServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "iPhone 13", body["model_name"])
		assert.Equal(t, 128.0, body["storage_gb"])
		assert.Equal(t, 52999.0, body["current_price_inr"])
		assert.Equal(t, 7.0, body["horizon_days"])

		_, _ = w.Write([]byte(`{"predictions":[{"date":"2025-11-29","predicted_price":103.1}],"confidence":0.82,"model_version":"prophet-3"}`))
	})

	p := NewHTTPPredictor("", WithForecastURL(srv.URL))
	got, err := p.Forecast(context.Background(), catalogFeatures, 7)
	require.NoError(t, err)

	assert.Equal(t, "prophet-3", got.ModelVersion)
	require.NotNil(t, got.Confidence)
	assert.Equal(t, 0.82, *got.Confidence)
	assert.JSONEq(t, `{"predictions":[{"date":"2025-11-29","predicted_price":103.1}],"confidence":0.82,"model_version":"prophet-3"}`, string(got.Body))
	assert.EqualValues(t, 1, calls)
}

func TestForecast_DefaultsAndOmittedHorizon(t *testing.T) {
	var calls int32
	srv := newServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, has := body["horizon_days"]
		assert.False(t, has)
		_, _ = w.Write([]byte(`{"predicted_price":51000,"confidence":null}`))
	})

	got, err := NewHTTPPredictor("", WithForecastURL(srv.URL), WithDefaultVersion("v9")).
		Forecast(context.Background(), catalogFeatures, 0)
	require.NoError(t, err)
	assert.Equal(t, "v9", got.ModelVersion)
	assert.Nil(t, got.Confidence)
}

func TestForecast_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   FailureReason
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, ReasonStatus},
		{"not json", http.StatusOK, `<html>`, ReasonMalformed},
		{"array reply", http.StatusOK, `[1,2]`, ReasonMalformed},
		{"null reply", http.StatusOK, `null`, ReasonMalformed},
		{"rejected", http.StatusOK, `{"success":false,"message":"unknown model"}`, ReasonRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := newServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := NewHTTPPredictor("", WithForecastURL(srv.URL)).Forecast(context.Background(), catalogFeatures, 7)
			require.Error(t, err)
			assert.Equal(t, tt.want, ReasonOf(err))
			assert.EqualValues(t, 1, calls)
		})
	}
}

func TestForecast_Timeout(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := newServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	p := NewHTTPPredictor("", WithForecastURL(srv.URL), WithTimeout(50*time.Millisecond))
	_, err := p.Forecast(context.Background(), catalogFeatures, 7)
	require.Error(t, err)
	assert.Equal(t, ReasonTimeout, ReasonOf(err))
	assert.EqualValues(t, 1, calls)
}

func TestForecast_NotConfigured(t *testing.T) {
	_, err := NewHTTPPredictor("http://model/predict/down").Forecast(context.Background(), catalogFeatures, 7)
	assert.Equal(t, ReasonTransport, ReasonOf(err))
}
