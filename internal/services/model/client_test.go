package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceDrop/internal/domain/models"
	xhttp "PriceDrop/pkg/http"
)

func avg(v float64) *float64 { return &v }

var sampleFeatures = models.FeatureVector{CurrentPrice: 1000, Avg30: avg(950), DayOfWeek: 3, Month: 6}

func newServer(t *testing.T, calls *int32, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPredict_Success(t *testing.T) {
	var calls int32
	srv := newServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]json.RawMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.JSONEq(t, `0.6`, string(body["threshold"]))

		var fv map[string]interface{}
		assert.NoError(t, json.Unmarshal(body["features"], &fv))
		assert.Equal(t, 1000.0, fv["current_price"])
		assert.Nil(t, fv["vol30"])

		_, _ = w.Write([]byte(`{"success":true,"probability":0.73,"will_go_down":true,"modelVersion":"gbm-2024-05","top_features":["avg30","slope30"]}`))
	})

	p := NewHTTPPredictor(srv.URL)
	got, err := p.Predict(context.Background(), sampleFeatures, 0.6)
	require.NoError(t, err)

	assert.Equal(t, 0.73, got.Probability)
	assert.True(t, got.WillGoDown)
	assert.Equal(t, "gbm-2024-05", got.ModelVersion)
	assert.Equal(t, []string{"avg30", "slope30"}, got.TopFeatures)
	assert.EqualValues(t, 1, calls)
}

func TestPredict_SuccessFlagAbsent(t *testing.T) {
	var calls int32
	srv := newServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"probability":0.2,"will_go_down":false}`))
	})

	p := NewHTTPPredictor(srv.URL, WithDefaultVersion("v9"))
	got, err := p.Predict(context.Background(), sampleFeatures, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.2, got.Probability)
	assert.Equal(t, "v9", got.ModelVersion)
}

func TestPredict_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		reason FailureReason
	}{
		{"explicit failure", 200, `{"success":false,"probability":0.9,"will_go_down":true}`, ReasonRejected},
		{"missing probability", 200, `{"will_go_down":true}`, ReasonMalformed},
		{"missing flag", 200, `{"probability":0.4}`, ReasonMalformed},
		{"not json", 200, `<html>oops</html>`, ReasonMalformed},
		{"empty body", 200, ``, ReasonMalformed},
		{"probability above one", 200, `{"probability":1.7,"will_go_down":true}`, ReasonInvalid},
		{"negative probability", 200, `{"probability":-0.1,"will_go_down":false}`, ReasonInvalid},
		{"server error", 500, `{"error":"models not loaded"}`, ReasonStatus},
		{"bad request", 400, `{"error":"missing fields"}`, ReasonStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := newServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := NewHTTPPredictor(srv.URL).Predict(context.Background(), sampleFeatures, 0.5)
			require.Error(t, err)
			assert.Equal(t, tt.reason, ReasonOf(err))
			assert.EqualValues(t, 1, calls, "exactly one attempt")
		})
	}
}

func TestPredict_Timeout(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := newServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	p := NewHTTPPredictor(srv.URL, WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := p.Predict(context.Background(), sampleFeatures, 0.5)
	require.Error(t, err)
	assert.Equal(t, ReasonTimeout, ReasonOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.EqualValues(t, 1, calls)
}

func TestPredict_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPPredictor(url).Predict(context.Background(), sampleFeatures, 0.5)
	require.Error(t, err)
	assert.Equal(t, ReasonTransport, ReasonOf(err))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestPredict_CustomClient(t *testing.T) {
	var seen string
	client := xhttp.NewClient(xhttp.WithTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r.URL.String()
		return nil, assert.AnError
	})))

	_, err := NewHTTPPredictor("http://model.internal/predict", WithHTTPClient(client)).
		Predict(context.Background(), sampleFeatures, 0.5)
	require.Error(t, err)
	assert.Equal(t, ReasonTransport, ReasonOf(err))
	assert.Equal(t, "http://model.internal/predict", seen)
}

func TestPredict_NotConfigured(t *testing.T) {
	_, err := NewHTTPPredictor("").Predict(context.Background(), sampleFeatures, 0.5)
	require.Error(t, err)
	assert.Equal(t, ReasonTransport, ReasonOf(err))
}

func TestReasonOf_ForeignErrors(t *testing.T) {
	assert.Equal(t, ReasonTimeout, ReasonOf(context.DeadlineExceeded))
	assert.Equal(t, ReasonTransport, ReasonOf(assert.AnError))
}
