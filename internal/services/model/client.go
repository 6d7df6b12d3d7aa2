package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"PriceDrop/internal/domain/models"
	domsvc "PriceDrop/internal/domain/service"
	xhttp "PriceDrop/pkg/http"
)

const (
	defaultTimeout = 3 * time.Second
	defaultVersion = "v1.0"
	userAgent      = "pricedrop-predictor"
)

// Option configures HTTPPredictor.
type Option func(*HTTPPredictor)

// WithTimeout bounds the single model call.
func WithTimeout(d time.Duration) Option {
	return func(p *HTTPPredictor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithDefaultVersion sets the version reported when the model omits one.
func WithDefaultVersion(v string) Option {
	return func(p *HTTPPredictor) {
		if v != "" {
			p.defaultVersion = v
		}
	}
}

// WithForecastURL sets the endpoint used by Forecast.
func WithForecastURL(url string) Option {
	return func(p *HTTPPredictor) { p.forecastURL = url }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *xhttp.Client) Option {
	return func(p *HTTPPredictor) { p.client = c }
}

// HTTPPredictor posts feature vectors to the external prediction service.
// Each Predict or Forecast call makes exactly one request; there is no retry.
type HTTPPredictor struct {
	url            string
	forecastURL    string
	timeout        time.Duration
	defaultVersion string
	client         *xhttp.Client
}

func NewHTTPPredictor(url string, opts ...Option) *HTTPPredictor {
	p := &HTTPPredictor{
		url:            url,
		timeout:        defaultTimeout,
		defaultVersion: defaultVersion,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = xhttp.NewClient(xhttp.WithTimeout(p.timeout), xhttp.WithHeader("User-Agent", userAgent))
	}
	return p
}

type predictReq struct {
	Features  models.FeatureVector `json:"features"`
	Threshold float64              `json:"threshold"`
}

type predictResp struct {
	Success      *bool    `json:"success"`
	Probability  *float64 `json:"probability"`
	WillGoDown   *bool    `json:"will_go_down"`
	ModelVersion string   `json:"modelVersion"`
	TopFeatures  []string `json:"top_features"`
}

func (p *HTTPPredictor) Predict(ctx context.Context, features models.FeatureVector, threshold float64) (models.ModelPrediction, error) {
	var result models.ModelPrediction
	if p.url == "" {
		return result, fail(ReasonTransport, "model url not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var pr predictResp
	if err := p.client.PostJSON(ctx, p.url, predictReq{Features: features, Threshold: threshold}, &pr); err != nil {
		return result, classify(err)
	}

	if pr.Success != nil && !*pr.Success {
		return result, fail(ReasonRejected, "model reported success=false")
	}
	if pr.Probability == nil || pr.WillGoDown == nil {
		return result, fail(ReasonMalformed, "response missing probability or will_go_down")
	}
	prob := *pr.Probability
	if math.IsNaN(prob) || prob < 0 || prob > 1 {
		return result, fail(ReasonInvalid, "probability %v outside [0,1]", prob)
	}

	result.Probability = prob
	result.WillGoDown = *pr.WillGoDown
	result.ModelVersion = pr.ModelVersion
	if result.ModelVersion == "" {
		result.ModelVersion = p.defaultVersion
	}
	result.TopFeatures = pr.TopFeatures
	return result, nil
}

func classify(err error) *Error {
	var se *xhttp.StatusError
	switch {
	case isTimeout(err):
		return &Error{Reason: ReasonTimeout, Err: err}
	case errors.As(err, &se):
		return &Error{Reason: ReasonStatus, Err: err}
	case isDecodeError(err):
		return &Error{Reason: ReasonMalformed, Err: err}
	default:
		return &Error{Reason: ReasonTransport, Err: fmt.Errorf("post predict: %w", err)}
	}
}

var _ domsvc.DropPredictor = (*HTTPPredictor)(nil)
