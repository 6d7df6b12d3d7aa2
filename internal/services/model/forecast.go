package model

import (
	"context"
	"encoding/json"

	"PriceDrop/internal/domain/models"
	domsvc "PriceDrop/internal/domain/service"
)

type forecastReq struct {
	ModelName         string   `json:"model_name"`
	StorageGB         *float64 `json:"storage_gb"`
	MonthsSinceLaunch *float64 `json:"months_since_launch"`
	CurrentPriceINR   *float64 `json:"current_price_inr"`
	HorizonDays       int      `json:"horizon_days,omitempty"`
}

// Forecast posts catalog features to the forecast endpoint and returns the
// reply object untouched. A reply that is not a JSON object is malformed.
func (p *HTTPPredictor) Forecast(ctx context.Context, in models.ForecastFeatures, horizonDays int) (models.ForecastOutput, error) {
	var out models.ForecastOutput
	if p.forecastURL == "" {
		return out, fail(ReasonTransport, "forecast url not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	body := forecastReq{
		ModelName:         in.ModelName,
		StorageGB:         in.StorageGB,
		MonthsSinceLaunch: in.MonthsSinceLaunch,
		CurrentPriceINR:   in.CurrentPriceINR,
		HorizonDays:       horizonDays,
	}
	var raw json.RawMessage
	if err := p.client.PostJSON(ctx, p.forecastURL, body, &raw); err != nil {
		return out, classify(err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return out, fail(ReasonMalformed, "forecast reply is not a JSON object")
	}
	if string(fields["success"]) == "false" {
		return out, fail(ReasonRejected, "model reported success=false")
	}

	out.Body = raw
	for _, key := range []string{"model_version", "modelVersion"} {
		if json.Unmarshal(fields[key], &out.ModelVersion) == nil && out.ModelVersion != "" {
			break
		}
	}
	if out.ModelVersion == "" {
		out.ModelVersion = p.defaultVersion
	}
	if v, has := fields["confidence"]; has && string(v) != "null" {
		var c float64
		if json.Unmarshal(v, &c) == nil {
			out.Confidence = &c
		}
	}
	return out, nil
}

var _ domsvc.Forecaster = (*HTTPPredictor)(nil)
