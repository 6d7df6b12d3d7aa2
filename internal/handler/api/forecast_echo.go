package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"PriceDrop/internal/domain/models"
	"PriceDrop/internal/usecase"
	xhttp "PriceDrop/pkg/http"
	xlogger "PriceDrop/pkg/logger"
)

const (
	codeModelTimeout     = "ERR_MODEL_TIMEOUT"
	codeModelUnavailable = "ERR_MODEL_UNAVAILABLE"
)

// ForecastService is the forecast use case surface.
type ForecastService interface {
	Forecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResult, error)
}

// UseForecastService enables POST /api/v1/predict.
func (h *PredictionsEchoHandler) UseForecastService(svc ForecastService) {
	h.forecast = svc
}

func (h *PredictionsEchoHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.forecast.Forecast(c.Request().Context(), *req)
	if err != nil {
		return h.forecastError(c, err, req.ProductID)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsEchoHandler) forecastError(c echo.Context, err error, productID string) error {
	var fe *usecase.ForecastError
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	case errors.As(err, &fe):
		appErr := xhttp.NewAppError(http.StatusBadGateway, codeModelUnavailable, "failed to get prediction from ML model")
		if fe.Status == models.ForecastTimeout {
			appErr = xhttp.NewAppError(http.StatusGatewayTimeout, codeModelTimeout, "ML service timeout")
		}
		return xhttp.AppErrorResponse(c, appErr.
			WithParam("request_id", fe.RequestID).
			WithParam("latency_ms", fe.LatencyMS).
			WithError(err))
	default:
		h.logger.Error("forecast usecase error",
			xlogger.String("product_id", productID),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, xhttp.InternalError("forecast failed").WithError(err))
	}
}
