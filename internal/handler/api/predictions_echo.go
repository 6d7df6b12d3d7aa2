package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"PriceDrop/internal/domain/models"
	"PriceDrop/internal/usecase"
	xhttp "PriceDrop/pkg/http"
	xlogger "PriceDrop/pkg/logger"
)

// PredictionService is the use case surface the handler depends on.
type PredictionService interface {
	PredictDown(ctx context.Context, in usecase.PredictDownInput) (*models.PredictionResult, error)
	LatestPrediction(ctx context.Context, productID string) (*models.Prediction, error)
}

// HealthCheck is one named dependency probe for /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// PredictionsEchoHandler serves the prediction endpoints.
type PredictionsEchoHandler struct {
	logger        *xlogger.Logger
	svc           PredictionService
	forecast      ForecastService
	predictMW     []echo.MiddlewareFunc
	checks        []HealthCheck
	healthTimeout time.Duration
}

func NewPredictionsEchoHandler(logger *xlogger.Logger, svc PredictionService) *PredictionsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &PredictionsEchoHandler{logger: logger, svc: svc, healthTimeout: 2 * time.Second}
}

// UsePredictMiddleware adds middleware to the prediction and forecast routes.
func (h *PredictionsEchoHandler) UsePredictMiddleware(mw ...echo.MiddlewareFunc) {
	h.predictMW = append(h.predictMW, mw...)
}

// AddHealthCheck registers a probe reported by /healthz.
func (h *PredictionsEchoHandler) AddHealthCheck(name string, check func(ctx context.Context) error) {
	h.checks = append(h.checks, HealthCheck{Name: name, Check: check})
}

func (h *PredictionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/predict-down/:productId", h.PredictDown, h.predictMW...)
	g.GET("/predictions/:productId/latest", h.Latest)
	if h.forecast != nil {
		e.Group("/api/v1").POST("/predict", h.Forecast, h.predictMW...)
	}
	e.GET("/healthz", h.Health)
}

func (h *PredictionsEchoHandler) PredictDown(c echo.Context) error {
	req := &models.PredictDownRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	in := usecase.PredictDownInput{ProductID: req.ProductID}
	if req.Threshold != "" {
		th, err := strconv.ParseFloat(req.Threshold, 64)
		if err != nil {
			return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
				Code: "ERR_NUMERIC", Field: "threshold", Message: "threshold must be a number",
			}})
		}
		in.Threshold = &th
	}

	res, err := h.svc.PredictDown(c.Request().Context(), in)
	if err != nil {
		return h.errorResponse(c, err, req.ProductID)
	}
	cacheState := "miss"
	if res.Source == models.SourceCache {
		cacheState = "hit"
	}
	c.Response().Header().Set("X-Prediction-Cache", cacheState)
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsEchoHandler) Latest(c echo.Context) error {
	req := &models.LatestPredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	p, err := h.svc.LatestPrediction(c.Request().Context(), req.ProductID)
	if err != nil {
		return h.errorResponse(c, err, req.ProductID)
	}
	return xhttp.SuccessResponse(c, p)
}

func (h *PredictionsEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.healthTimeout)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	healthy := true
	for _, hc := range h.checks {
		if err := hc.Check(ctx); err != nil {
			healthy = false
			status[hc.Name] = err.Error()
			h.logger.Warn("health check failed", xlogger.String("dependency", hc.Name), xlogger.Error(err))
			continue
		}
		status[hc.Name] = "ok"
	}
	if !healthy {
		return xhttp.ServiceUnavailableResponse(c, status)
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *PredictionsEchoHandler) errorResponse(c echo.Context, err error, productID string) error {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	case errors.Is(err, models.ErrInsufficientHistory):
		return xhttp.AppErrorResponse(c, xhttp.NewAppError(
			http.StatusNotFound, "ERR_INSUFFICIENT_HISTORY", "not enough price history",
		).OnField("productId").WithParam("product_id", productID))
	case errors.Is(err, models.ErrNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no prediction for product %s", productID))
	default:
		h.logger.Error("prediction usecase error",
			xlogger.String("product_id", productID),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, xhttp.InternalError("prediction failed").WithError(err))
	}
}
