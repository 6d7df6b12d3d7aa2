//go:build wireinject
// +build wireinject

package di

import (
	"PriceDrop/pkg/config"
	"PriceDrop/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application and a
// cleanup that releases infrastructure clients.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Metrics
		ProvideRegistry,
		ProvideMetrics,

		// Logging and infrastructure clients
		ProvideLogger,
		ProvideKafkaProducer,
		ProvideLogShipping,

		// Repositories
		ProvidePostgres,
		ProvideHistoryStore,
		ProvidePredictionStore,
		ProvideForecastAuditStore,
		ProvidePublisher,

		// Services and use cases
		ProvideModelClient,
		ProvidePredictor,
		ProvideForecaster,
		ProvideOrchestrator,
		ProvideForecastOrchestrator,

		// HTTP
		ProvideRateLimiter,
		ProvideHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
