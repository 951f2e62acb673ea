//go:build wireinject
// +build wireinject

package di

import (
	"StockPulse/pkg/config"
	"StockPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient infrastructure
		ProvideLogger,
		ProvideMetrics,
		ProvideHTTPClient,
		ProvideStore,
		ProvideCacheService,

		// Upstream adapters
		ProvideSina,
		ProvideEastMoney,
		ProvideTencent,

		// Caches and limiters
		ProvideMarketCache,
		ProvideBarCache,
		ProvideViewLimiter,
		ProvideAnalysisQuota,

		// Scoring
		ProvideEngine,

		// Use cases
		ProvideMarketUseCase,
		ProvideAnalysisUseCase,

		// HTTP surface
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
