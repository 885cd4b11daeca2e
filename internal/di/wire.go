//go:build wireinject
// +build wireinject

package di

import (
	"MarketPulse/pkg/config"
	"MarketPulse/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideRedisCache,
	ProvideKafkaProducer,
	ProvideClickHouseClient,
)

var coreSet = wire.NewSet(
	ProvideStateStore,
	ProvideEventIngestor,
	ProvidePatternScanner,
	ProvideInsightsCache,
	ProvideFanout,
	ProvideTradierClient,
	ProvideMarketClock,
	ProvideBarSource,
	ProvideInsightsUseCase,
	ProvideScheduler,
)

var edgeSet = wire.NewSet(
	ProvideHub,
	ProvideInsightsSink,
	ProvideKafkaConsumer,
	ProvideQuoteCollector,
	ProvideRateLimiter,
	ProvideHTTPServer,
)

// InitializeApp wires up all dependencies and returns the application and
// a cleanup that releases infrastructure clients in reverse order.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(infraSet, coreSet, edgeSet, ProvideApp)
	return nil, nil, nil
}
