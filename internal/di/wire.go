//go:build wireinject
// +build wireinject

package di

import (
	"CrudeDesk/pkg/config"
	"CrudeDesk/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideArtifactCache,
		ProvideNotifier,

		// Repositories and external services
		ProvideArtifactStore,
		ProvideGenerator,
		ProvideQuoteStream,

		// Use cases
		ProvideTradingDayClock,
		ProvideResolver,
		ProvideRefresher,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
