//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	domrepo "FinFuse/internal/domain/repository"
	"FinFuse/internal/handler/api"
	"FinFuse/internal/usecase"
	"FinFuse/pkg/config"
	"FinFuse/pkg/metrics"
	"FinFuse/pkg/server"
)

var engineSet = wire.NewSet(
	ProvideCostModel,
	ProvideLearner,
	ProvideConsensusAggregator,
	ProvideDriftMonitor,
	ProvideAuditLedger,
)

var infraSet = wire.NewSet(
	ProvideBreakerSettings,
	ProvideSnapshotCache,
	ProvideSnapshotStore,
	ProvideClickHouseClient,
	ProvideLedgerArchive,
	ProvideKafkaProducer,
	ProvideStreamHub,
	ProvideEventStream,
	ProvideRecommendationNotifier,
	ProvideKafkaConsumer,
)

var usecaseSet = wire.NewSet(
	usecase.NewLearningUsecase,
	usecase.NewConsensusUsecase,
	usecase.NewDriftUsecase,
	usecase.NewTradeAuditUsecase,
	usecase.NewSnapshotter,
	ProvideKafkaHandlers,
)

// InitializeApp wires up all dependencies and returns the application together with
// a cleanup that releases infrastructure clients.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,
		wire.Bind(new(domrepo.Metrics), new(*metrics.Recorder)),

		engineSet,
		infraSet,
		usecaseSet,

		api.NewEngineHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
