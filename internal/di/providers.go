package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	"FinFuse/internal/handler/api"
	internalrepo "FinFuse/internal/repository"
	"FinFuse/internal/services/costs"
	"FinFuse/internal/services/fusion"
	"FinFuse/internal/services/ledger"
	"FinFuse/internal/services/monitor"
	"FinFuse/internal/usecase"
	"FinFuse/pkg/cache"
	pkgch "FinFuse/pkg/clickhouse"
	"FinFuse/pkg/config"
	xhttp "FinFuse/pkg/http"
	pkgkafka "FinFuse/pkg/kafka"
	"FinFuse/pkg/logger"
	"FinFuse/pkg/metrics"
	"FinFuse/pkg/server"
	"FinFuse/pkg/ws"
)

const (
	startupTimeout   = 10 * time.Second
	snapshotCacheLen = 16
)

// ProvideLogger creates the application logger from the logging section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
		Component:  "fusion",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return log.With(logger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry shared by every collector.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.New(reg)
}

// ProvideCostModel converts the configured basis points into a cost table.
func ProvideCostModel(cfg *config.Config) *costs.Model {
	c := cfg.Costs
	return costs.NewModel(costs.Table{
		Slippage: map[models.OrderType]float64{
			models.OrderMarket: c.MarketSlippageBps,
			models.OrderLimit:  c.LimitSlippageBps,
			models.OrderStop:   c.StopSlippageBps,
		},
		Commission:  c.CommissionBps,
		SellTax:     c.SellTaxBps,
		StampTax:    c.StampTaxBps,
		DefaultSlip: c.MarketSlippageBps,
	})
}

// ProvideLearner creates the weight learner. Without an explicit default slippage it
// charges the cost model's market slippage.
func ProvideLearner(cfg *config.Config, model *costs.Model) *fusion.Learner {
	slippage := cfg.Engine.DefaultSlippage
	if slippage == 0 {
		slippage = model.SlippageFraction(models.OrderMarket)
	}
	return fusion.NewLearner(fusion.NewWeightStore(),
		fusion.WithLearningRate(cfg.Engine.LearningRate),
		fusion.WithDefaultSlippage(slippage),
		fusion.WithHistoryCapacity(cfg.Engine.OutcomeHistory),
	)
}

// ProvideConsensusAggregator applies horizon weight overrides from config.
func ProvideConsensusAggregator(cfg *config.Config) *fusion.ConsensusAggregator {
	return fusion.NewConsensusAggregator(cfg.Engine.HorizonWeights)
}

// ProvideDriftMonitor creates the drift monitor.
func ProvideDriftMonitor(cfg *config.Config) *monitor.DriftMonitor {
	d := cfg.Drift
	return monitor.NewDriftMonitor(monitor.Thresholds{
		ModelDriftMedium:   d.ModelDriftMedium,
		ModelDriftHigh:     d.ModelDriftHigh,
		ModelDriftCritical: d.ModelDriftCritical,
		AccuracyDecline:    d.AccuracyDecline,
		MinAccuracy:        d.MinAccuracy,
		ConfidenceDrift:    d.ConfidenceDrift,
	}, d.HistoryCapacity)
}

// ProvideAuditLedger creates the in-memory trade ledger.
func ProvideAuditLedger(cfg *config.Config) *ledger.AuditLedger {
	return ledger.NewAuditLedger(ledger.WithCapacity(cfg.Engine.LedgerCapacity))
}

// ProvideBreakerSettings maps the breaker section.
func ProvideBreakerSettings(cfg *config.Config) internalrepo.BreakerSettings {
	return internalrepo.BreakerSettings{
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
		Interval:            cfg.Breaker.Interval,
		Timeout:             cfg.Breaker.Timeout,
	}
}

// ProvideSnapshotCache returns Redis behind an in-process layer when Redis is enabled,
// and a bare in-process cache otherwise.
func ProvideSnapshotCache(cfg *config.Config, log *logger.Logger) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		log.Info("redis disabled, snapshots kept in process")
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(snapshotCacheLen)), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	remote, err := cache.NewRedisCache(ctx,
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.KeyPrefix),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
		cache.WithRedisDialTimeout(cfg.Redis.DialTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}

	l1TTL := cfg.Snapshot.Interval
	if l1TTL <= 0 {
		l1TTL = time.Minute
	}
	log.Info("redis connected", logger.String("addr", cfg.Redis.Addr))
	return cache.NewLayeredCache(remote,
		cache.WithLayeredMemorySize(snapshotCacheLen),
		cache.WithLayeredMemoryTTL(l1TTL),
	), nil
}

// ProvideSnapshotStore wraps the cache in a breaker. The store owns the cache and the
// cleanup closes both.
func ProvideSnapshotStore(cfg *config.Config, c cache.Service, bs internalrepo.BreakerSettings, log *logger.Logger) (domrepo.SnapshotStore, func()) {
	store := internalrepo.NewGuardedSnapshotStore(
		internalrepo.NewCacheSnapshotStore(c, cfg.Redis.TTL),
		internalrepo.NewBreaker("snapshot-store", bs, log),
	)
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Warn("snapshot store close error", logger.Error(err))
		}
	}
	return store, cleanup
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when the archive is disabled.
func ProvideClickHouseClient(cfg *config.Config, log *logger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		log.Info("clickhouse disabled, ledger archive off")
		return nil, func() {}, nil
	}
	ch := cfg.ClickHouse
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddress(ch.Host, ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(ch.MaxOpenConns, ch.MaxIdleConns),
		pkgch.WithConnMaxLifetime(ch.ConnMaxLifetime),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	log.Info("clickhouse connected", logger.String("database", ch.Database))
	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Warn("clickhouse close error", logger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideLedgerArchive ensures the archive table and guards it with a breaker.
// It returns a nil interface when ClickHouse is disabled.
func ProvideLedgerArchive(cfg *config.Config, client *pkgch.Client, bs internalrepo.BreakerSettings, log *logger.Logger) (domrepo.LedgerArchive, error) {
	if client == nil {
		return nil, nil
	}
	archive := internalrepo.NewClickHouseLedgerArchive(client.DB(), cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	if err := archive.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return internalrepo.NewGuardedArchive(archive, internalrepo.NewBreaker("ledger-archive", bs, log)), nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	p := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(p.Compression),
		pkgkafka.WithRequiredAcks(p.RequiredAcks),
		pkgkafka.WithMaxAttempts(p.MaxAttempts),
		pkgkafka.WithBatchTimeout(p.BatchTimeout),
		pkgkafka.WithWriteTimeout(p.WriteTimeout),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideStreamHub creates the websocket hub, or nil when streaming is disabled. The
// App closes it during shutdown.
func ProvideStreamHub(cfg *config.Config, log *logger.Logger, reg *prometheus.Registry) *ws.Hub {
	if !cfg.Stream.Enabled {
		log.Info("event stream disabled")
		return nil
	}
	s := cfg.Stream
	return ws.NewHub(log,
		ws.WithPingInterval(s.PingInterval),
		ws.WithWriteTimeout(s.WriteTimeout),
		ws.WithSendBuffer(s.SendBuffer),
		ws.WithAllowedOrigins(s.AllowedOrigins),
		ws.WithRegisterer(reg),
	)
}

// ProvideEventStream exposes the hub as a domain port. A disabled hub yields a nil interface.
func ProvideEventStream(hub *ws.Hub) domrepo.EventStream {
	if hub == nil {
		return nil
	}
	return hub
}

// ProvideRecommendationNotifier delivers recommendations to Kafka and to stream
// subscribers, whichever are enabled. The notifier owns the producer and the
// cleanup closes both.
func ProvideRecommendationNotifier(cfg *config.Config, producer *pkgkafka.Producer, stream domrepo.EventStream, bs internalrepo.BreakerSettings, log *logger.Logger) (domrepo.RecommendationNotifier, func()) {
	var notifiers []domrepo.RecommendationNotifier
	if producer != nil {
		notifiers = append(notifiers, internalrepo.NewGuardedNotifier(
			internalrepo.NewKafkaRecommendationNotifier(producer, cfg.Kafka.RecommendationTopic),
			internalrepo.NewBreaker("recommendation-notifier", bs, log),
		))
	}
	if stream != nil {
		notifiers = append(notifiers, internalrepo.NewStreamRecommendationNotifier(stream))
	}

	var n domrepo.RecommendationNotifier
	switch len(notifiers) {
	case 0:
		return nil, func() {}
	case 1:
		n = notifiers[0]
	default:
		n = internalrepo.NewFanoutNotifier(notifiers...)
	}
	cleanup := func() {
		if err := n.Close(); err != nil {
			log.Warn("recommendation notifier close error", logger.Error(err))
		}
	}
	return n, cleanup
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger, reg *prometheus.Registry) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
		pkgkafka.WithConsumerFetch(c.MinBytes, c.MaxBytes),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaHandlers binds the inbound topics to their usecases.
func ProvideKafkaHandlers(cfg *config.Config, learning *usecase.LearningUsecase, drift *usecase.DriftUsecase, m domrepo.Metrics) []pkgkafka.MessageHandler {
	return []pkgkafka.MessageHandler{
		usecase.NewTradeOutcomeHandler(cfg.Kafka.OutcomeTopic, learning, m),
		usecase.NewDriftMetricsHandler(cfg.Kafka.MetricsTopic, drift, m),
	}
}

// ProvideHTTPServer creates the Echo server with the engine routes.
func ProvideHTTPServer(cfg *config.Config, log *logger.Logger, h *api.EngineHandler, reg *prometheus.Registry) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithAddress("0.0.0.0", cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithRegistry(reg, reg),
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	opts = append(opts, xhttp.WithMetricsPath(metricsPath))
	if rl := cfg.Server.RateLimit; rl.Enabled {
		opts = append(opts, xhttp.WithRateLimit(rl.RequestsPerSecond, rl.Burst))
	}
	return xhttp.NewServer(log, h, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	snapshots *usecase.Snapshotter,
	drift *usecase.DriftUsecase,
	hub *ws.Hub,
) *server.App {
	return server.New(cfg, log, httpServer, consumer, handlers, snapshots, drift, hub)
}
