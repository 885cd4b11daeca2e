package di

import (
	"context"
	"fmt"
	"strings"

	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/handler/api"
	mid "MarketPulse/internal/middleware"
	internalrepo "MarketPulse/internal/repository"
	"MarketPulse/internal/service/broadcast"
	"MarketPulse/internal/service/finnhub"
	insightscache "MarketPulse/internal/service/insights"
	svcmetrics "MarketPulse/internal/service/metrics"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/service/tradier"
	"MarketPulse/internal/services/aggregation"
	"MarketPulse/internal/services/patterns"
	"MarketPulse/internal/state"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/cache"
	pkgch "MarketPulse/pkg/clickhouse"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	pkgkafka "MarketPulse/pkg/kafka"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/metrics"
	"MarketPulse/pkg/server"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() domrepo.Metrics {
	svcmetrics.Register()
	return metrics.New(nil)
}

func ProvideStateStore(cfg *config.Config) *state.Store {
	return state.New(
		state.WithRingCapacity(cfg.Insights.RingCapacity),
		state.WithIVHistoryCap(cfg.Insights.IVHistoryCap),
	)
}

func ProvideEventIngestor(store *state.Store, m domrepo.Metrics, log *logger.Logger) *usecase.EventIngestor {
	return usecase.NewEventIngestor(store, m, log.With(logger.String("component", "ingestor")))
}

func ProvidePatternScanner(cfg *config.Config) *patterns.Scanner {
	p := cfg.Insights.Patterns
	return patterns.New(patterns.Config{
		BreakoutLookback: p.BreakoutLookback,
		SMAWindow:        p.SMAWindow,
		PullbackReturn:   p.PullbackReturn,
		IntradayRun:      p.IntradayRun,
		MinBars:          p.MinBars,
		MaxSignals:       p.MaxSignals,
	})
}

// ProvideRedisCache connects to Redis when enabled. A nil cache means single-replica mode.
func ProvideRedisCache(cfg *config.Config, log *logger.Logger) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, 0),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	log.Info("redis connected", logger.String("addr", cfg.Redis.Addr))
	return rc, func() {
		if err := rc.Close(); err != nil {
			log.Warn("redis close error", logger.Error(err))
		}
	}, nil
}

// ProvideInsightsCache builds the insights cache, mirrored to Redis when available.
func ProvideInsightsCache(cfg *config.Config, rc *cache.RedisCache, log *logger.Logger) *insightscache.Cache {
	l := log.With(logger.String("component", "insights_cache"))
	if rc == nil {
		return insightscache.NewCache(l)
	}
	return insightscache.NewCache(l, insightscache.WithMirror(rc, cfg.Insights.MirrorTTL))
}

func ProvideFanout(m domrepo.Metrics) *broadcast.Fanout {
	return broadcast.NewFanout(m)
}

func ProvideHub(cfg *config.Config, fanout *broadcast.Fanout, log *logger.Logger) *broadcast.Hub {
	return broadcast.NewHub(fanout, log.With(logger.String("component", "ws")),
		broadcast.WithSendBuffer(cfg.WebSocket.SendBuffer),
		broadcast.WithAllowedOrigins(cfg.Server.AllowOrigins),
	)
}

// ProvideKafkaProducer creates a producer when Kafka is enabled.
func ProvideKafkaProducer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	k := cfg.Kafka
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithBatching(k.Producer.BatchSize, k.Producer.BatchBytes, k.Producer.Linger),
		pkgkafka.WithTimeouts(k.Producer.WriteTimeout, k.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithAsync(k.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() {
		if err := producer.Close(); err != nil {
			log.Warn("kafka producer close error", logger.Error(err))
		}
	}, nil
}

// ProvideInsightsSink republishes insight events on the insights topic.
func ProvideInsightsSink(cfg *config.Config, producer *pkgkafka.Producer, fanout *broadcast.Fanout, log *logger.Logger) *broadcast.Sink {
	if producer == nil || cfg.Kafka.InsightsTopic == "" {
		return nil
	}
	pub := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.InsightsTopic)
	return broadcast.NewSink("kafka", fanout, pub, log.With(logger.String("component", "sink")))
}

// ProvideClickHouseClient opens the ClickHouse pool when enabled.
func ProvideClickHouseClient(cfg *config.Config, log *logger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(context.Background(),
		pkgch.WithAddr(ch.Host, ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecution),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	log.Info("clickhouse connected", logger.String("database", client.Database()))
	return client, func() {
		if err := client.Close(); err != nil {
			log.Warn("clickhouse close error", logger.Error(err))
		}
	}, nil
}

// ProvideTradierClient returns nil without a token.
func ProvideTradierClient(cfg *config.Config, log *logger.Logger) *tradier.Client {
	if cfg.Tradier.Token == "" {
		return nil
	}
	return tradier.New(tradier.Config{
		BaseURL: cfg.Tradier.BaseURL,
		Token:   cfg.Tradier.Token,
		Timeout: cfg.Tradier.Timeout,
	}, log.With(logger.String("component", "tradier")))
}

func ProvideMarketClock(tc *tradier.Client) domrepo.MarketClock {
	if tc == nil {
		return nil
	}
	return tc
}

// ProvideBarSource selects the configured bar source and puts a read-through
// cache in front of it. Layered over Redis when present, memory-only otherwise.
func ProvideBarSource(
	cfg *config.Config,
	tc *tradier.Client,
	ch *pkgch.Client,
	rc *cache.RedisCache,
	log *logger.Logger,
) (domrepo.BarSource, func(), error) {
	var next domrepo.BarSource
	switch strings.ToLower(cfg.Bars.Source) {
	case "tradier":
		if tc == nil {
			return nil, nil, fmt.Errorf("bars.source=tradier requires tradier.token")
		}
		next = tc
	case "clickhouse":
		if ch == nil {
			return nil, nil, fmt.Errorf("bars.source=clickhouse requires clickhouse.enabled")
		}
		store, err := internalrepo.NewCHBarStore(ch, cfg.ClickHouse.Table, log)
		if err != nil {
			return nil, nil, err
		}
		next = store
	default:
		log.Info("no bar source configured; bar-driven blocks degrade")
		return nil, func() {}, nil
	}

	if cfg.Bars.CacheTTL <= 0 {
		return next, func() {}, nil
	}
	var (
		svc     cache.Service
		cleanup = func() {}
	)
	if rc != nil {
		layered := cache.NewLayeredCache(rc, cache.WithLayeredMemoryTTL(cfg.Bars.CacheTTL))
		svc = layered
		cleanup = func() { _ = layered.Close() }
	} else {
		mem := cache.NewMemoryCache()
		svc = mem
		cleanup = func() { _ = mem.Close() }
	}
	log.Info("bar source ready", logger.String("source", cfg.Bars.Source), logger.Duration("cache_ttl", cfg.Bars.CacheTTL))
	return internalrepo.NewCachedBarSource(next, svc, cfg.Bars.CacheTTL, log), cleanup, nil
}

func ProvideInsightsUseCase(
	cfg *config.Config,
	store *state.Store,
	scanner *patterns.Scanner,
	ic *insightscache.Cache,
	fanout *broadcast.Fanout,
	m domrepo.Metrics,
	log *logger.Logger,
	bars domrepo.BarSource,
	clock domrepo.MarketClock,
	rc *cache.RedisCache,
) *usecase.InsightsUseCase {
	in := cfg.Insights
	ucCfg := usecase.InsightsConfig{
		BreadthUniverse:   in.BreadthUniverse,
		IVUniverse:        in.IVUniverse,
		SentimentUniverse: in.SentimentUniverse,
		PatternUniverse:   in.PatternUniverse,
		VolaUnderlyings:   in.VolaUnderlyings,
		SummaryTimeframes: timeframes(in.SummaryTimeframes, domrepo.SummaryDefault()),
		PatternTimeframes: timeframes(in.PatternTimeframes, domrepo.PatternsDefault()),
		UOATopN:           in.UOATopN,
		Trend: aggregation.TrendPolicy{
			Clamp:        in.Trend.Clamp,
			Threshold:    in.Trend.Threshold,
			FullStrength: in.Trend.FullStrength,
		},
		Timeout: in.ComputeTimeout,
		LockTTL: in.RecomputeInterval,
	}
	var opts []usecase.InsightsOption
	if bars != nil {
		opts = append(opts, usecase.WithBarSource(bars))
	}
	if clock != nil {
		opts = append(opts, usecase.WithMarketClock(clock))
	}
	if rc != nil {
		opts = append(opts, usecase.WithLocker(rc))
	}
	return usecase.NewInsightsUseCase(store, scanner, ic, fanout, m, log.With(logger.String("component", "insights")), ucCfg, opts...)
}

func timeframes(raw []string, def domrepo.Timeframe) []domrepo.Timeframe {
	seen := make(map[domrepo.Timeframe]struct{}, len(raw))
	out := make([]domrepo.Timeframe, 0, len(raw))
	for _, s := range raw {
		tf := domrepo.NormalizeTimeframe(strings.ToLower(strings.TrimSpace(s)), "")
		if tf == "" {
			continue
		}
		if _, ok := seen[tf]; ok {
			continue
		}
		seen[tf] = struct{}{}
		out = append(out, tf)
	}
	if len(out) == 0 {
		out = append(out, def)
	}
	return out
}

// ProvideScheduler builds the recompute loop and hooks it to the ingestor.
func ProvideScheduler(
	cfg *config.Config,
	uc *usecase.InsightsUseCase,
	store *state.Store,
	ic *insightscache.Cache,
	ingestor *usecase.EventIngestor,
	m domrepo.Metrics,
	log *logger.Logger,
) *usecase.Scheduler {
	opts := []usecase.SchedulerOption{usecase.WithHydrator(ic)}
	if cfg.Insights.PushOnIngest {
		opts = append(opts, usecase.WithPushOnIngest(cfg.Insights.PushDebounce))
	}
	s := usecase.NewScheduler(uc, store, m, log.With(logger.String("component", "scheduler")), cfg.Insights.RecomputeInterval, opts...)
	ingestor.SetOnApplied(s.OnApplied)
	return s
}

// ProvideKafkaConsumer creates the events consumer when Kafka is enabled.
func ProvideKafkaConsumer(cfg *config.Config, ingestor *usecase.EventIngestor, m domrepo.Metrics, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.EventsTopic == "" {
		return nil, nil
	}
	k := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(log.With(logger.String("component", "kafka_consumer")),
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(k.GroupID),
		pkgkafka.WithConsumerWorkers(k.Workers),
		pkgkafka.WithConsumerBufferSize(k.BufferSize),
		pkgkafka.WithConsumerRetry(k.RetryMax, k.BackoffMin, k.BackoffMax),
		pkgkafka.WithConsumerDLQ(k.DLQTopic),
		pkgkafka.WithConsumerFetch(k.MinBytes, k.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TraceHook())
	consumer.RegisterHandler(usecase.NewKafkaEventsHandler(cfg.Kafka.EventsTopic, ingestor, m))
	return consumer, nil
}

// ProvideQuoteCollector streams Finnhub trades into the ingestor when enabled.
func ProvideQuoteCollector(cfg *config.Config, ingestor *usecase.EventIngestor, m domrepo.Metrics, log *logger.Logger) *usecase.QuoteCollector {
	if !cfg.Finnhub.Enabled {
		return nil
	}
	f := cfg.Finnhub
	stream := finnhub.New(finnhub.Config{
		APIKey:         f.APIKey,
		WebSocketURL:   f.WebSocketURL,
		Symbols:        f.Symbols,
		ReconnectDelay: f.ReconnectDelay,
		PingInterval:   f.PingInterval,
	}, log.With(logger.String("component", "finnhub")))
	return usecase.NewQuoteCollector(stream, ingestor, m, log.With(logger.String("component", "collector")),
		mid.WithMinInterval(f.Throttle),
		mid.WithBufferSize(2000),
	)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Ingest.RateLimit, cfg.Ingest.Burst)
}

// ProvideHTTPServer registers every HTTP handler on one echo server.
func ProvideHTTPServer(
	cfg *config.Config,
	log *logger.Logger,
	uc *usecase.InsightsUseCase,
	ingestor *usecase.EventIngestor,
	limiter *ratelimit.Limiter,
	hub *broadcast.Hub,
	ch *pkgch.Client,
) *xhttp.Server {
	hl := log.With(logger.String("component", "http"))
	handlers := []xhttp.Handler{
		api.NewInsightsHandler(hl, uc, cfg.Ingest.Key),
		api.NewEventsHandler(hl, ingestor, limiter, cfg.Ingest.Key, cfg.Ingest.MaxBatch),
		api.NewWSHandler(hub),
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true, cfg.Server.AllowOrigins...),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithMetricsPath(metricsPath),
	}
	if ch != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", ch.Health))
	}
	return xhttp.NewServer(hl, handlers, opts...)
}

// ProvideApp assembles the application from its long-running parts.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	httpServer *xhttp.Server,
	hub *broadcast.Hub,
	sink *broadcast.Sink,
	scheduler *usecase.Scheduler,
	consumer *pkgkafka.Consumer,
	collector *usecase.QuoteCollector,
) *server.App {
	return server.New(cfg, log, httpServer, hub, sink, scheduler, consumer, collector)
}
