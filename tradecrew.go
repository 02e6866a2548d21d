// Package tradecrew implements the decision layer of a multi-agent
// trading desk: structured interpretation of free-form agent output and
// weighted consensus over deliberation sessions.
//
// Usage:
//
//	eng, err := tradecrew.New(
//	    tradecrew.WithProvider(myProvider),
//	    tradecrew.WithMediator(myMediator),
//	)
//	if err != nil { ... }
//	defer eng.Close()
//
//	sess, err := eng.StartSession(deliberation.SessionSpec{
//	    Symbol:       "AAPL",
//	    Participants: roster,
//	})
//
// Without a provider the engine still works end to end: extraction
// degrades to the deterministic lexical pass.
package tradecrew

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/tradecrew/config"
	"github.com/BaSui01/tradecrew/deliberation"
	"github.com/BaSui01/tradecrew/extract"
	"github.com/BaSui01/tradecrew/internal/metrics"
	"github.com/BaSui01/tradecrew/llm"
)

// Version is the library version.
const Version = "0.4.0"

// Engine bundles the extraction pipeline and the session registry behind
// one construction point.
type Engine struct {
	cfg       *config.Config
	logger    *zap.Logger
	ownLogger bool
	metrics   *metrics.Collector
	rdb       *redis.Client
	ownRedis  bool
	cache     *extract.TieredCache
	extractor extract.Extractor
	events    *deliberation.Sink
	registry  *deliberation.Registry
}

// Option configures the engine created by New.
type Option func(*engineOptions)

type engineOptions struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	provider   llm.Provider
	mediator   deliberation.Mediator
	rdb        *redis.Client
	registerer prometheus.Registerer
	events     *deliberation.Sink
}

// WithConfig sets a pre-built configuration. It takes precedence over
// WithConfigFile.
func WithConfig(cfg *config.Config) Option {
	return func(o *engineOptions) { o.cfg = cfg }
}

// WithConfigFile loads configuration from a YAML file, with environment
// variables still applied on top.
func WithConfigFile(path string) Option {
	return func(o *engineOptions) { o.configPath = path }
}

// WithLogger sets a custom zap logger. Defaults to one built from the
// Log configuration section.
func WithLogger(logger *zap.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// WithProvider sets the LLM provider backing semantic extraction. Without
// one, extraction is lexical-only.
func WithProvider(p llm.Provider) Option {
	return func(o *engineOptions) { o.provider = p }
}

// WithMediator sets the arbiter for deadlocked sessions. Without one,
// deadlocks resolve to HOLD.
func WithMediator(m deliberation.Mediator) Option {
	return func(o *engineOptions) { o.mediator = m }
}

// WithRedis sets a pre-built Redis client for the shared cache tier. The
// caller keeps ownership; Close will not touch it.
func WithRedis(client *redis.Client) Option {
	return func(o *engineOptions) { o.rdb = client }
}

// WithRegisterer sets the Prometheus registerer for engine metrics. Use a
// fresh prometheus.NewRegistry in tests.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *engineOptions) { o.registerer = reg }
}

// WithEvents sets a pre-built event sink. Defaults to one sized from the
// Deliberation configuration section.
func WithEvents(sink *deliberation.Sink) Option {
	return func(o *engineOptions) { o.events = sink }
}

// New builds an engine. All options are optional; the zero configuration
// yields a fallback-only engine with a local extraction cache.
func New(opts ...Option) (*Engine, error) {
	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := o.cfg
	if cfg == nil {
		loader := config.NewLoader()
		if o.configPath != "" {
			loader = loader.WithConfigPath(o.configPath)
		}
		loaded, err := loader.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	ownLogger := false
	if logger == nil {
		logger = config.NewLogger(cfg.Log)
		ownLogger = true
	}

	collector := metrics.NewCollector("tradecrew", o.registerer, logger)

	rdb := o.rdb
	ownRedis := false
	if rdb == nil && cfg.Cache.EnableRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		ownRedis = true

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, extraction cache degrades to local tier",
				zap.String("addr", cfg.Redis.Addr),
				zap.Error(err))
		}
		cancel()
	}

	cache := extract.NewTieredCache(extract.TieredConfig{
		EnableLocal: cfg.Cache.EnableLocal,
		Local: extract.CacheConfig{
			Capacity: cfg.Cache.LocalCapacity,
			TTL:      cfg.Cache.LocalTTL,
		},
		EnableRedis: cfg.Cache.EnableRedis && rdb != nil,
		RedisTTL:    cfg.Cache.RedisTTL,
		KeyPrefix:   cfg.Cache.KeyPrefix,
	}, rdb, collector, logger)

	var extractor extract.Extractor
	if cfg.Extraction.Enabled && o.provider != nil {
		limiter := llm.NewLimiter(
			cfg.Extraction.MaxConcurrent,
			cfg.Extraction.RateRPS,
			cfg.Extraction.RateBurst,
		)
		extractor = extract.NewSemantic(extract.SemanticConfig{
			Model:       cfg.Extraction.Model,
			Timeout:     cfg.Extraction.Timeout,
			Temperature: cfg.Extraction.Temperature,
			MaxTokens:   cfg.Extraction.MaxTokens,
		}, o.provider, limiter, cache, collector, logger)
		logger.Info("semantic extraction enabled",
			zap.String("provider", o.provider.Name()),
			zap.String("model", cfg.Extraction.Model))
	} else {
		extractor = extract.NewFallback(logger)
		logger.Info("semantic extraction not configured, using lexical extraction")
	}

	events := o.events
	if events == nil {
		events = deliberation.NewSink(cfg.Deliberation.EventBuffer, collector, logger)
	}

	registry := deliberation.NewRegistry(deliberation.RegistryOptions{
		Config: deliberation.Config{
			MaxRounds:              cfg.Deliberation.MaxRounds,
			ConsensusThreshold:     cfg.Deliberation.ConsensusThreshold,
			DefaultWeight:          cfg.Deliberation.DefaultWeight,
			EnableEarlyConvergence: cfg.Deliberation.EnableEarlyConvergence,
			MediationTimeout:       cfg.Deliberation.MediationTimeout,
		},
		Extractor: extractor,
		Mediator:  o.mediator,
		Metrics:   collector,
		Events:    events,
		Logger:    logger,
	})

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		ownLogger: ownLogger,
		metrics:   collector,
		rdb:       rdb,
		ownRedis:  ownRedis,
		cache:     cache,
		extractor: extractor,
		events:    events,
		registry:  registry,
	}

	logger.Info("tradecrew engine ready",
		zap.String("version", Version),
		zap.Bool("semantic", cfg.Extraction.Enabled && o.provider != nil),
		zap.Bool("redis_cache", cfg.Cache.EnableRedis && rdb != nil),
		zap.Bool("mediator", o.mediator != nil))
	return e, nil
}

// StartSession registers a new deliberation session.
func (e *Engine) StartSession(spec deliberation.SessionSpec) (*deliberation.Session, error) {
	return e.registry.StartSession(spec)
}

// Registry returns the session registry.
func (e *Engine) Registry() *deliberation.Registry {
	return e.registry
}

// Extractor returns the configured extraction pipeline for direct use.
func (e *Engine) Extractor() extract.Extractor {
	return e.extractor
}

// CacheStats reports the local extraction cache counters.
func (e *Engine) CacheStats() extract.Stats {
	return e.cache.Stats()
}

// Events returns the session event stream. It is closed by Close.
func (e *Engine) Events() <-chan deliberation.Event {
	return e.events.Events()
}

// Config returns the resolved configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Close releases engine resources: the event stream, any Redis client the
// engine opened, and the logger it built.
func (e *Engine) Close() error {
	e.logger.Info("tradecrew engine closing")
	e.events.Close()

	var err error
	if e.ownRedis && e.rdb != nil {
		err = e.rdb.Close()
	}
	if e.ownLogger {
		_ = e.logger.Sync()
	}
	return err
}
