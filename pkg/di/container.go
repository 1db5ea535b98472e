// Package di builds and tears down the companion's object graph.
package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"talking-pet/companion/internal/gateway"
	"talking-pet/companion/internal/playback"
	"talking-pet/companion/internal/reminder"
	"talking-pet/companion/internal/store"
	"talking-pet/companion/internal/ws"
	"talking-pet/companion/pkg/clock"
	"talking-pet/companion/pkg/config"
	"talking-pet/companion/pkg/health"
	"talking-pet/companion/pkg/logger"
	"talking-pet/companion/pkg/middleware"
	"talking-pet/companion/pkg/resilience"
	"talking-pet/companion/pkg/router"
	"talking-pet/companion/pkg/secrets"
	"talking-pet/companion/shared/observability"
)

// Options overrides pieces of the graph, mainly for tests and the CLI
type Options struct {
	Clock       clock.Clock
	LogOutput   io.Writer
	TraceOutput io.Writer
	// Player replaces the configured audio player
	Player     playback.Player
	HTTPClient *http.Client
}

// Container holds all the dependencies for the application
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	Clock       clock.Clock
	Registry    *prometheus.Registry
	Metrics     *observability.Metrics
	Secrets     secrets.Manager
	Gateway     *gateway.Client
	Breaker     *resilience.CircuitBreaker
	Player      playback.Player
	Sequencer   *playback.Sequencer
	Store       *store.Store
	Hub         *ws.Hub
	Health      *health.Checker
	RateLimiter *middleware.RateLimiter

	meterProvider   *sdkmetric.MeterProvider
	shutdownTracing func(context.Context) error
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		JSON:   cfg.Logging.Format == "json",
		Output: opts.LogOutput,
	})
	logger.SetGlobal(log)

	c := &Container{
		Config:   cfg,
		Logger:   log,
		Clock:    opts.Clock,
		Registry: prometheus.NewRegistry(),
	}

	sm, err := secrets.NewVaultManager(cfg, opts.Clock, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets manager: %w", err)
	}
	c.Secrets = sm

	c.Registry.MustRegister(collectors.NewGoCollector())
	c.Metrics = observability.NewMetrics(c.Registry)

	mp, err := observability.SetupMetrics(cfg.Telemetry.ServiceName, c.Registry)
	if err != nil {
		return nil, err
	}
	c.meterProvider = mp

	if cfg.Telemetry.EnableTracing {
		out := opts.TraceOutput
		if out == nil {
			out = os.Stderr
		}
		shutdown, err := observability.SetupTracing(cfg.Telemetry.ServiceName, out)
		if err != nil {
			return nil, err
		}
		c.shutdownTracing = shutdown
	}

	gwOpts := []gateway.Option{
		gateway.WithMeter(mp.Meter("talking-pet/companion/gateway")),
		gateway.WithAPIKey(sm.GetSecretWithDefault(ctx, cfg.Gateway.APIKeyName, "")),
	}
	if opts.HTTPClient != nil {
		gwOpts = append(gwOpts, gateway.WithHTTPClient(opts.HTTPClient))
	}
	c.Gateway = gateway.NewClient(cfg.Gateway.URL, cfg.Gateway.Timeout, log, gwOpts...)

	c.Player = opts.Player
	if c.Player == nil {
		c.Player = newPlayer(cfg, log)
	}

	c.Breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "speech",
		FailureThreshold: cfg.Audio.BreakerFailures,
		SuccessThreshold: 1,
		Cooldown:         cfg.Audio.BreakerCooldown,
	}, opts.Clock, log)

	c.Sequencer = playback.NewSequencer(
		playback.Guard(c.Gateway, c.Breaker),
		c.Player,
		log,
		playback.WithRecorder(c.Metrics),
	)

	c.Store = store.New(c.Gateway, c.Sequencer, storeConfig(cfg), opts.Clock, log, store.WithRecorder(c.Metrics))
	c.Hub = ws.NewHub(c.Store, log)

	c.RateLimiter = middleware.NewRateLimiter(opts.Clock, log, middleware.RateLimiterOptions{
		Limit:          rateLimit(cfg.Server.RateLimit),
		Burst:          cfg.Server.RateLimitBurst,
		ExpiryDuration: middleware.DefaultRateLimiterOptions().ExpiryDuration,
	})

	c.Health = health.NewChecker(opts.Clock, log, healthPeriod)
	c.registerHealthChecks(opts.HTTPClient)

	return c, nil
}

// Router builds the control surface and starts the websocket hub
func (c *Container) Router() *router.Router {
	c.Hub.Start()

	r := router.New(router.Dependencies{
		Config:      c.Config,
		Logger:      c.Logger,
		Companion:   c.Store,
		Hub:         c.Hub,
		RateLimiter: c.RateLimiter,
		Health:      c.Health.Handler(),
		Metrics:     observability.Handler(c.Registry),
	})
	r.SetupRoutes()
	return r
}

// Close stops every background activity: websocket clients, reminders,
// override timers, playback, then flushes telemetry
func (c *Container) Close(ctx context.Context) error {
	c.Hub.Stop()
	c.Store.Close()
	c.Sequencer.Close()

	var errs []error
	if c.shutdownTracing != nil {
		errs = append(errs, c.shutdownTracing(ctx))
	}
	errs = append(errs, c.meterProvider.Shutdown(ctx))
	return errors.Join(errs...)
}

func storeConfig(cfg *config.Config) store.Config {
	return store.Config{
		OverrideDuration: cfg.Pet.OverrideDuration,
		HistoryWindow:    cfg.Pet.ChatHistoryWindow,
		Thresholds: reminder.Thresholds{
			Hunger:  cfg.Pet.HungerThreshold,
			LowStat: cfg.Pet.LowStatThreshold,
		},
		ReminderMinInterval: cfg.Reminders.MinInterval,
		ReminderMaxInterval: cfg.Reminders.MaxInterval,
		ReminderSpacing:     cfg.Reminders.MinSpacing,
		ShopCacheTTL:        cfg.Cache.ShopTTL,
	}
}

func newPlayer(cfg *config.Config, log *logger.Logger) playback.Player {
	if len(cfg.Audio.PlayerCommand) == 0 {
		log.Info("No audio player configured, narration is muted")
		return playback.NewNullPlayer(log)
	}
	p, err := playback.NewCommandPlayer(cfg.Audio.PlayerCommand, cfg.Audio.TempDir, log)
	if err != nil {
		log.LogWarn(err, "Audio player unavailable, narration is muted", "command", cfg.Audio.PlayerCommand[0])
		return playback.NewNullPlayer(log)
	}
	return p
}
