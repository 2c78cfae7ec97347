package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/FrancoRivero2025/quote-average/config"
	"github.com/FrancoRivero2025/quote-average/internal/adapters/exchange"
	httpapi "github.com/FrancoRivero2025/quote-average/internal/adapters/http"
	"github.com/FrancoRivero2025/quote-average/internal/adapters/log"
	"github.com/FrancoRivero2025/quote-average/internal/adapters/sink"
	"github.com/FrancoRivero2025/quote-average/internal/application"
	"github.com/FrancoRivero2025/quote-average/internal/domain"
	"github.com/FrancoRivero2025/quote-average/internal/refresher"

	"github.com/go-chi/chi/v5"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	logger := log.New(os.Stdout)
	log.SetInstance(logger)
	defer logger.Close()

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Initialize(configPath)
	if err != nil {
		logger.Fatal("configuration error: %v", err)
	}
	setupLogger(logger, cfg)

	client := exchange.NewClient(cfg.Quotes.RequestTimeout,
		exchange.WithHeaders(cfg.Quotes.Headers),
		exchange.WithDecimalPlaces(cfg.Quotes.DecimalPlaces),
	)
	controller := application.NewController(buildExchanges(cfg, exchange.NewRegistry(client)),
		application.WithDefaultIgnoreTimeout(cfg.Quotes.IgnoreTimeout),
		application.WithConcurrency(cfg.Refresher.Workers),
	)

	sinks, memory := buildSinks(ctx, cfg)
	publisher := sink.NewMulti(sinks...)

	ref, err := refresher.NewRefresher(controller, publisher, cfg.Refresher.Interval, cfg.Refresher.Workers)
	if err != nil {
		logger.Fatal("failed to create refresher: %v", err)
	}
	round := ref.RunOnce(ctx)
	logger.Info("initial refresh: %d published, %d unavailable, %d failed",
		round.Published, round.Unavailable, round.Failed)
	ref.Start()

	var snapshots httpapi.Snapshots
	if memory != nil {
		snapshots = memory
	}
	httpHandler := httpapi.NewHandler(controller, snapshots)

	r := chi.NewRouter()
	r.Mount("/", httpHandler.Router())

	addr := ":" + cfg.ServerPortString()

	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Quotes.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting server on %s with exchanges %v", addr, controller.Exchanges())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error: %v", err)
	} else {
		logger.Info("HTTP server stopped gracefully")
	}

	ref.Stop()
	logger.Info("Refresher stopped")

	if err := publisher.Close(); err != nil {
		logger.Error("Sink close error: %v", err)
	} else {
		logger.Info("Sink connections closed")
	}

	wg.Wait()
	logger.Info("All components stopped successfully")
}

func setupLogger(logger *log.Logger, cfg *config.Config) {
	logger.SetLevel(log.ParseLevel(cfg.Log.Level))
	if cfg.Log.File == "" {
		return
	}
	logger.SetRotation(log.Rotation{
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err := logger.SetOutputToFile(cfg.Log.File); err != nil {
		logger.Fatal("cannot log to %s: %v", cfg.Log.File, err)
	}
}

// buildExchanges binds every enabled exchange to the fetcher of its kind.
func buildExchanges(cfg *config.Config, registry map[string]domain.Fetcher) map[string]application.Exchange {
	exchanges := make(map[string]application.Exchange)
	for _, id := range cfg.EnabledExchanges() {
		ex := cfg.Exchanges[id]
		kind := cfg.KindOf(id)
		fetcher, ok := registry[kind]
		if !ok {
			log.GetInstance().Fatal("exchange %s: unknown kind %q, supported kinds are %v",
				id, kind, exchange.Kinds(registry))
		}
		exchanges[id] = application.Exchange{
			Fetcher: fetcher,
			Policy: application.Policy{
				QueryFrequency: ex.QueryFrequency,
				IgnoreTimeout:  ex.IgnoreTimeout,
			},
			Params: ex.Params,
		}
	}
	return exchanges
}

func buildSinks(ctx context.Context, cfg *config.Config) ([]sink.Sink, *sink.Memory) {
	logger := log.GetInstance()
	ttl := cfg.Quotes.IgnoreTimeout
	if ttl <= 0 {
		ttl = application.DefaultIgnoreTimeout
	}

	var (
		sinks  []sink.Sink
		memory *sink.Memory
	)
	for _, kind := range cfg.Sink.Kinds() {
		switch kind {
		case config.SinkMemory:
			memory = sink.NewMemory(ttl)
			sinks = append(sinks, memory)
			logger.Info("Using in-memory snapshot sink")
		case config.SinkRedis:
			rs := sink.NewRedis(sink.RedisOptions{
				Addr:     cfg.Sink.Redis.Addr,
				Password: cfg.Sink.Redis.Password,
				DB:       cfg.Sink.Redis.DB,
				Prefix:   cfg.Sink.Redis.Prefix,
				TTL:      ttl,
			})
			if err := rs.WaitReady(ctx, 5); err != nil {
				logger.Fatal("redis sink not reachable at %s: %v", cfg.Sink.Redis.Addr, err)
			}
			sinks = append(sinks, rs)
			logger.Info("Using Redis snapshot sink at %s", cfg.Sink.Redis.Addr)
		case config.SinkNATS:
			ns, err := sink.NewNATS(cfg.Sink.NATS.URL, cfg.Sink.NATS.SubjectPrefix)
			if err != nil {
				logger.Fatal("failed to create NATS sink: %v", err)
			}
			sinks = append(sinks, ns)
			logger.Info("Using NATS snapshot sink at %s", cfg.Sink.NATS.URL)
		}
	}
	return sinks, memory
}
