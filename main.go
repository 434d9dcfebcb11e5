package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"domino-engine/engine"
	"domino-engine/internal/config"
	"domino-engine/internal/logging"
	"domino-engine/internal/middleware"
	"domino-engine/internal/redis"
	"domino-engine/internal/report"
	"domino-engine/internal/results"
	"domino-engine/models"
	"domino-engine/server"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.IsProduction())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("session failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := engine.NewTableManager(cfg.QueueCapacity, logger)
	logger.Info("domino engine starting",
		zap.String("session_id", manager.SessionID()),
		zap.Int("tables", cfg.TableCount),
		zap.Int("seats", cfg.SeatsPerTable),
		zap.String("policy", cfg.Policy),
		zap.Duration("quantum", cfg.Quantum))

	var console *server.Console
	if cfg.HumanSeat >= 0 {
		var closeConsole func()
		var err error
		console, closeConsole, err = humanConsole(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeConsole()
		console.UseCommands(server.NewCommandHandler(manager))
	}

	for i := 0; i < cfg.TableCount; i++ {
		var decider engine.Decider
		if i == cfg.HumanTable && console != nil {
			decider = console
		}
		if _, err := manager.CreateTable(fmt.Sprintf("table-%d", i), cfg.TableConfig(i), nil, decider); err != nil {
			return fmt.Errorf("failed to create table %d: %w", i, err)
		}
	}

	store, err := results.Open(cfg.ResultsDSN, manager.SessionID(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sinks := []report.Sink{report.NewLogSink(logger)}
	if cfg.Redis.Host != "" {
		client, err := redis.New(redis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Warn("redis unavailable, snapshots will not be published", zap.Error(err))
		} else {
			defer client.Close()
			sinks = append(sinks, report.NewRedisSink(client, time.Hour))
		}
	}

	var hub *server.Hub
	if cfg.ObserverAddr != "" {
		hub = server.NewHub(cfg.Origins(), logger)
		sinks = append(sinks, hub)
	}

	reporter := report.NewReporter(manager, store, cfg.ReportInterval, logger, sinks...)
	reportCtx, stopReporting := context.WithCancel(context.Background())
	reportDone := make(chan struct{})
	go func() {
		defer close(reportDone)
		reporter.Run(reportCtx)
	}()

	var api *server.API
	if hub != nil {
		limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig, logger)
		defer limiter.Stop()
		api = server.NewAPI(server.APIConfig{
			Addr:           cfg.ObserverAddr,
			AllowedOrigins: cfg.Origins(),
			Production:     cfg.IsProduction(),
		}, reporter, store, hub, limiter, logger)
		go func() {
			if err := api.Start(); err != nil {
				logger.Error("observer API stopped", zap.Error(err))
			}
		}()
	}

	handlers := []func(models.Event){logEvent(logger)}
	if console != nil {
		handlers = append(handlers, console.SendEvent)
	}
	if hub != nil {
		handlers = append(handlers, hub.BroadcastEvent)
	}
	go server.ForwardEvents(ctx, manager.Events(), handlers...)

	if err := manager.StartAll(ctx); err != nil {
		return err
	}
	sessionErr := manager.Wait()

	stopReporting()
	<-reportDone
	printSummary(ctx, store, logger)

	// Observers keep their API until the operator stops the process.
	if api != nil && ctx.Err() == nil {
		logger.Info("all tables finished, observer API still serving", zap.String("addr", cfg.ObserverAddr))
		<-ctx.Done()
	}

	logger.Info("shutting down")
	if api != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := api.Shutdown(shutdownCtx); err != nil {
			logger.Warn("observer API shutdown failed", zap.Error(err))
		}
	}
	if err := manager.Shutdown(); err != nil {
		return err
	}
	return sessionErr
}

// humanConsole serves the human seat on stdin/stdout, or on the first TCP
// client when HUMAN_ADDR is set.
func humanConsole(ctx context.Context, cfg config.Config, logger *zap.Logger) (*server.Console, func(), error) {
	if cfg.HumanAddr == "" {
		return server.NewConsole(os.Stdin, os.Stdout, logger), func() {}, nil
	}
	tcp := server.NewTCPServer(cfg.HumanAddr, logger)
	if err := tcp.Listen(); err != nil {
		return nil, nil, err
	}
	console, err := tcp.Accept(ctx)
	if err != nil {
		tcp.Stop()
		return nil, nil, err
	}
	return console, tcp.Stop, nil
}

func logEvent(logger *zap.Logger) func(models.Event) {
	events := logger.Named("events")
	return func(event models.Event) {
		events.Debug("table event",
			zap.String("event", event.Event),
			zap.String("table_id", event.TableID),
			zap.Any("data", event.Data))
	}
}

func printSummary(ctx context.Context, store *results.Store, logger *zap.Logger) {
	queryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	rounds, err := store.RecentRounds(queryCtx, 0)
	if err != nil {
		logger.Warn("failed to load results", zap.Error(err))
		return
	}
	for _, round := range rounds {
		logger.Info("round result",
			zap.String("table_id", round.TableID),
			zap.Int("winner", round.Winner),
			zap.Bool("blocked", round.Blocked),
			zap.String("pip_totals", round.PipTotals),
			zap.Int("moves", round.MoveCount))
	}
}
