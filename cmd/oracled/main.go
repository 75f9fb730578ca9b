package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rwa_oracle/pkg/config"
	"rwa_oracle/pkg/consensus"
	"rwa_oracle/pkg/data"
	"rwa_oracle/pkg/database"
	"rwa_oracle/pkg/oracle"
	"rwa_oracle/pkg/pause"
	"rwa_oracle/pkg/scheduler"
	"rwa_oracle/pkg/security"
	"rwa_oracle/pkg/service"
	"rwa_oracle/pkg/utils"
	"rwa_oracle/pkg/valuation"
)

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	noDB       = flag.Bool("no-db", false, "Run without a database (in-memory audit trail only)")
)

// App bundles the running services of the oracle daemon
type App struct {
	db     *database.Service
	mirror *service.Mirror
	sched  *scheduler.Scheduler
	facade *service.Facade
	logger *zap.Logger
}

func main() {
	flag.Parse()

	logger, err := initLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("Failed to load configuration",
			zap.String("path", *configFile),
			zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := initializeApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	setupGracefulShutdown(ctx, cancel, app, logger)

	logger.Info("Oracle daemon running",
		zap.String("environment", cfg.Environment),
		zap.Int("minVerifiers", cfg.Consensus.MinVerifiers),
		zap.Duration("voteTimelock", cfg.Consensus.VoteTimelock),
		zap.Duration("maxValuationAge", cfg.Valuation.MaxAge))

	<-ctx.Done()
}

func initializeApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var repo data.Repository
	var dbService *database.Service
	if persistenceEnabled(cfg, *noDB) {
		var err error
		dbService, err = database.NewService(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing database service: %w", err)
		}
		if err := dbService.Start(initCtx); err != nil {
			return nil, fmt.Errorf("starting database: %w", err)
		}
		repo = dbService.GetRepository()
	} else {
		logger.Info("Running without persistence; ledger state is in-memory only")
	}

	var mirror *service.Mirror
	if repo != nil {
		var err error
		mirror, err = service.NewMirror(repo, logger)
		if err != nil {
			stopDB(dbService, logger)
			return nil, fmt.Errorf("initializing state mirror: %w", err)
		}
	}

	teardown := func() {
		if mirror != nil {
			mirror.Close()
		}
		stopDB(dbService, logger)
	}

	access, err := buildAccess(cfg, logger)
	if err != nil {
		teardown()
		return nil, fmt.Errorf("initializing access control: %w", err)
	}
	registry := oracle.NewRegistry(logger)
	gate := pause.NewGate(logger)

	proofs, err := consensus.NewProofLedger(registry, consensus.Config{
		MinVerifiers: cfg.Consensus.MinVerifiers,
		VoteTimelock: cfg.Consensus.VoteTimelock,
	}, logger)
	if err != nil {
		teardown()
		return nil, fmt.Errorf("initializing proof ledger: %w", err)
	}

	valuations, err := valuation.NewLedger(cfg.Valuation.MaxAge, logger)
	if err != nil {
		teardown()
		return nil, fmt.Errorf("initializing valuation ledger: %w", err)
	}

	facade, err := service.NewFacade(access, gate, registry, proofs, valuations,
		service.NewEventLog(logger), mirror, logger)
	if err != nil {
		teardown()
		return nil, fmt.Errorf("initializing facade: %w", err)
	}

	sched, err := scheduler.NewScheduler(registry, valuations, &cfg.Scheduler, logger)
	if err != nil {
		teardown()
		return nil, fmt.Errorf("initializing scheduler: %w", err)
	}
	if err := sched.Start(); err != nil {
		teardown()
		return nil, fmt.Errorf("starting scheduler: %w", err)
	}

	return &App{
		db:     dbService,
		mirror: mirror,
		sched:  sched,
		facade: facade,
		logger: logger,
	}, nil
}

// persistenceEnabled reports whether the daemon should run the database
// service. An empty URL with embedded mode off means no persistence was
// configured, matching what the configuration validator accepts.
func persistenceEnabled(cfg *config.Config, noDB bool) bool {
	if noDB {
		return false
	}
	return cfg.Database.URL != "" || cfg.Database.Embedded
}

// buildAccess seeds a grant table from the configured administrator and
// emergency-responder lists. When a token secret is configured, token-admitted
// callers are honored alongside the static grants.
func buildAccess(cfg *config.Config, logger *zap.Logger) (security.AccessController, error) {
	static := security.NewStaticAccess()
	for _, admin := range cfg.Security.Administrators {
		static.Grant(admin, security.RoleAdmin)
	}
	for _, responder := range cfg.Security.EmergencyResponders {
		static.Grant(responder, security.RoleEmergency)
	}

	if cfg.Security.TokenSecret == "" {
		logger.Info("Token access disabled; using static grants only")
		return static, nil
	}

	issuer, err := security.NewTokenIssuer(cfg.Security.TokenSecret, cfg.Security.TokenSalt, cfg.Security.TokenExpiry)
	if err != nil {
		return nil, fmt.Errorf("creating token issuer: %w", err)
	}

	logger.Info("Token access enabled",
		zap.Duration("tokenExpiry", cfg.Security.TokenExpiry))
	return security.NewMultiAccess(security.NewTokenAccess(issuer), static), nil
}

func (a *App) stop(ctx context.Context) error {
	a.sched.Stop()

	// Drain pending mirror writes before the database goes away
	if a.mirror != nil {
		a.mirror.Close()
	}

	if a.db != nil {
		if err := a.db.Stop(ctx); err != nil {
			a.logger.Error("Shutdown error", zap.Error(err))
			return err
		}
	}

	a.logger.Info("All services stopped")
	return nil
}

func stopDB(db *database.Service, logger *zap.Logger) {
	if db == nil {
		return
	}
	if err := db.Stop(context.Background()); err != nil {
		logger.Error("Failed to stop database", zap.Error(err))
	}
}

func setupGracefulShutdown(ctx context.Context, cancel context.CancelFunc, app *App, logger *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		case <-ctx.Done():
			return
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := app.stop(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
		cancel()
	}()
}

func initLogger(debug bool) (*zap.Logger, error) {
	logCfg := utils.DefaultLogConfig()
	logCfg.Debug = debug
	if debug {
		logCfg.Level = "debug"
	}
	return utils.NewLogger(logCfg)
}
