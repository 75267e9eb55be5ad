package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crossmesh/bridgekit/internal/api"
	"github.com/crossmesh/bridgekit/internal/bridge"
	"github.com/crossmesh/bridgekit/internal/chains"
	"github.com/crossmesh/bridgekit/internal/config"
	"github.com/crossmesh/bridgekit/internal/events"
	"github.com/crossmesh/bridgekit/internal/logger"
	"github.com/crossmesh/bridgekit/internal/oracle"
	"github.com/crossmesh/bridgekit/internal/prover"
	"github.com/crossmesh/bridgekit/internal/wallet"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		LogFile:    cfg.LogFile,
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 14,
		Debug:      cfg.DebugLogging,
	})
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("Bridge engine exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := buildRegistry(cfg, log)
	if err != nil {
		return err
	}

	clock := oracle.SystemClock{}
	sim := oracle.NewSimulator(oracle.DefaultSimulatorConfig(), clock, log)

	var statusOracle oracle.StatusOracle = sim
	var health api.ChainHealth
	if !cfg.DemoMode {
		client := prover.NewClient(cfg.ProverURL, cfg.ProverAPIKey, log)
		statusOracle = oracle.NewProverOracle(client, oracle.RouteHint{
			SourceChain: cfg.ProverSourceChain,
			TargetChain: cfg.ProverTargetChain,
		}, log)
		health = client
		// Submission and fee quoting have no live backend; only status
		// reconciliation talks to the proving service.
		log.Info("Using remote proving service for status; submission stays simulated",
			zap.String("url", cfg.ProverURL))
	} else {
		log.Info("Running in demo mode with simulated backend")
	}

	wallets := wallet.NewStaticProvider()
	if err := seedDemoWallet(wallets, cfg); err != nil {
		return err
	}

	bus := events.NewBus(log, 256)
	store := bridge.NewStore(cfg.StoreCap, log)
	estimator := bridge.NewCostEstimator(sim, log)
	validator := bridge.NewValidator(registry, estimator, log)

	orch := bridge.NewOrchestrator(bridge.OrchestratorDeps{
		Store:     store,
		Registry:  registry,
		Validator: validator,
		Submitter: sim,
		Wallets:   wallets,
		Bus:       bus,
		Clock:     clock,
		Logger:    log,
	})

	reconciler := bridge.NewReconciler(orch, statusOracle, clock, bridge.ReconcilerConfig{
		PollInterval: cfg.PollInterval,
		GraceBuffer:  cfg.GraceBuffer,
	}, log)
	orch.SetTracker(reconciler)

	bridge.WireSettlementDebits(bus, store, wallets, log)

	server := api.NewServer(orch, estimator, reconciler, registry, health, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP API listening", zap.String("addr", cfg.ListenAddr))
		return server.RunWithContext(gctx, cfg.ListenAddr)
	})

	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := reconciler.Shutdown(shutdownCtx); serr != nil {
		log.Warn("Reconciler did not stop cleanly", zap.Error(serr))
	}
	if serr := bus.Shutdown(shutdownCtx); serr != nil {
		log.Warn("Event bus did not stop cleanly", zap.Error(serr))
	}

	log.Info("Bridge engine stopped")
	return err
}

func buildRegistry(cfg *config.Config, log *zap.Logger) (*chains.Registry, error) {
	if cfg.ChainsFile == "" {
		return chains.Default(), nil
	}
	registry, err := chains.LoadFile(cfg.ChainsFile, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain catalogue: %w", err)
	}
	return registry, nil
}

func seedDemoWallet(wallets *wallet.StaticProvider, cfg *config.Config) error {
	if cfg.DemoAccount == "" {
		return nil
	}
	balance, err := decimal.NewFromString(cfg.DemoBalance)
	if err != nil {
		return fmt.Errorf("invalid demo_balance %q: %w", cfg.DemoBalance, err)
	}
	wallets.SetAccount(wallet.State{
		Address:        cfg.DemoAccount,
		ConnectedChain: cfg.DemoChain,
		Balance:        balance,
	})
	return nil
}
