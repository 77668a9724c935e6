package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/holdemtables/internal/randutil"
	"github.com/lox/holdemtables/internal/registry"
	"github.com/lox/holdemtables/internal/server"
	"github.com/lox/holdemtables/internal/wallet"
)

var CLI struct {
	Config   string `short:"c" long:"config" default:"holdem-server.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" long:"addr" help:"Host to bind to (overrides config)"`
	Port     int    `short:"p" long:"port" help:"Port to listen on (overrides config)"`
	LogLevel string `short:"l" long:"log-level" help:"Log level (overrides config)"`
	Wallet   string `long:"wallet" enum:",memory,sqlite" default:"" help:"Wallet driver (overrides config)"`
	WalletDB string `long:"wallet-db" help:"SQLite wallet path (overrides config)"`
	Seed     int64  `long:"seed" help:"Shuffle seed, 0 for random (overrides config)"`
}

func main() {
	ctx := kong.Parse(&CLI)

	cfg, err := server.LoadServerConfig(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		ctx.Exit(1)
	}

	// Apply command line overrides
	if CLI.Addr != "" {
		cfg.Server.Address = CLI.Addr
	}
	if CLI.Port != 0 {
		cfg.Server.Port = CLI.Port
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}
	if CLI.Wallet != "" {
		cfg.Wallet.Driver = CLI.Wallet
	}
	if CLI.WalletDB != "" {
		cfg.Wallet.Path = CLI.WalletDB
	}
	if CLI.Seed != 0 {
		cfg.Server.Seed = CLI.Seed
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		ctx.Exit(1)
	}

	logger := log.New(os.Stderr)
	level, err := log.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		ctx.Exit(1)
	}
}

func run(cfg *server.ServerConfig, logger *log.Logger) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, closeWallet, err := openWallet(sigCtx, cfg.Wallet, logger)
	if err != nil {
		return err
	}
	defer closeWallet()

	grace, err := cfg.ReconnectGrace()
	if err != nil {
		return err
	}
	seed := randutil.Seed(cfg.Server.Seed)

	settler := wallet.NewSettler(w, wallet.WithSettlerLogger(logger))
	wsServer := server.NewServer(cfg.GetServerAddress(), logger)
	reg := registry.New(w, settler,
		registry.WithLogger(logger),
		registry.WithObserver(wsServer),
		registry.WithReconnectGrace(grace),
		registry.WithSeed(seed),
	)
	wsServer.SetRegistry(reg)

	for _, tc := range cfg.Tables {
		gc, err := tc.GameConfig()
		if err != nil {
			return err
		}
		if _, err := reg.CreateTable(tc.Name, gc); err != nil {
			return fmt.Errorf("create table %s: %w", tc.Name, err)
		}
	}

	logger.Info("Starting Holdem Server",
		"addr", cfg.GetServerAddress(),
		"tables", len(cfg.Tables),
		"wallet", cfg.Wallet.Driver,
		"seed", seed)

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		return wsServer.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		return reg.Close()
	})
	err = g.Wait()

	if unsettled := settler.Close(); len(unsettled) > 0 {
		logger.Error("Shutdown with unsettled credits", "count", len(unsettled))
	}
	return err
}

func openWallet(ctx context.Context, cfg *server.WalletSettings, logger *log.Logger) (wallet.Wallet, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := wallet.OpenSQLite(ctx, cfg.Path, cfg.InitialBalance)
		if err != nil {
			return nil, nil, fmt.Errorf("open wallet %s: %w", cfg.Path, err)
		}
		logger.Info("Using SQLite wallet", "path", cfg.Path)
		return db, func() { _ = db.Close() }, nil
	default:
		logger.Warn("Using in-memory wallet, balances are lost on exit")
		return wallet.NewMemory(cfg.InitialBalance), func() {}, nil
	}
}
