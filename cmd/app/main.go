package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"orderchain/cmd"
	httpin "orderchain/internal/adapters/in/http"
	"orderchain/internal/adapters/out/postgres"
	"orderchain/internal/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"go.uber.org/zap"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	shutdownTimeout = 10 * time.Second
	devTokenTTL     = 24 * time.Hour
)

func main() {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}
	configs, err := cmd.LoadConfig(os.Getenv)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	zapLogger, err := logger.New(configs.LogLevel, configs.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, configs, zapLogger); err != nil {
		zapLogger.Error("node stopped with error", zap.Error(err))
		_ = zapLogger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, configs cmd.Config, zapLogger *zap.Logger) error {
	if err := postgres.RunMigrations(configs.DSN()); err != nil {
		return err
	}
	gormDB, err := gorm.Open(postgresdriver.Open(configs.DSN()), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	ledgerDB, err := openLedgerDB(configs, gormDB)
	if err != nil {
		return err
	}

	app, err := cmd.NewCompositionRoot(configs, gormDB, ledgerDB, zapLogger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			zapLogger.Warn("failed to close kafka writer", zap.Error(closeErr))
		}
	}()

	server, err := app.CreateHTTPServer()
	if err != nil {
		return err
	}
	auth, err := app.CreateAuthenticator()
	if err != nil {
		return err
	}
	if configs.Env == logger.EnvDevelopment {
		logDevTokens(auth, app, zapLogger)
	}

	jobManager, err := app.CreateJobManager()
	if err != nil {
		return err
	}
	if err = jobManager.StartAll(); err != nil {
		return err
	}
	defer jobManager.StopAll()

	var wg sync.WaitGroup
	defer wg.Wait()
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()

	consumer, err := app.CreateKafkaConsumer()
	if err != nil {
		return err
	}
	if consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				_ = consumer.Close()
			}()
			if runErr := consumer.Run(consumerCtx); runErr != nil {
				zapLogger.Error("kafka consumer stopped", zap.Error(runErr))
			}
		}()
	}

	e := httpin.NewEcho(zapLogger)
	server.Register(e, auth)

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("http server listening",
			zap.String("port", configs.HTTPPort),
			zap.Stringers("principals", app.Identity().LocalPrincipals()),
		)
		serveErr <- e.Start(fmt.Sprintf("0.0.0.0:%s", configs.HTTPPort))
	}()

	select {
	case err = <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	zapLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// openLedgerDB connects to the shared ledger database, or returns vaultDB
// when the ledger tables live in the node's own database.
func openLedgerDB(configs cmd.Config, vaultDB *gorm.DB) (*gorm.DB, error) {
	if configs.LedgerBackend != cmd.LedgerBackendPostgres || configs.LedgerDatabaseDSN() == configs.DSN() {
		return vaultDB, nil
	}
	if err := postgres.RunMigrations(configs.LedgerDatabaseDSN()); err != nil {
		return nil, err
	}
	ledgerDB, err := gorm.Open(postgresdriver.Open(configs.LedgerDatabaseDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to ledger database: %w", err)
	}
	return ledgerDB, nil
}

// logDevTokens prints a bearer token for every local principal.
func logDevTokens(auth *httpin.Authenticator, app *cmd.CompositionRoot, zapLogger *zap.Logger) {
	for _, p := range app.Identity().LocalPrincipals() {
		token, err := auth.IssueToken(p, devTokenTTL)
		if err != nil {
			zapLogger.Warn("failed to issue development token", zap.Stringer("principal", p), zap.Error(err))
			continue
		}
		zapLogger.Info("development token", zap.Stringer("principal", p), zap.String("token", token))
	}
}
