// Package server wires the MedKeeper components together: the registry
// store and its backend, document storage, mail delivery, the services, the
// gRPC endpoint and the ingestion sources.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/medkeeper/internal/logging"
	"github.com/dmitrijs2005/medkeeper/internal/server/config"
	"github.com/dmitrijs2005/medkeeper/internal/server/ingest"
	"github.com/dmitrijs2005/medkeeper/internal/server/notify"
	"github.com/dmitrijs2005/medkeeper/internal/server/registry"
	"github.com/dmitrijs2005/medkeeper/internal/server/registry/sqlbackend"
	"github.com/dmitrijs2005/medkeeper/internal/server/services"
	"github.com/dmitrijs2005/medkeeper/internal/server/storage"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/medkeeper/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   *registry.Store
	server  *gs.GRPCServer
	sources []ingest.Source
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {

	backend, err := openBackend(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	store := registry.NewStore(backend)

	docs, err := openStorage(ctx, c)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	sender, err := newSender(c, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("smtp init error: %w", err)
	}

	patients := services.NewPatientService(store, logger)
	sessions := services.NewSessionService(store, logger, c.SessionTTL)
	accounts := services.NewAccountService(store, sessions, sender, logger, services.AccountConfig{
		MinPasswordLength: c.MinPasswordLength,
		ResetTTL:          c.ResetTTL,
	})
	sharing := services.NewSharingService(store, logger)
	coordinator := ingest.NewCoordinator(patients, docs, logger)

	srv, err := gs.NewGRPCServer(c.EndpointAddrGRPC, logger, gs.Services{
		Patients: patients,
		Sessions: sessions,
		Accounts: accounts,
		Sharing:  sharing,
		Ingest:   coordinator,
		Storage:  docs,
	}, c.AdminSecret, gs.Options{
		IngestWorkers:  c.IngestWorkers,
		DownloadURLTTL: c.DownloadURLTTL,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	app := &App{config: c, logger: logger, store: store, server: srv}

	if c.KafkaEnabled() {
		src, err := ingest.NewKafkaSource(ingest.KafkaConfig{
			Brokers: c.KafkaBrokers,
			Topic:   c.KafkaTopic,
			GroupID: c.KafkaGroupID,
		}, coordinator, logger)
		if err != nil {
			app.close(ctx)
			return nil, fmt.Errorf("kafka init error: %w", err)
		}
		app.sources = append(app.sources, src)
	}

	if c.SQSEnabled() {
		src, err := ingest.NewSQSSource(ctx, ingest.SQSConfig{
			Region:    c.SQSRegion,
			Endpoint:  c.SQSEndpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			QueueName: c.SQSQueueName,
			QueueURL:  c.SQSQueueURL,
		}, coordinator, logger)
		if err != nil {
			app.close(ctx)
			return nil, fmt.Errorf("sqs init error: %w", err)
		}
		app.sources = append(app.sources, src)
	}

	return app, nil
}

func openBackend(ctx context.Context, c *config.Config) (registry.Backend, error) {
	switch c.DatabaseDriver {
	case config.DriverMemory:
		return registry.NewMemoryBackend(), nil
	case config.DriverSQLite:
		return sqlbackend.Open(ctx, sqlbackend.SQLite, c.DatabaseDSN)
	case config.DriverPostgres:
		return sqlbackend.Open(ctx, sqlbackend.Postgres, c.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", c.DatabaseDriver)
	}
}

// openStorage returns S3 storage when a bucket is configured, local storage
// when a directory is, and nil when neither is.
func openStorage(ctx context.Context, c *config.Config) (storage.DocumentStorage, error) {
	if c.S3Bucket != "" {
		return storage.NewS3Storage(ctx, storage.S3Config{
			Region:    c.S3Region,
			Endpoint:  c.S3BaseEndpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Bucket:    c.S3Bucket,
		})
	}
	if c.StorageDir != "" {
		return storage.NewLocalStorage(c.StorageDir)
	}
	return nil, nil
}

func newSender(c *config.Config, logger logging.Logger) (notify.Sender, error) {
	if c.SMTPHost == "" {
		return notify.NewLogSender(logger), nil
	}
	return notify.NewSMTPSender(notify.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves gRPC and consumes the configured sources until ctx is cancelled
// or a signal arrives, then releases every resource. The first component
// failure stops the others and is returned.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.server.Run(gctx)
	})
	for _, src := range app.sources {
		g.Go(func() error {
			return src.Run(gctx)
		})
	}

	err := g.Wait()
	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")
	return err
}

func (app *App) close(ctx context.Context) {
	var errs []error
	for _, src := range app.sources {
		errs = append(errs, src.Close())
	}
	errs = append(errs, app.store.Close())
	if err := errors.Join(errs...); err != nil {
		app.logger.Error(ctx, "shutdown", "error", err.Error())
	}
}
