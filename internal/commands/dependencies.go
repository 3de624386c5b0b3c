package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FACorreiaa/statement-import/internal/domain/import/repository"
	"github.com/FACorreiaa/statement-import/internal/domain/import/session"
	"github.com/FACorreiaa/statement-import/internal/domain/import/vocabulary"
	"github.com/FACorreiaa/statement-import/pkg/config"
	"github.com/FACorreiaa/statement-import/pkg/storage"
)

// Dependencies holds everything a command needs
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	Vocabulary vocabulary.Vocabulary
	Pipeline   *session.Pipeline

	Registry *prometheus.Registry
	Metrics  *session.Metrics

	// Set only when the command needs the database
	Pool       *pgxpool.Pool
	Repository *repository.PostgresRepository

	// Nil when no archive path is configured
	Archive storage.Storage

	metricsServer *http.Server
}

type dependencyOptions struct {
	// vocabularyPath overrides IMPORT_VOCABULARY_PATH
	vocabularyPath string
	withDatabase   bool
	withArchive    bool
	// archivePath overrides IMPORT_ARCHIVE_PATH
	archivePath string
}

// InitDependencies initializes the dependencies of one command run
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts dependencyOptions) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initVocabulary(opts.vocabularyPath); err != nil {
		return nil, fmt.Errorf("failed to init vocabulary: %w", err)
	}

	deps.initPipeline()

	if err := deps.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	if opts.withDatabase {
		if err := deps.initDatabase(ctx); err != nil {
			deps.Cleanup()
			return nil, fmt.Errorf("failed to init database: %w", err)
		}
		deps.initRepositories()
	}

	if opts.withArchive {
		if err := deps.initStorage(opts.archivePath); err != nil {
			deps.Cleanup()
			return nil, fmt.Errorf("failed to init archive: %w", err)
		}
	}

	logger.Debug("dependencies initialized",
		"database", opts.withDatabase,
		"archive", deps.Archive != nil,
	)

	return deps, nil
}

func (d *Dependencies) initVocabulary(override string) error {
	path := d.Config.Import.VocabularyPath
	if override != "" {
		path = override
	}
	if path == "" {
		d.Vocabulary = vocabulary.Default()
		return nil
	}

	vocab, err := vocabulary.Load(path)
	if err != nil {
		return err
	}
	d.Vocabulary = vocab
	d.Logger.Debug("vocabulary loaded", "path", path)
	return nil
}

func (d *Dependencies) initPipeline() {
	d.Pipeline = session.NewPipeline(d.Vocabulary, d.Logger)
}

// initMetrics always builds the registry; the endpoint is served only when enabled.
func (d *Dependencies) initMetrics() error {
	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.Metrics = session.NewMetrics(d.Registry)

	if !d.Config.Observability.MetricsEnabled {
		return nil
	}

	addr := d.Config.Observability.MetricsAddr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	d.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := d.metricsServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.Logger.Error("metrics server stopped", "error", err)
		}
	}()

	d.Logger.Info("metrics endpoint listening", "addr", listener.Addr().String())
	return nil
}

func (d *Dependencies) initDatabase(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(d.Config.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to parse database config: %w", err)
	}
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 5 * time.Minute
	poolCfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	d.Pool = pool
	d.Logger.Info("database connected", "host", d.Config.Database.Host, "database", d.Config.Database.Database)
	return nil
}

func (d *Dependencies) initRepositories() {
	d.Repository = repository.NewPostgresRepository(d.Pool)
}

func (d *Dependencies) initStorage(override string) error {
	path := d.Config.Import.ArchivePath
	if override != "" {
		path = override
	}
	if path == "" {
		return nil
	}

	archive, err := storage.NewLocalStorage(path)
	if err != nil {
		return err
	}
	d.Archive = archive
	d.Logger.Debug("archive opened", "path", path)
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := d.metricsServer.Shutdown(ctx); err != nil {
			d.Logger.Warn("failed to stop metrics server", "error", err)
		}
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	d.Logger.Debug("cleanup completed")
}
