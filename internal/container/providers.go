package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-capture/internal/application/dispatcher"
	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/application/service"
	"github.com/garyjia/expense-capture/internal/domain/entity"
	"github.com/garyjia/expense-capture/internal/infrastructure/document"
	"github.com/garyjia/expense-capture/internal/infrastructure/export"
	"github.com/garyjia/expense-capture/internal/infrastructure/external/gemini"
	"github.com/garyjia/expense-capture/internal/infrastructure/external/llm"
	"github.com/garyjia/expense-capture/internal/infrastructure/external/openai"
	"github.com/garyjia/expense-capture/internal/infrastructure/metrics"
	"github.com/garyjia/expense-capture/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-capture/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-capture/internal/infrastructure/resilience"
	"github.com/garyjia/expense-capture/internal/infrastructure/storage"
	"github.com/garyjia/expense-capture/internal/infrastructure/worker"
	httpapi "github.com/garyjia/expense-capture/internal/interfaces/http"
	"github.com/garyjia/expense-capture/pkg/database"
	"github.com/garyjia/expense-capture/pkg/utils"
)

// ErrQueryPlanningDisabled is returned by queries when no OpenAI key is configured
var ErrQueryPlanningDisabled = errors.New("query planning is not configured")

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Bills port.BillRepository
	Files port.StoredFileRepository
}

// ModelBundle holds the model-backed collaborators.
type ModelBundle struct {
	Extractor port.DocumentExtractor
	Planner   port.QueryPlanner
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Ingest    *service.IngestService
	Confirm   *service.ConfirmService
	Bills     *service.BillService
	Retrieval *service.RetrievalService
	Query     *service.QueryService
}

// HTTP returns the services in the shape the HTTP adapter takes.
func (b *ServiceBundle) HTTP() httpapi.Services {
	return httpapi.Services{
		Ingester:  b.Ingest,
		Confirmer: b.Confirm,
		Bills:     b.Bills,
		Retriever: b.Retrieval,
		Answerer:  b.Query,
	}
}

// ProvideDatabase opens the database and applies migrations. The embedded
// schema is used unless a migrations directory is configured.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(conn, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrations(cfg.MigrationsDir)
	} else {
		err = migrator.Migrate()
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repository implementations.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &RepositoryBundle{
		Bills: repository.NewBillRepository(db, logger),
		Files: repository.NewStoredFileRepository(db, logger),
	}, nil
}

// ProvideStorage creates the configured file storage backend.
func ProvideStorage(ctx context.Context, cfg *StorageConfig, logger *zap.Logger) (port.FileStorage, func() error, error) {
	switch cfg.Backend {
	case "gcs":
		gcs, err := storage.NewGCSFileStorage(ctx, cfg.Bucket, cfg.Prefix, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gcs storage: %w", err)
		}
		return gcs, gcs.Close, nil
	case "local", "":
		return storage.NewLocalFileStorage(cfg.BaseDir, logger), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// ProvideModels creates the document extractor for the configured provider
// and the query planner. Planning needs an OpenAI key; without one queries
// fail with ErrQueryPlanningDisabled.
func ProvideModels(ctx context.Context, cfg *ExtractionConfig, logger *zap.Logger) (*ModelBundle, error) {
	var prompts *llm.PromptConfig
	if cfg.PromptsPath != "" {
		loaded, err := llm.LoadPrompts(cfg.PromptsPath)
		if err != nil {
			return nil, err
		}
		prompts = loaded
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	retry.OnRetry = func(attempt int, err error) {
		logger.Warn("Retrying model call", zap.Int("attempt", attempt), zap.Error(err))
	}

	bundle := &ModelBundle{}

	switch cfg.Provider {
	case "gemini":
		ext, err := gemini.NewExtractor(ctx, gemini.Config{
			APIKey:            cfg.Gemini.APIKey,
			BaseURL:           cfg.Gemini.BaseURL,
			Model:             cfg.Gemini.Model,
			RequestsPerMinute: cfg.RequestsPerMinute,
			Retry:             retry,
		}, prompts, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini extractor: %w", err)
		}
		bundle.Extractor = ext
	case "openai", "":
		bundle.Extractor = openai.NewExtractor(openai.Config{
			APIKey:            cfg.OpenAI.APIKey,
			BaseURL:           cfg.OpenAI.BaseURL,
			Model:             cfg.OpenAI.Model,
			RequestsPerMinute: cfg.RequestsPerMinute,
			Retry:             retry,
		}, prompts, document.NewRenderer(cfg.MaxPages, logger), logger)
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.Provider)
	}

	if cfg.Timeout > 0 {
		bundle.Extractor = &boundedExtractor{inner: bundle.Extractor, timeout: cfg.Timeout}
	}

	if cfg.OpenAI.APIKey != "" {
		model := cfg.QueryModel
		if model == "" {
			model = cfg.OpenAI.Model
		}
		bundle.Planner = openai.NewPlanner(openai.Config{
			APIKey:            cfg.OpenAI.APIKey,
			BaseURL:           cfg.OpenAI.BaseURL,
			Model:             model,
			RequestsPerMinute: cfg.RequestsPerMinute,
			Retry:             retry,
		}, prompts, logger)
	} else {
		logger.Warn("No OpenAI key configured, natural language queries are disabled")
		bundle.Planner = disabledPlanner{}
	}

	return bundle, nil
}

// ProvideDispatcher creates the event dispatcher and subscribes metrics to it.
func ProvideDispatcher(m *metrics.Metrics, logger *zap.Logger) dispatcher.Dispatcher {
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger)))
	if m != nil {
		m.Subscribe(d)
	}
	return d
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Storage   port.FileStorage
	Models    *ModelBundle
	Publisher service.Publisher
	Auth      *AuthConfig
	Listing   *ListingConfig
	Logger    *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.Models == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}

	auth := entity.NewAllowList(deps.Auth.AllowedUsers...)
	log := utils.NewKVLogger(deps.Logger)
	repos := deps.Repos

	return &ServiceBundle{
		Ingest: service.NewIngestService(
			repos.Bills, repos.Files, deps.Storage, deps.Models.Extractor,
			deps.TxManager, auth, deps.Publisher, log,
		),
		Confirm: service.NewConfirmService(
			repos.Bills, repos.Files, deps.TxManager, auth, deps.Publisher, log,
		),
		Bills: service.NewBillService(
			repos.Bills, export.NewXLSXExporter(deps.Logger), deps.Listing.ExportLimit, auth, log,
		),
		Retrieval: service.NewRetrievalService(repos.Files, deps.Storage, auth, log),
		Query:     service.NewQueryService(repos.Bills, deps.Models.Planner, auth, log),
	}, nil
}

// WorkerDeps holds dependencies for creating workers.
type WorkerDeps struct {
	Files     port.StoredFileRepository
	Storage   port.FileStorage
	Publisher worker.Publisher
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideWorkers creates the worker manager with every background worker.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil || deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}

	manager := worker.NewWorkerManager(deps.Logger)
	manager.Register(worker.NewUploadSweeper(worker.UploadSweeperConfig{
		Interval:  deps.WorkerCfg.SweepInterval,
		Retention: deps.WorkerCfg.UploadRetention,
		BatchSize: deps.WorkerCfg.SweepBatchSize,
	}, deps.Files, deps.Storage, deps.Publisher, deps.Logger))

	return manager, nil
}

// boundedExtractor limits how long a single extraction may run
type boundedExtractor struct {
	inner   port.DocumentExtractor
	timeout time.Duration
}

func (b *boundedExtractor) Extract(ctx context.Context, file port.UploadFile) (*port.Extraction, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.Extract(ctx, file)
}

type disabledPlanner struct{}

func (disabledPlanner) Plan(ctx context.Context, question string, today time.Time) (*entity.QueryPlan, error) {
	return nil, ErrQueryPlanningDisabled
}
