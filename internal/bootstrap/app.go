package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/HugoCL/mlh-code-check-sub000/internal/analyses"
	"github.com/HugoCL/mlh-code-check-sub000/internal/github"
	"github.com/HugoCL/mlh-code-check-sub000/internal/llm"
	"github.com/HugoCL/mlh-code-check-sub000/internal/llm/openai"
	"github.com/HugoCL/mlh-code-check-sub000/internal/queue"
	"github.com/HugoCL/mlh-code-check-sub000/internal/repositories"
	"github.com/HugoCL/mlh-code-check-sub000/internal/rubrics"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/config"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/server"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/storage/db"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/storage/object"
	localstore "github.com/HugoCL/mlh-code-check-sub000/internal/shared/storage/object/local"
	s3store "github.com/HugoCL/mlh-code-check-sub000/internal/shared/storage/object/s3"
	"github.com/HugoCL/mlh-code-check-sub000/internal/usage"
)

// App holds shared dependencies for the API server and the queue worker.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client

	RepositoriesRepo repositories.Repo
	RubricsRepo      rubrics.Repo
	AnalysesRepo     analyses.Repo

	RepositoriesService *repositories.Service
	RubricsService      *rubrics.Service
	UsageService        *usage.Service
	AnalysesService     *analyses.Service
	AnalysisProcessor   AnalysisProcessor
	Scheduler           *analyses.Scheduler
	Tracker             *analyses.Tracker

	RepositoryHandler *repositories.Handler
	RubricHandler     *rubrics.Handler
	AnalysisHandler   *analyses.Handler
	UsageHandler      *usage.Handler
}

// AnalysisProcessor allows callers to override analysis processing for tests.
type AnalysisProcessor interface {
	Process(ctx context.Context, analysisID string) error
}

// Options tune Build for the binary being started.
type Options struct {
	// Worker disables in-process dispatch so runs only arrive via the queue.
	Worker bool
}

// Build prepares shared dependencies without starting the server.
func Build(cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var queueClient queue.Client
	if !opts.Worker && strings.TrimSpace(cfg.QueueURL) != "" {
		queueClient, err = queue.NewSQSClient(ctx)
		if err != nil {
			return nil, err
		}
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}
	if err := buildServices(ctx, app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:            app.Config,
		RepositoryHandler: app.RepositoryHandler,
		RubricHandler:     app.RubricHandler,
		AnalysisHandler:   app.AnalysisHandler,
		UsageHandler:      app.UsageHandler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	defaults := db.DefaultServerOptions()
	if opts.Worker {
		defaults = db.DefaultWorkerOptions()
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(defaults))
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.SnapshotStore {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(ctx context.Context, app *App) error {
	if app.DB != nil {
		app.RepositoriesRepo = &repositories.PGRepo{DB: app.DB}
		app.RubricsRepo = &rubrics.PGRepo{DB: app.DB}
		app.AnalysesRepo = &analyses.PGRepo{DB: app.DB}
		app.UsageService = usage.NewPostgresService(usage.NewPGStore(app.DB))
	} else {
		app.RepositoriesRepo = repositories.NewMemoryRepo()
		app.RubricsRepo = rubrics.NewMemoryRepo()
		app.AnalysesRepo = analyses.NewMemoryRepo()
		app.UsageService = usage.NewService()
	}

	evaluator := llm.Evaluator(llm.PlaceholderEvaluator{})
	if app.Config.LLMProvider == "openai" {
		client, err := openai.NewClient(os.Getenv("OPENAI_API_KEY"), app.Config.LLMModel)
		if err != nil {
			if !isDevLike(app.Config.Env) {
				return err
			}
			log.Printf("bootstrap: openai client unavailable; using placeholder evaluator: %v", err)
		} else {
			evaluator = client
		}
	}

	fetcher := github.NewFetcher(ctx, app.Config.GitHubAPIBaseURL, app.Config.GitHubToken, github.DefaultLimits())

	app.Tracker = analyses.NewTracker()
	app.Scheduler = &analyses.Scheduler{
		Repo:    app.AnalysesRepo,
		Repos:   app.RepositoriesRepo,
		Fetcher: fetcher,
		Worker: &analyses.Worker{
			Repo:      app.AnalysesRepo,
			Evaluator: evaluator,
			Retry:     analyses.DefaultRetryPolicy(),
		},
		Store:       app.Store,
		Progress:    app.Tracker,
		Concurrency: app.Config.EvalConcurrency,
	}

	app.RepositoriesService = &repositories.Service{Repo: app.RepositoriesRepo}
	app.RubricsService = &rubrics.Service{Repo: app.RubricsRepo}
	app.AnalysesService = &analyses.Service{
		Repo:         app.AnalysesRepo,
		Rubrics:      app.RubricsRepo,
		Repositories: app.RepositoriesRepo,
		Usage:        app.UsageService,
		Queue:        app.Queue,
		Scheduler:    app.Scheduler,
		Tracker:      app.Tracker,
	}
	app.AnalysisProcessor = app.AnalysesService

	app.RepositoryHandler = repositories.NewHandler(app.RepositoriesService)
	app.RubricHandler = rubrics.NewHandler(app.RubricsService)
	app.AnalysisHandler = analyses.NewHandler(app.AnalysesService)
	app.UsageHandler = usage.NewHandler(app.UsageService)
	return nil
}
