package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mongodb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/descriptor"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/service"
	"go.uber.org/zap"
)

// app holds the components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	backend  *database.Backend
	store    *descriptor.Store
	embedder *embedder.Client
	svc      *service.Service
}

// registerBackends makes the configured storage backends available to database.Open.
func registerBackends(cfg *config.Config) {
	postgres.Register(&cfg.Database)
	mongodb.Register(&cfg.Mongo)
}

// newSearcher returns the searcher selected by MATCH_INDEX and the policy it
// can serve. The HNSW searcher only answers best-match queries.
func newSearcher(cfg *config.MatchConfig, logger *zap.Logger) (facematch.Searcher, facematch.Policy, error) {
	policy, err := facematch.ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, "", err
	}

	switch cfg.Index {
	case "", config.IndexLinear:
		return facematch.NewLinearSearcher(), policy, nil
	case config.IndexHNSW:
		if policy != facematch.PolicyBest {
			logger.Warn("hnsw index only supports best-match, switching match policy",
				zap.String("configured", string(policy)))
		}
		return facematch.NewHNSWSearcher(), facematch.PolicyBest, nil
	default:
		return nil, "", fmt.Errorf("unknown match index %q (use %s or %s)", cfg.Index, config.IndexLinear, config.IndexHNSW)
	}
}

// loadLocation resolves ATTENDANCE_TIMEZONE, empty means the local zone.
func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid ATTENDANCE_TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

// setupApp loads configuration, connects the storage backend and loads the
// descriptor file.
func setupApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, err := logging.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if cfg.Descriptors.Path == "" {
		logger.Warn("DESCRIPTOR_PATH is not set, enrolled faces are kept in memory only")
	}
	if cfg.Database.Backend == config.BackendPostgres && cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required for the postgres backend")
	}

	loc, err := loadLocation(cfg.Attendance.TimeZone)
	if err != nil {
		return nil, err
	}

	registerBackends(cfg)
	backend, err := database.Open(ctx, cfg.Database.Backend)
	if err != nil {
		return nil, err
	}
	logger.Info("storage backend connected", zap.String("backend", backend.Name))

	store := descriptor.NewStore(cfg.Descriptors.Path, cfg.Embedding.Dim, logger.Named("descriptors"))
	store.Load()
	logger.Info("descriptors loaded", zap.Int("count", store.Len()), zap.Int("dim", store.Dim()))

	searcher, policy, err := newSearcher(&cfg.Match, logger)
	if err != nil {
		_ = backend.Shutdown(ctx)
		return nil, err
	}
	matcher := facematch.NewMatcher(store, backend.Owners, facematch.Options{
		Policy:    policy,
		Tolerance: cfg.Match.Tolerance,
		Searcher:  searcher,
		Logger:    logger.Named("matcher"),
	})

	l := ledger.New(backend.Attendance, backend.Owners,
		ledger.WithLocation(loc), ledger.WithLogger(logger.Named("ledger")))

	client := embedder.NewClient(cfg.Embedding.URL, constants.EmbeddingTimeout)

	svc := service.New(backend, store, matcher, l, client, service.Options{
		FaceCropDir: cfg.Attendance.FaceCropDir,
		Logger:      logger.Named("service"),
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		store:    store,
		embedder: client,
		svc:      svc,
	}, nil
}

// close persists the descriptors and disconnects the backend.
func (a *app) close() {
	if err := a.store.Persist(); err != nil {
		a.logger.Error("failed to persist descriptors", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.backend.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to close storage backend", zap.Error(err))
	}
	_ = a.logger.Sync()
}
