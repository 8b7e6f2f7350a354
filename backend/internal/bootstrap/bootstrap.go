// Package bootstrap builds the engine from configuration. The server and the admin CLI share it.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"course-graph/backend/internal/cache"
	"course-graph/backend/internal/course"
	"course-graph/backend/internal/engine"
	"course-graph/backend/internal/graph"
	"course-graph/backend/internal/store"
	"course-graph/backend/internal/store/sqlstore"
	"course-graph/backend/pkg/config"
	"course-graph/backend/pkg/logger"
)

// Services are the wired engine components
type Services struct {
	Courses  *engine.GraphStore
	Concepts *engine.ConceptGraphStore

	closers []func() error
}

// Close releases every backend opened by Open
func (s *Services) Close() {
	log := logger.Get()
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Warn("Failed to close backend", zap.Error(err))
		}
	}
}

// Open connects the configured backends. Backends named by both COURSE_STORE and CONCEPT_STORE
// are opened once and shared.
func Open(ctx context.Context, cfg *config.Config) (*Services, error) {
	log := logger.Get()
	svc := &Services{}
	opened := make(map[string]store.Store)
	var repo *graph.Repository

	open := func(backend string) (store.Store, error) {
		if s, ok := opened[backend]; ok {
			return s, nil
		}
		var (
			s   store.Store
			err error
		)
		switch backend {
		case config.BackendMemory:
			s = store.NewMemoryStore()
		case config.BackendSQLite:
			s, err = sqlstore.OpenSQLite(cfg.SQLitePath)
		case config.BackendPostgres:
			s, err = sqlstore.OpenPostgres(cfg.PostgresDSN)
		case config.BackendNeo4j:
			repo, err = openNeo4j(ctx, cfg)
			s = repo
		default:
			err = fmt.Errorf("unsupported backend %q", backend)
		}
		if err != nil {
			return nil, err
		}
		opened[backend] = s
		svc.closers = append(svc.closers, s.Close)
		log.Info("Storage backend ready", zap.String("backend", backend))
		return s, nil
	}

	courseStore, err := open(cfg.CourseStore)
	if err != nil {
		svc.Close()
		return nil, err
	}
	conceptStore, err := open(cfg.ConceptStore)
	if err != nil {
		svc.Close()
		return nil, err
	}

	var snapshots cache.SnapshotCache = cache.Noop{}
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.CacheTTL)
		if err != nil {
			// The cache is optional; the store stays authoritative without it
			log.Warn("Redis cache unavailable, continuing without cache", zap.Error(err))
		} else {
			snapshots = rc
			svc.closers = append(svc.closers, rc.Close)
		}
	}

	svc.Courses = engine.NewGraphStore(courseStore, snapshots, course.RegeneratePolicy(cfg.RegenerateApprovedPolicy))
	svc.Concepts = engine.NewConceptGraphStore(conceptStore, snapshots)
	if repo != nil && cfg.ConceptStore == config.BackendNeo4j {
		svc.Concepts.WithTraverser(repo)
	}
	return svc, nil
}

func openNeo4j(ctx context.Context, cfg *config.Config) (*graph.Repository, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}
	repo := graph.NewRepository(driver)
	if err := repo.EnsureSchema(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}
