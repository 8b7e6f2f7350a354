package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"course-graph/backend/internal/api"
	"course-graph/backend/internal/bootstrap"
	"course-graph/backend/pkg/config"
	"course-graph/backend/pkg/logger"
	"course-graph/backend/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting course graph server...",
		zap.String("course_store", cfg.CourseStore),
		zap.String("concept_store", cfg.ConceptStore),
		zap.String("regenerate_approved_policy", cfg.RegenerateApprovedPolicy),
	)

	shutdownTracing, err := tracing.Init(cfg.TracingEnabled, os.Stdout)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	ctx := context.Background()
	svc, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open storage", zap.Error(err))
	}
	defer svc.Close()

	router := newRouter(cfg, log, api.NewHandler(svc.Courses, svc.Concepts))

	servers := []*http.Server{{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}}
	if cfg.MetricsEnabled && cfg.MetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		servers = append(servers, &http.Server{Addr: ":" + cfg.MetricsPort, Handler: mux})
	}

	// Wait for interrupt signal
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			log.Info("Server started", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen on %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("Server forced to shutdown", zap.Error(err))
			}
		}
		return shutdownTracing(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
	}
	log.Info("Server exited")
}

func newRouter(cfg *config.Config, log *zap.Logger, h *api.Handler) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(api.RequestLogger(log))
	router.Use(gin.Recovery())
	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware("course-graph"))
	}
	router.Use(api.CORS())

	// Served on the API port too when no dedicated metrics port is set
	if cfg.MetricsEnabled && cfg.MetricsPort == "" {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	h.Register(router)
	return router
}
