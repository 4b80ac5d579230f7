// Package server exposes the HTTP surface: one endpoint per core operation,
// JSON in and out, with an explicit success flag on every response.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"aifeed/internal/config"
	"aifeed/internal/core"
	"aifeed/internal/discovery"
	"aifeed/internal/docstore"
	"aifeed/internal/llm"
	"aifeed/internal/logger"
	"aifeed/internal/pipeline"
)

// PreferenceStore is the preference surface the server consumes.
type PreferenceStore interface {
	Save(ctx context.Context, userID string, preferences map[string]map[string]core.SubtopicSources, detail core.DetailLevel, language string) (*core.UserPreferences, error)
	Get(ctx context.Context, userID string) (*core.UserPreferences, error)
	SaveScheduling(ctx context.Context, sched core.SchedulingPreferences) error
	SaveDeviceToken(ctx context.Context, userID, token string) error
}

// Refresher runs the article fetch stage on demand.
type Refresher interface {
	Refresh(ctx context.Context, userID string) (*core.UserArticlesBundle, error)
}

// ReportBuilder runs the report stage on demand.
type ReportBuilder interface {
	BuildUserReport(ctx context.Context, userID string) (*core.UserReportBundle, error)
}

// PodcastGenerator runs the podcast stage on demand.
type PodcastGenerator interface {
	Generate(ctx context.Context, userID, presenter, language, voiceID string) (*core.PodcastArtifact, error)
}

// UpdateRunner runs the full pipeline.
type UpdateRunner interface {
	RunUpdate(ctx context.Context, userID, presenter, language, voiceID string) *pipeline.UpdateResult
}

// DiscoveryService answers onboarding turns and extracts entities.
type DiscoveryService interface {
	Answer(ctx context.Context, language, userPreferences string, history []llm.Message) (*discovery.Reply, error)
	ExtractEntities(ctx context.Context, userID, language string, history []llm.Message) ([]string, error)
}

// Deps carries everything the server needs.
type Deps struct {
	Preferences PreferenceStore
	Refresher   Refresher
	Reports     ReportBuilder
	Podcasts    PodcastGenerator
	Updates     UpdateRunner
	Discovery   DiscoveryService
	Docs        docstore.Store
}

// Server is the HTTP server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	deps       Deps
	cfg        config.Server
}

// New creates the HTTP server.
func New(deps Deps, cfg config.Server) *Server {
	s := &Server{
		router: chi.NewRouter(),
		deps:   deps,
		cfg:    cfg,
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health_check", s.handleHealthCheck)

	s.router.Post("/save_initial_preferences", s.handleSaveInitialPreferences)
	s.router.Post("/get_user_preferences", s.handleGetUserPreferences)
	s.router.Post("/update_specific_subjects", s.handleUpdateSpecificSubjects)
	s.router.Post("/answer", s.handleAnswer)
	s.router.Post("/save_scheduling_preferences", s.handleSaveSchedulingPreferences)
	s.router.Post("/register_device", s.handleRegisterDevice)

	s.router.Post("/refresh_articles_endpoint", s.handleRefreshArticles)
	s.router.Post("/get_complete_report_endpoint", s.handleCompleteReport)
	s.router.Post("/generate_simple_podcast_endpoint", s.handleGeneratePodcast)
	s.router.Post("/update_endpoint", s.handleUpdate)
	s.router.Post("/get_user_articles_endpoint", s.handleGetUserArticles)
	s.router.Post("/get_aifeed_reports_endpoint", s.handleGetReports)
}

// Router exposes the handler tree. Used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving and blocks until the listener fails or closes.
func (s *Server) Start() error {
	logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	return nil
}
