package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	ierr "github.com/scau009/dwlite-sub002/internal/errors"
	"github.com/scau009/dwlite-sub002/internal/logger"
	"github.com/scau009/dwlite-sub002/rules"
)

type Server struct {
	engine *rules.Engine
	tester *rules.Tester
	// db is nil when running on the in-memory store
	db     *sql.DB
	log    *logger.Logger
	router *chi.Mux
}

func NewServer(engine *rules.Engine, tester *rules.Tester, db *sql.DB, log *logger.Logger) *Server {
	if log == nil {
		log = logger.L
	}
	s := &Server{
		engine: engine,
		tester: tester,
		db:     db,
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/api/v1/health", s.handleHealth)

	r.Route("/api/v1/rules", func(r chi.Router) {
		// Authoring helpers
		r.Get("/reference", s.handleReference)
		r.Post("/validate", s.handleValidate)
		r.Post("/test", s.handleTest)
		r.Post("/revalidate", s.handleRevalidate)

		// Rule management
		r.Post("/", s.handleCreateRule)
		r.Get("/", s.handleListRules)
		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", s.handleGetRule)
			r.Put("/", s.handleUpdateRule)
			r.Delete("/", s.handleDeleteRule)
			r.Post("/assignments", s.handleCreateAssignment)
		})
	})

	// Assignment management
	r.Route("/api/v1/assignments", func(r chi.Router) {
		r.Get("/", s.handleListAssignments)
		r.Patch("/{id}", s.handleUpdateAssignment)
		r.Delete("/{id}", s.handleDeleteAssignment)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped with OpenTelemetry HTTP instrumentation.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s, "rules-api")
}

func (s *Server) ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// requestLogger logs one line per request and feeds the HTTP counters.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			}
			switch {
			case status >= 500:
				logger.ErrorHttp5xx()
				log.Errorw("request failed", fields...)
			case status >= 400:
				logger.WarnHttp4xx(status)
				log.Infow("request rejected", fields...)
			default:
				log.Debugw("request served", fields...)
			}
		})
	}
}

// Helper functions
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return ierr.WithError(err).
			WithHint("Request body must be valid JSON").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondErr maps err to a status through its sentinel mark.
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := ierr.HTTPStatusFromErr(err)
	resp := ErrorResponse{
		Error:   err.Error(),
		Hint:    ierr.Hint(err),
		Details: ierr.ReportableDetails(err),
	}
	if status >= 500 {
		s.log.Errorw("request error", "error", err)
		resp = ErrorResponse{Error: "internal server error"}
	}
	respondJSON(w, status, resp)
}
