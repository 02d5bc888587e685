package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/airyra/accesslog/internal/api/handler"
	"github.com/airyra/accesslog/internal/api/middleware"
	"github.com/airyra/accesslog/pkg/accesslog"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// Logger receives panics and websocket errors.
	Logger *zap.SugaredLogger
	// AccessLog configures the access log middleware.
	AccessLog []accesslog.Option
	// AllowedOrigins enables CORS for the listed origins.
	AllowedOrigins []string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg RouterConfig) (*chi.Mux, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	accessLog, err := middleware.AccessLog(cfg.AccessLog...)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	// Global middleware chain. RealIP and RequestID run first so the access
	// log sees the forwarded client address and the request ID.
	r.Use(middleware.Recovery(logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(accessLog)

	var checkOrigin func(*http.Request) bool
	if len(cfg.AllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		})
		r.Use(c.Handler)
		checkOrigin = originChecker(cfg.AllowedOrigins)
	}

	// Initialize handlers
	systemHandler := handler.NewSystemHandler()
	echoHandler := handler.NewEchoHandler()
	wsHandler := handler.NewWebSocketHandler(logger, checkOrigin)

	r.Get("/v1/health", systemHandler.Health)

	r.Post("/v1/echo", echoHandler.Echo)
	r.Get("/v1/status/{code}", echoHandler.Status)
	r.Get("/v1/panic", echoHandler.Panic)

	r.Get("/v1/ws", wsHandler.Echo)

	return r, nil
}

// originChecker accepts websocket handshakes from the CORS origins.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
