// Пакет server — HTTP-сервер Converter с TLS и graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apierrors "github.com/bigkaa/goartstore/converter/internal/api/errors"
	"github.com/bigkaa/goartstore/converter/internal/api/generated"
	"github.com/bigkaa/goartstore/converter/internal/api/middleware"
	"github.com/bigkaa/goartstore/converter/internal/config"
)

// rateLimitedPaths — endpoints, на которые действует per-IP ограничение.
var rateLimitedPaths = []string{"/convert", "/remove-audio", "/merge"}

// Routes — обработчики, монтируемые вне сгенерированного роутера.
type Routes struct {
	// API — реализация generated.ServerInterface
	API generated.ServerInterface
	// Download — раздача артефактов по {filename}
	Download http.HandlerFunc
	// UI — встроенный браузерный клиент (/ и /app.js), может быть nil
	UI http.Handler
	// RateLimiter — per-IP ограничение конвертаций, может быть nil
	RateLimiter *middleware.RateLimiter
}

// Server — HTTP-сервер Converter.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, routes Routes) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, logger, routes),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	if cfg.TLSEnabled() {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewHandler собирает chi-роутер со всеми маршрутами и middleware,
// обёрнутый в OpenTelemetry HTTP instrumentation.
func NewHandler(cfg *config.Config, logger *slog.Logger, routes Routes) http.Handler {
	router := chi.NewRouter()

	prefixes := append([]string{cfg.DownloadPrefix}, cfg.DownloadAliases...)

	// Middleware
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware(prefixes...))
	router.Use(middleware.CORS(cfg.AllowedOrigins, logger))
	if routes.RateLimiter != nil {
		router.Use(routes.RateLimiter.Middleware(rateLimitedPaths...))
	}

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "Not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.WriteError(w, http.StatusMethodNotAllowed, apierrors.CodeBadRequest, "Method not allowed")
	})

	// Раздача артефактов: основной префикс и алиасы
	for _, prefix := range prefixes {
		router.Get(prefix+"/{filename}", routes.Download)
		router.Head(prefix+"/{filename}", routes.Download)
	}

	if routes.UI != nil {
		router.Get("/", routes.UI.ServeHTTP)
		router.Get("/app.js", routes.UI.ServeHTTP)
	}

	// Все endpoints из ServerInterface через сгенерированный роутер
	generated.HandlerWithOptions(routes.API, generated.ChiServerOptions{
		BaseRouter: router,
		ErrorHandlerFunc: func(w http.ResponseWriter, _ *http.Request, err error) {
			apierrors.BadRequest(w, err.Error())
		},
	})

	return otelhttp.NewHandler(router, "converter")
}

// MetricsHandler — обработчик для /metrics, делегирующий в Prometheus.
type MetricsHandler struct {
	promHandler http.Handler
}

// NewMetricsHandler создаёт обработчик Prometheus метрик.
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{
		promHandler: promhttp.Handler(),
	}
}

// GetMetrics реализует endpoint /metrics.
func (m *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	m.promHandler.ServeHTTP(w, r)
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown с таймаутом
// CV_SHUTDOWN_TIMEOUT: незавершённые конвертации получают время доработать.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.Bool("tls", s.cfg.TLSEnabled()),
		)

		var err error
		if s.cfg.TLSEnabled() {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...",
		slog.String("timeout", s.cfg.ShutdownTimeout.String()),
	)
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
