// Пакет server — HTTP-сервер shipdesk с graceful shutdown.
// Без TLS: TLS termination выполняется на ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/shipdesk/internal/api/errors"
	"github.com/bigkaa/shipdesk/internal/api/handlers"
	"github.com/bigkaa/shipdesk/internal/api/middleware"
	"github.com/bigkaa/shipdesk/internal/config"
)

// Server — HTTP-сервер shipdesk.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
func New(cfg *config.Config, logger *slog.Logger, api *handlers.APIHandler, health *handlers.HealthHandler, jwtAuth *middleware.JWTAuth) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, api, health, jwtAuth),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает таблицу маршрутов.
// Публичные маршруты проходят без токена, административные требуют роль admin.
func NewRouter(logger *slog.Logger, api *handlers.APIHandler, health *handlers.HealthHandler, jwtAuth *middleware.JWTAuth) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, apierrors.MsgRouteNotFound)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Health и metrics проверяются Kubernetes напрямую.
	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	router.Get("/uploads/*", api.ServeUpload)

	router.Route("/api", func(r chi.Router) {
		// Публичные формы
		r.Post("/contacts", api.CreateContact)
		r.Post("/contacts/legacy", api.CreateContactLegacy)
		r.Post("/uploads", api.UploadAttachment)
		r.Post("/users/sign-in-admin", api.SignInAdmin)
		r.Post("/users/sign-up", api.SignUp)

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware())

			r.With(middleware.RequireAuth).Post("/users/change-password", api.ChangePassword)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Post("/contacts/status-change", api.ChangeContactStatusLegacy)

				r.Route("/admin/contacts", func(r chi.Router) {
					r.Get("/", api.ListContacts)
					r.Get("/{id}", api.GetContact)
					r.Patch("/{id}", api.UpdateContact)
					r.Delete("/{id}", api.DeleteContact)
					r.Put("/{id}/status", api.ChangeContactStatus)
				})

				r.Get("/users", api.ListUsers)
				r.Post("/users/status-change", api.ChangeUserStatus)
				r.Post("/users/reset-password", api.ResetPassword)
			})
		})
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
