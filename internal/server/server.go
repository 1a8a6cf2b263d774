// Пакет server — HTTP-сервер topicstore с graceful shutdown.
// Без TLS — терминирование TLS предполагается на reverse proxy.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apimw "github.com/arturkryukov/topicstore/internal/api/middleware"
	"github.com/arturkryukov/topicstore/internal/config"
	"github.com/arturkryukov/topicstore/internal/ui/handlers"
	"github.com/arturkryukov/topicstore/internal/ui/static"
)

// Server — HTTP-сервер topicstore.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// NewRouter собирает маршруты и middleware приложения.
// Вынесен отдельно от Server: тесты обработчиков гоняют маршрутизатор
// через httptest без реального листенера.
func NewRouter(cfg *config.Config, logger *slog.Logger, h *handlers.Handler, session *apimw.SessionAuth) *chi.Mux {
	router := chi.NewRouter()

	router.Use(apimw.MetricsMiddleware())
	router.Use(apimw.RequestLogger(logger))

	// Открытые маршруты
	router.Get("/", h.Root)
	router.Get("/login", h.LoginPage)
	router.Post("/login", h.Login)
	router.Post("/signup", h.Signup)
	router.Get("/logout", h.Logout)
	router.Get("/ping", h.Ping)
	router.Handle("/metrics", promhttp.Handler())

	// Защищённые маршруты: сессия разрешается middleware,
	// анонимов перенаправляют сами обработчики
	router.Group(func(r chi.Router) {
		r.Use(session.Middleware())
		r.Get("/upload", h.UploadPage)
		r.Post("/upload", h.Upload)
	})

	// Статические ресурсы и загруженные файлы
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(static.FileSystem())))
	router.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	return router
}

// New создаёт HTTP-сервер с настроенными маршрутами.
func New(cfg *config.Config, logger *slog.Logger, router *chi.Mux) *Server {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
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
