// Пакет handlers — HTTP-обработчики topicstore: аутентификация,
// загрузка файлов, health check.
package handlers

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/arturkryukov/topicstore/internal/auth"
	"github.com/arturkryukov/topicstore/internal/config"
	"github.com/arturkryukov/topicstore/internal/domain/model"
	"github.com/arturkryukov/topicstore/internal/repository"
	"github.com/arturkryukov/topicstore/internal/storage/filestore"
	"github.com/arturkryukov/topicstore/internal/ui/templates"
)

// Handler — обработчики HTTP-маршрутов topicstore.
// Все зависимости передаются явно при старте: глобального
// изменяемого состояния нет, экземпляры изолируемы в тестах.
type Handler struct {
	cfg    *config.Config
	users  repository.UserRepository
	files  repository.FileRepository
	store  *filestore.FileStore
	codec  *auth.TokenCodec
	tmpl   *template.Template
	logger *slog.Logger
}

// New создаёт Handler и разбирает встроенные шаблоны.
func New(
	cfg *config.Config,
	users repository.UserRepository,
	files repository.FileRepository,
	store *filestore.FileStore,
	codec *auth.TokenCodec,
	logger *slog.Logger,
) (*Handler, error) {
	tmpl, err := templates.Parse()
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора шаблонов: %w", err)
	}

	return &Handler{
		cfg:    cfg,
		users:  users,
		files:  files,
		store:  store,
		codec:  codec,
		tmpl:   tmpl,
		logger: logger.With(slog.String("component", "handlers")),
	}, nil
}

// loginPageData — контекст шаблона login.html.
// Слоты ошибок login и signup разделены: сообщение показывается
// в той форме, которая его вызвала.
type loginPageData struct {
	Error       string
	ErrorSignup string
	ShowSignup  bool
}

// uploadPageData — контекст шаблона upload.html.
type uploadPageData struct {
	User  *model.User
	Files []*model.FileMeta
	Error string
}

// render выполняет шаблон и пишет HTML-ответ.
func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("Ошибка рендеринга шаблона",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
	}
}

// setSessionCookie устанавливает http-only cookie с токеном сессии.
// max-age совпадает со сроком действия токена.
func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie удаляет cookie сессии (logout).
func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// internalError логирует причину и возвращает 500 без деталей.
func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.String("error", err.Error()))
	http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
}
