// auth.go — маршруты аутентификации: login, signup, logout.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/arturkryukov/topicstore/internal/auth"
	"github.com/arturkryukov/topicstore/internal/domain/model"
	"github.com/arturkryukov/topicstore/internal/repository"
)

// minPasswordLength — минимальная длина пароля при регистрации.
const minPasswordLength = 6

// Root — GET /
// Безусловный redirect на страницу входа.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusFound)
}

// LoginPage — GET /login
// Страница входа с пустыми слотами ошибок: обычный GET не
// показывает сообщения предыдущих попыток.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login.html", loginPageData{})
}

// Login — POST /login
// Неизвестное имя и неверный пароль дают одно и то же сообщение:
// ответ не позволяет перечислять существующие имена пользователей.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, "login.html", loginPageData{Error: "Invalid credentials"})
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	user, err := h.users.GetByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.render(w, "login.html", loginPageData{Error: "Invalid credentials"})
			return
		}
		h.internalError(w, "Ошибка поиска пользователя", err)
		return
	}

	if !auth.VerifyPassword(password, user.HashedPassword) {
		h.render(w, "login.html", loginPageData{Error: "Invalid credentials"})
		return
	}

	h.authenticate(w, r, user.Username)
}

// Signup — POST /signup
// Правила проверяются по порядку, первое нарушенное правило
// останавливает обработку. Успешная регистрация сразу
// аутентифицирует: второй шаг входа не требуется.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, "login.html", loginPageData{ErrorSignup: "Invalid signup request", ShowSignup: true})
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	password2 := r.FormValue("password2")

	if msg := validateSignup(username, password, password2); msg != "" {
		h.render(w, "login.html", loginPageData{ErrorSignup: msg, ShowSignup: true})
		return
	}

	// Проверка занятости имени до вставки
	_, err := h.users.GetByUsername(r.Context(), username)
	if err == nil {
		h.render(w, "login.html", loginPageData{ErrorSignup: "Username already exists", ShowSignup: true})
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		h.internalError(w, "Ошибка проверки имени пользователя", err)
		return
	}

	digest, err := auth.HashPassword(password)
	if err != nil {
		h.internalError(w, "Ошибка хеширования пароля", err)
		return
	}

	user, err := h.users.Create(r.Context(), &model.User{
		Username:       username,
		HashedPassword: digest,
	})
	if err != nil {
		// Конкурентная регистрация того же имени прорвалась до
		// UNIQUE-ограничения: то же сообщение, что и при проверке
		if errors.Is(err, repository.ErrDuplicate) {
			h.render(w, "login.html", loginPageData{ErrorSignup: "Username already exists", ShowSignup: true})
			return
		}
		h.internalError(w, "Ошибка создания пользователя", err)
		return
	}

	h.logger.Info("Зарегистрирован пользователь", slog.String("username", user.Username))
	h.authenticate(w, r, user.Username)
}

// Logout — GET /logout
// Удаляет cookie сессии. Аутентификация не требуется.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// authenticate выпускает токен сессии, устанавливает cookie
// и перенаправляет на /upload.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, username string) {
	token, err := h.codec.Issue(username, h.cfg.SessionTTL)
	if err != nil {
		h.internalError(w, "Ошибка выпуска токена", err)
		return
	}

	h.setSessionCookie(w, token, h.cfg.SessionTTL)
	http.Redirect(w, r, "/upload", http.StatusSeeOther)
}

// validateSignup проверяет поля формы регистрации по порядку
// и возвращает сообщение первого нарушенного правила.
func validateSignup(username, password, password2 string) string {
	if strings.TrimSpace(username) == "" {
		return "Username is required"
	}
	if strings.TrimSpace(password) == "" {
		return "Password is required"
	}
	if password != password2 {
		return "Passwords do not match"
	}
	if len(password) < minPasswordLength {
		return "Password must be at least 6 characters"
	}
	return ""
}
