// session.go — разрешение сессии из cookie в текущего пользователя.
// Результат — явный двухвариантный исход (аутентифицирован | аноним),
// помещаемый в контекст запроса; редиректы выполняют сами обработчики.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/arturkryukov/topicstore/internal/auth"
	"github.com/arturkryukov/topicstore/internal/domain/model"
	"github.com/arturkryukov/topicstore/internal/repository"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// contextKeyUser — аутентифицированный пользователь в контексте запроса.
const contextKeyUser contextKey = "current_user"

// SessionAuth — middleware разрешения сессии.
// Отсутствующий cookie, недействительный токен и неизвестное имя
// пользователя одинаково означают «аноним»: запрос продолжается без
// пользователя в контексте, ошибка наружу не выходит.
type SessionAuth struct {
	codec  *auth.TokenCodec
	users  repository.UserRepository
	logger *slog.Logger
}

// NewSessionAuth создаёт middleware разрешения сессии.
func NewSessionAuth(codec *auth.TokenCodec, users repository.UserRepository, logger *slog.Logger) *SessionAuth {
	return &SessionAuth{
		codec:  codec,
		users:  users,
		logger: logger.With(slog.String("component", "session_auth")),
	}
}

// Middleware возвращает HTTP middleware, разрешающий cookie сессии
// в пользователя. Применяется к защищённым маршрутам (/upload).
func (sa *SessionAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := sa.resolve(r)
			if user != nil {
				ctx := context.WithValue(r.Context(), contextKeyUser, user)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolve извлекает токен из cookie и возвращает пользователя
// или nil (аноним).
func (sa *SessionAuth) resolve(r *http.Request) *model.User {
	cookie, err := r.Cookie(auth.SessionCookieName)
	if err != nil {
		return nil
	}

	subject, err := sa.codec.Resolve(cookie.Value)
	if err != nil {
		sa.logger.Debug("Недействительный токен сессии",
			slog.String("remote_addr", r.RemoteAddr),
		)
		return nil
	}

	user, err := sa.users.GetByUsername(r.Context(), subject)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			sa.logger.Error("Ошибка загрузки пользователя сессии",
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	return user
}

// UserFromContext извлекает пользователя из контекста запроса.
// Второе значение false — запрос анонимный.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(contextKeyUser).(*model.User)
	return user, ok
}
