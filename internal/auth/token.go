// token.go — выпуск и проверка подписанных токенов сессий (HS256).
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Имя cookie с токеном сессии.
const SessionCookieName = "access_token"

// DefaultTokenTTL — время жизни токена, если вызывающий не указал своё.
const DefaultTokenTTL = 15 * time.Minute

// ErrInvalidToken — токен не прошёл проверку: подпись, срок действия,
// структура или отсутствующий subject. Детали не различаются намеренно.
var ErrInvalidToken = errors.New("недействительный токен сессии")

// TokenCodec — выпуск и проверка токенов сессий.
// Ключ подписи — общепроцессная конфигурация; его ротация
// инвалидирует все выданные токены (revocation-списка нет).
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec создаёт кодек с указанным ключом подписи.
func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret)}
}

// Issue выпускает подписанный токен с subject и абсолютным сроком
// действия. При ttl <= 0 применяется DefaultTokenTTL.
func (c *TokenCodec) Issue(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})

	return token.SignedString(c.secret)
}

// Resolve проверяет токен и возвращает subject.
// Любой сбой — криптографический, структурный, истёкший срок или
// пустой subject — даёт ErrInvalidToken, никогда панику.
func (c *TokenCodec) Resolve(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	if claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
