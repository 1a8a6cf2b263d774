// Пакет auth — хеширование паролей и кодек токенов сессий.
// password.go — PBKDF2-SHA256 с per-password солью.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Параметры PBKDF2. Количество итераций хранится в дайджесте,
// поэтому его можно менять без инвалидации существующих паролей.
const (
	pbkdf2Iterations = 600_000
	pbkdf2SaltSize   = 16
	pbkdf2KeySize    = 32
	pbkdf2Scheme     = "pbkdf2_sha256"
)

// HashPassword возвращает opaque-дайджест пароля в формате
// pbkdf2_sha256$<iterations>$<salt>$<key> (base64 без padding).
// Ограничений на длину пароля нет: PBKDF2 не усекает вход.
func HashPassword(password string) (string, error) {
	salt := make([]byte, pbkdf2SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("ошибка генерации соли: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeySize, sha256.New)

	return fmt.Sprintf("%s$%d$%s$%s",
		pbkdf2Scheme,
		pbkdf2Iterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword проверяет пароль против дайджеста.
// Любой некорректный дайджест трактуется как несовпадение,
// не как ошибка. Сравнение ключей — за константное время.
func VerifyPassword(password, digest string) bool {
	parts := strings.Split(digest, "$")
	if len(parts) != 4 || parts[0] != pbkdf2Scheme {
		return false
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < 1 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil || len(expected) == 0 {
		return false
	}

	key := pbkdf2.Key([]byte(password), salt, iterations, len(expected), sha256.New)

	return subtle.ConstantTimeCompare(key, expected) == 1
}
