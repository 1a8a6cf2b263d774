// Пакет config — загрузка и валидация конфигурации topicstore
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации topicstore.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- Хранилище ---

	// Путь к файлу базы данных SQLite
	DBPath string
	// Корневая директория для загруженных файлов
	UploadDir string
	// Максимальный размер тела запроса загрузки (байт)
	MaxUploadSize int64

	// --- Сессии ---

	// Ключ подписи токенов сессий. Обязательный: без него
	// приложение не запускается.
	SecretKey string
	// Время жизни токена сессии, выдаваемого при login/signup
	SessionTTL time.Duration

	// --- Bootstrap ---

	// Имя и пароль пользователя, создаваемого при первом запуске,
	// если таблица пользователей пуста. Оба значения не заданы —
	// механизм отключён. Эксплуатационный шов для стендов,
	// небезопасен для production.
	BootstrapUser     string
	BootstrapPassword string

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// TS_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("TS_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("TS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("TS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// TS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("TS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("TS_LOG_LEVEL: %w", err)
	}

	// TS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("TS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("TS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- Хранилище ---

	// TS_DB_PATH — путь к файлу SQLite (по умолчанию data/topicstore.db)
	cfg.DBPath = getEnvDefault("TS_DB_PATH", "data/topicstore.db")

	// TS_UPLOAD_DIR — директория загрузок (по умолчанию data/uploads)
	cfg.UploadDir = getEnvDefault("TS_UPLOAD_DIR", "data/uploads")

	// TS_MAX_UPLOAD_SIZE — лимит размера загрузки (по умолчанию 100 MiB)
	cfg.MaxUploadSize, err = getEnvInt64("TS_MAX_UPLOAD_SIZE", 100*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("TS_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize < 1 {
		return nil, fmt.Errorf("TS_MAX_UPLOAD_SIZE: значение должно быть положительным")
	}

	// --- Сессии ---

	// TS_SECRET_KEY — обязательный
	cfg.SecretKey, err = getEnvRequired("TS_SECRET_KEY")
	if err != nil {
		return nil, err
	}

	// TS_SESSION_TTL — время жизни сессии (по умолчанию 24h)
	cfg.SessionTTL, err = getEnvDuration("TS_SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("TS_SESSION_TTL: %w", err)
	}

	// --- Bootstrap ---

	// TS_BOOTSTRAP_USER / TS_BOOTSTRAP_PASSWORD — задаются парой
	cfg.BootstrapUser = getEnvDefault("TS_BOOTSTRAP_USER", "")
	cfg.BootstrapPassword = getEnvDefault("TS_BOOTSTRAP_PASSWORD", "")
	if (cfg.BootstrapUser == "") != (cfg.BootstrapPassword == "") {
		return nil, fmt.Errorf("TS_BOOTSTRAP_USER и TS_BOOTSTRAP_PASSWORD задаются только вместе")
	}

	// --- Graceful shutdown ---

	// TS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("TS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TS_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64-значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
