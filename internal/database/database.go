// Пакет database — подключение к SQLite, применение миграций
// (golang-migrate) и создание bootstrap-пользователя.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/arturkryukov/topicstore/internal/auth"
	"github.com/arturkryukov/topicstore/internal/domain/model"
	"github.com/arturkryukov/topicstore/internal/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open открывает файл базы данных SQLite и проверяет доступность.
// foreign_keys включается на уровне соединения: SQLite по умолчанию
// не проверяет внешние ключи.
func Open(path string, logger *slog.Logger) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	logger.Info("База данных SQLite открыта", slog.String("path", path))
	return db, nil
}

// Migrate применяет SQL-миграции из embedded FS к базе данных.
func Migrate(db *sql.DB, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("ошибка создания драйвера миграций: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}

	// Применяем все миграции
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Миграции применены",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// EnsureBootstrapUser создаёт пользователя с указанными учётными
// данными, если таблица пользователей пуста. Эксплуатационный шов
// для первого запуска на стенде: фиксированные учётные данные
// небезопасны для production, поэтому механизм работает только при
// явно заданной конфигурации.
func EnsureBootstrapUser(ctx context.Context, users repository.UserRepository, username, password string, logger *slog.Logger) error {
	count, err := users.Count(ctx)
	if err != nil {
		return fmt.Errorf("ошибка проверки пользователей: %w", err)
	}
	if count > 0 {
		return nil
	}

	digest, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("ошибка хеширования bootstrap-пароля: %w", err)
	}

	user := &model.User{Username: username, HashedPassword: digest}
	if _, err := users.Create(ctx, user); err != nil {
		// Конкурентный старт двух экземпляров: пользователь уже есть
		if errors.Is(err, repository.ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("ошибка создания bootstrap-пользователя: %w", err)
	}

	logger.Warn("Создан bootstrap-пользователь: смените учётные данные, механизм небезопасен для production",
		slog.String("username", username),
	)
	return nil
}
