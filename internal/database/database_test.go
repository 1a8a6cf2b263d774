package database

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/arturkryukov/topicstore/internal/auth"
	"github.com/arturkryukov/topicstore/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenAndMigrate(t *testing.T) {
	logger := testLogger()

	db, err := Open(filepath.Join(t.TempDir(), "ts.db"), logger)
	if err != nil {
		t.Fatalf("Open вернул ошибку: %v", err)
	}
	defer db.Close()

	if err := Migrate(db, logger); err != nil {
		t.Fatalf("Migrate вернул ошибку: %v", err)
	}

	// Повторное применение — no-op, не ошибка
	if err := Migrate(db, logger); err != nil {
		t.Fatalf("повторный Migrate вернул ошибку: %v", err)
	}

	// Обе таблицы существуют
	for _, table := range []string{"users", "file_meta"} {
		var n int
		query := `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
		if err := db.QueryRow(query, table).Scan(&n); err != nil {
			t.Fatalf("ошибка проверки таблицы %s: %v", table, err)
		}
		if n != 1 {
			t.Errorf("таблица %s не создана", table)
		}
	}
}

func TestEnsureBootstrapUser(t *testing.T) {
	logger := testLogger()

	db, err := Open(filepath.Join(t.TempDir(), "ts.db"), logger)
	if err != nil {
		t.Fatalf("Open вернул ошибку: %v", err)
	}
	defer db.Close()
	if err := Migrate(db, logger); err != nil {
		t.Fatalf("Migrate вернул ошибку: %v", err)
	}

	users := repository.NewUserRepository(db)
	ctx := context.Background()

	if err := EnsureBootstrapUser(ctx, users, "testuser", "testpass", logger); err != nil {
		t.Fatalf("EnsureBootstrapUser вернул ошибку: %v", err)
	}

	u, err := users.GetByUsername(ctx, "testuser")
	if err != nil {
		t.Fatalf("bootstrap-пользователь не создан: %v", err)
	}
	if !auth.VerifyPassword("testpass", u.HashedPassword) {
		t.Error("пароль bootstrap-пользователя не проходит проверку")
	}

	// Повторный вызов при непустой таблице — no-op
	if err := EnsureBootstrapUser(ctx, users, "another", "otherpass", logger); err != nil {
		t.Fatalf("повторный EnsureBootstrapUser вернул ошибку: %v", err)
	}
	if _, err := users.GetByUsername(ctx, "another"); err == nil {
		t.Error("bootstrap создал пользователя при непустой таблице")
	}

	count, err := users.Count(ctx)
	if err != nil {
		t.Fatalf("Count вернул ошибку: %v", err)
	}
	if count != 1 {
		t.Errorf("Count = %d, ожидается 1", count)
	}
}
