package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arturkryukov/topicstore/internal/domain/model"
)

// userColumns — список столбцов таблицы users для SELECT-запросов.
const userColumns = `id, username, hashed_password`

// UserRepository — доступ к учётным записям пользователей.
// Записи создаются один раз и далее не изменяются и не удаляются.
type UserRepository interface {
	// Create создаёт пользователя. Занятое имя — ErrDuplicate.
	Create(ctx context.Context, user *model.User) (*model.User, error)
	// GetByUsername возвращает пользователя по имени или ErrNotFound.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// Count возвращает количество пользователей.
	Count(ctx context.Context) (int, error)
}

// userRepo — реализация UserRepository через database/sql.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

// Create вставляет пользователя и возвращает его с назначенным id.
// Нарушение уникальности username транслируется в ErrDuplicate:
// проверка «имя занято» выполняется до вставки, но конкурентная
// регистрация может прорваться до ограничения базы.
func (r *userRepo) Create(ctx context.Context, user *model.User) (*model.User, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, hashed_password) VALUES (?, ?)`,
		user.Username, user.HashedPassword,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения id пользователя: %w", err)
	}

	created := *user
	created.ID = id
	return &created, nil
}

// GetByUsername возвращает пользователя по имени или ErrNotFound.
// Сравнение имени — case-sensitive (BINARY collation SQLite).
func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = ?`, userColumns)

	u := &model.User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&u.ID, &u.Username, &u.HashedPassword,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

// Count возвращает количество пользователей.
func (r *userRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	return n, nil
}
