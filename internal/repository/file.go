package repository

import (
	"context"
	"fmt"

	"github.com/arturkryukov/topicstore/internal/domain/model"
)

// fileColumns — список столбцов таблицы file_meta для SELECT-запросов.
const fileColumns = `id, filename, original_filename, topic, file_type, upload_date, user_id`

// FileRepository — доступ к метаданным загруженных файлов.
// Записи создаются при успешной загрузке; update/delete отсутствуют.
type FileRepository interface {
	// Create создаёт запись о загруженном файле.
	Create(ctx context.Context, meta *model.FileMeta) (*model.FileMeta, error)
	// ListByUser возвращает файлы пользователя, новые первыми.
	ListByUser(ctx context.Context, userID int64) ([]*model.FileMeta, error)
}

// fileRepo — реализация FileRepository через database/sql.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий метаданных файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

// Create вставляет запись и возвращает её с назначенным id.
// Каждая запись ссылается ровно на одного существующего пользователя
// (FK user_id); имя в хранилище уникально по построению, UNIQUE в
// схеме лишь превращает невероятную коллизию в громкий отказ.
func (r *fileRepo) Create(ctx context.Context, meta *model.FileMeta) (*model.FileMeta, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO file_meta (filename, original_filename, topic, file_type, upload_date, user_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		meta.Filename, meta.OriginalFilename, meta.Topic, string(meta.FileType),
		meta.UploadDate, meta.UserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("ошибка создания записи о файле: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения id записи: %w", err)
	}

	created := *meta
	created.ID = id
	return &created, nil
}

// ListByUser возвращает метаданные файлов пользователя,
// отсортированные по времени загрузки по убыванию.
func (r *fileRepo) ListByUser(ctx context.Context, userID int64) ([]*model.FileMeta, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM file_meta WHERE user_id = ? ORDER BY upload_date DESC, id DESC`,
		fileColumns,
	)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileMeta
	for rows.Next() {
		f := &model.FileMeta{}
		var fileType string
		if err := rows.Scan(
			&f.ID, &f.Filename, &f.OriginalFilename, &f.Topic, &fileType,
			&f.UploadDate, &f.UserID,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		f.FileType = model.FileType(fileType)
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	return result, nil
}
