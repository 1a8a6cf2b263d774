// Пакет filestore — операции с физическими файлами на диске.
// Генерирует коллизионно-устойчивые имена хранения и выполняет
// атомарную (с точки зрения вызывающего) запись содержимого.
package filestore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileStore — управление физическими файлами в директории загрузок.
type FileStore struct {
	// dataDir — корневая директория хранения файлов (TS_UPLOAD_DIR)
	dataDir string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// StorageName — сгенерированное имя файла в dataDir
	StorageName string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
}

// New создаёт новый FileStore. Создаёт директорию, если она не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию загрузок %s: %w", dataDir, err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// DataDir возвращает корневую директорию хранения.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// Save записывает данные из reader на диск под сгенерированным именем.
// Формат имени: {UTC timestamp}_{uuid4 hex}{ext} — случайный суффикс
// даёт 122 бита энтропии, конкурентные загрузки не коллидируют даже
// при совпадающих отметках времени.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При любой ошибке temp файл удаляется; частично записанный файл
// никогда не виден под финальным именем.
func (fs *FileStore) Save(r io.Reader, ext string) (*SaveResult, error) {
	storageName := generateStorageName(ext)
	fullPath := filepath.Join(fs.dataDir, storageName)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи файла: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка переименования файла: %w", err)
	}

	return &SaveResult{
		StorageName: storageName,
		FullPath:    fullPath,
		Size:        size,
	}, nil
}

// Remove удаляет файл из хранилища по имени.
// Имя с разделителями пути отвергается.
func (fs *FileStore) Remove(storageName string) error {
	if storageName == "" || strings.ContainsAny(storageName, `/\`) {
		return errors.New("некорректное имя файла в хранилище")
	}
	if err := os.Remove(filepath.Join(fs.dataDir, storageName)); err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	return nil
}

// Exists сообщает, существует ли файл с указанным именем.
func (fs *FileStore) Exists(storageName string) bool {
	if storageName == "" || strings.ContainsAny(storageName, `/\`) {
		return false
	}
	_, err := os.Stat(filepath.Join(fs.dataDir, storageName))
	return err == nil
}

// generateStorageName генерирует имя файла для хранения.
// Имя клиента в имени на диске не участвует: это исключает
// path traversal и коллизии по пользовательскому вводу.
func generateStorageName(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	timestamp := time.Now().UTC().Format("20060102150405")
	u := uuid.New()
	suffix := hex.EncodeToString(u[:])

	return timestamp + "_" + suffix + ext
}
