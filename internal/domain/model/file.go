package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// FileType — закрытый набор допустимых типов загружаемых файлов.
type FileType string

// Допустимые типы файлов.
const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypeMP4  FileType = "mp4"
)

// allowedExtensions — маппинг расширения файла на тип.
var allowedExtensions = map[string]FileType{
	".pdf":  FileTypePDF,
	".docx": FileTypeDOCX,
	".mp4":  FileTypeMP4,
}

// ParseFileType определяет тип файла по расширению имени
// (case-insensitive). Расширение вне допустимого набора — ошибка.
func ParseFileType(filename string) (FileType, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	ft, ok := allowedExtensions[ext]
	if !ok {
		return "", fmt.Errorf("недопустимое расширение файла: %q", ext)
	}
	return ft, nil
}

// Ext возвращает расширение файла с точкой (".pdf" для pdf).
func (t FileType) Ext() string {
	return "." + string(t)
}

// FileMeta — метаданные одного загруженного файла.
// Записи создаются при успешной загрузке и далее не изменяются.
type FileMeta struct {
	// ID — суррогатный ключ, назначается базой данных
	ID int64
	// Filename — сгенерированное имя файла в хранилище (уникальное)
	Filename string
	// OriginalFilename — имя файла у клиента, только для отображения.
	// Никогда не используется как имя на диске.
	OriginalFilename string
	// Topic — тема, выбранная пользователем (непустая, после trim)
	Topic string
	// FileType — тип файла из закрытого набора
	FileType FileType
	// UploadDate — момент загрузки (UTC, часы сервера)
	UploadDate time.Time
	// UserID — владелец записи (FK на users.id)
	UserID int64
}
