// upload.go — просмотр и загрузка файлов (защищённые маршруты).
package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arturkryukov/topicstore/internal/api/middleware"
	"github.com/arturkryukov/topicstore/internal/domain/model"
)

// multipartMemoryLimit — лимит памяти для разбора multipart-формы,
// остальное уходит во временные файлы.
const multipartMemoryLimit = 32 << 20

// UploadPage — GET /upload
// Анонимный запрос перенаправляется на /login. Для владельца —
// форма загрузки и его файлы, новые первыми.
func (h *Handler) UploadPage(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	files, err := h.files.ListByUser(r.Context(), user.ID)
	if err != nil {
		h.internalError(w, "Ошибка выборки файлов", err)
		return
	}

	h.render(w, "upload.html", uploadPageData{User: user, Files: files})
}

// Upload — POST /upload
// Последовательность фиксирована: валидация → запись файла на диск →
// запись метаданных. Метаданные никогда не создаются для файла,
// которого нет на диске.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		h.render(w, "upload.html", uploadPageData{User: user, Error: "Invalid upload request"})
		return
	}

	file, header, err := r.FormFile("upload_file")
	if err != nil {
		h.render(w, "upload.html", uploadPageData{User: user, Error: "File is required"})
		return
	}
	defer file.Close()

	fileType, err := model.ParseFileType(header.Filename)
	if err != nil {
		h.render(w, "upload.html", uploadPageData{User: user, Error: "Invalid file type"})
		return
	}

	topic := strings.TrimSpace(r.FormValue("topic"))
	if topic == "" {
		h.render(w, "upload.html", uploadPageData{User: user, Error: "Topic cannot be empty"})
		return
	}

	result, err := h.store.Save(file, fileType.Ext())
	if err != nil {
		h.internalError(w, "Ошибка записи файла на диск", err)
		return
	}

	_, err = h.files.Create(r.Context(), &model.FileMeta{
		Filename:         result.StorageName,
		OriginalFilename: header.Filename,
		Topic:            topic,
		FileType:         fileType,
		UploadDate:       time.Now().UTC(),
		UserID:           user.ID,
	})
	if err != nil {
		// Файл записан, метаданные — нет: убираем файл, чтобы не
		// оставлять мусор; запись о несуществующем файле невозможна
		if rmErr := h.store.Remove(result.StorageName); rmErr != nil {
			h.logger.Warn("Не удалось удалить осиротевший файл",
				slog.String("storage_name", result.StorageName),
				slog.String("error", rmErr.Error()),
			)
		}
		h.internalError(w, "Ошибка записи метаданных файла", err)
		return
	}

	h.logger.Info("Файл загружен",
		slog.String("username", user.Username),
		slog.String("storage_name", result.StorageName),
		slog.String("original_filename", header.Filename),
		slog.String("topic", topic),
		slog.Int64("size", result.Size),
	)

	http.Redirect(w, r, "/upload", http.StatusSeeOther)
}
