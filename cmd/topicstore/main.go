// main.go — точка входа topicstore.
package main

import (
	"context"
	"log"
	"log/slog"

	apimw "github.com/arturkryukov/topicstore/internal/api/middleware"
	"github.com/arturkryukov/topicstore/internal/auth"
	"github.com/arturkryukov/topicstore/internal/config"
	"github.com/arturkryukov/topicstore/internal/database"
	"github.com/arturkryukov/topicstore/internal/repository"
	"github.com/arturkryukov/topicstore/internal/server"
	"github.com/arturkryukov/topicstore/internal/storage/filestore"
	"github.com/arturkryukov/topicstore/internal/ui/handlers"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("topicstore запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Хранилище файлов
	store, err := filestore.New(cfg.UploadDir)
	if err != nil {
		log.Fatalf("Ошибка инициализации хранилища файлов: %v", err)
	}

	// 4. База данных и миграции
	db, err := database.Open(cfg.DBPath, logger)
	if err != nil {
		log.Fatalf("Ошибка открытия базы данных: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db, logger); err != nil {
		log.Fatalf("Ошибка применения миграций: %v", err)
	}

	// 5. Репозитории
	users := repository.NewUserRepository(db)
	files := repository.NewFileRepository(db)

	// 6. Bootstrap-пользователь (только при явной конфигурации)
	if cfg.BootstrapUser != "" {
		if err := database.EnsureBootstrapUser(context.Background(), users, cfg.BootstrapUser, cfg.BootstrapPassword, logger); err != nil {
			log.Fatalf("Ошибка создания bootstrap-пользователя: %v", err)
		}
	}

	// 7. Кодек токенов и обработчики
	codec := auth.NewTokenCodec(cfg.SecretKey)

	h, err := handlers.New(cfg, users, files, store, codec, logger)
	if err != nil {
		log.Fatalf("Ошибка инициализации обработчиков: %v", err)
	}

	session := apimw.NewSessionAuth(codec, users, logger)

	// 8. HTTP-сервер (блокирующий вызов с graceful shutdown)
	router := server.NewRouter(cfg, logger, h, session)
	srv := server.New(cfg, logger, router)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		log.Fatalf("Сервер завершился с ошибкой: %v", err)
	}

	logger.Info("topicstore остановлен")
}
