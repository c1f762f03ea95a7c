// Точка входа Converter — сервиса конвертации документов в PDF
// и обработки видео (удаление звука, объединение с аудио).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/goartstore/converter/internal/api/generated"
	"github.com/bigkaa/goartstore/converter/internal/api/handlers"
	"github.com/bigkaa/goartstore/converter/internal/api/middleware"
	"github.com/bigkaa/goartstore/converter/internal/config"
	"github.com/bigkaa/goartstore/converter/internal/converter"
	"github.com/bigkaa/goartstore/converter/internal/domain/model"
	"github.com/bigkaa/goartstore/converter/internal/server"
	"github.com/bigkaa/goartstore/converter/internal/service"
	"github.com/bigkaa/goartstore/converter/internal/storage/blobstore"
	"github.com/bigkaa/goartstore/converter/internal/ui/static"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Converter запускается",
		slog.String("service_id", cfg.ServiceID),
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("document_backend", cfg.DocumentBackend),
		slog.Int("max_concurrent_conversions", cfg.MaxConcurrentConversions),
	)

	// --- Инициализация компонентов ---

	// 1. OpenAPI документ (валидируется при старте)
	swagger, err := generated.GetSwagger()
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI документа", slog.String("error", err.Error()))
		os.Exit(1)
	}
	openAPIJSON, err := json.Marshal(swagger)
	if err != nil {
		logger.Error("Ошибка сериализации OpenAPI документа", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Директории хранения
	if err := blobstore.EnsureDirectories(cfg.UploadDir, cfg.OutputDir); err != nil {
		logger.Error("Ошибка создания директорий", slog.String("error", err.Error()))
		os.Exit(1)
	}
	uploads, err := blobstore.New(cfg.UploadDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации staging-директории", slog.String("error", err.Error()))
		os.Exit(1)
	}
	outputs, err := blobstore.New(cfg.OutputDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации output-директории", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Адаптеры конвертации
	ffmpeg := converter.NewFFmpegTranscoder(cfg.FFmpegPath, cfg.VideoBitrate, logger)
	binaries := map[string]string{"ffmpeg": ffmpeg.Binary()}

	var documents converter.Adapter
	switch cfg.DocumentBackend {
	case config.DocumentBackendGotenberg:
		gotenberg := converter.NewGotenbergConverter(cfg.GotenbergURL, nil, cfg.ConversionTimeout, logger)
		logger.Info("Документы конвертируются через Gotenberg",
			slog.String("url", gotenberg.BaseURL()),
		)
		documents = gotenberg
	default:
		// Рабочие директории soffice создаются в output-директории:
		// rename результата остаётся в пределах одной файловой системы,
		// а брошенные директории удаляет sweeper.
		soffice := converter.NewSofficeConverter(cfg.SofficePath, outputs.Dir(), logger)
		binaries["soffice"] = soffice.Binary()
		documents = soffice
	}

	router := converter.NewRouter().
		Handle(model.KindDocumentPDF, documents).
		Handle(model.KindVideoMute, ffmpeg).
		Handle(model.KindMediaMerge, ffmpeg)
	limiter := converter.NewLimiter(router, cfg.MaxConcurrentConversions, nil)

	// 4. Реестр артефактов и сервис конвертации
	registry := service.NewArtifactRegistry(cfg.RegistrySize, cfg.RetentionWindow)
	conversionSvc := service.NewConversionService(uploads, outputs, limiter, registry, service.ConversionOptions{
		DocumentExtensions: cfg.DocumentExtensions,
		DownloadPrefix:     cfg.DownloadPrefix,
		Timeout:            cfg.ConversionTimeout,
	}, logger)

	// 5. Фоновые процессы
	ctx := context.Background()

	// 5.1 Sweeper — очистка устаревших загрузок и артефактов
	sweeperSvc := service.NewSweeperService(model.RetentionPolicy{
		Window:   cfg.RetentionWindow,
		Interval: cfg.SweepInterval,
	}, registry, logger, uploads, outputs)
	sweeperSvc.Start(ctx)

	// 5.2 topologymetrics — мониторинг Gotenberg
	var dephealthSvc *service.DephealthService
	if cfg.DocumentBackend == config.DocumentBackendGotenberg {
		svc, dephealthErr := service.NewDephealthService(
			cfg.ServiceID,
			cfg.DephealthGroup,
			cfg.GotenbergURL,
			cfg.DephealthCheckInterval,
			logger,
		)
		if dephealthErr != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dephealthErr.Error()),
			)
		} else if startErr := svc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			dephealthSvc = svc
			logger.Info("topologymetrics запущен",
				slog.String("gotenberg_url", cfg.GotenbergURL),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 6. Handlers
	convertHandler := handlers.NewConvertHandler(conversionSvc, cfg.MaxUploadSize, logger)
	artifactsHandler := handlers.NewArtifactsHandler(outputs, registry, cfg.RetentionWindow, logger)
	systemHandler := handlers.NewSystemHandler(cfg, limiter, diskUsageFn(cfg.OutputDir), openAPIJSON, logger)
	maintenanceHandler := handlers.NewMaintenanceHandler(sweeperSvc)
	var deps handlers.DependencyChecker
	if dephealthSvc != nil {
		deps = dephealthSvc
	}
	healthHandler := handlers.NewHealthHandler(map[string]string{
		"upload_dir": cfg.UploadDir,
		"output_dir": cfg.OutputDir,
	}, binaries, deps)
	metricsHandler := server.NewMetricsHandler()

	// Единый API handler
	apiHandler := handlers.NewAPIHandler(
		convertHandler,
		artifactsHandler,
		systemHandler,
		maintenanceHandler,
		healthHandler,
		metricsHandler,
	)

	// 7. Ограничение частоты запросов
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	if rateLimiter.Enabled() {
		logger.Info("Ограничение частоты запросов включено",
			slog.Int("per_minute", cfg.RateLimitPerMinute),
		)
	}

	// 8. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, server.Routes{
		API:         apiHandler,
		Download:    artifactsHandler.ServeDownload,
		UI:          static.Handler(),
		RateLimiter: rateLimiter,
	})

	runErr := srv.Run()

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	rateLimiter.Stop()
	sweeperSvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
	logger.Info("Converter остановлен")
}

// diskUsageFn возвращает функцию для получения информации об ёмкости диска.
func diskUsageFn(dir string) handlers.DiskUsageFunc {
	return func() (int64, int64, int64, error) {
		return getDiskUsage(dir)
	}
}
