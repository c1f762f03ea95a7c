// convert.go — сервис конвертации: жизненный цикл одного запроса.
//
// Порядок: staging загрузок → слот конвертации → внешний инструмент →
// публикация результата → регистрация артефакта → удаление входных файлов.
// Результат любого адаптера приводится к model.Outcome.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/converter/internal/converter"
	"github.com/bigkaa/goartstore/converter/internal/domain/model"
	"github.com/bigkaa/goartstore/converter/internal/storage/blobstore"
)

// Prometheus метрики конвертаций
var (
	conversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cv_conversions_total",
		Help: "Общее количество конвертаций",
	}, []string{"kind", "result"})

	conversionDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cv_conversion_duration_seconds",
		Help:    "Длительность конвертации в секундах",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"kind"})

	uploadedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cv_uploaded_bytes_total",
		Help: "Общий объём принятых входных файлов в байтах",
	})

	cleanupErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cv_cleanup_errors_total",
		Help: "Общее количество ошибок удаления входных файлов",
	})
)

// StageParams — параметры приёма одного входного файла.
type StageParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalFilename — имя файла на стороне клиента
	OriginalFilename string
	// ContentType — MIME-тип из multipart part
	ContentType string
}

// ConversionOptions — параметры ConversionService.
type ConversionOptions struct {
	// DocumentExtensions — допустимые расширения документов (".pptx")
	DocumentExtensions []string
	// DownloadPrefix — URL-префикс раздачи артефактов ("/downloads")
	DownloadPrefix string
	// Timeout — максимальная длительность одной конвертации (0 — без ограничения)
	Timeout time.Duration
}

// ConversionService — сервис конвертации загруженных файлов.
type ConversionService struct {
	uploads  *blobstore.Store
	outputs  *blobstore.Store
	adapter  converter.Adapter
	registry *ArtifactRegistry
	opts     ConversionOptions
	logger   *slog.Logger
}

// NewConversionService создаёт сервис конвертации.
func NewConversionService(
	uploads *blobstore.Store,
	outputs *blobstore.Store,
	adapter converter.Adapter,
	registry *ArtifactRegistry,
	opts ConversionOptions,
	logger *slog.Logger,
) *ConversionService {
	return &ConversionService{
		uploads:  uploads,
		outputs:  outputs,
		adapter:  adapter,
		registry: registry,
		opts:     opts,
		logger:   logger.With(slog.String("component", "conversion")),
	}
}

// CheckDocumentType проверяет, что расширение файла допустимо для конвертации в PDF.
func (s *ConversionService) CheckDocumentType(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != "" && slices.Contains(s.opts.DocumentExtensions, ext) {
		return nil
	}
	if ext == "" {
		return model.BadRequest("Unsupported file type")
	}
	return model.BadRequest(fmt.Sprintf("Unsupported file type: %s", ext))
}

// Stage сохраняет входной файл в staging-директорию.
func (s *ConversionService) Stage(p StageParams) (*model.UploadedFile, error) {
	contentType := p.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	up, err := s.uploads.Stage(p.Reader, p.OriginalFilename, contentType)
	if err != nil {
		return nil, &model.Failure{
			Kind:    model.FailureStorage,
			Message: "Failed to store upload",
			Cause:   err,
		}
	}
	uploadedBytesTotal.Add(float64(up.Size))

	s.logger.Debug("Входной файл принят",
		slog.String("original_name", up.OriginalName),
		slog.Int64("size", up.Size),
		slog.String("path", up.StoragePath),
	)
	return up, nil
}

// Discard удаляет входные файлы. Ошибки только логируются.
func (s *ConversionService) Discard(files ...*model.UploadedFile) {
	for _, f := range files {
		if f == nil || f.StoragePath == "" {
			continue
		}
		if err := s.uploads.Remove(f.StoragePath); err != nil {
			cleanupErrorsTotal.Inc()
			s.logger.Error("Ошибка удаления входного файла",
				slog.String("path", f.StoragePath),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Convert выполняет одну конвертацию. Входные файлы запроса удаляются
// после попытки конвертации в любом случае.
func (s *ConversionService) Convert(ctx context.Context, req *model.ConversionRequest) model.Outcome {
	defer s.Discard(req.Inputs()...)

	if !req.Kind.Valid() {
		return model.Failed(model.BadRequest(fmt.Sprintf("Unknown operation: %s", req.Kind)))
	}
	if req.Primary == nil {
		return model.Failed(model.BadRequest("No file provided"))
	}

	start := time.Now()
	outcome := s.convert(ctx, req)
	duration := time.Since(start)

	kind := string(req.Kind)
	conversionDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
	if outcome.OK() {
		conversionsTotal.WithLabelValues(kind, "success").Inc()
		s.logger.Info("Конвертация завершена",
			slog.String("kind", kind),
			slog.String("filename", outcome.Artifact.Filename),
			slog.Int64("size", outcome.Artifact.Size),
			slog.Duration("duration", duration),
		)
	} else {
		conversionsTotal.WithLabelValues(kind, "failure").Inc()
		s.logger.Error("Ошибка конвертации",
			slog.String("kind", kind),
			slog.Any("sources", req.SourceNames()),
			slog.String("error", outcome.Failure.Error()),
			slog.Duration("duration", duration),
		)
	}
	return outcome
}

// convert вызывает адаптер и публикует результат.
func (s *ConversionService) convert(ctx context.Context, req *model.ConversionRequest) model.Outcome {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	rsv, err := s.outputs.Reserve(req.Kind)
	if err != nil {
		return model.Failed(model.ConversionFailed(err.Error(), err))
	}

	if err := s.adapter.Convert(ctx, req, rsv.PartialPath); err != nil {
		rsv.Abort()
		return model.Failed(model.ConversionFailed(err.Error(), err))
	}

	// Клиент не должен получить URL файла, который не был сохранён
	res, err := rsv.Commit()
	if err != nil {
		return model.Failed(model.ConversionFailed(err.Error(), err))
	}

	artifact := &model.Artifact{
		Filename:    res.Filename,
		StoragePath: res.FullPath,
		Kind:        req.Kind,
		Format:      req.Kind.Format(),
		Size:        res.Size,
		Checksum:    res.Checksum,
		SourceNames: req.SourceNames(),
		DownloadURL: s.opts.DownloadPrefix + "/" + res.Filename,
		CreatedAt:   res.ModTime.UTC(),
	}
	if s.registry != nil {
		s.registry.Add(artifact)
	}

	return model.Succeeded(artifact)
}
