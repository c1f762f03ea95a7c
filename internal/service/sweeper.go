// sweeper.go — фоновая очистка устаревших файлов.
//
// На каждом тике sweeper перечисляет записи всех управляемых директорий
// (staging загрузок и output артефактов) и удаляет те, чей возраст
// превышает окно хранения. Ошибки по отдельным файлам логируются
// и не прерывают проход.
//
// Запускается как горутина с периодическим тикером (CV_SWEEP_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/converter/internal/domain/model"
	"github.com/bigkaa/goartstore/converter/internal/storage/blobstore"
)

// Prometheus метрики sweeper-а
var (
	// sweeperRunsTotal — количество выполненных проходов.
	sweeperRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cv_sweeper_runs_total",
		Help: "Общее количество проходов sweeper-а",
	})

	// sweeperSkippedTotal — количество проходов, пропущенных из-за выполняющегося.
	sweeperSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cv_sweeper_skipped_total",
		Help: "Общее количество пропущенных проходов sweeper-а",
	})

	// sweeperFilesDeletedTotal — количество удалённых файлов и директорий.
	sweeperFilesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cv_sweeper_files_deleted_total",
		Help: "Общее количество файлов, удалённых sweeper-ом",
	})

	// sweeperErrorsTotal — количество ошибок удаления.
	sweeperErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cv_sweeper_errors_total",
		Help: "Общее количество ошибок sweeper-а",
	})

	// sweeperDurationSeconds — длительность прохода.
	sweeperDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cv_sweeper_duration_seconds",
		Help:    "Длительность прохода sweeper-а в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepResult — результат одного прохода sweeper-а.
type SweepResult struct {
	// Scanned — количество просмотренных записей
	Scanned int `json:"scanned"`
	// Deleted — количество удалённых файлов и директорий
	Deleted int `json:"deleted"`
	// Errors — количество ошибок stat/удаления
	Errors int `json:"errors"`
	// Skipped — проход не выполнялся, так как предыдущий ещё не завершён
	Skipped bool `json:"skipped"`
	// Duration — длительность прохода
	Duration time.Duration `json:"duration"`
}

// SweeperService — сервис фоновой очистки устаревших файлов.
type SweeperService struct {
	stores   []*blobstore.Store
	policy   model.RetentionPolicy
	registry *ArtifactRegistry
	logger   *slog.Logger

	inProgress atomic.Bool // единственный выполняющийся проход
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewSweeperService создаёт sweeper для указанных директорий.
// registry может быть nil.
func NewSweeperService(
	policy model.RetentionPolicy,
	registry *ArtifactRegistry,
	logger *slog.Logger,
	stores ...*blobstore.Store,
) *SweeperService {
	return &SweeperService{
		stores:   stores,
		policy:   policy,
		registry: registry,
		logger:   logger.With(slog.String("component", "sweeper")),
	}
}

// InProgress сообщает, выполняется ли сейчас проход.
func (s *SweeperService) InProgress() bool {
	return s.inProgress.Load()
}

// Start запускает фоновую горутину sweeper-а с периодическим тикером.
// Вызывается один раз при старте приложения.
func (s *SweeperService) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(sweepCtx)

	s.logger.Info("Sweeper запущен",
		slog.String("interval", s.policy.Interval.String()),
		slog.String("retention", s.policy.Window.String()),
	)
}

// Stop останавливает фоновый процесс и дожидается завершения текущего прохода.
func (s *SweeperService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Sweeper остановлен")
}

// run — основной цикл фоновой горутины.
func (s *SweeperService) run(ctx context.Context) {
	defer s.wg.Done()

	// Первый проход — сразу после старта
	s.RunOnce(time.Now())

	ticker := time.NewTicker(s.policy.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.RunOnce(t)
		}
	}
}

// RunOnce выполняет один проход на момент now.
// Если предыдущий проход ещё выполняется, возвращает результат с Skipped = true.
func (s *SweeperService) RunOnce(now time.Time) *SweepResult {
	if !s.inProgress.CompareAndSwap(false, true) {
		sweeperSkippedTotal.Inc()
		s.logger.Warn("Sweeper: предыдущий проход не завершён, пропуск")
		return &SweepResult{Skipped: true}
	}
	defer s.inProgress.Store(false)

	start := time.Now()
	result := &SweepResult{}

	s.logger.Debug("Sweeper: проход начат")

	for _, store := range s.stores {
		s.sweepStore(store, now, result)
	}

	result.Duration = time.Since(start)

	sweeperRunsTotal.Inc()
	sweeperFilesDeletedTotal.Add(float64(result.Deleted))
	sweeperErrorsTotal.Add(float64(result.Errors))
	sweeperDurationSeconds.Observe(result.Duration.Seconds())

	s.logger.Info("Sweeper: проход завершён",
		slog.Int("scanned", result.Scanned),
		slog.Int("deleted", result.Deleted),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}

// sweepStore удаляет устаревшие записи одной директории.
func (s *SweeperService) sweepStore(store *blobstore.Store, now time.Time, result *SweepResult) {
	entries, errs := store.List()
	for _, err := range errs {
		s.logger.Error("Sweeper: ошибка чтения директории",
			slog.String("dir", store.Dir()),
			slog.String("error", err.Error()),
		)
		result.Errors++
	}

	for _, e := range entries {
		result.Scanned++
		if !s.policy.IsStale(e.ModTime, now) {
			continue
		}

		if err := store.Remove(e.Path); err != nil {
			s.logger.Error("Sweeper: ошибка удаления",
				slog.String("path", e.Path),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}

		if s.registry != nil {
			s.registry.Remove(e.Name)
		}

		s.logger.Debug("Sweeper: файл удалён",
			slog.String("path", e.Path),
			slog.Bool("dir", e.IsDir),
			slog.Duration("age", now.Sub(e.ModTime)),
		)
		result.Deleted++
	}
}
