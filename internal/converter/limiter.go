package converter

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"

	"github.com/bigkaa/goartstore/converter/internal/domain/model"
)

// Limiter ограничивает число одновременно выполняемых конвертаций.
// Запрос ждёт свободный слот, пока жив его контекст.
type Limiter struct {
	next   Adapter
	sem    *semaphore.Weighted
	limit  int64
	active atomic.Int64

	activeGauge prometheus.Gauge
	waiting     prometheus.Gauge
}

// NewLimiter создаёт Limiter на limit слотов поверх next.
// Метрики регистрируются в reg (nil — default registerer).
func NewLimiter(next Adapter, limit int, reg prometheus.Registerer) *Limiter {
	if limit < 1 {
		limit = 1
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Limiter{
		next:  next,
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: int64(limit),
		activeGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cv_conversions_active",
			Help: "Количество выполняемых конвертаций",
		}),
		waiting: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cv_conversions_waiting",
			Help: "Количество конвертаций, ожидающих свободный слот",
		}),
	}
}

// Convert занимает слот и вызывает следующий адаптер.
func (l *Limiter) Convert(ctx context.Context, req *model.ConversionRequest, outputPath string) error {
	l.waiting.Inc()
	err := l.sem.Acquire(ctx, 1)
	l.waiting.Dec()
	if err != nil {
		return fmt.Errorf("ожидание свободного слота прервано: %w", err)
	}
	defer l.sem.Release(1)

	l.active.Add(1)
	l.activeGauge.Inc()
	defer func() {
		l.active.Add(-1)
		l.activeGauge.Dec()
	}()

	return l.next.Convert(ctx, req, outputPath)
}

// Active возвращает число выполняемых конвертаций.
func (l *Limiter) Active() int64 {
	return l.active.Load()
}

// Limit возвращает максимальное число одновременных конвертаций.
func (l *Limiter) Limit() int64 {
	return l.limit
}
