// Пакет service — бизнес-логика Converter.
// ArtifactRegistry — LRU-реестр метаданных артефактов с TTL, равным окну хранения.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/converter/internal/domain/model"
)

// Prometheus-метрики реестра.
var (
	registryHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cv_registry_hits_total",
		Help: "Общее количество попаданий в реестр артефактов.",
	})
	registryMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cv_registry_misses_total",
		Help: "Общее количество промахов реестра артефактов.",
	})
)

// ArtifactRegistry — in-memory реестр опубликованных артефактов.
// Источник истины — файлы в output-директории: запись реестра лишь
// дополняет файл оригинальным именем и checksum. После рестарта реестр пуст.
type ArtifactRegistry struct {
	cache *expirable.LRU[string, *model.Artifact]
}

// NewArtifactRegistry создаёт реестр с указанным максимальным размером и TTL.
func NewArtifactRegistry(maxSize int, ttl time.Duration) *ArtifactRegistry {
	cache := expirable.NewLRU[string, *model.Artifact](maxSize, nil, ttl)
	return &ArtifactRegistry{cache: cache}
}

// Get возвращает артефакт по имени файла.
// Возвращает (артефакт, true) при hit или (nil, false) при miss.
func (r *ArtifactRegistry) Get(filename string) (*model.Artifact, bool) {
	val, ok := r.cache.Get(filename)
	if ok {
		registryHitsTotal.Inc()
		return val, true
	}
	registryMissesTotal.Inc()
	return nil, false
}

// Add регистрирует артефакт.
func (r *ArtifactRegistry) Add(a *model.Artifact) {
	r.cache.Add(a.Filename, a)
}

// Remove удаляет запись (артефакт удалён sweeper-ом).
func (r *ArtifactRegistry) Remove(filename string) {
	r.cache.Remove(filename)
}

// Len возвращает число записей.
func (r *ArtifactRegistry) Len() int {
	return r.cache.Len()
}
