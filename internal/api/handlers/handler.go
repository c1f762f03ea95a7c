// handler.go — APIHandler реализует generated.ServerInterface,
// делегируя вызовы в отдельные handler'ы по доменам.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bigkaa/goartstore/converter/internal/api/generated"
)

// MetricsProvider — обработчик GET /metrics.
type MetricsProvider interface {
	GetMetrics(w http.ResponseWriter, r *http.Request)
}

// APIHandler — единая реализация ServerInterface, собирающая
// все доменные handlers в один объект.
type APIHandler struct {
	convert     *ConvertHandler
	artifacts   *ArtifactsHandler
	system      *SystemHandler
	maintenance *MaintenanceHandler
	health      *HealthHandler
	metrics     MetricsProvider
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	convert *ConvertHandler,
	artifacts *ArtifactsHandler,
	system *SystemHandler,
	maintenance *MaintenanceHandler,
	health *HealthHandler,
	metrics MetricsProvider,
) *APIHandler {
	return &APIHandler{
		convert:     convert,
		artifacts:   artifacts,
		system:      system,
		maintenance: maintenance,
		health:      health,
		metrics:     metrics,
	}
}

// --- Conversion ---

func (h *APIHandler) ConvertDocument(w http.ResponseWriter, r *http.Request) {
	h.convert.ConvertDocument(w, r)
}

func (h *APIHandler) RemoveAudio(w http.ResponseWriter, r *http.Request) {
	h.convert.RemoveAudio(w, r)
}

func (h *APIHandler) MergeMedia(w http.ResponseWriter, r *http.Request) {
	h.convert.MergeMedia(w, r)
}

// --- Artifacts ---

func (h *APIHandler) GetArtifact(w http.ResponseWriter, r *http.Request, filename generated.Filename) {
	h.artifacts.GetArtifact(w, r, filename)
}

// --- System ---

func (h *APIHandler) GetServiceInfo(w http.ResponseWriter, r *http.Request) {
	h.system.GetServiceInfo(w, r)
}

func (h *APIHandler) GetClientConfig(w http.ResponseWriter, r *http.Request) {
	h.system.GetClientConfig(w, r)
}

func (h *APIHandler) GetOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	h.system.GetOpenAPISpec(w, r)
}

// --- Maintenance ---

func (h *APIHandler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	h.maintenance.TriggerSweep(w, r)
}

// --- Health ---

func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// --- Metrics ---

func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.GetMetrics(w, r)
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ generated.ServerInterface = (*APIHandler)(nil)

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
