// system.go — системные endpoints: GET /api/v1/info, GET /api/v1/client-config,
// GET /api/openapi.json.
package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/goartstore/converter/internal/api/errors"
	"github.com/bigkaa/goartstore/converter/internal/api/generated"
	"github.com/bigkaa/goartstore/converter/internal/config"
)

// ConversionStats — текущая загрузка конвертера.
type ConversionStats interface {
	Active() int64
	Limit() int64
}

// DiskUsageFunc возвращает total, used, available в байтах.
type DiskUsageFunc func() (total, used, available int64, err error)

// SystemHandler — обработчик системных endpoints.
type SystemHandler struct {
	cfg       *config.Config
	stats     ConversionStats
	diskUsage DiskUsageFunc
	// openAPI — OpenAPI документ в JSON, подготовленный при старте
	openAPI []byte
	logger  *slog.Logger
}

// NewSystemHandler создаёт обработчик системных endpoints.
// diskUsage может быть nil — тогда disk в ответе не заполняется.
func NewSystemHandler(
	cfg *config.Config,
	stats ConversionStats,
	diskUsage DiskUsageFunc,
	openAPI []byte,
	logger *slog.Logger,
) *SystemHandler {
	return &SystemHandler{
		cfg:       cfg,
		stats:     stats,
		diskUsage: diskUsage,
		openAPI:   openAPI,
		logger:    logger.With(slog.String("component", "system_handler")),
	}
}

// GetServiceInfo обрабатывает GET /api/v1/info.
func (h *SystemHandler) GetServiceInfo(w http.ResponseWriter, _ *http.Request) {
	var resp generated.ServiceInfo
	resp.Service = h.cfg.ServiceID
	resp.Version = config.Version
	resp.DocumentBackend = h.cfg.DocumentBackend
	resp.Retention.Window = h.cfg.RetentionWindow.String()
	resp.Retention.Interval = h.cfg.SweepInterval.String()
	resp.Limits.MaxUploadBytes = h.cfg.MaxUploadSize
	resp.Limits.ConversionTimeout = h.cfg.ConversionTimeout.String()
	if h.stats != nil {
		resp.Conversions.Active = h.stats.Active()
		resp.Conversions.Limit = h.stats.Limit()
	}

	if h.diskUsage != nil {
		total, used, available, err := h.diskUsage()
		if err != nil {
			h.logger.Warn("Не удалось получить ёмкость диска",
				slog.String("error", err.Error()),
			)
		} else {
			resp.Disk = &generated.DiskUsage{
				Total:     total,
				Used:      used,
				Available: available,
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetClientConfig обрабатывает GET /api/v1/client-config.
// Браузерный клиент берёт отсюда базовый URL, шаблон допустимых
// документов и пути endpoints.
func (h *SystemHandler) GetClientConfig(w http.ResponseWriter, _ *http.Request) {
	var resp generated.ClientConfig
	resp.ServerBaseUrl = strings.TrimSuffix(h.cfg.PublicBaseURL, "/")
	resp.DocumentPattern = h.cfg.ClientDocumentPattern
	resp.AcceptedExtensions = append([]string{}, h.cfg.DocumentExtensions...)
	resp.MaxUploadBytes = h.cfg.MaxUploadSize
	resp.Endpoints.Convert = "/convert"
	resp.Endpoints.RemoveAudio = "/remove-audio"
	resp.Endpoints.Merge = "/merge"

	writeJSON(w, http.StatusOK, resp)
}

// GetOpenAPISpec обрабатывает GET /api/openapi.json.
func (h *SystemHandler) GetOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	if len(h.openAPI) == 0 {
		apierrors.InternalError(w, "OpenAPI document is not available")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openAPI)
}
