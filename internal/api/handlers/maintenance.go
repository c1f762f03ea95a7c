// maintenance.go — обработчик POST /api/v1/maintenance/sweep.
// Делегирует очистку в SweeperService.
package handlers

import (
	"net/http"
	"time"

	apierrors "github.com/bigkaa/goartstore/converter/internal/api/errors"
	"github.com/bigkaa/goartstore/converter/internal/api/generated"
	"github.com/bigkaa/goartstore/converter/internal/service"
)

// SweepRunner — интерфейс для ручного запуска очистки.
// Позволяет тестировать handler без полного SweeperService.
type SweepRunner interface {
	// RunOnce выполняет один проход очистки.
	// Result.Skipped — проход уже выполняется.
	RunOnce(now time.Time) *service.SweepResult
}

// MaintenanceHandler — обработчик endpoints обслуживания.
type MaintenanceHandler struct {
	sweeper SweepRunner
}

// NewMaintenanceHandler создаёт обработчик maintenance endpoints.
func NewMaintenanceHandler(sweeper SweepRunner) *MaintenanceHandler {
	return &MaintenanceHandler{sweeper: sweeper}
}

// TriggerSweep обрабатывает POST /api/v1/maintenance/sweep.
// Запускает синхронный проход очистки и возвращает результат.
// Если очистка уже выполняется — 409 SWEEP_IN_PROGRESS.
func (h *MaintenanceHandler) TriggerSweep(w http.ResponseWriter, _ *http.Request) {
	result := h.sweeper.RunOnce(time.Now())
	if result.Skipped {
		apierrors.SweepInProgress(w, "Sweep is already in progress")
		return
	}

	writeJSON(w, http.StatusOK, generated.SweepResponse{
		Scanned:    result.Scanned,
		Deleted:    result.Deleted,
		Errors:     result.Errors,
		DurationMs: result.Duration.Milliseconds(),
	})
}
