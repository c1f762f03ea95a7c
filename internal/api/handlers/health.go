// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/bigkaa/goartstore/converter/internal/api/generated"
	"github.com/bigkaa/goartstore/converter/internal/config"
)

// DependencyChecker — источник состояния внешних зависимостей (Gotenberg).
type DependencyChecker interface {
	Health() map[string]bool
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// dirs — проверяемые на запись директории: имя проверки → путь
	dirs map[string]string
	// binaries — внешние инструменты: имя проверки → бинарник
	binaries map[string]string
	// deps — мониторинг зависимостей (nil, если не используется)
	deps DependencyChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
// deps может быть nil.
func NewHealthHandler(dirs, binaries map[string]string, deps DependencyChecker) *HealthHandler {
	return &HealthHandler{
		version:  config.Version,
		dirs:     dirs,
		binaries: binaries,
		deps:     deps,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	version := h.version
	writeJSON(w, http.StatusOK, generated.HealthStatus{
		Status:    generated.HealthStatusStatusOk,
		Timestamp: time.Now().UTC(),
		Version:   &version,
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: директории доступны на запись, инструменты конвертации
// найдены в PATH, внешние зависимости здоровы.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	checks := make(map[string]generated.CheckResult, len(h.dirs)+len(h.binaries))

	for name, dir := range h.dirs {
		checks[name] = checkWritable(dir)
	}
	for name, bin := range h.binaries {
		checks[name] = checkBinary(bin)
	}
	if h.deps != nil {
		for name, healthy := range h.deps.Health() {
			checks[name] = checkDependency(healthy)
		}
	}

	status := generated.ReadinessStatusStatusOk
	httpStatus := http.StatusOK
	for _, c := range checks {
		if c.Status != generated.CheckResultStatusOk {
			status = generated.ReadinessStatusStatusFail
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, httpStatus, generated.ReadinessStatus{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

// checkWritable проверяет доступность директории на запись.
func checkWritable(dir string) generated.CheckResult {
	testFile := filepath.Join(dir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return failCheck("Директория недоступна для записи: " + err.Error())
	}
	_ = os.Remove(testFile)
	return generated.CheckResult{Status: generated.CheckResultStatusOk}
}

// checkBinary проверяет, что инструмент найден.
func checkBinary(bin string) generated.CheckResult {
	path, err := exec.LookPath(bin)
	if err != nil {
		return failCheck("Инструмент не найден: " + err.Error())
	}
	return generated.CheckResult{Status: generated.CheckResultStatusOk, Message: &path}
}

func checkDependency(healthy bool) generated.CheckResult {
	if !healthy {
		return failCheck("Зависимость недоступна")
	}
	return generated.CheckResult{Status: generated.CheckResultStatusOk}
}

func failCheck(msg string) generated.CheckResult {
	return generated.CheckResult{Status: generated.CheckResultStatusFail, Message: &msg}
}

