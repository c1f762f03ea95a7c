// artifacts.go — раздача артефактов (GET <prefix>/{filename})
// и метаданные артефакта (GET /api/v1/artifacts/{filename}).
package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/converter/internal/api/errors"
	"github.com/bigkaa/goartstore/converter/internal/api/generated"
	"github.com/bigkaa/goartstore/converter/internal/domain/model"
	"github.com/bigkaa/goartstore/converter/internal/service"
	"github.com/bigkaa/goartstore/converter/internal/storage/blobstore"
)

const msgFileNotFound = "File not found"

// contentTypes — MIME-типы форматов артефактов. Системная таблица
// mime может не содержать video/webm.
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".webm": "video/webm",
}

// ArtifactsHandler — обработчик раздачи и метаданных артефактов.
type ArtifactsHandler struct {
	outputs   *blobstore.Store
	registry  *service.ArtifactRegistry
	retention time.Duration
	logger    *slog.Logger
}

// NewArtifactsHandler создаёт обработчик артефактов.
// retention — окно хранения (для вычисления expiresAt).
func NewArtifactsHandler(
	outputs *blobstore.Store,
	registry *service.ArtifactRegistry,
	retention time.Duration,
	logger *slog.Logger,
) *ArtifactsHandler {
	return &ArtifactsHandler{
		outputs:   outputs,
		registry:  registry,
		retention: retention,
		logger:    logger.With(slog.String("component", "artifacts_handler")),
	}
}

// ServeDownload отдаёт файл из output-директории по точному имени.
// Поддерживает Range и If-Modified-Since (http.ServeContent).
// Листинг директории не выполняется.
func (h *ArtifactsHandler) ServeDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	f, info, err := h.outputs.Open(name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) || errors.Is(err, blobstore.ErrInvalidName) {
			apierrors.NotFound(w, msgFileNotFound)
			return
		}
		h.logger.Error("Ошибка открытия артефакта",
			slog.String("filename", name),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Failed to read file")
		return
	}
	defer f.Close()

	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		w.Header().Set("Content-Type", ct)
	}
	if a, ok := h.registry.Get(name); ok {
		if cd := contentDisposition(a); cd != "" {
			w.Header().Set("Content-Disposition", cd)
		}
		if a.Checksum != "" {
			w.Header().Set("ETag", `"`+a.Checksum+`"`)
		}
	}

	http.ServeContent(w, r, name, info.ModTime(), f)
}

// GetArtifact обрабатывает GET /api/v1/artifacts/{filename}.
// Метаданные есть только у артефактов, созданных текущим процессом.
func (h *ArtifactsHandler) GetArtifact(w http.ResponseWriter, _ *http.Request, filename generated.Filename) {
	a, ok := h.registry.Get(filename)
	if !ok || !h.outputs.Exists(filename) {
		apierrors.NotFound(w, msgFileNotFound)
		return
	}

	resp := generated.ArtifactInfo{
		Filename:    a.Filename,
		Kind:        generated.ArtifactInfoKind(a.Kind),
		Format:      generated.ArtifactInfoFormat(a.Format),
		Size:        a.Size,
		Checksum:    a.Checksum,
		CreatedAt:   a.CreatedAt,
		ExpiresAt:   a.ExpiresAt(h.retention),
		DownloadUrl: a.DownloadURL,
	}
	if len(a.SourceNames) > 0 {
		names := append([]string(nil), a.SourceNames...)
		resp.SourceNames = &names
	}
	writeJSON(w, http.StatusOK, resp)
}

// contentDisposition формирует заголовок с понятным пользователю именем:
// имя исходного файла с расширением результата ("slides.pptx" → "slides.pdf").
func contentDisposition(a *model.Artifact) string {
	name := friendlyName(a)
	if name == "" {
		return ""
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

// friendlyName возвращает имя для сохранения артефакта на стороне клиента.
// Для объединения берётся имя видео (первый источник).
func friendlyName(a *model.Artifact) string {
	if len(a.SourceNames) == 0 || a.SourceNames[0] == "" {
		return ""
	}
	base := filepath.Base(strings.ReplaceAll(a.SourceNames[0], `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		return ""
	}
	return base + "." + a.Format
}
