// convert.go — HTTP handlers операций конвертации:
// POST /convert, POST /remove-audio, POST /merge.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/goartstore/converter/internal/api/errors"
	"github.com/bigkaa/goartstore/converter/internal/api/generated"
	"github.com/bigkaa/goartstore/converter/internal/domain/model"
	"github.com/bigkaa/goartstore/converter/internal/service"
)

// multipartMemory — объём multipart-данных, удерживаемый в памяти;
// остальное net/http сбрасывает во временные файлы.
const multipartMemory = 32 << 20

// Сообщения об ошибках и успехе, видимые клиенту.
const (
	msgNoFile        = "No file provided"
	msgNoVideo       = "No video file provided"
	msgMergeInputs   = "Both audio and video files are required"
	msgConverted     = "File converted successfully"
	prefixConvert    = "Failed to convert file"
	prefixRemove     = "Failed to process video"
	prefixMerge      = "Failed to merge files"
	fieldFile        = "file"
	fieldVideo       = "video"
	fieldAudio       = "audio"
	fieldLegacyURL   = "url"
	msgBadMultipart  = "Invalid multipart request"
	msgTooLargeBytes = "Upload exceeds the maximum size of %d bytes"
)

// ConvertHandler — обработчик endpoints конвертации.
type ConvertHandler struct {
	svc           *service.ConversionService
	maxUploadSize int64
	logger        *slog.Logger
}

// NewConvertHandler создаёт обработчик конвертации.
// maxUploadSize — максимальный размер тела запроса в байтах (0 — без ограничения).
func NewConvertHandler(svc *service.ConversionService, maxUploadSize int64, logger *slog.Logger) *ConvertHandler {
	return &ConvertHandler{
		svc:           svc,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "convert_handler")),
	}
}

// ConvertDocument обрабатывает POST /convert.
// Multipart form: file (обязательно), url (игнорируется).
func (h *ConvertHandler) ConvertDocument(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseForm(w, r, msgNoFile)
	if !ok {
		return
	}
	defer h.removeForm(form)

	if vals := form.Value[fieldLegacyURL]; len(vals) > 0 {
		h.logger.Debug("Поле url проигнорировано", slog.String("url", vals[0]))
	}

	fh := formFile(form, fieldFile)
	if fh == nil {
		apierrors.BadRequest(w, msgNoFile)
		return
	}
	if err := h.svc.CheckDocumentType(fh.Filename); err != nil {
		apierrors.WriteFailure(w, model.AsFailure(err), "")
		return
	}

	doc, err := h.stage(fh)
	if err != nil {
		apierrors.WriteFailure(w, model.AsFailure(err), prefixConvert)
		return
	}

	outcome := h.svc.Convert(r.Context(), &model.ConversionRequest{
		Kind:    model.KindDocumentPDF,
		Primary: doc,
	})
	h.respond(w, outcome, prefixConvert, msgConverted)
}

// RemoveAudio обрабатывает POST /remove-audio.
// Multipart form: video (обязательно).
func (h *ConvertHandler) RemoveAudio(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseForm(w, r, msgNoVideo)
	if !ok {
		return
	}
	defer h.removeForm(form)

	fh := formFile(form, fieldVideo)
	if fh == nil {
		apierrors.BadRequest(w, msgNoVideo)
		return
	}

	video, err := h.stage(fh)
	if err != nil {
		apierrors.WriteFailure(w, model.AsFailure(err), prefixRemove)
		return
	}

	outcome := h.svc.Convert(r.Context(), &model.ConversionRequest{
		Kind:    model.KindVideoMute,
		Primary: video,
	})
	h.respond(w, outcome, prefixRemove, "")
}

// MergeMedia обрабатывает POST /merge.
// Multipart form: audio и video (оба обязательны).
func (h *ConvertHandler) MergeMedia(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseForm(w, r, msgMergeInputs)
	if !ok {
		return
	}
	defer h.removeForm(form)

	videoFH := formFile(form, fieldVideo)
	audioFH := formFile(form, fieldAudio)
	if videoFH == nil || audioFH == nil {
		apierrors.BadRequest(w, msgMergeInputs)
		return
	}

	video, err := h.stage(videoFH)
	if err != nil {
		apierrors.WriteFailure(w, model.AsFailure(err), prefixMerge)
		return
	}
	audio, err := h.stage(audioFH)
	if err != nil {
		h.svc.Discard(video)
		apierrors.WriteFailure(w, model.AsFailure(err), prefixMerge)
		return
	}

	outcome := h.svc.Convert(r.Context(), &model.ConversionRequest{
		Kind:    model.KindMediaMerge,
		Primary: video,
		Audio:   audio,
	})
	h.respond(w, outcome, prefixMerge, "")
}

// parseForm ограничивает размер тела и разбирает multipart form.
// Запрос без multipart-тела трактуется как запрос без обязательного поля.
func (h *ConvertHandler) parseForm(w http.ResponseWriter, r *http.Request, missingMsg string) (*multipart.Form, bool) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	err := r.ParseMultipartForm(multipartMemory)
	if err == nil {
		return r.MultipartForm, true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		apierrors.FileTooLarge(w, fmt.Sprintf(msgTooLargeBytes, tooLarge.Limit))
	case strings.Contains(err.Error(), "request body too large"):
		apierrors.FileTooLarge(w, fmt.Sprintf(msgTooLargeBytes, h.maxUploadSize))
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		apierrors.BadRequest(w, missingMsg)
	default:
		apierrors.BadRequest(w, msgBadMultipart+": "+err.Error())
	}
	return nil, false
}

// removeForm удаляет временные файлы multipart form.
func (h *ConvertHandler) removeForm(form *multipart.Form) {
	if err := form.RemoveAll(); err != nil {
		h.logger.Warn("Ошибка удаления временных файлов multipart",
			slog.String("error", err.Error()),
		)
	}
}

// stage сохраняет одну часть multipart form в staging-директорию.
func (h *ConvertHandler) stage(fh *multipart.FileHeader) (*model.UploadedFile, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, &model.Failure{
			Kind:    model.FailureStorage,
			Message: "Failed to read upload",
			Cause:   err,
		}
	}
	defer f.Close()

	return h.svc.Stage(service.StageParams{
		Reader:           f,
		OriginalFilename: fh.Filename,
		ContentType:      fh.Header.Get("Content-Type"),
	})
}

// respond формирует HTTP-ответ по результату конвертации.
func (h *ConvertHandler) respond(w http.ResponseWriter, outcome model.Outcome, failurePrefix, message string) {
	if !outcome.OK() {
		apierrors.WriteFailure(w, outcome.Failure, failurePrefix)
		return
	}

	resp := generated.ConvertResponse{
		Success:     true,
		DownloadUrl: outcome.Artifact.DownloadURL,
	}
	if message != "" {
		resp.Message = &message
	}
	writeJSON(w, http.StatusOK, resp)
}

// formFile возвращает первый файл поля или nil, если поле отсутствует.
func formFile(form *multipart.Form, field string) *multipart.FileHeader {
	files := form.File[field]
	if len(files) == 0 || files[0].Filename == "" {
		return nil
	}
	return files[0]
}
