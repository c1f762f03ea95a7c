// Пакет errors — конструкторы ошибок HTTP API Converter.
// Единый формат: {"error": "...", "code": "..."}.
// Поле error совместимо с существующими клиентами, которые показывают
// его пользователю как есть. Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // TODO: переименовать пакет errors, конфликт со stdlib

import (
	"encoding/json"
	"net/http"

	"github.com/bigkaa/goartstore/converter/internal/domain/model"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeConversionFailed = "CONVERSION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeTooManyRequests  = "TOO_MANY_REQUESTS"
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeSweepInProgress  = "SWEEP_IN_PROGRESS"
	CodeInternalError    = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: message,
		Code:  code,
	})
}

// WriteFailure записывает ответ для ошибки доменного уровня.
// prefix добавляется к сообщению конвертационных ошибок ("Failed to convert file").
func WriteFailure(w http.ResponseWriter, f *model.Failure, prefix string) {
	switch f.Kind {
	case model.FailureBadRequest:
		BadRequest(w, f.Message)
	case model.FailureNotFound:
		NotFound(w, f.Message)
	case model.FailureStorage:
		InternalError(w, f.Message)
	default:
		message := f.Message
		if prefix != "" {
			message = prefix + ": " + message
		}
		ConversionFailed(w, message)
	}
}

// --- Конструкторы для типичных ошибок ---

// BadRequest — 400 отсутствует обязательное поле или недопустимый тип файла.
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeBadRequest, message)
}

// ConversionFailed — 500 внешний инструмент не смог создать результат.
func ConversionFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeConversionFailed, message)
}

// NotFound — 404 артефакт отсутствует или удалён sweeper-ом.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// TooManyRequests — 429 превышен лимит запросов.
func TooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, CodeTooManyRequests, message)
}

// FileTooLarge — 413 превышен максимальный размер загрузки.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// SweepInProgress — 409 очистка уже выполняется.
func SweepInProgress(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeSweepInProgress, message)
}

// InternalError — 500 внутренняя ошибка сервера.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
