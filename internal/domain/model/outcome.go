package model

import (
	"errors"
	"fmt"
)

// FailureKind — класс ошибки обработки запроса.
type FailureKind string

const (
	// FailureBadRequest — отсутствует обязательное поле или недопустимый тип файла (400)
	FailureBadRequest FailureKind = "bad_request"
	// FailureConversion — внешний инструмент завершился ошибкой,
	// либо не удалось сохранить результат (500)
	FailureConversion FailureKind = "conversion_failed"
	// FailureStorage — ошибка файловой системы вне пути сохранения артефакта
	FailureStorage FailureKind = "storage_failure"
	// FailureNotFound — артефакт отсутствует или уже удалён (404)
	FailureNotFound FailureKind = "not_found"
)

// Failure — ошибка обработки запроса с классом и сообщением для клиента.
type Failure struct {
	Kind FailureKind
	// Message — текст, который получит клиент
	Message string
	// Cause — исходная ошибка (может быть nil)
	Cause error
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// BadRequest создаёт Failure класса FailureBadRequest.
func BadRequest(message string) *Failure {
	return &Failure{Kind: FailureBadRequest, Message: message}
}

// ConversionFailed создаёт Failure класса FailureConversion.
func ConversionFailed(message string, cause error) *Failure {
	return &Failure{Kind: FailureConversion, Message: message, Cause: cause}
}

// AsFailure извлекает *Failure из цепочки ошибок.
// Неклассифицированная ошибка трактуется как FailureConversion.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return ConversionFailed(err.Error(), err)
}

// Outcome — результат одной конвертации: либо Artifact, либо Failure.
// Оба семейства адаптеров (документы и медиа) приводятся к этому типу
// до формирования HTTP-ответа.
type Outcome struct {
	Artifact *Artifact
	Failure  *Failure
}

// Succeeded возвращает Outcome с артефактом.
func Succeeded(a *Artifact) Outcome {
	return Outcome{Artifact: a}
}

// Failed возвращает Outcome с ошибкой.
func Failed(err error) Outcome {
	return Outcome{Failure: AsFailure(err)}
}

// OK сообщает, что конвертация завершилась успешно.
func (o Outcome) OK() bool {
	return o.Failure == nil && o.Artifact != nil
}
