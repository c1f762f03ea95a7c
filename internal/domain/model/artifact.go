// Пакет model — доменные модели Converter.
// UploadedFile — загруженный клиентом входной файл (живёт в рамках одного запроса),
// Artifact — результат конвертации, доступный для скачивания до истечения
// окна хранения.
package model

import (
	"time"
)

// OperationKind — вид операции конвертации.
type OperationKind string

const (
	// KindDocumentPDF — офисный документ → PDF
	KindDocumentPDF OperationKind = "document_pdf"
	// KindVideoMute — удаление звуковой дорожки из видео
	KindVideoMute OperationKind = "video_mute"
	// KindMediaMerge — объединение отдельных аудио и видео в один контейнер
	KindMediaMerge OperationKind = "media_merge"
)

// Prefix возвращает префикс имени артефакта для вида операции.
func (k OperationKind) Prefix() string {
	switch k {
	case KindDocumentPDF:
		return "converted"
	case KindVideoMute:
		return "no-audio"
	case KindMediaMerge:
		return "merged"
	default:
		return "artifact"
	}
}

// Format возвращает целевой формат (и расширение без точки) артефакта.
func (k OperationKind) Format() string {
	switch k {
	case KindDocumentPDF:
		return "pdf"
	case KindVideoMute, KindMediaMerge:
		return "webm"
	default:
		return "bin"
	}
}

// Valid проверяет, что вид операции известен.
func (k OperationKind) Valid() bool {
	switch k {
	case KindDocumentPDF, KindVideoMute, KindMediaMerge:
		return true
	}
	return false
}

// UploadedFile — входной файл, принятый от клиента и сохранённый
// в staging-директории. Удаляется после попытки конвертации.
type UploadedFile struct {
	// OriginalName — имя файла на стороне клиента
	OriginalName string `json:"original_name"`
	// Extension — расширение в нижнем регистре, с точкой (".pptx")
	Extension string `json:"extension"`
	// ContentType — MIME-тип из заголовка multipart part
	ContentType string `json:"content_type"`
	// Size — размер в байтах
	Size int64 `json:"size"`
	// StoragePath — абсолютный путь в staging-директории
	StoragePath string `json:"-"`
	// CreatedAt — время приёма файла (UTC)
	CreatedAt time.Time `json:"created_at"`
}

// ConversionRequest — описание одной операции. Существует только
// в рамках цикла запрос/ответ.
type ConversionRequest struct {
	Kind OperationKind
	// Primary — документ (KindDocumentPDF) или видео (KindVideoMute, KindMediaMerge)
	Primary *UploadedFile
	// Audio — аудиодорожка, только для KindMediaMerge
	Audio *UploadedFile
}

// Inputs возвращает все входные файлы запроса в порядке Primary, Audio.
func (r *ConversionRequest) Inputs() []*UploadedFile {
	inputs := make([]*UploadedFile, 0, 2)
	if r.Primary != nil {
		inputs = append(inputs, r.Primary)
	}
	if r.Audio != nil {
		inputs = append(inputs, r.Audio)
	}
	return inputs
}

// SourceNames возвращает оригинальные имена входных файлов.
func (r *ConversionRequest) SourceNames() []string {
	inputs := r.Inputs()
	names := make([]string, 0, len(inputs))
	for _, in := range inputs {
		names = append(names, in.OriginalName)
	}
	return names
}

// Artifact — результат успешной конвертации.
type Artifact struct {
	// Filename — сгенерированное уникальное имя в output-директории.
	// Формат: {prefix}-{unix_ms}-{uuid8}.{ext}
	Filename string `json:"filename"`
	// StoragePath — абсолютный путь на диске (не возвращается в API)
	StoragePath string `json:"-"`
	// Kind — вид операции, породившей артефакт
	Kind OperationKind `json:"kind"`
	// Format — целевой формат (pdf, webm)
	Format string `json:"format"`
	// Size — размер в байтах
	Size int64 `json:"size"`
	// Checksum — SHA-256 содержимого
	Checksum string `json:"checksum"`
	// SourceNames — оригинальные имена входных файлов
	SourceNames []string `json:"source_names,omitempty"`
	// DownloadURL — относительный URL скачивания (/downloads/{filename})
	DownloadURL string `json:"download_url"`
	// CreatedAt — время создания (UTC)
	CreatedAt time.Time `json:"created_at"`
}

// ExpiresAt возвращает момент, после которого артефакт может быть удалён sweeper-ом.
func (a *Artifact) ExpiresAt(window time.Duration) time.Time {
	return a.CreatedAt.Add(window)
}

// RetentionPolicy — единая политика хранения для всех управляемых директорий.
type RetentionPolicy struct {
	// Window — возраст, после которого файл удаляется
	Window time.Duration `json:"window"`
	// Interval — период запуска sweeper-а
	Interval time.Duration `json:"interval"`
}

// IsStale проверяет, превышен ли возраст файла относительно окна хранения.
func (p RetentionPolicy) IsStale(created, now time.Time) bool {
	return now.Sub(created) > p.Window
}
