// Пакет generated — типы и chi-роутер HTTP API Converter,
// соответствующие openapi.yaml.
package generated

import (
	"time"
)

// Defines values for ArtifactInfoFormat.
const (
	ArtifactInfoFormatPdf  ArtifactInfoFormat = "pdf"
	ArtifactInfoFormatWebm ArtifactInfoFormat = "webm"
)

// Defines values for ArtifactInfoKind.
const (
	ArtifactInfoKindDocumentPdf ArtifactInfoKind = "document_pdf"
	ArtifactInfoKindMediaMerge  ArtifactInfoKind = "media_merge"
	ArtifactInfoKindVideoMute   ArtifactInfoKind = "video_mute"
)

// Defines values for CheckResultStatus.
const (
	CheckResultStatusFail CheckResultStatus = "fail"
	CheckResultStatusOk   CheckResultStatus = "ok"
)

// Defines values for ErrorCode.
const (
	BADREQUEST       ErrorCode = "BAD_REQUEST"
	CONVERSIONFAILED ErrorCode = "CONVERSION_FAILED"
	FILETOOLARGE     ErrorCode = "FILE_TOO_LARGE"
	INTERNALERROR    ErrorCode = "INTERNAL_ERROR"
	NOTFOUND         ErrorCode = "NOT_FOUND"
	SWEEPINPROGRESS  ErrorCode = "SWEEP_IN_PROGRESS"
	TOOMANYREQUESTS  ErrorCode = "TOO_MANY_REQUESTS"
)

// Defines values for HealthStatusStatus.
const (
	HealthStatusStatusOk HealthStatusStatus = "ok"
)

// Defines values for ReadinessStatusStatus.
const (
	ReadinessStatusStatusFail ReadinessStatusStatus = "fail"
	ReadinessStatusStatusOk   ReadinessStatusStatus = "ok"
)

// ArtifactInfo defines model for ArtifactInfo.
type ArtifactInfo struct {
	Checksum    string             `json:"checksum"`
	CreatedAt   time.Time          `json:"createdAt"`
	DownloadUrl string             `json:"downloadUrl"`
	ExpiresAt   time.Time          `json:"expiresAt"`
	Filename    string             `json:"filename"`
	Format      ArtifactInfoFormat `json:"format"`
	Kind        ArtifactInfoKind   `json:"kind"`
	Size        int64              `json:"size"`
	SourceNames *[]string          `json:"sourceNames,omitempty"`
}

// ArtifactInfoFormat defines model for ArtifactInfo.Format.
type ArtifactInfoFormat string

// ArtifactInfoKind defines model for ArtifactInfo.Kind.
type ArtifactInfoKind string

// CheckResult defines model for CheckResult.
type CheckResult struct {
	Message *string           `json:"message,omitempty"`
	Status  CheckResultStatus `json:"status"`
}

// CheckResultStatus defines model for CheckResult.Status.
type CheckResultStatus string

// ClientConfig defines model for ClientConfig.
type ClientConfig struct {
	AcceptedExtensions []string `json:"acceptedExtensions"`
	DocumentPattern    string   `json:"documentPattern"`
	Endpoints          struct {
		Convert     string `json:"convert"`
		Merge       string `json:"merge"`
		RemoveAudio string `json:"removeAudio"`
	} `json:"endpoints"`
	MaxUploadBytes int64  `json:"maxUploadBytes"`
	ServerBaseUrl  string `json:"serverBaseUrl"`
}

// ConvertResponse defines model for ConvertResponse.
type ConvertResponse struct {
	DownloadUrl string  `json:"downloadUrl"`
	Message     *string `json:"message,omitempty"`
	Success     bool    `json:"success"`
}

// DiskUsage defines model for DiskUsage.
type DiskUsage struct {
	Available int64 `json:"available"`
	Total     int64 `json:"total"`
	Used      int64 `json:"used"`
}

// Error defines model for Error.
type Error struct {
	Code  ErrorCode `json:"code"`
	Error string    `json:"error"`
}

// ErrorCode defines model for Error.Code.
type ErrorCode string

// HealthStatus defines model for HealthStatus.
type HealthStatus struct {
	Status    HealthStatusStatus `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
	Version   *string            `json:"version,omitempty"`
}

// HealthStatusStatus defines model for HealthStatus.Status.
type HealthStatusStatus string

// ReadinessStatus defines model for ReadinessStatus.
type ReadinessStatus struct {
	Checks    map[string]CheckResult `json:"checks"`
	Status    ReadinessStatusStatus  `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
}

// ReadinessStatusStatus defines model for ReadinessStatus.Status.
type ReadinessStatusStatus string

// ServiceInfo defines model for ServiceInfo.
type ServiceInfo struct {
	Conversions struct {
		Active int64 `json:"active"`
		Limit  int64 `json:"limit"`
	} `json:"conversions"`
	Disk            *DiskUsage `json:"disk,omitempty"`
	DocumentBackend string     `json:"documentBackend"`
	Limits          struct {
		ConversionTimeout string `json:"conversionTimeout"`
		MaxUploadBytes    int64  `json:"maxUploadBytes"`
	} `json:"limits"`
	Retention struct {
		Interval string `json:"interval"`
		Window   string `json:"window"`
	} `json:"retention"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// SweepResponse defines model for SweepResponse.
type SweepResponse struct {
	Deleted    int   `json:"deleted"`
	DurationMs int64 `json:"durationMs"`
	Errors     int   `json:"errors"`
	Scanned    int   `json:"scanned"`
}

// Filename defines model for Filename.
type Filename = string
