// Пакет config — загрузка и валидация конфигурации Converter
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Поддерживаемые backend-ы конвертации документов.
const (
	DocumentBackendSoffice   = "soffice"
	DocumentBackendGotenberg = "gotenberg"
)

// Config содержит все параметры конфигурации Converter.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Имя вершины графа в метриках topologymetrics
	ServiceID string

	// Staging-директория загруженных файлов
	UploadDir string
	// Директория готовых артефактов
	OutputDir string
	// URL-префикс, под которым раздаются артефакты ("/downloads")
	DownloadPrefix string
	// Дополнительные URL-префиксы для совместимости со старыми клиентами ("/processed")
	DownloadAliases []string
	// Базовый URL сервера для клиента (пусто — тот же origin)
	PublicBaseURL string
	// Разрешённые CORS origins ("*" — все)
	AllowedOrigins []string

	// Допустимые расширения документов для POST /convert (в нижнем регистре, с точкой)
	DocumentExtensions []string
	// Регулярное выражение для проверки имени файла на стороне клиента
	ClientDocumentPattern string

	// Backend конвертации документов: soffice или gotenberg
	DocumentBackend string
	// Путь к исполняемому файлу LibreOffice
	SofficePath string
	// URL Gotenberg (только для backend gotenberg)
	GotenbergURL string
	// Путь к исполняемому файлу ffmpeg
	FFmpegPath string
	// Битрейт видео при перекодировании в webm
	VideoBitrate string

	// Максимальное число одновременных конвертаций
	MaxConcurrentConversions int
	// Таймаут одной конвертации
	ConversionTimeout time.Duration
	// Максимальный размер тела запроса загрузки в байтах
	MaxUploadSize int64

	// Возраст файла, после которого sweeper его удаляет
	RetentionWindow time.Duration
	// Период запуска sweeper-а
	SweepInterval time.Duration
	// Максимальное число записей в реестре артефактов
	RegistrySize int

	// Лимит POST-запросов в минуту с одного IP (0 — без ограничения)
	RateLimitPerMinute int

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// Путь к TLS сертификату (пусто — без TLS)
	TLSCert string
	// Путь к TLS приватному ключу
	TLSKey string

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// CV_PORT — порт HTTP-сервера. PORT поддерживается для PaaS-окружений.
	cfg.Port, err = getEnvInt("CV_PORT", 0)
	if err != nil {
		return nil, fmt.Errorf("CV_PORT: %w", err)
	}
	if cfg.Port == 0 {
		cfg.Port, err = getEnvInt("PORT", 10000)
		if err != nil {
			return nil, fmt.Errorf("PORT: %w", err)
		}
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("CV_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.ServiceID = getEnvDefault("CV_SERVICE_ID", "converter")

	cfg.UploadDir = getEnvDefault("CV_UPLOAD_DIR", "temp")
	cfg.OutputDir = getEnvDefault("CV_OUTPUT_DIR", "processed")
	if cfg.UploadDir == cfg.OutputDir {
		return nil, fmt.Errorf("CV_UPLOAD_DIR и CV_OUTPUT_DIR должны различаться")
	}

	// CV_DOWNLOAD_PREFIX — префикс раздачи артефактов (по умолчанию /downloads)
	cfg.DownloadPrefix, err = normalizePrefix(getEnvDefault("CV_DOWNLOAD_PREFIX", "/downloads"))
	if err != nil {
		return nil, fmt.Errorf("CV_DOWNLOAD_PREFIX: %w", err)
	}
	for _, alias := range getEnvList("CV_DOWNLOAD_ALIASES", "/processed") {
		p, err := normalizePrefix(alias)
		if err != nil {
			return nil, fmt.Errorf("CV_DOWNLOAD_ALIASES: %w", err)
		}
		if p != cfg.DownloadPrefix {
			cfg.DownloadAliases = append(cfg.DownloadAliases, p)
		}
	}

	// CV_PUBLIC_BASE_URL — опционально, абсолютный URL без завершающего слэша
	cfg.PublicBaseURL = strings.TrimSuffix(getEnvDefault("CV_PUBLIC_BASE_URL", ""), "/")
	if cfg.PublicBaseURL != "" {
		u, err := url.Parse(cfg.PublicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("CV_PUBLIC_BASE_URL: некорректный абсолютный URL %q", cfg.PublicBaseURL)
		}
	}

	cfg.AllowedOrigins = getEnvList("CV_ALLOWED_ORIGINS", "http://localhost:10000,http://127.0.0.1:10000")

	for _, ext := range getEnvList("CV_DOCUMENT_EXTENSIONS", ".ppt,.pptx,.odp,.doc,.docx,.odt,.rtf,.xls,.xlsx,.ods") {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.DocumentExtensions = append(cfg.DocumentExtensions, ext)
	}
	if len(cfg.DocumentExtensions) == 0 {
		return nil, fmt.Errorf("CV_DOCUMENT_EXTENSIONS: список не может быть пустым")
	}

	cfg.ClientDocumentPattern = getEnvDefault("CV_CLIENT_DOCUMENT_PATTERN", `\.(ppt|pptx)$`)
	if _, err := regexp.Compile(cfg.ClientDocumentPattern); err != nil {
		return nil, fmt.Errorf("CV_CLIENT_DOCUMENT_PATTERN: %w", err)
	}

	// CV_DOCUMENT_BACKEND — soffice (локальный LibreOffice) или gotenberg (HTTP)
	cfg.DocumentBackend = getEnvDefault("CV_DOCUMENT_BACKEND", DocumentBackendSoffice)
	switch cfg.DocumentBackend {
	case DocumentBackendSoffice, DocumentBackendGotenberg:
	default:
		return nil, fmt.Errorf("CV_DOCUMENT_BACKEND: недопустимое значение %q, допустимые: soffice, gotenberg", cfg.DocumentBackend)
	}
	cfg.SofficePath = getEnvDefault("CV_SOFFICE_PATH", "soffice")
	cfg.GotenbergURL = strings.TrimSuffix(getEnvDefault("CV_GOTENBERG_URL", ""), "/")
	if cfg.DocumentBackend == DocumentBackendGotenberg {
		if cfg.GotenbergURL == "" {
			return nil, fmt.Errorf("CV_GOTENBERG_URL: обязателен при CV_DOCUMENT_BACKEND=gotenberg")
		}
		if _, err := url.ParseRequestURI(cfg.GotenbergURL); err != nil {
			return nil, fmt.Errorf("CV_GOTENBERG_URL: %w", err)
		}
	}
	cfg.FFmpegPath = getEnvDefault("CV_FFMPEG_PATH", "ffmpeg")
	cfg.VideoBitrate = getEnvDefault("CV_VIDEO_BITRATE", "2500k")

	// CV_MAX_CONCURRENT_CONVERSIONS — по умолчанию число CPU
	cfg.MaxConcurrentConversions, err = getEnvInt("CV_MAX_CONCURRENT_CONVERSIONS", runtime.NumCPU())
	if err != nil {
		return nil, fmt.Errorf("CV_MAX_CONCURRENT_CONVERSIONS: %w", err)
	}
	if cfg.MaxConcurrentConversions < 1 {
		return nil, fmt.Errorf("CV_MAX_CONCURRENT_CONVERSIONS: значение должно быть положительным")
	}

	cfg.ConversionTimeout, err = getEnvDuration("CV_CONVERSION_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CV_CONVERSION_TIMEOUT: %w", err)
	}

	// CV_MAX_UPLOAD_SIZE — по умолчанию 512 MB
	cfg.MaxUploadSize, err = getEnvInt64("CV_MAX_UPLOAD_SIZE", 512<<20)
	if err != nil {
		return nil, fmt.Errorf("CV_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("CV_MAX_UPLOAD_SIZE: значение должно быть положительным")
	}

	// CV_RETENTION_WINDOW — окно хранения (по умолчанию 24h)
	cfg.RetentionWindow, err = getEnvDuration("CV_RETENTION_WINDOW", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CV_RETENTION_WINDOW: %w", err)
	}
	// CV_SWEEP_INTERVAL — период sweeper-а (по умолчанию 1h)
	cfg.SweepInterval, err = getEnvDuration("CV_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CV_SWEEP_INTERVAL: %w", err)
	}
	if cfg.RetentionWindow <= 0 || cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("CV_RETENTION_WINDOW и CV_SWEEP_INTERVAL должны быть положительными")
	}

	cfg.RegistrySize, err = getEnvInt("CV_REGISTRY_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("CV_REGISTRY_SIZE: %w", err)
	}
	if cfg.RegistrySize < 1 {
		return nil, fmt.Errorf("CV_REGISTRY_SIZE: значение должно быть положительным")
	}

	cfg.RateLimitPerMinute, err = getEnvInt("CV_RATE_LIMIT_PER_MINUTE", 60)
	if err != nil {
		return nil, fmt.Errorf("CV_RATE_LIMIT_PER_MINUTE: %w", err)
	}
	if cfg.RateLimitPerMinute < 0 {
		return nil, fmt.Errorf("CV_RATE_LIMIT_PER_MINUTE: значение не может быть отрицательным")
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CV_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CV_LOG_LEVEL: %w", err)
	}
	cfg.LogFormat = getEnvDefault("CV_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CV_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// Конвертация видео может занимать минуты — таймауты записи увеличены
	cfg.HTTPReadTimeout, err = getEnvDuration("CV_HTTP_READ_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CV_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("CV_HTTP_WRITE_TIMEOUT", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CV_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("CV_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CV_HTTP_IDLE_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout, err = getEnvDuration("CV_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CV_SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg.TLSCert = getEnvDefault("CV_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("CV_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("CV_TLS_CERT и CV_TLS_KEY задаются только вместе")
	}

	cfg.DephealthCheckInterval, err = getEnvDuration("CV_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CV_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("CV_DEPHEALTH_GROUP", "converter")

	return cfg, nil
}

// TLSEnabled сообщает, настроен ли TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}


// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvList возвращает список значений, разделённых запятыми.
// Пустые элементы отбрасываются.
func getEnvList(key, defaultVal string) []string {
	raw := getEnvDefault(key, defaultVal)
	var result []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 24h)", val)
	}
	return d, nil
}

// normalizePrefix приводит URL-префикс к виду "/name" без завершающего слэша.
func normalizePrefix(p string) (string, error) {
	p = "/" + strings.Trim(strings.TrimSpace(p), "/")
	if p == "/" {
		return "", fmt.Errorf("префикс не может быть корневым")
	}
	if strings.ContainsAny(p, " ?#{}") {
		return "", fmt.Errorf("недопустимые символы в префиксе %q", p)
	}
	return p, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
