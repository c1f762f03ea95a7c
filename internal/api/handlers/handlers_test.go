package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bigkaa/goartstore/converter/internal/config"
	"github.com/bigkaa/goartstore/converter/internal/converter"
	"github.com/bigkaa/goartstore/converter/internal/domain/model"
	"github.com/bigkaa/goartstore/converter/internal/server"
	"github.com/bigkaa/goartstore/converter/internal/service"
	"github.com/bigkaa/goartstore/converter/internal/storage/blobstore"
)

// testEnv — полностью собранный HTTP-стек с подменённым адаптером конвертации.
type testEnv struct {
	handler http.Handler
	uploads *blobstore.Store
	outputs *blobstore.Store
	calls   *atomic.Int32
}

// part — одна часть multipart-запроса.
type part struct {
	field    string
	filename string // пусто — обычное текстовое поле
	content  string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                  10000,
		ServiceID:             "converter",
		DownloadPrefix:        "/downloads",
		DownloadAliases:       []string{"/processed"},
		AllowedOrigins:        []string{"*"},
		DocumentExtensions:    []string{".ppt", ".pptx"},
		ClientDocumentPattern: `\.(ppt|pptx)$`,
		DocumentBackend:       config.DocumentBackendSoffice,
		ConversionTimeout:     time.Minute,
		MaxUploadSize:         1 << 20,
		RetentionWindow:       24 * time.Hour,
		SweepInterval:         time.Hour,
	}
}

// fakeAdapter пишет PDF для документов и заглушку WebM для медиа.
func fakeAdapter(_ context.Context, req *model.ConversionRequest, out string) error {
	if req.Kind == model.KindDocumentPDF {
		return os.WriteFile(out, []byte("%PDF-1.4 fake"), 0o640)
	}
	return os.WriteFile(out, []byte("\x1a\x45\xdf\xa3 fake webm"), 0o640)
}

func newTestEnv(t *testing.T, cfg *config.Config, adapter converter.AdapterFunc) *testEnv {
	t.Helper()
	logger := discardLogger()
	dir := t.TempDir()

	uploads, err := blobstore.New(filepath.Join(dir, "temp"), logger)
	if err != nil {
		t.Fatalf("blobstore uploads: %v", err)
	}
	outputs, err := blobstore.New(filepath.Join(dir, "processed"), logger)
	if err != nil {
		t.Fatalf("blobstore outputs: %v", err)
	}

	calls := &atomic.Int32{}
	counted := converter.AdapterFunc(func(ctx context.Context, req *model.ConversionRequest, out string) error {
		calls.Add(1)
		return adapter(ctx, req, out)
	})

	registry := service.NewArtifactRegistry(100, cfg.RetentionWindow)
	limiter := converter.NewLimiter(counted, 2, prometheus.NewRegistry())
	svc := service.NewConversionService(uploads, outputs, limiter, registry, service.ConversionOptions{
		DocumentExtensions: cfg.DocumentExtensions,
		DownloadPrefix:     cfg.DownloadPrefix,
		Timeout:            cfg.ConversionTimeout,
	}, logger)
	sweeper := service.NewSweeperService(model.RetentionPolicy{
		Window:   cfg.RetentionWindow,
		Interval: cfg.SweepInterval,
	}, registry, logger, uploads, outputs)

	artifacts := NewArtifactsHandler(outputs, registry, cfg.RetentionWindow, logger)
	api := NewAPIHandler(
		NewConvertHandler(svc, cfg.MaxUploadSize, logger),
		artifacts,
		NewSystemHandler(cfg, limiter, nil, []byte(`{"openapi":"3.0.3"}`), logger),
		NewMaintenanceHandler(sweeper),
		NewHealthHandler(map[string]string{
			"upload_dir": uploads.Dir(),
			"output_dir": outputs.Dir(),
		}, nil, nil),
		server.NewMetricsHandler(),
	)

	return &testEnv{
		handler: server.NewHandler(cfg, logger, server.Routes{
			API:      api,
			Download: artifacts.ServeDownload,
		}),
		uploads: uploads,
		outputs: outputs,
		calls:   calls,
	}
}

func (e *testEnv) post(t *testing.T, path string, parts ...part) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.filename == "" {
			if err := mw.WriteField(p.field, p.content); err != nil {
				t.Fatal(err)
			}
			continue
		}
		fw, err := mw.CreateFormFile(p.field, p.filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(p.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("некорректный JSON: %v (%s)", err, rec.Body.String())
	}
	return body
}

func countEntries(t *testing.T, s *blobstore.Store) int {
	t.Helper()
	entries, errs := s.List()
	if len(errs) > 0 {
		t.Fatalf("List: %v", errs)
	}
	return len(entries)
}

// expectError проверяет статус и тело ошибки.
func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code, message string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("статус: ожидалось %d, получено %d (%s)", status, rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["code"] != code {
		t.Errorf("code: ожидалось %q, получено %v", code, body["code"])
	}
	if message != "" && body["error"] != message {
		t.Errorf("error: ожидалось %q, получено %v", message, body["error"])
	}
}

func TestConvert_DownloadIsPDF(t *testing.T) {
	env := newTestEnv(t, testConfig(), fakeAdapter)

	rec := env.post(t, "/convert", part{field: "file", filename: "slides.pptx", content: "PK\x03\x04"})
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидалось 200, получено %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["success"] != true {
		t.Errorf("success: %v", body["success"])
	}
	if body["message"] != "File converted successfully" {
		t.Errorf("message: %v", body["message"])
	}
	downloadURL, _ := body["downloadUrl"].(string)
	if !strings.HasPrefix(downloadURL, "/downloads/converted-") || !strings.HasSuffix(downloadURL, ".pdf") {
		t.Fatalf("неожиданный downloadUrl: %q", downloadURL)
	}

	dl := env.get(downloadURL)
	if dl.Code != http.StatusOK {
		t.Fatalf("GET %s: ожидалось 200, получено %d", downloadURL, dl.Code)
	}
	if !bytes.HasPrefix(dl.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("ожидался PDF, получено %q", dl.Body.String())
	}
	if ct := dl.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type: %q", ct)
	}
	if cd := dl.Header().Get("Content-Disposition"); !strings.Contains(cd, "slides.pdf") {
		t.Errorf("Content-Disposition: %q", cd)
	}
	if dl.Header().Get("ETag") == "" {
		t.Error("ожидался ETag")
	}

	// Алиас отдаёт тот же файл
	name := strings.TrimPrefix(downloadURL, "/downloads/")
	if alias := env.get("/processed/" + name); alias.Code != http.StatusOK {
		t.Errorf("GET /processed/%s: получено %d", name, alias.Code)
	}

	if n := countEntries(t, env.uploads); n != 0 {
		t.Errorf("входной файл не удалён: %d записей в staging", n)
	}
}

func TestConvert_SameInputTwice(t *testing.T) {
	env := newTestEnv(t, testConfig(), fakeAdapter)

	urls := make(map[string]bool)
	for i := 0; i < 2; i++ {
		rec := env.post(t, "/convert", part{field: "file", filename: "deck.ppt", content: "same"})
		if rec.Code != http.StatusOK {
			t.Fatalf("попытка %d: %d %s", i, rec.Code, rec.Body.String())
		}
		urls[decode(t, rec)["downloadUrl"].(string)] = true
	}
	if len(urls) != 2 {
		t.Errorf("ожидались два разных downloadUrl, получено %v", urls)
	}
}

func TestConvert_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		parts   []part
		message string
	}{
		{
			name:    "convert без файла",
			path:    "/convert",
			parts:   []part{{field: "url", content: "https://example.com/deck.pptx"}},
			message: "No file provided",
		},
		{
			name:    "convert недопустимый тип",
			path:    "/convert",
			parts:   []part{{field: "file", filename: "notes.txt", content: "text"}},
			message: "Unsupported file type: .txt",
		},
		{
			name:    "remove-audio без видео",
			path:    "/remove-audio",
			parts:   []part{{field: "audio", filename: "a.mp3", content: "ID3"}},
			message: "No video file provided",
		},
		{
			name:    "merge только audio",
			path:    "/merge",
			parts:   []part{{field: "audio", filename: "a.mp3", content: "ID3"}},
			message: "Both audio and video files are required",
		},
		{
			name:    "merge только video",
			path:    "/merge",
			parts:   []part{{field: "video", filename: "v.mp4", content: "ftyp"}},
			message: "Both audio and video files are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testConfig(), fakeAdapter)

			rec := env.post(t, tt.path, tt.parts...)
			expectError(t, rec, http.StatusBadRequest, "BAD_REQUEST", tt.message)

			if n := env.calls.Load(); n != 0 {
				t.Errorf("адаптер вызван %d раз", n)
			}
			if n := countEntries(t, env.uploads); n != 0 {
				t.Errorf("в staging остались файлы: %d", n)
			}
		})
	}
}

func TestConvert_NotMultipart(t *testing.T) {
	env := newTestEnv(t, testConfig(), fakeAdapter)

	req := httptest.NewRequest(http.MethodPost, "/merge", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	expectError(t, rec, http.StatusBadRequest, "BAD_REQUEST", "Both audio and video files are required")
}

func TestConvert_AdapterFailure(t *testing.T) {
	failing := converter.AdapterFunc(func(context.Context, *model.ConversionRequest, string) error {
		return errors.New("boom")
	})

	tests := []struct {
		path    string
		parts   []part
		message string
	}{
		{"/convert", []part{{field: "file", filename: "s.pptx", content: "PK"}}, "Failed to convert file: boom"},
		{"/remove-audio", []part{{field: "video", filename: "v.mp4", content: "ftyp"}}, "Failed to process video: boom"},
		{"/merge", []part{
			{field: "audio", filename: "a.mp3", content: "ID3"},
			{field: "video", filename: "v.mp4", content: "ftyp"},
		}, "Failed to merge files: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			env := newTestEnv(t, testConfig(), failing)

			rec := env.post(t, tt.path, tt.parts...)
			expectError(t, rec, http.StatusInternalServerError, "CONVERSION_FAILED", tt.message)

			if n := countEntries(t, env.uploads); n != 0 {
				t.Errorf("входные файлы не удалены: %d", n)
			}
			if n := countEntries(t, env.outputs); n != 0 {
				t.Errorf("в output-директории остались файлы: %d", n)
			}
		})
	}
}

func TestMedia_Success(t *testing.T) {
	env := newTestEnv(t, testConfig(), fakeAdapter)

	rec := env.post(t, "/remove-audio", part{field: "video", filename: "clip.mp4", content: "ftyp"})
	if rec.Code != http.StatusOK {
		t.Fatalf("remove-audio: %d %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if url, _ := body["downloadUrl"].(string); !strings.HasPrefix(url, "/downloads/no-audio-") || !strings.HasSuffix(url, ".webm") {
		t.Errorf("downloadUrl: %v", body["downloadUrl"])
	}
	if _, ok := body["message"]; ok {
		t.Errorf("message не ожидался: %v", body["message"])
	}

	rec = env.post(t, "/merge",
		part{field: "audio", filename: "voice.mp3", content: "ID3"},
		part{field: "video", filename: "clip.mp4", content: "ftyp"},
	)
	if rec.Code != http.StatusOK {
		t.Fatalf("merge: %d %s", rec.Code, rec.Body.String())
	}
	url, _ := decode(t, rec)["downloadUrl"].(string)
	if !strings.HasPrefix(url, "/downloads/merged-") {
		t.Fatalf("downloadUrl: %q", url)
	}
	dl := env.get(url)
	if dl.Code != http.StatusOK || dl.Header().Get("Content-Type") != "video/webm" {
		t.Errorf("GET %s: %d %q", url, dl.Code, dl.Header().Get("Content-Type"))
	}
	if n := countEntries(t, env.uploads); n != 0 {
		t.Errorf("входные файлы не удалены: %d", n)
	}
}

func TestConvert_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadSize = 1024
	env := newTestEnv(t, cfg, fakeAdapter)

	rec := env.post(t, "/convert", part{field: "file", filename: "big.pptx", content: strings.Repeat("x", 8192)})
	expectError(t, rec, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "")
	if n := env.calls.Load(); n != 0 {
		t.Errorf("адаптер вызван %d раз", n)
	}
}

func TestDownload_NotFound(t *testing.T) {
	env := newTestEnv(t, testConfig(), fakeAdapter)

	// Скрытый незавершённый файл не отдаётся
	partial := filepath.Join(env.outputs.Dir(), ".converted-1-a.pdf.partial")
	if err := os.WriteFile(partial, []byte("%PDF"), 0o640); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{
		"/processed/converted-1712345678901-deadbeef.pdf",
		"/processed/.converted-1-a.pdf.partial",
		"/downloads/missing.webm",
	} {
		expectError(t, env.get(path), http.StatusNotFound, "NOT_FOUND", "File not found")
	}

	// Листинг директории не выполняется
	if rec := env.get("/processed/"); rec.Code != http.StatusNotFound {
		t.Errorf("GET /processed/: ожидалось 404, получено %d", rec.Code)
	}
}

func TestGetArtifact(t *testing.T) {
	env := newTestEnv(t, testConfig(), fakeAdapter)

	rec := env.post(t, "/convert", part{field: "file", filename: "slides.pptx", content: "PK"})
	url, _ := decode(t, rec)["downloadUrl"].(string)
	name := strings.TrimPrefix(url, "/downloads/")

	info := env.get("/api/v1/artifacts/" + name)
	if info.Code != http.StatusOK {
		t.Fatalf("ожидалось 200, получено %d: %s", info.Code, info.Body.String())
	}
	body := decode(t, info)
	if body["kind"] != "document_pdf" || body["format"] != "pdf" {
		t.Errorf("kind/format: %v/%v", body["kind"], body["format"])
	}
	if body["downloadUrl"] != url {
		t.Errorf("downloadUrl: %v", body["downloadUrl"])
	}
	sources, _ := body["sourceNames"].([]any)
	if len(sources) != 1 || sources[0] != "slides.pptx" {
		t.Errorf("sourceNames: %v", body["sourceNames"])
	}

	expectError(t, env.get("/api/v1/artifacts/unknown.pdf"), http.StatusNotFound, "NOT_FOUND", "")
}

func TestTriggerSweep(t *testing.T) {
	env := newTestEnv(t, testConfig(), fakeAdapter)

	old := filepath.Join(env.outputs.Dir(), "converted-1-old.pdf")
	if err := os.WriteFile(old, []byte("%PDF"), 0o640); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-25 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/maintenance/sweep", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидалось 200, получено %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["deleted"] != float64(1) {
		t.Errorf("deleted: %v", body["deleted"])
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("устаревший артефакт не удалён")
	}
}

// busySweeper — sweeper, у которого проход всегда уже выполняется.
type busySweeper struct{}

func (busySweeper) RunOnce(time.Time) *service.SweepResult {
	return &service.SweepResult{Skipped: true}
}

func TestTriggerSweep_InProgress(t *testing.T) {
	h := NewMaintenanceHandler(busySweeper{})
	rec := httptest.NewRecorder()
	h.TriggerSweep(rec, httptest.NewRequest(http.MethodPost, "/api/v1/maintenance/sweep", nil))

	expectError(t, rec, http.StatusConflict, "SWEEP_IN_PROGRESS", "")
}

func TestSystemEndpoints(t *testing.T) {
	cfg := testConfig()
	cfg.PublicBaseURL = "https://convert.example.com/"
	env := newTestEnv(t, cfg, fakeAdapter)

	rec := env.get("/api/v1/client-config")
	if rec.Code != http.StatusOK {
		t.Fatalf("client-config: %d", rec.Code)
	}
	body := decode(t, rec)
	if body["serverBaseUrl"] != "https://convert.example.com" {
		t.Errorf("serverBaseUrl: %v", body["serverBaseUrl"])
	}
	if body["documentPattern"] != `\.(ppt|pptx)$` {
		t.Errorf("documentPattern: %v", body["documentPattern"])
	}

	rec = env.get("/api/v1/info")
	if rec.Code != http.StatusOK {
		t.Fatalf("info: %d", rec.Code)
	}
	body = decode(t, rec)
	conversions, _ := body["conversions"].(map[string]any)
	if conversions["limit"] != float64(2) || conversions["active"] != float64(0) {
		t.Errorf("conversions: %v", body["conversions"])
	}
	retention, _ := body["retention"].(map[string]any)
	if retention["window"] != "24h0m0s" {
		t.Errorf("retention: %v", body["retention"])
	}

	rec = env.get("/api/openapi.json")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "openapi") {
		t.Errorf("openapi.json: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.get("/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "cv_http_requests_total") {
		t.Errorf("metrics: %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testConfig(), fakeAdapter)

	if rec := env.get("/health/live"); rec.Code != http.StatusOK {
		t.Errorf("live: %d", rec.Code)
	}

	rec := env.get("/health/ready")
	if rec.Code != http.StatusOK {
		t.Fatalf("ready: %d %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	checks, _ := body["checks"].(map[string]any)
	if _, ok := checks["upload_dir"]; !ok {
		t.Errorf("нет проверки upload_dir: %v", checks)
	}
}

// unhealthyDeps — зависимость, которая не прошла проверку.
type unhealthyDeps struct{}

func (unhealthyDeps) Health() map[string]bool {
	return map[string]bool{"gotenberg:gotenberg:3000": false}
}

func TestHealthReady_Failures(t *testing.T) {
	tests := []struct {
		name string
		h    *HealthHandler
	}{
		{
			name: "директория недоступна",
			h:    NewHealthHandler(map[string]string{"output_dir": filepath.Join(t.TempDir(), "missing")}, nil, nil),
		},
		{
			name: "инструмент не найден",
			h:    NewHealthHandler(nil, map[string]string{"ffmpeg": "definitely-not-installed-tool-xyz"}, nil),
		},
		{
			name: "зависимость недоступна",
			h:    NewHealthHandler(nil, nil, unhealthyDeps{}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != http.StatusServiceUnavailable {
				t.Errorf("ожидалось 503, получено %d", rec.Code)
			}
			if body := decode(t, rec); body["status"] != "fail" {
				t.Errorf("status: %v", body["status"])
			}
		})
	}
}

func TestFriendlyName(t *testing.T) {
	tests := []struct {
		sources []string
		format  string
		want    string
	}{
		{[]string{"slides.pptx"}, "pdf", "slides.pdf"},
		{[]string{`C:\Users\me\deck.ppt`}, "pdf", "deck.pdf"},
		{[]string{"clip.mp4", "voice.mp3"}, "webm", "clip.webm"},
		{nil, "pdf", ""},
	}

	for _, tt := range tests {
		a := &model.Artifact{SourceNames: tt.sources, Format: tt.format}
		if got := friendlyName(a); got != tt.want {
			t.Errorf("friendlyName(%v): ожидалось %q, получено %q", tt.sources, tt.want, got)
		}
	}
}
