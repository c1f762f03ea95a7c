package generated

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetSwagger_Valid(t *testing.T) {
	doc, err := GetSwagger()
	if err != nil {
		t.Fatalf("GetSwagger: %v", err)
	}

	ops := map[string]string{
		"/convert":                     http.MethodPost,
		"/remove-audio":                http.MethodPost,
		"/merge":                       http.MethodPost,
		"/api/v1/artifacts/{filename}": http.MethodGet,
		"/api/v1/info":                 http.MethodGet,
		"/api/v1/client-config":        http.MethodGet,
		"/api/v1/maintenance/sweep":    http.MethodPost,
		"/api/openapi.json":            http.MethodGet,
		"/health/live":                 http.MethodGet,
		"/health/ready":                http.MethodGet,
		"/metrics":                     http.MethodGet,
	}
	for path, method := range ops {
		item := doc.Paths.Find(path)
		if item == nil {
			t.Errorf("путь %s отсутствует в документе", path)
			continue
		}
		if item.GetOperation(method) == nil {
			t.Errorf("%s %s: операция не описана", method, path)
		}
	}
}

// recordingServer запоминает вызванную операцию и параметр filename.
type recordingServer struct {
	called   string
	filename string
}

func (s *recordingServer) mark(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.called = name
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *recordingServer) ConvertDocument(w http.ResponseWriter, r *http.Request) {
	s.mark("ConvertDocument")(w, r)
}
func (s *recordingServer) RemoveAudio(w http.ResponseWriter, r *http.Request) {
	s.mark("RemoveAudio")(w, r)
}
func (s *recordingServer) MergeMedia(w http.ResponseWriter, r *http.Request) {
	s.mark("MergeMedia")(w, r)
}
func (s *recordingServer) GetArtifact(w http.ResponseWriter, r *http.Request, filename Filename) {
	s.filename = filename
	s.mark("GetArtifact")(w, r)
}
func (s *recordingServer) GetServiceInfo(w http.ResponseWriter, r *http.Request) {
	s.mark("GetServiceInfo")(w, r)
}
func (s *recordingServer) GetClientConfig(w http.ResponseWriter, r *http.Request) {
	s.mark("GetClientConfig")(w, r)
}
func (s *recordingServer) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	s.mark("TriggerSweep")(w, r)
}
func (s *recordingServer) GetOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	s.mark("GetOpenAPISpec")(w, r)
}
func (s *recordingServer) HealthLive(w http.ResponseWriter, r *http.Request) {
	s.mark("HealthLive")(w, r)
}
func (s *recordingServer) HealthReady(w http.ResponseWriter, r *http.Request) {
	s.mark("HealthReady")(w, r)
}
func (s *recordingServer) GetMetrics(w http.ResponseWriter, r *http.Request) {
	s.mark("GetMetrics")(w, r)
}

func TestHandler_Routes(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodPost, "/convert", "ConvertDocument"},
		{http.MethodPost, "/remove-audio", "RemoveAudio"},
		{http.MethodPost, "/merge", "MergeMedia"},
		{http.MethodGet, "/api/v1/artifacts/converted-1-a.pdf", "GetArtifact"},
		{http.MethodGet, "/api/v1/info", "GetServiceInfo"},
		{http.MethodGet, "/api/v1/client-config", "GetClientConfig"},
		{http.MethodPost, "/api/v1/maintenance/sweep", "TriggerSweep"},
		{http.MethodGet, "/api/openapi.json", "GetOpenAPISpec"},
		{http.MethodGet, "/health/live", "HealthLive"},
		{http.MethodGet, "/health/ready", "HealthReady"},
		{http.MethodGet, "/metrics", "GetMetrics"},
	}

	for _, tt := range tests {
		srv := &recordingServer{}
		h := Handler(srv)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

		if srv.called != tt.want {
			t.Errorf("%s %s: вызван %q, ожидался %q", tt.method, tt.path, srv.called, tt.want)
		}
	}
}

func TestHandler_PathParam(t *testing.T) {
	srv := &recordingServer{}
	h := Handler(srv)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/artifacts/merged-1712345678901-a1b2c3d4.webm", nil))

	if srv.filename != "merged-1712345678901-a1b2c3d4.webm" {
		t.Errorf("filename: получено %q", srv.filename)
	}
}

func TestHandler_Middlewares(t *testing.T) {
	srv := &recordingServer{}
	var seen bool
	h := HandlerWithOptions(srv, ChiServerOptions{
		Middlewares: []MiddlewareFunc{func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = true
				next.ServeHTTP(w, r)
			})
		}},
	})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if !seen {
		t.Error("middleware операции не вызван")
	}
	if srv.called != "HealthLive" {
		t.Errorf("вызван %q", srv.called)
	}
}
