package generated

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Конвертировать офисный документ в PDF
	// (POST /convert)
	ConvertDocument(w http.ResponseWriter, r *http.Request)
	// Удалить звуковую дорожку из видео (WebM)
	// (POST /remove-audio)
	RemoveAudio(w http.ResponseWriter, r *http.Request)
	// Объединить аудио и видео в один WebM
	// (POST /merge)
	MergeMedia(w http.ResponseWriter, r *http.Request)
	// Метаданные артефакта
	// (GET /api/v1/artifacts/{filename})
	GetArtifact(w http.ResponseWriter, r *http.Request, filename Filename)
	// Информация о сервисе
	// (GET /api/v1/info)
	GetServiceInfo(w http.ResponseWriter, r *http.Request)
	// Конфигурация браузерного клиента
	// (GET /api/v1/client-config)
	GetClientConfig(w http.ResponseWriter, r *http.Request)
	// Запустить очистку устаревших файлов
	// (POST /api/v1/maintenance/sweep)
	TriggerSweep(w http.ResponseWriter, r *http.Request)
	// OpenAPI документ
	// (GET /api/openapi.json)
	GetOpenAPISpec(w http.ResponseWriter, r *http.Request)

	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)

	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)

	// (GET /metrics)
	GetMetrics(w http.ResponseWriter, r *http.Request)
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

// MiddlewareFunc оборачивает handler одной операции.
type MiddlewareFunc func(http.Handler) http.Handler

// serve применяет HandlerMiddlewares и вызывает handler.
func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, handler http.Handler) {
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

// ConvertDocument operation middleware
func (siw *ServerInterfaceWrapper) ConvertDocument(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.ConvertDocument))
}

// RemoveAudio operation middleware
func (siw *ServerInterfaceWrapper) RemoveAudio(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.RemoveAudio))
}

// MergeMedia operation middleware
func (siw *ServerInterfaceWrapper) MergeMedia(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.MergeMedia))
}

// GetArtifact operation middleware
func (siw *ServerInterfaceWrapper) GetArtifact(w http.ResponseWriter, r *http.Request) {
	var err error

	// ------------- Path parameter "filename" -------------
	var filename Filename

	err = runtime.BindStyledParameterWithOptions("simple", "filename", chi.URLParam(r, "filename"), &filename, runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "filename", Err: err})
		return
	}

	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetArtifact(w, r, filename)
	}))
}

// GetServiceInfo operation middleware
func (siw *ServerInterfaceWrapper) GetServiceInfo(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.GetServiceInfo))
}

// GetClientConfig operation middleware
func (siw *ServerInterfaceWrapper) GetClientConfig(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.GetClientConfig))
}

// TriggerSweep operation middleware
func (siw *ServerInterfaceWrapper) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.TriggerSweep))
}

// GetOpenAPISpec operation middleware
func (siw *ServerInterfaceWrapper) GetOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.GetOpenAPISpec))
}

// HealthLive operation middleware
func (siw *ServerInterfaceWrapper) HealthLive(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.HealthLive))
}

// HealthReady operation middleware
func (siw *ServerInterfaceWrapper) HealthReady(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.HealthReady))
}

// GetMetrics operation middleware
func (siw *ServerInterfaceWrapper) GetMetrics(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.GetMetrics))
}

// InvalidParamFormatError — параметр запроса не удалось разобрать.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// Handler creates http.Handler with routing matching OpenAPI spec.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// ChiServerOptions — параметры HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerFromMux creates http.Handler with routing matching OpenAPI spec based on the provided mux.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{
		BaseRouter: r,
	})
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/convert", wrapper.ConvertDocument)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/remove-audio", wrapper.RemoveAudio)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/merge", wrapper.MergeMedia)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/v1/artifacts/{filename}", wrapper.GetArtifact)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/v1/info", wrapper.GetServiceInfo)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/v1/client-config", wrapper.GetClientConfig)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/api/v1/maintenance/sweep", wrapper.TriggerSweep)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/openapi.json", wrapper.GetOpenAPISpec)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health/live", wrapper.HealthLive)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health/ready", wrapper.HealthReady)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/metrics", wrapper.GetMetrics)
	})

	return r
}
