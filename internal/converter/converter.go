// Пакет converter — адаптеры внешних инструментов конвертации.
// Адаптер получает описание операции и путь, куда записать результат,
// и возвращает ошибку, если инструмент не смог создать файл.
package converter

import (
	"context"
	"fmt"

	"github.com/bigkaa/goartstore/converter/internal/domain/model"
)

// Adapter — синхронная граница вызова внешнего инструмента.
// Convert блокируется до завершения инструмента. outputPath указывает
// на временный файл в output-директории; адаптер должен полностью
// записать результат или вернуть ошибку.
type Adapter interface {
	Convert(ctx context.Context, req *model.ConversionRequest, outputPath string) error
}

// AdapterFunc позволяет использовать функцию как Adapter.
type AdapterFunc func(ctx context.Context, req *model.ConversionRequest, outputPath string) error

// Convert вызывает f.
func (f AdapterFunc) Convert(ctx context.Context, req *model.ConversionRequest, outputPath string) error {
	return f(ctx, req, outputPath)
}

// Router направляет запрос адаптеру, зарегистрированному для его вида операции.
type Router struct {
	adapters map[model.OperationKind]Adapter
}

// NewRouter создаёт пустой Router.
func NewRouter() *Router {
	return &Router{adapters: make(map[model.OperationKind]Adapter)}
}

// Handle регистрирует адаптер для вида операции.
func (r *Router) Handle(kind model.OperationKind, a Adapter) *Router {
	r.adapters[kind] = a
	return r
}

// Convert реализует Adapter.
func (r *Router) Convert(ctx context.Context, req *model.ConversionRequest, outputPath string) error {
	a, ok := r.adapters[req.Kind]
	if !ok {
		return fmt.Errorf("нет адаптера для операции %q", req.Kind)
	}
	return a.Convert(ctx, req, outputPath)
}

// requirePrimary проверяет наличие основного входного файла.
func requirePrimary(req *model.ConversionRequest) error {
	if req.Primary == nil || req.Primary.StoragePath == "" {
		return fmt.Errorf("не задан входной файл для операции %q", req.Kind)
	}
	return nil
}
