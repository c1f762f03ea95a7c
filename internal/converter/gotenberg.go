package converter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/converter/internal/domain/model"
)

// gotenbergConvertPath — маршрут конвертации офисных документов в Gotenberg.
const gotenbergConvertPath = "/forms/libreoffice/convert"

// maxErrorBody — сколько байт тела ошибочного ответа попадает в ошибку.
const maxErrorBody = 512

// GotenbergConverter конвертирует документы в PDF через удалённый Gotenberg.
type GotenbergConverter struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewGotenbergConverter создаёт GotenbergConverter.
// client == nil — используется http.Client с таймаутом timeout.
func NewGotenbergConverter(baseURL string, client *http.Client, timeout time.Duration, logger *slog.Logger) *GotenbergConverter {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &GotenbergConverter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		logger:  logger.With(slog.String("component", "gotenberg")),
	}
}

// BaseURL возвращает адрес Gotenberg.
func (c *GotenbergConverter) BaseURL() string {
	return c.baseURL
}

// Convert реализует Adapter: загружает документ multipart-запросом
// и записывает полученный PDF в outputPath.
func (c *GotenbergConverter) Convert(ctx context.Context, req *model.ConversionRequest, outputPath string) error {
	if err := requirePrimary(req); err != nil {
		return err
	}

	in, err := os.Open(req.Primary.StoragePath)
	if err != nil {
		return fmt.Errorf("ошибка открытия входного файла: %w", err)
	}
	defer in.Close()

	// Тело формируется потоково, без буферизации документа в памяти
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("files", uploadName(req.Primary))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, in); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+gotenbergConvertPath, pr)
	if err != nil {
		pr.Close()
		return fmt.Errorf("ошибка формирования запроса: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("gotenberg: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("gotenberg: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	out, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("ошибка открытия выходного файла: %w", err)
	}
	n, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("ошибка получения PDF от gotenberg: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("gotenberg вернул пустой ответ")
	}

	c.logger.Debug("Документ сконвертирован",
		slog.String("source", req.Primary.OriginalName),
		slog.Int64("size", n),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// uploadName возвращает имя файла для multipart-запроса. Gotenberg
// определяет формат по расширению, поэтому оно обязательно.
func uploadName(f *model.UploadedFile) string {
	name := filepath.Base(f.StoragePath)
	if filepath.Ext(name) == "" && f.Extension != "" {
		name += f.Extension
	}
	return name
}
