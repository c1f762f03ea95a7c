package converter

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/converter/internal/domain/model"
)

// WorkDirPrefix — префикс скрытых рабочих директорий LibreOffice.
// Оставшиеся после сбоя директории удаляет sweeper.
const WorkDirPrefix = ".soffice-"

// SofficeConverter конвертирует офисные документы в PDF локальным LibreOffice.
type SofficeConverter struct {
	binary string
	// workRoot — директория для рабочих директорий (та же ФС, что и output)
	workRoot string
	logger   *slog.Logger
}

// NewSofficeConverter создаёт SofficeConverter.
// workRoot должен находиться на той же файловой системе, что и итоговые артефакты.
// Относительный workRoot приводится к абсолютному: путь профиля передаётся
// LibreOffice как file:// URL.
func NewSofficeConverter(binary, workRoot string, logger *slog.Logger) *SofficeConverter {
	if abs, err := filepath.Abs(workRoot); err == nil {
		workRoot = abs
	}
	return &SofficeConverter{
		binary:   binary,
		workRoot: workRoot,
		logger:   logger.With(slog.String("component", "soffice")),
	}
}

// Binary возвращает путь к исполняемому файлу.
func (c *SofficeConverter) Binary() string {
	return c.binary
}

// Convert реализует Adapter.
// Каждый вызов получает собственный профиль LibreOffice: параллельные
// экземпляры с общим профилем блокируют друг друга.
func (c *SofficeConverter) Convert(ctx context.Context, req *model.ConversionRequest, outputPath string) error {
	if err := requirePrimary(req); err != nil {
		return err
	}

	workDir := filepath.Join(c.workRoot, WorkDirPrefix+uuid.New().String())
	outDir := filepath.Join(workDir, "out")
	profileDir := filepath.Join(workDir, "profile")
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("ошибка создания рабочей директории: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			c.logger.Warn("Ошибка удаления рабочей директории",
				slog.String("path", workDir),
				slog.String("error", err.Error()),
			)
		}
	}()

	if err := execTool(ctx, c.logger, c.binary, sofficeArgs(profileDir, outDir, req.Primary.StoragePath)); err != nil {
		return err
	}

	produced := filepath.Join(outDir, pdfName(req.Primary.StoragePath))
	info, err := os.Stat(produced)
	if err != nil {
		return fmt.Errorf("%s не создал PDF: %w", filepath.Base(c.binary), err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s создал пустой PDF", filepath.Base(c.binary))
	}

	if err := os.Rename(produced, outputPath); err != nil {
		return fmt.Errorf("ошибка перемещения PDF: %w", err)
	}
	return nil
}

// sofficeArgs формирует аргументы командной строки LibreOffice.
func sofficeArgs(profileDir, outDir, input string) []string {
	return []string{
		"--headless",
		"--norestore",
		"--nolockcheck",
		"-env:UserInstallation=" + fileURL(profileDir),
		"--convert-to", "pdf",
		"--outdir", outDir,
		input,
	}
}

// pdfName возвращает имя, под которым LibreOffice сохраняет результат.
func pdfName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".pdf"
}

// fileURL преобразует абсолютный путь в file:// URL с пустым host.
func fileURL(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}
