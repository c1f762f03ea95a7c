// Пакет blobstore — директория-хранилище загруженных и сконвертированных файлов.
// Обеспечивает генерацию уникальных имён, атомарную публикацию артефактов
// (temp файл → fsync → rename), чтение, удаление и перечисление файлов.
package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/converter/internal/domain/model"
)

// partialSuffix — суффикс незавершённых файлов. Такие файлы скрыты
// (имя начинается с точки) и не отдаются статическим сервером.
const partialSuffix = ".partial"

var (
	// ErrNotFound — файл отсутствует или не может быть отдан клиенту.
	ErrNotFound = errors.New("файл не найден")
	// ErrInvalidName — имя содержит разделители пути или указывает на скрытый файл.
	ErrInvalidName = errors.New("недопустимое имя файла")
)

// Store — директория хранения файлов.
type Store struct {
	// dir — корневая директория (staging или output)
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// SaveResult — результат публикации файла.
type SaveResult struct {
	// Filename — имя файла в директории
	Filename string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого
	Checksum string
	// ModTime — время последней модификации
	ModTime time.Time
}

// Entry — запись директории для sweeper-а.
type Entry struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
	IsDir   bool
}

// New создаёт Store. Создаёт директорию, если она не существует.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := EnsureDirectories(dir); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("не удалось определить абсолютный путь %s: %w", dir, err)
	}

	return &Store{
		dir:    abs,
		logger: logger.With(slog.String("component", "blobstore"), slog.String("dir", abs)),
		now:    time.Now,
	}, nil
}

// EnsureDirectories идемпотентно создаёт указанные директории.
func EnsureDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
		}
	}
	return nil
}

// Dir возвращает абсолютный путь директории.
func (s *Store) Dir() string {
	return s.dir
}

// FullPath возвращает абсолютный путь к файлу в директории.
func (s *Store) FullPath(name string) string {
	return filepath.Join(s.dir, name)
}

// Stage сохраняет загруженный клиентом файл в staging-директорию.
// Формат имени: {unix_ms}-{uuid8}-{sanitized_original_name}
//
// Паттерн: temp файл → запись → fsync → atomic rename.
func (s *Store) Stage(reader io.Reader, originalName, contentType string) (*model.UploadedFile, error) {
	now := s.now().UTC()
	name := generateStagingName(originalName, now)

	res, err := s.writeAtomic(reader, name)
	if err != nil {
		return nil, err
	}

	return &model.UploadedFile{
		OriginalName: originalName,
		Extension:    strings.ToLower(filepath.Ext(originalName)),
		ContentType:  contentType,
		Size:         res.Size,
		StoragePath:  res.FullPath,
		CreatedAt:    now,
	}, nil
}

// Put публикует готовые данные как артефакт указанного вида.
func (s *Store) Put(reader io.Reader, kind model.OperationKind) (*SaveResult, error) {
	rsv, err := s.Reserve(kind)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(rsv.PartialPath, os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		rsv.Abort()
		return nil, fmt.Errorf("ошибка открытия временного файла: %w", err)
	}
	if _, err := io.Copy(f, reader); err != nil {
		f.Close()
		rsv.Abort()
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}
	if err := f.Close(); err != nil {
		rsv.Abort()
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	return rsv.Commit()
}

// Open открывает опубликованный файл для чтения.
// Скрытые и незавершённые файлы, директории и имена с разделителями пути
// трактуются как отсутствующие.
func (s *Store) Open(name string) (*os.File, fs.FileInfo, error) {
	if err := validateName(name); err != nil {
		return nil, nil, err
	}

	f, err := os.Open(s.FullPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, nil, fmt.Errorf("ошибка открытия файла %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("ошибка stat файла %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return f, info, nil
}

// Exists проверяет, опубликован ли файл с указанным именем.
func (s *Store) Exists(name string) bool {
	if validateName(name) != nil {
		return false
	}
	info, err := os.Stat(s.FullPath(name))
	return err == nil && info.Mode().IsRegular()
}

// Remove удаляет файл или директорию по абсолютному пути.
// Возвращает nil, если путь уже не существует.
func (s *Store) Remove(path string) error {
	err := os.RemoveAll(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления %s: %w", path, err)
	}
	return nil
}

// Discard удаляет файл в режиме best-effort: ошибка только логируется.
func (s *Store) Discard(path string) {
	if path == "" {
		return
	}
	if err := s.Remove(path); err != nil {
		s.logger.Error("Ошибка очистки файла",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// List возвращает записи директории (файлы и поддиректории первого уровня).
func (s *Store) List() ([]Entry, []error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, []error{fmt.Errorf("ошибка чтения директории %s: %w", s.dir, err)}
	}

	var errs []error
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			// Файл мог быть удалён между ReadDir и Info
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("ошибка stat %s: %w", de.Name(), err))
			}
			continue
		}
		entries = append(entries, Entry{
			Name:    de.Name(),
			Path:    filepath.Join(s.dir, de.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
			IsDir:   info.IsDir(),
		})
	}

	return entries, errs
}

// writeAtomic записывает данные из reader в {dir}/{name} через temp файл.
func (s *Store) writeAtomic(reader io.Reader, name string) (*SaveResult, error) {
	fullPath := s.FullPath(name)
	tmpPath := s.FullPath(partialName(name))

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(reader, hasher))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		Filename: name,
		FullPath: fullPath,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
		ModTime:  s.now(),
	}, nil
}

// ComputeChecksum вычисляет SHA-256 хэш файла.
func ComputeChecksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	n, err := io.Copy(hasher, f)
	if err != nil {
		return "", 0, fmt.Errorf("ошибка вычисления checksum %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}

// validateName проверяет, что имя указывает на видимый файл внутри директории.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// partialName возвращает имя скрытого временного файла для name.
func partialName(name string) string {
	return "." + name + partialSuffix
}

// IsPartial сообщает, является ли имя незавершённым (временным) файлом.
func IsPartial(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, partialSuffix)
}

// generateStagingName генерирует имя для загруженного файла.
// Формат: {unix_ms}-{uuid8}-{name}.{ext}
// Пример: 1712345678901-a1b2c3d4-slides.pptx
func generateStagingName(originalName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	name := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))

	name = sanitize(name)
	if len(name) > 50 {
		name = name[:50]
	}
	ext = sanitizeExt(ext)

	ts := strconv.FormatInt(now.UnixMilli(), 10)
	uid := uuid.New().String()[:8]

	return fmt.Sprintf("%s-%s-%s%s", ts, uid, name, ext)
}

// generateArtifactName генерирует имя артефакта.
// Формат: {prefix}-{unix_ms}-{uuid8}.{ext}
// Пример: converted-1712345678901-a1b2c3d4.pdf
func generateArtifactName(kind model.OperationKind, now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	uid := uuid.New().String()[:8]
	return fmt.Sprintf("%s-%s-%s.%s", kind.Prefix(), ts, uid, kind.Format())
}

// sanitize убирает небезопасные символы из строки для использования в имени файла.
// Оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}

// sanitizeExt оставляет в расширении только латиницу и цифры.
func sanitizeExt(ext string) string {
	if ext == "" {
		return ""
	}
	var result strings.Builder
	for _, r := range strings.TrimPrefix(ext, ".") {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return ""
	}
	return "." + result.String()
}
