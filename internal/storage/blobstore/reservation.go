package blobstore

import (
	"errors"
	"fmt"
	"os"

	"github.com/bigkaa/goartstore/converter/internal/domain/model"
)

// maxReserveAttempts — число попыток подобрать свободное имя артефакта.
const maxReserveAttempts = 5

// Reservation — зарезервированное имя артефакта.
// Внешний инструмент пишет результат в PartialPath; Commit публикует файл
// под итоговым именем, Abort удаляет временный файл.
type Reservation struct {
	store *Store
	// Filename — итоговое имя артефакта
	Filename string
	// PartialPath — скрытый временный файл, куда пишет адаптер
	PartialPath string
	// FinalPath — путь опубликованного артефакта
	FinalPath string

	done bool
}

// Reserve резервирует уникальное имя артефакта для вида операции.
// Временный файл создаётся с O_EXCL, поэтому два параллельных запроса
// не могут получить одно и то же имя.
func (s *Store) Reserve(kind model.OperationKind) (*Reservation, error) {
	var lastErr error
	for range maxReserveAttempts {
		name := generateArtifactName(kind, s.now().UTC())
		partial := s.FullPath(partialName(name))
		final := s.FullPath(name)

		if _, err := os.Lstat(final); err == nil {
			lastErr = fmt.Errorf("имя %s уже занято", name)
			continue
		}

		f, err := os.OpenFile(partial, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("ошибка резервирования имени артефакта: %w", err)
		}
		f.Close()

		return &Reservation{
			store:       s,
			Filename:    name,
			PartialPath: partial,
			FinalPath:   final,
		}, nil
	}

	return nil, fmt.Errorf("не удалось подобрать уникальное имя артефакта: %w", lastErr)
}

// Commit публикует записанный адаптером файл: fsync → link/rename → checksum.
// Публикация не перезаписывает существующий файл.
func (r *Reservation) Commit() (*SaveResult, error) {
	if r.done {
		return nil, fmt.Errorf("резервирование %s уже завершено", r.Filename)
	}

	if err := syncFile(r.PartialPath); err != nil {
		r.Abort()
		return nil, err
	}

	info, err := os.Stat(r.PartialPath)
	if err != nil {
		r.Abort()
		return nil, fmt.Errorf("результат конвертации не найден: %w", err)
	}
	if info.Size() == 0 {
		r.Abort()
		return nil, fmt.Errorf("результат конвертации пуст (0 байт)")
	}

	// Hard link не перезаписывает существующий файл, в отличие от rename
	if err := os.Link(r.PartialPath, r.FinalPath); err != nil {
		if errors.Is(err, os.ErrExist) {
			r.Abort()
			return nil, fmt.Errorf("артефакт %s уже существует", r.Filename)
		}
		// ФС без поддержки hard link — обычный rename
		if renameErr := os.Rename(r.PartialPath, r.FinalPath); renameErr != nil {
			r.Abort()
			return nil, fmt.Errorf("ошибка атомарного переименования: %w", renameErr)
		}
	} else {
		_ = os.Remove(r.PartialPath)
	}
	r.done = true

	checksum, size, err := ComputeChecksum(r.FinalPath)
	if err != nil {
		_ = os.Remove(r.FinalPath)
		return nil, err
	}

	return &SaveResult{
		Filename: r.Filename,
		FullPath: r.FinalPath,
		Size:     size,
		Checksum: checksum,
		ModTime:  info.ModTime(),
	}, nil
}

// Abort удаляет временный файл. Повторный вызов безопасен.
func (r *Reservation) Abort() {
	if r.done {
		return
	}
	r.done = true
	r.store.Discard(r.PartialPath)
}

// syncFile выполняет fsync файла по пути.
func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("ошибка открытия результата конвертации: %w", err)
	}
	defer f.Close()

	if err := f.Sync(); err != nil {
		return fmt.Errorf("ошибка fsync: %w", err)
	}
	return nil
}
