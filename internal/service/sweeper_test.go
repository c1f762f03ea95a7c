package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/converter/internal/domain/model"
	"github.com/bigkaa/goartstore/converter/internal/storage/blobstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStores создаёт staging и output директории.
func newTestStores(t *testing.T) (uploads, outputs *blobstore.Store) {
	t.Helper()
	base := t.TempDir()
	var err error
	uploads, err = blobstore.New(filepath.Join(base, "temp"), discardLogger())
	if err != nil {
		t.Fatalf("Ошибка создания staging: %v", err)
	}
	outputs, err = blobstore.New(filepath.Join(base, "processed"), discardLogger())
	if err != nil {
		t.Fatalf("Ошибка создания output: %v", err)
	}
	return uploads, outputs
}

// createAgedFile создаёт файл с заданным временем модификации.
func createAgedFile(t *testing.T, dir, name string, modTime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("data"), 0o640); err != nil {
		t.Fatalf("Ошибка создания файла: %v", err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("Ошибка установки времени: %v", err)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var testPolicy = model.RetentionPolicy{Window: 24 * time.Hour, Interval: time.Hour}

func TestSweeperRunOnce_Empty(t *testing.T) {
	uploads, outputs := newTestStores(t)
	s := NewSweeperService(testPolicy, nil, discardLogger(), uploads, outputs)

	result := s.RunOnce(time.Now())

	if result.Skipped {
		t.Error("проход не должен быть пропущен")
	}
	if result.Scanned != 0 || result.Deleted != 0 || result.Errors != 0 {
		t.Errorf("ожидался пустой результат, получено %+v", result)
	}
}

// TestSweeperRunOnce_RetentionWindow: артефакт, созданный в T, удаляется
// проходом в T+25h и сохраняется проходом в T+1h.
func TestSweeperRunOnce_RetentionWindow(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		sweepAt   time.Time
		wantExist bool
	}{
		{"T+1h сохраняется", created.Add(time.Hour), true},
		{"T+25h удаляется", created.Add(25 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uploads, outputs := newTestStores(t)
			artifact := createAgedFile(t, outputs.Dir(), "converted-1-abcdef12.pdf", created)
			upload := createAgedFile(t, uploads.Dir(), "1-abcdef12-slides.pptx", created)

			s := NewSweeperService(testPolicy, nil, discardLogger(), uploads, outputs)
			result := s.RunOnce(tt.sweepAt)

			if exists(artifact) != tt.wantExist {
				t.Errorf("артефакт: ожидалось существование=%v", tt.wantExist)
			}
			if exists(upload) != tt.wantExist {
				t.Errorf("staging файл: ожидалось существование=%v", tt.wantExist)
			}
			if result.Scanned != 2 {
				t.Errorf("Scanned: ожидалось 2, получено %d", result.Scanned)
			}
			wantDeleted := 0
			if !tt.wantExist {
				wantDeleted = 2
			}
			if result.Deleted != wantDeleted {
				t.Errorf("Deleted: ожидалось %d, получено %d", wantDeleted, result.Deleted)
			}
		})
	}
}

func TestSweeperRunOnce_MixedAges(t *testing.T) {
	uploads, outputs := newTestStores(t)
	now := time.Now()

	old := createAgedFile(t, outputs.Dir(), "merged-1-aaaaaaaa.webm", now.Add(-48*time.Hour))
	fresh := createAgedFile(t, outputs.Dir(), "merged-2-bbbbbbbb.webm", now.Add(-time.Minute))
	partial := createAgedFile(t, outputs.Dir(), ".no-audio-3-cccccccc.webm.partial", now.Add(-30*time.Hour))

	// Оставшаяся после сбоя рабочая директория LibreOffice
	workDir := filepath.Join(outputs.Dir(), ".soffice-dead")
	if err := os.MkdirAll(filepath.Join(workDir, "profile"), 0o750); err != nil {
		t.Fatalf("Ошибка создания директории: %v", err)
	}
	oldTime := now.Add(-30 * time.Hour)
	if err := os.Chtimes(workDir, oldTime, oldTime); err != nil {
		t.Fatalf("Ошибка установки времени: %v", err)
	}

	registry := NewArtifactRegistry(10, time.Hour)
	registry.Add(&model.Artifact{Filename: "merged-1-aaaaaaaa.webm"})
	registry.Add(&model.Artifact{Filename: "merged-2-bbbbbbbb.webm"})

	s := NewSweeperService(testPolicy, registry, discardLogger(), uploads, outputs)
	result := s.RunOnce(now)

	if exists(old) || exists(partial) || exists(workDir) {
		t.Error("устаревшие записи должны быть удалены")
	}
	if !exists(fresh) {
		t.Error("свежий артефакт не должен удаляться")
	}
	if result.Deleted != 3 {
		t.Errorf("Deleted: ожидалось 3, получено %d", result.Deleted)
	}
	if _, ok := registry.Get("merged-1-aaaaaaaa.webm"); ok {
		t.Error("удалённый артефакт должен исчезнуть из реестра")
	}
	if _, ok := registry.Get("merged-2-bbbbbbbb.webm"); !ok {
		t.Error("свежий артефакт должен остаться в реестре")
	}
}

func TestSweeperRunOnce_SkipsWhenInProgress(t *testing.T) {
	uploads, outputs := newTestStores(t)
	s := NewSweeperService(testPolicy, nil, discardLogger(), uploads, outputs)

	// Имитируем выполняющийся проход
	s.inProgress.Store(true)
	result := s.RunOnce(time.Now())
	if !result.Skipped {
		t.Error("проход должен быть пропущен")
	}
	if !s.InProgress() {
		t.Error("флаг выполняющегося прохода не должен сбрасываться пропущенным проходом")
	}

	s.inProgress.Store(false)
	if s.RunOnce(time.Now()).Skipped {
		t.Error("после завершения прохода новый проход должен выполняться")
	}
}

func TestSweeperStartStop(t *testing.T) {
	uploads, outputs := newTestStores(t)
	stale := createAgedFile(t, outputs.Dir(), "converted-1-abcdef12.pdf", time.Now().Add(-48*time.Hour))

	s := NewSweeperService(testPolicy, nil, discardLogger(), uploads, outputs)
	s.Start(context.Background())

	// Первый проход выполняется сразу после старта
	deadline := time.Now().Add(5 * time.Second)
	for exists(stale) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	s.Stop()

	if exists(stale) {
		t.Error("первый проход должен удалить устаревший файл")
	}
}
