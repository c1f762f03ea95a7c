package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/converter/internal/converter"
	"github.com/bigkaa/goartstore/converter/internal/domain/model"
)

// fakePDF — адаптер, записывающий минимальный PDF.
var fakePDF = converter.AdapterFunc(func(_ context.Context, _ *model.ConversionRequest, out string) error {
	return os.WriteFile(out, []byte("%PDF-1.4 test"), 0o640)
})

func newTestConversionService(t *testing.T, adapter converter.Adapter) (*ConversionService, *ArtifactRegistry) {
	t.Helper()
	uploads, outputs := newTestStores(t)
	registry := NewArtifactRegistry(100, time.Hour)
	svc := NewConversionService(uploads, outputs, adapter, registry, ConversionOptions{
		DocumentExtensions: []string{".ppt", ".pptx"},
		DownloadPrefix:     "/processed",
		Timeout:            time.Minute,
	}, discardLogger())
	return svc, registry
}

func stage(t *testing.T, svc *ConversionService, name, content string) *model.UploadedFile {
	t.Helper()
	up, err := svc.Stage(StageParams{Reader: strings.NewReader(content), OriginalFilename: name})
	if err != nil {
		t.Fatalf("Ошибка staging: %v", err)
	}
	return up
}

func TestConvert_Success(t *testing.T) {
	svc, registry := newTestConversionService(t, fakePDF)
	in := stage(t, svc, "slides.pptx", "PK")

	outcome := svc.Convert(context.Background(), &model.ConversionRequest{Kind: model.KindDocumentPDF, Primary: in})
	if !outcome.OK() {
		t.Fatalf("ожидался успех, получено %v", outcome.Failure)
	}

	a := outcome.Artifact
	if !strings.HasPrefix(a.DownloadURL, "/processed/converted-") || !strings.HasSuffix(a.DownloadURL, ".pdf") {
		t.Errorf("неожиданный downloadUrl: %s", a.DownloadURL)
	}
	data, err := os.ReadFile(a.StoragePath)
	if err != nil {
		t.Fatalf("артефакт не найден: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("ожидался PDF, получено %q", data)
	}
	if len(a.SourceNames) != 1 || a.SourceNames[0] != "slides.pptx" {
		t.Errorf("SourceNames: получено %v", a.SourceNames)
	}
	if _, ok := registry.Get(a.Filename); !ok {
		t.Error("артефакт должен быть зарегистрирован")
	}

	// Входной файл удалён после конвертации
	if exists(in.StoragePath) {
		t.Error("входной файл должен быть удалён")
	}
}

func TestConvert_AdapterFailure(t *testing.T) {
	var partial string
	failing := converter.AdapterFunc(func(_ context.Context, _ *model.ConversionRequest, out string) error {
		partial = out
		_ = os.WriteFile(out, []byte("half"), 0o640)
		return errors.New("soffice: exit status 1: source file could not be loaded")
	})

	svc, _ := newTestConversionService(t, failing)
	in := stage(t, svc, "slides.pptx", "PK")

	outcome := svc.Convert(context.Background(), &model.ConversionRequest{Kind: model.KindDocumentPDF, Primary: in})
	if outcome.OK() {
		t.Fatal("ожидалась ошибка")
	}
	if outcome.Failure.Kind != model.FailureConversion {
		t.Errorf("Kind: ожидалось %s, получено %s", model.FailureConversion, outcome.Failure.Kind)
	}
	if !strings.Contains(outcome.Failure.Message, "source file could not be loaded") {
		t.Errorf("сообщение инструмента потеряно: %s", outcome.Failure.Message)
	}
	if exists(partial) {
		t.Error("незавершённый результат должен быть удалён")
	}
	if exists(in.StoragePath) {
		t.Error("входной файл должен быть удалён и при ошибке")
	}
}

func TestConvert_EmptyOutput(t *testing.T) {
	noop := converter.AdapterFunc(func(context.Context, *model.ConversionRequest, string) error { return nil })
	svc, _ := newTestConversionService(t, noop)
	in := stage(t, svc, "video.mp4", "mp4")

	outcome := svc.Convert(context.Background(), &model.ConversionRequest{Kind: model.KindVideoMute, Primary: in})
	if outcome.OK() {
		t.Fatal("пустой результат не должен публиковаться")
	}
	if outcome.Failure.Kind != model.FailureConversion {
		t.Errorf("ошибка сохранения должна сообщаться как конвертационная: %s", outcome.Failure.Kind)
	}
}

func TestConvert_SameInputTwice(t *testing.T) {
	svc, _ := newTestConversionService(t, fakePDF)

	first := svc.Convert(context.Background(), &model.ConversionRequest{
		Kind: model.KindDocumentPDF, Primary: stage(t, svc, "slides.pptx", "PK"),
	})
	second := svc.Convert(context.Background(), &model.ConversionRequest{
		Kind: model.KindDocumentPDF, Primary: stage(t, svc, "slides.pptx", "PK"),
	})

	if !first.OK() || !second.OK() {
		t.Fatal("обе конвертации должны завершиться успешно")
	}
	if first.Artifact.Filename == second.Artifact.Filename {
		t.Errorf("имена артефактов совпадают: %s", first.Artifact.Filename)
	}
	if !exists(first.Artifact.StoragePath) || !exists(second.Artifact.StoragePath) {
		t.Error("оба артефакта должны существовать")
	}
}

func TestConvert_Timeout(t *testing.T) {
	slow := converter.AdapterFunc(func(ctx context.Context, _ *model.ConversionRequest, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	svc, _ := newTestConversionService(t, slow)
	svc.opts.Timeout = 50 * time.Millisecond
	in := stage(t, svc, "video.mp4", "mp4")

	outcome := svc.Convert(context.Background(), &model.ConversionRequest{Kind: model.KindVideoMute, Primary: in})
	if outcome.OK() {
		t.Fatal("ожидалась ошибка таймаута")
	}
	if !errors.Is(outcome.Failure, context.DeadlineExceeded) {
		t.Errorf("ожидалась context.DeadlineExceeded в цепочке, получено %v", outcome.Failure)
	}
}

func TestConvert_MergeDiscardsBothInputs(t *testing.T) {
	var gotInputs int
	adapter := converter.AdapterFunc(func(_ context.Context, req *model.ConversionRequest, out string) error {
		gotInputs = len(req.Inputs())
		return os.WriteFile(out, []byte("webm"), 0o640)
	})
	svc, _ := newTestConversionService(t, adapter)
	video := stage(t, svc, "video.mp4", "mp4")
	audio := stage(t, svc, "audio.mp3", "mp3")

	outcome := svc.Convert(context.Background(), &model.ConversionRequest{Kind: model.KindMediaMerge, Primary: video, Audio: audio})
	if !outcome.OK() {
		t.Fatalf("ожидался успех, получено %v", outcome.Failure)
	}
	if gotInputs != 2 {
		t.Errorf("адаптер должен получить 2 входа, получено %d", gotInputs)
	}
	if !strings.HasPrefix(outcome.Artifact.Filename, "merged-") {
		t.Errorf("неожиданное имя: %s", outcome.Artifact.Filename)
	}
	if exists(video.StoragePath) || exists(audio.StoragePath) {
		t.Error("оба входных файла должны быть удалены")
	}
}

func TestCheckDocumentType(t *testing.T) {
	svc, _ := newTestConversionService(t, fakePDF)

	tests := []struct {
		name    string
		wantErr string
	}{
		{"slides.pptx", ""},
		{"SLIDES.PPT", ""},
		{"notes.txt", "Unsupported file type: .txt"},
		{"README", "Unsupported file type"},
		{"slides", "Unsupported file type"},
	}

	for _, tt := range tests {
		err := svc.CheckDocumentType(tt.name)
		if tt.wantErr == "" {
			if err != nil {
				t.Errorf("%s: неожиданная ошибка %v", tt.name, err)
			}
			continue
		}
		f := model.AsFailure(err)
		if f == nil || f.Kind != model.FailureBadRequest || f.Message != tt.wantErr {
			t.Errorf("%s: ожидалось %q, получено %v", tt.name, tt.wantErr, err)
		}
	}
}
