package converter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/goartstore/converter/internal/domain/model"
)

// Pipeline — декларативное описание одного запуска ffmpeg.
type Pipeline struct {
	// Inputs — входные файлы в порядке передачи ffmpeg (видео, затем аудио)
	Inputs []string
	// VideoCodec — кодек видео ("libvpx")
	VideoCodec string
	// VideoBitrate — битрейт видео ("2500k")
	VideoBitrate string
	// AudioCodec — кодек аудио (пусто — по умолчанию контейнера)
	AudioCodec string
	// Mute — удалить звуковую дорожку (-an)
	Mute bool
	// Format — контейнер ("webm")
	Format string
}

// Args формирует аргументы командной строки ffmpeg для записи в output.
func (p Pipeline) Args(output string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, in := range p.Inputs {
		args = append(args, "-i", in)
	}
	if p.VideoCodec != "" {
		args = append(args, "-c:v", p.VideoCodec)
	}
	if p.VideoBitrate != "" {
		args = append(args, "-b:v", p.VideoBitrate)
	}
	if p.Mute {
		args = append(args, "-an")
	} else if p.AudioCodec != "" {
		args = append(args, "-c:a", p.AudioCodec)
	}
	if p.Format != "" {
		args = append(args, "-f", p.Format)
	}
	return append(args, output)
}

// FFmpegTranscoder выполняет медиа-операции через ffmpeg.
type FFmpegTranscoder struct {
	binary       string
	videoBitrate string
	logger       *slog.Logger
}

// NewFFmpegTranscoder создаёт FFmpegTranscoder.
func NewFFmpegTranscoder(binary, videoBitrate string, logger *slog.Logger) *FFmpegTranscoder {
	return &FFmpegTranscoder{
		binary:       binary,
		videoBitrate: videoBitrate,
		logger:       logger.With(slog.String("component", "ffmpeg")),
	}
}

// Binary возвращает путь к исполняемому файлу.
func (t *FFmpegTranscoder) Binary() string {
	return t.binary
}

// PipelineFor возвращает pipeline для вида операции.
func (t *FFmpegTranscoder) PipelineFor(req *model.ConversionRequest) (Pipeline, error) {
	if err := requirePrimary(req); err != nil {
		return Pipeline{}, err
	}

	switch req.Kind {
	case model.KindVideoMute:
		return Pipeline{
			Inputs:       []string{req.Primary.StoragePath},
			VideoCodec:   "libvpx",
			VideoBitrate: t.videoBitrate,
			Mute:         true,
			Format:       "webm",
		}, nil
	case model.KindMediaMerge:
		if req.Audio == nil || req.Audio.StoragePath == "" {
			return Pipeline{}, fmt.Errorf("не задана аудиодорожка для объединения")
		}
		return Pipeline{
			Inputs:       []string{req.Primary.StoragePath, req.Audio.StoragePath},
			VideoCodec:   "libvpx",
			VideoBitrate: t.videoBitrate,
			AudioCodec:   "libvorbis",
			Format:       "webm",
		}, nil
	default:
		return Pipeline{}, fmt.Errorf("ffmpeg не поддерживает операцию %q", req.Kind)
	}
}

// Run асинхронно запускает pipeline. О завершении сообщает ровно одно
// из событий events.OnEnd / events.OnError.
func (t *FFmpegTranscoder) Run(ctx context.Context, p Pipeline, output string, events Events) {
	runProcess(ctx, t.logger, t.binary, p.Args(output), events)
}

// Convert реализует Adapter, сводя события процесса к одной ошибке.
func (t *FFmpegTranscoder) Convert(ctx context.Context, req *model.ConversionRequest, outputPath string) error {
	p, err := t.PipelineFor(req)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	t.Run(ctx, p, outputPath, Events{
		OnStart: func(cmdline string) {
			t.logger.Debug("Запуск ffmpeg", slog.String("cmd", cmdline))
		},
		OnEnd:   func() { done <- nil },
		OnError: func(err error) { done <- err },
	})
	return <-done
}
