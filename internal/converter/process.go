package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// maxStderrTail — сколько последних байт stderr инструмента попадает в ошибку.
const maxStderrTail = 2048

// waitDelay — сколько ждать закрытия stderr после завершения процесса.
const waitDelay = 5 * time.Second

// Events — терминальные события одного запуска внешнего процесса.
// За один запуск срабатывает ровно одно из OnEnd / OnError.
type Events struct {
	// OnStart вызывается перед запуском с итоговой командной строкой (может быть nil)
	OnStart func(cmdline string)
	// OnEnd — процесс завершился с кодом 0
	OnEnd func()
	// OnError — процесс не запустился, завершился с ненулевым кодом или был прерван
	OnError func(err error)
}

// runProcess запускает внешний процесс в отдельной горутине и сообщает
// о результате через events. Отмена ctx завершает процесс.
func runProcess(ctx context.Context, logger *slog.Logger, name string, args []string, events Events) {
	go func() {
		if events.OnStart != nil {
			events.OnStart(name + " " + strings.Join(args, " "))
		}
		if err := execTool(ctx, logger, name, args); err != nil {
			if events.OnError != nil {
				events.OnError(err)
			}
			return
		}
		if events.OnEnd != nil {
			events.OnEnd()
		}
	}()
}

// execTool синхронно выполняет внешний процесс и возвращает ошибку
// с хвостом stderr, если процесс завершился неуспешно.
func execTool(ctx context.Context, logger *slog.Logger, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// Дочерние процессы инструмента могут удерживать stderr после kill
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s прерван: %w", name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Warn("Внешний инструмент завершился с ошибкой",
				slog.String("tool", name),
				slog.Int("exit_code", exitErr.ExitCode()),
				slog.Duration("duration", duration),
			)
		}
		if tail := stderrTail(stderr.Bytes()); tail != "" {
			return fmt.Errorf("%s: %w: %s", name, err, tail)
		}
		return fmt.Errorf("%s: %w", name, err)
	}

	logger.Debug("Внешний инструмент завершился успешно",
		slog.String("tool", name),
		slog.Duration("duration", duration),
	)
	return nil
}

// stderrTail возвращает последние maxStderrTail байт stderr одной строкой.
func stderrTail(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > maxStderrTail {
		b = b[len(b)-maxStderrTail:]
	}
	return strings.Join(strings.Fields(string(b)), " ")
}
