package jobs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// slogAdapter routes asynq's logging to slog.
type slogAdapter struct{}

func (slogAdapter) Debug(args ...any) { slog.Debug(joinArgs(args)) }
func (slogAdapter) Info(args ...any)  { slog.Info(joinArgs(args)) }
func (slogAdapter) Warn(args ...any)  { slog.Warn(joinArgs(args)) }
func (slogAdapter) Error(args ...any) { slog.Error(joinArgs(args)) }

func (slogAdapter) Fatal(args ...any) {
	slog.Error(joinArgs(args))
	os.Exit(1)
}

func joinArgs(args []any) string {
	return strings.TrimSuffix(fmt.Sprintln(args...), "\n")
}
