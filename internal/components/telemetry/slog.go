package telemetry

import (
	"io"
	"log/slog"
	"os"
)

// InitSlog installs the default slog handler, verbose turns on debug records.
func InitSlog(verbose bool) {
	SetSlogOutput(os.Stderr, verbose)
}

func SetSlogOutput(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// SlogAPI implements API using the log/slog package.
type SlogAPI struct {
	logger *slog.Logger
}

// NewSlogAPI wraps the given logger, a nil logger means slog.Default() at call time.
func NewSlogAPI(logger *slog.Logger) SlogAPI {
	return SlogAPI{logger: logger}
}

func (s SlogAPI) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	s.log().Error("broken component", append([]any{"id", id}, params...)...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	s.log().Warn("warning", append([]any{"id", id}, params...)...)
}

func (s SlogAPI) ReportInfo(msg string, params ...any) {
	s.log().Info(msg, params...)
}

func (s SlogAPI) ReportDebug(msg string, params ...any) {
	s.log().Debug(msg, params...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	s.log().Info("count", "id", id, "n", count)
}
