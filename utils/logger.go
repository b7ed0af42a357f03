package utils

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mdobak/go-xerrors"
)

type stackFrame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}

var (
	loggerOnce sync.Once
	logger     *slog.Logger
)

// GetLogger returns the process-wide structured logger. Errors wrapped with
// go-xerrors are expanded into message plus stack trace attributes.
func GetLogger() *slog.Logger {
	loggerOnce.Do(func() {
		handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			ReplaceAttr: replaceAttr,
		})
		logger = slog.New(handler)
	})
	return logger
}

func replaceAttr(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Value.Kind() {
	case slog.KindAny:
		switch v := attr.Value.Any().(type) {
		case error:
			attr.Value = formatError(v)
		}
	}
	return attr
}

func formatError(err error) slog.Value {
	attrs := []slog.Attr{
		slog.String("msg", err.Error()),
	}

	if trace := marshalStack(err); trace != nil {
		attrs = append(attrs, slog.Any("trace", trace))
	}

	return slog.GroupValue(attrs...)
}

func marshalStack(err error) []stackFrame {
	trace := xerrors.StackTrace(err)
	if len(trace) == 0 {
		return nil
	}

	frames := trace.Frames()
	stack := make([]stackFrame, len(frames))
	for i, frame := range frames {
		stack[i] = stackFrame{
			Func:   filepath.Base(frame.Function),
			Source: filepath.Base(frame.File),
			Line:   frame.Line,
		}
	}

	return stack
}

// LogError is a convenience wrapper for call sites that have no richer
// context to attach.
func LogError(ctx context.Context, msg string, err error) {
	GetLogger().ErrorContext(ctx, msg, slog.Any("error", xerrors.New(err)))
}
