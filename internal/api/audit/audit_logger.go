package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/FACorreiaa/go-vacation-agent/internal/types"
)

// Logger appends one JSON line per request. Entries are never rewritten.
type Logger interface {
	Append(ctx context.Context, entry types.AuditEntry) error
}

var _ Logger = (*FileLogger)(nil)

// FileLogger writes audit entries to an O_APPEND file. Writes are
// serialized so concurrent requests never interleave lines.
type FileLogger struct {
	mu     sync.Mutex
	w      io.WriteCloser
	path   string
	logger *slog.Logger
}

// NewFileLogger opens (or creates) path for appending, creating parent
// directories as needed.
func NewFileLogger(path string, logger *slog.Logger) (*FileLogger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	logger.Info("Audit log opened", slog.String("path", path))
	return &FileLogger{w: f, path: path, logger: logger}, nil
}

func (l *FileLogger) Append(ctx context.Context, entry types.AuditEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(line); err != nil {
		l.logger.ErrorContext(ctx, "Failed to append audit entry",
			slog.String("request_id", entry.RequestID), slog.Any("error", err))
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Close()
}
