// Package logs builds the shell's logger: stderr plus an append-only launch
// log in the temp directory, which is what users send when something "does
// nothing".
package logs

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

const LaunchLogName = "distributor-launch.log"

var Level = new(slog.LevelVar)

// LaunchLogPath is where the launch log is appended.
func LaunchLogPath() string {
	return filepath.Join(os.TempDir(), LaunchLogName)
}

// New returns a logger fanned out to stderr and the file at path. If the file
// cannot be opened the logger writes to stderr alone. The returned closer is
// never nil.
func New(stderr io.Writer, path string) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: Level}
	handlers := []slog.Handler{slog.NewTextHandler(stderr, opts)}

	var closer io.Closer = nopCloser{}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err == nil {
			handlers = append(handlers, slog.NewTextHandler(f, opts))
			closer = f
		} else {
			slog.New(handlers[0]).Warn("launch log unavailable", "path", path, "err", err)
		}
	}
	return slog.New(slogmulti.Fanout(handlers...)), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
