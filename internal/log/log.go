// Package log wires the process-wide slog default: JSON records to
// stderr or to a log file, with SIGHUP-driven reopening so external
// rotation works.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
)

// Setup installs the default slog logger. The returned func closes the
// log file, if any; call it on shutdown.
func Setup(level, file string) func() {
	out, closer := output(file)
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	slog.SetDefault(slog.New(handler))
	return closer
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func output(file string) (io.Writer, func()) {
	if file == "" {
		return os.Stderr, func() {}
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "cannot create log directory for %s: %v; logging to stderr\n", file, err)
		return os.Stderr, func() {}
	}
	w := &reopenableWriter{path: file}
	if err := w.reopen(); err != nil {
		fmt.Fprintf(os.Stderr, "cannot open log file %s: %v; logging to stderr\n", file, err)
		return os.Stderr, func() {}
	}
	w.watchHUP()
	return w, w.close
}

// reopenableWriter reopens its file on SIGHUP:
//
//	mv braid.log braid.bak && kill -HUP <pid>
type reopenableWriter struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func (w *reopenableWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return len(p), nil
	}
	return w.f.Write(p)
}

func (w *reopenableWriter) reopen() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f != nil {
		w.f.Close()
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		w.f = nil
		return err
	}
	w.f = f
	return nil
}

func (w *reopenableWriter) watchHUP() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP)
	go func() {
		for range sigs {
			if err := w.reopen(); err != nil {
				fmt.Fprintf(os.Stderr, "cannot reopen log file %s: %v\n", w.path, err)
			}
		}
	}()
}

func (w *reopenableWriter) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f != nil {
		w.f.Close()
		w.f = nil
	}
}
