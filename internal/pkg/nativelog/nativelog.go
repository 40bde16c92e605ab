// Package nativelog builds the process logger: console output plus a
// daily rotating file under the log directory.
package nativelog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/moody-app/moody/internal/pkg/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvLogDir          = "MOODY_LOG_DIR"
	defaultLogFilePerm = 0o644
	defaultLogDirPerm  = 0o755
)

// ResolveDir picks the log directory: dir if set, then $MOODY_LOG_DIR,
// then the first existing candidate.
func ResolveDir(dir string) string {
	if dir = strings.TrimSpace(dir); dir != "" {
		return dir
	}
	if dir := strings.TrimSpace(os.Getenv(EnvLogDir)); dir != "" {
		return dir
	}

	candidates := []string{filepath.Join(".", "logs")}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		candidates = append(candidates, filepath.Join(home, ".moody", "log"))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return candidates[0]
}

// DailyFilename is the log file written on day now.
func DailyFilename(now time.Time) string {
	return "moody_" + now.Format("2006-01-02") + ".log"
}

// Writer appends to the log file of the current day.
type Writer struct {
	mu    sync.Mutex
	dir   string
	clock clock.Clock
	day   string
	file  *os.File
}

func NewWriter(dir string, c clock.Clock) (*Writer, error) {
	dir = ResolveDir(dir)
	if err := os.MkdirAll(dir, defaultLogDirPerm); err != nil {
		return nil, err
	}
	return &Writer{dir: dir, clock: clock.OrReal(c)}, nil
}

// Dir is the directory log files are written to.
func (w *Writer) Dir() string { return w.dir }

func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	name := DailyFilename(w.clock.Now())
	if w.file == nil || w.day != name {
		if w.file != nil {
			_ = w.file.Close()
			w.file = nil
		}
		f, err := os.OpenFile(filepath.Join(w.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, defaultLogFilePerm)
		if err != nil {
			return 0, err
		}
		w.file, w.day = f, name
	}
	return w.file.Write(p)
}

func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// NewZapLogger returns a colored debug-level console logger in
// development. In production it logs JSON at info level to stdout and to
// the daily file in dir.
func NewZapLogger(production bool, dir string) (*zap.Logger, error) {
	if !production {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stdout), zap.DebugLevel)
		return zap.New(core, zap.AddCaller(), zap.Development()), nil
	}

	writer, err := NewWriter(dir, nil)
	if err != nil {
		return nil, err
	}
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
		zapcore.NewCore(encoder, zapcore.AddSync(writer), level),
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	_ = zap.RedirectStdLog(logger)
	return logger, nil
}
