package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ContextRequestLogger ContextKey = "request.logger"

// RSyncWrite is a rotable and concurent safe file-based logs writer.
// It is aimed to be used by Zap core routine. So it must implements
// the zap.WriteSyncer interface. The rotation happens based on the
// file size, once it reaches the max defined value.
type RSyncWrite struct {
	clock Clocker
	sync.Mutex
	file   *os.File
	folder string
	max    int
	size   int64
	isProd bool
}

func NewRSyncWriter(config *Config, clock Clocker) *RSyncWrite {
	return &RSyncWrite{
		clock:  clock,
		folder: config.LogFolder,
		max:    config.LogMaxSize,
		isProd: config.IsProduction,
	}
}

// Close closes the current log file.
func (rsw *RSyncWrite) Close() error {
	rsw.Lock()
	defer rsw.Unlock()
	if rsw.file == nil {
		return nil
	}
	return rsw.file.Close()
}

func (rsw *RSyncWrite) Sync() error {
	rsw.Lock()
	defer rsw.Unlock()
	if rsw.file == nil {
		return nil
	}
	return rsw.file.Sync()
}

const megabyte = 1 << 20

// Write implements io.Writer. A new file is opened on first write and each
// time the next entry would push the current file above the max size.
func (rsw *RSyncWrite) Write(p []byte) (int, error) {
	rsw.Lock()
	defer rsw.Unlock()
	limit := int64(rsw.max) * megabyte
	size := int64(len(p))
	if size > limit {
		return 0, fmt.Errorf("logging: entry size %d exceeds max file size %d MB", size, rsw.max)
	}
	if rsw.file == nil || rsw.size+size > limit {
		if err := rsw.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := rsw.file.Write(p)
	rsw.size += int64(n)
	return n, err
}

// rotate closes the current file and opens a new one named after the clock.
func (rsw *RSyncWrite) rotate() error {
	if rsw.file != nil {
		if err := rsw.file.Close(); err != nil {
			return err
		}
		rsw.file = nil
	}
	if err := os.MkdirAll(rsw.folder, 0o700); err != nil {
		return err
	}
	path := CreateLogFilePath(rsw.folder, rsw.isProd, rsw.clock.Now())
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	rsw.file, rsw.size = file, 0
	return nil
}

// SyncWrite implements zap.SyncWriter. This is a small hack to avoid usual
// `Handle is invalid` error when calling Sync() on logger using os.stdout.
type SyncWrite struct {
	out *os.File
}

func (sw *SyncWrite) Sync() error {
	return nil
}

func (sw *SyncWrite) Write(p []byte) (n int, err error) {
	return sw.out.Write(p)
}

func newEncoderConfig(isProd bool) zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	if isProd {
		cfg = zap.NewProductionEncoderConfig()
	}
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.LevelKey = "lvl"
	cfg.NameKey = "name"
	cfg.MessageKey = "msg"
	cfg.CallerKey = "caller"
	cfg.StacktraceKey = "skt"
	return cfg
}

// SetupLogging initializes the logging module. Logs always go to the rotated
// file and are printed to standard output as well outside production. Only
// fatal logs carry a stacktrace. All logs come with commit & tag value.
func SetupLogging(config *Config, w *RSyncWrite, clock TickerClocker) (*zap.Logger, func() error) {
	zapConfig := newEncoderConfig(config.IsProduction)
	cores := []zapcore.Core{zapcore.NewCore(zapcore.NewJSONEncoder(zapConfig), w, config.LogLevel)}
	if !config.IsProduction {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(zapConfig), zapcore.Lock(&SyncWrite{os.Stdout}), config.LogLevel))
	}
	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.FatalLevel))
	logger = logger.WithOptions(zap.WithClock(clock))
	logger = logger.With(zap.String("app.commit", config.GitCommit), zap.String("app.tag", config.GitTag), zap.String("app.built", config.BuildTime))

	flusher := func() error {
		if err := logger.Sync(); err != nil {
			return fmt.Errorf("[flush logs]: %w", err)
		}
		return nil
	}

	return logger, flusher
}

// GetLoggerFromContext retrieves the request scoped logger set by the core
// middleware. It falls back to the App logger.
func (api *APIHandler) GetLoggerFromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(ContextRequestLogger).(*zap.Logger); ok {
		return logger
	}
	return api.logger
}

// CreateLogFilePath returns the absolute path of the initial log file.
func CreateLogFilePath(folder string, isProd bool, t time.Time) string {
	var envKey string
	if isProd {
		envKey = "prod"
	} else {
		envKey = "dev"
	}
	suffix := fmt.Sprintf("lending.%04d%02d%02d.%02d%02d%02d.%s.log", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), envKey)
	return filepath.Join(folder, suffix)
}
