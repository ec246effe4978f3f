// Package log provides structured logging for the accelerator using zap.
package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zboralski/galago/internal/uclib"
)

// Logger wraps zap.Logger with accelerator-specific helpers.
type Logger struct {
	*zap.Logger
	onEpisode func(arch string, stop uclib.StopReason, steps uint64) // episode callback for trace collection
}

var (
	// L is the global logger instance.
	L    *Logger
	once sync.Once
)

// Init initializes the global logger with the given configuration.
// Safe to call multiple times; only the first call takes effect.
func Init(debug bool) {
	once.Do(func() {
		L = New(debug)
	})
}

// New creates a new Logger instance.
func New(debug bool) *Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	// Shorter timestamps in development
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fallback to no-op if config fails
		logger = zap.NewNop()
	}

	return &Logger{Logger: logger}
}

// NewNop creates a no-op logger for testing.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// SetOnEpisode sets the callback fired after every episode finishes, for
// trace-event collection outside the logging pipeline itself.
func (l *Logger) SetOnEpisode(fn func(arch string, stop uclib.StopReason, steps uint64)) {
	l.onEpisode = fn
}

// Episode logs one completed acceleration episode and calls the episode
// callback if set. The CLI driver calls it once per finished episode; the
// run controller itself does not log.
func (l *Logger) Episode(arch string, stop uclib.StopReason, steps uint64, elapsedMS float64) {
	if l.onEpisode != nil {
		l.onEpisode(arch, stop, steps)
	}
	l.Debug("episode",
		zap.String("arch", arch),
		zap.String("stop", stop.String()),
		zap.Uint64("steps", steps),
		zap.Float64("elapsed_ms", elapsedMS),
	)
}

// Cooldown logs a cooldown engaging, so why acceleration was suppressed
// is visible without re-deriving it from stop reasons.
func (l *Logger) Cooldown(kind string, countdown int) {
	l.Debug("cooldown",
		zap.String("kind", kind),
		zap.Int("countdown", countdown),
	)
}

// Concretize logs one concretization decision: a symbolic value was
// resolved to a concrete one at ip, tagged with why.
func (l *Logger) Concretize(ip uint64, tag string, value uint64) {
	l.Debug("concretize",
		Ptr("ip", ip),
		zap.String("tag", tag),
		zap.Uint64("value", value),
	)
}

// Fault logs a page-fault bridge decision.
func (l *Logger) Fault(addr uint64, size int, outcome string) {
	l.Debug("fault",
		Ptr("addr", addr),
		zap.Int("size", size),
		zap.String("outcome", outcome),
	)
}

// HandleDiscard logs I4's handle-discard-on-abnormal-stop path.
func (l *Logger) HandleDiscard(stop uclib.StopReason) {
	l.Info("handle discarded",
		zap.String("stop", stop.String()),
	)
}

// WithCategory returns a logger with the category field preset.
func (l *Logger) WithCategory(category string) *Logger {
	return &Logger{
		Logger:    l.Logger.With(zap.String("cat", category)),
		onEpisode: l.onEpisode,
	}
}

// Hex formats a uint64 as hex string for logging.
func Hex(addr uint64) string {
	return "0x" + hexString(addr)
}

func hexString(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	buf := make([]byte, 16)
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}

// Field helpers for common patterns.

// Addr creates an address field.
func Addr(addr uint64) zap.Field {
	return zap.String("addr", Hex(addr))
}

// Size creates a size field.
func Size(size uint64) zap.Field {
	return zap.Uint64("size", size)
}

// Ptr creates a pointer field.
func Ptr(name string, ptr uint64) zap.Field {
	return zap.String(name, Hex(ptr))
}

// Fn creates a function name field.
func Fn(name string) zap.Field {
	return zap.String("fn", name)
}
