package utils

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var ErrUnknownLogLevel = errors.New("unknown log level (known: trace, debug, info, warn, error, fatal)")

// LogLevel is a log level that can be changed while loggers built from it are
// running.
type LogLevel struct {
	atomicLevel zap.AtomicLevel
}

// The following are necessary for Cobra and Viper, respectively, to unmarshal log level
// CLI/config parameters properly.
var (
	_ pflag.Value              = (*LogLevel)(nil)
	_ encoding.TextUnmarshaler = (*LogLevel)(nil)
)

const (
	TRACE zapcore.Level = iota - 2
	DEBUG
	INFO
	WARN
	ERROR
	FATAL = zapcore.FatalLevel
)

const (
	timeFormat = "15:04:05.000 02/01/2006 -07:00"
)

func NewLogLevel(level zapcore.Level) *LogLevel {
	return &LogLevel{atomicLevel: zap.NewAtomicLevelAt(level)}
}

func (l LogLevel) Level() zapcore.Level {
	if l.atomicLevel == (zap.AtomicLevel{}) {
		return INFO
	}
	return l.atomicLevel.Level()
}

func (l LogLevel) String() string {
	if level := l.Level(); level != TRACE {
		return level.String()
	}
	return "trace"
}

func (l LogLevel) MarshalYAML() (any, error) {
	return l.String(), nil
}

func (l *LogLevel) Set(s string) error {
	var level zapcore.Level
	switch strings.ToLower(s) {
	case "trace":
		level = TRACE
	case "debug":
		level = DEBUG
	case "info":
		level = INFO
	case "warn":
		level = WARN
	case "error":
		level = ERROR
	case "fatal":
		level = FATAL
	default:
		return ErrUnknownLogLevel
	}

	if l.atomicLevel == (zap.AtomicLevel{}) {
		l.atomicLevel = zap.NewAtomicLevelAt(level)
		return nil
	}
	l.atomicLevel.SetLevel(level)
	return nil
}

func (l *LogLevel) Type() string {
	return "LogLevel"
}

func (l *LogLevel) MarshalJSON() ([]byte, error) {
	return json.RawMessage(`"` + l.String() + `"`), nil
}

func (l *LogLevel) UnmarshalText(text []byte) error {
	return l.Set(string(text))
}

type SimpleLogger interface {
	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
}

// TraceLogger is a SimpleLogger that can also log below debug level.
type TraceLogger interface {
	SimpleLogger
	IsTraceEnabled() bool
	Tracew(msg string, keysAndValues ...any)
}

type ZapLogger struct {
	*zap.SugaredLogger
}

var _ TraceLogger = (*ZapLogger)(nil)

func NewZapLogger(logLevel *LogLevel, colour bool) (*ZapLogger, error) {
	config := zap.NewProductionConfig()
	config.Sampling = nil
	config.Encoding = "console"
	config.EncoderConfig.EncodeLevel = levelEncoder(colour)
	config.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Local().Format(timeFormat))
	}
	if logLevel != nil {
		if logLevel.atomicLevel == (zap.AtomicLevel{}) {
			logLevel.atomicLevel = zap.NewAtomicLevel()
		}
		config.Level = logLevel.atomicLevel
	}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{log.Sugar()}, nil
}

func NewZapLoggerWithCore(core zapcore.Core) *ZapLogger {
	return &ZapLogger{zap.New(core).Sugar()}
}

func NewNopZapLogger() *ZapLogger {
	return &ZapLogger{zap.NewNop().Sugar()}
}

func (l *ZapLogger) IsTraceEnabled() bool {
	return l.Desugar().Core().Enabled(TRACE)
}

func (l *ZapLogger) Tracew(msg string, keysAndValues ...any) {
	if l.IsTraceEnabled() {
		l.Logw(TRACE, msg, keysAndValues...)
	}
}

func levelEncoder(colour bool) zapcore.LevelEncoder {
	encode := zapcore.CapitalLevelEncoder
	if colour {
		encode = zapcore.CapitalColorLevelEncoder
	}
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		if level == TRACE {
			if colour {
				enc.AppendString("\x1b[34mTRACE\x1b[0m")
			} else {
				enc.AppendString("TRACE")
			}
			return
		}
		encode(level, enc)
	}
}

// HTTPLogSettings reports the current level on GET and replaces it with the
// level query parameter on PUT.
func HTTPLogSettings(w http.ResponseWriter, r *http.Request, logLevel *LogLevel) {
	switch r.Method {
	case http.MethodGet:
		fmt.Fprintf(w, "%s\n", logLevel.String())
	case http.MethodPut:
		levelStr := r.URL.Query().Get("level")
		if levelStr == "" {
			http.Error(w, "missing level query parameter", http.StatusBadRequest)
			return
		}

		if err := logLevel.Set(levelStr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, "Replaced log level with '%s' successfully\n", levelStr)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
