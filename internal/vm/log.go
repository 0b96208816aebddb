package vm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel is the severity carried by Log instructions. The numeric values
// are part of the compiled-program encoding.
type LogLevel uint8

const (
	LogOff LogLevel = iota
	LogError
	LogWarn
	LogInfo
	LogDebug
	LogTrace
)

var logLevelNames = map[LogLevel]string{
	LogOff:   "off",
	LogError: "error",
	LogWarn:  "warn",
	LogInfo:  "info",
	LogDebug: "debug",
	LogTrace: "trace",
}

func (l LogLevel) String() string {
	if s, ok := logLevelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("LogLevel(%d)", uint8(l))
}

// ParseLogLevel maps a source-level tag like :info to a level.
func ParseLogLevel(s string) (LogLevel, bool) {
	for l, name := range logLevelNames {
		if name == strings.ToLower(s) {
			return l, true
		}
	}
	return LogOff, false
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LogError:
		return zapcore.ErrorLevel
	case LogWarn:
		return zapcore.WarnLevel
	case LogInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// emitLog renders the template and hands the line to the sink. Placeholders
// are positional: each %s consumes one argument register.
func emitLog(logger *zap.Logger, level LogLevel, template string, args []Value) {
	if logger == nil || level == LogOff {
		return
	}
	rendered := template
	for _, a := range args {
		rendered = strings.Replace(rendered, "%s", a.String(), 1)
	}
	if ce := logger.Check(level.zapLevel(), rendered); ce != nil {
		ce.Write(zap.String("source", "script"))
	}
}
