package logger

import (
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Format selects how log lines are rendered.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

var (
	mu            sync.Mutex
	currentLevel  = LevelInfo
	currentFormat = FormatText
	logger        = stdlog.New(os.Stdout, "", 0)
	outputCloser  io.Closer
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel = LevelDebug
	case "INFO":
		currentLevel = LevelInfo
	case "WARN":
		currentLevel = LevelWarn
	case "ERROR":
		currentLevel = LevelError
	}
}

// SetFormat switches between "text" and "json" output. Unknown values are ignored.
func SetFormat(format string) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToLower(format) {
	case "text":
		currentFormat = FormatText
	case "json":
		currentFormat = FormatJSON
	}
}

// SetOutput redirects log output. Any file previously opened by Configure is closed.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	closeOutputLocked()
	logger.SetOutput(w)
}

// Configure applies level, format and output in one call.
//
// Output accepts "stdout", "stderr" or a file path. Files are opened in append
// mode and created with 0644 if missing.
func Configure(level, format, output string) error {
	var w io.Writer
	var closer io.Closer

	switch strings.ToLower(output) {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log output %q: %w", output, err)
		}
		w = f
		closer = f
	}

	SetOutput(w)
	mu.Lock()
	outputCloser = closer
	mu.Unlock()

	SetLevel(level)
	SetFormat(format)
	return nil
}

// Close releases a log file opened by Configure and falls back to stdout.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	closeOutputLocked()
	logger.SetOutput(os.Stdout)
}

func closeOutputLocked() {
	if outputCloser != nil {
		_ = outputCloser.Close()
		outputCloser = nil
	}
}

// IsEnabled reports whether messages at level would be written.
func IsEnabled(level Level) bool {
	mu.Lock()
	defer mu.Unlock()
	return level >= currentLevel
}

type jsonLine struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"msg"`
}

func log(level Level, format string, v ...any) {
	mu.Lock()
	defer mu.Unlock()

	if level < currentLevel {
		return
	}

	now := time.Now()
	message := fmt.Sprintf(format, v...)

	if currentFormat == FormatJSON {
		line, err := json.Marshal(jsonLine{
			Time:    now.Format(time.RFC3339Nano),
			Level:   level.String(),
			Message: message,
		})
		if err == nil {
			logger.Println(string(line))
			return
		}
	}

	timestamp := now.Format("2006-01-02 15:04:05")
	prefix := fmt.Sprintf("[%s] [%s] ", timestamp, level.String())
	logger.Println(prefix + message)
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
