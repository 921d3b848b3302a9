package logbook

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

func (l Level) logrus() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Logbook records client activity to a rotated text file and can read back
// its most recent lines for the TUI log panel.
type Logbook struct {
	path   string
	mu     sync.Mutex
	logger *logrus.Logger
	writer *lumberjack.Logger
}

// Option customizes a logbook.
type Option func(*Logbook)

// WithLevel sets the minimum level written (debug, info, warn, error).
// Unknown values keep the info default.
func WithLevel(level string) Option {
	return func(l *Logbook) {
		if parsed, err := logrus.ParseLevel(strings.TrimSpace(level)); err == nil {
			l.logger.SetLevel(parsed)
		}
	}
}

// WithRotation sets the lumberjack rotation limits. Zero keeps the
// lumberjack default for that limit.
func WithRotation(maxSizeMB, maxBackups, maxAgeDays int) Option {
	return func(l *Logbook) {
		l.writer.MaxSize = maxSizeMB
		l.writer.MaxBackups = maxBackups
		l.writer.MaxAge = maxAgeDays
	}
}

// New creates a logbook that writes to the provided path.
func New(path string, opts ...Option) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
	logger := logrus.New()
	logger.SetOutput(writer)
	logger.SetFormatter(lineFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	book := &Logbook{path: path, logger: logger, writer: writer}
	for _, opt := range opts {
		if opt != nil {
			opt(book)
		}
	}
	return book, nil
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close flushes and closes the current log file.
func (l *Logbook) Close() error {
	if l == nil || l.writer == nil {
		return nil
	}
	return l.writer.Close()
}

// Append writes a single entry to the logbook.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Log(level.logrus(), strings.TrimSpace(message))
}

// WithFields writes a single entry carrying structured fields.
func (l *Logbook) WithFields(level Level, fields map[string]any, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.WithFields(logrus.Fields(fields)).Log(level.logrus(), strings.TrimSpace(message))
}

// Tail returns up to maxLines of the most recent log entries along with the
// total number of lines in the current file.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total == 0 {
		return nil, 0
	}
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}

// Debug appends a debug entry.
func (l *Logbook) Debug(format string, args ...any) {
	l.Append(LevelDebug, fmt.Sprintf(format, args...))
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}

// Printf lets the logbook serve as the request logger of the API client
// and the workflow. Entries are written at debug level.
func (l *Logbook) Printf(format string, args ...any) {
	l.Append(LevelDebug, fmt.Sprintf(format, args...))
}

// lineFormatter renders "<RFC3339 UTC> <LEVEL> <message> k=v ..." so the
// file stays readable in the log panel.
type lineFormatter struct{}

func (lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %-5s %s",
		entry.Time.UTC().Format(time.RFC3339),
		strings.ToUpper(levelName(entry.Level)),
		entry.Message,
	)
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func levelName(level logrus.Level) string {
	if level == logrus.WarnLevel {
		return "warn"
	}
	return level.String()
}
