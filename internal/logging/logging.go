// Package logging provides the leveled, structured logger used
// throughout the chat runtime core, built the way ingest/log is: RFC
// 5424 syslog records as the wire format, fanned out to one or more
// writers (stderr, a log file, ...).
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

// Level is a total order over log severities, carried over from the
// teacher's ingest/log level enum because every component in this
// module needs the same total order.
type Level int

const (
	OFF Level = iota
	DEBUG
	INFO
	WARN
	ERROR
	CRITICAL
	FATAL
)

func (l Level) String() string {
	switch l {
	case OFF:
		return "OFF"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// priority maps a Level onto an RFC 5424 facility|severity value, the
// way ingest/log/logging.go's Level.priority() does.
func (l Level) priority() rfc5424.Priority {
	switch l {
	case DEBUG:
		return rfc5424.User | rfc5424.Debug
	case INFO:
		return rfc5424.User | rfc5424.Info
	case WARN:
		return rfc5424.User | rfc5424.Warning
	case ERROR:
		return rfc5424.User | rfc5424.Error
	case CRITICAL, FATAL:
		return rfc5424.User | rfc5424.Crit
	default:
		return rfc5424.User | rfc5424.Debug
	}
}

// defaultID is the structured-data ID used for every field set this
// logger emits, mirroring ingest/log.DefaultID.
const defaultID = "acip@1"

// Field is a single structured key-value pair attached to a log line.
// F and FErr construct a Field (matching ingest/log/utils.go's KV/KVErr
// helpers); sdParam converts it to an rfc5424.SDParam.
type Field struct {
	Name  string
	Value string
}

func F(name string, value interface{}) Field {
	if s, ok := value.(string); ok {
		return Field{Name: name, Value: s}
	}
	return Field{Name: name, Value: fmt.Sprintf("%v", value)}
}

func FErr(err error) Field {
	return F("error", err)
}

func (f Field) sdParam() rfc5424.SDParam {
	return rfc5424.SDParam{Name: f.Name, Value: f.Value}
}

// Logger is a leveled, structured logger writing RFC 5424 records to one
// or more writers. It is constructed once per process (or once per
// component, given a shared writer) and handed by pointer to every
// component that can fail or make a policy decision, matching the
// teacher's convention of threading *log.Logger through constructors.
type Logger struct {
	mtx      sync.Mutex
	wtrs     []io.Writer
	lvl      Level
	hostname string
	appname  string
	hot      bool
}

// New creates a Logger at INFO level writing to wtr.
func New(wtr io.Writer, appname string) *Logger {
	hostname, _ := os.Hostname()
	return &Logger{
		wtrs:     []io.Writer{wtr},
		lvl:      INFO,
		hostname: hostname,
		appname:  appname,
		hot:      true,
	}
}

// NewDiscard returns a Logger that drops every line; useful in tests.
func NewDiscard() *Logger {
	return New(io.Discard, "discard")
}

func (l *Logger) SetLevel(lvl Level) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.lvl = lvl
}

func (l *Logger) AddWriter(wtr io.Writer) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.wtrs = append(l.wtrs, wtr)
}

func (l *Logger) Close() {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.hot = false
}

func (l *Logger) Debug(msg string, fields ...Field)    { l.log(DEBUG, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)     { l.log(INFO, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)     { l.log(WARN, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field)    { l.log(ERROR, msg, fields) }
func (l *Logger) Critical(msg string, fields ...Field) { l.log(CRITICAL, msg, fields) }

// With returns a child logger that always attaches the given fields,
// matching ingest/log/kvlog.go's KVLogger composition pattern.
func (l *Logger) With(fields ...Field) *KVLogger {
	return &KVLogger{parent: l, fields: fields}
}

func (l *Logger) log(lvl Level, msg string, fields []Field) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if !l.hot || lvl < l.lvl || lvl == OFF {
		return
	}
	sds := make([]rfc5424.SDParam, 0, len(fields))
	for _, f := range fields {
		sds = append(sds, f.sdParam())
	}
	m := rfc5424.Message{
		Priority:  lvl.priority(),
		Timestamp: time.Now(),
		Hostname:  trimLength(255, l.hostname),
		AppName:   trimLength(48, l.appname),
		MessageID: trimLength(32, "-"),
		Message:   []byte(msg),
	}
	if len(sds) > 0 {
		m.StructuredData = []rfc5424.StructuredData{{ID: defaultID, Parameters: sds}}
	}
	out, err := m.MarshalBinary()
	if err != nil {
		// Formatting should never fail in practice; fall back to a plain
		// line rather than lose the log record entirely.
		out = []byte(fmt.Sprintf("%s [%s] %s\n", time.Now().Format(time.RFC3339), lvl, msg))
	} else {
		out = append(out, '\n')
	}
	for _, w := range l.wtrs {
		_, _ = w.Write(out)
	}
}

func trimLength(n int, s string) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// KVLogger is a Logger bound to a fixed set of structured fields,
// grounded directly on ingest/log/kvlog.go's KVLogger wrapper.
type KVLogger struct {
	parent *Logger
	fields []Field
}

func (k *KVLogger) Debug(msg string, extra ...Field) {
	k.parent.log(DEBUG, msg, append(append([]Field{}, k.fields...), extra...))
}
func (k *KVLogger) Info(msg string, extra ...Field) {
	k.parent.log(INFO, msg, append(append([]Field{}, k.fields...), extra...))
}
func (k *KVLogger) Warn(msg string, extra ...Field) {
	k.parent.log(WARN, msg, append(append([]Field{}, k.fields...), extra...))
}
func (k *KVLogger) Error(msg string, extra ...Field) {
	k.parent.log(ERROR, msg, append(append([]Field{}, k.fields...), extra...))
}

func (k *KVLogger) AddField(f Field) {
	k.fields = append(k.fields, f)
}
