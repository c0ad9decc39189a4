// Package logger writes leveled log entries as single JSON lines. Email addresses in field values
// are masked unless redaction is switched off.
package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel returns the level with the given name, ignoring case.
func ParseLevel(name string) (Level, error) {
	for l := DEBUG; l <= ERROR; l++ {
		if strings.EqualFold(l.String(), strings.TrimSpace(name)) {
			return l, nil
		}
	}
	return INFO, fmt.Errorf("unknown log level %q", name)
}

// sink is where all entries go. There is only one per process.
var sink = struct {
	sync.Mutex
	out     io.Writer
	minimum Level
	redact  bool
}{out: os.Stderr, minimum: INFO, redact: true}

func SetLevel(l Level) {
	sink.Lock()
	sink.minimum = l
	sink.Unlock()
}

func SetRedactPII(redact bool) {
	sink.Lock()
	sink.redact = redact
	sink.Unlock()
}

func SetOutput(w io.Writer) {
	sink.Lock()
	sink.out = w
	sink.Unlock()
}

// Debug logs a message with alternating keys and values, e.g. Debug("row skipped", "line", 7).
func Debug(msg string, kv ...interface{}) { write(DEBUG, msg, kv) }

func Info(msg string, kv ...interface{}) { write(INFO, msg, kv) }

func Warn(msg string, kv ...interface{}) { write(WARN, msg, kv) }

func Error(msg string, kv ...interface{}) { write(ERROR, msg, kv) }

// write renders time, level and message first, then the fields in the order they were given. A
// key without value gets an empty one.
func write(level Level, msg string, kv []interface{}) {
	sink.Lock()
	defer sink.Unlock()
	if level < sink.minimum {
		return
	}

	var line bytes.Buffer
	line.WriteByte('{')
	appendField(&line, "time", time.Now().UTC().Format(time.RFC3339))
	appendField(&line, "level", level.String())
	appendField(&line, "msg", msg)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		value := ""
		if i+1 < len(kv) {
			value = fmt.Sprint(kv[i+1])
		}
		if sink.redact {
			value = mask(key, value)
		}
		appendField(&line, key, value)
	}
	line.WriteString("}\n")
	sink.out.Write(line.Bytes())
}

func appendField(b *bytes.Buffer, key, value string) {
	if b.Len() > 1 {
		b.WriteByte(',')
	}
	k, _ := json.Marshal(key)
	v, _ := json.Marshal(value)
	b.Write(k)
	b.WriteByte(':')
	b.Write(v)
}

var address = regexp.MustCompile(`[\w.%+-]+@[\w-]+(\.[\w-]+)*\.[a-zA-Z]{2,}`)

// mask redacts the whole value of email fields and every address embedded in other values.
func mask(key, value string) string {
	if strings.Contains(strings.ToLower(key), "email") {
		return RedactEmail(value)
	}
	if !strings.Contains(value, "@") {
		return value
	}
	return address.ReplaceAllStringFunc(value, RedactEmail)
}

// RedactEmail keeps the first two characters of the local part and the domain:
// "alice@x.com" becomes "al***@x.com". Short local parts are hidden entirely.
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}
