package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogs redirects the default logger into a buffer for the duration of the test.
func captureLogs(t *testing.T, level Level, redact bool) *bytes.Buffer {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	SetRedactPII(redact)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
		SetRedactPII(true)
	})
	return &buf
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
	assert.Equal(t, "***@***", RedactEmail("a@b@c"))
}

func TestLogWritesJSONWithRedaction(t *testing.T) {
	buf := captureLogs(t, INFO, true)

	Info("member created", "email", "alice@example.com", "status", 201, "note", "sent to bob@example.org")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "member created", entry["msg"])
	assert.Equal(t, "al***@example.com", entry["email"])
	assert.Equal(t, "201", entry["status"])
	assert.Equal(t, "sent to bo***@example.org", entry["note"])
}

func TestLogWithoutRedaction(t *testing.T) {
	buf := captureLogs(t, INFO, false)

	Warn("skipped", "email", "alice@example.com")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "alice@example.com", entry["email"])
}

func TestLogRespectsLevel(t *testing.T) {
	buf := captureLogs(t, WARN, true)

	Debug("hidden")
	Info("hidden")
	Error("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"visible"`)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, l)

	l, err = ParseLevel("ERROR")
	require.NoError(t, err)
	assert.Equal(t, ERROR, l)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestFieldsKeepTheirOrder(t *testing.T) {
	buf := captureLogs(t, DEBUG, true)

	Debug("row skipped", "line", 7, "column", "Email 1", "dangling")

	line := buf.String()
	assert.True(t, strings.HasSuffix(line, `"msg":"row skipped","line":"7","column":"Email 1","dangling":""}`+"\n"), line)
	assert.True(t, strings.HasPrefix(line, `{"time":`), line)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "WARN", WARN.String())
	assert.Equal(t, "LEVEL(9)", Level(9).String())
}
