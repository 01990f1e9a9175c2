package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		base = newLogrus()
	})
	return &buf
}

func TestTextFormat(t *testing.T) {
	buf := capture(t)
	SetLevel("info")

	Debug("hidden %d", 1)
	Info("hello %s", "world")
	With(Fields{"session": "abc", "op": "list"}).Warn("careful")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] hello world")
	assert.Contains(t, out, "[WARN] careful op=list session=abc")
}

func TestSetLevelIgnoresUnknown(t *testing.T) {
	buf := capture(t)
	SetLevel("debug")
	SetLevel("verbose")

	Debug("visible")
	assert.Contains(t, buf.String(), "[DEBUG] visible")
}

func TestConfigureJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	t.Cleanup(func() { base = newLogrus() })

	require.NoError(t, Configure("INFO", "json", path))
	With(Fields{"path": "/DOCS"}).Info("listed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &line))
	assert.Equal(t, "listed", line["msg"])
	assert.Equal(t, "/DOCS", line["path"])
}

func TestConfigureRejectsUnknownFormat(t *testing.T) {
	t.Cleanup(func() { base = newLogrus() })
	assert.Error(t, Configure("INFO", "xml", "stdout"))
}
