package logparse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const traditionalLog = `==== Logging started for test_service ====
Task URL: https://example.com/task/1
step one
==== Logging ended ====
`

const structuredLog = `[
  {"timestamp": "2025-01-01T00:00:01Z", "jsonPayload": {"message": "==== Logging started for test_service ===="}},
  {"timestamp": "2025-01-01T00:00:02Z", "jsonPayload": {"message": "Task URL: https://example.com/task/1"}},
  {"timestamp": "2025-01-01T00:00:03Z", "jsonPayload": {"message": "step one"}},
  {"timestamp": "2025-01-01T00:00:04Z", "jsonPayload": {"message": "==== Logging ended ===="}}
]`

func TestParseHandlesBothFormats(t *testing.T) {
	t.Parallel()
	p := New(zaptest.NewLogger(t))

	for name, payload := range map[string]string{
		"traditional": traditionalLog,
		"structured":  structuredLog,
	} {
		payload := payload
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			entries, err := p.Parse("1", []byte(payload))
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "test_service", entries[0].Service)
			require.NotNil(t, entries[0].TaskURL)
			assert.Equal(t, "https://example.com/task/1", *entries[0].TaskURL)
			assert.Equal(t, []string{"step one"}, entries[0].Steps)
		})
	}
}

func TestParseUndecodableContentYieldsNoEntries(t *testing.T) {
	t.Parallel()
	p := New(zaptest.NewLogger(t))

	entries, err := p.Parse("1", []byte("{\"not\": \"an array\"}"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = p.Parse("1", []byte(""))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseFile(t *testing.T) {
	t.Parallel()
	p := New(zaptest.NewLogger(t))
	dir := t.TempDir()

	path := filepath.Join(dir, "12.bot.log")
	require.NoError(t, os.WriteFile(path, []byte(traditionalLog), 0o644))

	entries, err := p.ParseFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "12", entries[0].FileID, "file id stops at the first dot")

	_, err = p.ParseFile(filepath.Join(dir, "absent.log"))
	require.Error(t, err)
}
