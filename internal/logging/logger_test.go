package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsort/internal/model"
)

func TestNewFileWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mailsort.log")

	l, err := NewFile(model.LogConfig{Level: "debug", File: path})
	require.NoError(t, err)

	l.Debug("hello")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestNewFileEmptyPathIsNop(t *testing.T) {
	l, err := NewFile(model.LogConfig{})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestInvalidLevel(t *testing.T) {
	_, err := NewConsole(model.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
