package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	lines := []string{"one", "two", "three", "four"}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	got, err := Tail(path, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "four"}, got)

	got, err = Tail(path, 10)
	require.NoError(t, err)
	assert.Equal(t, lines, got)
}

func TestTailMissingFile(t *testing.T) {
	got, err := Tail(filepath.Join(t.TempDir(), "missing.log"), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
