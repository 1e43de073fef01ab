package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, total int) string {
	filename := filepath.Join(t.TempDir(), "file_generator.data")
	f, err := os.Create(filename)
	require.Nil(t, err)
	for i := 1; i <= total; i++ {
		fmt.Fprintf(f, "%d\n", i)
	}
	require.Nil(t, f.Close())
	return filename
}

func TestFileGenerator(t *testing.T) {
	total := 5
	filename := writeLines(t, total)
	var g Generator
	fg, err := NewFileGenerator(filename)
	require.Nil(t, err)
	defer fg.Close()
	g = fg
	for i := 1; i <= total; i++ {
		last := g.NextString()
		require.Equal(t, fmt.Sprintf("%d", i), last)
		require.Equal(t, last, g.LastString())
		require.Equal(t, int64(i), fg.LineNumber())
	}
	require.False(t, fg.Next())
	require.Nil(t, fg.Err())
	require.Equal(t, "", fg.NextString())
	require.Equal(t, filename, fg.Filename())
}

func TestFileGeneratorMissingFile(t *testing.T) {
	_, err := NewFileGenerator(filepath.Join(t.TempDir(), "missing"))
	require.NotNil(t, err)
}
