package esbench

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatResult(t *testing.T) {
	require.Equal(t, "3\t1234.57\n", FormatResult(&WorkerResult{WorkerID: 3, Throughput: 1234.5678}))
	require.Equal(t, "0\t0.00\n", FormatResult(&WorkerResult{}))
}

func TestFileResultSinkAppends(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "thput")
	for run := 0; run < 2; run++ {
		sink, err := NewFileResultSink(filename)
		require.Nil(t, err)
		require.Nil(t, sink.Write(&WorkerResult{WorkerID: run, Throughput: 10.5, Elapsed: time.Second}))
		require.Nil(t, sink.Close())
	}
	b, err := os.ReadFile(filename)
	require.Nil(t, err)
	require.Equal(t, "0\t10.50\n1\t10.50\n", string(b))
}

func TestFileResultSinkConcurrent(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "thput")
	sink, err := NewFileResultSink(filename)
	require.Nil(t, err)
	total := 32
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.Nil(t, sink.Write(&WorkerResult{WorkerID: i, Throughput: float64(i)}))
		}(i)
	}
	wg.Wait()
	require.Nil(t, sink.Close())
	b, err := os.ReadFile(filename)
	require.Nil(t, err)
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	require.Len(t, lines, total)
	for _, line := range lines {
		require.Len(t, strings.Split(line, "\t"), 2)
	}
}

func TestMemoryResultSink(t *testing.T) {
	sink := NewMemoryResultSink()
	require.Nil(t, sink.Write(&WorkerResult{WorkerID: 1, Throughput: 2}))
	require.Nil(t, sink.Write(&WorkerResult{WorkerID: 0, Throughput: 3.333}))
	require.Nil(t, sink.Close())
	require.Equal(t, []string{"1\t2.00\n", "0\t3.33\n"}, sink.Lines())
	results := sink.Results()
	results[0].WorkerID = 9
	require.Equal(t, 1, sink.Results()[0].WorkerID)
}

func TestFileProgressLogTruncates(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "record_progress")
	clock := newFakeClock()
	require.Nil(t, os.WriteFile(filename, []byte("stale\n"), 0644))
	progress, err := NewFileProgressLog(filename, clock)
	require.Nil(t, err)
	require.Nil(t, progress.Log(10000))
	clock.Advance(1500 * time.Millisecond)
	require.Nil(t, progress.Log(20000))
	require.Nil(t, progress.Close())
	b, err := os.ReadFile(filename)
	require.Nil(t, err)
	require.Equal(t, "1577836800000 10000\n1577836801500 20000\n", string(b))
}
