package esbench

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func runProperties(workload string, threads int, warmup, measure, cooldown string) Properties {
	p := NewProperties()
	p.Add(PropertyDB, "mock")
	p.Add(PropertyWorkload, workload)
	p.Add(PropertyThreadCount, strconv.Itoa(threads))
	p.Add(PropertyWarmupTime, warmup)
	p.Add(PropertyMeasureTime, measure)
	p.Add(PropertyCooldownTime, cooldown)
	p.Add(PropertySeed, "42")
	return p
}

func writeFile(t *testing.T, name string, lines ...string) string {
	filename := filepath.Join(t.TempDir(), name)
	require.Nil(t, os.WriteFile(filename, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return filename
}

func TestParseRunConfig(t *testing.T) {
	conf, err := ParseRunConfig(NewProperties())
	require.Nil(t, err)
	require.Equal(t, PropertyDBDefault, conf.Database)
	require.Equal(t, "search", conf.Workload)
	require.Equal(t, "bench", conf.Target.Index)
	require.Equal(t, "data", conf.Target.DocType)
	require.Equal(t, 10000, conf.Target.SearchSize)
	require.Equal(t, 1, conf.ThreadCount)
	require.Equal(t, PhaseDurations{Warmup: 60 * time.Second, Measure: 120 * time.Second, Cooldown: 60 * time.Second}, conf.Durations)
	require.Equal(t, int64(100000), conf.MaxSequenceLength)
	require.Equal(t, "thput", conf.ResultFile)

	for _, bad := range []map[string]string{
		{PropertyThreadCount: "0"},
		{PropertyThreadCount: "many"},
		{PropertyMeasureTime: "-1s"},
		{PropertyWarmupTime: "soon"},
		{PropertyMaxSequenceLength: "0"},
		{PropertySearchSize: "0"},
		{PropertySeed: "x"},
	} {
		p := NewProperties()
		p.Merge(bad)
		_, err := ParseRunConfig(p)
		require.True(t, IsConfigurationError(err), "%v", bad)
	}
}

func TestRunEndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := newMockBackend(1000)
	resultFile := filepath.Join(t.TempDir(), "thput")
	p := runProperties("get", 3, "1s", "2s", "1s")
	p.Add(PropertyResultFile, resultFile)
	runner := NewRunner(p, WithDBFactory(backend.Factory))

	report, err := runner.Run(context.Background())
	require.Nil(t, err)
	require.Nil(t, report.Failures)
	require.Equal(t, 3, report.Succeeded)
	require.Equal(t, int64(1000), report.RecordCount)
	require.NotEmpty(t, report.RunID)
	require.Greater(t, report.Throughput, 0.0)
	require.Greater(t, report.Measurements.Count(OperationLookup.String()), int64(0))
	// one count connection plus one per worker
	require.Equal(t, int64(4), backend.Opened())

	b, err := os.ReadFile(resultFile)
	require.Nil(t, err)
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	require.Len(t, lines, 3)
	re := regexp.MustCompile(`^([0-2])\t(\d+\.\d{2})$`)
	seen := map[string]bool{}
	for _, line := range lines {
		m := re.FindStringSubmatch(line)
		require.NotNil(t, m, line)
		require.NotEqual(t, "0.00", m[2])
		seen[m[1]] = true
	}
	require.Len(t, seen, 3)
}

func TestRunFailureIsolation(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := newMockBackend(1000)
	// connection 0 serves the count call, connection 1 is worker 0
	backend.failConn = 1
	backend.failAt = 5
	sink := NewMemoryResultSink()
	metrics := NewMetrics()
	p := runProperties("get", 3, "0", "200ms", "0")
	runner := NewRunner(p,
		WithDBFactory(backend.Factory),
		WithResultSink(sink),
		WithMetrics(metrics))

	report, err := runner.Run(context.Background())
	require.Nil(t, err)
	require.Equal(t, 2, report.Succeeded)
	require.NotNil(t, report.Failures)
	require.Len(t, report.Failures.Errors, 1)
	require.True(t, IsBackendError(report.Failures.Errors[0]))

	results := sink.Results()
	require.Len(t, results, 2)
	for _, r := range results {
		require.NotEqual(t, 0, r.WorkerID)
		require.Greater(t, r.Throughput, 0.0)
	}
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.WorkerFailures))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveWorkers))
	require.Greater(t, testutil.ToFloat64(metrics.OperationTotal.WithLabelValues("get", "measure", "GET")), 0.0)
}

func TestRunMissingInputsMakeNoBackendCall(t *testing.T) {
	for _, kind := range []string{"search", "search-append", "get-append", "get-search"} {
		backend := newMockBackend(1000)
		runner := NewRunner(runProperties(kind, 2, "0", "0", "0"),
			WithDBFactory(backend.Factory),
			WithResultSink(NewMemoryResultSink()))
		_, err := runner.Run(context.Background())
		require.True(t, IsConfigurationError(err), kind)
		require.Equal(t, int64(0), backend.Calls(), kind)
		require.Equal(t, int64(0), backend.Opened(), kind)
	}
}

func TestRunUnsupportedWorkload(t *testing.T) {
	backend := newMockBackend(1000)
	runner := NewRunner(runProperties("scan", 1, "0", "0", "0"), WithDBFactory(backend.Factory))
	_, err := runner.Run(context.Background())
	require.True(t, IsUnsupportedWorkloadError(err))
	require.Equal(t, int64(0), backend.Calls())
}

func TestRunBadQueryFile(t *testing.T) {
	backend := newMockBackend(1000)
	p := runProperties("search", 1, "0", "0", "0")
	p.Add(PropertyQueryFile, writeFile(t, "queries", "1|ok", "oops"))
	runner := NewRunner(p, WithDBFactory(backend.Factory), WithResultSink(NewMemoryResultSink()))
	_, err := runner.Run(context.Background())
	require.True(t, IsConfigurationError(err))
	require.Contains(t, err.Error(), ":2:")
	require.Equal(t, int64(0), backend.Calls())
}

func TestRunZeroRecords(t *testing.T) {
	backend := newMockBackend(0)
	runner := NewRunner(runProperties("get", 1, "0", "0", "0"),
		WithDBFactory(backend.Factory),
		WithResultSink(NewMemoryResultSink()))
	_, err := runner.Run(context.Background())
	require.True(t, IsConfigurationError(err))
	// only the count call
	require.Equal(t, int64(1), backend.Calls())
}

func TestRunInitFailureAborts(t *testing.T) {
	backend := newMockBackend(1000)
	backend.initErr = NewBackendError("init", errMockBackend)
	sink := NewMemoryResultSink()
	runner := NewRunner(runProperties("get", 2, "0", "0", "0"),
		WithDBFactory(backend.Factory),
		WithResultSink(sink))
	_, err := runner.Run(context.Background())
	require.NotNil(t, err)
	require.False(t, IsUsageError(err))
	require.Empty(t, sink.Results())
	// the connection that failed to init is cleaned up too
	require.Equal(t, int64(1), backend.Opened())
	require.Equal(t, int64(1), backend.Cleaned())
}

func TestRunInvalidMeasurementSettings(t *testing.T) {
	backend := newMockBackend(1000)
	p := runProperties("get", 2, "0", "0", "0")
	p.Add(PropertyPercentiles, "95,ninety")
	runner := NewRunner(p, WithDBFactory(backend.Factory), WithResultSink(NewMemoryResultSink()))
	_, err := runner.Run(context.Background())
	require.True(t, IsConfigurationError(err))
	require.Equal(t, int64(0), backend.Opened())
}

func TestRunMixedWorkloads(t *testing.T) {
	defer goleak.VerifyNone(t)

	queryFile := writeFile(t, "queries", "0|alpha", "1| beta gamma ", "", "2|a|b")
	appendFile := writeFile(t, "appends", "x|y|z", "u|v")
	for _, kind := range []string{"search", "get-append", "search-append", "get-search"} {
		backend := newMockBackend(100)
		p := runProperties(kind, 2, "0", "100ms", "0")
		p.Add(PropertyQueryFile, queryFile)
		p.Add(PropertyAppendFile, appendFile)
		sink := NewMemoryResultSink()
		runner := NewRunner(p, WithDBFactory(backend.Factory), WithResultSink(sink))
		report, err := runner.Run(context.Background())
		require.Nil(t, err, kind)
		require.Nil(t, report.Failures, kind)
		require.Len(t, sink.Results(), 2, kind)
	}
}

func TestRunnerMainExportsMeasurements(t *testing.T) {
	defer goleak.VerifyNone(t)

	var buf bytes.Buffer
	old := OutputDest
	OutputDest = &buf
	defer func() { OutputDest = old }()

	backend := newMockBackend(100)
	p := runProperties("get", 1, "0", "50ms", "0")
	p.Add(PropertyExporter, "JSONArrayMeasurementExporter")
	runner := NewRunner(p, WithDBFactory(backend.Factory), WithResultSink(NewMemoryResultSink()))
	require.Nil(t, runner.Main(context.Background()))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "["))
	require.Contains(t, out, `"metric":"OVERALL","measurement":"Throughput(ops/sec)"`)
	require.Contains(t, out, `"metric":"GET","measurement":"Operations"`)
}
