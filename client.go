package esbench

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	g "github.com/hhkbp2/esbench/generator"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Client is one of the top level modes of the program.
type Client interface {
	Main(ctx context.Context) error
}

// RunConfig is the validated configuration of a throughput run.
type RunConfig struct {
	Database          string
	Workload          string
	Target            Target
	QueryFile         string
	AppendFile        string
	ThreadCount       int
	Durations         PhaseDurations
	MaxSequenceLength int64
	Seed              int64
	ResultFile        string
	MetricsAddr       string
}

func ParseRunConfig(p Properties) (*RunConfig, error) {
	threadCount, err := p.GetInt64(PropertyThreadCount, PropertyThreadCountDefault)
	if err != nil {
		return nil, err
	}
	if threadCount < 1 {
		return nil, NewConfigurationError("%s must be positive, got %d", PropertyThreadCount, threadCount)
	}
	var durations PhaseDurations
	for _, d := range []struct {
		key          string
		defaultValue string
		to           *time.Duration
	}{
		{PropertyWarmupTime, PropertyWarmupTimeDefault, &durations.Warmup},
		{PropertyMeasureTime, PropertyMeasureTimeDefault, &durations.Measure},
		{PropertyCooldownTime, PropertyCooldownTimeDefault, &durations.Cooldown},
	} {
		v, err := p.GetDuration(d.key, d.defaultValue)
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, NewConfigurationError("%s must not be negative, got %s", d.key, v)
		}
		*d.to = v
	}
	maxLength, err := p.GetInt64(PropertyMaxSequenceLength, PropertyMaxSequenceLengthDefault)
	if err != nil {
		return nil, err
	}
	if maxLength < 1 {
		return nil, NewConfigurationError("%s must be positive, got %d", PropertyMaxSequenceLength, maxLength)
	}
	searchSize, err := p.GetInt64(PropertySearchSize, PropertySearchSizeDefault)
	if err != nil {
		return nil, err
	}
	if searchSize < 1 {
		return nil, NewConfigurationError("%s must be positive, got %d", PropertySearchSize, searchSize)
	}
	seed, err := p.GetInt64(PropertySeed, PropertySeedDefault)
	if err != nil {
		return nil, err
	}
	return &RunConfig{
		Database: p.GetDefault(PropertyDB, PropertyDBDefault),
		Workload: strings.ToLower(strings.TrimSpace(p.GetDefault(PropertyWorkload, PropertyWorkloadDefault))),
		Target: Target{
			Index:      p.GetDefault(PropertyIndexName, PropertyIndexNameDefault),
			DocType:    p.GetDefault(PropertyDocType, PropertyDocTypeDefault),
			SearchSize: int(searchSize),
		},
		QueryFile:         p.Get(PropertyQueryFile),
		AppendFile:        p.Get(PropertyAppendFile),
		ThreadCount:       int(threadCount),
		Durations:         durations,
		MaxSequenceLength: maxLength,
		Seed:              seed,
		ResultFile:        p.GetDefault(PropertyResultFile, PropertyResultFileDefault),
		MetricsAddr:       p.Get(PropertyMetricsAddr),
	}, nil
}

// RunReport summarizes a finished run.
type RunReport struct {
	RunID       string
	Workload    string
	RecordCount int64
	Threads     int
	// Succeeded counts the workers whose result reached the sink.
	Succeeded int
	// Failures holds one error per failed worker, nil if none failed.
	Failures *multierror.Error
	// Measure phase latencies of the succeeded workers, merged.
	Measurements *Measurements
	// Sum of the throughputs of the succeeded workers.
	Throughput float64
}

type RunnerOption func(*Runner)

func WithDBFactory(f DBFactory) RunnerOption {
	return func(r *Runner) {
		r.dbFactory = f
	}
}

// WithResultSink replaces the result file named by the configuration.
// The runner does not close a sink given this way.
func WithResultSink(sink ResultSink) RunnerOption {
	return func(r *Runner) {
		r.sink = sink
	}
}

func WithClock(clock Clock) RunnerOption {
	return func(r *Runner) {
		r.clock = clock
	}
}

func WithMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// Runner coordinates a throughput run: it prepares one sequence and one DB
// per worker, runs all workers concurrently and collects their results.
type Runner struct {
	props     Properties
	dbFactory DBFactory
	sink      ResultSink
	clock     Clock
	metrics   *Metrics
}

func NewRunner(props Properties, opts ...RunnerOption) *Runner {
	object := &Runner{
		props:     props,
		dbFactory: NewDB,
		clock:     SystemClock{},
	}
	for _, opt := range opts {
		opt(object)
	}
	return object
}

func (self *Runner) Main(ctx context.Context) error {
	report, err := self.Run(ctx)
	if err != nil {
		return err
	}
	if report.Failures != nil {
		for _, e := range report.Failures.Errors {
			Errorf("%+v", e)
		}
		Warnf("%d of %d workers failed", len(report.Failures.Errors), report.Threads)
	}
	exporter, err := OpenMeasurementExporter(self.props)
	if err != nil {
		return err
	}
	if err := exporter.Write("OVERALL", "Threads", int64(report.Threads)); err != nil {
		exporter.Close()
		return err
	}
	if err := exporter.Write("OVERALL", "Throughput(ops/sec)", report.Throughput); err != nil {
		exporter.Close()
		return err
	}
	if err := report.Measurements.ExportMeasurements(exporter); err != nil {
		exporter.Close()
		return err
	}
	return exporter.Close()
}

func (self *Runner) newDB(database string) (DB, error) {
	return OpenDB(self.dbFactory, database, self.props.Clone())
}

func (self *Runner) count(ctx context.Context, conf *RunConfig) (int64, error) {
	db, err := self.newDB(conf.Database)
	if err != nil {
		return 0, err
	}
	defer db.Cleanup()
	return db.Count(ctx, conf.Target.Index)
}

// Run executes the whole run. It returns an error only if the run could
// not start; failures of individual workers are reported in the RunReport.
func (self *Runner) Run(ctx context.Context) (*RunReport, error) {
	conf, err := ParseRunConfig(self.props)
	if err != nil {
		return nil, err
	}
	merged, err := NewMeasurements(self.props)
	if err != nil {
		return nil, err
	}
	workload, err := NewWorkload(conf.Workload)
	if err != nil {
		return nil, err
	}
	if err := workload.CheckSources(conf.QueryFile, conf.AppendFile); err != nil {
		return nil, err
	}
	sources, err := LoadSources(conf.QueryFile, conf.AppendFile)
	if err != nil {
		return nil, err
	}
	runID := uuid.New().String()
	log := WithFields(logrus.Fields{
		"run":      runID,
		"workload": workload.Name(),
		"db":       conf.Database,
	})

	recordCount, err := self.count(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "fail to count records")
	}
	log.Infof("%d records in index %s", recordCount, conf.Target.Index)

	seed := conf.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sequences := make([]*Sequence, 0, conf.ThreadCount)
	for i := 0; i < conf.ThreadCount; i++ {
		seq, err := workload.NewSequence(g.NewRandom(seed+int64(i)), sources, recordCount, conf.MaxSequenceLength)
		if err != nil {
			return nil, err
		}
		sequences = append(sequences, seq)
	}

	dbs := make([]DB, 0, conf.ThreadCount)
	defer func() {
		for _, db := range dbs {
			if err := db.Cleanup(); err != nil {
				log.Warnf("fail to cleanup db: %s", err)
			}
		}
	}()
	for i := 0; i < conf.ThreadCount; i++ {
		db, err := self.newDB(conf.Database)
		if err != nil {
			return nil, err
		}
		dbs = append(dbs, db)
	}

	sink := self.sink
	if sink == nil {
		fileSink, err := NewFileResultSink(conf.ResultFile)
		if err != nil {
			return nil, errors.Wrapf(err, "fail to open result file %s", conf.ResultFile)
		}
		defer fileSink.Close()
		sink = fileSink
	}

	metrics := self.metrics
	if metrics == nil && conf.MetricsAddr != "" {
		metrics = NewMetrics()
		server, err := metrics.Serve(conf.MetricsAddr)
		if err != nil {
			return nil, errors.Wrapf(err, "fail to serve metrics on %s", conf.MetricsAddr)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	workers := make([]*Worker, 0, conf.ThreadCount)
	measurements := make([]*Measurements, 0, conf.ThreadCount)
	for i := 0; i < conf.ThreadCount; i++ {
		m, err := NewMeasurements(self.props)
		if err != nil {
			return nil, err
		}
		w := NewWorker(i, workload, dbs[i], &conf.Target, sequences[i], recordCount, conf.Durations, self.clock)
		w.SetMeasurements(m)
		w.SetMetrics(metrics)
		workers = append(workers, w)
		measurements = append(measurements, m)
	}

	log.Infof("starting %d workers", conf.ThreadCount)
	results := make([]*WorkerResult, conf.ThreadCount)
	errs := make([]error, conf.ThreadCount)
	var wg sync.WaitGroup
	for i, w := range workers {
		wg.Add(1)
		go func(i int, w *Worker) {
			defer wg.Done()
			metrics.WorkerStarted()
			result, err := w.Run(ctx)
			if err == nil {
				if err = sink.Write(result); err != nil {
					err = errors.Wrapf(err, "worker %d fail to write result", w.ID())
				}
			}
			metrics.WorkerFinished(err)
			results[i] = result
			errs[i] = err
		}(i, w)
	}
	wg.Wait()

	report := &RunReport{
		RunID:        runID,
		Workload:     workload.Name(),
		RecordCount:  recordCount,
		Threads:      conf.ThreadCount,
		Measurements: merged,
	}
	for i := range workers {
		if errs[i] != nil {
			report.Failures = multierror.Append(report.Failures, errs[i])
			continue
		}
		report.Succeeded++
		report.Throughput += results[i].Throughput
		report.Measurements.Merge(measurements[i])
	}
	log.Infof("run finished, %d of %d workers succeeded, throughput %.2f ops/sec",
		report.Succeeded, report.Threads, report.Throughput)
	if summary := report.Measurements.GetSummary(); summary != "" {
		log.Infof("latency %s", summary)
	}
	return report, nil
}
