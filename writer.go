package esbench

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	g "github.com/hhkbp2/esbench/generator"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Writer indexes documents one call at a time. All the writers of a
// benchmark draw keys from one shared counter, so every document of the
// data set is indexed once.
type Writer struct {
	id        int
	db        DB
	target    *Target
	docs      []Document
	firstID   int64
	keys      *g.CounterGenerator
	timeBound time.Duration
	interval  int64
	progress  *ProgressLog
	clock     Clock
}

// Run indexes documents until the data set is exhausted or the time bound
// has passed. A zero time bound never passes.
func (self *Writer) Run(ctx context.Context) (*WorkerResult, error) {
	Infof("[writer %d] loading...", self.id)
	var count int64
	start := self.clock.Now()
	for self.timeBound <= 0 || self.clock.Now().Sub(start) < self.timeBound {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "writer %d interrupted", self.id)
		}
		key := self.keys.NextInt()
		if key >= int64(len(self.docs)) {
			break
		}
		id := strconv.FormatInt(self.firstID+key, 10)
		if err := self.db.Index(ctx, self.target.Index, self.target.DocType, id, self.docs[key]); err != nil {
			return nil, errors.Wrapf(err, "writer %d index %s", self.id, id)
		}
		count++
		if (key+1)%self.interval == 0 {
			if err := self.progress.Log(key + 1); err != nil {
				return nil, errors.Wrapf(err, "writer %d fail to log progress", self.id)
			}
		}
	}
	elapsed := self.clock.Now().Sub(start)
	Infof("[writer %d] done, %d documents in %s.", self.id, count, elapsed)
	return &WorkerResult{
		WorkerID:   self.id,
		Count:      count,
		Elapsed:    elapsed,
		Throughput: Throughput(count, elapsed),
	}, nil
}

// WriteReport summarizes a finished write benchmark.
type WriteReport struct {
	RunID   string
	Threads int
	// Documents indexed by the succeeded writers.
	Written   int64
	Succeeded int
	Failures  *multierror.Error
	// Sum of the throughputs of the succeeded writers.
	Throughput float64
}

// WriteBenchmark measures the write throughput of concurrent writers
// indexing the documents of a data file.
type WriteBenchmark struct {
	props     Properties
	dbFactory DBFactory
	clock     Clock
	sink      ResultSink
	progress  *ProgressLog
}

func NewWriteBenchmark(props Properties, dbFactory DBFactory) *WriteBenchmark {
	if dbFactory == nil {
		dbFactory = NewDB
	}
	return &WriteBenchmark{
		props:     props,
		dbFactory: dbFactory,
		clock:     SystemClock{},
	}
}

func (self *WriteBenchmark) SetClock(clock Clock) {
	self.clock = clock
}

// SetResultSink replaces load.resultfile. The sink is not closed.
func (self *WriteBenchmark) SetResultSink(sink ResultSink) {
	self.sink = sink
}

// SetProgressLog replaces load.progressfile. The log is not closed.
func (self *WriteBenchmark) SetProgressLog(progress *ProgressLog) {
	self.progress = progress
}

func (self *WriteBenchmark) Main(ctx context.Context) error {
	report, err := self.Run(ctx)
	if err != nil {
		return err
	}
	if report.Failures != nil {
		for _, e := range report.Failures.Errors {
			Errorf("%+v", e)
		}
		Warnf("%d of %d writers failed", len(report.Failures.Errors), report.Threads)
	}
	exporter, err := OpenMeasurementExporter(self.props)
	if err != nil {
		return err
	}
	for _, e := range []exportedValue{
		{"Threads", int64(report.Threads)},
		{"Operations", report.Written},
		{"Throughput(ops/sec)", report.Throughput},
	} {
		if err := exporter.Write("WRITE", e.measurement, e.v); err != nil {
			exporter.Close()
			return err
		}
	}
	return exporter.Close()
}

func (self *WriteBenchmark) positive(key, defaultValue string) (int64, error) {
	v, err := self.props.GetInt64(key, defaultValue)
	if err != nil {
		return 0, err
	}
	if v < 1 {
		return 0, NewConfigurationError("%s must be positive, got %d", key, v)
	}
	return v, nil
}

// Run loads the data file into memory, then starts the writers and waits
// for all of them. Failed writers are reported in the WriteReport.
func (self *WriteBenchmark) Run(ctx context.Context) (*WriteReport, error) {
	dataFile := self.props.Get(PropertyLoadDataFile)
	if dataFile == "" {
		return nil, NewConfigurationError("write benchmark requires %s", PropertyLoadDataFile)
	}
	threadCount, err := self.positive(PropertyWriteThreadCount, PropertyWriteThreadCountDefault)
	if err != nil {
		return nil, err
	}
	interval, err := self.positive(PropertyWriteReportInterval, PropertyWriteReportIntervalDefault)
	if err != nil {
		return nil, err
	}
	timeBound, err := self.props.GetDuration(PropertyWriteTimeBound, PropertyWriteTimeBoundDefault)
	if err != nil {
		return nil, err
	}
	if timeBound < 0 {
		return nil, NewConfigurationError("%s must not be negative, got %s", PropertyWriteTimeBound, timeBound)
	}
	if _, err := self.props.GetInt64(PropertyLoadSeed, PropertyLoadSeedDefault); err != nil {
		return nil, err
	}
	docs, err := LoadAppends(dataFile)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, NewConfigurationError("no document in %s", dataFile)
	}
	database := self.props.GetDefault(PropertyDB, PropertyDBDefault)
	target := &Target{
		Index:   self.props.GetDefault(PropertyIndexName, PropertyIndexNameDefault),
		DocType: self.props.GetDefault(PropertyDocType, PropertyDocTypeDefault),
	}
	runID := uuid.New().String()
	log := WithFields(logrus.Fields{
		"run": runID,
		"db":  database,
	})
	log.Infof("loaded %d documents from %s", len(docs), dataFile)

	dbs := make([]DB, 0, threadCount)
	defer func() {
		for _, db := range dbs {
			if err := db.Cleanup(); err != nil {
				log.Warnf("fail to cleanup db: %s", err)
			}
		}
	}()
	for i := int64(0); i < threadCount; i++ {
		db, err := OpenDB(self.dbFactory, database, self.props.Clone())
		if err != nil {
			return nil, err
		}
		dbs = append(dbs, db)
	}
	firstID, err := startID(ctx, self.props, dbs[0], target.Index)
	if err != nil {
		return nil, err
	}

	sink := self.sink
	if sink == nil {
		filename := self.props.GetDefault(PropertyWriteResultFile, PropertyWriteResultFileDefault)
		fileSink, err := NewFileResultSink(filename)
		if err != nil {
			return nil, errors.Wrapf(err, "fail to open result file %s", filename)
		}
		defer fileSink.Close()
		sink = fileSink
	}
	progress := self.progress
	if progress == nil {
		filename := self.props.GetDefault(PropertyWriteProgressFile, PropertyWriteProgressFileDefault)
		fileProgress, err := NewFileProgressLog(filename, self.clock)
		if err != nil {
			return nil, errors.Wrapf(err, "fail to open progress file %s", filename)
		}
		defer fileProgress.Close()
		progress = fileProgress
	}

	keys := g.NewCounterGenerator(0)
	results := make([]*WorkerResult, threadCount)
	errs := make([]error, threadCount)
	log.Infof("starting %d writers from id %d", threadCount, firstID)
	var wg sync.WaitGroup
	for i, db := range dbs {
		w := &Writer{
			id:        i,
			db:        db,
			target:    target,
			docs:      docs,
			firstID:   firstID,
			keys:      keys,
			timeBound: timeBound,
			interval:  interval,
			progress:  progress,
			clock:     self.clock,
		}
		wg.Add(1)
		go func(i int, w *Writer) {
			defer wg.Done()
			result, err := w.Run(ctx)
			if err == nil {
				if err = sink.Write(result); err != nil {
					err = errors.Wrapf(err, "writer %d fail to write result", i)
				}
			}
			results[i] = result
			errs[i] = err
		}(i, w)
	}
	wg.Wait()

	report := &WriteReport{
		RunID:   runID,
		Threads: int(threadCount),
	}
	for i := range dbs {
		if errs[i] != nil {
			report.Failures = multierror.Append(report.Failures, errs[i])
			continue
		}
		report.Succeeded++
		report.Written += results[i].Count
		report.Throughput += results[i].Throughput
	}
	log.Infof("write benchmark finished, %d of %d writers succeeded, %d documents, throughput %.2f ops/sec",
		report.Succeeded, report.Threads, report.Written, report.Throughput)
	return report, nil
}
