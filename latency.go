package esbench

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	g "github.com/hhkbp2/esbench/generator"
	"github.com/pkg/errors"
)

const (
	LatencyModeSearch = "search"
	LatencyModeGet    = "get"
)

// LatencySampler issues one operation at a time and records the latency of
// each of them. There are no phases and no concurrency.
type LatencySampler struct {
	props     Properties
	dbFactory DBFactory
	clock     Clock
	// Records are written here when latency.output is empty.
	out io.Writer
}

func NewLatencySampler(props Properties, dbFactory DBFactory) *LatencySampler {
	if dbFactory == nil {
		dbFactory = NewDB
	}
	return &LatencySampler{
		props:     props,
		dbFactory: dbFactory,
		clock:     SystemClock{},
		out:       OutputDest,
	}
}

func (self *LatencySampler) SetClock(clock Clock) {
	self.clock = clock
}

func (self *LatencySampler) SetOutput(w io.Writer) {
	self.out = w
}

func (self *LatencySampler) Main(ctx context.Context) error {
	mode := strings.ToLower(strings.TrimSpace(self.props.GetDefault(PropertyLatencyMode, PropertyLatencyModeDefault)))
	if mode != LatencyModeSearch && mode != LatencyModeGet {
		return NewUnsupportedWorkloadError(mode)
	}
	index := self.props.GetDefault(PropertyIndexName, PropertyIndexNameDefault)
	var queries []*Query
	var err error
	if mode == LatencyModeSearch {
		queryFile := self.props.Get(PropertyQueryFile)
		if queryFile == "" {
			return NewConfigurationError("latency mode search requires a query file")
		}
		if queries, err = LoadQueries(queryFile); err != nil {
			return err
		}
	}
	measurements, err := NewMeasurements(self.props)
	if err != nil {
		return err
	}
	out := self.out
	if filename := self.props.Get(PropertyLatencyOutput); filename != "" {
		f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return errors.Wrapf(err, "fail to open latency output %s", filename)
		}
		defer f.Close()
		out = f
	}

	db, err := OpenDB(self.dbFactory, self.props.GetDefault(PropertyDB, PropertyDBDefault), self.props.Clone())
	if err != nil {
		return err
	}
	defer db.Cleanup()

	switch mode {
	case LatencyModeSearch:
		err = self.sampleSearch(ctx, db, index, queries, out, measurements)
	case LatencyModeGet:
		err = self.sampleGet(ctx, db, index, out, measurements)
	}
	if err != nil {
		return err
	}
	if summary := measurements.GetSummary(); summary != "" {
		Infof("latency %s", summary)
	}
	exporter, err := OpenMeasurementExporter(self.props)
	if err != nil {
		return err
	}
	if err := measurements.ExportMeasurements(exporter); err != nil {
		exporter.Close()
		return err
	}
	return exporter.Close()
}

func (self *LatencySampler) sampleSearch(
	ctx context.Context, db DB, index string, queries []*Query, out io.Writer, m *Measurements) error {

	size, err := self.props.GetInt64(PropertyLatencySearchSize, PropertyLatencySearchSizeDefault)
	if err != nil {
		return err
	}
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := self.clock.Now()
		hits, err := db.Search(ctx, index, q, int(size))
		if err != nil {
			return errors.Wrapf(err, "search %s", q)
		}
		count := DrainHits(hits)
		micros := NanosecondToMicrosecond(self.clock.Now().Sub(start).Nanoseconds())
		m.Measure(OperationSearch.String(), micros)
		if _, err := fmt.Fprintf(out, "%d\t%d\n", count, micros); err != nil {
			return err
		}
	}
	return nil
}

func (self *LatencySampler) sampleGet(ctx context.Context, db DB, index string, out io.Writer, m *Measurements) error {
	maxLength, err := self.props.GetInt64(PropertyMaxSequenceLength, PropertyMaxSequenceLengthDefault)
	if err != nil {
		return err
	}
	seed, err := self.props.GetInt64(PropertySeed, PropertySeedDefault)
	if err != nil {
		return err
	}
	docType := self.props.GetDefault(PropertyDocType, PropertyDocTypeDefault)
	recordCount, err := db.Count(ctx, index)
	if err != nil {
		return errors.Wrap(err, "fail to count records")
	}
	if recordCount <= 0 {
		return NewConfigurationError("latency mode get requires a positive record count, got %d", recordCount)
	}
	ids := g.SampleRange(g.NewRandom(seed), recordCount, capLength(recordCount, maxLength))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := self.clock.Now()
		doc, err := db.Get(ctx, index, docType, strconv.FormatInt(id, 10))
		if err != nil {
			return errors.Wrapf(err, "get %d", id)
		}
		micros := NanosecondToMicrosecond(self.clock.Now().Sub(start).Nanoseconds())
		m.Measure(OperationLookup.String(), micros)
		if _, err := fmt.Fprintf(out, "%d\t%d\t%d\n", id, len(doc), micros); err != nil {
			return err
		}
	}
	return nil
}
