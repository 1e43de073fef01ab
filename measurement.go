package esbench

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// MeasurementExporter writes the run summary: the OVERALL or WRITE
// throughput lines followed by the latency figures of every operation
// (GET, SEARCH, APPEND).
type MeasurementExporter interface {
	// v is an int64 count or a float64 rate or mean.
	Write(metric string, measurement string, v interface{}) error
	io.Closer
}

type MakeMeasurementExporterFunc func(w io.WriteCloser) MeasurementExporter

var (
	MeasurementExporters = map[string]MakeMeasurementExporterFunc{
		"TextMeasurementExporter": func(w io.WriteCloser) MeasurementExporter {
			return NewTextMeasurementExporter(w)
		},
		"JSONMeasurementExporter": func(w io.WriteCloser) MeasurementExporter {
			return NewJSONMeasurementExporter(w)
		},
		"JSONArrayMeasurementExporter": func(w io.WriteCloser) MeasurementExporter {
			return NewJSONArrayMeasurementExporter(w)
		},
	}
)

func NewMeasurementExporter(className string, w io.WriteCloser) (MeasurementExporter, error) {
	f, ok := MeasurementExporters[className]
	if !ok {
		return nil, NewConfigurationError("unsupported measurement exporter: %s", className)
	}
	return f(w), nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

// OpenMeasurementExporter creates the exporter configured by props, writing
// to the export file if one is set and to OutputDest otherwise.
func OpenMeasurementExporter(props Properties) (MeasurementExporter, error) {
	var w io.WriteCloser = nopWriteCloser{OutputDest}
	if filename := props.Get(PropertyExportFile); filename != "" {
		f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return nil, err
		}
		w = f
	}
	exporter, err := NewMeasurementExporter(props.GetDefault(PropertyExporter, PropertyExporterDefault), w)
	if err != nil {
		w.Close()
		return nil, err
	}
	return exporter, nil
}

// bufferedExporter buffers the summary and flushes it on Close.
type bufferedExporter struct {
	w   io.WriteCloser
	buf *bufio.Writer
}

func newBufferedExporter(w io.WriteCloser) bufferedExporter {
	return bufferedExporter{w: w, buf: bufio.NewWriter(w)}
}

// closeWith writes tail, flushes and closes the underlying writer. The
// writer is closed even when the flush fails.
func (self bufferedExporter) closeWith(tail string) error {
	_, err := self.buf.WriteString(tail)
	if err == nil {
		err = self.buf.Flush()
	}
	if cerr := self.w.Close(); err == nil {
		err = cerr
	}
	return err
}

// TextMeasurementExporter writes `[SEARCH], 99thPercentileLatency(us), 1520`
// lines.
type TextMeasurementExporter struct {
	bufferedExporter
}

func NewTextMeasurementExporter(w io.WriteCloser) *TextMeasurementExporter {
	return &TextMeasurementExporter{newBufferedExporter(w)}
}

func (self *TextMeasurementExporter) Write(metric string, measurement string, v interface{}) error {
	_, err := fmt.Fprintf(self.buf, "[%s], %s, %v\n", metric, measurement, v)
	return err
}

func (self *TextMeasurementExporter) Close() error {
	return self.closeWith("")
}

type jsonMeasurement struct {
	Metric      string      `json:"metric"`
	Measurement string      `json:"measurement"`
	Value       interface{} `json:"value"`
}

func marshalMeasurement(metric string, measurement string, v interface{}) ([]byte, error) {
	return json.Marshal(&jsonMeasurement{
		Metric:      metric,
		Measurement: measurement,
		Value:       v,
	})
}

// JSONMeasurementExporter writes one
// `{"metric":"GET","measurement":"Operations","value":42}` object per line,
// ready for line based log shippers.
type JSONMeasurementExporter struct {
	bufferedExporter
}

func NewJSONMeasurementExporter(w io.WriteCloser) *JSONMeasurementExporter {
	return &JSONMeasurementExporter{newBufferedExporter(w)}
}

func (self *JSONMeasurementExporter) Write(metric string, measurement string, v interface{}) error {
	b, err := marshalMeasurement(metric, measurement, v)
	if err != nil {
		return err
	}
	if _, err = self.buf.Write(b); err != nil {
		return err
	}
	return self.buf.WriteByte('\n')
}

func (self *JSONMeasurementExporter) Close() error {
	return self.closeWith("")
}

// JSONArrayMeasurementExporter writes the whole summary as one JSON array of
// the objects JSONMeasurementExporter writes.
type JSONArrayMeasurementExporter struct {
	bufferedExporter
	separator string
}

func NewJSONArrayMeasurementExporter(w io.WriteCloser) *JSONArrayMeasurementExporter {
	object := &JSONArrayMeasurementExporter{bufferedExporter: newBufferedExporter(w)}
	object.buf.WriteString("[")
	return object
}

func (self *JSONArrayMeasurementExporter) Write(metric string, measurement string, v interface{}) error {
	b, err := marshalMeasurement(metric, measurement, v)
	if err != nil {
		return err
	}
	if _, err = self.buf.WriteString(self.separator); err != nil {
		return err
	}
	self.separator = ","
	_, err = self.buf.Write(b)
	return err
}

func (self *JSONArrayMeasurementExporter) Close() error {
	return self.closeWith("]")
}

type histogramSettings struct {
	max         int64
	sig         int
	percentiles []int64
}

// Helper function to parse the given percentile value string.
func parsePercentileValues(prop string) ([]int64, error) {
	parts := strings.Split(prop, ",")
	ret := make([]int64, 0, len(parts))
	for _, p := range parts {
		i, err := strconv.ParseInt(strings.TrimSpace(p), 0, 64)
		if err != nil || i <= 0 || i >= 100 {
			return nil, NewConfigurationError("invalid percentile %q in %s", p, PropertyPercentiles)
		}
		ret = append(ret, i)
	}
	return ret, nil
}

func newHistogramSettings(props Properties) (*histogramSettings, error) {
	percentiles, err := parsePercentileValues(props.GetDefault(PropertyPercentiles, PropertyPercentilesDefault))
	if err != nil {
		return nil, err
	}
	max, err := props.GetInt64(PropertyHdrHistogramMax, PropertyHdrHistogramMaxDefault)
	if err != nil {
		return nil, err
	}
	sig, err := props.GetInt64(PropertyHdrHistogramSig, PropertyHdrHistogramSigDefault)
	if err != nil {
		return nil, err
	}
	if max < 2 || sig < 1 || sig > 5 {
		return nil, NewConfigurationError("invalid hdrhistogram settings max=%d sig=%d", max, sig)
	}
	return &histogramSettings{
		max:         max,
		sig:         int(sig),
		percentiles: percentiles,
	}, nil
}

// Take measurements and maintain a HdrHistogram of a given metric, such as
// GET latency. It is owned by a single goroutine.
type OneMeasurementHdrHistogram struct {
	name        string
	histogram   *hdrhistogram.Histogram
	max         int64
	percentiles []int64
}

func newOneMeasurementHdrHistogram(name string, settings *histogramSettings) *OneMeasurementHdrHistogram {
	return &OneMeasurementHdrHistogram{
		name:        name,
		histogram:   hdrhistogram.New(1, settings.max, settings.sig),
		max:         settings.max,
		percentiles: settings.percentiles,
	}
}

func (self *OneMeasurementHdrHistogram) GetName() string {
	return self.name
}

// Latency is reported in micros. Values out of range are clamped.
func (self *OneMeasurementHdrHistogram) Measure(latency int64) {
	if latency < 1 {
		latency = 1
	} else if latency > self.max {
		latency = self.max
	}
	self.histogram.RecordValue(latency)
}

func (self *OneMeasurementHdrHistogram) Merge(other *OneMeasurementHdrHistogram) {
	self.histogram.Merge(other.histogram)
}

func (self *OneMeasurementHdrHistogram) Count() int64 {
	return self.histogram.TotalCount()
}

func (self *OneMeasurementHdrHistogram) GetSummary() string {
	format := "[%s: Count=%d, Max=%d, Min=%d, Avg=%.2f, 90=%d, 99=%d, 99.9=%d, 99.99=%d]"
	return fmt.Sprintf(format,
		self.GetName(),
		self.histogram.TotalCount(),
		self.histogram.Max(),
		self.histogram.Min(),
		self.histogram.Mean(),
		self.histogram.ValueAtQuantile(90),
		self.histogram.ValueAtQuantile(99),
		self.histogram.ValueAtQuantile(99.9),
		self.histogram.ValueAtQuantile(99.99))
}

var (
	Suffixes = []string{"th", "st", "nd", "rd", "th", "th", "th", "th", "th", "th"}
)

func ordinal(p int64) string {
	switch p % 100 {
	case 11, 12, 13:
		return fmt.Sprintf("%dth", p)
	default:
		return fmt.Sprintf("%d%s", p, Suffixes[p%10])
	}
}

type exportedValue struct {
	measurement string
	v           interface{}
}

func (self *OneMeasurementHdrHistogram) ExportMeasurements(exporter MeasurementExporter) error {
	values := []exportedValue{
		{"Operations", self.histogram.TotalCount()},
		{"AverageLatency(us)", self.histogram.Mean()},
		{"MinLatency(us)", self.histogram.Min()},
		{"MaxLatency(us)", self.histogram.Max()},
	}
	for _, p := range self.percentiles {
		values = append(values, exportedValue{ordinal(p) + "PercentileLatency(us)", self.histogram.ValueAtQuantile(float64(p))})
	}
	for _, e := range values {
		if err := exporter.Write(self.GetName(), e.measurement, e.v); err != nil {
			return err
		}
	}
	return nil
}

// Measurements collects latency measurements per operation. Each worker
// owns one instance; the coordinator merges them once all workers are done.
type Measurements struct {
	settings           *histogramSettings
	opToMeasurementMap map[string]*OneMeasurementHdrHistogram
}

func NewMeasurements(props Properties) (*Measurements, error) {
	settings, err := newHistogramSettings(props)
	if err != nil {
		return nil, err
	}
	return &Measurements{
		settings:           settings,
		opToMeasurementMap: make(map[string]*OneMeasurementHdrHistogram),
	}, nil
}

func (self *Measurements) getOpMeasurement(operation string) *OneMeasurementHdrHistogram {
	m, ok := self.opToMeasurementMap[operation]
	if !ok {
		m = newOneMeasurementHdrHistogram(operation, self.settings)
		self.opToMeasurementMap[operation] = m
	}
	return m
}

// Report a single value of a single metric. E.g. for get latency,
// operation="GET" and latency is the measured value in micros.
func (self *Measurements) Measure(operation string, latency int64) {
	self.getOpMeasurement(operation).Measure(latency)
}

func (self *Measurements) Merge(other *Measurements) {
	for _, op := range other.operations() {
		self.getOpMeasurement(op).Merge(other.opToMeasurementMap[op])
	}
}

// Count returns the number of values recorded for the operation.
func (self *Measurements) Count(operation string) int64 {
	m, ok := self.opToMeasurementMap[operation]
	if !ok {
		return 0
	}
	return m.Count()
}

func (self *Measurements) operations() []string {
	ops := make([]string, 0, len(self.opToMeasurementMap))
	for op := range self.opToMeasurementMap {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Return a one line summary of the measurements.
func (self *Measurements) GetSummary() string {
	parts := make([]string, 0, len(self.opToMeasurementMap))
	for _, op := range self.operations() {
		parts = append(parts, self.opToMeasurementMap[op].GetSummary())
	}
	return strings.Join(parts, " ")
}

func (self *Measurements) ExportMeasurements(exporter MeasurementExporter) error {
	for _, op := range self.operations() {
		if err := self.opToMeasurementMap[op].ExportMeasurements(exporter); err != nil {
			return err
		}
	}
	return nil
}
