package esbench

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ResultSink receives one result per successful worker. It is the only
// state shared between workers, so implementations must be safe for
// concurrent use.
type ResultSink interface {
	Write(result *WorkerResult) error
	Close() error
}

// FormatResult renders a result as a `workerId\tthroughput` line.
func FormatResult(result *WorkerResult) string {
	return fmt.Sprintf("%d\t%.2f\n", result.WorkerID, result.Throughput)
}

// FileResultSink appends result lines to a file. The file is never
// truncated, so results of successive runs accumulate.
type FileResultSink struct {
	lock *sync.Mutex
	file *os.File
}

func NewFileResultSink(filename string) (*FileResultSink, error) {
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileResultSink{
		lock: &sync.Mutex{},
		file: f,
	}, nil
}

func (self *FileResultSink) Write(result *WorkerResult) error {
	line := FormatResult(result)
	self.lock.Lock()
	defer self.lock.Unlock()
	_, err := self.file.WriteString(line)
	return err
}

func (self *FileResultSink) Close() error {
	return self.file.Close()
}

// MemoryResultSink keeps the results in memory.
type MemoryResultSink struct {
	lock    *sync.Mutex
	results []WorkerResult
}

func NewMemoryResultSink() *MemoryResultSink {
	return &MemoryResultSink{
		lock: &sync.Mutex{},
	}
}

func (self *MemoryResultSink) Write(result *WorkerResult) error {
	self.lock.Lock()
	defer self.lock.Unlock()
	self.results = append(self.results, *result)
	return nil
}

func (self *MemoryResultSink) Close() error {
	return nil
}

// Results returns a copy of the results written so far, in arrival order.
func (self *MemoryResultSink) Results() []WorkerResult {
	self.lock.Lock()
	defer self.lock.Unlock()
	ret := make([]WorkerResult, len(self.results))
	copy(ret, self.results)
	return ret
}

// Lines renders the results the way FileResultSink writes them.
func (self *MemoryResultSink) Lines() []string {
	results := self.Results()
	ret := make([]string, 0, len(results))
	for i := range results {
		ret = append(ret, FormatResult(&results[i]))
	}
	return ret
}

// ProgressLog records `<unix millis> <documents>` lines. It is shared by
// all the writers of a write benchmark.
type ProgressLog struct {
	lock  *sync.Mutex
	w     io.WriteCloser
	clock Clock
}

func NewProgressLog(w io.WriteCloser, clock Clock) *ProgressLog {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ProgressLog{
		lock:  &sync.Mutex{},
		w:     w,
		clock: clock,
	}
}

// NewFileProgressLog truncates the file, unlike the result sinks.
func NewFileProgressLog(filename string, clock Clock) (*ProgressLog, error) {
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	return NewProgressLog(f, clock), nil
}

func (self *ProgressLog) Log(documents int64) error {
	self.lock.Lock()
	defer self.lock.Unlock()
	_, err := fmt.Fprintf(self.w, "%d %d\n", self.clock.Now().UnixMilli(), documents)
	return err
}

func (self *ProgressLog) Close() error {
	return self.w.Close()
}
