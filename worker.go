package esbench

import (
	"context"
	"time"

	g "github.com/hhkbp2/esbench/generator"
	"github.com/pkg/errors"
)

type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseWarmup
	PhaseMeasure
	PhaseCooldown
	PhaseDone
)

func (self Phase) String() string {
	switch self {
	case PhaseIdle:
		return "idle"
	case PhaseWarmup:
		return "warmup"
	case PhaseMeasure:
		return "measure"
	case PhaseCooldown:
		return "cooldown"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

type PhaseDurations struct {
	Warmup   time.Duration
	Measure  time.Duration
	Cooldown time.Duration
}

// Clock is the time source of the phase engine.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// WorkerResult is the outcome of one worker's measure phase.
type WorkerResult struct {
	WorkerID int
	// Operations completed during the measure phase.
	Count int64
	// Wall time of the measure phase, from phase entry to phase exit.
	Elapsed time.Duration
	// Count per second of Elapsed.
	Throughput float64
}

// Throughput returns count / elapsed in operations per second, or 0 when no
// time elapsed.
func Throughput(count int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(count) / elapsed.Seconds()
}

// Worker runs the warmup, measure and cooldown phases for one sequence
// against one DB. Everything it holds is owned by it alone.
type Worker struct {
	id           int
	workload     Workload
	db           DB
	target       *Target
	sequence     *Sequence
	cursor       *g.CyclicGenerator
	state        *RoutineState
	durations    PhaseDurations
	clock        Clock
	measurements *Measurements
	metrics      *Metrics
	phase        Phase
}

func NewWorker(
	id int,
	workload Workload,
	db DB,
	target *Target,
	sequence *Sequence,
	recordCount int64,
	durations PhaseDurations,
	clock Clock) *Worker {

	if clock == nil {
		clock = SystemClock{}
	}
	return &Worker{
		id:        id,
		workload:  workload,
		db:        db,
		target:    target,
		sequence:  sequence,
		cursor:    g.NewCyclicGenerator(sequence.Len()),
		state:     NewRoutineState(id, recordCount),
		durations: durations,
		clock:     clock,
		phase:     PhaseIdle,
	}
}

// SetMeasurements makes the worker record measure phase latencies.
func (self *Worker) SetMeasurements(m *Measurements) {
	self.measurements = m
}

func (self *Worker) SetMetrics(m *Metrics) {
	self.metrics = m
}

func (self *Worker) ID() int {
	return self.id
}

func (self *Worker) Phase() Phase {
	return self.phase
}

// Run executes all three phases. Any error aborts the worker immediately
// and no result is produced.
func (self *Worker) Run(ctx context.Context) (*WorkerResult, error) {
	Infof("[worker %d] benchmarking %s over %d operations...", self.id, self.workload.Name(), self.cursor.Length())
	if _, _, err := self.runPhase(ctx, PhaseWarmup, self.durations.Warmup); err != nil {
		return nil, err
	}
	count, elapsed, err := self.runPhase(ctx, PhaseMeasure, self.durations.Measure)
	if err != nil {
		return nil, err
	}
	result := &WorkerResult{
		WorkerID:   self.id,
		Count:      count,
		Elapsed:    elapsed,
		Throughput: Throughput(count, elapsed),
	}
	if _, _, err := self.runPhase(ctx, PhaseCooldown, self.durations.Cooldown); err != nil {
		return nil, err
	}
	self.phase = PhaseDone
	Infof("[worker %d] benchmark complete.", self.id)
	return result, nil
}

// runPhase issues operations until the phase duration has elapsed. The
// clock is only checked between operations, so an in-flight call always
// completes. Only the measure phase counts operations.
func (self *Worker) runPhase(ctx context.Context, phase Phase, d time.Duration) (int64, time.Duration, error) {
	self.phase = phase
	Infof("[worker %d] %s phase...", self.id, phase)
	var count int64
	start := self.clock.Now()
	for self.clock.Now().Sub(start) < d {
		if err := ctx.Err(); err != nil {
			return count, 0, errors.Wrapf(err, "worker %d interrupted in %s phase", self.id, phase)
		}
		op := self.sequence.At(self.cursor.NextInt())
		opStart := self.clock.Now()
		if err := self.workload.DoOperation(ctx, self.db, self.target, op, self.state); err != nil {
			return count, 0, errors.Wrapf(err, "worker %d %s phase, %s", self.id, phase, op.Type)
		}
		opElapsed := self.clock.Now().Sub(opStart)
		self.metrics.ObserveOperation(self.workload.Name(), phase, op.Type, opElapsed)
		if phase == PhaseMeasure {
			count++
			if self.measurements != nil {
				self.measurements.Measure(op.Type.String(), NanosecondToMicrosecond(opElapsed.Nanoseconds()))
			}
		}
	}
	return count, self.clock.Now().Sub(start), nil
}
