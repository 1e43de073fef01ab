package esbench

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus registry and the meters updated by workers.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry       *prometheus.Registry
	OperationTotal *prometheus.CounterVec
	Latency        *prometheus.HistogramVec
	ActiveWorkers  prometheus.Gauge
	WorkerFailures prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	opTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "esbench_operations_total",
		Help: "Total number of operations issued.",
	}, []string{"workload", "phase", "operation"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "esbench_operation_duration_seconds",
		Help:    "Duration of measure phase operations in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 18),
	}, []string{"workload", "operation"})

	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "esbench_active_workers",
		Help: "Number of workers currently running.",
	})

	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "esbench_worker_failures_total",
		Help: "Total number of workers aborted by a backend error.",
	})

	reg.MustRegister(opTotal, latency, active, failures)

	return &Metrics{
		Registry:       reg,
		OperationTotal: opTotal,
		Latency:        latency,
		ActiveWorkers:  active,
		WorkerFailures: failures,
	}
}

func (self *Metrics) ObserveOperation(workload string, phase Phase, op OperationType, elapsed time.Duration) {
	if self == nil {
		return
	}
	self.OperationTotal.WithLabelValues(workload, phase.String(), op.String()).Inc()
	if phase == PhaseMeasure {
		self.Latency.WithLabelValues(workload, op.String()).Observe(elapsed.Seconds())
	}
}

func (self *Metrics) WorkerStarted() {
	if self == nil {
		return
	}
	self.ActiveWorkers.Inc()
}

func (self *Metrics) WorkerFinished(err error) {
	if self == nil {
		return
	}
	self.ActiveWorkers.Dec()
	if err != nil {
		self.WorkerFailures.Inc()
	}
}

// MetricsServer serves /metrics while a run lasts.
type MetricsServer struct {
	srv  *http.Server
	addr net.Addr
	done chan struct{}
}

func (self *Metrics) Serve(addr string) (*MetricsServer, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(self.Registry, promhttp.HandlerOpts{}))
	server := &MetricsServer{
		srv:  &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		addr: l.Addr(),
		done: make(chan struct{}),
	}
	go func() {
		defer close(server.done)
		Infof("metrics server listening on %s", l.Addr())
		if err := server.srv.Serve(l); err != nil && err != http.ErrServerClosed {
			Errorf("metrics server error: %s", err)
		}
	}()
	return server, nil
}

func (self *MetricsServer) Addr() net.Addr {
	return self.addr
}

func (self *MetricsServer) Shutdown(ctx context.Context) error {
	err := self.srv.Shutdown(ctx)
	<-self.done
	return err
}
