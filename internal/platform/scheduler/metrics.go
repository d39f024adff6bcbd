package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultOK       = "ok"
	resultFailed   = "failed"
	resultCanceled = "canceled"
)

// Metrics exposes scheduler state to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	running prometheus.Gauge
	queued  prometheus.Gauge
	tasks   *prometheus.CounterVec
	wait    prometheus.Histogram
}

// NewMetrics creates the scheduler collectors and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wallet",
			Subsystem: "scheduler",
			Name:      "running_tasks",
			Help:      "Tasks admitted and not yet finished.",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wallet",
			Subsystem: "scheduler",
			Name:      "queued_tasks",
			Help:      "Tasks waiting for a free slot.",
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet",
			Subsystem: "scheduler",
			Name:      "tasks_total",
			Help:      "Finished tasks by result.",
		}, []string{"result"}),
		wait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wallet",
			Subsystem: "scheduler",
			Name:      "admission_wait_seconds",
			Help:      "Time from submission until a slot was granted.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.running, m.queued, m.tasks, m.wait} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) setState(running, queued int) {
	if m == nil {
		return
	}
	m.running.Set(float64(running))
	m.queued.Set(float64(queued))
}

func (m *Metrics) observeResult(result string) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(result).Inc()
}

func (m *Metrics) observeWait(d time.Duration) {
	if m == nil {
		return
	}
	m.wait.Observe(d.Seconds())
}
