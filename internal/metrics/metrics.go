package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sanitization-status-backend/internal/engine"
	"sanitization-status-backend/internal/scheduler"
)

const metricPrefix = "sanitization_"

// Source exposes the engine state sampled at scrape time.
type Source interface {
	Stations() []engine.Station
	DeliveryFailures() uint64
	Alerts() *engine.AlertGenerator
}

// Recorder counts engine activity. It implements engine.Listener and
// scheduler.ReportObserver.
type Recorder struct {
	registry prometheus.Registerer
	gatherer prometheus.Gatherer
	bindOnce sync.Once

	transitions   *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	sessions      *prometheus.CounterVec
	alertsRead    prometheus.Counter
	scanFindings  prometheus.Counter
	scanApplied   prometheus.Counter
	scanErrors    prometheus.Counter
	ingestResults *prometheus.CounterVec
}

// New creates a recorder registered on its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry creates a recorder registered on reg and served from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Recorder {
	r := &Recorder{
		registry: reg,
		gatherer: g,
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transitions_total",
				Help: "Committed station transitions by from, to and cause",
			},
			[]string{"from", "to", "cause"},
		),
		alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_total",
				Help: "Alerts raised by priority",
			},
			[]string{"priority"},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sessions_total",
				Help: "Finished detection sessions by result",
			},
			[]string{"result"},
		),
		alertsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "alerts_read_total",
			Help: "Alerts marked read",
		}),
		scanFindings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "scan_findings_total",
			Help: "Overdue findings reported by the schedule scan",
		}),
		scanApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "scan_applied_total",
			Help: "Overdue findings that changed a station",
		}),
		scanErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "scan_errors_total",
			Help: "Overdue findings that could not be applied",
		}),
		ingestResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_messages_total",
				Help: "Detection messages by result",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(
		r.transitions,
		r.alerts,
		r.sessions,
		r.alertsRead,
		r.scanFindings,
		r.scanApplied,
		r.scanErrors,
		r.ingestResults,
	)
	return r
}

// Bind registers gauges sampled from src on every scrape. Only the first call has effect.
func (r *Recorder) Bind(src Source) {
	r.bindOnce.Do(func() {
		for _, status := range engine.Statuses {
			status := status
			r.registry.MustRegister(prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name:        metricPrefix + "stations",
					Help:        "Stations by current status",
					ConstLabels: prometheus.Labels{"status": string(status)},
				},
				func() float64 {
					n := 0
					for _, s := range src.Stations() {
						if s.Status == status {
							n++
						}
					}
					return float64(n)
				},
			))
		}
		r.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: metricPrefix + "alerts_unread",
				Help: "Alerts not yet read",
			}, func() float64 { return float64(src.Alerts().UnreadCount()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: metricPrefix + "delivery_failures_total",
				Help: "Listener calls that failed after a transition committed",
			}, func() float64 { return float64(src.DeliveryFailures()) }),
		)
	})
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// TransitionCommitted counts a transition and whatever it produced.
func (r *Recorder) TransitionCommitted(c engine.Commit) error {
	t := c.Transition
	r.transitions.WithLabelValues(string(t.From), string(t.To), string(t.Cause)).Inc()
	if c.Alert != nil {
		r.alerts.WithLabelValues(string(c.Alert.Priority)).Inc()
	}
	if result := sessionResult(t.Cause); result != "" {
		r.sessions.WithLabelValues(result).Inc()
	}
	return nil
}

// AlertsRead counts alerts flipped to read.
func (r *Recorder) AlertsRead(ids []string) error {
	r.alertsRead.Add(float64(len(ids)))
	return nil
}

// ObserveScan counts one scheduler cycle.
func (r *Recorder) ObserveScan(rep scheduler.Report) {
	r.scanFindings.Add(float64(rep.Findings))
	r.scanApplied.Add(float64(rep.Applied))
	r.scanErrors.Add(float64(rep.Errors))
}

// ObserveIngest counts one detection message by result.
func (r *Recorder) ObserveIngest(result string) {
	r.ingestResults.WithLabelValues(result).Inc()
}

func sessionResult(cause engine.Cause) string {
	switch cause {
	case engine.CauseDetectionPassed:
		return "succeeded"
	case engine.CauseDetectionFailed:
		return "failed_coverage"
	case engine.CauseTimeout:
		return "failed_timeout"
	case engine.CauseOperatorFlag:
		return "failed_operator"
	case engine.CauseCancel:
		return "cancelled"
	}
	return ""
}
