package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts geofence tracking activity. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	invocations *prometheus.CounterVec
	commits     *prometheus.CounterVec
	prompts     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geofence_driver_invocations_total",
			Help: "Background task invocations by outcome.",
		}, []string{"outcome"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geofence_attendance_commits_total",
			Help: "Attendance upserts by whether the threshold was met.",
		}, []string{"counted"}),
		prompts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geofence_engagement_prompts_total",
			Help: "Foreground engagement prompts surfaced.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.invocations, m.commits, m.prompts)
	}
	return m
}

func (m *Metrics) Invocation(outcome string) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Commit(counted bool) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(strconv.FormatBool(counted)).Inc()
}

func (m *Metrics) Prompt() {
	if m == nil {
		return
	}
	m.prompts.Inc()
}
