package metrics

import (
	"bytes"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// SupervisorMetrics tracks the supervisor and its children
type SupervisorMetrics struct {
	Restarts  *prometheus.CounterVec
	ProcessUp *prometheus.GaugeVec
	startTime time.Time
	uptime    prometheus.GaugeFunc
}

// NewSupervisorMetrics creates and registers supervisor metrics
func NewSupervisorMetrics(reg prometheus.Registerer) *SupervisorMetrics {
	m := &SupervisorMetrics{
		Restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lkagent_supervisor_restarts_total",
			Help: "Number of times a supervised process was relaunched",
		}, []string{"process"}),
		ProcessUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lkagent_supervisor_process_up",
			Help: "Whether the supervised process was alive at the last probe (1) or not (0)",
		}, []string{"process"}),
		startTime: time.Now(),
	}

	m.uptime = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "lkagent_supervisor_uptime_seconds",
		Help: "Seconds since the supervisor started",
	}, func() float64 {
		return time.Since(m.startTime).Seconds()
	})

	reg.MustRegister(m.Restarts, m.ProcessUp, m.uptime)

	return m
}

// Handler serves Prometheus text exposition for the given gatherer
func Handler(g prometheus.Gatherer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mfs, err := g.Gather()
		if err != nil {
			http.Error(w, "Error gathering metrics: "+err.Error(), http.StatusInternalServerError)
			return
		}

		var buf bytes.Buffer
		enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
		for _, mf := range mfs {
			if err := enc.Encode(mf); err != nil {
				http.Error(w, "Error encoding metrics: "+err.Error(), http.StatusInternalServerError)
				return
			}
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Write(buf.Bytes())
	})
}
