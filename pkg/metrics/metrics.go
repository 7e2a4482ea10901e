package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telematics_http_requests_total", Help: "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "telematics_http_request_duration_seconds",
		Help:    "HTTP request latency by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
	HTTPInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "telematics_http_requests_inflight", Help: "HTTP requests currently being served.",
	})

	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telematics_registrations_total", Help: "Registration attempts by outcome.",
	}, []string{"result"})
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telematics_logins_total", Help: "Login attempts by outcome.",
	}, []string{"result"})
	PlanSelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telematics_plan_selections_total", Help: "Successful plan selections by plan.",
	}, []string{"plan"})

	PipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "telematics_pipeline_stage_duration_seconds",
		Help:    "Duration of batch pipeline stages.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"stage"})
	PipelineStageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telematics_pipeline_stage_errors_total", Help: "Failed batch pipeline stages.",
	}, []string{"stage"})
)

// Outcome labels a result counter from an error.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
