package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tutoria", Name: "http_requests_total", Help: "Handled HTTP requests",
	}, []string{"method", "status"})
	AttendanceUpserts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tutoria", Name: "attendance_upserts_total", Help: "Attendance status upserts",
	})
	AssessmentUpserts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tutoria", Name: "assessment_upserts_total", Help: "Assessment result upserts",
	})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tutoria", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(Requests, AttendanceUpserts, AssessmentUpserts, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }
