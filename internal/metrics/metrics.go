package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sudastock"

// Metrics содержит коллекторы сервиса.
type Metrics struct {
	AttemptFailuresTotal *prometheus.CounterVec
	AttemptDeniedTotal   *prometheus.CounterVec
	AttemptsSweptTotal   prometheus.Counter
	CodesIssued          *prometheus.CounterVec
	CodesRedeemed        *prometheus.CounterVec
	AlertsTriggered      prometheus.Counter
	Requests             *prometheus.CounterVec
	Duration             *prometheus.HistogramVec
}

// New создаёт и регистрирует коллекторы. При nil используется DefaultRegisterer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		AttemptFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "attempts", Name: "failures_total",
			Help: "Failed attempts recorded by the attempt tracker, by policy.",
		}, []string{"policy"}),
		AttemptDeniedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "attempts", Name: "denied_total",
			Help: "Requests rejected because the identifier is locked, by policy.",
		}, []string{"policy"}),
		AttemptsSweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "attempts", Name: "swept_total",
			Help: "Stale attempt records removed by the background sweep.",
		}),
		CodesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "codes", Name: "issued_total",
			Help: "One-time codes issued, by purpose.",
		}, []string{"purpose"}),
		CodesRedeemed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "codes", Name: "redeemed_total",
			Help: "One-time codes redeemed, by purpose.",
		}, []string{"purpose"}),
		AlertsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "alerts", Name: "triggered_total",
			Help: "Price alerts that met their condition.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	collectors := []prometheus.Collector{
		m.AttemptFailuresTotal, m.AttemptDeniedTotal, m.AttemptsSweptTotal,
		m.CodesIssued, m.CodesRedeemed, m.AlertsTriggered,
		m.Requests, m.Duration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register collector: %w", err)
		}
	}

	return m, nil
}

// AttemptFailed реализует ratelimit.Observer.
func (m *Metrics) AttemptFailed(policy string) {
	m.AttemptFailuresTotal.WithLabelValues(policy).Inc()
}

// AttemptDenied реализует ratelimit.Observer.
func (m *Metrics) AttemptDenied(policy string) {
	m.AttemptDeniedTotal.WithLabelValues(policy).Inc()
}

// RecordsSwept реализует ratelimit.Observer.
func (m *Metrics) RecordsSwept(n int) {
	m.AttemptsSweptTotal.Add(float64(n))
}

// CodeIssued учитывает выдачу кода.
func (m *Metrics) CodeIssued(purpose string) {
	m.CodesIssued.WithLabelValues(purpose).Inc()
}

// CodeRedeemed учитывает погашение кода.
func (m *Metrics) CodeRedeemed(purpose string) {
	m.CodesRedeemed.WithLabelValues(purpose).Inc()
}

// AlertTriggered учитывает сработавший алерт.
func (m *Metrics) AlertTriggered() {
	m.AlertsTriggered.Inc()
}

// Middleware считает запросы и их длительность.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		m.Requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.Duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
