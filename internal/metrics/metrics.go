package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kyc"

// Metrics собирает счетчики выдачи ссылок, колбэков и вебхуков.
// Методы безопасно вызывать на nil.
type Metrics struct {
	linksIssued      *prometheus.CounterVec
	linkFailures     *prometheus.CounterVec
	providerDuration prometheus.Histogram
	callbackOutcomes *prometheus.CounterVec
	webhooks         *prometheus.CounterVec
	requestCounter   *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		linksIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_issued_total",
			Help:      "Verification links created by the provider",
		}, []string{"link_type"}),
		linkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_failures_total",
			Help:      "Failed link creations by error kind",
		}, []string{"kind"}),
		providerDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Duration of link creation calls to the provider",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		callbackOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_outcomes_total",
			Help:      "Reconciled browser callbacks by outcome",
		}, []string{"outcome"}),
		webhooks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Received webhooks by handling result",
		}, []string{"result"}),
		requestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		}, []string{"method", "path", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "path"}),
	}
}

func (m *Metrics) LinkIssued(singleUse bool) {
	if m == nil {
		return
	}
	linkType := "multi_use"
	if singleUse {
		linkType = "single_use"
	}
	m.linksIssued.WithLabelValues(linkType).Inc()
}

func (m *Metrics) LinkFailed(kind string) {
	if m == nil {
		return
	}
	m.linkFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveProviderCall(d time.Duration) {
	if m == nil {
		return
	}
	m.providerDuration.Observe(d.Seconds())
}

func (m *Metrics) CallbackOutcome(outcome string) {
	if m == nil {
		return
	}
	m.callbackOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Webhook(result string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(result).Inc()
}

// Middleware считает запросы по шаблону маршрута, а не по фактическому пути.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		m.requestCounter.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
