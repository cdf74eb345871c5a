// Package metrics collects and exposes Prometheus metrics for the intake bot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the intake pipeline and transport.
type Recorder interface {
	RecordEvent(kind string)
	RecordRejection(field string)
	RecordCancel()
	RecordSubmission()
	RecordPersistFailure()
	RecordNotification(result string)
	RecordRateLimited()
	RecordSendFailure()
}

// Notification results.
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationDropped = "dropped"
)

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	events        *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	cancels       prometheus.Counter
	submissions   prometheus.Counter
	persistFail   prometheus.Counter
	notifications *prometheus.CounterVec
	rateLimited   prometheus.Counter
	sendFail      prometheus.Counter
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_events_total",
			Help: "Inbound events handled, by kind.",
		}, []string{"kind"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_rejections_total",
			Help: "Answers rejected by validation, by field.",
		}, []string{"field"}),
		cancels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_cancellations_total",
			Help: "Intakes cancelled by the user.",
		}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_submissions_total",
			Help: "Applications persisted.",
		}),
		persistFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_persist_failures_total",
			Help: "Completed intakes that could not be persisted after retries.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_notifications_total",
			Help: "Operator notifications, by result.",
		}, []string{"result"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_rate_limited_total",
			Help: "Inbound updates dropped by the per-user flood limiter.",
		}),
		sendFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_reply_send_failures_total",
			Help: "Replies that could not be delivered to the user.",
		}),
	}

	reg.MustRegister(
		c.events,
		c.rejections,
		c.cancels,
		c.submissions,
		c.persistFail,
		c.notifications,
		c.rateLimited,
		c.sendFail,
	)

	return c
}

// RegisterActiveSessions exposes the in-progress session count as a gauge.
func RegisterActiveSessions(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "intake_active_sessions",
		Help: "Intakes currently in progress.",
	}, func() float64 {
		return float64(count())
	}))
}

// RecordEvent counts an inbound event.
func (c *Collector) RecordEvent(kind string) {
	c.events.WithLabelValues(kind).Inc()
}

// RecordRejection counts a validation rejection.
func (c *Collector) RecordRejection(field string) {
	c.rejections.WithLabelValues(field).Inc()
}

// RecordCancel counts a cancelled intake.
func (c *Collector) RecordCancel() {
	c.cancels.Inc()
}

// RecordSubmission counts a persisted application.
func (c *Collector) RecordSubmission() {
	c.submissions.Inc()
}

// RecordPersistFailure counts an application lost to persistence errors.
func (c *Collector) RecordPersistFailure() {
	c.persistFail.Inc()
}

// RecordNotification counts an operator notification outcome.
func (c *Collector) RecordNotification(result string) {
	c.notifications.WithLabelValues(result).Inc()
}

// RecordRateLimited counts an update dropped by the flood limiter.
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
}

// RecordSendFailure counts an undelivered reply.
func (c *Collector) RecordSendFailure() {
	c.sendFail.Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards all metrics.
type Nop struct{}

func (Nop) RecordEvent(string)        {}
func (Nop) RecordRejection(string)    {}
func (Nop) RecordCancel()             {}
func (Nop) RecordSubmission()         {}
func (Nop) RecordPersistFailure()     {}
func (Nop) RecordNotification(string) {}
func (Nop) RecordRateLimited()        {}
func (Nop) RecordSendFailure()        {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
