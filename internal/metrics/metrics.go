// Package metrics holds the prometheus collectors of the chat service. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	roomsCreated    prometheus.Counter
	messagesStored  *prometheus.CounterVec
	duplicateSends  prometheus.Counter
	pushResults     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	liveClients     prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		roomsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "pairchat_rooms_created_total",
			Help: "Number of chat rooms created",
		}),
		messagesStored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pairchat_messages_stored_total",
			Help: "Number of messages stored, by content kind",
		}, []string{"kind"}),
		duplicateSends: factory.NewCounter(prometheus.CounterOpts{
			Name: "pairchat_message_resubmissions_total",
			Help: "Number of message sends answered from an earlier submission with the same client ID",
		}),
		pushResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pairchat_push_dispatch_total",
			Help: "Push notification dispatch outcomes",
		}, []string{"result"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pairchat_http_request_duration_seconds",
			Help:    "Time spent serving HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		liveClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pairchat_live_clients",
			Help: "Websocket clients currently connected",
		}),
	}
}

func (m *Metrics) RoomCreated() {
	if m == nil {
		return
	}
	m.roomsCreated.Inc()
}

func (m *Metrics) MessageStored(kind string) {
	if m == nil {
		return
	}
	m.messagesStored.WithLabelValues(kind).Inc()
}

func (m *Metrics) DuplicateSend() {
	if m == nil {
		return
	}
	m.duplicateSends.Inc()
}

func (m *Metrics) PushResult(result string) {
	if m == nil {
		return
	}
	m.pushResults.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, status).Observe(seconds)
}

func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.liveClients.Inc()
}

func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.liveClients.Dec()
}
