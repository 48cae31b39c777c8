package metrics

import (
	"net/http"

	"github.com/berfenger/growatt2mqtt/internal/core/domain"
	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a Prometheus registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// InverterMetrics implements growatt_rs232.Instrument and mirrors sensor events as gauges.
type InverterMetrics struct {
	BytesReceived  prometheus.Counter
	BytesDiscarded prometheus.Counter
	ReadErrors     prometheus.Counter
	Frames         *prometheus.CounterVec // labels: result=completed|published|throttled
	LinkInit       *prometheus.CounterVec // labels: result=present|absent
	Online         prometheus.Gauge
	Reading        *prometheus.GaugeVec // labels: channel
}

func NewInverterMetrics(reg prometheus.Registerer) *InverterMetrics {
	m := &InverterMetrics{
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growatt_bytes_received_total",
			Help: "Bytes read from the inverter link.",
		}),
		BytesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growatt_bytes_discarded_total",
			Help: "Bytes dropped while waiting for a start marker.",
		}),
		ReadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growatt_read_errors_total",
			Help: "Failed single-byte reads.",
		}),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growatt_frames_total",
			Help: "Data-frames assembled, by outcome.",
		}, []string{"result"}),
		LinkInit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growatt_link_init_total",
			Help: "Init sequences sent, by detected presence.",
		}, []string{"result"}),
		Online: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "growatt_inverter_online",
			Help: "1 while bytes arrive within the receive timeout.",
		}),
		Reading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "growatt_reading",
			Help: "Last published value per channel.",
		}, []string{"channel"}),
	}
	reg.MustRegister(m.BytesReceived, m.BytesDiscarded, m.ReadErrors, m.Frames, m.LinkInit, m.Online, m.Reading)
	return m
}

func (m *InverterMetrics) ByteReceived() {
	m.BytesReceived.Inc()
}

func (m *InverterMetrics) ByteDiscarded() {
	m.BytesDiscarded.Inc()
}

func (m *InverterMetrics) ReadFailed() {
	m.ReadErrors.Inc()
}

func (m *InverterMetrics) FrameCompleted() {
	m.Frames.WithLabelValues("completed").Inc()
}

func (m *InverterMetrics) FramePublished() {
	m.Frames.WithLabelValues("published").Inc()
}

func (m *InverterMetrics) FrameThrottled() {
	m.Frames.WithLabelValues("throttled").Inc()
}

func (m *InverterMetrics) LinkInitiated(present bool) {
	if present {
		m.LinkInit.WithLabelValues("present").Inc()
	} else {
		m.LinkInit.WithLabelValues("absent").Inc()
	}
}

func (m *InverterMetrics) Subscribe(eventStream *eventstream.EventStream) *eventstream.Subscription {
	return eventStream.Subscribe(m.Handle)
}

func (m *InverterMetrics) Handle(evt any) {
	switch msg := evt.(type) {
	case domain.FloatSensorUpdateEvent:
		if _, ok := msg.Binding(); ok {
			m.Reading.WithLabelValues(msg.Id).Set(msg.Value)
		}
	case domain.BinarySensorUpdateEvent:
		if msg.IsInverterOnline() {
			if msg.Value {
				m.Online.Set(1)
			} else {
				m.Online.Set(0)
			}
		}
	}
}

// ensure interface compliance
var _ growatt_rs232.Instrument = (*InverterMetrics)(nil)
