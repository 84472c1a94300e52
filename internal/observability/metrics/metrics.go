package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the dialogue engine and
// the booking path. A nil *SchedulingMetrics is valid and records nothing.
type SchedulingMetrics struct {
	messagesTotal  *prometheus.CounterVec
	faultsTotal    prometheus.Counter
	intentsTotal   *prometheus.CounterVec
	slotGenLatency prometheus.Histogram
	slotsReturned  prometheus.Histogram
	bookingsTotal  *prometheus.CounterVec
	reapedTotal    *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Chat messages processed, by state handled and response kind",
		}, []string{"state", "kind"}),
		faultsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "chat",
			Name:      "faults_total",
			Help:      "Messages that ended in a conversation reset",
		}),
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "intent",
			Name:      "decisions_total",
			Help:      "Intent decisions by label and deciding layer",
		}, []string{"label", "source"}),
		slotGenLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "slots",
			Name:      "generation_seconds",
			Help:      "Latency of slot generation",
			Buckets:   prometheus.DefBuckets,
		}),
		slotsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "slots",
			Name:      "returned",
			Help:      "Number of slots returned per generation",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "outcomes_total",
			Help:      "Booking attempts by operation and outcome",
		}, []string{"operation", "outcome"}),
		reapedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "reaper",
			Name:      "removed_total",
			Help:      "Records removed or expired by the reaper",
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messagesTotal, m.faultsTotal, m.intentsTotal, m.slotGenLatency,
		m.slotsReturned, m.bookingsTotal, m.reapedTotal)
	return m
}

func (m *SchedulingMetrics) ObserveMessage(state, kind string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(state, kind).Inc()
}

func (m *SchedulingMetrics) ObserveFault() {
	if m == nil {
		return
	}
	m.faultsTotal.Inc()
}

func (m *SchedulingMetrics) ObserveIntent(label, source string) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(label, source).Inc()
}

func (m *SchedulingMetrics) ObserveSlotGeneration(seconds float64, returned int) {
	if m == nil {
		return
	}
	m.slotGenLatency.Observe(seconds)
	m.slotsReturned.Observe(float64(returned))
}

func (m *SchedulingMetrics) ObserveBooking(operation, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveReaped(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reapedTotal.WithLabelValues(kind).Add(float64(n))
}
