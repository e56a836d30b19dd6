package metrics

import "github.com/prometheus/client_golang/prometheus"

// SettlementMetrics counts the financial side effects of the settlement pipeline.
type SettlementMetrics struct {
	payoutsCreated      *prometheus.CounterVec
	itemsSettled        prometheus.Counter
	refundAccumulations *prometheus.CounterVec
	expiryCancellations prometheus.Counter
	warningsSent        *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement counters on reg. A nil registerer yields a
// collector whose methods are no-ops.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	m := &SettlementMetrics{
		payoutsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_payouts_created_total",
			Help: "Vendor payout batches created, by outcome.",
		}, []string{"outcome"}),
		itemsSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_items_settled_total",
			Help: "Completed line items marked as payout processed.",
		}),
		refundAccumulations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_refund_accumulations_total",
			Help: "Refund aggregate mutations, by kind.",
		}, []string{"kind"}),
		expiryCancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_expiry_cancellations_total",
			Help: "Line items cancelled by the expiry sweep.",
		}),
		warningsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_expiry_warnings_total",
			Help: "Expiry warnings requested, by band.",
		}, []string{"band"}),
	}
	reg.MustRegister(m.payoutsCreated, m.itemsSettled, m.refundAccumulations, m.expiryCancellations, m.warningsSent)
	return m
}

// PayoutCreated records one payout row and the number of items it settled.
func (m *SettlementMetrics) PayoutCreated(items int) {
	if m == nil || m.payoutsCreated == nil {
		return
	}
	m.payoutsCreated.WithLabelValues("created").Inc()
	m.itemsSettled.Add(float64(items))
}

// PayoutSkipped records a vendor with nothing to settle.
func (m *SettlementMetrics) PayoutSkipped() {
	if m == nil || m.payoutsCreated == nil {
		return
	}
	m.payoutsCreated.WithLabelValues("skipped").Inc()
}

// PayoutFailed records a vendor whose batch rolled back.
func (m *SettlementMetrics) PayoutFailed() {
	if m == nil || m.payoutsCreated == nil {
		return
	}
	m.payoutsCreated.WithLabelValues("failed").Inc()
}

// RefundAccumulated records a refund mutation; kind is "created", "incremented" or "recomputed".
func (m *SettlementMetrics) RefundAccumulated(kind string) {
	if m == nil || m.refundAccumulations == nil {
		return
	}
	m.refundAccumulations.WithLabelValues(normalizeLabel(kind)).Inc()
}

// ExpiryCancelled records one line item cancelled by the sweep.
func (m *SettlementMetrics) ExpiryCancelled() {
	if m == nil || m.expiryCancellations == nil {
		return
	}
	m.expiryCancellations.Inc()
}

// WarningSent records one expiry warning for the named band.
func (m *SettlementMetrics) WarningSent(band string) {
	if m == nil || m.warningsSent == nil {
		return
	}
	m.warningsSent.WithLabelValues(normalizeLabel(band)).Inc()
}
