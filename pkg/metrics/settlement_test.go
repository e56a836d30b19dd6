package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlementMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSettlementMetrics(reg)

	m.PayoutCreated(3)
	m.PayoutCreated(2)
	m.PayoutSkipped()
	m.PayoutFailed()
	m.RefundAccumulated("created")
	m.RefundAccumulated("incremented")
	m.RefundAccumulated("incremented")
	m.ExpiryCancelled()
	m.WarningSent("band1")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	created, err := fetchCounterValue(mfs, "settlement_payouts_created_total", "outcome", "created")
	require.NoError(t, err)
	assert.Equal(t, 2.0, created)

	skipped, err := fetchCounterValue(mfs, "settlement_payouts_created_total", "outcome", "skipped")
	require.NoError(t, err)
	assert.Equal(t, 1.0, skipped)

	incremented, err := fetchCounterValue(mfs, "settlement_refund_accumulations_total", "kind", "incremented")
	require.NoError(t, err)
	assert.Equal(t, 2.0, incremented)

	band, err := fetchCounterValue(mfs, "settlement_expiry_warnings_total", "band", "band1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, band)

	items := findMetricFamily(mfs, "settlement_items_settled_total")
	require.NotNil(t, items)
	assert.Equal(t, 5.0, items.GetMetric()[0].GetCounter().GetValue())

	expired := findMetricFamily(mfs, "settlement_expiry_cancellations_total")
	require.NotNil(t, expired)
	assert.Equal(t, 1.0, expired.GetMetric()[0].GetCounter().GetValue())
}

func TestSettlementMetricsNilSafe(t *testing.T) {
	var m *SettlementMetrics
	assert.NotPanics(t, func() {
		m.PayoutCreated(1)
		m.PayoutSkipped()
		m.PayoutFailed()
		m.RefundAccumulated("created")
		m.ExpiryCancelled()
		m.WarningSent("band1")
	})

	unregistered := NewSettlementMetrics(nil)
	assert.NotPanics(t, func() {
		unregistered.PayoutCreated(1)
		unregistered.WarningSent("")
	})
}
