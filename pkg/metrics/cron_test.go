package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveDuration("expiry-sweep", 250*time.Millisecond)
	m.IncSuccess("expiry-sweep")
	m.IncSuccess("expiry-sweep")
	m.IncFailure("vendor-payouts")
	m.IncSkipped("expiry-sweep")
	m.IncSuccess("")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	runs := findMetricFamily(mfs, "foodmart_cron_job_runs_total")
	require.NotNil(t, runs)
	assert.Equal(t, 2.0, runValue(t, runs, "expiry-sweep", "success"))
	assert.Equal(t, 1.0, runValue(t, runs, "expiry-sweep", "skipped"))
	assert.Equal(t, 1.0, runValue(t, runs, "vendor-payouts", "failure"))
	assert.Equal(t, 1.0, runValue(t, runs, "unknown", "success"))

	sum, err := fetchHistogramSum(mfs, "foodmart_cron_job_duration_seconds", "job", "expiry-sweep")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, sum, 1e-9)
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	assert.NotPanics(t, func() {
		m.ObserveDuration("expiry-sweep", time.Second)
		m.IncSuccess("expiry-sweep")
		m.IncFailure("expiry-sweep")
		m.IncSkipped("expiry-sweep")
		NewCronJobMetrics(nil).IncSkipped("vendor-payouts")
	})
}

func runValue(t *testing.T, mf *dto.MetricFamily, job, outcome string) float64 {
	t.Helper()
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), "job", job) && matchesLabel(metric.GetLabel(), "outcome", outcome) {
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("no %s run counter for %s", outcome, job)
	return 0
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
