package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T, opts ...Option) *Monitor {
	t.Helper()
	return NewMonitor(nil, opts...)
}

func TestRecordHealthCheck_BuildsSummary(t *testing.T) {
	monitor := newTestMonitor(t)

	monitor.RecordHealthCheck("pg", 100, true, "")
	monitor.RecordHealthCheck("pg", 200, true, "")
	monitor.RecordHealthCheck("pg", 300, false, "connection reset")

	summary, ok := monitor.GetProviderHealth("pg")
	require.True(t, ok)

	assert.Equal(t, 3, summary.TotalChecks)
	assert.InDelta(t, 66.66, summary.UptimePercentage, 0.1)
	assert.InDelta(t, 33.33, summary.ErrorRate, 0.1)
	assert.InDelta(t, 200, summary.AvgResponseTimeMS, 0.001)
	assert.Equal(t, 1, summary.ConsecutiveFailures)
	assert.Equal(t, "connection reset", summary.LastError)
}

func TestRecordHealthCheck_SuccessResetsConsecutiveFailures(t *testing.T) {
	monitor := newTestMonitor(t)

	for i := 0; i < 4; i++ {
		monitor.RecordHealthCheck("pg", 50, false, "down")
	}
	monitor.RecordHealthCheck("pg", 50, true, "")

	summary, ok := monitor.GetProviderHealth("pg")
	require.True(t, ok)
	assert.Equal(t, 0, summary.ConsecutiveFailures)
}

func TestAlertDeduplication(t *testing.T) {
	monitor := newTestMonitor(t)

	// Five consecutive failures raise the critical alert once; further
	// failures must not duplicate it.
	for i := 0; i < 8; i++ {
		monitor.RecordHealthCheck("pg", 50, false, "down")
	}

	var critical int
	for _, alert := range monitor.GetActiveAlerts("pg") {
		if alert.Level == AlertCritical {
			critical++
		}
	}
	assert.Equal(t, 1, critical)
}

func TestResolveAlertAllowsReraise(t *testing.T) {
	monitor := newTestMonitor(t)

	for i := 0; i < 5; i++ {
		monitor.RecordHealthCheck("pg", 50, false, "down")
	}

	alerts := monitor.GetActiveAlerts("pg")
	require.NotEmpty(t, alerts)
	message := alerts[0].Message

	assert.True(t, monitor.ResolveAlert("pg", message))
	assert.False(t, monitor.ResolveAlert("pg", message), "second resolve should find nothing")

	// Condition still holds, so the next observation re-raises
	monitor.RecordHealthCheck("pg", 50, false, "down")
	found := false
	for _, alert := range monitor.GetActiveAlerts("pg") {
		if alert.Message == message {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAlertCallbackPanicIsRecovered(t *testing.T) {
	monitor := newTestMonitor(t)

	var received []Alert
	monitor.RegisterAlertCallback(func(Alert) {
		panic("callback boom")
	})
	monitor.RegisterAlertCallback(func(a Alert) {
		received = append(received, a)
	})

	for i := 0; i < 5; i++ {
		monitor.RecordHealthCheck("pg", 50, false, "down")
	}

	assert.NotEmpty(t, received, "second callback should still run after first panics")
}

func TestExportHealthData_EmptyProvider(t *testing.T) {
	monitor := newTestMonitor(t)

	export := monitor.ExportHealthData("never-seen")

	assert.Equal(t, StatusUnknown, export.Status)
	assert.NotNil(t, export.Metrics)
	assert.Empty(t, export.Metrics)
	assert.Nil(t, export.Summary)
}

func TestExportHealthData_SnapshotIsCopy(t *testing.T) {
	monitor := newTestMonitor(t)
	monitor.RecordHealthCheck("pg", 10, true, "")

	export := monitor.ExportHealthData("pg")
	require.Len(t, export.Metrics, 1)
	export.Metrics[0].ErrorMessage = "mutated"

	again := monitor.ExportHealthData("pg")
	assert.Empty(t, again.Metrics[0].ErrorMessage)
}

func TestCleanup_PurgesOldMetricsAndResolvedAlerts(t *testing.T) {
	monitor := newTestMonitor(t, WithRetention(time.Hour))

	monitor.RecordHealthCheck("pg", 10, true, "")
	for i := 0; i < 5; i++ {
		monitor.RecordHealthCheck("pg", 10, false, "down")
	}

	alerts := monitor.GetActiveAlerts("pg")
	require.NotEmpty(t, alerts)
	monitor.ResolveAlert("pg", alerts[0].Message)

	// Advance: everything recorded now is "older than" a future cutoff
	future := time.Now().UTC().Add(48 * time.Hour)
	monitor.Cleanup(future)

	export := monitor.ExportHealthData("pg")
	assert.Empty(t, export.Metrics)

	resolvedStillPresent := false
	monitor.mu.RLock()
	for _, alert := range monitor.alerts {
		if alert.Resolved {
			resolvedStillPresent = true
		}
	}
	monitor.mu.RUnlock()
	assert.False(t, resolvedStillPresent)
}

func TestStartStop(t *testing.T) {
	monitor := newTestMonitor(t, WithCleanupInterval(10*time.Millisecond))

	ctx := context.Background()
	require.NoError(t, monitor.Start(ctx))
	assert.Error(t, monitor.Start(ctx), "double start should fail")

	time.Sleep(30 * time.Millisecond)
	monitor.Stop()
	// Stop twice is a no-op
	monitor.Stop()
}

func TestGetHealthTrends(t *testing.T) {
	monitor := newTestMonitor(t)

	monitor.RecordHealthCheck("pg", 100, true, "")
	monitor.RecordHealthCheck("pg", 200, true, "")
	monitor.RecordHealthCheck("pg", 300, false, "slow")

	trends, err := monitor.GetHealthTrends("pg", 24)
	require.NoError(t, err)

	assert.Equal(t, 3, trends.TotalChecks)
	assert.InDelta(t, 66.66, trends.SuccessRate, 0.1)
	assert.InDelta(t, 200, trends.ResponseTime.MeanMS, 0.001)
	assert.InDelta(t, 200, trends.ResponseTime.MedianMS, 0.001)
	assert.InDelta(t, 100, trends.ResponseTime.MinMS, 0.001)
	assert.InDelta(t, 300, trends.ResponseTime.MaxMS, 0.001)
	assert.NotEmpty(t, trends.Hourly)

	_, err = monitor.GetHealthTrends("missing", 24)
	assert.Error(t, err)
}
