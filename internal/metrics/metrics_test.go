package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Command("approve_item", "ok")
	m.Command("approve_item", "INSUFFICIENT_STOCK")
	m.Notification("sms", errors.New("gateway down"))
	m.Notification("sms", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("approve_item", "INSUFFICIENT_STOCK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("sms", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("sms", "ok")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Command("x", "ok")
		m.Procedure("sweep", nil)
	})
}
