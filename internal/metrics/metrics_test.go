package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCountsTransitionsAndGatewayOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewRecorder(reg)

	rec.Transition("admin_approved", "active")
	rec.Transition("admin_approved", "active")
	rec.GatewayCall("refund", 10*time.Millisecond, errors.New("declined"))
	rec.GatewayCall("refund", 5*time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.transitions.WithLabelValues("admin_approved", "active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.gatewayCalls.WithLabelValues("refund", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.gatewayCalls.WithLabelValues("refund", "success")))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	assert.NotPanics(t, func() {
		rec.Transition("a", "b")
		rec.GatewayCall("x", time.Second, nil)
		rec.Notification("message", nil)
		rec.JobRun("complete", nil)
		rec.BreakerOpen("stripe", true)
	})

	assert.NotPanics(t, func() { NewRecorder(nil).Transition("a", "b") })
}
