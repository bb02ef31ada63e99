package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := counterValue(t, reservationCreated.WithLabelValues("created"))
	IncReservationCreated("created")
	assert.Equal(t, before+1, counterValue(t, reservationCreated.WithLabelValues("created")))

	before = counterValue(t, slotsMaterialized)
	AddSlotsMaterialized(16)
	AddSlotsMaterialized(0)
	assert.Equal(t, before+16, counterValue(t, slotsMaterialized))

	IncReservationDecision("accepted")
	IncAuth("login", "ok")
	IncHTTP("/api/categories", "200")
	assert.Equal(t, 1.0, counterValue(t, httpRequests.WithLabelValues("/api/categories", "200")))
}
