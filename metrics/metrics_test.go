package metrics

import (
	"testing"
	"time"

	"github.com/Fantom-foundation/lachesis-base/kvdb/memorydb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-opera-bridge/errs"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/inter"
)

func TestAttach(t *testing.T) {
	require := require.New(t)

	h := host.New(memorydb.New(), host.NewManualClock(1), common.HexToAddress("0xc0"))
	Attach(h)

	okBefore := testutil.ToFloat64(invocationsTotal.WithLabelValues("metricsTest", "ok"))
	rejBefore := testutil.ToFloat64(invocationsTotal.WithLabelValues("metricsTest", "rejected"))
	retBefore := testutil.ToFloat64(invocationsTotal.WithLabelValues("metricsTest", "retained"))
	evBefore := testutil.ToFloat64(eventsTotal.WithLabelValues(inter.EventBridgePaused))
	kindBefore := testutil.ToFloat64(rejectionsTotal.WithLabelValues("state-machine"))

	require.NoError(h.Invoke(common.Address{}, "metricsTest", func(env *host.Env) error {
		return env.Emit(inter.EventBridgePaused, struct{}{})
	}))
	require.Error(h.Invoke(common.Address{}, "metricsTest", func(env *host.Env) error {
		return errs.ErrBridgePaused
	}))
	require.Error(h.Invoke(common.Address{}, "metricsTest", func(env *host.Env) error {
		if err := env.Emit(inter.EventBridgePaused, struct{}{}); err != nil {
			return err
		}
		return host.Retain(errs.ErrCircuitBreakerTriggered)
	}))

	require.Equal(okBefore+1, testutil.ToFloat64(invocationsTotal.WithLabelValues("metricsTest", "ok")))
	require.Equal(rejBefore+1, testutil.ToFloat64(invocationsTotal.WithLabelValues("metricsTest", "rejected")))
	require.Equal(retBefore+1, testutil.ToFloat64(invocationsTotal.WithLabelValues("metricsTest", "retained")))
	require.Equal(evBefore+2, testutil.ToFloat64(eventsTotal.WithLabelValues(inter.EventBridgePaused)))
	require.Equal(kindBefore+2, testutil.ToFloat64(rejectionsTotal.WithLabelValues("state-machine")))
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/test", "200"))
	RecordHTTPRequest("GET", "/test", 200, time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/test", "200")))
}
