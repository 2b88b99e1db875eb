package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPushMetrics(t *testing.T) {
	var pushes atomic.Int32
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/metrics/job/keysync-test" {
			pushes.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		PushMetrics(ctx, zaptest.NewLogger(t), gw.URL, "keysync-test", 10*time.Millisecond)
	}()
	require.Eventually(t, func() bool { return pushes.Load() >= 2 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	<-done
	require.GreaterOrEqual(t, pushes.Load(), int32(3))
}
