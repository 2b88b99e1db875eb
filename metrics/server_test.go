package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestServer(t *testing.T) {
	c := NewCounter("test_total", "server", "test counter", []string{"kind"})
	c.WithLabelValues("foo").Add(3)

	srv, err := NewServer(zaptest.NewLogger(t), "127.0.0.1:0")
	require.NoError(t, err)
	srv.Start()
	t.Cleanup(func() { require.NoError(t, srv.Stop(context.Background())) })

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `keysync_server_test_total{kind="foo"} 3`)
}
