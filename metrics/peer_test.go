package metrics_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/NethermindEth/rpcpeer/jsonrpc"
	"github.com/NethermindEth/rpcpeer/metrics"
	"github.com/NethermindEth/rpcpeer/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerListener(t *testing.T) {
	registry := prometheus.NewRegistry()
	listener := metrics.NewPeerListener(registry)

	listener.OnNewRequest("sum")
	listener.OnRequestHandled("sum", time.Millisecond)
	listener.OnNewRequest("fail")
	listener.OnRequestFailed("fail", jsonrpc.Err(jsonrpc.MethodNotFound, nil))

	listener.OnCallSent("echo")
	listener.OnCallSettled("echo", time.Millisecond, nil)
	listener.OnCallSent("echo")
	listener.OnCallSettled("echo", time.Millisecond, jsonrpc.NewError(-32000, "Pool closed", nil))
	listener.OnCallSent("echo")
	listener.OnCallSettled("echo", time.Second, &jsonrpc.TimeoutError{Timeout: time.Second})
	listener.OnCallSent("echo")
	listener.OnCallSettled("echo", 0, errors.New("write message: broken pipe"))

	expected := `
# HELP rpc_peer_requests Number of requests served
# TYPE rpc_peer_requests counter
rpc_peer_requests{method="fail"} 1
rpc_peer_requests{method="sum"} 1
# HELP rpc_peer_failed_requests Number of requests answered with an error
# TYPE rpc_peer_failed_requests counter
rpc_peer_failed_requests{error_code="-32601",method="fail"} 1
# HELP rpc_peer_calls Number of calls sent
# TYPE rpc_peer_calls counter
rpc_peer_calls{method="echo"} 4
# HELP rpc_peer_call_outcomes Number of settled calls by outcome
# TYPE rpc_peer_call_outcomes counter
rpc_peer_call_outcomes{method="echo",outcome="error_response"} 1
rpc_peer_call_outcomes{method="echo",outcome="failed"} 1
rpc_peer_call_outcomes{method="echo",outcome="success"} 1
rpc_peer_call_outcomes{method="echo",outcome="timeout"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"rpc_peer_requests", "rpc_peer_failed_requests", "rpc_peer_calls", "rpc_peer_call_outcomes"))

	count, err := testutil.GatherAndCount(registry, "rpc_peer_requests_latency", "rpc_peer_calls_latency")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPeerListenerWithPeer(t *testing.T) {
	registry := prometheus.NewRegistry()
	methods := jsonrpc.NewMethods()
	require.NoError(t, methods.RegisterMethod(jsonrpc.Method{
		Name:    "double",
		Params:  []jsonrpc.Parameter{{Name: "n"}},
		Handler: func(n int) (int, *jsonrpc.Error) { return 2 * n, nil },
	}))
	peer := jsonrpc.NewPeer(nil, methods, utils.NewNopZapLogger()).WithListener(metrics.NewPeerListener(registry))

	peer.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","method":"double","params":[2],"id":1}`))
	peer.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","method":"double","params":["x"],"id":2}`))

	expected := `
# HELP rpc_peer_requests Number of requests served
# TYPE rpc_peer_requests counter
rpc_peer_requests{method="double"} 2
# HELP rpc_peer_failed_requests Number of requests answered with an error
# TYPE rpc_peer_failed_requests counter
rpc_peer_failed_requests{error_code="-32602",method="double"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"rpc_peer_requests", "rpc_peer_failed_requests"))
}

func TestConnListener(t *testing.T) {
	registry := prometheus.NewRegistry()
	listener := metrics.NewConnListener(registry, "ipc")

	listener.OnNewConnection("a")
	listener.OnNewConnection("b")
	listener.OnDisconnect("a")

	expected := `
# HELP rpc_ipc_connections Number of accepted connections
# TYPE rpc_ipc_connections counter
rpc_ipc_connections 2
# HELP rpc_ipc_open_connections Number of open connections
# TYPE rpc_ipc_open_connections gauge
rpc_ipc_open_connections 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"rpc_ipc_connections", "rpc_ipc_open_connections"))
}

func TestPrometheusRegistry(t *testing.T) {
	registry := metrics.PrometheusRegistry()
	count, err := testutil.GatherAndCount(registry, "go_goroutines")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NotNil(t, metrics.PrometheusHandler(registry))
	assert.NotNil(t, metrics.PrometheusHandler(nil))
}
