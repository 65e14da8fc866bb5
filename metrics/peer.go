package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/NethermindEth/rpcpeer/jsonrpc"
	"github.com/NethermindEth/rpcpeer/transport"
	"github.com/prometheus/client_golang/prometheus"
)

// NewPeerListener registers the rpc_peer_* collectors on registerer and
// returns a listener feeding them. One listener can be shared by every peer
// of a process.
func NewPeerListener(registerer prometheus.Registerer) jsonrpc.EventListener {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rpc",
		Subsystem: "peer",
		Name:      "requests",
		Help:      "Number of requests served",
	}, []string{"method"})
	failedRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rpc",
		Subsystem: "peer",
		Name:      "failed_requests",
		Help:      "Number of requests answered with an error",
	}, []string{"method", "error_code"})
	requestLatencies := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rpc",
		Subsystem: "peer",
		Name:      "requests_latency",
		Help:      "Time spent serving requests, in seconds",
	}, []string{"method"})
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rpc",
		Subsystem: "peer",
		Name:      "calls",
		Help:      "Number of calls sent",
	}, []string{"method"})
	callOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rpc",
		Subsystem: "peer",
		Name:      "call_outcomes",
		Help:      "Number of settled calls by outcome",
	}, []string{"method", "outcome"})
	callLatencies := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rpc",
		Subsystem: "peer",
		Name:      "calls_latency",
		Help:      "Time from sending a call to its settlement, in seconds",
	}, []string{"method"})
	registerer.MustRegister(requests, failedRequests, requestLatencies, calls, callOutcomes, callLatencies)

	return &jsonrpc.SelectiveListener{
		OnNewRequestCb: func(method string) {
			requests.WithLabelValues(method).Inc()
		},
		OnRequestHandledCb: func(method string, took time.Duration) {
			requestLatencies.WithLabelValues(method).Observe(took.Seconds())
		},
		OnRequestFailedCb: func(method string, data any) {
			var errorCode string
			if rpcErr, ok := data.(*jsonrpc.Error); ok {
				errorCode = strconv.Itoa(rpcErr.Code)
			}

			failedRequests.WithLabelValues(method, errorCode).Inc()
		},
		OnCallSentCb: func(method string) {
			calls.WithLabelValues(method).Inc()
		},
		OnCallSettledCb: func(method string, took time.Duration, err error) {
			callLatencies.WithLabelValues(method).Observe(took.Seconds())
			callOutcomes.WithLabelValues(method, callOutcome(err)).Inc()
		},
	}
}

func callOutcome(err error) string {
	var (
		rpcErr     *jsonrpc.Error
		timeoutErr *jsonrpc.TimeoutError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &rpcErr):
		return "error_response"
	case errors.As(err, &timeoutErr):
		return "timeout"
	default:
		return "failed"
	}
}

// NewConnListener registers a gauge of open connections and a counter of
// accepted ones for the named transport.
func NewConnListener(registerer prometheus.Registerer, transportName string) transport.ConnListener {
	open := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rpc",
		Subsystem: transportName,
		Name:      "open_connections",
		Help:      "Number of open connections",
	})
	accepted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rpc",
		Subsystem: transportName,
		Name:      "connections",
		Help:      "Number of accepted connections",
	})
	registerer.MustRegister(open, accepted)

	return &transport.SelectiveConnListener{
		OnNewConnectionCb: func(string) {
			accepted.Inc()
			open.Inc()
		},
		OnDisconnectCb: func(string) {
			open.Dec()
		},
	}
}
