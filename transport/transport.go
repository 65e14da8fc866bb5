// Package transport carries JSON-RPC messages between a jsonrpc.Peer and a
// connection: newline-delimited streams, unix sockets, websockets and HTTP.
package transport

import (
	"context"

	"github.com/NethermindEth/rpcpeer/jsonrpc"
	"github.com/NethermindEth/rpcpeer/utils"
	"github.com/sourcegraph/conc/pool"
)

// DefaultConcurrency bounds how many inbound messages of one connection are
// processed at the same time.
const DefaultConcurrency = 16

// PeerFactory creates the peer serving one connection. sender writes to that
// connection.
type PeerFactory func(sender jsonrpc.Sender) *jsonrpc.Peer

// Service is a long-running component stopped by cancelling ctx.
type Service interface {
	Run(ctx context.Context) error
}

type ConnListener interface {
	OnNewConnection(remote string)
	OnDisconnect(remote string)
}

type SelectiveConnListener struct {
	OnNewConnectionCb func(remote string)
	OnDisconnectCb    func(remote string)
}

func (l *SelectiveConnListener) OnNewConnection(remote string) {
	if l.OnNewConnectionCb != nil {
		l.OnNewConnectionCb(remote)
	}
}

func (l *SelectiveConnListener) OnDisconnect(remote string) {
	if l.OnDisconnectCb != nil {
		l.OnDisconnectCb(remote)
	}
}

// receiveLoop feeds every message returned by next to peer until next fails.
// Messages carrying requests are processed concurrently, at most concurrency
// at a time. Messages carrying only responses are settled on the reading
// goroutine, so handlers waiting on their own calls cannot starve them.
func receiveLoop(ctx context.Context, next func() ([]byte, error), peer *jsonrpc.Peer,
	concurrency int, log utils.SimpleLogger,
) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	workers := pool.New().WithMaxGoroutines(concurrency)
	defer workers.Wait()

	receive := func(message []byte) {
		if err := peer.Receive(ctx, message); err != nil {
			log.Warnw("Failed to reply to message", "err", err)
		}
	}

	for {
		message, err := next()
		if err != nil {
			return err
		}
		if traceLog, ok := log.(utils.TraceLogger); ok && traceLog.IsTraceEnabled() {
			traceLog.Tracew("Received message", "message", string(message))
		}

		if onlyResponses(message) {
			receive(message)
			continue
		}
		workers.Go(func() {
			receive(message)
		})
	}
}

// onlyResponses reports whether message parses and every element in it is
// shaped like a response. Correlating responses never blocks.
func onlyResponses(message []byte) bool {
	msg, err := jsonrpc.Parse(message)
	if err != nil {
		return false
	}
	for _, element := range msg.Elements {
		if !jsonrpc.IsResponse(element) {
			return false
		}
	}
	return true
}
