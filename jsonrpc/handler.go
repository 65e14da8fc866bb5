package jsonrpc

import (
	"context"
	"encoding/json"
)

// Result is what a Handler produces for a request: either a value to reply
// with or NoResponse.
type Result struct {
	value      any
	suppressed bool
}

// NoResponse tells the peer not to reply, even when the request has an id.
// Handlers that answer through their own channel return it.
var NoResponse = Result{suppressed: true}

// Reply wraps a value to be sent back as the result.
func Reply(v any) Result {
	return Result{value: v}
}

func (r Result) Value() any {
	return r.value
}

func (r Result) Suppressed() bool {
	return r.suppressed
}

//go:generate mockgen -destination=../mocks/mock_jsonrpc.go -package=mocks github.com/NethermindEth/rpcpeer/jsonrpc Sender,Handler

// Handler serves inbound requests and notifications. A returned error is
// always reported to the remote peer, converted with Convert, even for
// notifications.
type Handler interface {
	Handle(ctx context.Context, req *Request) (Result, error)
}

// HandlerFunc adapts a plain function to Handler. id is absent for
// notifications.
type HandlerFunc func(ctx context.Context, method string, params json.RawMessage, id ID) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, req *Request) (Result, error) {
	return f(ctx, req.Method, req.Params, req.ID)
}

// Sender delivers one serialized message to the remote peer.
type Sender interface {
	Send(ctx context.Context, message []byte) error
}

type SenderFunc func(ctx context.Context, message []byte) error

func (f SenderFunc) Send(ctx context.Context, message []byte) error {
	return f(ctx, message)
}
