package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NethermindEth/rpcpeer/utils"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds how long Call waits for a response.
const DefaultTimeout = 60 * time.Second

var ErrInvalidID = errors.New("id should be a string or a number")

type outcome struct {
	result json.RawMessage
	err    error
}

type pendingCall struct {
	method  string
	request []byte
	// done receives exactly one outcome, from whoever removes the call from
	// the correlation table first.
	done chan outcome
}

// Peer is one end of a JSON-RPC 2.0 conversation. It sends requests and
// notifications through a Sender, correlates the responses it receives with
// the calls it made and serves the requests it receives with a Handler.
//
// A Peer does not read from any connection: the integrator feeds every inbound
// message to Receive. All methods are safe for concurrent use once the peer is
// configured; the With* methods are not.
type Peer struct {
	sender   Sender
	handler  Handler
	timeout  time.Duration
	idgen    IDGenerator
	log      utils.SimpleLogger
	listener EventListener

	// mu protects pending.
	mu      sync.Mutex
	pending map[ID]*pendingCall
}

// NewPeer creates a peer. handler may be nil, in which case every inbound
// request is answered with MethodNotFound.
func NewPeer(sender Sender, handler Handler, log utils.SimpleLogger) *Peer {
	return &Peer{
		sender:   sender,
		handler:  handler,
		timeout:  DefaultTimeout,
		idgen:    NewSequentialIDs(),
		log:      log,
		listener: &SelectiveListener{},
		pending:  make(map[ID]*pendingCall),
	}
}

// WithTimeout sets how long Call waits for a response. Zero or a negative
// duration disables the timeout.
func (p *Peer) WithTimeout(timeout time.Duration) *Peer {
	p.timeout = timeout
	return p
}

func (p *Peer) WithIDGen(idgen IDGenerator) *Peer {
	p.idgen = idgen
	return p
}

func (p *Peer) WithListener(listener EventListener) *Peer {
	p.listener = listener
	return p
}

func (p *Peer) WithSender(sender Sender) *Peer {
	p.sender = sender
	return p
}

func (p *Peer) WithHandler(handler Handler) *Peer {
	p.handler = handler
	return p
}

func (p *Peer) Timeout() time.Duration {
	return p.timeout
}

// Pending returns the number of calls waiting for a response.
func (p *Peer) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// CreateRequest builds a request with the next id of the peer's generator.
func (p *Peer) CreateRequest(method string, params any) (*Request, error) {
	return NewRequest(method, params, p.idgen.NextID())
}

// Call sends a request and waits for its response. It returns the raw result
// of a success response, the *Error of an error response, a *TimeoutError when
// no response arrived in time, the sender's error if sending failed, or the
// context's error if ctx is done first. In the last two timing-related cases the
// remote peer may still process the request.
func (p *Peer) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return p.CallWithID(ctx, ID{}, method, params)
}

// CallWithID is Call with a caller-chosen id. An absent id is generated.
func (p *Peer) CallWithID(ctx context.Context, id ID, method string, params any) (json.RawMessage, error) {
	if id.IsZero() {
		id = p.idgen.NextID()
	} else if !id.IsDefined() {
		return nil, ErrInvalidID
	}

	req, err := NewRequest(method, params, id)
	if err != nil {
		return nil, err
	}
	return p.call(ctx, req)
}

// CallResult is Call decoding the result into result, which may be nil to
// discard it.
func (p *Peer) CallResult(ctx context.Context, method string, params, result any) error {
	raw, err := p.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil || len(raw) == 0 {
		return nil
	}
	if err = json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("unmarshal %s result: %w", method, err)
	}
	return nil
}

func (p *Peer) call(ctx context.Context, req *Request) (result json.RawMessage, err error) {
	if p.sender == nil {
		return nil, ErrNoSender
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	ctx, span := startSpan(ctx, "jsonrpc.Call", req.Method, trace.SpanKindClient)
	start := time.Now()
	defer func() {
		p.listener.OnCallSettled(req.Method, time.Since(start), err)
		endSpan(span, err)
	}()

	call := &pendingCall{
		method:  req.Method,
		request: data,
		done:    make(chan outcome, 1),
	}
	// Registered before sending so a fast response cannot be missed.
	if err = p.track(req.ID, call); err != nil {
		return nil, err
	}
	p.listener.OnCallSent(req.Method)

	sendCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sent := make(chan error, 1)
	go func() {
		sent <- p.send(sendCtx, data)
	}()

	var timeout <-chan time.Time
	if p.timeout > 0 {
		timer := time.NewTimer(p.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case sendErr := <-sent:
			sent = nil
			if sendErr != nil && p.forget(req.ID, call) {
				return nil, sendErr
			}
		case out := <-call.done:
			return out.result, out.err
		case <-timeout:
			if p.forget(req.ID, call) {
				p.log.Debugw("RPC call timed out", "method", req.Method, "id", req.ID, "timeout", p.timeout)
				return nil, &TimeoutError{Timeout: p.timeout, Request: data}
			}
			timeout = nil
		case <-ctx.Done():
			if p.forget(req.ID, call) {
				return nil, ctx.Err()
			}
			out := <-call.done
			return out.result, out.err
		}
	}
}

// Notice sends a notification. No response is expected.
func (p *Peer) Notice(ctx context.Context, method string, params any) error {
	if p.sender == nil {
		return ErrNoSender
	}
	req, err := NewNotification(method, params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return p.send(ctx, data)
}

// Receive processes one inbound message and sends the reply, if any, through
// the sender. Malformed input and handler failures are answered with error
// responses; only a failure to send the reply is returned.
func (p *Peer) Receive(ctx context.Context, message []byte) error {
	reply := p.Handle(ctx, message)
	if reply == nil {
		return nil
	}
	if p.sender == nil {
		return ErrNoSender
	}
	return p.send(ctx, reply)
}

// Handle processes one inbound message and returns the serialized reply, or
// nil when nothing must be sent back. Responses in the message settle the
// matching calls. Requests in a batch are served one after the other, in order.
func (p *Peer) Handle(ctx context.Context, message []byte) []byte {
	msg, err := Parse(message)
	if err != nil {
		p.log.Debugw("Failed to parse RPC message", "err", err)
		return p.encode(newErrorResponse(NullID(), Convert(err)))
	}

	if !msg.Batch {
		return p.route(ctx, msg.Elements[0])
	}

	replies := make([]json.RawMessage, 0, len(msg.Elements))
	for _, element := range msg.Elements {
		if reply := p.route(ctx, element); reply != nil {
			replies = append(replies, reply)
		}
	}
	// A batch made only of notifications and responses gets no reply at all.
	if len(replies) == 0 {
		return nil
	}

	batch, err := json.Marshal(replies)
	if err != nil {
		p.log.Errorw("Failed to marshal batch response", "err", err)
		return nil
	}
	return batch
}

func (p *Peer) route(ctx context.Context, element json.RawMessage) json.RawMessage {
	fields, ok := objectFields(element)
	if !ok {
		return p.encode(newErrorResponse(NullID(), Err(InvalidRequest, "batch element must be an object")))
	}

	if isResponseShaped(fields) {
		p.correlate(fields)
		return nil
	}

	resp := p.serve(ctx, fields)
	if resp == nil {
		return nil
	}
	return p.encode(resp)
}

func (p *Peer) serve(ctx context.Context, fields map[string]json.RawMessage) *Response {
	req, err := requestFromFields(fields)
	if err != nil {
		return newErrorResponse(req.ID, Err(InvalidRequest, err.Error()))
	}

	ctx, span := startSpan(ctx, "jsonrpc.Handle", req.Method, trace.SpanKindServer)
	start := time.Now()
	p.listener.OnNewRequest(req.Method)
	p.log.Debugw("Serving RPC request", "method", req.Method, "id", req.ID)

	result, err := p.invoke(ctx, req)
	endSpan(span, err)

	took := time.Since(start)
	p.log.Debugw("Responding to RPC request", "method", req.Method, "id", req.ID, "took", took)

	if err != nil {
		rpcErr := Convert(err)
		p.listener.OnRequestFailed(req.Method, rpcErr)
		// Failures are reported even for notifications.
		return newErrorResponse(req.ID, rpcErr)
	}
	p.listener.OnRequestHandled(req.Method, took)

	if result.Suppressed() || !req.ID.IsDefined() {
		return nil
	}

	resp, err := NewResponse(req.ID, result.Value(), nil)
	if err != nil {
		p.log.Errorw("Failed to build RPC response", "method", req.Method, "id", req.ID, "err", err)
		return newErrorResponse(req.ID, Err(InternalError, err.Error()))
	}
	return resp
}

func (p *Peer) invoke(ctx context.Context, req *Request) (result Result, err error) {
	if p.handler == nil {
		return Result{}, Err(MethodNotFound, nil)
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			p.log.Errorw("RPC handler panicked", "method", req.Method, "panic", recovered)
			result, err = Result{}, Convert(recovered)
		}
	}()

	result, err = p.handler.Handle(ctx, req)
	if utils.IsNil(err) {
		// A typed nil such as (*Error)(nil) is not a failure.
		err = nil
	}
	return result, err
}

// requestFromFields is lenient: only a method that is not a string is
// rejected. The returned request always carries the id when there is one.
func requestFromFields(fields map[string]json.RawMessage) (*Request, error) {
	req := &Request{Version: Version}
	if raw, ok := fields["id"]; ok {
		if err := req.ID.UnmarshalJSON(raw); err != nil {
			return req, err
		}
	}
	if raw, ok := fields["method"]; ok && !isJSONNull(raw) {
		if err := json.Unmarshal(raw, &req.Method); err != nil {
			return req, errors.New("method should be a string")
		}
	}
	if raw, ok := fields["params"]; ok && !isJSONNull(raw) {
		req.Params = raw
	}
	return req, nil
}

func (p *Peer) correlate(fields map[string]json.RawMessage) {
	var id ID
	if raw, ok := fields["id"]; ok {
		if err := id.UnmarshalJSON(raw); err != nil {
			p.log.Debugw("Dropping response with unreadable id", "err", err)
			return
		}
	}

	call := p.take(id)
	if call == nil {
		// Late, duplicate or foreign responses are expected on lossy transports.
		p.log.Debugw("Dropping response to unknown call", "id", id)
		return
	}

	var out outcome
	if raw, ok := fields["error"]; ok && !isJSONNull(raw) {
		out.err = decodeError(raw)
	} else {
		out.result = fields["result"]
	}
	call.done <- out
}

// decodeError rebuilds the error object of a response. Malformed error members
// still produce an *Error.
func decodeError(raw json.RawMessage) *Error {
	var wire struct {
		Code    *int            `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		var message string
		if json.Unmarshal(raw, &message) == nil {
			return NewError(InternalError, message, nil)
		}
		return NewError(InternalError, "", raw)
	}

	code := InternalError
	if wire.Code != nil {
		code = *wire.Code
	}
	var data any
	if len(wire.Data) > 0 && !isJSONNull(wire.Data) {
		data = wire.Data
	}
	return NewError(code, wire.Message, data)
}

func (p *Peer) track(id ID, call *pendingCall) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, found := p.pending[id]; found {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	p.pending[id] = call
	return nil
}

// forget removes call from the table. It reports false when the call has
// already been settled by someone else.
func (p *Peer) forget(id ID, call *pendingCall) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending[id] != call {
		return false
	}
	delete(p.pending, id)
	return true
}

func (p *Peer) take(id ID) *pendingCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	call, found := p.pending[id]
	if found {
		delete(p.pending, id)
	}
	return call
}

func (p *Peer) send(ctx context.Context, message []byte) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("sender panicked: %v", recovered)
		}
	}()
	return p.sender.Send(ctx, message)
}

func (p *Peer) encode(resp *Response) json.RawMessage {
	data, err := json.Marshal(resp)
	if err == nil {
		return data
	}

	p.log.Errorw("Failed to marshal RPC response", "id", resp.ID, "err", err)
	data, err = json.Marshal(newErrorResponse(resp.ID, Err(InternalError, err.Error())))
	if err != nil {
		return nil
	}
	return data
}
