package transport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/NethermindEth/rpcpeer/jsonrpc"
	"github.com/NethermindEth/rpcpeer/utils"
	"github.com/coder/websocket"
	"github.com/pkg/errors"
)

const closeReasonMaxBytes = 125

var _ http.Handler = (*Websocket)(nil)

// Websocket upgrades HTTP requests to websocket connections and serves each
// connection with its own peer. Every text or binary message is one JSON-RPC
// message.
type Websocket struct {
	factory       PeerFactory
	log           utils.SimpleLogger
	connParams    *WebsocketConnParams
	connListener  ConnListener
	acceptOptions *websocket.AcceptOptions
}

func NewWebsocket(factory PeerFactory, log utils.SimpleLogger) *Websocket {
	return &Websocket{
		factory:      factory,
		log:          log,
		connParams:   DefaultWebsocketConnParams(),
		connListener: &SelectiveConnListener{},
	}
}

// WithConnParams applies the provided params to connections accepted from now on.
func (ws *Websocket) WithConnParams(p *WebsocketConnParams) *Websocket {
	ws.connParams = p
	return ws
}

func (ws *Websocket) WithConnListener(listener ConnListener) *Websocket {
	ws.connListener = listener
	return ws
}

// WithOriginPatterns allows cross-origin connections from hosts matching the
// patterns.
func (ws *Websocket) WithOriginPatterns(patterns []string) *Websocket {
	if len(patterns) > 0 {
		ws.acceptOptions = &websocket.AcceptOptions{OriginPatterns: patterns}
	}
	return ws
}

// ServeHTTP processes an HTTP request and upgrades it to a websocket connection.
// The connection's entire "lifetime" is spent in this function.
func (ws *Websocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, ws.acceptOptions)
	if err != nil {
		ws.log.Errorw("Failed to upgrade connection", "err", err)
		return
	}

	remote := r.RemoteAddr
	ws.log.Debugw("New websocket connection", "remote", remote)
	ws.connListener.OnNewConnection(remote)
	defer ws.connListener.OnDisconnect(remote)

	wsc := newWebsocketConn(conn, ws.connParams, ws.log)
	err = wsc.Serve(r.Context(), ws.factory(wsc))
	wsc.closeWithError(err)
}

type WebsocketConnParams struct {
	// Maximum message size allowed.
	ReadLimit int64
	// Maximum time to write a message.
	WriteDuration time.Duration
	// Maximum number of messages processed at the same time.
	Concurrency int
}

func DefaultWebsocketConnParams() *WebsocketConnParams {
	return &WebsocketConnParams{
		ReadLimit:     DefaultReadLimit,
		WriteDuration: 5 * time.Second,
		Concurrency:   DefaultConcurrency,
	}
}

var _ jsonrpc.Sender = (*WebsocketConn)(nil)

// WebsocketConn is one websocket connection, either accepted by Websocket or
// opened with DialWebsocket. It is the Sender of the peer bound to it.
type WebsocketConn struct {
	conn   *websocket.Conn
	params *WebsocketConnParams
	log    utils.SimpleLogger
}

func newWebsocketConn(conn *websocket.Conn, params *WebsocketConnParams, log utils.SimpleLogger) *WebsocketConn {
	conn.SetReadLimit(params.ReadLimit)
	return &WebsocketConn{
		conn:   conn,
		params: params,
		log:    log,
	}
}

// DialWebsocket opens a client connection to url. The caller binds a peer to
// it and runs Serve to receive messages.
func DialWebsocket(ctx context.Context, url string, params *WebsocketConnParams, log utils.SimpleLogger) (*WebsocketConn, error) {
	if params == nil {
		params = DefaultWebsocketConnParams()
	}
	conn, _, err := websocket.Dial(ctx, url, nil) //nolint:bodyclose // websocket package closes resp.Body for us.
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return newWebsocketConn(conn, params, log), nil
}

// Send writes message as a single text frame.
func (wsc *WebsocketConn) Send(ctx context.Context, message []byte) error {
	// coder/websocket permits concurrent writes.
	writeCtx, writeCancel := context.WithTimeout(ctx, wsc.params.WriteDuration)
	defer writeCancel()
	// Use MessageText since JSON is a text format.
	return wsc.conn.Write(writeCtx, websocket.MessageText, message)
}

// Serve reads messages and hands them to peer until the connection fails or
// ctx is cancelled. It returns the error that ended the connection.
func (wsc *WebsocketConn) Serve(ctx context.Context, peer *jsonrpc.Peer) error {
	next := func() ([]byte, error) {
		_, message, err := wsc.conn.Read(ctx)
		return message, err
	}
	return receiveLoop(ctx, next, peer, wsc.params.Concurrency, wsc.log)
}

// Close performs the closing handshake.
func (wsc *WebsocketConn) Close() error {
	return wsc.conn.Close(websocket.StatusNormalClosure, "")
}

func (wsc *WebsocketConn) closeWithError(err error) {
	if status := websocket.CloseStatus(err); status != -1 {
		wsc.log.Infow("Client closed websocket connection", "status", status)
		return
	}

	wsc.log.Warnw("Closing websocket connection", "err", err)
	errString := err.Error()
	if len(errString) > closeReasonMaxBytes {
		errString = errString[:closeReasonMaxBytes]
	}
	if err = wsc.conn.Close(websocket.StatusInternalError, errString); err != nil {
		// Don't log an error if the connection is already closed, which can happen
		// in benign scenarios like timeouts or if the underlying TCP connection was ended before the client
		// could initiate the close handshake.
		errString = err.Error()
		if !strings.Contains(errString, "already wrote close") && !strings.Contains(errString, "WebSocket closed") {
			wsc.log.Errorw("Failed to close websocket connection", "err", errString)
		}
	}
}
