package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NethermindEth/rpcpeer/jsonrpc"
	"github.com/NethermindEth/rpcpeer/transport"
	"github.com/NethermindEth/rpcpeer/utils"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWebsocketServer(t *testing.T, ws *transport.Websocket) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(ws)
	t.Cleanup(srv.Close)
	return srv
}

func newTestWebsocket(t *testing.T) *transport.Websocket {
	t.Helper()
	log := utils.NewNopZapLogger()
	methods := echoMethods(t)
	return transport.NewWebsocket(func(sender jsonrpc.Sender) *jsonrpc.Peer {
		return jsonrpc.NewPeer(sender, methods, log)
	}, log)
}

// The caller is responsible for closing the connection.
func testConnection(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.Dial(ctx, url, nil) //nolint:bodyclose // websocket package closes resp.Body for us.
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	return conn
}

func TestWebsocketHandler(t *testing.T) {
	srv := testWebsocketServer(t, newTestWebsocket(t))
	conn := testConnection(t, t.Context(), srv.URL)

	msg := `{"jsonrpc" : "2.0", "method" : "test_echo", "params" : [ "abc123" ], "id" : 1}`
	err := conn.Write(t.Context(), websocket.MessageText, []byte(msg))
	require.NoError(t, err)

	want := `{"jsonrpc":"2.0","result":"abc123","id":1}`
	_, got, err := conn.Read(t.Context())
	require.NoError(t, err)
	assert.Equal(t, want, string(got))

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
}

func TestWebsocketBatch(t *testing.T) {
	srv := testWebsocketServer(t, newTestWebsocket(t))
	conn := testConnection(t, t.Context(), srv.URL)
	defer conn.Close(websocket.StatusNormalClosure, "")

	msg := `[{"jsonrpc":"2.0","method":"test_echo","params":["a"],"id":1},` +
		`{"jsonrpc":"2.0","method":"test_echo","params":["b"]},` +
		`{"jsonrpc":"2.0","method":"missing","id":2}]`
	require.NoError(t, conn.Write(t.Context(), websocket.MessageText, []byte(msg)))

	_, got, err := conn.Read(t.Context())
	require.NoError(t, err)
	assert.Equal(t, `[{"jsonrpc":"2.0","result":"a","id":1},`+
		`{"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found"},"id":2}]`, string(got))
}

func TestWebsocketPeerClient(t *testing.T) {
	log := utils.NewNopZapLogger()
	srv := testWebsocketServer(t, newTestWebsocket(t))

	wsc, err := transport.DialWebsocket(t.Context(), srv.URL, nil, log)
	require.NoError(t, err)

	client := jsonrpc.NewPeer(wsc, nil, log).WithTimeout(5 * time.Second)
	done := make(chan error, 1)
	go func() {
		done <- wsc.Serve(context.Background(), client)
	}()

	var echoed string
	require.NoError(t, client.CallResult(t.Context(), "test_echo", map[string]string{"msg": "named"}, &echoed))
	assert.Equal(t, "named", echoed)

	_, err = client.Call(t.Context(), "missing", nil)
	var rpcErr *jsonrpc.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, jsonrpc.MethodNotFound, rpcErr.Code)

	require.NoError(t, wsc.Close())
	assert.Error(t, <-done)
}

func TestWebsocketReadLimit(t *testing.T) {
	ws := newTestWebsocket(t).WithConnParams(&transport.WebsocketConnParams{
		ReadLimit:     64,
		WriteDuration: time.Second,
		Concurrency:   1,
	})
	srv := testWebsocketServer(t, ws)
	conn := testConnection(t, t.Context(), srv.URL)
	defer conn.CloseNow()

	msg := `{"jsonrpc":"2.0","method":"test_echo","params":["` + strings.Repeat("a", 128) + `"],"id":1}`
	require.NoError(t, conn.Write(t.Context(), websocket.MessageText, []byte(msg)))

	_, _, err := conn.Read(t.Context())
	require.Error(t, err)
	assert.Equal(t, websocket.StatusMessageTooBig, websocket.CloseStatus(err))
}

func TestWebsocketConnListener(t *testing.T) {
	var opened, closed atomic.Int32
	ws := newTestWebsocket(t).WithConnListener(&transport.SelectiveConnListener{
		OnNewConnectionCb: func(string) { opened.Add(1) },
		OnDisconnectCb:    func(string) { closed.Add(1) },
	})
	srv := testWebsocketServer(t, ws)

	conn := testConnection(t, t.Context(), srv.URL)
	require.Eventually(t, func() bool { return opened.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Zero(t, closed.Load())

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return closed.Load() == 1 }, time.Second, 10*time.Millisecond)
}
