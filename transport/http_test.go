package transport_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NethermindEth/rpcpeer/jsonrpc"
	"github.com/NethermindEth/rpcpeer/transport"
	"github.com/NethermindEth/rpcpeer/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHTTP(t *testing.T) *transport.HTTP {
	t.Helper()
	log := utils.NewNopZapLogger()
	return transport.NewHTTP(jsonrpc.NewPeer(nil, echoMethods(t), log), log)
}

func post(t *testing.T, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(got)
}

func TestHTTP(t *testing.T) {
	srv := httptest.NewServer(newTestHTTP(t))
	t.Cleanup(srv.Close)

	t.Run("request", func(t *testing.T) {
		status, got := post(t, srv.URL, `{"jsonrpc" : "2.0", "method" : "test_echo", "params" : [ "abc123" ], "id" : 1}`)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, `{"jsonrpc":"2.0","result":"abc123","id":1}`, got)
	})

	t.Run("notification", func(t *testing.T) {
		status, got := post(t, srv.URL, `{"jsonrpc" : "2.0", "method" : "test_echo", "params" : [ "abc123" ]}`)
		assert.Equal(t, http.StatusNoContent, status)
		assert.Empty(t, got)
	})

	t.Run("parse error", func(t *testing.T) {
		status, got := post(t, srv.URL, `{"jsonrpc": `)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, `{"jsonrpc":"2.0","error":{"code":-32700,"message":"Parse error","data":"unexpected end of JSON input"},"id":null}`, got)
	})

	t.Run("GET", func(t *testing.T) {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL, http.NoBody)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("PUT", func(t *testing.T) {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodPut, srv.URL, http.NoBody)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestHTTPReadLimit(t *testing.T) {
	srv := httptest.NewServer(newTestHTTP(t).WithReadLimit(16))
	t.Cleanup(srv.Close)

	status, _ := post(t, srv.URL, `{"jsonrpc":"2.0","method":"test_echo","params":["abc"],"id":1}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
}

func TestHTTPCORS(t *testing.T) {
	srv := httptest.NewServer(newTestHTTP(t).WithCORS([]string{"https://allowed.example"}))
	t.Cleanup(srv.Close)

	preflight := func(origin string) http.Header {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodOptions, srv.URL, http.NoBody)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		return resp.Header
	}

	assert.Equal(t, "https://allowed.example", preflight("https://allowed.example").Get("Access-Control-Allow-Origin"))
	assert.Empty(t, preflight("https://other.example").Get("Access-Control-Allow-Origin"))

	status, got := post(t, srv.URL, `{"jsonrpc":"2.0","method":"test_echo","params":["x"],"id":"a"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `{"jsonrpc":"2.0","result":"x","id":"a"}`, got)
}

func TestHTTPSender(t *testing.T) {
	log := utils.NewNopZapLogger()
	srv := httptest.NewServer(newTestHTTP(t))
	t.Cleanup(srv.Close)

	client := jsonrpc.NewPeer(nil, nil, log)
	client.WithSender(transport.NewHTTPSender(srv.URL, srv.Client(), client))

	var echoed string
	require.NoError(t, client.CallResult(t.Context(), "test_echo", []string{"over http"}, &echoed))
	assert.Equal(t, "over http", echoed)
	assert.Zero(t, client.Pending())

	require.NoError(t, client.Notice(t.Context(), "test_echo", []string{"ignored"}))

	t.Run("unexpected status", func(t *testing.T) {
		broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(broken.Close)

		sender := transport.NewHTTPSender(broken.URL, nil, client)
		err := sender.Send(t.Context(), []byte(`{"jsonrpc":"2.0","method":"x"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status 502 Bad Gateway")
	})
}

func TestHTTPService(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	service := transport.NewHTTPService(listener, newTestHTTP(t))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- service.Run(ctx)
	}()

	status, got := post(t, "http://"+listener.Addr().String(), `{"jsonrpc":"2.0","method":"test_echo","params":["svc"],"id":1}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `{"jsonrpc":"2.0","result":"svc","id":1}`, got)

	cancel()
	require.NoError(t, <-done)

	_, err = http.Post("http://"+listener.Addr().String(), "application/json", bytes.NewReader(nil)) //nolint:noctx
	require.Error(t, err)
}
