package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/NethermindEth/rpcpeer/jsonrpc"
	"github.com/NethermindEth/rpcpeer/utils"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sourcegraph/conc"
)

var _ http.Handler = (*HTTP)(nil)

// HTTP answers every POSTed message with the reply of a shared peer. Since a
// reply only exists for requests, a body made of notifications or responses
// gets 204 No Content.
type HTTP struct {
	peer      *jsonrpc.Peer
	log       utils.SimpleLogger
	readLimit int64
}

func NewHTTP(peer *jsonrpc.Peer, log utils.SimpleLogger) *HTTP {
	return &HTTP{
		peer:      peer,
		log:       log,
		readLimit: DefaultReadLimit,
	}
}

func (h *HTTP) WithReadLimit(limit int64) *HTTP {
	h.readLimit = limit
	return h
}

// WithCORS wraps the handler so browsers from the given origins may call it.
func (h *HTTP) WithCORS(allowedOrigins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(h)
}

// ServeHTTP processes an incoming HTTP request
func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		r.Close = true
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.readLimit))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		h.log.Warnw("Failed to read request body", "err", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	reply := h.peer.Handle(r.Context(), body)
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(reply); err != nil {
		h.log.Warnw("Failed to write response", "err", err)
	}
}

var _ jsonrpc.Sender = (*HTTPSender)(nil)

// HTTPSender POSTs every message to an endpoint and feeds the reply back to a
// peer, so Call works over plain HTTP.
type HTTPSender struct {
	url    string
	client *http.Client
	peer   *jsonrpc.Peer
}

// NewHTTPSender creates a sender delivering replies to peer. Bind it with
// peer.WithSender.
func NewHTTPSender(url string, client *http.Client, peer *jsonrpc.Peer) *HTTPSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSender{
		url:    url,
		client: client,
		peer:   peer,
	}
}

func (s *HTTPSender) Send(ctx context.Context, message []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return pkgerrors.Wrapf(err, "post to %s", s.url)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusOK:
	default:
		return fmt.Errorf("post to %s: unexpected status %s", s.url, resp.Status)
	}

	reply, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(err, "read reply")
	}
	if len(bytes.TrimSpace(reply)) == 0 {
		return nil
	}
	// The reply only carries responses, so nothing is sent back.
	return s.peer.Receive(ctx, reply)
}

var _ Service = (*HTTPService)(nil)

// HTTPService runs an http.Server on a listener until its context is done.
type HTTPService struct {
	srv      *http.Server
	listener net.Listener
}

func NewHTTPService(listener net.Listener, handler http.Handler) *HTTPService {
	return &HTTPService{
		srv: &http.Server{
			Addr:    listener.Addr().String(),
			Handler: handler,
			// ReadTimeout also sets ReadHeaderTimeout and IdleTimeout.
			ReadTimeout: 30 * time.Second,
		},
		listener: listener,
	}
}

func (h *HTTPService) Run(ctx context.Context) error {
	errCh := make(chan error)
	defer close(errCh)

	var wg conc.WaitGroup
	defer wg.Wait()
	wg.Go(func() {
		if err := h.srv.Serve(h.listener); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	})

	select {
	case <-ctx.Done():
		return h.srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
