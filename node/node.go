// Package node assembles a serving rpcpeer process: the built-in method table
// exposed over every configured transport, plus metrics.
package node

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"reflect"

	"github.com/NethermindEth/rpcpeer/config"
	"github.com/NethermindEth/rpcpeer/jsonrpc"
	"github.com/NethermindEth/rpcpeer/metrics"
	"github.com/NethermindEth/rpcpeer/transport"
	"github.com/NethermindEth/rpcpeer/utils"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc"
)

const (
	httpService      = "http"
	websocketService = "ws"
	ipcService       = "ipc"
	metricsService   = "metrics"
	stdioService     = "stdio"
)

var errNoTransport = errors.New("no transport enabled (use --stdio, --http-addr, --ws-addr or --ipc-path)")

type service struct {
	name string
	addr net.Addr
	transport.Service
}

type Node struct {
	cfg     *config.Config
	log     utils.SimpleLogger
	version string

	methods      *jsonrpc.Methods
	listener     jsonrpc.EventListener
	connListener func(transportName string) transport.ConnListener
	services     []service

	stdin  io.Reader
	stdout io.Writer
}

// New sets up every service enabled by cfg. Listeners are opened here, so
// addresses are known before Run.
func New(cfg *config.Config, version string, log utils.SimpleLogger) (*Node, error) {
	if !cfg.Stdio && cfg.HTTPAddr == "" && cfg.WebsocketAddr == "" && cfg.IPCPath == "" {
		return nil, errNoTransport
	}

	methods, err := Methods(log)
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:      cfg,
		log:      log,
		version:  version,
		methods:  methods.WithValidator(validator.New()),
		listener: &jsonrpc.SelectiveListener{},
		connListener: func(string) transport.ConnListener {
			return &transport.SelectiveConnListener{}
		},
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}

	var registry *prometheus.Registry
	if cfg.MetricsAddr != "" {
		registry = metrics.PrometheusRegistry()
		makeNodeMetrics(registry, version, methods.Names())
		n.listener = metrics.NewPeerListener(registry)
		n.connListener = func(transportName string) transport.ConnListener {
			return metrics.NewConnListener(registry, transportName)
		}
	}

	if cfg.HTTPAddr != "" {
		if err = n.addHTTPService(httpService, cfg.HTTPAddr, n.makeRPCOverHTTP()); err != nil {
			return nil, n.closeOnError(err)
		}
	}
	if cfg.WebsocketAddr != "" {
		if err = n.addHTTPService(websocketService, cfg.WebsocketAddr, n.makeRPCOverWebsocket()); err != nil {
			return nil, n.closeOnError(err)
		}
	}
	if cfg.IPCPath != "" {
		ipc, ipcErr := transport.NewIPC(cfg.IPCPath, n.newPeer, log)
		if ipcErr != nil {
			return nil, n.closeOnError(ipcErr)
		}
		ipc.WithReadLimit(cfg.ReadLimit).WithConnListener(n.connListener(ipcService))
		n.services = append(n.services, service{name: ipcService, addr: ipc.Addr(), Service: ipc})
	}
	if cfg.MetricsAddr != "" {
		if err = n.addHTTPService(metricsService, cfg.MetricsAddr, makeMetrics(registry, &cfg.LogLevel)); err != nil {
			return nil, n.closeOnError(err)
		}
	}
	return n, nil
}

// WithStdio replaces the standard input and output used by the stdio service.
func (n *Node) WithStdio(in io.Reader, out io.Writer) *Node {
	n.stdin = in
	n.stdout = out
	return n
}

// Addr returns the address the named service listens on, nil when it is not
// enabled.
func (n *Node) Addr(name string) net.Addr {
	for _, s := range n.services {
		if s.name == name {
			return s.addr
		}
	}
	return nil
}

func (n *Node) newPeer(sender jsonrpc.Sender) *jsonrpc.Peer {
	return jsonrpc.NewPeer(sender, n.methods, n.log).
		WithTimeout(n.cfg.Timeout).
		WithIDGen(n.cfg.NewIDGenerator()).
		WithListener(n.listener)
}

func (n *Node) addHTTPService(name, addr string, handler http.Handler) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	n.services = append(n.services, service{
		name:    name,
		addr:    listener.Addr(),
		Service: transport.NewHTTPService(listener, handler),
	})
	return nil
}

// closeOnError releases the listeners opened so far by New.
func (n *Node) closeOnError(err error) error {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, s := range n.services {
		if runErr := s.Run(ctx); runErr != nil {
			n.log.Warnw("Failed to close service", "name", s.name, "err", runErr)
		}
	}
	return err
}

// Run starts every service and blocks until ctx is done or one of them
// returns. A service error is logged and stops the others.
func (n *Node) Run(ctx context.Context) {
	services := n.services
	if n.cfg.Stdio {
		stream := transport.NewStream(n.stdin, n.stdout, n.log).
			WithReadLimit(n.cfg.ReadLimit).
			WithConcurrency(n.cfg.Concurrency)
		services = append(services, service{
			name:    stdioService,
			Service: &stdio{stream: stream, peer: n.newPeer(stream), in: n.stdin},
		})
	}

	for _, s := range services {
		if s.addr != nil {
			n.log.Infow("Listening", "service", s.name, "addr", s.addr.String())
		}
	}
	n.log.Infow("Serving methods", "methods", n.methods.Names(), "version", n.version,
		"read-limit", utils.DataSize(n.cfg.ReadLimit).String())

	ctx, cancel := context.WithCancel(ctx)
	wg := conc.NewWaitGroup()
	for _, s := range services {
		wg.Go(func() {
			if err := s.Run(ctx); err != nil {
				n.log.Errorw("Service error", "name", reflect.TypeOf(s.Service), "err", err)
			}
			// stdio ends with its input, taking the node down with it.
			cancel()
		})
	}
	defer wg.Wait()

	<-ctx.Done()
	cancel()
	n.log.Infow("Shutting down rpcpeer...")
}

var _ transport.Service = (*stdio)(nil)

// stdio serves one peer over the process' standard streams.
type stdio struct {
	stream *transport.Stream
	peer   *jsonrpc.Peer
	in     io.Reader
}

func (s *stdio) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.stream.Serve(ctx, s.peer)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		// A read blocked on a terminal may outlive Close, so the reading
		// goroutine is not waited for.
		if closer, ok := s.in.(io.Closer); ok {
			return closer.Close()
		}
		return nil
	}
}
