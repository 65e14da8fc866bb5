package transport

import (
	"context"
	"net"

	"github.com/NethermindEth/rpcpeer/utils"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
)

var _ Service = (*IPC)(nil)

// IPC serves every connection accepted on a unix socket with its own peer,
// speaking newline-delimited JSON.
type IPC struct {
	listener     net.Listener
	factory      PeerFactory
	log          utils.SimpleLogger
	connListener ConnListener
	readLimit    int
	concurrency  int
}

func NewIPC(endpoint string, factory PeerFactory, log utils.SimpleLogger) (*IPC, error) {
	listener, err := ListenIPC(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", endpoint)
	}
	return &IPC{
		listener:     listener,
		factory:      factory,
		log:          log,
		connListener: &SelectiveConnListener{},
		readLimit:    DefaultReadLimit,
		concurrency:  DefaultConcurrency,
	}, nil
}

func (i *IPC) WithConnListener(listener ConnListener) *IPC {
	i.connListener = listener
	return i
}

func (i *IPC) WithReadLimit(limit int) *IPC {
	i.readLimit = limit
	return i
}

func (i *IPC) Addr() net.Addr {
	return i.listener.Addr()
}

// Run accepts connections until ctx is cancelled, then closes the listener and
// every open connection and waits for them to be done.
func (i *IPC) Run(ctx context.Context) error {
	var wg conc.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg.Go(func() {
		<-ctx.Done()
		if err := i.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			i.log.Warnw("Failed to close IPC listener", "err", err)
		}
	})

	for {
		conn, err := i.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "accept IPC connection")
		}
		wg.Go(func() {
			i.serveConn(ctx, conn)
		})
	}
}

func (i *IPC) serveConn(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	i.log.Debugw("New IPC connection", "remote", remote)
	i.connListener.OnNewConnection(remote)
	defer i.connListener.OnDisconnect(remote)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			i.log.Warnw("Failed to close IPC connection", "err", err)
		}
	}()

	stream := NewStream(conn, conn, i.log).
		WithReadLimit(i.readLimit).
		WithConcurrency(i.concurrency)
	if err := stream.Serve(connCtx, i.factory(stream)); err != nil && connCtx.Err() == nil {
		i.log.Warnw("IPC connection failed", "remote", remote, "err", err)
	}
	i.log.Debugw("IPC connection closed", "remote", remote)
}
