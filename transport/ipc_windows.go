//go:build windows

package transport

import (
	"context"
	"errors"
	"net"
)

// TODO: named pipes need github.com/Microsoft/go-winio.
var errNotSupported = errors.New("ipc: windows not supported")

func ListenIPC(_ string) (net.Listener, error) {
	return nil, errNotSupported
}

func DialIPC(_ context.Context, _ string) (net.Conn, error) {
	return nil, errNotSupported
}
