//go:build !windows

package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
)

const (
	// http://man7.org/linux/man-pages/man7/unix.7.html
	maxIPCPathSize = int(108)
)

var errPathTooLong = errors.New("path too long")

// ListenIPC listens on a unix socket at endpoint, replacing any stale socket
// file. The socket is only accessible to the current user.
func ListenIPC(endpoint string) (net.Listener, error) {
	// path + terminator
	if len(endpoint)+1 > maxIPCPathSize {
		return nil, errPathTooLong
	}
	if err := preparePath(endpoint); err != nil {
		return nil, err
	}
	l, err := net.Listen("unix", endpoint)
	if err != nil {
		return nil, err
	}
	return l, os.Chmod(endpoint, 0o600)
}

func DialIPC(ctx context.Context, endpoint string) (net.Conn, error) {
	return new(net.Dialer).DialContext(ctx, "unix", endpoint)
}

func preparePath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o751); err != nil {
		return err
	}
	if err := os.Remove(path); !os.IsNotExist(err) {
		return err
	}
	return nil
}
