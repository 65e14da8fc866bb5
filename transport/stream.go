package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/NethermindEth/rpcpeer/jsonrpc"
	"github.com/NethermindEth/rpcpeer/utils"
	"github.com/pkg/errors"
)

// DefaultReadLimit is the largest message a connection accepts.
const DefaultReadLimit = 32 * utils.Megabyte

var _ jsonrpc.Sender = (*Stream)(nil)

// Stream carries newline-delimited JSON messages: one message per line in each
// direction.
type Stream struct {
	r           io.Reader
	log         utils.SimpleLogger
	readLimit   int
	concurrency int

	// mu serialises writes so lines never interleave.
	mu sync.Mutex
	w  io.Writer
}

func NewStream(r io.Reader, w io.Writer, log utils.SimpleLogger) *Stream {
	return &Stream{
		r:           r,
		w:           w,
		log:         log,
		readLimit:   DefaultReadLimit,
		concurrency: DefaultConcurrency,
	}
}

// WithReadLimit sets the longest line Serve accepts, in bytes.
func (s *Stream) WithReadLimit(limit int) *Stream {
	s.readLimit = limit
	return s
}

func (s *Stream) WithConcurrency(concurrency int) *Stream {
	s.concurrency = concurrency
	return s
}

// Send writes message followed by a newline.
func (s *Stream) Send(ctx context.Context, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line := make([]byte, 0, len(message)+1)
	line = append(line, message...)
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(line)
	return errors.Wrap(err, "write message")
}

// Serve reads lines until the reader is exhausted and hands every non-empty
// line to peer. It returns nil on a clean end of input. Cancelling ctx does
// not interrupt a blocked read: close the underlying reader for that.
func (s *Stream) Serve(ctx context.Context, peer *jsonrpc.Peer) error {
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, min(s.readLimit, 4*utils.Kilobyte)), s.readLimit)

	next := func() ([]byte, error) {
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			return bytes.Clone(line), nil
		}
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "read message")
		}
		return nil, io.EOF
	}

	err := receiveLoop(ctx, next, peer, s.concurrency, s.log)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
