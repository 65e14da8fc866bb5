package jsonrpc

import (
	"math"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces ids for outbound requests.
type IDGenerator interface {
	NextID() ID
}

type IDGeneratorFunc func() ID

func (f IDGeneratorFunc) NextID() ID {
	return f()
}

// SequentialIDs hands out 1, 2, 3, ... and wraps back to 1 after
// math.MaxInt32, so ids fit peers that store them as 32-bit integers.
// Uniqueness holds only within one generator.
type SequentialIDs struct {
	last atomic.Int32
}

func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

func (g *SequentialIDs) NextID() ID {
	for {
		last := g.last.Load()
		next := last + 1
		if last >= math.MaxInt32 || last < 0 {
			next = 1
		}
		if g.last.CompareAndSwap(last, next) {
			return NumberID(int64(next))
		}
	}
}

// UUIDs generates random string ids that do not collide across peers.
type UUIDs struct{}

func (UUIDs) NextID() ID {
	return StringID(uuid.NewString())
}
