// Package fakerand provides a predictable Random implementation for testing.
// Successive reads continue through the sequence, so two prompt tokens drawn
// from the same source differ while staying reproducible across runs.
package fakerand

import (
	"sync"

	"github.com/acolita/mongo-shell-mcp/internal/ports"
)

// Random is a fake random generator that produces predictable output.
type Random struct {
	mu       sync.Mutex
	sequence []byte
	offset   int
}

// New creates a new fake random with the given sequence.
// If the sequence is nil, it defaults to sequential bytes 0-255.
func New(sequence []byte) *Random {
	if len(sequence) == 0 {
		sequence = make([]byte, 256)
		for i := range sequence {
			sequence[i] = byte(i)
		}
	}
	return &Random{sequence: sequence}
}

// NewSequential creates a fake random that returns 0, 1, 2, ..., 255, 0, 1, ...
func NewSequential() *Random {
	return New(nil)
}

// Read fills b with predictable bytes from the sequence.
func (r *Random) Read(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range b {
		b[i] = r.sequence[r.offset%len(r.sequence)]
		r.offset++
	}
	return len(b), nil
}

// Consumed returns how many bytes have been read so far.
func (r *Random) Consumed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offset
}

var _ ports.Random = (*Random)(nil)
