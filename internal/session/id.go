package session

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

var idCounter atomic.Uint64

// counterEntropy fills ULID entropy with random bytes followed by the low 48
// bits of a process-wide counter, so two identifiers issued in the same
// millisecond still differ.
type counterEntropy struct{}

func (counterEntropy) Read(p []byte) (int, error) {
	const counterBytes = 6
	if len(p) < counterBytes {
		return 0, io.ErrShortBuffer
	}

	var c [8]byte
	binary.BigEndian.PutUint64(c[:], idCounter.Add(1))

	n := len(p) - counterBytes
	if _, err := rand.Read(p[:n]); err != nil {
		return 0, err
	}
	copy(p[n:], c[8-counterBytes:])
	return len(p), nil
}

// NewID issues a fresh session identifier: a millisecond timestamp followed
// by random bytes and an atomically incremented counter.
func NewID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), counterEntropy{})
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
