package build

import (
	"io"
	"sync"
)

const DefaultMaxLogSize = 1024 * 1024 // 1MB

// LogBuffer keeps the last bytes written to it, up to a limit.
// The end of a toolchain's output is what explains a failure.
// It is safe for concurrent use.
type LogBuffer struct {
	mu        sync.Mutex
	buf       []byte
	max       int
	truncated bool
}

var _ io.Writer = (*LogBuffer)(nil)

// NewLogBuffer returns a LogBuffer that keeps up to max bytes.
// A non-positive max means DefaultMaxLogSize.
func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = DefaultMaxLogSize
	}
	return &LogBuffer{max: max}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if len(p) >= b.max {
		b.buf = append(b.buf[:0], p[len(p)-b.max:]...)
		b.truncated = true
		return n, nil
	}
	if overflow := len(b.buf) + len(p) - b.max; overflow > 0 {
		b.buf = append(b.buf[:0], b.buf[overflow:]...)
		b.truncated = true
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.truncated {
		return "[log truncated]\n" + string(b.buf)
	}
	return string(b.buf)
}
