package supervisor

import "sync"

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
    mu      sync.Mutex
    max     int
    buf     []byte
    dropped int64
}

func newTailBuffer(max int) *tailBuffer { return &tailBuffer{max: max} }

func (b *tailBuffer) Write(p []byte) (int, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    n := len(p)
    if n >= b.max {
        b.dropped += int64(len(b.buf) + n - b.max)
        b.buf = append(b.buf[:0], p[n-b.max:]...)
        return n, nil
    }
    if over := len(b.buf) + n - b.max; over > 0 {
        b.dropped += int64(over)
        b.buf = append(b.buf[:0], b.buf[over:]...)
    }
    b.buf = append(b.buf, p...)
    return n, nil
}

func (b *tailBuffer) String() string {
    b.mu.Lock()
    defer b.mu.Unlock()
    return string(b.buf)
}

// Dropped is the number of leading bytes discarded so far.
func (b *tailBuffer) Dropped() int64 {
    b.mu.Lock()
    defer b.mu.Unlock()
    return b.dropped
}
