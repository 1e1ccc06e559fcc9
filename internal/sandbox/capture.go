package sandbox

import "github.com/opensbx/coderun/internal/model"

// CappedBuffer accumulates bytes up to a cap, discarding the rest and
// appending a single truncation marker, per spec.md §4.4's output
// capture rule. It implements io.Writer and is shared by every
// Supervisor implementation that demultiplexes a stdout/stderr stream.
type CappedBuffer struct {
	cap       int
	buf       []byte
	truncated bool
}

// NewCappedBuffer creates a CappedBuffer bounded at capBytes.
func NewCappedBuffer(capBytes int) *CappedBuffer {
	return &CappedBuffer{cap: capBytes}
}

func (c *CappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if c.truncated {
		return n, nil
	}

	// contentCap leaves room for the marker so buf never exceeds c.cap
	// once truncated, satisfying spec.md §8's len(stdout) <= OUTPUT_CAP_BYTES.
	contentCap := c.cap - len(model.TruncationMarker)
	if contentCap < 0 {
		contentCap = 0
	}

	remaining := contentCap - len(c.buf)
	if remaining <= 0 {
		c.truncated = true
		c.buf = append(c.buf, []byte(model.TruncationMarker)...)
		return n, nil
	}

	if len(p) > remaining {
		c.buf = append(c.buf, p[:remaining]...)
		c.truncated = true
		c.buf = append(c.buf, []byte(model.TruncationMarker)...)
		return n, nil
	}

	c.buf = append(c.buf, p...)
	return n, nil
}

func (c *CappedBuffer) String() string {
	return string(c.buf)
}
