package process

import (
	"io"
	"time"
)

// Timestamper writes a timestamp at the start of every line written through
// it, using the format function f.
type Timestamper struct {
	w       io.Writer
	f       func(time.Time) string
	pending bool
}

func NewTimestamper(w io.Writer, f func(time.Time) string) *Timestamper {
	return &Timestamper{
		w:       w,
		f:       f,
		pending: true,
	}
}

func (t *Timestamper) Write(data []byte) (int, error) {
	out := make([]byte, 0, len(data))

	for _, b := range data {
		// The timestamp for a line is stamped when the first byte of the line
		// arrives, not when the previous line ended.
		if t.pending {
			out = append(out, []byte(t.f(time.Now()))...)
			t.pending = false
		}
		out = append(out, b)
		if b == '\n' {
			t.pending = true
		}
	}

	if _, err := t.w.Write(out); err != nil {
		return 0, err
	}
	return len(data), nil
}
