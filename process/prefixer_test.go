package process_test

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/gridhome/energy-supervisor/process"
	"github.com/stretchr/testify/assert"
)

func TestPrefixer(t *testing.T) {
	for _, tc := range []struct {
		input, expected string
	}{
		{"alpacas\nllamas\n", "#1: alpacas\n#2: llamas\n#3: "},
		{"no newline at all", "#1: no newline at all"},
		{"trailing data\nafter newline", "#1: trailing data\n#2: after newline"},
	} {
		t.Run("", func(tt *testing.T) {
			var lineCounter int32
			out := &bytes.Buffer{}

			pw := process.NewPrefixer(out, func() string {
				lineNumber := atomic.AddInt32(&lineCounter, 1)
				return fmt.Sprintf("#%d: ", lineNumber)
			})

			n, err := pw.Write([]byte(tc.input))
			if err != nil {
				tt.Fatal(err)
			}

			if expected := len(tc.input); n != expected {
				tt.Fatalf("Short write: %d vs expected %d", n, expected)
			}

			assert.Equal(tt, tc.expected, out.String())
		})
	}
}
