package process_test

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gridhome/energy-supervisor/process"
)

func TestTimestamper(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{
			input: "alpacas\nllamas\n",
			want:  "#1: alpacas\n#2: llamas\n",
		},
		{
			input: "partial line",
			want:  "#1: partial line",
		},
		{
			input: "foo\nbar",
			want:  "#1: foo\n#2: bar",
		},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			var lineCounter int32
			out := &bytes.Buffer{}

			pw := process.NewTimestamper(out, func(time.Time) string {
				lineNumber := atomic.AddInt32(&lineCounter, 1)
				return fmt.Sprintf("#%d: ", lineNumber)
			})

			n, err := pw.Write([]byte(tc.input))
			if err != nil {
				t.Fatalf("pw.Write([]byte(%q)) error = %v", tc.input, err)
			}

			if got, want := n, len(tc.input); got != want {
				t.Errorf("pw.Write([]byte(%q)) length = %d, want %d", tc.input, got, want)
			}

			if diff := cmp.Diff(tc.want, out.String()); diff != "" {
				t.Errorf("output diff (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTimestamperStampsAcrossWrites(t *testing.T) {
	var lineCounter int32
	out := &bytes.Buffer{}

	pw := process.NewTimestamper(out, func(time.Time) string {
		lineNumber := atomic.AddInt32(&lineCounter, 1)
		return fmt.Sprintf("#%d: ", lineNumber)
	})

	for _, chunk := range []string{"fir", "st\nsec", "ond\n"} {
		if _, err := pw.Write([]byte(chunk)); err != nil {
			t.Fatalf("pw.Write([]byte(%q)) error = %v", chunk, err)
		}
	}

	want := "#1: first\n#2: second\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("output diff (-want +got):\n%s", diff)
	}
}
