package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTagsStringSlice(t *testing.T) {
	tags := Tags{
		"child":  "worker",
		"signal": "SIG TERM!",
		"":       "dropped",
		"also":   "",
	}
	assert.Equal(t, []string{"child:worker", "signal:SIG_TERM_"}, tags.StringSlice())
}

func TestScopeWithMergesTags(t *testing.T) {
	c := NewCollector(nil, CollectorConfig{})
	s := c.Scope(Tags{"child": "worker"}).With(Tags{"signal": "SIGTERM"})
	assert.Equal(t, Tags{"child": "worker", "signal": "SIGTERM"}, s.Tags)
}

func TestNilScopeIsSafe(t *testing.T) {
	var s *Scope
	s.Count("child.started", 1)
	s.Timing("child.runtime", time.Second)
	assert.Nil(t, s.With(Tags{"a": "b"}))
}

func TestStoppedCollectorScopeIsSafe(t *testing.T) {
	c := NewCollector(nil, CollectorConfig{})
	s := c.Scope(nil)
	s.Count("child.started", 1)
	s.Timing("child.runtime", time.Second)
}
