package tokenizer

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestHeuristicCount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"single char rounds up", "a", 1},
		{"exact multiple", "abcdefgh", 2},
		{"remainder rounds up", "abcdefghi", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Heuristic{}.Count(tt.text))
		})
	}
}

func TestTiktokenCount(t *testing.T) {
	tk, err := NewTiktoken()
	if err != nil {
		t.Skipf("cl100k_base encoding unavailable: %v", err)
	}

	assert.Equal(t, 0, tk.Count(""))
	assert.Greater(t, tk.Count("hello world"), 0)
	// a longer text must not count fewer tokens than a prefix of it
	short := tk.Count("summarize the conversation")
	long := tk.Count("summarize the conversation and keep every user preference")
	assert.GreaterOrEqual(t, long, short)
}

func TestNewFallsBackToHeuristic(t *testing.T) {
	logger := logrus.New()

	est := New(ModeHeuristic, logger)
	assert.IsType(t, Heuristic{}, est)

	// unknown modes resolve to the default estimator rather than failing
	est = New("", logger)
	assert.NotNil(t, est)
}
