package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/sirupsen/logrus"
)

// Offline loader so startup never fetches BPE data over the network
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Estimator turns text into a token-count estimate. Precision only shifts
// when summarization triggers fire; it never affects correctness, so the
// cheap heuristic is a legal stand-in for a real encoder.
type Estimator interface {
	Count(text string) int
}

// Modes accepted by New
const (
	ModeTiktoken  = "tiktoken"
	ModeHeuristic = "heuristic"
)

// Tiktoken counts with the cl100k_base encoding
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

var (
	tiktokenOnce sync.Once
	tiktokenInst *Tiktoken
	tiktokenErr  error
)

// NewTiktoken returns the shared cl100k_base estimator. The encoding is
// loaded once per process; it is immutable afterwards and safe for
// concurrent use.
func NewTiktoken() (*Tiktoken, error) {
	tiktokenOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			tiktokenErr = err
			return
		}
		tiktokenInst = &Tiktoken{enc: enc}
	})

	if tiktokenErr != nil {
		return nil, tiktokenErr
	}
	return tiktokenInst, nil
}

// Count returns the number of tokens in text
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Heuristic is the characters/4 rule, rounded up
type Heuristic struct{}

// Count estimates tokens as ceil(len/4)
func (Heuristic) Count(text string) int {
	return (len(text) + 3) / 4
}

// New selects the estimator for the configured mode. An encoding that fails
// to initialise degrades to the heuristic with a warning rather than
// refusing to start.
func New(mode string, logger *logrus.Logger) Estimator {
	if mode == ModeHeuristic {
		return Heuristic{}
	}

	tk, err := NewTiktoken()
	if err != nil {
		logger.WithError(err).Warn("tiktoken encoding unavailable, using heuristic token estimates")
		return Heuristic{}
	}
	return tk
}
