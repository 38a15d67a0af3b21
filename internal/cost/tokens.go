package cost

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens in a piece of text.
type TokenCounter interface {
	CountTokens(text string) (int, error)
}

// TiktokenCounter counts with a tiktoken encoding. The encoding is loaded on
// first use, which may download its BPE ranks.
type TiktokenCounter struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	initErr  error
}

// NewTiktokenCounter creates a lazily initialised counter. An empty encoding
// selects cl100k_base.
func NewTiktokenCounter(encoding string) *TiktokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &TiktokenCounter{encoding: encoding}
}

func (c *TiktokenCounter) init() error {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.initErr = fmt.Errorf("init tiktoken encoding %s: %w", c.encoding, err)
			return
		}
		c.enc = enc
	})
	return c.initErr
}

func (c *TiktokenCounter) CountTokens(text string) (int, error) {
	if err := c.init(); err != nil {
		return 0, err
	}
	return len(c.enc.Encode(text, nil, nil)), nil
}

// HeuristicCounter approximates four characters per token.
type HeuristicCounter struct{}

func (HeuristicCounter) CountTokens(text string) (int, error) {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0, nil
	}
	if n < 4 {
		return 1, nil
	}
	return n / 4, nil
}

// Estimator fills in token usage for providers that do not report it.
type Estimator struct {
	primary  TokenCounter
	fallback TokenCounter
}

// NewEstimator uses primary and degrades to the heuristic when it fails. A nil
// primary uses the heuristic only.
func NewEstimator(primary TokenCounter) *Estimator {
	return &Estimator{primary: primary, fallback: HeuristicCounter{}}
}

// Estimate returns the token count of text.
func (e *Estimator) Estimate(text string) int {
	if e.primary != nil {
		if n, err := e.primary.CountTokens(text); err == nil {
			return n
		}
	}
	n, _ := e.fallback.CountTokens(text)
	return n
}
