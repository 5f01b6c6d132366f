// Package tokens counts prompt tokens and clips line-oriented prompt
// sections to a budget.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts the tokens in a piece of text.
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts with a tiktoken encoding. Gemini has no local
// tokenizer; cl100k_base tracks it closely enough for budgeting.
type TiktokenCounter struct {
	codec tokenizer.Codec
}

var (
	defaultOnce    sync.Once
	defaultCounter Counter
)

// NewTiktokenCounter loads the cl100k_base encoding.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}
	return &TiktokenCounter{codec: codec}, nil
}

// Count implements Counter.
func (c *TiktokenCounter) Count(text string) int {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return estimate(text, defaultCharsPerToken)
	}
	return len(ids)
}

const defaultCharsPerToken = 4.0

// Estimator approximates token counts from character length.
type Estimator struct {
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: defaultCharsPerToken}
}

// Count implements Counter.
func (e *Estimator) Count(text string) int {
	return estimate(text, e.CharsPerToken)
}

func estimate(text string, charsPerToken float64) int {
	if charsPerToken <= 0 {
		charsPerToken = defaultCharsPerToken
	}
	return int(float64(len(text))/charsPerToken + 0.5)
}

// Default returns a shared tiktoken counter, or the estimator when the
// encoding cannot be loaded.
func Default() Counter {
	defaultOnce.Do(func() {
		if c, err := NewTiktokenCounter(); err == nil {
			defaultCounter = c
		} else {
			defaultCounter = NewEstimator()
		}
	})
	return defaultCounter
}

// Budget clips prompt sections to a token limit.
type Budget struct {
	counter Counter
	limit   int
}

// NewBudget returns a budget of limit tokens. A limit <= 0 disables
// clipping. A nil counter uses Default.
func NewBudget(limit int, counter Counter) *Budget {
	if counter == nil {
		counter = Default()
	}
	return &Budget{counter: counter, limit: limit}
}

// Limit returns the configured limit.
func (b *Budget) Limit() int { return b.limit }

// Count counts text with the budget's counter.
func (b *Budget) Count(text string) int {
	return b.counter.Count(text)
}

// ClipLines joins lines with newlines, keeping as many leading lines as fit
// in the budget. When lines are dropped a "... (N more)" line is appended.
// It returns the text and the number of dropped lines.
func (b *Budget) ClipLines(lines []string) (string, int) {
	if b == nil || b.limit <= 0 {
		return strings.Join(lines, "\n"), 0
	}

	var sb strings.Builder
	used := 0
	for i, line := range lines {
		cost := b.counter.Count(line) + 1
		// Reserve room for the trailer.
		reserve := 0
		if i < len(lines)-1 {
			reserve = b.counter.Count(trailer(len(lines)-i)) + 1
		}
		if used+cost+reserve > b.limit && i > 0 {
			dropped := len(lines) - i
			sb.WriteString("\n")
			sb.WriteString(trailer(dropped))
			return sb.String(), dropped
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(line)
		used += cost
	}
	return sb.String(), 0
}

func trailer(n int) string {
	return fmt.Sprintf("... (%d more)", n)
}
