// Package tokens estimates prompt token counts for verbose output.
//
// The cl100k_base encoding is loaded on first use of [Count]. Loading may
// download the BPE ranks, so Count waits at most [LoadTimeout] for it and
// uses [Estimate] until the encoding is available.
package tokens

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

// LoadTimeout bounds how long the first Count call waits for the encoding.
var LoadTimeout = 3 * time.Second

var (
	once     sync.Once
	encoding atomic.Pointer[tiktoken.Tiktoken]
)

func loadEncoding() {
	once.Do(func() {
		done := make(chan struct{})
		go func() {
			defer close(done)
			enc, err := tiktoken.GetEncoding("cl100k_base")
			if err == nil {
				encoding.Store(enc)
			}
		}()
		select {
		case <-done:
		case <-time.After(LoadTimeout):
		}
	})
}

// Count returns the cl100k_base token count of text, falling back to Estimate.
func Count(text string) int {
	loadEncoding()
	if enc := encoding.Load(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return Estimate(text)
}

// Estimate returns max(runes/4, word count) without loading an encoding.
func Estimate(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	estimate := len([]rune(trimmed)) / 4
	if words := len(strings.Fields(trimmed)); estimate < words {
		estimate = words
	}
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}
