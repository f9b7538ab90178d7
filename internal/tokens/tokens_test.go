package tokens

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"hi", 1},
		{"one two three", 3},
		{"abcdefghijklmnopqrstuvwxyz", 6},
	}
	for _, tt := range tests {
		if got := Estimate(tt.in); got != tt.want {
			t.Errorf("Estimate(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

type blockingLoader struct {
	release chan struct{}
}

func (l blockingLoader) LoadTiktokenBpe(string) (map[string]int, error) {
	<-l.release
	return nil, errors.New("offline")
}

func TestCountDoesNotWaitForSlowEncodingLoad(t *testing.T) {
	loader := blockingLoader{release: make(chan struct{})}
	defer close(loader.release)
	tiktoken.SetBpeLoader(loader)

	once = sync.Once{}
	encoding.Store(nil)
	orig := LoadTimeout
	LoadTimeout = 20 * time.Millisecond
	t.Cleanup(func() { LoadTimeout = orig })

	start := time.Now()
	text := "one two three four"
	if got, want := Count(text), Estimate(text); got != want {
		t.Errorf("Count = %d, want estimate %d", got, want)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Count blocked for %v", elapsed)
	}
}
