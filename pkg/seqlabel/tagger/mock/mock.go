// Package mock provides in-memory tagger.Tagger implementations for tests
// and dry runs.
package mock

import (
	"context"
	"sync"

	"github.com/annolab/seqlabel/pkg/seqlabel/tagger"
)

// Func adapts a function to tagger.Tagger.
type Func func(ctx context.Context, text string) ([]tagger.Mention, error)

// Tag implements tagger.Tagger.
func (f Func) Tag(ctx context.Context, text string) ([]tagger.Mention, error) {
	return f(ctx, text)
}

// Static always returns the same mentions.
func Static(mentions []tagger.Mention) Func {
	return func(ctx context.Context, text string) ([]tagger.Mention, error) {
		return mentions, nil
	}
}

// Scripted replays responses keyed by record text; unknown texts get no
// mentions. Calls records every text it saw, in order.
type Scripted struct {
	mu        sync.Mutex
	Responses map[string][]tagger.Mention
	Errors    map[string]error
	Calls     []string
}

// Tag implements tagger.Tagger.
func (s *Scripted) Tag(ctx context.Context, text string) ([]tagger.Mention, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, text)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := s.Errors[text]; ok {
		return nil, err
	}
	return s.Responses[text], nil
}

// CallCount returns how many calls the tagger has seen.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// Flaky fails the first FailCount calls per text with Err, then delegates to
// Inner. Exercises the driver's retry path.
type Flaky struct {
	Inner     tagger.Tagger
	Err       error
	FailCount int

	mu   sync.Mutex
	seen map[string]int
}

// Tag implements tagger.Tagger.
func (f *Flaky) Tag(ctx context.Context, text string) ([]tagger.Mention, error) {
	f.mu.Lock()
	if f.seen == nil {
		f.seen = make(map[string]int)
	}
	f.seen[text]++
	attempt := f.seen[text]
	f.mu.Unlock()

	if attempt <= f.FailCount {
		return nil, f.Err
	}
	return f.Inner.Tag(ctx, text)
}
