// Package keypool rotates through a provider's API keys when a call is rate
// limited.
package keypool

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MaxAttempts bounds the number of calls Do makes for one operation.
const MaxAttempts = 3

var (
	// ErrNoKeys is returned when the pool was built without any key.
	ErrNoKeys = errors.New("no api keys configured")
	// ErrRateLimited is returned when every attempt hit a rate limit.
	ErrRateLimited = errors.New("rate limited on all attempts")
)

// Pool holds the API keys of one provider. It is safe for concurrent use.
type Pool struct {
	mu     sync.Mutex
	keys   []string
	cursor int
}

// New returns a pool over keys, skipping empty entries.
func New(keys []string) *Pool {
	p := &Pool{}
	for _, k := range keys {
		if k != "" {
			p.keys = append(p.keys, k)
		}
	}
	return p
}

// Len returns the number of keys in the pool.
func (p *Pool) Len() int {
	return len(p.keys)
}

// Current returns the key the next call will use.
func (p *Pool) Current() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return "", ErrNoKeys
	}
	return p.keys[p.cursor], nil
}

// rotate advances the cursor past key unless another caller already did.
func (p *Pool) rotate(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 || p.keys[p.cursor] != key {
		return
	}
	p.cursor = (p.cursor + 1) % len(p.keys)
}

// Do calls fn with the current key. When isRateLimited reports the returned
// error as a rate limit, the pool moves to the next key and retries, up to
// MaxAttempts calls in total. Any other error is returned as is.
func (p *Pool) Do(ctx context.Context, isRateLimited func(error) bool, fn func(key string) error) error {
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, err := p.Current()
		if err != nil {
			return err
		}
		lastErr = fn(key)
		if lastErr == nil {
			return nil
		}
		if !isRateLimited(lastErr) {
			return lastErr
		}
		p.rotate(key)
	}
	return fmt.Errorf("%w: %w", ErrRateLimited, lastErr)
}
