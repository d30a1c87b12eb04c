// Package ratelimit provides token bucket rate limiting, globally or per
// client key.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket. It is safe for concurrent use.
//
// Tokens are added at refillRate per second up to maxTokens. Each request
// takes one token.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// New creates a full bucket holding maxTokens and refilling refillRate
// tokens per second.
func New(maxTokens, refillRate float64) *Limiter {
	return &Limiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// NewPerMinute creates a limiter allowing requestsPerMinute on average with
// a burst of two seconds worth of tokens, and never less than one.
func NewPerMinute(requestsPerMinute float64) *Limiter {
	perSecond := requestsPerMinute / 60
	return New(max(perSecond*2, 1), perSecond)
}

// refill must be called with mu held.
func (l *Limiter) refill() {
	now := time.Now()
	l.tokens = min(l.maxTokens, l.tokens+now.Sub(l.lastRefill).Seconds()*l.refillRate)
	l.lastRefill = now
}

// Allow takes a token if one is available. It never blocks.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is taken or ctx is done. A limiter that never
// refills returns ctx.Err() once empty.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		var wait time.Duration
		if l.refillRate > 0 {
			wait = time.Duration((1 - l.tokens) / l.refillRate * float64(time.Second))
		}
		l.mu.Unlock()

		if wait <= 0 {
			<-ctx.Done()
			return ctx.Err()
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Available returns the current number of tokens.
func (l *Limiter) Available() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	return l.tokens
}

// IsFull reports whether the bucket has refilled completely, which means
// the limiter has been idle.
func (l *Limiter) IsFull() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	return l.tokens >= l.maxTokens
}

// Reset refills the bucket.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tokens = l.maxTokens
	l.lastRefill = time.Now()
}
