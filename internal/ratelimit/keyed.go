package ratelimit

import (
	"sync"
	"time"
)

// Recorder receives limiter metrics. *metrics.Metrics implements it.
type Recorder interface {
	RecordRateLimitDrop(limiter string)
	SetRateLimitClients(limiter string, count int)
}

// KeyedConfig configures a KeyedLimiter.
type KeyedConfig struct {
	// Name labels the limiter in metrics, e.g. "probe".
	Name string

	Burst      float64 // bucket capacity per key
	RefillRate float64 // tokens per second per key

	// CleanupPeriod is how often idle keys are dropped. Zero disables
	// cleanup.
	CleanupPeriod time.Duration

	Metrics Recorder // optional
}

// KeyedLimiter keeps one token bucket per key, such as a client address.
// Keys whose bucket has refilled completely are idle and get dropped by a
// background loop until Stop is called.
type KeyedLimiter struct {
	mu      sync.RWMutex
	entries map[string]*Limiter
	config  KeyedConfig
	stopCh  chan struct{}
	once    sync.Once
}

// NewKeyedLimiter creates a KeyedLimiter and starts its cleanup loop.
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	kl := &KeyedLimiter{
		entries: make(map[string]*Limiter),
		config:  cfg,
		stopCh:  make(chan struct{}),
	}
	if cfg.CleanupPeriod > 0 {
		go kl.cleanupLoop()
	}
	return kl
}

// Allow takes a token from the bucket of key. The empty key is never
// limited.
func (kl *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}
	if kl.limiter(key).Allow() {
		return true
	}
	if kl.config.Metrics != nil {
		kl.config.Metrics.RecordRateLimitDrop(kl.config.Name)
	}
	return false
}

func (kl *KeyedLimiter) limiter(key string) *Limiter {
	kl.mu.RLock()
	l, ok := kl.entries[key]
	kl.mu.RUnlock()
	if ok {
		return l
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()
	if l, ok = kl.entries[key]; ok {
		return l
	}
	l = New(kl.config.Burst, kl.config.RefillRate)
	kl.entries[key] = l
	return l
}

// Available returns the tokens left for key, or Burst for an unseen key.
func (kl *KeyedLimiter) Available(key string) float64 {
	kl.mu.RLock()
	l, ok := kl.entries[key]
	kl.mu.RUnlock()
	if !ok {
		return kl.config.Burst
	}
	return l.Available()
}

// ActiveCount returns the number of tracked keys.
func (kl *KeyedLimiter) ActiveCount() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.entries)
}

// Cleanup drops idle keys and returns how many remain.
func (kl *KeyedLimiter) Cleanup() int {
	kl.mu.Lock()
	for key, l := range kl.entries {
		if l.IsFull() {
			delete(kl.entries, key)
		}
	}
	active := len(kl.entries)
	kl.mu.Unlock()

	if kl.config.Metrics != nil {
		kl.config.Metrics.SetRateLimitClients(kl.config.Name, active)
	}
	return active
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.Cleanup()
		}
	}
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (kl *KeyedLimiter) Stop() {
	kl.once.Do(func() { close(kl.stopCh) })
}
