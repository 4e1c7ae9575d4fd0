// Package ratelimit keeps per-key token buckets, used to sample noisy log lines.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"topicmon/pkg/metrics"
)

type limiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

type Config struct {
	Every  time.Duration
	Burst  int
	MaxAge time.Duration
}

func DefaultConfig() Config {
	return Config{
		Every:  time.Second,
		Burst:  5,
		MaxAge: 10 * time.Minute,
	}
}

// Sampler hands out one limiter per key. Idle keys are evicted lazily on
// access once MaxAge has passed since the last sweep.
type Sampler struct {
	name      string
	config    Config
	mu        sync.RWMutex
	limiters  map[string]*limiter
	lastSweep time.Time
	now       func() time.Time
}

func NewSampler(name string, config Config) *Sampler {
	if config.Every <= 0 {
		config.Every = DefaultConfig().Every
	}
	if config.Burst <= 0 {
		config.Burst = DefaultConfig().Burst
	}
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultConfig().MaxAge
	}
	return &Sampler{
		name:      name,
		config:    config,
		limiters:  make(map[string]*limiter),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Allow reports whether an event for key may be emitted now.
func (s *Sampler) Allow(key string) bool {
	now := s.now()

	s.mu.RLock()
	l, exists := s.limiters[key]
	s.mu.RUnlock()

	if !exists {
		s.mu.Lock()
		l, exists = s.limiters[key]
		if !exists {
			l = &limiter{
				limiter:  rate.NewLimiter(rate.Every(s.config.Every), s.config.Burst),
				lastSeen: now,
			}
			s.limiters[key] = l
		}
		s.sweepLocked(now)
		s.mu.Unlock()
	}

	l.mu.Lock()
	l.lastSeen = now
	l.mu.Unlock()

	if !l.limiter.AllowN(now, 1) {
		metrics.IncLogsSuppressed(s.name)
		return false
	}
	return true
}

func (s *Sampler) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < s.config.MaxAge {
		return
	}
	s.lastSweep = now
	for key, l := range s.limiters {
		l.mu.Lock()
		lastSeen := l.lastSeen
		l.mu.Unlock()
		if now.Sub(lastSeen) > s.config.MaxAge {
			delete(s.limiters, key)
		}
	}
}

func (s *Sampler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.limiters)
}
