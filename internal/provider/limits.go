package provider

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/alexr72/wpcv/internal/agent"
)

type agentLimits struct {
	concurrency *semaphore.Weighted
	rate        *rate.Limiter
}

// limiterSet holds the per-agent concurrency and request-rate limits, created on first use.
type limiterSet struct {
	mu     sync.Mutex
	agents map[string]*agentLimits
}

func (s *limiterSet) get(a agent.Agent) *agentLimits {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.agents == nil {
		s.agents = make(map[string]*agentLimits)
	}

	if limits, ok := s.agents[a.Name]; ok {
		return limits
	}

	limits := &agentLimits{}
	if a.Concurrency > 0 {
		limits.concurrency = semaphore.NewWeighted(int64(a.Concurrency))
	}
	if a.RequestsPerMinute > 0 {
		limits.rate = rate.NewLimiter(rate.Limit(float64(a.RequestsPerMinute)/60), 1)
	}

	s.agents[a.Name] = limits
	return limits
}

// acquire blocks until the agent has a free slot. The returned release must be called once.
func (s *limiterSet) acquire(ctx context.Context, a agent.Agent) (func(), error) {
	limits := s.get(a)

	if limits.concurrency != nil {
		if err := limits.concurrency.Acquire(ctx, 1); err != nil {
			return func() {}, err
		}
	}

	release := func() {
		if limits.concurrency != nil {
			limits.concurrency.Release(1)
		}
	}

	return release, nil
}

// wait paces one attempt against the agent's request rate.
func (s *limiterSet) wait(ctx context.Context, a agent.Agent) error {
	limits := s.get(a)
	if limits.rate == nil {
		return nil
	}
	return limits.rate.Wait(ctx)
}
