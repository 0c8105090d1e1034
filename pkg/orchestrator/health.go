package orchestrator

import (
	"context"
	"sync"
)

// Health reports the orchestrator's ability to serve requests.
type Health struct {
	// Healthy is true when at least one provider is reachable.
	Healthy bool `json:"healthy"`

	// Providers maps provider key to reachability.
	Providers map[string]bool `json:"providers"`

	// ActiveSessions counts requests currently in flight.
	ActiveSessions int `json:"active_sessions"`
}

// HealthCheck probes every registered provider concurrently and reports
// per-provider reachability plus the in-flight session count.
func (o *Orchestrator) HealthCheck(ctx context.Context) *Health {
	providers := o.providers.List()
	statuses := make(map[string]bool, len(providers))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, p := range providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			up := p.Healthy(ctx)
			mu.Lock()
			statuses[p.Name()] = up
			mu.Unlock()
		}()
	}
	wg.Wait()

	healthy := false
	for _, up := range statuses {
		if up {
			healthy = true
			break
		}
	}

	return &Health{
		Healthy:        healthy,
		Providers:      statuses,
		ActiveSessions: o.sessions.Count(),
	}
}
