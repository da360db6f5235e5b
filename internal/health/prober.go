// Package health tracks reachability of the three upstream services so
// the health endpoint can report degraded providers. It probes
// liveness only; query results are never cached.
package health

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Target is an upstream endpoint to probe.
type Target struct {
	Name string
	URL  string
}

// Prober periodically checks upstream reachability and records the
// results in a StatusStore.
type Prober struct {
	scheduler *gocron.Scheduler
	client    *http.Client
	store     *StatusStore
	targets   []Target
	interval  time.Duration
}

func NewProber(client *http.Client, store *StatusStore, targets []Target, interval time.Duration) *Prober {
	return &Prober{
		scheduler: gocron.NewScheduler(time.UTC),
		client:    client,
		store:     store,
		targets:   targets,
		interval:  interval,
	}
}

// Start schedules the periodic probe job and starts the scheduler.
func (p *Prober) Start() error {
	if len(p.targets) == 0 {
		log.Println("health: no probe targets configured; nothing to schedule")
		return nil
	}

	seconds := int(p.interval.Seconds())
	if seconds <= 0 {
		seconds = 300
	}

	_, err := p.scheduler.Every(seconds).Seconds().Do(p.probeAll)
	if err != nil {
		return err
	}

	p.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels future probe rounds.
func (p *Prober) Stop() {
	if p.scheduler != nil {
		p.scheduler.Stop()
	}
}

// probeAll checks every target concurrently and records each result.
func (p *Prober) probeAll() {
	var wg sync.WaitGroup
	for _, t := range p.targets {
		t := t
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.store.Set(p.probe(t))
		}()
	}
	wg.Wait()
}

// probe issues one GET against the target. Any response, including a
// client error, proves the upstream is reachable; only 5xx and
// transport failures mark it unhealthy.
func (p *Prober) probe(t Target) Status {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	checkedAt := time.Now().UTC()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return Status{Upstream: t.Name, Error: err.Error(), CheckedAt: checkedAt}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Status{Upstream: t.Name, Error: err.Error(), CheckedAt: checkedAt}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Status{
			Upstream:  t.Name,
			Error:     fmt.Sprintf("status %d", resp.StatusCode),
			CheckedAt: checkedAt,
		}
	}

	return Status{Upstream: t.Name, Healthy: true, CheckedAt: checkedAt}
}
