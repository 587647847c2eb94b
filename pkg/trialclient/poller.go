package trialclient

import (
	"context"
	"sync"
	"time"

	"smallbiznis-crm/services/trial"

	"go.uber.org/zap"
)

// Snapshot is the last applied refresh. Status is nil when that refresh failed.
type Snapshot struct {
	Generation uint64
	Status     *trial.TrialStatus
	Banner     trial.Banner
	FetchedAt  time.Time
}

// Poller keeps a Snapshot fresh. A newer Refresh cancels the one in flight and
// only the newest result is applied.
type Poller struct {
	client   *Client
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	current  Snapshot
	onChange func(Snapshot)
}

func NewPoller(client *Client, interval time.Duration) *Poller {
	return &Poller{
		client:   client,
		interval: interval,
		now:      time.Now,
		current:  Snapshot{Banner: trial.HiddenBanner()},
	}
}

// OnChange registers a callback invoked with every applied snapshot.
func (p *Poller) OnChange(fn func(Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

func (p *Poller) Current() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Refresh fetches now. It reports false when a newer refresh superseded it.
func (p *Poller) Refresh(ctx context.Context) (Snapshot, bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	gen := p.gen
	p.cancel = cancel
	p.mu.Unlock()

	status, err := p.client.Fetch(ctx)

	snap := Snapshot{Generation: gen, FetchedAt: p.now()}
	if err != nil {
		snap.Banner = trial.HiddenBanner()
	} else {
		snap.Status = &status
		snap.Banner = p.client.Render(status)
	}

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return snap, false
	}
	if err != nil {
		zap.L().Warn("trial status refresh failed", zap.Uint64("generation", gen), zap.Error(err))
	}
	p.current = snap
	p.cancel = nil
	onChange := p.onChange
	p.mu.Unlock()

	if onChange != nil {
		onChange(snap)
	}
	return snap, true
}

// Run refreshes immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.Refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}
