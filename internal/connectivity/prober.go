package connectivity

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Pinger checks that the storefront can be reached.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober turns periodic pings into reachability signals for a Monitor.
type Prober struct {
	pinger   Pinger
	monitor  *Monitor
	clock    clockwork.Clock
	interval time.Duration
	logger   *zap.Logger
}

// NewProber creates a Prober pinging every interval.
func NewProber(pinger Pinger, monitor *Monitor, clock clockwork.Clock, interval time.Duration, logger *zap.Logger) *Prober {
	return &Prober{
		pinger:   pinger,
		monitor:  monitor,
		clock:    clock,
		interval: interval,
		logger:   logger,
	}
}

// Probe pings once and reports the outcome to the monitor.
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	err := p.pinger.Ping(ctx)
	if err != nil {
		p.logger.Debug("storefront unreachable", zap.Error(err))
	}
	online := err == nil
	p.monitor.Report(online)
	return online
}

// Run probes immediately and then on every tick until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.Probe(ctx)
		}
	}
}
