package politeness

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultNewDomain  = 600 * time.Millisecond
	DefaultSameDomain = 150 * time.Millisecond
)

// Pacer spaces requests per host. Sequential callers get a longer pause whenever the host changes
// and a shorter one otherwise; concurrent callers are additionally held to a minimum per-host
// spacing of SameDomain.
type Pacer struct {
	newDomain  time.Duration
	sameDomain time.Duration

	mu       sync.Mutex
	last     string
	limiters map[string]*rate.Limiter

	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer returns a pacer. Negative durations are treated as zero.
func NewPacer(newDomain, sameDomain time.Duration) *Pacer {
	if newDomain < 0 {
		newDomain = 0
	}
	if sameDomain < 0 {
		sameDomain = 0
	}
	return &Pacer{
		newDomain:  newDomain,
		sameDomain: sameDomain,
		limiters:   make(map[string]*rate.Limiter),
		sleep:      sleepCtx,
	}
}

// Wait blocks until a request to host may be issued.
func (p *Pacer) Wait(ctx context.Context, host string) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	d := p.sameDomain
	if host != p.last {
		d = p.newDomain
		p.last = host
	}
	lim := p.limiterLocked(host)
	p.mu.Unlock()

	if err := p.sleep(ctx, d); err != nil {
		return err
	}
	if lim != nil {
		return lim.Wait(ctx)
	}
	return nil
}

func (p *Pacer) limiterLocked(host string) *rate.Limiter {
	if p.sameDomain <= 0 {
		return nil
	}
	lim, ok := p.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(p.sameDomain), 1)
		p.limiters[host] = lim
	}
	return lim
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	return sleepCtx(ctx, d)
}
