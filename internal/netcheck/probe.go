// Package netcheck provides a cached reachability probe.
package netcheck

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// DialFunc opens a connection. net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Probe checks that a known host is reachable and remembers the answer for
// a fixed window.
type Probe struct {
	address string
	timeout time.Duration
	window  time.Duration
	dial    DialFunc
	now     func() time.Time

	mu      sync.Mutex
	checked time.Time
	err     error
	valid   bool
}

// Option configures a Probe.
type Option func(*Probe)

// WithDialer replaces the TCP dialer.
func WithDialer(dial DialFunc) Option {
	return func(p *Probe) { p.dial = dial }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Probe) { p.now = now }
}

// New probes address over TCP. Results, good or bad, are reused for window.
func New(address string, timeout, window time.Duration, opts ...Option) *Probe {
	p := &Probe{
		address: address,
		timeout: timeout,
		window:  window,
		dial:    (&net.Dialer{}).DialContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check returns nil when the host was reachable at the last real probe.
func (p *Probe) Check(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.valid && now.Sub(p.checked) < p.window {
		return p.err
	}

	p.err = p.probe(ctx)
	p.checked = now
	p.valid = true
	return p.err
}

// Invalidate forces the next Check to dial.
func (p *Probe) Invalidate() {
	p.mu.Lock()
	p.valid = false
	p.mu.Unlock()
}

func (p *Probe) probe(ctx context.Context) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	conn, err := p.dial(ctx, "tcp", p.address)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", p.address, err)
	}
	conn.Close()
	return nil
}
