// Package netcheck gates runs on host connectivity.
//
// The gate is a cooperative courtesy check, not an enforced precondition:
// a false "online" simply surfaces later as a fetch failure.
package netcheck

import (
	"context"
	"net"
	"time"
)

type Checker interface {
	Online(ctx context.Context) bool
}

// Assume reports a fixed answer, mirroring a host-level
// "has internet connection" flag.
type Assume struct {
	IsOnline bool
}

func (a Assume) Online(ctx context.Context) bool {
	_ = ctx
	return a.IsOnline
}

// Probe performs one short TCP dial per check.
type Probe struct {
	Addr    string
	Timeout time.Duration
}

const (
	defaultProbeAddr    = "1.1.1.1:443"
	defaultProbeTimeout = 5 * time.Second
)

func (p Probe) Online(ctx context.Context) bool {
	addr := p.Addr
	if addr == "" {
		addr = defaultProbeAddr
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
