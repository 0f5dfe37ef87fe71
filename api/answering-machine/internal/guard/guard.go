// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_guard

import (
	"sync"
	"time"

	"github.com/rapidaai/voicemail/pkg/commons"
)

// DefaultTickInterval is the guard's check granularity.
const DefaultTickInterval = time.Second

// DurationGuard signals once a recording reaches its ceiling. It never stops
// the recording itself.
type DurationGuard interface {
	// Arm starts the periodic check. Arming an armed guard replaces the
	// previous arming.
	Arm(sessionStart time.Time, ceiling time.Duration, onCeilingReached func())
	// Disarm cancels the periodic check. Safe to call when not armed. It does
	// not wait for an in-flight callback, so it may be called from inside one.
	Disarm()
	Armed() bool
}

type durationGuard struct {
	logger   commons.Logger
	clock    Clock
	interval time.Duration

	mu     sync.Mutex
	armed  bool
	gen    uint64
	ticker Ticker
	stop   chan struct{}
}

type Option func(*durationGuard)

func WithClock(clock Clock) Option {
	return func(g *durationGuard) { g.clock = clock }
}

func WithTickInterval(d time.Duration) Option {
	return func(g *durationGuard) {
		if d > 0 {
			g.interval = d
		}
	}
}

func NewDurationGuard(logger commons.Logger, opts ...Option) DurationGuard {
	g := &durationGuard{
		logger:   logger,
		clock:    SystemClock(),
		interval: DefaultTickInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *durationGuard) Arm(sessionStart time.Time, ceiling time.Duration, onCeilingReached func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disarmLocked()

	g.armed = true
	g.gen++
	g.ticker = g.clock.NewTicker(g.interval)
	g.stop = make(chan struct{})
	go g.watch(g.gen, g.ticker, g.stop, sessionStart, ceiling, onCeilingReached)
	g.logger.Debugf("duration guard armed: ceiling=%s", ceiling)
}

func (g *durationGuard) watch(gen uint64, ticker Ticker, stop chan struct{}, sessionStart time.Time, ceiling time.Duration, onCeilingReached func()) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
		}

		g.mu.Lock()
		if !g.armed || g.gen != gen {
			// disarmed between the tick and now: stale session
			g.mu.Unlock()
			return
		}
		elapsed := g.clock.Now().Sub(sessionStart)
		if elapsed < ceiling {
			g.mu.Unlock()
			continue
		}
		g.disarmLocked()
		g.mu.Unlock()

		g.logger.Infof("duration guard fired: elapsed=%s ceiling=%s", elapsed, ceiling)
		onCeilingReached()
		return
	}
}

func (g *durationGuard) Disarm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disarmLocked()
}

func (g *durationGuard) disarmLocked() {
	if !g.armed {
		return
	}
	g.armed = false
	g.gen++
	g.ticker.Stop()
	close(g.stop)
	g.ticker = nil
	g.stop = nil
}

func (g *durationGuard) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.armed
}
