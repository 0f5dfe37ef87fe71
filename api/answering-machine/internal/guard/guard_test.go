// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_guard

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/voicemail/pkg/commons"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-guard"),
		commons.Path(t.TempDir()),
		commons.Level("debug"),
	)
	require.NoError(t, err)
	return logger
}

func newManualGuard(t *testing.T) (DurationGuard, *ManualClock) {
	clock := NewManualClock(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	return NewDurationGuard(newTestLogger(t), WithClock(clock)), clock
}

func TestGuard_FiresOnceAtCeiling(t *testing.T) {
	g, clock := newManualGuard(t)
	var fired atomic.Int32
	done := make(chan struct{})

	g.Arm(clock.Now(), 3*time.Second, func() {
		fired.Add(1)
		close(done)
	})
	require.True(t, g.Armed())

	clock.Advance(time.Second)
	clock.Advance(time.Second)
	assert.Never(t, func() bool { return fired.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.Advance(time.Second)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("guard did not fire at the ceiling")
	}

	assert.Eventually(t, func() bool { return !g.Armed() }, time.Second, 5*time.Millisecond)
	clock.Advance(time.Second)
	clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, 0, clock.ActiveTickers())
}

func TestGuard_DisarmBeforeTickIsNoop(t *testing.T) {
	g, clock := newManualGuard(t)
	var fired atomic.Int32

	g.Arm(clock.Now(), time.Second, func() { fired.Add(1) })
	g.Disarm()
	clock.Advance(5 * time.Second)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, fired.Load())
	assert.False(t, g.Armed())
	assert.Equal(t, 0, clock.ActiveTickers())
}

func TestGuard_DisarmWhenNotArmed(t *testing.T) {
	g, _ := newManualGuard(t)
	assert.NotPanics(t, func() {
		g.Disarm()
		g.Disarm()
	})
}

func TestGuard_DisarmFromInsideCallback(t *testing.T) {
	g, clock := newManualGuard(t)
	done := make(chan struct{})

	g.Arm(clock.Now(), time.Second, func() {
		g.Disarm()
		close(done)
	})
	clock.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback deadlocked on Disarm")
	}
}

func TestGuard_RearmReplacesPrevious(t *testing.T) {
	g, clock := newManualGuard(t)
	var first, second atomic.Int32

	g.Arm(clock.Now(), time.Second, func() { first.Add(1) })
	g.Arm(clock.Now(), 10*time.Second, func() { second.Add(1) })
	assert.Equal(t, 1, clock.ActiveTickers())

	clock.Advance(2 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, first.Load())
	assert.Zero(t, second.Load())
	g.Disarm()
}

func TestGuard_SystemClock(t *testing.T) {
	g := NewDurationGuard(newTestLogger(t), WithTickInterval(5*time.Millisecond))
	done := make(chan struct{})

	g.Arm(time.Now(), 20*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("guard did not fire with the system clock")
	}
}
