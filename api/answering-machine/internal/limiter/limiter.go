// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_limiter

import (
	"context"
	"strconv"
	"strings"
	"sync"

	internal_type "github.com/rapidaai/voicemail/api/answering-machine/internal/type"
	"github.com/rapidaai/voicemail/pkg/commons"
)

const (
	// StorageKey is where the counter lives in the client store.
	StorageKey = "answering_machine_recording_count"

	DefaultMaxRecordings = 10
)

type incrementer interface {
	Incr(ctx context.Context, key string) (int64, error)
}

type recordingLimiter struct {
	mu     sync.Mutex
	store  CounterStore
	max    int
	logger commons.Logger
}

// NewRecordingLimiter gates recordings at max per client. A non-positive max
// falls back to DefaultMaxRecordings.
func NewRecordingLimiter(store CounterStore, max int, logger commons.Logger) internal_type.Limiter {
	if max <= 0 {
		max = DefaultMaxRecordings
	}
	return &recordingLimiter{store: store, max: max, logger: logger}
}

// read returns the stored count; known is false when the store failed.
func (l *recordingLimiter) read(ctx context.Context) (count int, known bool) {
	v, ok, err := l.store.Get(ctx, StorageKey)
	if err != nil {
		l.logger.Warnf("recording count unavailable, permitting: %v", err)
		return 0, false
	}
	if !ok {
		return 0, true
	}
	return parseCount(v), true
}

func parseCount(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// CanRecord is true when the count is below the maximum, or when the count
// cannot be read at all.
func (l *recordingLimiter) CanRecord(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	count, known := l.read(ctx)
	if !known {
		return true
	}
	return count < l.max
}

func (l *recordingLimiter) Increment(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if inc, ok := l.store.(incrementer); ok {
		n, err := inc.Incr(ctx, StorageKey)
		if err == nil {
			l.logger.Debugf("recording count incremented to %d", n)
			return nil
		}
		// INCR rejects non-integer values; fall through and overwrite
		l.logger.Debugf("atomic increment failed, rewriting counter: %v", err)
	}

	count, _ := l.read(ctx)
	if err := l.store.Set(ctx, StorageKey, strconv.Itoa(count+1)); err != nil {
		l.logger.Warnf("failed to persist recording count: %v", err)
		return err
	}
	l.logger.Debugf("recording count incremented to %d", count+1)
	return nil
}

func (l *recordingLimiter) Max() int { return l.max }

func (l *recordingLimiter) Count(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count, _ := l.read(ctx)
	return count
}

func (l *recordingLimiter) Remaining(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count, _ := l.read(ctx)
	if remaining := l.max - count; remaining > 0 {
		return remaining
	}
	return 0
}

// Reset clears the counter. Failures are logged and returned; callers are
// free to ignore them.
func (l *recordingLimiter) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.Delete(ctx, StorageKey); err != nil {
		l.logger.Warnf("failed to reset recording count: %v", err)
		return err
	}
	return nil
}
