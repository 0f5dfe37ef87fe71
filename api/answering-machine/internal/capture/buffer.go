// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_capture

import (
	"sync"
	"time"

	"github.com/rapidaai/voicemail/pkg/commons"
)

// chunk is one encoded fragment as emitted by the encoder, stamped with its
// arrival time relative to Start().
type chunk struct {
	Offset time.Duration
	Data   []byte
}

// chunkBuffer collects encoded chunks in arrival order until the encoder is
// finalized.
type chunkBuffer struct {
	logger    commons.Logger
	mu        sync.Mutex
	startTime time.Time
	started   bool
	chunks    []chunk
	size      int
	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time
}

func newChunkBuffer(logger commons.Logger) *chunkBuffer {
	return &chunkBuffer{
		logger: logger,
		clock:  time.Now,
	}
}

// Start marks the beginning of the encoded timeline.
func (b *chunkBuffer) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.startTime = b.clock()
	b.started = true
}

// Push appends a copy of data. Empty chunks are ignored.
func (b *chunkBuffer) Push(data []byte) {
	if len(data) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	offset := time.Duration(0)
	if b.started {
		offset = b.clock().Sub(b.startTime)
	}

	// Copy to avoid caller mutations.
	buf := make([]byte, len(data))
	copy(buf, data)

	b.chunks = append(b.chunks, chunk{Offset: offset, Data: buf})
	b.size += len(buf)
}

// Write lets the buffer sit directly behind an io.Copy.
func (b *chunkBuffer) Write(p []byte) (int, error) {
	b.Push(p)
	return len(p), nil
}

func (b *chunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Persist concatenates every chunk into one contiguous payload. An empty
// buffer yields an empty payload rather than an error; the controller decides
// what a silent recording means.
func (b *chunkBuffer) Persist() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, 0, b.size)
	for _, c := range b.chunks {
		out = append(out, c.Data...)
	}

	elapsed := time.Duration(0)
	if b.started {
		elapsed = b.clock().Sub(b.startTime)
	}
	first, last := b.spanLocked()
	b.logger.Debugf("capture persist: bytes=%d, chunks=%d, first=%.2fs, last=%.2fs, elapsed=%.2fs",
		len(out), len(b.chunks), first.Seconds(), last.Seconds(), elapsed.Seconds())
	return out
}

// Span returns the offsets of the first and last chunk. A gap between the
// last chunk and the end of recording means the encoder stalled.
func (b *chunkBuffer) Span() (first, last time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spanLocked()
}

func (b *chunkBuffer) spanLocked() (first, last time.Duration) {
	if len(b.chunks) == 0 {
		return 0, 0
	}
	return b.chunks[0].Offset, b.chunks[len(b.chunks)-1].Offset
}
