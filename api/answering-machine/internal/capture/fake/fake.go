// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package fake provides an in-memory capture session that produces a canned
// artifact and counts every hardware touch.
package fake

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	internal_type "github.com/rapidaai/voicemail/api/answering-machine/internal/type"
)

type Stream struct {
	id       string
	released atomic.Bool
	releases atomic.Int32
}

func (s *Stream) ID() string    { return s.id }
func (s *Stream) Live() bool    { return !s.released.Load() }
func (s *Stream) Releases() int { return int(s.releases.Load()) }

type Encoder struct {
	stream    *Stream
	mediaType string
	finalized atomic.Bool
}

func (e *Encoder) MediaType() string { return e.mediaType }

// Session is a fake CaptureSession. Zero value records a small webm payload.
type Session struct {
	MediaType string
	Payload   []byte

	AcquireErr  error
	EncodeErr   error
	FinalizeErr error

	// AcquireGate, when set, blocks Acquire until it is closed, standing in
	// for a permission prompt the user has not answered yet.
	AcquireGate chan struct{}
	// FinalizeGate, when set, holds Finalize until it is closed so a stop can
	// be caught while it is still flushing.
	FinalizeGate chan struct{}

	mu        sync.Mutex
	streams   []*Stream
	acquires  int
	finalizes int
}

func New() *Session {
	return &Session{
		MediaType: "audio/webm;codecs=opus",
		Payload:   []byte("webm-opus-payload"),
	}
}

func (s *Session) Acquire(ctx context.Context) (internal_type.Stream, error) {
	if s.AcquireGate != nil {
		select {
		case <-s.AcquireGate:
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire cancelled: %w", internal_type.ErrPermissionDenied)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquires++
	if s.AcquireErr != nil {
		return nil, s.AcquireErr
	}
	stream := &Stream{id: uuid.New().String()}
	s.streams = append(s.streams, stream)
	return stream, nil
}

func (s *Session) BeginEncoding(ctx context.Context, st internal_type.Stream) (internal_type.Encoder, error) {
	if s.EncodeErr != nil {
		return nil, s.EncodeErr
	}
	stream, ok := st.(*Stream)
	if !ok || !stream.Live() {
		return nil, fmt.Errorf("stream not live: %w", internal_type.ErrDeviceUnavailable)
	}
	mediaType := s.MediaType
	if mediaType == "" {
		mediaType = "audio/webm"
	}
	return &Encoder{stream: stream, mediaType: mediaType}, nil
}

func (s *Session) Finalize(ctx context.Context, enc internal_type.Encoder) (*internal_type.Artifact, error) {
	encoder := enc.(*Encoder)
	if !encoder.finalized.CompareAndSwap(false, true) {
		panic("fake: finalize called twice on one encoder")
	}
	s.mu.Lock()
	s.finalizes++
	s.mu.Unlock()
	if s.FinalizeGate != nil {
		<-s.FinalizeGate
	}
	if s.FinalizeErr != nil {
		return nil, s.FinalizeErr
	}
	return internal_type.NewArtifact(encoder.mediaType, s.Payload), nil
}

func (s *Session) Release(st internal_type.Stream) {
	stream, ok := st.(*Stream)
	if !ok || stream == nil {
		return
	}
	stream.releases.Add(1)
	stream.released.Store(true)
}

// LiveStreams counts streams acquired and not yet released.
func (s *Session) LiveStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := 0
	for _, st := range s.streams {
		if st.Live() {
			live++
		}
	}
	return live
}

func (s *Session) Acquires() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquires
}

func (s *Session) Finalizes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizes
}

// Streams returns every stream handed out so far.
func (s *Session) Streams() []*Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Stream, len(s.streams))
	copy(out, s.streams)
	return out
}
