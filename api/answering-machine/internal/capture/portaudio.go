// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

//go:build portaudio

package internal_capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"

	internal_type "github.com/rapidaai/voicemail/api/answering-machine/internal/type"
	"github.com/rapidaai/voicemail/pkg/commons"
	"github.com/rapidaai/voicemail/pkg/configs"
)

const framesPerBuffer = 1024

type portaudioSession struct {
	logger     commons.Logger
	sampleRate int
}

type portaudioStream struct {
	id     string
	stream *portaudio.Stream
	in     []int16

	releaseOnce sync.Once
	released    atomic.Bool
}

type portaudioEncoder struct {
	stream     *portaudioStream
	mediaType  string
	sampleRate int

	mu        sync.Mutex
	running   bool
	samples   []int16
	done      chan struct{}
	finalized atomic.Bool
}

func newPortaudioSession(cfg *configs.CaptureConfig, logger commons.Logger) (internal_type.CaptureSession, error) {
	return &portaudioSession{logger: logger, sampleRate: cfg.SampleRate}, nil
}

func (s *portaudioStream) ID() string { return s.id }

func (s *portaudioStream) Live() bool { return !s.released.Load() }

func (e *portaudioEncoder) MediaType() string { return e.mediaType }

func (s *portaudioSession) Acquire(ctx context.Context) (internal_type.Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %v: %w", err, internal_type.ErrUnsupportedEnvironment)
	}
	if _, err := portaudio.DefaultInputDevice(); err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("no default input: %v: %w", err, internal_type.ErrDeviceUnavailable)
	}

	ps := &portaudioStream{id: uuid.New().String(), in: make([]int16, framesPerBuffer)}
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(s.sampleRate), len(ps.in), ps.in)
	if err != nil {
		portaudio.Terminate()
		return nil, classifyPortaudioFailure(err)
	}
	ps.stream = stream
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		portaudio.Terminate()
		return nil, classifyPortaudioFailure(err)
	}
	s.logger.Debugw("microphone acquired", "stream", ps.id, "backend", "portaudio")
	return ps, nil
}

// BeginEncoding starts the read loop. PortAudio hands us raw PCM only, so
// the preference list falls through to WAV.
func (s *portaudioSession) BeginEncoding(ctx context.Context, st internal_type.Stream) (internal_type.Encoder, error) {
	stream, ok := st.(*portaudioStream)
	if !ok || !stream.Live() {
		return nil, fmt.Errorf("stream is not a live portaudio stream: %w", internal_type.ErrDeviceUnavailable)
	}
	encoder := &portaudioEncoder{
		stream:     stream,
		mediaType:  SelectMediaType(nil, MediaTypeWav),
		sampleRate: s.sampleRate,
		running:    true,
		done:       make(chan struct{}),
	}
	go encoder.readLoop(s.logger)
	return encoder, nil
}

func (e *portaudioEncoder) readLoop(logger commons.Logger) {
	defer close(e.done)
	for {
		e.mu.Lock()
		running := e.running
		e.mu.Unlock()
		if !running || !e.stream.Live() {
			return
		}
		if err := e.stream.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			logger.Warnf("portaudio read failed: %v", err)
			return
		}
		e.mu.Lock()
		e.samples = append(e.samples, e.stream.in...)
		e.mu.Unlock()
	}
}

func (s *portaudioSession) Finalize(ctx context.Context, enc internal_type.Encoder) (*internal_type.Artifact, error) {
	encoder, ok := enc.(*portaudioEncoder)
	if !ok {
		return nil, fmt.Errorf("unknown encoder %T: %w", enc, internal_type.ErrEncodingFailure)
	}
	if !encoder.finalized.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("encoder already finalized: %w", internal_type.ErrEncodingFailure)
	}

	encoder.mu.Lock()
	encoder.running = false
	encoder.mu.Unlock()
	<-encoder.done

	encoder.mu.Lock()
	samples := encoder.samples
	encoder.samples = nil
	encoder.mu.Unlock()

	if len(samples) == 0 {
		return internal_type.NewArtifact(encoder.mediaType, nil), nil
	}
	data, err := encodeWAV(samples, encoder.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("wav encode: %v: %w", err, internal_type.ErrEncodingFailure)
	}
	s.logger.Debugf("capture persist: bytes=%d, samples=%d", len(data), len(samples))
	return internal_type.NewArtifact(encoder.mediaType, data), nil
}

func (s *portaudioSession) Release(st internal_type.Stream) {
	stream, ok := st.(*portaudioStream)
	if !ok || stream == nil {
		return
	}
	stream.releaseOnce.Do(func() {
		stream.released.Store(true)
		_ = stream.stream.Stop()
		_ = stream.stream.Close()
		_ = portaudio.Terminate()
		s.logger.Debugf("microphone released: stream=%s", stream.id)
	})
}

// encodeWAV needs a seekable writer, so the header is patched in a temp file
// and read back.
func encodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	f, err := os.CreateTemp("", "answering-machine-*.wav")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i := range samples {
		buf.Data[i] = int(samples[i])
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return os.ReadFile(f.Name())
}

func classifyPortaudioFailure(err error) error {
	switch {
	case errors.Is(err, portaudio.DeviceUnavailable), errors.Is(err, portaudio.InvalidDevice):
		return fmt.Errorf("%v: %w", err, internal_type.ErrDeviceUnavailable)
	case errors.Is(err, portaudio.NotInitialized), errors.Is(err, portaudio.HostApiNotFound):
		return fmt.Errorf("%v: %w", err, internal_type.ErrUnsupportedEnvironment)
	}
	return fmt.Errorf("%v: %w", err, internal_type.ErrPermissionDenied)
}

func portaudioSupport() Support {
	if err := portaudio.Initialize(); err != nil {
		return Support{Reason: fmt.Sprintf("portaudio could not initialise: %v", err)}
	}
	defer portaudio.Terminate()
	if _, err := portaudio.DefaultInputDevice(); err != nil {
		return Support{Reason: fmt.Sprintf("no default input device: %v", err)}
	}
	return Support{Supported: true}
}
