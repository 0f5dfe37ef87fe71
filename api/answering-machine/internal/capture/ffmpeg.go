// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	internal_type "github.com/rapidaai/voicemail/api/answering-machine/internal/type"
	"github.com/rapidaai/voicemail/pkg/commons"
	"github.com/rapidaai/voicemail/pkg/configs"
)

const (
	// how long a freshly started capture process must stay alive before the
	// device is considered acquired
	ffmpegProbeWindow = 400 * time.Millisecond
	// grace period between SIGINT and SIGKILL
	ffmpegStopGrace = 2 * time.Second
	// upper bound for the encoder to flush its trailer after capture stops
	ffmpegFinalizeTimeout = 10 * time.Second
	stderrLimit           = 8 * 1024
)

type ffmpegSession struct {
	logger     commons.Logger
	binary     string
	device     string
	sampleRate int

	muxersOnce sync.Once
	muxers     string
}

// ffmpegStream is the capture process: microphone in, raw s16le PCM out.
type ffmpegStream struct {
	id      string
	cmd     *exec.Cmd
	pcm     *os.File
	stderr  *limitedBuffer
	done    chan struct{}
	waitErr error

	releaseOnce sync.Once
	released    atomic.Bool

	mu      sync.Mutex
	encoder *ffmpegEncoder
}

// ffmpegEncoder reads PCM from the capture pipe and writes the chosen
// container to an in-memory chunk buffer.
type ffmpegEncoder struct {
	stream    *ffmpegStream
	mediaType string
	cmd       *exec.Cmd
	stderr    *limitedBuffer
	buffer    *chunkBuffer
	readDone  chan struct{}
	done      chan struct{}
	waitErr   error
	finalized atomic.Bool
}

func newFFmpegSession(cfg *configs.CaptureConfig, logger commons.Logger) internal_type.CaptureSession {
	return &ffmpegSession{
		logger:     logger,
		binary:     "ffmpeg",
		device:     cfg.Device,
		sampleRate: cfg.SampleRate,
	}
}

func (s *ffmpegStream) ID() string { return s.id }

func (s *ffmpegStream) Live() bool { return !s.released.Load() }

func (e *ffmpegEncoder) MediaType() string { return e.mediaType }

// inputArgs returns the platform specific capture input for ffmpeg.
func (s *ffmpegSession) inputArgs() ([]string, error) {
	switch runtime.GOOS {
	case "linux":
		device := s.device
		if device == "" {
			device = "default"
		}
		if strings.HasPrefix(device, "pulse:") {
			return []string{"-f", "pulse", "-i", strings.TrimPrefix(device, "pulse:")}, nil
		}
		return []string{"-f", "alsa", "-i", device}, nil
	case "darwin":
		device := s.device
		if device == "" {
			device = "0"
		}
		return []string{"-f", "avfoundation", "-i", ":" + device}, nil
	case "windows":
		if s.device == "" {
			return nil, fmt.Errorf("dshow requires CAPTURE__DEVICE: %w", internal_type.ErrDeviceUnavailable)
		}
		return []string{"-f", "dshow", "-i", "audio=" + s.device}, nil
	}
	return nil, fmt.Errorf("no ffmpeg capture input for %s: %w", runtime.GOOS, internal_type.ErrUnsupportedEnvironment)
}

func (s *ffmpegSession) pcmArgs() []string {
	return []string{"-ac", "1", "-ar", strconv.Itoa(s.sampleRate)}
}

// Acquire starts the capture process and waits a short probe window. A
// process that dies inside the window never got the device; its stderr tells
// us why.
func (s *ffmpegSession) Acquire(ctx context.Context) (internal_type.Stream, error) {
	if _, err := exec.LookPath(s.binary); err != nil {
		return nil, fmt.Errorf("%s not found: %w", s.binary, internal_type.ErrUnsupportedEnvironment)
	}
	input, err := s.inputArgs()
	if err != nil {
		return nil, err
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating pcm pipe: %w", internal_type.ErrUnsupportedEnvironment)
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	args = append(args, input...)
	args = append(args, s.pcmArgs()...)
	args = append(args, "-f", "s16le", "pipe:1")

	stream := &ffmpegStream{
		id:     uuid.New().String(),
		cmd:    exec.Command(s.binary, args...),
		pcm:    pr,
		stderr: newLimitedBuffer(stderrLimit),
		done:   make(chan struct{}),
	}
	stream.cmd.Stdout = pw
	stream.cmd.Stderr = stream.stderr

	if err := stream.cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("starting capture: %v: %w", err, internal_type.ErrUnsupportedEnvironment)
	}
	// the child owns the write end now
	pw.Close()

	go func() {
		stream.waitErr = stream.cmd.Wait()
		close(stream.done)
	}()

	select {
	case <-stream.done:
		pr.Close()
		stream.released.Store(true)
		failure := stream.stderr.String()
		s.logger.Warnw("capture process exited during probe", "stream", stream.id, "stderr", failure, "error", stream.waitErr)
		return nil, classifyCaptureFailure(failure)
	case <-ctx.Done():
		s.Release(stream)
		return nil, fmt.Errorf("acquire cancelled: %v: %w", ctx.Err(), internal_type.ErrPermissionDenied)
	case <-time.After(ffmpegProbeWindow):
	}

	s.logger.Debugw("microphone acquired", "stream", stream.id, "args", strings.Join(args, " "))
	return stream, nil
}

// BeginEncoding starts the encoder process reading the capture pipe.
func (s *ffmpegSession) BeginEncoding(ctx context.Context, st internal_type.Stream) (internal_type.Encoder, error) {
	stream, ok := st.(*ffmpegStream)
	if !ok || !stream.Live() {
		return nil, fmt.Errorf("stream is not a live ffmpeg stream: %w", internal_type.ErrDeviceUnavailable)
	}

	mediaType := SelectMediaType(s.supports, MediaTypeWav)

	out, in, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating encoder pipe: %v: %w", err, internal_type.ErrEncodingFailure)
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-f", "s16le"}
	args = append(args, s.pcmArgs()...)
	args = append(args, "-i", "pipe:0")
	args = append(args, ffmpegOutputArgs(mediaType)...)
	args = append(args, "pipe:1")

	encoder := &ffmpegEncoder{
		stream:    stream,
		mediaType: mediaType,
		cmd:       exec.Command(s.binary, args...),
		stderr:    newLimitedBuffer(stderrLimit),
		buffer:    newChunkBuffer(s.logger),
		readDone:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	encoder.cmd.Stdin = stream.pcm
	encoder.cmd.Stdout = in
	encoder.cmd.Stderr = encoder.stderr

	if err := encoder.cmd.Start(); err != nil {
		out.Close()
		in.Close()
		return nil, fmt.Errorf("starting encoder: %v: %w", err, internal_type.ErrEncodingFailure)
	}
	in.Close()
	stream.pcm.Close()

	stream.mu.Lock()
	stream.encoder = encoder
	stream.mu.Unlock()

	encoder.buffer.Start()
	go func() {
		defer close(encoder.readDone)
		defer out.Close()
		if _, err := io.Copy(encoder.buffer, out); err != nil {
			s.logger.Warnf("encoder output read failed: %v", err)
		}
	}()
	go func() {
		encoder.waitErr = encoder.cmd.Wait()
		close(encoder.done)
	}()

	s.logger.Debugw("encoder started", "stream", stream.id, "mediaType", mediaType)
	return encoder, nil
}

// Finalize interrupts the capture process. The encoder then sees EOF on its
// input, writes the container trailer and exits.
func (s *ffmpegSession) Finalize(ctx context.Context, enc internal_type.Encoder) (*internal_type.Artifact, error) {
	encoder, ok := enc.(*ffmpegEncoder)
	if !ok {
		return nil, fmt.Errorf("unknown encoder %T: %w", enc, internal_type.ErrEncodingFailure)
	}
	if !encoder.finalized.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("encoder already finalized: %w", internal_type.ErrEncodingFailure)
	}

	encoder.stream.interrupt()

	timeout := time.NewTimer(ffmpegFinalizeTimeout)
	defer timeout.Stop()
	for _, ch := range []chan struct{}{encoder.done, encoder.readDone} {
		select {
		case <-ch:
		case <-ctx.Done():
			encoder.kill()
			return nil, fmt.Errorf("finalize cancelled: %v: %w", ctx.Err(), internal_type.ErrEncodingFailure)
		case <-timeout.C:
			encoder.kill()
			return nil, fmt.Errorf("encoder did not flush within %s: %w", ffmpegFinalizeTimeout, internal_type.ErrEncodingFailure)
		}
	}

	data := encoder.buffer.Persist()
	first, last := encoder.buffer.Span()
	s.logger.Debugw("encoder flushed", "stream", encoder.stream.id, "bytes", len(data), "firstChunk", first, "lastChunk", last)
	if encoder.waitErr != nil && len(data) > 0 {
		s.logger.Errorw("encoder exited with error", "stream", encoder.stream.id, "stderr", encoder.stderr.String(), "error", encoder.waitErr)
		return nil, fmt.Errorf("encoder exit: %v: %w", encoder.waitErr, internal_type.ErrEncodingFailure)
	}
	// an encoder that never received a single sample exits non-zero with no
	// output; that is an empty recording, not a failure
	return internal_type.NewArtifact(encoder.mediaType, data), nil
}

// Release stops the capture process, and any encoder still attached to it.
func (s *ffmpegSession) Release(st internal_type.Stream) {
	stream, ok := st.(*ffmpegStream)
	if !ok || stream == nil {
		return
	}
	stream.releaseOnce.Do(func() {
		stream.interrupt()
		select {
		case <-stream.done:
		case <-time.After(ffmpegStopGrace):
			s.logger.Warnf("capture process %s ignored interrupt, killing", stream.id)
			if stream.cmd.Process != nil {
				_ = stream.cmd.Process.Kill()
			}
			<-stream.done
		}
		stream.pcm.Close()

		stream.mu.Lock()
		encoder := stream.encoder
		stream.mu.Unlock()
		if encoder != nil {
			select {
			case <-encoder.done:
			case <-time.After(ffmpegStopGrace):
				encoder.kill()
				<-encoder.done
			}
		}
		stream.released.Store(true)
		s.logger.Debugf("microphone released: stream=%s", stream.id)
	})
}

// supports reports whether the local ffmpeg build can mux the media type.
func (s *ffmpegSession) supports(mediaType string) bool {
	s.muxersOnce.Do(func() {
		muxers, _ := exec.Command(s.binary, "-hide_banner", "-muxers").Output()
		encoders, _ := exec.Command(s.binary, "-hide_banner", "-encoders").Output()
		s.muxers = string(muxers) + "\n" + string(encoders)
	})
	return ffmpegCapabilities(s.muxers).supports(mediaType)
}

// ffmpegCapabilities is the combined `-muxers` and `-encoders` listing.
type ffmpegCapabilities string

func (c ffmpegCapabilities) has(name string) bool {
	for _, line := range strings.Split(string(c), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}

func (c ffmpegCapabilities) supports(mediaType string) bool {
	switch mediaType {
	case MediaTypeWebmOpus:
		return c.has("webm") && c.has("libopus")
	case MediaTypeWebm:
		return c.has("webm")
	case MediaTypeOggOpus:
		return c.has("ogg") && c.has("libopus")
	case MediaTypeOgg:
		return c.has("ogg")
	}
	return false
}

func (s *ffmpegStream) interrupt() {
	if s.cmd.Process == nil {
		return
	}
	select {
	case <-s.done:
		return
	default:
	}
	if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
		// windows has no SIGINT for child processes
		_ = s.cmd.Process.Kill()
	}
}

func (e *ffmpegEncoder) kill() {
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
}

// classifyCaptureFailure maps ffmpeg stderr output to the acquisition error
// taxonomy.
func classifyCaptureFailure(stderr string) error {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "operation not permitted"),
		strings.Contains(msg, "not authorized"):
		return fmt.Errorf("%s: %w", strings.TrimSpace(stderr), internal_type.ErrPermissionDenied)
	case strings.Contains(msg, "unknown input format"),
		strings.Contains(msg, "unrecognized option"):
		return fmt.Errorf("%s: %w", strings.TrimSpace(stderr), internal_type.ErrUnsupportedEnvironment)
	}
	// busy device, missing device, i/o errors and anything else ffmpeg
	// prints when it cannot open the input
	return fmt.Errorf("%s: %w", strings.TrimSpace(stderr), internal_type.ErrDeviceUnavailable)
}

// limitedBuffer keeps the first n bytes written to it.
type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func newLimitedBuffer(limit int) *limitedBuffer {
	return &limitedBuffer{limit: limit}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
