// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_controller

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	internal_guard "github.com/rapidaai/voicemail/api/answering-machine/internal/guard"
	internal_type "github.com/rapidaai/voicemail/api/answering-machine/internal/type"
	internal_upload "github.com/rapidaai/voicemail/api/answering-machine/internal/upload"
	"github.com/rapidaai/voicemail/pkg/commons"
)

// Controller is the recording lifecycle state machine. It owns exactly one
// recording session at a time and is safe for concurrent use.
//
//	idle -> recording -> uploading -> success
//	  ^         |             |
//	  |         v             v
//	  +------ error <---------+
//
// Start is accepted from idle, success and error. Stop is accepted only from
// recording; the duration guard calls the same stop path, so whichever of the
// two arrives first wins and the other is a no-op.
type Controller interface {
	Start(ctx context.Context)
	Stop(ctx context.Context)
	// Teardown releases any live stream and timer and suppresses every later
	// state write. When a stop is finalizing concurrently, Teardown returns
	// after that stop has released its stream. An upload already in flight
	// still runs to completion, and an acquire still waiting on the device
	// releases its stream itself when it returns.
	Teardown(ctx context.Context)
	Snapshot() internal_type.SessionSnapshot
	// Changed receives a value after state changes. Notifications coalesce:
	// a slow reader sees one pending value, then reads Snapshot.
	Changed() <-chan struct{}
	MaxDuration() time.Duration
	Now() time.Time
}

type recordingController struct {
	logger      commons.Logger
	capture     internal_type.CaptureSession
	limiter     internal_type.Limiter
	uploader    internal_type.UploadPipeline
	guard       internal_guard.DurationGuard
	clock       internal_guard.Clock
	maxDuration time.Duration

	mu      sync.Mutex
	session internal_type.SessionSnapshot
	stream  internal_type.Stream
	encoder internal_type.Encoder
	// acquiring is set while Start waits on the microphone prompt
	acquiring bool
	// stopping is set while Stop finalizes outside the lock
	stopping bool
	// finalizing counts the stop in flight until its stream is released
	finalizing sync.WaitGroup
	tornDown   bool
	changed    chan struct{}
}

type Option func(*recordingController)

func WithClock(clock internal_guard.Clock) Option {
	return func(c *recordingController) { c.clock = clock }
}

func WithGuard(guard internal_guard.DurationGuard) Option {
	return func(c *recordingController) { c.guard = guard }
}

func NewRecordingController(
	logger commons.Logger,
	capture internal_type.CaptureSession,
	limiter internal_type.Limiter,
	uploader internal_type.UploadPipeline,
	maxDuration time.Duration,
	opts ...Option,
) Controller {
	c := &recordingController{
		logger:      logger,
		capture:     capture,
		limiter:     limiter,
		uploader:    uploader,
		clock:       internal_guard.SystemClock(),
		maxDuration: maxDuration,
		session:     internal_type.SessionSnapshot{Status: internal_type.StatusIdle},
		changed:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.guard == nil {
		c.guard = internal_guard.NewDurationGuard(logger, internal_guard.WithClock(c.clock))
	}
	return c
}

func (c *recordingController) MaxDuration() time.Duration { return c.maxDuration }

func (c *recordingController) Now() time.Time { return c.clock.Now() }

func (c *recordingController) Changed() <-chan struct{} { return c.changed }

func (c *recordingController) Snapshot() internal_type.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	if s.StartedAt != nil {
		startedAt := *s.StartedAt
		s.StartedAt = &startedAt
	}
	return s
}

// notifyLocked must be called with mu held.
func (c *recordingController) notifyLocked() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

func (c *recordingController) canStartLocked() bool {
	if c.tornDown || c.acquiring || c.stopping {
		return false
	}
	switch c.session.Status {
	case internal_type.StatusIdle, internal_type.StatusSuccess, internal_type.StatusError:
		return true
	}
	return false
}

func (c *recordingController) Start(ctx context.Context) {
	c.mu.Lock()
	if !c.canStartLocked() {
		c.logger.Debugf("start ignored: status=%s acquiring=%t", c.session.Status, c.acquiring)
		c.mu.Unlock()
		return
	}
	c.acquiring = true
	c.mu.Unlock()

	if !c.limiter.CanRecord(ctx) {
		c.mu.Lock()
		c.acquiring = false
		if !c.tornDown {
			c.session.Status = internal_type.StatusError
			c.session.ErrorMessage = internal_type.UserMessage(internal_type.ErrQuotaExceeded)
			c.session.InfoMessage = ""
			c.session.Artifact = nil
			c.notifyLocked()
		}
		c.mu.Unlock()
		c.logger.Infof("start rejected: recording quota exhausted")
		return
	}

	c.mu.Lock()
	if c.tornDown {
		c.acquiring = false
		c.mu.Unlock()
		return
	}
	c.session.ErrorMessage = ""
	c.session.InfoMessage = ""
	c.session.HitMaxDuration = false
	c.session.Artifact = nil
	c.session.UploadedPath = ""
	c.notifyLocked()
	c.mu.Unlock()

	stream, encoder, err := c.acquire(ctx)

	c.mu.Lock()
	c.acquiring = false
	if c.tornDown {
		c.mu.Unlock()
		if stream != nil {
			c.logger.Debugf("torn down while acquiring, releasing stream %s", stream.ID())
			c.capture.Release(stream)
		}
		return
	}
	if err != nil {
		c.session.Status = internal_type.StatusError
		c.session.ErrorMessage = internal_type.UserMessage(err)
		c.notifyLocked()
		c.mu.Unlock()
		c.logger.Errorf("failed to start recording: %v", err)
		return
	}

	now := c.clock.Now()
	c.stream = stream
	c.encoder = encoder
	c.session.SessionID = uuid.New().String()
	c.session.Status = internal_type.StatusRecording
	c.session.StartedAt = &now
	sessionID := c.session.SessionID
	c.guard.Arm(now, c.maxDuration, func() { c.onCeilingReached(sessionID) })
	c.notifyLocked()
	c.mu.Unlock()

	c.logger.Infow("recording started", "session", sessionID, "stream", stream.ID(), "mediaType", encoder.MediaType())
}

// acquire opens the microphone and starts the encoder. On failure nothing is
// left open.
func (c *recordingController) acquire(ctx context.Context) (internal_type.Stream, internal_type.Encoder, error) {
	stream, err := c.capture.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	encoder, err := c.capture.BeginEncoding(ctx, stream)
	if err != nil {
		c.capture.Release(stream)
		return nil, nil, err
	}
	return stream, encoder, nil
}

// onCeilingReached only stops the session that armed the guard. A callback
// that fires while its session is being stopped manually must not end the
// next one.
func (c *recordingController) onCeilingReached(sessionID string) {
	c.stop(context.Background(), sessionID)
}

func (c *recordingController) Stop(ctx context.Context) {
	c.stop(ctx, "")
}

// stop finalizes the current session. A non-empty forSession marks a forced
// stop from the duration guard, valid only for that session.
func (c *recordingController) stop(ctx context.Context, forSession string) {
	forced := forSession != ""
	c.mu.Lock()
	if c.session.Status != internal_type.StatusRecording || c.stopping || c.tornDown {
		c.mu.Unlock()
		return
	}
	if forced && forSession != c.session.SessionID {
		c.mu.Unlock()
		c.logger.Debugf("stale ceiling for session %s ignored", forSession)
		return
	}
	c.stopping = true
	c.finalizing.Add(1)
	c.guard.Disarm()
	stream, encoder := c.stream, c.encoder
	sessionID := c.session.SessionID
	c.mu.Unlock()

	artifact, ferr := c.capture.Finalize(ctx, encoder)
	c.capture.Release(stream)
	c.finalizing.Done()

	c.mu.Lock()
	c.stopping = false
	c.stream, c.encoder = nil, nil
	if c.tornDown {
		c.mu.Unlock()
		return
	}
	c.session.StartedAt = nil
	if forced {
		c.session.HitMaxDuration = true
	}
	if ferr != nil {
		c.session.Status = internal_type.StatusError
		c.session.ErrorMessage = internal_type.UserMessage(ferr)
		c.notifyLocked()
		c.mu.Unlock()
		c.logger.Errorf("failed to finalize recording %s: %v", sessionID, ferr)
		return
	}
	if artifact.Empty() {
		c.session.Status = internal_type.StatusIdle
		c.session.InfoMessage = internal_type.MessageEmptyRecording
		c.notifyLocked()
		c.mu.Unlock()
		c.logger.Warnf("recording %s produced no audio, nothing to upload", sessionID)
		return
	}
	c.session.Artifact = artifact
	c.session.Status = internal_type.StatusUploading
	c.session.InfoMessage = internal_type.MessageUploading
	c.notifyLocked()
	c.mu.Unlock()

	c.logger.Infow("recording stopped", "session", sessionID, "forced", forced, "bytes", artifact.Size())
	// uploads are never cancelled once started
	c.upload(context.WithoutCancel(ctx), sessionID, artifact)
}

func (c *recordingController) upload(ctx context.Context, sessionID string, artifact *internal_type.Artifact) {
	filename := internal_upload.MakeFilename(c.clock.Now(), artifact.MediaType())
	target, err := c.uploader.RequestUploadTarget(ctx, filename)
	if err == nil {
		err = c.uploader.TransferBytes(ctx, artifact, target)
	}
	if err == nil {
		if ierr := c.limiter.Increment(ctx); ierr != nil {
			c.logger.Warnf("recording %s saved but count not persisted: %v", sessionID, ierr)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return
	}
	if err != nil {
		c.session.Status = internal_type.StatusError
		c.session.ErrorMessage = internal_type.UserMessage(err)
		c.session.InfoMessage = ""
		c.notifyLocked()
		c.logger.Errorf("failed to upload recording %s as %s: %v", sessionID, filename, err)
		return
	}
	c.session.Status = internal_type.StatusSuccess
	c.session.InfoMessage = internal_type.MessageSuccess
	c.session.UploadedPath = target.Path
	c.notifyLocked()
	c.logger.Infow("recording uploaded", "session", sessionID, "path", target.Path)
}

func (c *recordingController) Teardown(ctx context.Context) {
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return
	}
	c.tornDown = true
	c.guard.Disarm()
	var (
		stream  internal_type.Stream
		encoder internal_type.Encoder
	)
	// a concurrent stop already owns the stream and will release it
	waitForStop := c.stopping
	if c.session.Status == internal_type.StatusRecording && !c.stopping {
		stream, encoder = c.stream, c.encoder
		c.stream, c.encoder = nil, nil
	}
	c.mu.Unlock()

	if waitForStop {
		c.finalizing.Wait()
		c.logger.Debugf("torn down after in-flight stop released its stream")
		return
	}
	if stream == nil {
		return
	}
	if _, err := c.capture.Finalize(ctx, encoder); err != nil {
		c.logger.Debugf("discarding partial recording on teardown: %v", err)
	}
	c.capture.Release(stream)
	c.logger.Infof("torn down while recording, stream %s released", stream.ID())
}
