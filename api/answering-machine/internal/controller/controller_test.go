// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/voicemail/api/answering-machine/internal/capture/fake"
	internal_guard "github.com/rapidaai/voicemail/api/answering-machine/internal/guard"
	internal_limiter "github.com/rapidaai/voicemail/api/answering-machine/internal/limiter"
	internal_type "github.com/rapidaai/voicemail/api/answering-machine/internal/type"
	internal_upload "github.com/rapidaai/voicemail/api/answering-machine/internal/upload"
	"github.com/rapidaai/voicemail/pkg/commons"
)

const targetURL = "https://content.example/upload/one-time"

// stubUploader records every call and can be told to fail or to hold the
// transfer until released.
type stubUploader struct {
	mu          sync.Mutex
	filenames   []string
	transfers   []string
	payloads    [][]byte
	targetErr   error
	transferErr error
	hold        chan struct{}
}

func (u *stubUploader) RequestUploadTarget(ctx context.Context, filename string) (*internal_type.UploadTarget, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.filenames = append(u.filenames, filename)
	if u.targetErr != nil {
		return nil, u.targetErr
	}
	return &internal_type.UploadTarget{URL: targetURL, Path: "/voicemail-messages/" + filename}, nil
}

func (u *stubUploader) TransferBytes(ctx context.Context, artifact *internal_type.Artifact, target *internal_type.UploadTarget) error {
	if u.hold != nil {
		<-u.hold
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.transfers = append(u.transfers, target.URL)
	u.payloads = append(u.payloads, artifact.Bytes())
	return u.transferErr
}

func (u *stubUploader) calls() ([]string, []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.filenames...), append([]string(nil), u.transfers...)
}

type harness struct {
	ctrl     *recordingController
	capture  *fake.Session
	uploader *stubUploader
	limiter  internal_type.Limiter
	store    internal_limiter.CounterStore
	clock    *internal_guard.ManualClock
}

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-controller"),
		commons.Path(t.TempDir()),
		commons.Level("debug"),
	)
	require.NoError(t, err)
	return logger
}

func newHarness(t *testing.T, maxRecordings int, ceiling time.Duration, opts ...Option) *harness {
	t.Helper()
	logger := newTestLogger(t)
	clock := internal_guard.NewManualClock(time.Date(2025, 3, 7, 9, 5, 2, 0, time.Local))
	store := internal_limiter.NewMemoryStore()
	h := &harness{
		capture:  fake.New(),
		uploader: &stubUploader{},
		limiter:  internal_limiter.NewRecordingLimiter(store, maxRecordings, logger),
		store:    store,
		clock:    clock,
	}
	h.ctrl = NewRecordingController(logger, h.capture, h.limiter, h.uploader, ceiling,
		append([]Option{WithClock(clock)}, opts...)...,
	).(*recordingController)
	return h
}

func (h *harness) status() internal_type.SessionStatus {
	return h.ctrl.Snapshot().Status
}

func (h *harness) acquiring() bool {
	h.ctrl.mu.Lock()
	defer h.ctrl.mu.Unlock()
	return h.ctrl.acquiring
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 2*time.Millisecond, msg)
}

func TestStartStop_UploadsAndSucceeds(t *testing.T) {
	h := newHarness(t, 10, 5*time.Minute)
	ctx := context.Background()

	h.ctrl.Start(ctx)
	s := h.ctrl.Snapshot()
	require.Equal(t, internal_type.StatusRecording, s.Status)
	require.NotNil(t, s.StartedAt)
	assert.NotEmpty(t, s.SessionID)
	assert.Nil(t, s.Artifact)
	assert.Equal(t, 1, h.capture.LiveStreams())
	assert.Equal(t, 1, h.clock.ActiveTickers())

	h.clock.Advance(time.Second)
	h.ctrl.Stop(ctx)

	s = h.ctrl.Snapshot()
	assert.Equal(t, internal_type.StatusSuccess, s.Status)
	assert.Equal(t, internal_type.MessageSuccess, s.InfoMessage)
	assert.Empty(t, s.ErrorMessage)
	assert.Nil(t, s.StartedAt)
	assert.False(t, s.HitMaxDuration)
	require.NotNil(t, s.Artifact)
	assert.Equal(t, []byte("webm-opus-payload"), s.Artifact.Bytes())

	filenames, transfers := h.uploader.calls()
	expected := internal_upload.MakeFilename(h.clock.Now(), "audio/webm;codecs=opus")
	assert.Equal(t, []string{expected}, filenames)
	assert.Equal(t, "message-2025-03-07_09-05-03.webm", expected)
	assert.Equal(t, []string{targetURL}, transfers)
	assert.Equal(t, "/voicemail-messages/"+expected, s.UploadedPath)

	assert.Equal(t, 0, h.capture.LiveStreams())
	assert.Equal(t, 0, h.clock.ActiveTickers())
	assert.Equal(t, 1, h.limiter.Count(ctx))
}

func TestStart_QuotaExhausted(t *testing.T) {
	h := newHarness(t, 10, time.Minute)
	ctx := context.Background()
	require.NoError(t, h.store.Set(ctx, internal_limiter.StorageKey, "10"))

	h.ctrl.Start(ctx)

	s := h.ctrl.Snapshot()
	assert.Equal(t, internal_type.StatusError, s.Status)
	assert.Equal(t, internal_type.MessageQuotaExceeded, s.ErrorMessage)
	assert.Zero(t, h.capture.Acquires())
	assert.Zero(t, h.clock.ActiveTickers())
}

func TestQuotaReachedAfterSuccessfulSessions(t *testing.T) {
	h := newHarness(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		h.ctrl.Start(ctx)
		h.ctrl.Stop(ctx)
		require.Equal(t, internal_type.StatusSuccess, h.status())
	}
	h.ctrl.Start(ctx)
	assert.Equal(t, internal_type.StatusError, h.status())
	assert.Equal(t, internal_type.MessageQuotaExceeded, h.ctrl.Snapshot().ErrorMessage)
	assert.Equal(t, 2, h.capture.Acquires())
}

func TestTransferFailure_KeepsArtifact(t *testing.T) {
	h := newHarness(t, 10, time.Minute)
	h.uploader.transferErr = fmt.Errorf("status 503: %w", internal_type.ErrTransferFailed)
	ctx := context.Background()

	h.ctrl.Start(ctx)
	h.ctrl.Stop(ctx)

	s := h.ctrl.Snapshot()
	assert.Equal(t, internal_type.StatusError, s.Status)
	assert.Equal(t, internal_type.MessageUploadFailure, s.ErrorMessage)
	assert.Empty(t, s.InfoMessage)
	require.NotNil(t, s.Artifact)
	assert.False(t, s.Artifact.Empty())
	assert.Equal(t, 0, h.limiter.Count(ctx))
	assert.Equal(t, 0, h.capture.LiveStreams())
}

func TestTargetFailure_SkipsTransfer(t *testing.T) {
	h := newHarness(t, 10, time.Minute)
	h.uploader.targetErr = internal_type.ErrTargetUnavailable
	ctx := context.Background()

	h.ctrl.Start(ctx)
	h.ctrl.Stop(ctx)

	assert.Equal(t, internal_type.StatusError, h.status())
	assert.Equal(t, internal_type.MessageUploadFailure, h.ctrl.Snapshot().ErrorMessage)
	_, transfers := h.uploader.calls()
	assert.Empty(t, transfers)
}

func TestStop_WhenNotRecordingIsNoop(t *testing.T) {
	h := newHarness(t, 10, time.Minute)
	ctx := context.Background()

	before := h.ctrl.Snapshot()
	h.ctrl.Stop(ctx)
	assert.Equal(t, before, h.ctrl.Snapshot())
	assert.Zero(t, h.capture.Finalizes())

	h.ctrl.Start(ctx)
	h.ctrl.Stop(ctx)
	after := h.ctrl.Snapshot()
	h.ctrl.Stop(ctx)
	assert.Equal(t, after, h.ctrl.Snapshot())
	assert.Equal(t, 1, h.capture.Finalizes())
}

func TestStart_WhileRecordingIsNoop(t *testing.T) {
	h := newHarness(t, 10, time.Minute)
	ctx := context.Background()

	h.ctrl.Start(ctx)
	first := h.ctrl.Snapshot()
	h.ctrl.Start(ctx)
	h.ctrl.Start(ctx)

	assert.Equal(t, 1, h.capture.Acquires())
	assert.Equal(t, 1, h.capture.LiveStreams())
	assert.Equal(t, first.SessionID, h.ctrl.Snapshot().SessionID)
	h.ctrl.Stop(ctx)
}

func TestStart_ReentrantWhileAcquiring(t *testing.T) {
	h := newHarness(t, 10, time.Minute)
	h.capture.AcquireGate = make(chan struct{})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		h.ctrl.Start(ctx)
		close(done)
	}()
	waitFor(t, h.acquiring, "first start never reached the permission prompt")

	h.ctrl.Start(ctx)
	close(h.capture.AcquireGate)
	<-done

	assert.Equal(t, 1, h.capture.Acquires())
	assert.Equal(t, 1, h.capture.LiveStreams())
	assert.Equal(t, internal_type.StatusRecording, h.status())
	h.ctrl.Stop(ctx)
}

func TestCeiling_AutoStopsExactlyOnce(t *testing.T) {
	h := newHarness(t, 10, 3*time.Second)
	ctx := context.Background()

	h.ctrl.Start(ctx)
	h.clock.Advance(time.Second)
	h.clock.Advance(time.Second)
	assert.Equal(t, internal_type.StatusRecording, h.status())

	h.clock.Advance(time.Second)
	waitFor(t, func() bool { return h.status() == internal_type.StatusSuccess }, "guard did not stop the recording")

	s := h.ctrl.Snapshot()
	assert.True(t, s.HitMaxDuration)
	assert.Equal(t, 1, h.capture.Finalizes())

	h.ctrl.Stop(ctx)
	h.clock.Advance(time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, h.capture.Finalizes())
	assert.Equal(t, 0, h.capture.LiveStreams())
	assert.Equal(t, 0, h.clock.ActiveTickers())
	filenames, _ := h.uploader.calls()
	assert.Len(t, filenames, 1)
}

func TestCeiling_RacingManualStopFinalizesOnce(t *testing.T) {
	for i := 0; i < 25; i++ {
		h := newHarness(t, 100, time.Second)
		ctx := context.Background()
		h.ctrl.Start(ctx)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); h.clock.Advance(time.Second) }()
		go func() { defer wg.Done(); h.ctrl.Stop(ctx) }()
		wg.Wait()

		waitFor(t, func() bool { return h.status() == internal_type.StatusSuccess }, "session never settled")
		assert.Equal(t, 1, h.capture.Finalizes(), "iteration %d", i)
		assert.Equal(t, 0, h.capture.LiveStreams())
		filenames, _ := h.uploader.calls()
		assert.Len(t, filenames, 1)
	}
}

func TestTeardown_WhileRecordingReleasesEverything(t *testing.T) {
	h := newHarness(t, 10, time.Minute)
	ctx := context.Background()

	h.ctrl.Start(ctx)
	require.Equal(t, 1, h.capture.LiveStreams())

	h.ctrl.Teardown(ctx)

	assert.Equal(t, 0, h.capture.LiveStreams())
	assert.Equal(t, 0, h.clock.ActiveTickers())
	assert.False(t, h.ctrl.guard.Armed())
	filenames, _ := h.uploader.calls()
	assert.Empty(t, filenames, "teardown discards the partial clip")

	// nothing runs after teardown
	h.ctrl.Start(ctx)
	h.clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, h.capture.Acquires())
}

func TestTeardown_WhileAcquiringReleasesLateStream(t *testing.T) {
	h := newHarness(t, 10, time.Minute)
	h.capture.AcquireGate = make(chan struct{})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		h.ctrl.Start(ctx)
		close(done)
	}()
	waitFor(t, h.acquiring, "start never reached the permission prompt")

	h.ctrl.Teardown(ctx)
	close(h.capture.AcquireGate)
	<-done

	assert.Equal(t, 1, h.capture.Acquires())
	assert.Equal(t, 0, h.capture.LiveStreams())
	assert.Zero(t, h.clock.ActiveTickers())
	assert.NotEqual(t, internal_type.StatusRecording, h.status())
}

func TestTeardown_DuringUploadSuppressesState(t *testing.T) {
	h := newHarness(t, 10, time.Minute)
	h.uploader.hold = make(chan struct{})
	ctx := context.Background()

	h.ctrl.Start(ctx)
	done := make(chan struct{})
	go func() {
		h.ctrl.Stop(ctx)
		close(done)
	}()
	waitFor(t, func() bool { return h.status() == internal_type.StatusUploading }, "never reached uploading")
	assert.Equal(t, internal_type.MessageUploading, h.ctrl.Snapshot().InfoMessage)

	h.ctrl.Teardown(ctx)
	close(h.uploader.hold)
	<-done

	// the upload itself completed, only the state write was dropped
	_, transfers := h.uploader.calls()
	assert.Len(t, transfers, 1)
	assert.Equal(t, internal_type.StatusUploading, h.status())
	assert.Equal(t, 1, h.limiter.Count(ctx))
}

func TestAcquireFailures(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{internal_type.ErrPermissionDenied, internal_type.MessagePermissionDenied},
		{fmt.Errorf("hw:1 busy: %w", internal_type.ErrDeviceUnavailable), internal_type.MessageDeviceUnavailable},
		{internal_type.ErrUnsupportedEnvironment, internal_type.MessageUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			h := newHarness(t, 10, time.Minute)
			h.capture.AcquireErr = tt.err
			h.ctrl.Start(context.Background())

			s := h.ctrl.Snapshot()
			assert.Equal(t, internal_type.StatusError, s.Status)
			assert.Equal(t, tt.expected, s.ErrorMessage)
			assert.Nil(t, s.StartedAt)
			assert.Zero(t, h.capture.LiveStreams())
			assert.Zero(t, h.clock.ActiveTickers())
		})
	}
}

func TestBeginEncodingFailureReleasesStream(t *testing.T) {
	h := newHarness(t, 10, time.Minute)
	h.capture.EncodeErr = fmt.Errorf("no muxer: %w", internal_type.ErrEncodingFailure)
	h.ctrl.Start(context.Background())

	assert.Equal(t, internal_type.StatusError, h.status())
	assert.Equal(t, internal_type.MessageEncodingFailure, h.ctrl.Snapshot().ErrorMessage)
	require.Len(t, h.capture.Streams(), 1)
	assert.Equal(t, 1, h.capture.Streams()[0].Releases())
	assert.Zero(t, h.capture.LiveStreams())
}

func TestFinalizeFailureStillReleases(t *testing.T) {
	h := newHarness(t, 10, time.Minute)
	h.capture.FinalizeErr = fmt.Errorf("encoder crashed: %w", internal_type.ErrEncodingFailure)
	ctx := context.Background()

	h.ctrl.Start(ctx)
	h.ctrl.Stop(ctx)

	s := h.ctrl.Snapshot()
	assert.Equal(t, internal_type.StatusError, s.Status)
	assert.Equal(t, internal_type.MessageEncodingFailure, s.ErrorMessage)
	assert.Nil(t, s.Artifact)
	assert.Zero(t, h.capture.LiveStreams())
	filenames, _ := h.uploader.calls()
	assert.Empty(t, filenames)
}

func TestEmptyRecordingIsNotUploaded(t *testing.T) {
	h := newHarness(t, 10, time.Minute)
	h.capture.Payload = nil
	ctx := context.Background()

	h.ctrl.Start(ctx)
	h.ctrl.Stop(ctx)

	s := h.ctrl.Snapshot()
	assert.Equal(t, internal_type.StatusIdle, s.Status)
	assert.Equal(t, internal_type.MessageEmptyRecording, s.InfoMessage)
	assert.Empty(t, s.ErrorMessage)
	filenames, _ := h.uploader.calls()
	assert.Empty(t, filenames)
	assert.Equal(t, 0, h.limiter.Count(ctx))
}

func TestStart_ClearsMessagesAfterError(t *testing.T) {
	h := newHarness(t, 10, time.Minute)
	h.capture.AcquireErr = internal_type.ErrPermissionDenied
	ctx := context.Background()

	h.ctrl.Start(ctx)
	require.Equal(t, internal_type.StatusError, h.status())

	h.capture.AcquireErr = nil
	h.ctrl.Start(ctx)
	s := h.ctrl.Snapshot()
	assert.Equal(t, internal_type.StatusRecording, s.Status)
	assert.Empty(t, s.ErrorMessage)
	assert.Empty(t, s.InfoMessage)
	assert.False(t, s.HitMaxDuration)
	h.ctrl.Stop(ctx)
}

func TestChangedNotifies(t *testing.T) {
	h := newHarness(t, 10, time.Minute)
	h.ctrl.Start(context.Background())

	select {
	case <-h.ctrl.Changed():
	case <-time.After(time.Second):
		t.Fatal("no change notification after start")
	}
	h.ctrl.Stop(context.Background())
}

func TestAtMostOneStreamAcrossSequences(t *testing.T) {
	h := newHarness(t, 1000, time.Minute)
	ctx := context.Background()

	ops := "sSsssSSsSsSSSsssS"
	for i, op := range ops {
		if op == 's' {
			h.ctrl.Start(ctx)
		} else {
			h.ctrl.Stop(ctx)
		}
		assert.LessOrEqual(t, h.capture.LiveStreams(), 1, "after op %d (%c)", i, op)
	}
	h.ctrl.Teardown(ctx)
	assert.Zero(t, h.capture.LiveStreams())
}

func TestConcurrentStartsAcquireOnce(t *testing.T) {
	h := newHarness(t, 10, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.ctrl.Start(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.capture.Acquires())
	assert.Equal(t, 1, h.capture.LiveStreams())
	h.ctrl.Stop(ctx)
}

func TestStorageOutageStillRecords(t *testing.T) {
	logger := newTestLogger(t)
	clock := internal_guard.NewManualClock(time.Now())
	capture := fake.New()
	ctrl := NewRecordingController(logger, capture,
		internal_limiter.NewRecordingLimiter(failingStore{}, 1, logger),
		&stubUploader{}, time.Minute, WithClock(clock))

	ctx := context.Background()
	ctrl.Start(ctx)
	ctrl.Stop(ctx)
	ctrl.Start(ctx)
	assert.Equal(t, internal_type.StatusRecording, ctrl.Snapshot().Status, "unknown count permits recording")
	assert.Equal(t, 2, capture.Acquires())
	ctrl.Teardown(ctx)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("quota exceeded on disk")
}
func (failingStore) Set(context.Context, string, string) error {
	return errors.New("read-only file system")
}
func (failingStore) Delete(context.Context, string) error { return nil }

// heldGuard keeps every armed callback so a test can fire one late.
type heldGuard struct {
	mu        sync.Mutex
	callbacks []func()
	armed     bool
}

func (g *heldGuard) Arm(start time.Time, ceiling time.Duration, cb func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.callbacks = append(g.callbacks, cb)
	g.armed = true
}

func (g *heldGuard) Disarm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = false
}

func (g *heldGuard) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.armed
}

func (g *heldGuard) callback(i int) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.callbacks[i]
}

func TestCeiling_LateCallbackLeavesNextSessionAlone(t *testing.T) {
	guard := &heldGuard{}
	h := newHarness(t, 10, time.Minute, WithGuard(guard))
	ctx := context.Background()

	h.ctrl.Start(ctx)
	require.Equal(t, internal_type.StatusRecording, h.status())
	h.ctrl.Stop(ctx)
	require.Equal(t, internal_type.StatusSuccess, h.status())

	h.ctrl.Start(ctx)
	require.Equal(t, internal_type.StatusRecording, h.status())
	second := h.ctrl.Snapshot().SessionID

	// the first session's ceiling fires after it was already stopped by hand
	guard.callback(0)()

	snap := h.ctrl.Snapshot()
	assert.Equal(t, internal_type.StatusRecording, snap.Status)
	assert.Equal(t, second, snap.SessionID)
	assert.False(t, snap.HitMaxDuration)
	assert.Equal(t, 1, h.capture.Finalizes())

	guard.callback(1)()

	snap = h.ctrl.Snapshot()
	assert.Equal(t, internal_type.StatusSuccess, snap.Status)
	assert.True(t, snap.HitMaxDuration)
	assert.Equal(t, 2, h.capture.Finalizes())
	assert.Equal(t, 0, h.capture.LiveStreams())
}

func TestTeardown_WaitsForInFlightStopToRelease(t *testing.T) {
	h := newHarness(t, 10, time.Minute)
	gate := make(chan struct{})
	h.capture.FinalizeGate = gate
	ctx := context.Background()

	h.ctrl.Start(ctx)
	require.Equal(t, internal_type.StatusRecording, h.status())
	go h.ctrl.Stop(ctx)
	waitFor(t, func() bool { return h.capture.Finalizes() == 1 }, "stop never reached finalize")

	done := make(chan struct{})
	go func() {
		h.ctrl.Teardown(ctx)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("teardown returned while the stopping stream was still live")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("teardown did not return after the stop released its stream")
	}
	assert.Equal(t, 0, h.capture.LiveStreams())
	assert.Equal(t, 1, h.capture.Finalizes())
}
