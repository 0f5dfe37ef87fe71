// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import "context"

// Stream is a live microphone input handle returned by Acquire.
type Stream interface {
	// ID identifies the stream in logs.
	ID() string
	// Live reports whether the stream still holds the hardware.
	Live() bool
}

// Encoder is a running encoder attached to a Stream.
type Encoder interface {
	// MediaType is the negotiated media type, e.g. "audio/webm;codecs=opus".
	MediaType() string
}

// CaptureSession owns microphone acquisition and encoding for one recording
// attempt. The controller drives it strictly in the order
// Acquire -> BeginEncoding -> Finalize -> Release, and Release runs on every
// exit path once Acquire has succeeded.
type CaptureSession interface {
	// Acquire requests microphone access. It fails with ErrPermissionDenied,
	// ErrDeviceUnavailable or ErrUnsupportedEnvironment.
	Acquire(ctx context.Context) (Stream, error)

	// BeginEncoding picks the best supported media type and starts buffering
	// encoded chunks from the stream.
	BeginEncoding(ctx context.Context, stream Stream) (Encoder, error)

	// Finalize stops the encoder and concatenates the buffered chunks into
	// one artifact. It must be called at most once per encoder. Failures are
	// reported as ErrEncodingFailure.
	Finalize(ctx context.Context, encoder Encoder) (*Artifact, error)

	// Release stops the input stream. Safe to call more than once.
	Release(stream Stream)
}
