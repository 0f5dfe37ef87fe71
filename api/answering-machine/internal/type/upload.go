// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import "context"

// UploadTarget is a short-lived, single-use destination for one file.
type UploadTarget struct {
	URL    string `json:"uploadUrl"`
	Path   string `json:"path"`
	Method string `json:"method,omitempty"`
}

// UploadPipeline persists an artifact through a two-phase handoff: ask the
// link service for a target, then send the bytes straight to it.
type UploadPipeline interface {
	// RequestUploadTarget fails with ErrTargetUnavailable.
	RequestUploadTarget(ctx context.Context, filename string) (*UploadTarget, error)
	// TransferBytes fails with ErrTransferFailed on any non-2xx response.
	TransferBytes(ctx context.Context, artifact *Artifact, target *UploadTarget) error
}

// Limiter gates how many recordings a client may make.
type Limiter interface {
	CanRecord(ctx context.Context) bool
	Increment(ctx context.Context) error
	Count(ctx context.Context) int
	Remaining(ctx context.Context) int
	Reset(ctx context.Context) error
	// Max is the effective ceiling after defaults are applied.
	Max() int
}
