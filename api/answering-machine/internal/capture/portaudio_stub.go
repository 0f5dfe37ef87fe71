// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

//go:build !portaudio

package internal_capture

import (
	"fmt"

	internal_type "github.com/rapidaai/voicemail/api/answering-machine/internal/type"
	"github.com/rapidaai/voicemail/pkg/commons"
	"github.com/rapidaai/voicemail/pkg/configs"
)

func newPortaudioSession(cfg *configs.CaptureConfig, logger commons.Logger) (internal_type.CaptureSession, error) {
	return nil, fmt.Errorf("binary built without the portaudio tag: %w", internal_type.ErrUnsupportedEnvironment)
}

func portaudioSupport() Support {
	return Support{Reason: "binary built without the portaudio tag"}
}
