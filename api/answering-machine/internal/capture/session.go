// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_capture

import (
	"fmt"
	"os/exec"

	internal_type "github.com/rapidaai/voicemail/api/answering-machine/internal/type"
	"github.com/rapidaai/voicemail/pkg/commons"
	"github.com/rapidaai/voicemail/pkg/configs"
)

const (
	BackendFFmpeg    = "ffmpeg"
	BackendPortaudio = "portaudio"
)

// Support describes whether this host can record at all.
type Support struct {
	Supported bool
	Reason    string
}

// NewCaptureSession returns the capture backend named in the config.
func NewCaptureSession(cfg *configs.CaptureConfig, logger commons.Logger) (internal_type.CaptureSession, error) {
	switch cfg.Backend {
	case BackendFFmpeg, "":
		return newFFmpegSession(cfg, logger), nil
	case BackendPortaudio:
		return newPortaudioSession(cfg, logger)
	}
	return nil, fmt.Errorf("unknown capture backend %q: %w", cfg.Backend, internal_type.ErrUnsupportedEnvironment)
}

// CheckSupport probes the configured backend without opening the microphone
// for longer than needed.
func CheckSupport(cfg *configs.CaptureConfig) Support {
	switch cfg.Backend {
	case BackendFFmpeg, "":
		if _, err := exec.LookPath("ffmpeg"); err != nil {
			return Support{Reason: "ffmpeg was not found on PATH"}
		}
		return Support{Supported: true}
	case BackendPortaudio:
		return portaudioSupport()
	}
	return Support{Reason: fmt.Sprintf("unknown capture backend %q", cfg.Backend)}
}
