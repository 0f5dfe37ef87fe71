// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import "errors"

var (
	// acquisition
	ErrPermissionDenied       = errors.New("microphone permission denied")
	ErrDeviceUnavailable      = errors.New("microphone unavailable")
	ErrUnsupportedEnvironment = errors.New("recording not supported in this environment")

	// limiter
	ErrQuotaExceeded = errors.New("recording quota exceeded")

	// finalize
	ErrEncodingFailure = errors.New("encoding failure")

	// upload
	ErrTargetUnavailable = errors.New("upload target unavailable")
	ErrTransferFailed    = errors.New("transfer failed")
)

const (
	MessageQuotaExceeded     = "You've reached the maximum number of recordings."
	MessagePermissionDenied  = "Failed to start recording. Please check microphone permissions."
	MessageDeviceUnavailable = "No microphone was found, or it is in use by another application."
	MessageUnsupported       = "Recording is not supported in this environment."
	MessageEncodingFailure   = "Failed to process recording. Please try again."
	MessageUploadFailure     = "Failed to save your message. Please try again."
	MessageUploading         = "Saving your message..."
	MessageSuccess           = "Thanks for your message!"
	MessageEmptyRecording    = "Nothing was recorded. Please try again."
)

// UserMessage maps an error to a sanitized user-facing string. Raw error
// detail never leaves this function; callers log it separately.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrQuotaExceeded):
		return MessageQuotaExceeded
	case errors.Is(err, ErrPermissionDenied):
		return MessagePermissionDenied
	case errors.Is(err, ErrDeviceUnavailable):
		return MessageDeviceUnavailable
	case errors.Is(err, ErrUnsupportedEnvironment):
		return MessageUnsupported
	case errors.Is(err, ErrEncodingFailure):
		return MessageEncodingFailure
	case errors.Is(err, ErrTargetUnavailable), errors.Is(err, ErrTransferFailed):
		return MessageUploadFailure
	}
	// anything unclassified at acquire time is treated like a refused prompt
	return MessagePermissionDenied
}
