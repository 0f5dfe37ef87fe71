// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import "time"

type SessionStatus string

// Recording session status constants.
const (
	StatusIdle      SessionStatus = "idle"
	StatusRecording SessionStatus = "recording"
	StatusUploading SessionStatus = "uploading"
	StatusSuccess   SessionStatus = "success"
	StatusError     SessionStatus = "error"
)

func (s SessionStatus) String() string {
	return string(s)
}

// SessionSnapshot is a point-in-time copy of the recording session that
// observers can read without holding the controller's lock.
type SessionSnapshot struct {
	SessionID      string
	Status         SessionStatus
	StartedAt      *time.Time
	HitMaxDuration bool
	ErrorMessage   string
	InfoMessage    string
	Artifact       *Artifact
	// UploadedPath is where storage put the last successful upload; it may
	// differ from the requested filename after an auto-rename.
	UploadedPath string
}

// IsRecording returns true while a live stream and encoder exist.
func (s SessionSnapshot) IsRecording() bool {
	return s.Status == StatusRecording
}

// Elapsed returns how long the current recording has been running.
func (s SessionSnapshot) Elapsed(now time.Time) time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	return now.Sub(*s.StartedAt)
}
