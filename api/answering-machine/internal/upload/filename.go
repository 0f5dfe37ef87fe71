// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_upload

import (
	"strings"
	"time"
)

const filenameLayout = "2006-01-02_15-04-05"

// ExtensionFor derives a file extension from a media type. Unknown types get
// mp3.
func ExtensionFor(mediaType string) string {
	m := strings.ToLower(mediaType)
	switch {
	case strings.Contains(m, "mp3"), strings.Contains(m, "mpeg"):
		return "mp3"
	case strings.Contains(m, "webm"):
		return "webm"
	case strings.Contains(m, "ogg"):
		return "ogg"
	case strings.Contains(m, "wav"):
		return "wav"
	case strings.Contains(m, "mp4"):
		return "m4a"
	}
	return "mp3"
}

// MakeFilename builds message-YYYY-MM-DD_HH-MM-SS.<ext> from the wall clock.
// Collisions are left to the storage side.
func MakeFilename(t time.Time, mediaType string) string {
	return "message-" + t.Format(filenameLayout) + "." + ExtensionFor(mediaType)
}
