// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_capture

const (
	MediaTypeWebmOpus = "audio/webm;codecs=opus"
	MediaTypeWebm     = "audio/webm"
	MediaTypeOggOpus  = "audio/ogg;codecs=opus"
	MediaTypeOgg      = "audio/ogg"
	MediaTypeWav      = "audio/wav"
)

// preferredMediaTypes is ordered best first.
var preferredMediaTypes = []string{
	MediaTypeWebmOpus,
	MediaTypeWebm,
	MediaTypeOggOpus,
	MediaTypeOgg,
}

// SelectMediaType returns the first preferred media type the environment
// supports, or fallback when none is explicitly supported.
func SelectMediaType(isSupported func(mediaType string) bool, fallback string) string {
	for _, mediaType := range preferredMediaTypes {
		if isSupported != nil && isSupported(mediaType) {
			return mediaType
		}
	}
	return fallback
}

// ffmpegOutputArgs returns the codec and muxer flags for a media type.
func ffmpegOutputArgs(mediaType string) []string {
	switch mediaType {
	case MediaTypeWebmOpus:
		return []string{"-c:a", "libopus", "-f", "webm"}
	case MediaTypeWebm:
		return []string{"-f", "webm"}
	case MediaTypeOggOpus:
		return []string{"-c:a", "libopus", "-f", "ogg"}
	case MediaTypeOgg:
		return []string{"-f", "ogg"}
	default:
		return []string{"-f", "wav"}
	}
}
