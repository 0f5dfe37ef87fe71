// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

// Artifact is a finalized, immutable encoded recording.
type Artifact struct {
	mediaType string
	data      []byte
}

// NewArtifact copies data so later writes by the caller never reach the artifact.
func NewArtifact(mediaType string, data []byte) *Artifact {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Artifact{mediaType: mediaType, data: buf}
}

func (a *Artifact) MediaType() string {
	return a.mediaType
}

// Bytes returns a copy of the encoded payload.
func (a *Artifact) Bytes() []byte {
	buf := make([]byte, len(a.data))
	copy(buf, a.data)
	return buf
}

func (a *Artifact) Size() int {
	return len(a.data)
}

// Empty is true when the encoder produced no audio at all.
func (a *Artifact) Empty() bool {
	return a == nil || len(a.data) == 0
}
