// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rapidaai/voicemail/pkg/commons"
	"github.com/rapidaai/voicemail/pkg/configs"
)

const (
	PROVIDER_DROPBOX = "dropbox"
	PROVIDER_S3      = "s3"

	DefaultLinkTTL = 10 * time.Minute
)

// UploadLink is a short-lived, single-use write destination for one file.
type UploadLink struct {
	URL    string
	Path   string
	Method string
}

// Provider issues upload links against one storage backend. The provider
// holds the durable credential; callers only ever see the link.
type Provider interface {
	Name() string
	// TemporaryUploadLink asks the backend for a link that writes path. On a
	// name collision the backend keeps both files.
	TemporaryUploadLink(ctx context.Context, path string) (*UploadLink, error)
}

// NewProvider builds the provider named in the storage config.
func NewProvider(cfg *configs.StorageConfig, logger commons.Logger) (Provider, error) {
	ttl := time.Duration(cfg.LinkTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	switch strings.ToLower(cfg.Provider) {
	case PROVIDER_DROPBOX:
		return NewDropboxProvider(logger, cfg.AccessToken, ttl), nil
	case PROVIDER_S3:
		return NewS3Provider(logger, &cfg.S3, ttl)
	}
	return nil, fmt.Errorf("unsupported storage provider %q", cfg.Provider)
}

// JoinPath composes the storage path from the configured folder and a bare
// filename.
func JoinPath(folder, filename string) string {
	return strings.TrimRight(folder, "/") + "/" + filename
}
