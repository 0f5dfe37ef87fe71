// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rapidaai/voicemail/pkg/commons"
)

const (
	dropboxApiUrl             = "https://api.dropboxapi.com"
	dropboxTemporaryUploadUrl = "/2/files/get_temporary_upload_link"
)

type dropboxProvider struct {
	logger commons.Logger
	client *resty.Client
	apiUrl string
	token  string
	ttl    time.Duration
}

type dropboxCommitInfo struct {
	Path       string `json:"path"`
	Mode       string `json:"mode"`
	Autorename bool   `json:"autorename"`
	Mute       bool   `json:"mute"`
}

type dropboxUploadLinkRequest struct {
	CommitInfo dropboxCommitInfo `json:"commit_info"`
	Duration   float64           `json:"duration"`
}

type dropboxUploadLinkResponse struct {
	Link string `json:"link"`
}

// DropboxError is the error body the Dropbox API returns on 4xx/5xx.
type DropboxError struct {
	ErrorSummary string          `json:"error_summary"`
	Detail       json.RawMessage `json:"error"`
	StatusCode   int             `json:"-"`
}

func (e DropboxError) Error() string {
	b, err := json.Marshal(e)
	if err != nil {
		return "undefined error"
	}
	return fmt.Sprintf("dropbox status %d: %s", e.StatusCode, string(b))
}

func NewDropboxProvider(logger commons.Logger, token string, ttl time.Duration) Provider {
	return newDropboxProvider(logger, dropboxApiUrl, token, ttl)
}

func newDropboxProvider(logger commons.Logger, apiUrl, token string, ttl time.Duration) *dropboxProvider {
	return &dropboxProvider{
		logger: logger,
		client: resty.New().SetTimeout(30 * time.Second),
		apiUrl: apiUrl,
		token:  token,
		ttl:    ttl,
	}
}

func (d *dropboxProvider) Name() string { return PROVIDER_DROPBOX }

func (d *dropboxProvider) Endpoint(url string) string {
	return fmt.Sprintf("%s%s", d.apiUrl, url)
}

func (d *dropboxProvider) TemporaryUploadLink(ctx context.Context, path string) (*UploadLink, error) {
	if d.token == "" {
		d.logger.Errorf("dropbox access token is not configured")
		return nil, errors.New("dropbox access token is not configured")
	}

	var (
		result dropboxUploadLinkResponse
		apiErr DropboxError
	)
	resp, err := d.client.R().
		SetContext(ctx).
		SetAuthToken(d.token).
		SetHeader("Content-Type", "application/json").
		SetBody(dropboxUploadLinkRequest{
			CommitInfo: dropboxCommitInfo{
				Path:       path,
				Mode:       "add",
				Autorename: true,
				Mute:       false,
			},
			Duration: d.ttl.Seconds(),
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post(d.Endpoint(dropboxTemporaryUploadUrl))
	if err != nil {
		return nil, fmt.Errorf("dropbox request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		apiErr.StatusCode = resp.StatusCode()
		return nil, apiErr
	}
	if result.Link == "" {
		return nil, errors.New("dropbox returned an empty upload link")
	}
	d.logger.Debugf("dropbox issued upload link for %s", path)
	return &UploadLink{URL: result.Link, Path: path, Method: http.MethodPost}, nil
}
