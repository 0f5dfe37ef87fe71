// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_upload

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	internal_type "github.com/rapidaai/voicemail/api/answering-machine/internal/type"
	"github.com/rapidaai/voicemail/pkg/commons"
	"github.com/rapidaai/voicemail/pkg/utils"
)

// UploadLinkPath is the issuance endpoint relative to the link service.
const UploadLinkPath = "/api/dropbox/upload-link"

const defaultTimeout = 2 * time.Minute

type uploadLinkRequest struct {
	Filename string `json:"filename"`
}

type uploadLinkError struct {
	Error string `json:"error"`
}

type uploadPipeline struct {
	logger   commons.Logger
	client   *resty.Client
	baseURL  string
	clientId string
}

type Option func(*uploadPipeline)

// WithClientId tags requests with the answering machine's client id.
func WithClientId(id string) Option {
	return func(p *uploadPipeline) { p.clientId = id }
}

func NewUploadPipeline(baseURL string, logger commons.Logger, opts ...Option) internal_type.UploadPipeline {
	p := &uploadPipeline{
		logger:  logger,
		client:  resty.New(),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client.SetTimeout(defaultTimeout)
	p.client.SetHeader(utils.HEADER_SOURCE_KEY, utils.SOURCE_ANSWERING_MACHINE)
	if p.clientId != "" {
		p.client.SetHeader(utils.HEADER_CLIENT_ID, p.clientId)
	}
	return p
}

func (p *uploadPipeline) RequestUploadTarget(ctx context.Context, filename string) (*internal_type.UploadTarget, error) {
	var (
		target internal_type.UploadTarget
		apiErr uploadLinkError
	)
	requestId := uuid.New().String()
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader(utils.HEADER_REQUEST_ID, requestId).
		SetBody(uploadLinkRequest{Filename: filename}).
		SetResult(&target).
		SetError(&apiErr).
		Post(p.baseURL + UploadLinkPath)
	if err != nil {
		p.logger.Errorw("upload link request failed", "requestId", requestId, "error", err)
		return nil, fmt.Errorf("requesting upload link: %v: %w", err, internal_type.ErrTargetUnavailable)
	}
	if resp.StatusCode() != http.StatusOK {
		p.logger.Errorw("upload link rejected", "requestId", requestId, "status", resp.StatusCode(), "error", apiErr.Error)
		return nil, fmt.Errorf("upload link status %d: %w", resp.StatusCode(), internal_type.ErrTargetUnavailable)
	}
	if target.URL == "" {
		p.logger.Errorw("upload link response without url", "requestId", requestId)
		return nil, fmt.Errorf("upload link response without url: %w", internal_type.ErrTargetUnavailable)
	}
	p.logger.Debugw("upload target issued", "requestId", requestId, "path", target.Path)
	return &target, nil
}

func (p *uploadPipeline) TransferBytes(ctx context.Context, artifact *internal_type.Artifact, target *internal_type.UploadTarget) error {
	method := http.MethodPost
	if m := strings.ToUpper(strings.TrimSpace(target.Method)); m != "" {
		method = m
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(artifact.Bytes()).
		Execute(method, target.URL)
	if err != nil {
		p.logger.Errorw("transfer failed", "path", target.Path, "error", err)
		return fmt.Errorf("transferring %d bytes: %v: %w", artifact.Size(), err, internal_type.ErrTransferFailed)
	}
	if !resp.IsSuccess() {
		p.logger.Errorw("transfer rejected", "path", target.Path, "status", resp.StatusCode(), "body", resp.String())
		return fmt.Errorf("transfer status %d: %w", resp.StatusCode(), internal_type.ErrTransferFailed)
	}
	p.logger.Infow("transfer complete", "path", target.Path, "bytes", artifact.Size())
	return nil
}
