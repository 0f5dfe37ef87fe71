// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/rapidaai/voicemail/pkg/commons"
	"github.com/rapidaai/voicemail/pkg/configs"
)

// maxRenameAttempts bounds the "name (n).ext" probing on collisions.
const maxRenameAttempts = 100

type s3Provider struct {
	logger commons.Logger
	client s3iface.S3API
	bucket string
	ttl    time.Duration
}

func NewS3Provider(logger commons.Logger, cfg *configs.S3Config, ttl time.Duration) (Provider, error) {
	if cfg.Bucket == "" {
		logger.Errorf("Unable to get client for s3 without bucket")
		return nil, errors.New("s3 bucket is not configured")
	}
	awsCfg, err := s3Cfg(cfg)
	if err != nil {
		logger.Errorf("Unable to get client for s3: %v", err)
		return nil, err
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create aws session: %w", err)
	}
	return &s3Provider{
		logger: logger,
		client: s3.New(sess),
		bucket: cfg.Bucket,
		ttl:    ttl,
	}, nil
}

func s3Cfg(cfg *configs.S3Config) (*aws.Config, error) {
	if cfg.Region == "" {
		return nil, errors.New("unable to resolve the region for aws")
	}
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	switch {
	case cfg.AccessKeyId != "" && cfg.SecretAccessKey != "":
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyId, cfg.SecretAccessKey, ""))
	case cfg.AccessKeyId != "" || cfg.SecretAccessKey != "":
		return nil, errors.New("unable to resolve the credential for aws")
	}
	// otherwise the default chain: env, shared config, instance role
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}
	return awsCfg, nil
}

func (p *s3Provider) Name() string { return PROVIDER_S3 }

func (p *s3Provider) TemporaryUploadLink(ctx context.Context, storagePath string) (*UploadLink, error) {
	key, err := p.freeKey(ctx, strings.TrimPrefix(storagePath, "/"))
	if err != nil {
		return nil, err
	}
	req, _ := p.client.PutObjectRequest(&s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String("application/octet-stream"),
	})
	url, err := req.Presign(p.ttl)
	if err != nil {
		return nil, fmt.Errorf("presigning put for %s: %w", key, err)
	}
	p.logger.Debugf("s3 issued upload link for s3://%s/%s", p.bucket, key)
	return &UploadLink{URL: url, Path: "/" + key, Method: http.MethodPut}, nil
}

// freeKey mirrors add-mode autorename: keep the key if it is free, else try
// "name (1).ext", "name (2).ext" and so on.
func (p *s3Provider) freeKey(ctx context.Context, key string) (string, error) {
	ext := path.Ext(key)
	base := strings.TrimSuffix(key, ext)
	candidate := key
	for i := 1; i <= maxRenameAttempts; i++ {
		exists, err := p.exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
	}
	return "", fmt.Errorf("no free key for %s after %d attempts", key, maxRenameAttempts)
}

func (p *s3Provider) exists(ctx context.Context, key string) (bool, error) {
	_, err := p.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) && (aerr.Code() == "NotFound" || aerr.Code() == s3.ErrCodeNoSuchKey) {
		return false, nil
	}
	return false, fmt.Errorf("checking s3://%s/%s: %w", p.bucket, key, err)
}
