// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/voicemail/pkg/configs"
)

// fakeBucket answers HEAD object requests for a path style S3 endpoint.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]bool
	heads   []string
	status  int
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heads = append(f.heads, r.URL.Path)
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	if r.Method == http.MethodHead && f.objects[r.URL.Path] {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func newS3TestProvider(t *testing.T, bucket *fakeBucket) Provider {
	t.Helper()
	server := httptest.NewServer(bucket)
	t.Cleanup(server.Close)
	p, err := NewS3Provider(newTestLogger(t), &configs.S3Config{
		Bucket:          "messages",
		Region:          "us-east-1",
		AccessKeyId:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		Endpoint:        server.URL,
	}, 5*time.Minute)
	require.NoError(t, err)
	return p
}

func TestS3TemporaryUploadLink(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]bool{}}
	p := newS3TestProvider(t, bucket)

	link, err := p.TemporaryUploadLink(context.Background(), "/voicemails/message.webm")
	require.NoError(t, err)
	assert.Equal(t, "/voicemails/message.webm", link.Path)
	assert.Equal(t, http.MethodPut, link.Method)

	u, err := url.Parse(link.URL)
	require.NoError(t, err)
	assert.Equal(t, "/messages/voicemails/message.webm", u.Path)
	assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, []string{"/messages/voicemails/message.webm"}, bucket.heads)
}

func TestS3AutorenameOnCollision(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]bool{
		"/messages/voicemails/message.webm":     true,
		"/messages/voicemails/message (1).webm": true,
	}}
	p := newS3TestProvider(t, bucket)

	link, err := p.TemporaryUploadLink(context.Background(), "/voicemails/message.webm")
	require.NoError(t, err)
	assert.Equal(t, "/voicemails/message (2).webm", link.Path)
	assert.Len(t, bucket.heads, 3)
}

func TestS3HeadFailure(t *testing.T) {
	bucket := &fakeBucket{status: http.StatusForbidden}
	p := newS3TestProvider(t, bucket)

	_, err := p.TemporaryUploadLink(context.Background(), "/voicemails/message.webm")
	assert.Error(t, err)
}

func TestS3ConfigValidation(t *testing.T) {
	logger := newTestLogger(t)

	_, err := NewS3Provider(logger, &configs.S3Config{Region: "us-east-1"}, time.Minute)
	assert.Error(t, err, "bucket is required")

	_, err = NewS3Provider(logger, &configs.S3Config{Bucket: "b"}, time.Minute)
	assert.Error(t, err, "region is required")

	_, err = NewS3Provider(logger, &configs.S3Config{Bucket: "b", Region: "us-east-1", AccessKeyId: "only-id"}, time.Minute)
	assert.Error(t, err, "half a credential pair is rejected")
}
