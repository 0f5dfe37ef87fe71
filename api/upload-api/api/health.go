// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package upload_api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	internal_storage "github.com/rapidaai/voicemail/api/upload-api/internal/storage"
	"github.com/rapidaai/voicemail/config"
	"github.com/rapidaai/voicemail/pkg/commons"
)

type HealthCheckApi struct {
	cfg      *config.AppConfig
	logger   commons.Logger
	provider internal_storage.Provider
}

// NewHealthCheckApi reports on the upload-link service alone; it holds no
// connection of its own, so readiness only needs a configured provider.
func NewHealthCheckApi(cfg *config.AppConfig, logger commons.Logger, provider internal_storage.Provider) *HealthCheckApi {
	return &HealthCheckApi{cfg: cfg, logger: logger, provider: provider}
}

func (h *HealthCheckApi) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"healthy": true})
}

func (h *HealthCheckApi) Readiness(c *gin.Context) {
	if h.provider == nil {
		h.logger.Warnf("readiness failed, no storage provider configured")
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ready":    true,
		"service":  h.cfg.Name,
		"version":  h.cfg.Version,
		"provider": h.provider.Name(),
	})
}
