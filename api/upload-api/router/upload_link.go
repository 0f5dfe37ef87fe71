// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package upload_routers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	uploadApi "github.com/rapidaai/voicemail/api/upload-api/api"
	internal_storage "github.com/rapidaai/voicemail/api/upload-api/internal/storage"
	"github.com/rapidaai/voicemail/config"
	"github.com/rapidaai/voicemail/pkg/commons"
	"github.com/rapidaai/voicemail/pkg/utils"
)

// UploadLinkPath is where the answering machine asks for write targets.
const UploadLinkPath = "/api/dropbox/upload-link"

func CorsMiddleware(cfg *config.AppConfig) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			utils.HEADER_CLIENT_ID,
			utils.HEADER_SOURCE_KEY,
			utils.HEADER_REQUEST_ID,
			utils.HEADER_ENVIRONMENT_KEY,
		},
		MaxAge: 12 * time.Hour,
	}
	origins := cfg.CorsConfig.AllowOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	return cors.New(corsCfg)
}

// UploadRoutes builds the configured storage provider and mounts the
// upload-link and health routes on engine.
func UploadRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger) error {
	provider, err := internal_storage.NewProvider(&cfg.StorageConfig, logger)
	if err != nil {
		logger.Errorf("unable to create storage provider: %v", err)
		return err
	}
	engine.Use(CorsMiddleware(cfg))
	UploadLinkRoutes(cfg, engine, logger, provider)
	HealthCheckRoutes(cfg, engine, logger, provider)
	return nil
}

func UploadLinkRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, provider internal_storage.Provider) {
	logger.Info("Internal UploadLinkRoutes added to engine.")
	apiv1 := engine.Group("")
	ulApi := uploadApi.NewUploadLinkApi(cfg, logger, provider)
	{
		apiv1.POST(UploadLinkPath, ulApi.CreateUploadLink)
	}
}

func HealthCheckRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, provider internal_storage.Provider) {
	logger.Info("Internal HealthCheckRoutes added to engine.")
	apiv1 := engine.Group("")
	hcApi := uploadApi.NewHealthCheckApi(cfg, logger, provider)
	{
		apiv1.GET("/readiness/", hcApi.Readiness)
		apiv1.GET("/healthz/", hcApi.Healthz)
	}
}
