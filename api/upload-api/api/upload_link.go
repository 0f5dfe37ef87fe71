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
	"github.com/rapidaai/voicemail/pkg/utils"
)

const (
	errFilenameRequired = "Filename is required"
	errLinkFailed       = "Failed to generate upload link"
)

type uploadLinkResponse struct {
	UploadUrl string `json:"uploadUrl"`
	Path      string `json:"path"`
	Method    string `json:"method"`
}

type UploadLinkApi struct {
	cfg      *config.AppConfig
	logger   commons.Logger
	provider internal_storage.Provider
}

func NewUploadLinkApi(cfg *config.AppConfig, logger commons.Logger, provider internal_storage.Provider) *UploadLinkApi {
	return &UploadLinkApi{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
	}
}

// CreateUploadLink issues a temporary upload link for {"filename": "..."}.
// The storage credential never leaves this process.
func (api *UploadLinkApi) CreateUploadLink(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		api.logger.Debugf("upload link request with unreadable body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": errFilenameRequired})
		return
	}

	filename, ok := body["filename"].(string)
	if !ok || !utils.IsPlainFilename(filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errFilenameRequired})
		return
	}

	path := internal_storage.JoinPath(api.cfg.StorageConfig.FolderPath, filename)
	link, err := api.provider.TemporaryUploadLink(c.Request.Context(), path)
	if err != nil {
		api.logger.Errorw("unable to generate upload link",
			"provider", api.provider.Name(),
			"path", path,
			"request_id", c.GetHeader(utils.HEADER_REQUEST_ID),
			"client_id", c.GetHeader(utils.HEADER_CLIENT_ID),
			"error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errLinkFailed})
		return
	}

	api.logger.Infow("issued upload link",
		"provider", api.provider.Name(),
		"path", link.Path,
		"request_id", c.GetHeader(utils.HEADER_REQUEST_ID),
		"source", c.GetHeader(utils.HEADER_SOURCE_KEY))
	c.JSON(http.StatusOK, uploadLinkResponse{
		UploadUrl: link.URL,
		Path:      link.Path,
		Method:    link.Method,
	})
}
