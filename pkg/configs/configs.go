// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package configs

type RedisConfig struct {
	Host          string `mapstructure:"host" validate:"required"`
	Port          int    `mapstructure:"port" validate:"required"`
	DB            int    `mapstructure:"db"`
	Password      string `mapstructure:"password"`
	MaxConnection int    `mapstructure:"max_connection"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	AccessKeyId     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	// Endpoint points at an S3 compatible store such as MinIO; empty means AWS.
	Endpoint string `mapstructure:"endpoint"`
}

// StorageConfig describes the external storage provider the upload-link
// endpoint issues write targets for.
type StorageConfig struct {
	Provider       string   `mapstructure:"provider" validate:"required,oneof=dropbox s3"`
	AccessToken    string   `mapstructure:"access_token"`
	FolderPath     string   `mapstructure:"folder_path" validate:"required"`
	LinkTTLSeconds int      `mapstructure:"link_ttl_seconds" validate:"gte=60,lte=14400"`
	S3             S3Config `mapstructure:"s3"`
}

type LimiterConfig struct {
	Store    string `mapstructure:"store" validate:"required,oneof=file redis memory"`
	StateDir string `mapstructure:"state_dir"`
	ClientId string `mapstructure:"client_id"`
}

type CaptureConfig struct {
	Backend    string `mapstructure:"backend" validate:"required,oneof=ffmpeg portaudio"`
	Device     string `mapstructure:"device"`
	SampleRate int    `mapstructure:"sample_rate" validate:"gte=8000,lte=96000"`
}

type CorsConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}
