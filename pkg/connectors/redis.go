// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package connectors

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rapidaai/voicemail/pkg/commons"
	"github.com/rapidaai/voicemail/pkg/configs"
)

type RedisConnector interface {
	Connect(ctx context.Context) error
	IsConnected(ctx context.Context) bool
	GetConnection() *redis.Client
	Disconnect(ctx context.Context) error
}

type redisConnector struct {
	cfg    *configs.RedisConfig
	logger commons.Logger
	client *redis.Client
}

func NewRedisConnector(cfg *configs.RedisConfig, logger commons.Logger) RedisConnector {
	return &redisConnector{cfg: cfg, logger: logger}
}

func (rc *redisConnector) Connect(ctx context.Context) error {
	poolSize := rc.cfg.MaxConnection
	if poolSize <= 0 {
		poolSize = 10
	}
	rc.client = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", rc.cfg.Host, rc.cfg.Port),
		Password:     rc.cfg.Password,
		DB:           rc.cfg.DB,
		PoolSize:     poolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rc.client.Ping(ctx).Err(); err != nil {
		rc.logger.Errorf("unable to ping redis at %s:%d: %v", rc.cfg.Host, rc.cfg.Port, err)
		return fmt.Errorf("connecting to redis: %w", err)
	}
	rc.logger.Debugf("connected to redis at %s:%d", rc.cfg.Host, rc.cfg.Port)
	return nil
}

func (rc *redisConnector) IsConnected(ctx context.Context) bool {
	if rc.client == nil {
		return false
	}
	return rc.client.Ping(ctx).Err() == nil
}

func (rc *redisConnector) GetConnection() *redis.Client {
	return rc.client
}

func (rc *redisConnector) Disconnect(ctx context.Context) error {
	if rc.client == nil {
		return nil
	}
	err := rc.client.Close()
	rc.client = nil
	return err
}
