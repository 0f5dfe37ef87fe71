// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_limiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/rapidaai/voicemail/pkg/commons"
	"github.com/rapidaai/voicemail/pkg/configs"
	"github.com/rapidaai/voicemail/pkg/connectors"
)

const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"

	stateFileName = "state.json"
)

// CounterStore is a string-valued key/value store, the client-local storage
// the limiter persists its counter in.
type CounterStore interface {
	// Get returns ok=false when the key has never been written.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// NewCounterStore builds the store named in the limiter config. The redis
// connector is only used, and must only be connected, for the redis store.
func NewCounterStore(cfg *configs.LimiterConfig, redisConnector connectors.RedisConnector, logger commons.Logger) (CounterStore, error) {
	switch cfg.Store {
	case StoreFile, "":
		return NewFileStore(cfg.StateDir, logger), nil
	case StoreRedis:
		if redisConnector == nil || redisConnector.GetConnection() == nil {
			return nil, fmt.Errorf("redis counter store requires a connected redis")
		}
		return NewRedisStore(redisConnector.GetConnection(), cfg.ClientId, logger), nil
	case StoreMemory:
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown limiter store %q", cfg.Store)
}

type fileStore struct {
	mu     sync.Mutex
	path   string
	logger commons.Logger
}

// NewFileStore keeps every key in one JSON object under dir.
func NewFileStore(dir string, logger commons.Logger) CounterStore {
	return &fileStore{path: filepath.Join(dir, stateFileName), logger: logger}
}

func (s *fileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	state := map[string]string{}
	if len(data) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.path, err)
	}
	return state, nil
}

func (s *fileStore) save(state map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), stateFileName+".*")
	if err != nil {
		return fmt.Errorf("creating temp state: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *fileStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := state[key]
	return v, ok, nil
}

func (s *fileStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		// a corrupt state file is replaced rather than blocking every write
		s.logger.Warnf("discarding unreadable limiter state: %v", err)
		state = map[string]string{}
	}
	state[key] = value
	return s.save(state)
}

func (s *fileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := state[key]; !ok {
		return nil
	}
	delete(state, key)
	return s.save(state)
}

type redisStore struct {
	client   *redis.Client
	clientId string
	logger   commons.Logger
}

// NewRedisStore scopes every key to one client id so several machines can
// share a redis without sharing a quota.
func NewRedisStore(client *redis.Client, clientId string, logger commons.Logger) CounterStore {
	return &redisStore{client: client, clientId: clientId, logger: logger}
}

func (s *redisStore) key(key string) string {
	return fmt.Sprintf("%s:%s", key, s.clientId)
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", s.key(key), err)
	}
	return v, true, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key(key), err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key(key), err)
	}
	return nil
}

// Incr is the atomic path the limiter prefers when the store offers one.
func (s *redisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, s.key(key)).Result()
}

type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() CounterStore {
	return &memoryStore{values: map[string]string{}}
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memoryStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
