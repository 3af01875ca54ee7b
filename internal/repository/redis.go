package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tablebook/internal/config"
	"tablebook/internal/models"

	"github.com/redis/go-redis/v9"
)

const pendingKeyPrefix = "pending_checkin:"

// RedisPendingRegistry keeps the pending check-in registry in redis so a
// restarted process still knows which freed tables await a bill.
type RedisPendingRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisPendingRegistry(client *redis.Client, ttl time.Duration) *RedisPendingRegistry {
	return &RedisPendingRegistry{
		client: client,
		ttl:    ttl,
	}
}

func pendingKey(tableNumber int64) string {
	return fmt.Sprintf("%s%d", pendingKeyPrefix, tableNumber)
}

func (r *RedisPendingRegistry) Put(ctx context.Context, pending *models.PendingCheckin) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending checkin: %w", err)
	}

	if err := r.client.Set(ctx, pendingKey(pending.TableNumber), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set pending checkin in redis: %w", err)
	}
	return nil
}

func (r *RedisPendingRegistry) Get(ctx context.Context, tableNumber int64) (*models.PendingCheckin, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, pendingKey(tableNumber)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending checkin from redis: %w", err)
	}

	var pending models.PendingCheckin
	if err := json.Unmarshal([]byte(val), &pending); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending checkin: %w", err)
	}
	return &pending, nil
}

func (r *RedisPendingRegistry) Delete(ctx context.Context, tableNumber int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, pendingKey(tableNumber)).Err(); err != nil {
		return fmt.Errorf("failed to delete pending checkin from redis: %w", err)
	}
	return nil
}

func (r *RedisPendingRegistry) List(ctx context.Context) ([]*models.PendingCheckin, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	var pendings []*models.PendingCheckin
	iter := r.client.Scan(ctx, 0, pendingKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		val, err := r.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read pending checkin %s: %w", iter.Val(), err)
		}
		var pending models.PendingCheckin
		if err := json.Unmarshal([]byte(val), &pending); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pending checkin: %w", err)
		}
		pendings = append(pendings, &pending)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan pending checkins: %w", err)
	}
	return pendings, nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
