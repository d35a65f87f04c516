// Package cache is an optional Redis read cache in front of the insured
// query. Entries are short-lived and invalidated on every create and
// complete, so a cache failure only ever costs a DynamoDB query.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/medflow/appointment-saga/internal/appointment"
)

type Client struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New connects to Redis and verifies the connection.
func New(addr, username, password string, ttl time.Duration, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     username,
		Password:     password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{rdb: rdb, ttl: ttl, logger: logger}, nil
}

func listKey(insuredID string) string {
	return "appointments:insured:" + insuredID
}

// GetList returns the cached appointment list for an insured person, if
// present. Cache errors are logged and treated as misses.
func (c *Client) GetList(ctx context.Context, insuredID string) ([]appointment.Appointment, bool) {
	raw, err := c.rdb.Get(ctx, listKey(insuredID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("cache get failed", zap.String("insured_id", insuredID), zap.Error(err))
		}
		return nil, false
	}

	var appointments []appointment.Appointment
	if err := json.Unmarshal(raw, &appointments); err != nil {
		c.logger.Debug("cache entry corrupt, dropping", zap.String("insured_id", insuredID), zap.Error(err))
		c.Invalidate(ctx, insuredID)
		return nil, false
	}
	return appointments, true
}

// SetList stores the appointment list with the configured TTL.
func (c *Client) SetList(ctx context.Context, insuredID string, appointments []appointment.Appointment) {
	raw, err := json.Marshal(appointments)
	if err != nil {
		c.logger.Debug("cache marshal failed", zap.String("insured_id", insuredID), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, listKey(insuredID), raw, c.ttl).Err(); err != nil {
		c.logger.Debug("cache set failed", zap.String("insured_id", insuredID), zap.Error(err))
	}
}

// Invalidate drops the cached list for an insured person.
func (c *Client) Invalidate(ctx context.Context, insuredID string) {
	if err := c.rdb.Del(ctx, listKey(insuredID)).Err(); err != nil {
		c.logger.Debug("cache invalidate failed", zap.String("insured_id", insuredID), zap.Error(err))
	}
}

// Close releases the underlying connection pool.
func (c *Client) Close() error { return c.rdb.Close() }
