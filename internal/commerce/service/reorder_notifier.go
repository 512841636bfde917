package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// ReorderChannel redis 补货事件频道
const ReorderChannel = "tubex:inventory:reorder"

// ReorderEvent is emitted after a committed mutation leaves an auto-reorder row at or below
// its reorder point. Purchase order creation is done by whoever consumes it.
type ReorderEvent struct {
	InventoryID     string              `json:"inventory_id"`
	CompanyID       string              `json:"company_id"`
	ProductID       string              `json:"product_id"`
	WarehouseID     string              `json:"warehouse_id"`
	Quantity        decimal.Decimal     `json:"quantity"`
	ReorderPoint    decimal.Decimal     `json:"reorder_point"`
	ReorderQuantity decimal.NullDecimal `json:"reorder_quantity"`
	TriggeredAt     time.Time           `json:"triggered_at"`
}

// ReorderNotifier 补货事件下游
type ReorderNotifier interface {
	ReorderThresholdCrossed(ctx context.Context, evt ReorderEvent) error
}

// RedisReorderPublisher publishes events as JSON on a redis channel.
type RedisReorderPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisReorderPublisher(rdb *redis.Client, channel string) *RedisReorderPublisher {
	if channel == "" {
		channel = ReorderChannel
	}
	return &RedisReorderPublisher{rdb: rdb, channel: channel}
}

func (p *RedisReorderPublisher) ReorderThresholdCrossed(ctx context.Context, evt ReorderEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal reorder event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish reorder event: %w", err)
	}
	return nil
}

// NopReorderNotifier 未配置 redis 时使用
type NopReorderNotifier struct{}

func (NopReorderNotifier) ReorderThresholdCrossed(context.Context, ReorderEvent) error { return nil }
