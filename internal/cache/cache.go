package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gametrack/gametrack/internal/storefront"
)

const (
	dealsKey       = "deals:steam:top"
	priceKeyPrefix = "price:steam:"

	// DealsTTL matches the upstream refresh cadence; deals older than this
	// are refetched.
	DealsTTL = 6 * time.Hour
	PriceTTL = 1 * time.Hour
)

// Cache is the Redis speed layer in front of the storefront clients. A nil
// *Cache is valid and behaves as a permanent miss, so callers need no
// branching when Redis is not configured.
type Cache struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection.
func New(addr string) (*Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Cache{client: client}, nil
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// GetDeals returns the cached top-deals list, or nil on a miss.
func (c *Cache) GetDeals(ctx context.Context) ([]storefront.Game, error) {
	if c == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, dealsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached deals: %w", err)
	}
	var deals []storefront.Game
	if err := json.Unmarshal(raw, &deals); err != nil {
		return nil, fmt.Errorf("invalid cached deals payload: %w", err)
	}
	return deals, nil
}

// SetDeals stores the top-deals list for DealsTTL.
func (c *Cache) SetDeals(ctx context.Context, deals []storefront.Game) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(deals)
	if err != nil {
		return fmt.Errorf("failed to encode deals: %w", err)
	}
	if err := c.client.Set(ctx, dealsKey, raw, DealsTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache deals: %w", err)
	}
	return nil
}

// GetPrice returns the cached price record for a Steam app, or nil on miss.
func (c *Cache) GetPrice(ctx context.Context, appID int) (*storefront.Game, error) {
	if c == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, fmt.Sprintf("%s%d", priceKeyPrefix, appID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached price: %w", err)
	}
	var game storefront.Game
	if err := json.Unmarshal(raw, &game); err != nil {
		return nil, fmt.Errorf("invalid cached price payload: %w", err)
	}
	return &game, nil
}

// SetPrice stores one price record for PriceTTL.
func (c *Cache) SetPrice(ctx context.Context, game *storefront.Game) error {
	if c == nil || game == nil || game.AppID == 0 {
		return nil
	}
	raw, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to encode price: %w", err)
	}
	key := fmt.Sprintf("%s%d", priceKeyPrefix, game.AppID)
	if err := c.client.Set(ctx, key, raw, PriceTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache price: %w", err)
	}
	return nil
}
