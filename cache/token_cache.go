package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// AdminTokensKey is the Redis set holding allowlisted admin tokens.
const AdminTokensKey = "playsync:admin_tokens"

// TokenCache persists the admin-token allowlist in a Redis set so it survives restarts.
type TokenCache struct {
	client *redis.Client
	key    string
}

// NewTokenCache 创建令牌缓存
func NewTokenCache(client *redis.Client) *TokenCache {
	return &TokenCache{client: client, key: AdminTokensKey}
}

// Add 添加令牌
func (c *TokenCache) Add(ctx context.Context, token string) error {
	if err := c.client.SAdd(ctx, c.key, token).Err(); err != nil {
		return fmt.Errorf("redis sadd admin token: %w", err)
	}
	return nil
}

// Remove 移除令牌
func (c *TokenCache) Remove(ctx context.Context, token string) error {
	if err := c.client.SRem(ctx, c.key, token).Err(); err != nil {
		return fmt.Errorf("redis srem admin token: %w", err)
	}
	return nil
}

// All 返回全部令牌
func (c *TokenCache) All(ctx context.Context) ([]string, error) {
	tokens, err := c.client.SMembers(ctx, c.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers admin tokens: %w", err)
	}
	return tokens, nil
}
