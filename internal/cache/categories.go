package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/autopress/internal/wordpress"
	"github.com/d60-Lab/autopress/pkg/logger"
)

// CategoryCache 按站点在 redis 中缓存 WordPress 分类列表
type CategoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCategoryCache(client *redis.Client, ttl time.Duration) *CategoryCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CategoryCache{client: client, ttl: ttl}
}

func categoriesKey(site string) string { return fmt.Sprintf("wp:categories:%s", site) }

// Get 返回缓存的列表；未命中或 redis 出错都返回 false
func (c *CategoryCache) Get(ctx context.Context, site string) ([]wordpress.Category, bool) {
	data, err := c.client.Get(ctx, categoriesKey(site)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Debug("category cache read failed", zap.String("site", site), zap.Error(err))
		}
		return nil, false
	}
	var out []wordpress.Category
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (c *CategoryCache) Set(ctx context.Context, site string, cats []wordpress.Category) {
	payload, err := json.Marshal(cats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, categoriesKey(site), payload, c.ttl).Err(); err != nil {
		logger.Debug("category cache write failed", zap.String("site", site), zap.Error(err))
	}
}
