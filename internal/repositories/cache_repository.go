package repositories

import (
	"context"
	"time"
)

// CacheRepositoryInterface - кеш ответов внешних сервисов (ответы геопортала
// живут здесь сутки, чтобы не дергать нестабильный upstream повторно).
type CacheRepositoryInterface interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key ...string) error
}
