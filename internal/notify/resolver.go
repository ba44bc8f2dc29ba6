package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brisaerp/order-engine/internal/redisx"
)

// UserDirectory answers "which users hold this permission". Backed by the
// users/roles tables.
type UserDirectory interface {
	UsersWithPermission(ctx context.Context, tenant, permission string) ([]string, error)
}

// Resolver caches the permission -> user-ids index in redis so one
// notification does not cost a full user/role scan. Invalidate on role
// change.
type Resolver struct {
	Dir   UserDirectory
	Redis *redis.Client
	Log   *zap.Logger
}

func (r *Resolver) Resolve(ctx context.Context, tenant, permission string) ([]string, error) {
	key := fmt.Sprintf(redisx.KeyPermissionIndex, tenant, permission)
	if r.Redis != nil {
		if raw, err := r.Redis.Get(ctx, key).Result(); err == nil {
			var ids []string
			if err := json.Unmarshal([]byte(raw), &ids); err == nil {
				return ids, nil
			}
		}
	}

	ids, err := r.Dir.UsersWithPermission(ctx, tenant, permission)
	if err != nil {
		return nil, err
	}
	if r.Redis != nil {
		b, _ := json.Marshal(ids)
		if err := r.Redis.Set(ctx, key, b, redisx.TTLPermissionIndex).Err(); err != nil {
			r.Log.Warn("permission index cache write failed", zap.Error(err))
		}
	}
	return ids, nil
}

func (r *Resolver) Invalidate(ctx context.Context, tenant, permission string) {
	if r.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyPermissionIndex, tenant, permission)
	if err := r.Redis.Del(ctx, key).Err(); err != nil {
		r.Log.Warn("permission index invalidation failed", zap.Error(err))
	}
}

// Notification is a delivered, per-user row.
type Notification struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Severity  Severity  `json:"severity"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}
