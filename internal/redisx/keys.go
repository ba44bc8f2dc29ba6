package redisx

import "time"

const (
	// Pipeline snapshot cache: pipeline:{tenant_id} -> JSON snapshot
	KeyPipelineSnapshot = "pipeline:%s"

	// Low-stock alert dedup: lowstock:{tenant_id}:{product_id}
	// Prevents re-alerting the same product on every order while it stays low.
	KeyLowStockAlert = "lowstock:%s:%s"

	// Precomputed permission -> user-ids index: perm:{tenant_id}:{permission}
	// Invalidated on role change (see notify.Resolver.Invalidate).
	KeyPermissionIndex = "perm:%s:%s"

	// Dedup notification event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLPipelineSnapshot = 30 * time.Second
	TTLLowStockAlert    = 6 * time.Hour
	TTLPermissionIndex  = 10 * time.Minute
	TTLDedup            = 48 * time.Hour
)
