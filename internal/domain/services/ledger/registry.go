package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledger-service/ledger_service/internal/domain/entities"
	"github.com/ledger-service/ledger_service/pkg/logger"
)

const (
	idempotencyKeyPrefix = "ledger:idempotency:"
	idempotencyCacheTTL  = 24 * time.Hour
)

// Registry is the idempotency registry: a uniqueness-enforced mapping from
// client key to the transaction previously committed under it. The store's
// unique index is authoritative; the optional Redis cache only accelerates
// the pre-check and fails open on any cache error.
type Registry struct {
	store  Store
	cache  *redis.Client
	logger *logger.Logger
}

// NewRegistry creates an idempotency registry. cache may be nil.
func NewRegistry(store Store, cache *redis.Client, logger *logger.Logger) *Registry {
	return &Registry{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Find returns the transaction previously committed under key, or (nil, nil)
func (r *Registry) Find(ctx context.Context, key string) (*entities.Transaction, error) {
	if r.cache != nil {
		if tx := r.findCached(ctx, key); tx != nil {
			return tx, nil
		}
	}

	tx, err := r.store.FindTransactionByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if tx != nil && r.cache != nil {
		r.remember(ctx, key, tx)
	}

	return tx, nil
}

// Remember caches a freshly committed transaction under its key
func (r *Registry) Remember(ctx context.Context, key string, tx *entities.Transaction) {
	if r.cache == nil {
		return
	}
	r.remember(ctx, key, tx)
}

func (r *Registry) findCached(ctx context.Context, key string) *entities.Transaction {
	payload, err := r.cache.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("Idempotency cache read failed", "key", key, "error", err)
		}
		return nil
	}

	var tx entities.Transaction
	if err := json.Unmarshal(payload, &tx); err != nil {
		r.logger.Warn("Idempotency cache entry corrupt", "key", key, "error", err)
		return nil
	}

	return &tx
}

func (r *Registry) remember(ctx context.Context, key string, tx *entities.Transaction) {
	payload, err := json.Marshal(tx)
	if err != nil {
		r.logger.Warn("Idempotency cache encode failed", "key", key, "error", err)
		return
	}

	if err := r.cache.Set(ctx, idempotencyKeyPrefix+key, payload, idempotencyCacheTTL).Err(); err != nil {
		r.logger.Warn("Idempotency cache write failed", "key", key, "error", err)
	}
}
