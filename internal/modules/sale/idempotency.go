package sale

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "sale:idempotency:"
	pendingMarker        = "pending"
)

// ErrKeyReused is returned by Claim when key was first used with a request
// whose fingerprint differs.
var ErrKeyReused = errors.New("idempotency key reused with a different request")

// IdempotencyStore remembers which sale an Idempotency-Key produced and the
// fingerprint of the request that claimed it.
type IdempotencyStore interface {
	// Claim reserves key for a request with the given fingerprint. When it is
	// already taken, claimed is false and saleID is the finished sale, or 0
	// while the first attempt is running.
	Claim(ctx context.Context, key, fingerprint string) (saleID int64, claimed bool, err error)
	Complete(ctx context.Context, key, fingerprint string, saleID int64) error
	Release(ctx context.Context, key string) error
}

// RedisClient is the subset of go-redis the idempotency store uses.
// *redis.Client and *redis.ClusterClient satisfy it.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisIdempotency struct {
	client RedisClient
	ttl    time.Duration
}

// NewRedisIdempotency keeps keys in Redis for ttl. Values have the form
// "<fingerprint>:<sale id or pending>".
func NewRedisIdempotency(client RedisClient, ttl time.Duration) IdempotencyStore {
	return &redisIdempotency{client: client, ttl: ttl}
}

func (r *redisIdempotency) Claim(ctx context.Context, key, fingerprint string) (int64, bool, error) {
	k := idempotencyKeyPrefix + key
	// one retry covers a key that expires between SETNX and GET
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := r.client.SetNX(ctx, k, fingerprint+":"+pendingMarker, r.ttl).Result()
		if err != nil {
			return 0, false, errors.Wrap(err, "claim idempotency key")
		}
		if ok {
			return 0, true, nil
		}
		val, err := r.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return 0, false, errors.Wrap(err, "read idempotency key")
		}
		return parseClaim(key, fingerprint, val)
	}
	return 0, false, errors.Errorf("idempotency key %s keeps expiring", key)
}

func parseClaim(key, fingerprint, val string) (int64, bool, error) {
	stored, state, ok := strings.Cut(val, ":")
	if !ok {
		return 0, false, errors.Errorf("corrupt idempotency key %s", key)
	}
	if stored != fingerprint {
		return 0, false, ErrKeyReused
	}
	if state == pendingMarker {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(state, 10, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "corrupt idempotency key %s", key)
	}
	return id, false, nil
}

func (r *redisIdempotency) Complete(ctx context.Context, key, fingerprint string, saleID int64) error {
	val := fingerprint + ":" + strconv.FormatInt(saleID, 10)
	err := r.client.Set(ctx, idempotencyKeyPrefix+key, val, r.ttl).Err()
	return errors.Wrap(err, "complete idempotency key")
}

func (r *redisIdempotency) Release(ctx context.Context, key string) error {
	return errors.Wrap(r.client.Del(ctx, idempotencyKeyPrefix+key).Err(), "release idempotency key")
}
