package cache

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/meetsmatch/matchengine/internal/database"
	apperrors "github.com/meetsmatch/matchengine/internal/errors"
	"github.com/meetsmatch/matchengine/internal/telemetry"
)

// presenceMember keeps a warmed key alive for users without history
const presenceMember = "~"

// markScript bumps the user's generation, then adds members only to a
// warmed key, so a key never holds a partial history.
// KEYS: ledger, generation. ARGV: ttl in ms, score, members...
var markScript = redis.NewScript(`
redis.call('INCR', KEYS[2])
redis.call('PEXPIRE', KEYS[2], ARGV[1])
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
for i = 3, #ARGV do
	redis.call('ZADD', KEYS[1], ARGV[2], ARGV[i])
end
redis.call('PEXPIRE', KEYS[1], ARGV[1])
return 1
`)

// warmScript writes a history snapshot only if the generation read before
// the snapshot is still current. A mark in between means the snapshot may be
// missing it, and the key is left for the next read to load.
// KEYS: ledger, generation. ARGV: expected generation, ttl in ms, score/member pairs...
var warmScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or ''
if current ~= ARGV[1] then
	return 0
end
for i = 3, #ARGV, 2 do
	redis.call('ZADD', KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

// HistoryStore is the durable recommendation history behind the ledger
type HistoryStore interface {
	RecommendedUserIDs(ctx context.Context, userID string, since time.Time) ([]string, error)
	ListRecommendations(ctx context.Context, userID string, limit int) ([]*database.Recommendation, error)
}

// CacheStats holds ledger hit and miss counts
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// HitRate calculates the cache hit rate
func (cs CacheStats) HitRate() float64 {
	total := cs.Hits + cs.Misses
	if total == 0 {
		return 0.0
	}
	return float64(cs.Hits) / float64(total)
}

// RecommendationLedger is a read-through cache of who was recommended to
// whom. Each user has a sorted set whose scores are recommendation times in
// Unix milliseconds.
type RecommendationLedger struct {
	client  RedisClientInterface
	backing HistoryStore
	cfg     RedisConfig

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

func NewRecommendationLedger(client RedisClientInterface, backing HistoryStore, cfg RedisConfig) *RecommendationLedger {
	defaults := DefaultRedisConfig()
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaults.KeyPrefix
	}
	if cfg.LedgerTTL <= 0 {
		cfg.LedgerTTL = defaults.LedgerTTL
	}
	if cfg.WarmLimit <= 0 {
		cfg.WarmLimit = defaults.WarmLimit
	}
	return &RecommendationLedger{client: client, backing: backing, cfg: cfg}
}

func (l *RecommendationLedger) key(userID string) string {
	return l.cfg.KeyPrefix + userID
}

// generationKey counts writes to a user's history
func (l *RecommendationLedger) generationKey(userID string) string {
	return l.cfg.KeyPrefix + "generation:" + userID
}

// RecommendedUserIDs returns the users recommended to userID at or after
// since. Redis failures fall back to the backing store.
func (l *RecommendationLedger) RecommendedUserIDs(ctx context.Context, userID string, since time.Time) ([]string, error) {
	logger := telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
		"operation": "ledger_recommended_ids",
		"service":   "cache",
		"user_id":   userID,
	})
	key := l.key(userID)

	exists, err := l.client.Exists(ctx, key).Result()
	if err != nil {
		l.errors.Add(1)
		logger.WithError(err).Warn("Ledger lookup failed, reading from store")
		return l.backing.RecommendedUserIDs(ctx, userID, since)
	}

	if exists == 0 {
		l.misses.Add(1)
		logger.Debug("Ledger miss")
		if err := l.warm(ctx, userID); err != nil {
			l.errors.Add(1)
			logger.WithError(err).Warn("Failed to warm ledger")
		}
		return l.backing.RecommendedUserIDs(ctx, userID, since)
	}

	lower := "-inf"
	if !since.IsZero() {
		lower = strconv.FormatInt(since.UnixMilli(), 10)
	}
	members, err := l.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: lower, Max: "+inf"}).Result()
	if err != nil {
		l.errors.Add(1)
		logger.WithError(err).Warn("Ledger range read failed, reading from store")
		return l.backing.RecommendedUserIDs(ctx, userID, since)
	}
	l.hits.Add(1)

	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m != presenceMember {
			ids = append(ids, m)
		}
	}
	return ids, nil
}

// warm loads the user's history into Redis. A history longer than the warm
// limit is left uncached, as is a snapshot that raced with a mark.
func (l *RecommendationLedger) warm(ctx context.Context, userID string) error {
	genKey := l.generationKey(userID)
	generation, err := l.client.Get(ctx, genKey).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	recs, err := l.backing.ListRecommendations(ctx, userID, l.cfg.WarmLimit)
	if err != nil {
		return err
	}
	if len(recs) >= l.cfg.WarmLimit {
		return nil
	}

	args := make([]interface{}, 0, 2*len(recs)+4)
	args = append(args, generation, l.cfg.LedgerTTL.Milliseconds(), 0, presenceMember)
	for _, r := range recs {
		args = append(args, r.CreatedAt.UnixMilli(), r.RecommendedUserID)
	}

	written, err := warmScript.Run(ctx, l.client, []string{l.key(userID), genKey}, args...).Int()
	if err != nil {
		return err
	}
	if written == 0 {
		telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
			"operation": "ledger_warm",
			"service":   "cache",
			"user_id":   userID,
		}).Debug("History changed while warming, ledger left cold")
	}
	return nil
}

// MarkRecommended records that ids were recommended to userID at at. It must
// be called after the rows are stored. Users whose ledger is not warm are
// skipped; the next read loads them from the store.
func (l *RecommendationLedger) MarkRecommended(ctx context.Context, userID string, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, l.cfg.LedgerTTL.Milliseconds(), at.UnixMilli())
	for _, id := range ids {
		args = append(args, id)
	}

	if err := markScript.Run(ctx, l.client, []string{l.key(userID), l.generationKey(userID)}, args...).Err(); err != nil {
		l.errors.Add(1)
		return apperrors.NewCacheError("mark_recommended", err).
			WithCorrelationID(telemetry.GetCorrelationID(ctx)).
			WithMetadata("user_id", userID)
	}
	return nil
}

// Invalidate drops the cached ledger of userID
func (l *RecommendationLedger) Invalidate(ctx context.Context, userID string) error {
	genKey := l.generationKey(userID)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, l.key(userID))
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, l.cfg.LedgerTTL)
		return nil
	})
	if err != nil {
		return apperrors.NewCacheError("invalidate_ledger", err).WithCorrelationID(telemetry.GetCorrelationID(ctx))
	}
	return nil
}

// HealthCheck pings Redis
func (l *RecommendationLedger) HealthCheck(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Stats returns a snapshot of hit, miss and error counts
func (l *RecommendationLedger) Stats() CacheStats {
	return CacheStats{
		Hits:   l.hits.Load(),
		Misses: l.misses.Load(),
		Errors: l.errors.Load(),
	}
}
