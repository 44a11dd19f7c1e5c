package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists session sets in Redis.
//
// Layout:
//
//	<prefix>:session:<digest>  -> user id, TTL = refresh expiry
//	<prefix>:sessions:<userID> -> set of the identity's digests
//
// Expiry is native: the per-digest key carries a TTL, so a lapsed token
// simply stops existing. The per-user set can hold stale members after a
// TTL fires; Consume and ClearAll scrub them as they are touched.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

// consumeScript deletes the digest key and removes it from the user index in
// one atomic step. DEL's return value arbitrates concurrent callers: exactly
// one sees 1 for a live key.
var consumeScript = redis.NewScript(`
if redis.call("DEL", KEYS[1]) == 1 then
  redis.call("SREM", KEYS[2], ARGV[1])
  return 1
end
redis.call("SREM", KEYS[2], ARGV[1])
return 0
`)

// NewRedisStore constructs a RedisStore over an existing client. The client
// is owned by the caller.
func NewRedisStore(rdb redis.UniversalClient, prefix string) (*RedisStore, error) {
	if rdb == nil {
		return nil, fmt.Errorf("%w: nil redis client", ErrConfig)
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "vidtube"
	}
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *RedisStore) tokenKey(tokenHash string) string {
	return s.prefix + ":session:" + tokenHash
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":sessions:" + userID
}

// Add registers the digest with a TTL matching the token expiry.
func (s *RedisStore) Add(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(tokenHash), userID, ttl)
		pipe.SAdd(ctx, s.userKey(userID), tokenHash)
		// The index must outlive its longest-lived member; each add extends
		// it by a full refresh lifetime.
		pipe.Expire(ctx, s.userKey(userID), ttl)
		return nil
	})
	if err != nil {
		return storeErr("add", err)
	}
	return nil
}

// Consume atomically removes the digest; at most one concurrent caller wins.
func (s *RedisStore) Consume(ctx context.Context, userID, tokenHash string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.rdb,
		[]string{s.tokenKey(tokenHash), s.userKey(userID)},
		tokenHash,
	).Int()
	if err != nil {
		return false, storeErr("consume", err)
	}
	return n == 1, nil
}

// RemoveOne drops a single digest. No-op when absent.
func (s *RedisStore) RemoveOne(ctx context.Context, userID, tokenHash string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.tokenKey(tokenHash))
		pipe.SRem(ctx, s.userKey(userID), tokenHash)
		return nil
	})
	if err != nil {
		return storeErr("remove", err)
	}
	return nil
}

// ClearAll drops the identity's index set and every digest key it names.
func (s *RedisStore) ClearAll(ctx context.Context, userID string) error {
	hashes, err := s.rdb.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return storeErr("clear", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, h := range hashes {
			pipe.Del(ctx, s.tokenKey(h))
		}
		pipe.Del(ctx, s.userKey(userID))
		return nil
	})
	if err != nil {
		return storeErr("clear", err)
	}
	return nil
}
