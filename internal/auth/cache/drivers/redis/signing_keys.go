package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/cache"
	"github.com/redis/go-redis/v9"
)

// replaceActiveLua swaps the active key only if nobody replaced it already.
// KEYS[1] = active key
// ARGV[1] = stale kid
// ARGV[2] = new entry
// ARGV[3] = ttl (millis)
var replaceActiveLua = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur and cjson.decode(cur).kid ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

type signingKeys struct{ *Cache }

func (s *signingKeys) activeKey() string { return s.key("signing-key", "active") }

func (s *signingKeys) GetActiveKey(ctx context.Context) (cache.ActiveKey, error) {
	raw, err := s.rdb.Get(ctx, s.activeKey()).Bytes()
	if err != nil {
		return cache.ActiveKey{}, mapMiss(err)
	}

	var key cache.ActiveKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return cache.ActiveKey{}, fmt.Errorf("decode active key: %w", err)
	}
	return key, nil
}

func (s *signingKeys) PutActiveKeyIfAbsent(ctx context.Context, key cache.ActiveKey, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(key)
	if err != nil {
		return false, err
	}
	return s.rdb.SetNX(ctx, s.activeKey(), raw, ttl).Result()
}

func (s *signingKeys) ReplaceActiveKey(ctx context.Context, staleKID string, key cache.ActiveKey, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(key)
	if err != nil {
		return false, err
	}
	n, err := replaceActiveLua.Run(ctx, s.rdb, []string{s.activeKey()}, staleKID, raw, millis(ttl)).Int64()
	if err != nil {
		return false, fmt.Errorf("replace active key: %w", err)
	}
	return n == 1, nil
}
