package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/redis/go-redis/v9"
)

// resendGuardLua returns the millis left on the guard, or moves it forward
// and returns 0.
// KEYS[1] = guard key
// ARGV[1] = now (unix millis)
// ARGV[2] = resendAfter (millis)
// ARGV[3] = now + resendAfter (unix millis)
var resendGuardLua = redis.NewScript(`
local now = tonumber(ARGV[1])
local ts = tonumber(redis.call('GET', KEYS[1]))
if ts and ts > now then
  return ts - now
end
redis.call('SET', KEYS[1], ARGV[3], 'PX', ARGV[2])
return 0
`)

// rateLimitLua is a fixed window counter. The window starts on the first
// increment; a counter that somehow lost its TTL gets one again.
// KEYS[1] = counter key
// ARGV[1] = window (millis)
// Returns {count, millis left}.
var rateLimitLua = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if n == 1 or ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// decrAttemptsLua spends one attempt without recreating an evicted counter.
var decrAttemptsLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('DECR', KEYS[1])
`)

type otp struct{ *Cache }

func (o *otp) guardKey(ref string) string     { return o.key("otp", "guard", ref) }
func (o *otp) rateKey(ref string) string      { return o.key("otp", "rate", ref) }
func (o *otp) stateKey(token string) string   { return o.key("otp", "state", token) }
func (o *otp) attemptKey(token string) string { return o.key("otp", "attempts", token) }

// millis rounds d up to whole milliseconds. PX and PEXPIRE reject 0.
func millis(d time.Duration) int64 {
	ms := (d + time.Millisecond - 1) / time.Millisecond
	return max(int64(ms), 1)
}

func (o *otp) ResendGuard(ctx context.Context, ref string, now time.Time, resendAfter time.Duration) (time.Duration, error) {
	ms, err := resendGuardLua.Run(ctx, o.rdb,
		[]string{o.guardKey(ref)},
		now.UnixMilli(), millis(resendAfter), now.UnixMilli()+millis(resendAfter),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("resend guard: %w", err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (o *otp) IncrRateLimit(ctx context.Context, ref string, window time.Duration) (int64, time.Duration, error) {
	res, err := rateLimitLua.Run(ctx, o.rdb, []string{o.rateKey(ref)}, millis(window)).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit: %w", err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("rate limit: unexpected reply %v", res)
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}

func (o *otp) SaveOtp(ctx context.Context, token string, st domain.OtpState, attempts int, ttl time.Duration) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}

	_, err = o.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, o.stateKey(token), raw, ttl)
		p.Set(ctx, o.attemptKey(token), attempts, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save otp: %w", err)
	}
	return nil
}

func (o *otp) GetOtp(ctx context.Context, token string) (domain.OtpState, error) {
	raw, err := o.rdb.Get(ctx, o.stateKey(token)).Bytes()
	if err != nil {
		return domain.OtpState{}, mapMiss(err)
	}

	var st domain.OtpState
	if err := json.Unmarshal(raw, &st); err != nil {
		return domain.OtpState{}, fmt.Errorf("decode otp state: %w", err)
	}
	return st, nil
}

func (o *otp) DecrAttempts(ctx context.Context, token string) (int64, error) {
	n, err := decrAttemptsLua.Run(ctx, o.rdb, []string{o.attemptKey(token)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("decrement attempts: %w", err)
	}
	return n, nil
}

// DeleteOtp reports whether this call removed the state. Redis runs the
// DELs one transaction at a time, so of two racing callers only one sees true.
func (o *otp) DeleteOtp(ctx context.Context, token string) (bool, error) {
	var state *redis.IntCmd
	_, err := o.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		state = p.Del(ctx, o.stateKey(token))
		p.Del(ctx, o.attemptKey(token))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete otp: %w", err)
	}
	return state.Val() > 0, nil
}
