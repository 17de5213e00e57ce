package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/warden/internal/auth/cache"
	rediscache "github.com/aussiebroadwan/warden/internal/auth/cache/drivers/redis"
	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/messaging"
	"github.com/aussiebroadwan/warden/internal/auth/metrics"
	"github.com/aussiebroadwan/warden/internal/auth/store/drivers/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingMessenger keeps every message so tests can read the code.
type recordingMessenger struct {
	mu     sync.Mutex
	sms    []messaging.SmsMessage
	emails []messaging.EmailMessage
	err    error
}

func (m *recordingMessenger) SendSms(_ context.Context, msg messaging.SmsMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sms = append(m.sms, msg)
	return nil
}

func (m *recordingMessenger) SendEmail(_ context.Context, msg messaging.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.emails = append(m.emails, msg)
	return nil
}

func (m *recordingMessenger) lastSms(t *testing.T) messaging.SmsMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sms)
	return m.sms[len(m.sms)-1]
}

const (
	testIssuer   = "warden-test"
	testRotation = time.Hour
	testCoolDown = 2 * time.Hour
)

type fixture struct {
	clock     *testClock
	mr        *miniredis.Miniredis
	cache     *rediscache.Cache
	store     *sqlite.Store
	clients   domain.Clients
	messenger *recordingMessenger
	metrics   *metrics.Metrics

	keys   *SigningKeyManager
	tokens *TokenIssuer
	otp    *OtpEngine
	login  *LoginOtpService
}

func testClients() domain.Clients {
	app := domain.Client{
		ID: "app",
		JWT: domain.JWTConfig{
			AccessTokenExpiry: 90 * time.Minute,
			RefreshTokenExpiry: map[domain.AMR]time.Duration{
				domain.AMROTP: 30 * time.Minute,
			},
			RefreshChainExpiry: time.Hour,
		},
		LoginOtp: domain.LoginOtp{
			SMS: domain.LoginOtpSMS{OtpChallengeEnabled: true, Template: "Your code is {code}"},
		},
		Flags: domain.Flags{Users: []domain.FlagUser{{
			AccountID: "acc-1",
			Tags: []domain.FlagTag{
				{Name: "beta"},
				{Name: "expired", Exp: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
			},
		}}},
	}
	app.ApplyDefaults()

	other := domain.Client{ID: "other"}
	other.ApplyDefaults()

	return domain.Clients{app.ID: app, other.ID: other}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		clock:     newTestClock(),
		mr:        mr,
		cache:     rediscache.New(rdb, "test:"),
		store:     st,
		clients:   testClients(),
		messenger: &recordingMessenger{},
		metrics:   metrics.New(),
	}

	f.keys = NewSigningKeyManager(st.SigningKeys(), f.cache.SigningKeys(), SigningKeyConfig{
		RotationPeriod: testRotation,
		CoolDownPeriod: testCoolDown,
		Metrics:        f.metrics,
		Now:            f.clock.Now,
	})
	f.tokens = NewTokenIssuer(f.keys, st, f.clients, TokenIssuerConfig{
		Issuer:  testIssuer,
		Metrics: f.metrics,
		Now:     f.clock.Now,
	})
	f.otp = NewOtpEngine(f.cache.Otp(), f.messenger, OtpEngineConfig{
		Metrics: f.metrics,
		Now:     f.clock.Now,
	})
	f.login = NewLoginOtpService(f.otp, f.tokens)
	return f
}

// advance moves both the service clock and Redis TTLs.
func (f *fixture) advance(d time.Duration) {
	f.clock.Advance(d)
	f.mr.FastForward(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// missOnceCache hides the active key from the first read, as if another
// instance published it between our read and our write.
type missOnceCache struct {
	cache.SigningKeys
	once sync.Once
}

func (c *missOnceCache) GetActiveKey(ctx context.Context) (cache.ActiveKey, error) {
	missed := false
	c.once.Do(func() { missed = true })
	if missed {
		return cache.ActiveKey{}, cache.ErrMiss
	}
	return c.SigningKeys.GetActiveKey(ctx)
}

type brokenCache struct{ cache.SigningKeys }

var errCacheDown = errors.New("cache down")

func (brokenCache) GetActiveKey(context.Context) (cache.ActiveKey, error) {
	return cache.ActiveKey{}, errCacheDown
}
