package app

import (
	"log/slog"

	"github.com/aussiebroadwan/warden/internal/auth/cache"
	"github.com/aussiebroadwan/warden/internal/auth/metrics"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
)

// InitSigningKeys configures the master key and builds the key manager.
//
// Private keys live only in the shared cache, sealed under the master key,
// so every instance must be given the same AUTH_MASTER_KEY_PATH or
// AUTH_MASTER_KEY. Without either an ephemeral master key is generated and
// the instance can only read back keys it sealed itself.
func InitSigningKeys(cfg Config, db store.Store, c cache.Cache, m *metrics.Metrics, logger *slog.Logger) *service.SigningKeyManager {
	switch {
	case cfg.MasterKeyPath != "":
		cryptox.SetMasterKeyPath(cfg.MasterKeyPath)
		logger.Info("master key path configured", "path", cfg.MasterKeyPath)
	case !cryptox.MasterKeyFromEnv():
		logger.Warn("no master key configured, using an ephemeral one; run a single instance only")
	}

	logger.Info("signing keys configured",
		"rotation_period", cfg.KeyRotationPeriod,
		"cool_down_period", cfg.KeyCoolDownPeriod,
		"rsa_bits", cfg.RSABits,
	)

	return service.NewSigningKeyManager(db.SigningKeys(), c.SigningKeys(), service.SigningKeyConfig{
		RotationPeriod: cfg.KeyRotationPeriod,
		CoolDownPeriod: cfg.KeyCoolDownPeriod,
		RSABits:        cfg.RSABits,
		Metrics:        m,
	})
}
