package cryptox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func useMasterKey(t *testing.T, key string) {
	t.Helper()
	cryptox.ResetMasterKeyForTesting()
	t.Setenv("AUTH_MASTER_KEY", key)
	t.Cleanup(cryptox.ResetMasterKeyForTesting)
}

func TestPrivateKeyEnvelope(t *testing.T) {
	useMasterKey(t, "envelope-master-key")

	pair, err := cryptox.GenerateRSAKeyPair(2048)
	require.NoError(t, err)

	sealed, err := cryptox.EncryptPrivateKey(pair.PrivatePEM)
	require.NoError(t, err)
	require.NotContains(t, string(sealed), "PRIVATE KEY")

	opened, err := cryptox.DecryptPrivateKey(sealed)
	require.NoError(t, err)
	require.Equal(t, pair.PrivatePEM, opened)

	t.Run("fresh nonce per seal", func(t *testing.T) {
		again, err := cryptox.EncryptPrivateKey(pair.PrivatePEM)
		require.NoError(t, err)
		require.NotEqual(t, sealed, again)
	})

	t.Run("tampered", func(t *testing.T) {
		bad := append([]byte(nil), sealed...)
		bad[len(bad)-1] ^= 0x01
		_, err := cryptox.DecryptPrivateKey(bad)
		require.Error(t, err)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := cryptox.DecryptPrivateKey([]byte("tiny"))
		require.ErrorContains(t, err, "too short")
	})
}

func TestPrivateKeyEnvelopeWrongMasterKey(t *testing.T) {
	useMasterKey(t, "instance-a")
	sealed, err := cryptox.EncryptPrivateKey([]byte("secret"))
	require.NoError(t, err)

	useMasterKey(t, "instance-b")
	_, err = cryptox.DecryptPrivateKey(sealed)
	require.Error(t, err)
}

func TestMasterKeyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.key")
	require.NoError(t, os.WriteFile(path, []byte("file-master-key"), 0o600))

	cryptox.ResetMasterKeyForTesting()
	cryptox.SetMasterKeyPath(path)
	t.Cleanup(func() {
		cryptox.SetMasterKeyPath("")
		cryptox.ResetMasterKeyForTesting()
	})

	sealed, err := cryptox.EncryptPrivateKey([]byte("payload"))
	require.NoError(t, err)
	opened, err := cryptox.DecryptPrivateKey(sealed)
	require.NoError(t, err)
	require.Equal(t, "payload", string(opened))
}
