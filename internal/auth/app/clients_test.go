package app

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

const registry = `
clients:
  - id: app
    messageProfile: app
    jwt:
      accessTokenExpiry: 5m
      refreshTokenExpiry:
        otp: 20m
    loginOtp:
      maxAttemptForVerification: 3
      sms:
        otpChallengeEnabled: true
        template: "Your code is {code}"
    flags:
      users:
        - accountId: acc-1
          tags:
            - name: beta
              exp: 2030-01-01T00:00:00Z
  - id: backoffice
`

func TestParseClients(t *testing.T) {
	clients, err := ParseClients(strings.NewReader(registry))
	require.NoError(t, err)
	require.Len(t, clients, 2)

	app, ok := clients.Lookup("app")
	require.True(t, ok)
	require.Equal(t, 5*time.Minute, app.JWT.AccessTokenExpiry)
	require.Equal(t, 20*time.Minute, app.RefreshExpiry(domain.AMROTP))
	require.Equal(t, 30*time.Minute, app.RefreshExpiry(domain.AMRPassword))
	require.Equal(t, domain.DefaultRefreshChainExpiry, app.JWT.RefreshChainExpiry)
	require.True(t, app.LoginOtp.SMS.OtpChallengeEnabled)
	require.False(t, app.LoginOtp.Email.OtpChallengeEnabled)
	require.Equal(t, 3, app.LoginOtpOptions().VerifyLimitCount)
	require.Equal(t, "app", app.LoginOtpOptions().Profile)
	require.Equal(t, []string{"beta"}, app.ActiveFlags("acc-1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.Empty(t, app.ActiveFlags("acc-1", time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)))

	backoffice, ok := clients.Lookup("backoffice")
	require.True(t, ok)
	require.Equal(t, domain.DefaultOtpOptions(), backoffice.OTP)
	require.Equal(t, domain.DefaultAccessTokenExpiry, backoffice.JWT.AccessTokenExpiry)
	require.Equal(t, domain.DefaultOtpProfile, backoffice.MessageProfile)
}

func TestParseClientsRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "", "no clients configured"},
		{"missing id", "clients:\n  - messageProfile: app\n", "id is required"},
		{"duplicate", "clients:\n  - id: app\n  - id: app\n", "duplicate id"},
		{"unknown field", "clients:\n  - id: app\n    accessTokenTTL: 5m\n", "accessTokenTTL"},
		{"bad profile", "clients:\n  - id: app\n    otp:\n      profile: App1\n", "profile"},
		{"negative limit", "clients:\n  - id: app\n    loginOtp:\n      maxAllowedOTP: -1\n", "loginOtp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClients(strings.NewReader(tt.yaml))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadClientsMissingFile(t *testing.T) {
	_, err := LoadClients(t.TempDir() + "/nope.yaml")
	require.ErrorContains(t, err, "open clients file")
}
