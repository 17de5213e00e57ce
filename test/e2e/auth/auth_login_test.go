package auth_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestLoginOtpFlow logs in by SMS code, rotates the refresh token and
// checks the access token offline.
func TestLoginOtpFlow(t *testing.T) {
	env := setupWarden(t)
	ctx := t.Context()
	device := authsdk.Device{ClientID: clientID, DeviceID: "e2e-device-1"}

	tokens := env.login(t, device, phoneNumber)

	next, err := env.Client.Refresh(ctx, device, tokens.RefreshToken)
	require.NoError(t, err)
	assertTokenResponse(t, next)
	require.NotEqual(t, tokens.RefreshToken, next.RefreshToken, "refresh tokens rotate")

	// The old refresh token was replaced.
	_, err = env.Client.Refresh(ctx, device, tokens.RefreshToken)
	assertAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)

	info, err := env.Client.Introspect(ctx, next.AccessToken, next.AccessToken)
	require.NoError(t, err)
	require.True(t, info.Active)
	require.Equal(t, "phone-number|"+phoneNumber, info.Sub)
	require.Equal(t, []string{"otp"}, info.AMR)
	require.Equal(t, device.DeviceID, info.Device)

	verifier := authsdk.NewRemoteVerifier(env.Client, issuer, clientID)
	claims, err := verifier.Verify(ctx, next.AccessToken)
	require.NoError(t, err)
	require.Equal(t, phoneNumber, claims.PhoneNumber)
}

// TestLoginOtpLimits walks the resend guard and the verification budget.
func TestLoginOtpLimits(t *testing.T) {
	env := setupWarden(t)
	ctx := t.Context()
	device := authsdk.Device{ClientID: clientID, DeviceID: "e2e-device-2"}

	sent, err := env.Client.LoginOtpSms(ctx, clientID, phoneNumber)
	require.NoError(t, err)

	_, err = env.Client.LoginOtpSms(ctx, clientID, phoneNumber)
	apiErr := assertAPIError(t, err, http.StatusTooManyRequests, authsdk.ErrorCodeTooEarlyOtpRequests)
	require.Positive(t, apiErr.RetryAfter)
	require.LessOrEqual(t, apiErr.RetryAfter, 2*time.Second)

	// Two verification attempts are allowed, the third is blocked even with
	// the right code.
	_, err = env.Client.LoginOtpVerify(ctx, device, sent.Token, "000000x")
	apiErr = assertAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidOtp)
	require.Equal(t, 2, *apiErr.RemainingAttempts)

	_, err = env.Client.LoginOtpVerify(ctx, device, sent.Token, "000000x")
	apiErr = assertAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidOtp)
	require.Equal(t, 1, *apiErr.RemainingAttempts)

	_, err = env.Client.LoginOtpVerify(ctx, device, sent.Token, env.lastCode(t, phoneNumber))
	assertAPIError(t, err, http.StatusForbidden, authsdk.ErrorCodeBlockedOtpVerification)

	_, err = env.Client.LoginOtpVerify(ctx, device, sent.Token, env.lastCode(t, phoneNumber))
	assertAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeExpiredOtp)

	// Three sends per window.
	require.Eventually(t, func() bool {
		_, err := env.Client.LoginOtpSms(ctx, clientID, phoneNumber)
		return err == nil
	}, 5*time.Second, 500*time.Millisecond)
	require.Eventually(t, func() bool {
		_, err := env.Client.LoginOtpSms(ctx, clientID, phoneNumber)
		return err == nil
	}, 5*time.Second, 500*time.Millisecond)

	time.Sleep(2500 * time.Millisecond)
	_, err = env.Client.LoginOtpSms(ctx, clientID, phoneNumber)
	assertAPIError(t, err, http.StatusTooManyRequests, authsdk.ErrorCodeTooManyOtpRequests)
}

// TestInvalidAccessToken verifies introspection rejects a caller without a
// valid token.
func TestInvalidAccessToken(t *testing.T) {
	env := setupWarden(t)

	_, err := env.Client.Introspect(t.Context(), "invalid-token-12345", "invalid-token-12345")
	assertAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)
}
