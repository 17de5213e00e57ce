/*
Package authsdk provides a client SDK for the warden credential service.

# Overview

warden issues RS256 access tokens with single-use, device-bound refresh
tokens, and sends one-time passcodes by SMS or email. SDKClient wraps its
HTTP surface:

  - Public endpoints: JWKS, token refresh, introspection, login by OTP, health
  - Internal endpoints (ServiceToken required): sessions, identity status, generic OTP

A device logs in by code and then keeps its session alive with refresh:

	client := authsdk.NewSDKClient("https://auth.example.com")
	device := authsdk.Device{ClientID: "app", DeviceID: deviceID}

	sent, err := client.LoginOtpSms(ctx, device.ClientID, "+6587304661")
	// ... the user types the code ...
	tokens, err := client.LoginOtpVerify(ctx, device, sent.Token, code)

	// later
	tokens, err = client.Refresh(ctx, device, tokens.RefreshToken)

Refresh tokens are single use. Store the new pair before using it; a
second refresh with the same token fails with ErrInvalidToken.

# Error Handling

Non-2xx responses are returned as *APIError. It matches the package
sentinels by error code:

	_, err := client.Refresh(ctx, device, refreshToken)
	switch {
	case errors.Is(err, authsdk.ErrExpiredToken):
		// chain or sliding expiry reached, log in again
	case errors.Is(err, authsdk.ErrAccountInactive):
		// account disabled
	}

Blocked OTP sends carry RetryAfter; a wrong code carries
RemainingAttempts.

# Verifying Tokens

Resource services verify access tokens offline with RemoteVerifier. It
fetches the JWKS on first use and again whenever a token names an unknown
kid, at most once per MinRefreshInterval:

	v := authsdk.NewRemoteVerifier(client, "warden", "app")
	mux.Handle("/api/", httpx.AuthnMiddleware(v)(api))
*/
package authsdk
