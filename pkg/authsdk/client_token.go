package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Refresh exchanges a refresh token for a new token pair. The old refresh
// token is spent whether or not the caller receives the response.
func (c *SDKClient) Refresh(ctx context.Context, device Device, refreshToken string) (*TokenResponse, error) {
	data := url.Values{"refresh_token": {refreshToken}}

	resp, err := c.doForm(ctx, "/v1/token/refresh", data, device.headers())
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// Introspect describes token. The call is authenticated with
// accessToken, which may be the same token.
func (c *SDKClient) Introspect(ctx context.Context, accessToken, token string) (*IntrospectionResponse, error) {
	data := url.Values{"token": {token}}
	headers := map[string]string{"Authorization": "Bearer " + accessToken}

	resp, err := c.doForm(ctx, "/v1/token/introspect", data, headers)
	if err != nil {
		return nil, err
	}

	var out IntrospectionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
