package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// Header names the service reads.
const (
	HeaderDeviceID     = "X-Device-ID"
	HeaderClientID     = "X-Client-ID"
	HeaderServiceToken = "X-Service-Token"
)

// SDKClient is a client for the warden credential service.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// ServiceToken is sent as X-Service-Token on internal endpoints
	// (sessions, identities and the generic OTP engine). Leave empty for
	// public-only use.
	ServiceToken string
}

// NewSDKClient creates a new client for the service at baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithServiceToken returns a copy of c that authenticates internal calls.
func (c *SDKClient) WithServiceToken(token string) *SDKClient {
	cp := *c
	cp.ServiceToken = token
	return &cp
}

// Device identifies the caller on device-bound endpoints.
type Device struct {
	ClientID string
	DeviceID string
}

func (d Device) headers() map[string]string {
	return map[string]string{
		HeaderClientID: d.ClientID,
		HeaderDeviceID: d.DeviceID,
	}
}
