package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// IssueSession starts a session for a subject the caller authenticated
// itself. Requires ServiceToken.
func (c *SDKClient) IssueSession(ctx context.Context, req SessionRequest) (*TokenResponse, error) {
	headers, err := c.internalHeaders()
	if err != nil {
		return nil, err
	}

	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/sessions", req, headers)
	if err != nil {
		return nil, err
	}

	var out TokenResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeSession logs a device out. Requires ServiceToken.
func (c *SDKClient) RevokeSession(ctx context.Context, req RevokeSessionRequest) error {
	headers, err := c.internalHeaders()
	if err != nil {
		return err
	}

	resp, err := c.doJSON(ctx, http.MethodDelete, "/v1/sessions", req, headers)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// UpdateIdentityStatus records an account status change. A zero at lets
// the server stamp it. Requires ServiceToken.
func (c *SDKClient) UpdateIdentityStatus(ctx context.Context, identityID, status string, at time.Time) error {
	headers, err := c.internalHeaders()
	if err != nil {
		return err
	}

	body := IdentityStatusRequest{Status: status}
	if !at.IsZero() {
		body.UpdatedAt = at.Unix()
	}

	resp, err := c.doJSON(ctx, http.MethodPut, "/v1/identities/"+url.PathEscape(identityID)+"/status", body, headers)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// SendSmsOtp sends a code through the generic engine. Blocked sends are
// reported in the result, not as errors. Requires ServiceToken.
func (c *SDKClient) SendSmsOtp(ctx context.Context, req SmsOtpRequest) (*OtpSendResult, error) {
	return c.sendOtp(ctx, "/v1/otp/sms", req)
}

// SendEmailOtp is SendSmsOtp for email.
func (c *SDKClient) SendEmailOtp(ctx context.Context, req EmailOtpRequest) (*OtpSendResult, error) {
	return c.sendOtp(ctx, "/v1/otp/email", req)
}

func (c *SDKClient) sendOtp(ctx context.Context, path string, req any) (*OtpSendResult, error) {
	headers, err := c.internalHeaders()
	if err != nil {
		return nil, err
	}

	resp, err := c.doJSON(ctx, http.MethodPost, path, req, headers)
	if err != nil {
		return nil, err
	}

	var out OtpSendResult
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyOtp checks a code sent through the generic engine. Requires
// ServiceToken.
func (c *SDKClient) VerifyOtp(ctx context.Context, token, code string) (*OtpVerifyResult, error) {
	headers, err := c.internalHeaders()
	if err != nil {
		return nil, err
	}

	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/otp/verify", OtpVerifyRequest{Token: token, Otp: code}, headers)
	if err != nil {
		return nil, err
	}

	var out OtpVerifyResult
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
