package authsdk

import (
	"context"
	"net/http"
)

// LoginOtpSms sends a login code to phoneNumber.
//
// A send blocked by the resend guard or the rate limit returns an
// *APIError matching ErrTooEarlyOtpRequests or ErrTooManyOtpRequests with
// RetryAfter set.
func (c *SDKClient) LoginOtpSms(ctx context.Context, clientID, phoneNumber string) (*OtpSentResponse, error) {
	return c.loginOtpSend(ctx, "/v1/login/otp/sms", clientID, LoginOtpSmsRequest{PhoneNumber: phoneNumber})
}

// LoginOtpEmail sends a login code to email.
func (c *SDKClient) LoginOtpEmail(ctx context.Context, clientID, email string) (*OtpSentResponse, error) {
	return c.loginOtpSend(ctx, "/v1/login/otp/email", clientID, LoginOtpEmailRequest{Email: email})
}

func (c *SDKClient) loginOtpSend(ctx context.Context, path, clientID string, body any) (*OtpSentResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, path, body, map[string]string{HeaderClientID: clientID})
	if err != nil {
		return nil, err
	}

	var out OtpSentResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoginOtpVerify completes a login and returns the new session.
func (c *SDKClient) LoginOtpVerify(ctx context.Context, device Device, token, code string) (*TokenResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/login/otp/verify",
		OtpVerifyRequest{Token: token, Otp: code}, device.headers())
	if err != nil {
		return nil, err
	}

	var out TokenResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
