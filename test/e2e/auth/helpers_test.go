package auth_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common constants and helper functions for warden end-to-end tests.
 * This includes container setup, reading delivered codes, and assertions.
 */

const (
	testImageName = "warden-test:latest"
	redisImage    = "redis:7-alpine"

	serviceToken = "test-service-token-12345"
	issuer       = "warden-e2e"
	clientID     = "app"
	phoneNumber  = "+6587304661"
)

// clientsYAML is mounted as the registry. Login limits are low so the
// rejection paths are reachable in a few requests.
const clientsYAML = `
clients:
  - id: app
    messageProfile: app
    loginOtp:
      resendAfter: 2s
      maxAllowedOTP: 3
      maxAttemptForVerification: 2
      sms:
        otpChallengeEnabled: true
        template: "Your app code is {code}"
  - id: backoffice
`

// TestMain manages the test lifecycle, builds the Docker image once before
// all tests and cleans it up after all tests complete.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building warden Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up warden Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

// buildDockerImage builds the test Docker image.
func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/auth/Dockerfile",
		"../../../")
	cmd.Dir = "."
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

// cleanupDockerImage removes the test Docker image.
func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // Ignore errors - image might not exist
}

// wardenEnv is a running service and the handles tests need from it.
type wardenEnv struct {
	BaseURL   string
	Client    *authsdk.SDKClient
	Internal  *authsdk.SDKClient
	container testcontainers.Container
}

// setupWarden starts redis and the service on a private network. Both are
// terminated when the test ends.
func setupWarden(t *testing.T) *wardenEnv {
	t.Helper()
	ctx := context.Background()

	nw, err := network.New(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := nw.Remove(ctx); err != nil {
			t.Logf("failed to remove network: %v", err)
		}
	})

	redis, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:          redisImage,
			ExposedPorts:   []string{"6379/tcp"},
			Networks:       []string{nw.Name},
			NetworkAliases: map[string][]string{nw.Name: {"redis"}},
			WaitingFor:     wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { terminate(t, redis) })

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Networks:     []string{nw.Name},
		Env: map[string]string{
			"AUTH_ISSUER":        issuer,
			"AUTH_DATABASE_FILE": "/data/warden.db",
			"AUTH_CLIENTS_FILE":  "/etc/warden/clients.yaml",
			"AUTH_SERVICE_TOKEN": serviceToken,
			"AUTH_REDIS_ADDR":    "redis:6379",
			"AUTH_MASTER_KEY":    "e2e-master-key-material",
			"AUTH_MESSAGING":     "log",
			"ENV":                "test",
			"LOG_LEVEL":          "info",
			"LOG_FORMAT":         "json",
			// Tests make many rapid requests from one address.
			"RATELIMIT_STRICT_REQUESTS": "1000",
			"RATELIMIT_STRICT_BURST":    "1000",
		},
		Files: []testcontainers.ContainerFile{{
			Reader:            strings.NewReader(clientsYAML),
			ContainerFilePath: "/etc/warden/clients.yaml",
			FileMode:          0o644,
		}},
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { terminate(t, container) })

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
	client := authsdk.NewSDKClient(baseURL)

	return &wardenEnv{
		BaseURL:   baseURL,
		Client:    client,
		Internal:  client.WithServiceToken(serviceToken),
		container: container,
	}
}

func terminate(t *testing.T, c testcontainers.Container) {
	t.Helper()
	if err := c.Terminate(context.Background()); err != nil {
		t.Logf("failed to terminate container: %v", err)
	}
}

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

// lastCode scans the service log for the most recent message delivered to
// recipient and returns the code in it. The log messenger writes every
// outbound message as a JSON line.
func (e *wardenEnv) lastCode(t *testing.T, recipient string) string {
	t.Helper()

	var code string
	require.Eventually(t, func() bool {
		logs, err := e.container.Logs(context.Background())
		if err != nil {
			return false
		}
		defer logs.Close()

		scanner := bufio.NewScanner(logs)
		for scanner.Scan() {
			line := scanner.Bytes()
			// Docker prefixes each frame with an 8-byte header.
			if i := strings.IndexByte(string(line), '{'); i > 0 {
				line = line[i:]
			}

			var entry struct {
				Msg         string `json:"msg"`
				PhoneNumber string `json:"phone_number"`
				Message     string `json:"message"`
			}
			if json.Unmarshal(line, &entry) != nil || entry.Msg != "sms message" || entry.PhoneNumber != recipient {
				continue
			}
			if m := codePattern.FindStringSubmatch(entry.Message); m != nil {
				code = m[1]
			}
		}
		return code != ""
	}, 10*time.Second, 200*time.Millisecond, "no code delivered to %s", recipient)

	return code
}

// login runs the SMS login flow and returns the token pair.
func (e *wardenEnv) login(t *testing.T, device authsdk.Device, phone string) *authsdk.TokenResponse {
	t.Helper()
	ctx := context.Background()

	sent, err := e.Client.LoginOtpSms(ctx, device.ClientID, phone)
	require.NoError(t, err, "sending the login code should succeed")
	require.NotEmpty(t, sent.Token)

	tokens, err := e.Client.LoginOtpVerify(ctx, device, sent.Token, e.lastCode(t, phone))
	require.NoError(t, err, "verifying the login code should succeed")
	assertTokenResponse(t, tokens)
	return tokens
}

// assertTokenResponse verifies a token response has all required fields.
func assertTokenResponse(t *testing.T, resp *authsdk.TokenResponse) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "Access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "Refresh token should not be empty")
	require.Equal(t, "Bearer", resp.TokenType, "Token type should be Bearer")
	require.Positive(t, resp.ExpiresIn)
}

// assertAPIError checks err is an APIError with the given status and code.
func assertAPIError(t *testing.T, err error, status int, code string) *authsdk.APIError {
	t.Helper()
	require.Error(t, err)

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode, "unexpected status for %s", apiErr.Code)
	require.Equal(t, code, apiErr.Code)
	return apiErr
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
