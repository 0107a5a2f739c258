//go:build e2e

package auth_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/aussiebroadwan/tracker/pkg/authsdk"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testImageName = "tracker-auth-test:latest"

	adminEmail    = "admin@tracker.test"
	adminPassword = "Admin123!"
	userPassword  = "Password1!"
)

// TestMain builds the image once for the whole suite and removes it afterwards.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building Auth Service Docker image...")
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up Auth Service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	cmd := exec.CommandContext(context.Background(), "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/auth/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	_ = exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName).Run()
}

// baseEnv is the container environment shared by every test. Rate limits are
// raised so that suites making many rapid calls are not throttled.
func baseEnv() map[string]string {
	return map[string]string{
		"ENV":                      "test",
		"LOG_LEVEL":                "info",
		"LOG_FORMAT":               "json",
		"AUTH_DEBUG":               "true",
		"AUTH_DATABASE_FILE":       "/data/auth.db",
		"AUTH_PEPPER_FILE":         "/data/pepper",
		"AUTH_JWT_SECRET":          "e2e-secret-that-is-long-enough-for-hs256",
		"AUTH_JWT_ISSUER":          "tracker-auth",
		"AUTH_JWT_AUDIENCE":        "tracker-api",
		"AUTH_SEED_ADMIN_EMAIL":    adminEmail,
		"AUTH_SEED_ADMIN_PASSWORD": adminPassword,

		"RATELIMIT_STRICT_REQUESTS":   "1000",
		"RATELIMIT_STRICT_BURST":      "1000",
		"RATELIMIT_MODERATE_REQUESTS": "1000",
		"RATELIMIT_MODERATE_BURST":    "1000",
	}
}

// setupAuthContainer starts the service with relaxed rate limits and returns
// its base URL.
func setupAuthContainer(t *testing.T) (string, func()) {
	t.Helper()
	return startContainer(t, baseEnv())
}

// setupAuthContainerWithDefaultRateLimits starts the service with production
// rate limits, for tests that exercise throttling itself.
func setupAuthContainerWithDefaultRateLimits(t *testing.T) (string, func()) {
	t.Helper()
	env := baseEnv()
	for k := range env {
		if len(k) > 10 && k[:10] == "RATELIMIT_" {
			delete(env, k)
		}
	}
	return startContainer(t, env)
}

func startContainer(t *testing.T, env map[string]string) (string, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port()), cleanup
}

// uniqueEmail returns an address no other test uses.
func uniqueEmail() string {
	return "user-" + uuid.NewString()[:8] + "@tracker.test"
}

// registerUser creates a fresh account and returns its session.
func registerUser(t *testing.T, client *authsdk.SDKClient) (*authsdk.Session, string) {
	t.Helper()

	email := uniqueEmail()
	session, err := client.Register(t.Context(), authsdk.RegisterRequest{
		Email:     email,
		Password:  userPassword,
		FirstName: "Test",
		LastName:  "User",
	})
	require.NoError(t, err, "Register should succeed")
	assertAuthResponse(t, session.User())
	return session, email
}

// assertAuthResponse verifies an auth response has all required fields.
func assertAuthResponse(t *testing.T, resp authsdk.AuthResponse) {
	t.Helper()
	require.NotEmpty(t, resp.Token, "Access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "Refresh token should not be empty")
	require.NotEmpty(t, resp.UserID, "User ID should not be empty")
	require.NotEmpty(t, resp.Role, "Role should not be empty")
}

// assertAPIError checks err is an *authsdk.APIError with the given status
// carrying msg.
func assertAPIError(t *testing.T, err error, status int, msg string) {
	t.Helper()
	require.Error(t, err)

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode, "unexpected status: %v", apiErr)
	if msg != "" {
		require.True(t, apiErr.Has(msg), "expected %q in %v", msg, apiErr.Errors)
	}
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
