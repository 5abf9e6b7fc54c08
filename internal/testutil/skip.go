// Package testutil holds small helpers shared by tests.
package testutil

import (
	"os"
	"testing"
)

// SkipIfNoNetwork skips the test if RIG_TEST_SKIP_NETWORK is set.
// Use this for tests that require TCP connectivity which may not be
// available in sandboxed environments.
func SkipIfNoNetwork(t *testing.T) {
	t.Helper()
	if os.Getenv("RIG_TEST_SKIP_NETWORK") != "" {
		t.Skip("skipping network test: RIG_TEST_SKIP_NETWORK is set")
	}
}

// SSHTarget returns the user@host:port target for integration tests, or
// skips the test when RIG_TEST_SSH_TARGET is unset.
func SSHTarget(t *testing.T) string {
	t.Helper()
	target := os.Getenv("RIG_TEST_SSH_TARGET")
	if target == "" {
		t.Skip("skipping integration test: RIG_TEST_SSH_TARGET is not set")
	}
	return target
}

// SSHKeyPath returns the private key path for integration tests, or skips
// the test when RIG_TEST_SSH_KEY is unset.
func SSHKeyPath(t *testing.T) string {
	t.Helper()
	path := os.Getenv("RIG_TEST_SSH_KEY")
	if path == "" {
		t.Skip("skipping integration test: RIG_TEST_SSH_KEY is not set")
	}
	return path
}

// APIKey returns the provider API key for integration tests, or skips the
// test when RIG_TEST_API_KEY is unset.
func APIKey(t *testing.T) string {
	t.Helper()
	key := os.Getenv("RIG_TEST_API_KEY")
	if key == "" {
		t.Skip("skipping integration test: RIG_TEST_API_KEY is not set")
	}
	return key
}
