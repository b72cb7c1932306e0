package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// SkipIntegration skips tests that need Docker. They run unless -short is
// passed or KVIZ_SKIP_INTEGRATION is set.
func SkipIntegration(t testing.TB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("KVIZ_SKIP_INTEGRATION") != "" {
		t.Skip("skipping integration test, KVIZ_SKIP_INTEGRATION is set")
	}
}

// TerminateOnCleanup stops c when the test ends. Cleanup uses its own
// context so it still runs after the test context is cancelled.
func TerminateOnCleanup(t testing.TB, c testcontainers.Container) {
	t.Helper()
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})
}
