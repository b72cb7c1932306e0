package httpserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServer_ShutdownRightAfterRun(t *testing.T) {
	t.Parallel()
	env := buildServer(t, false)

	errCh := make(chan error, 1)
	go func() {
		errCh <- env.server.Run("127.0.0.1:0")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.server.Shutdown(ctx))

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server still running after Shutdown returned")
	}
}

func TestServer_ShutdownBeforeRun(t *testing.T) {
	t.Parallel()
	env := buildServer(t, false)

	require.NoError(t, env.server.Shutdown(context.Background()))
	require.NoError(t, env.server.Run("127.0.0.1:0"))
}

func TestServer_RunBadAddress(t *testing.T) {
	t.Parallel()
	env := buildServer(t, false)
	require.Error(t, env.server.Run("127.0.0.1:-1"))
}
