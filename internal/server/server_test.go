package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServer_ShutdownOrder(t *testing.T) {
	srv := New(http.NotFoundHandler(), Config{Port: 0, ShutdownTimeout: time.Second}, quietLogger())

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string, err error) ShutdownFunc {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return err
		}
	}
	srv.OnShutdown("database", record("database", nil))
	srv.OnShutdown("redis", record("redis", nil))
	srv.OnShutdown("sweeper", record("sweeper", nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	require.Equal(t, []string{"sweeper", "redis", "database"}, order)
}

func TestServer_ShutdownErrorsJoined(t *testing.T) {
	srv := New(http.NotFoundHandler(), Config{Port: 0, ShutdownTimeout: time.Second}, quietLogger())
	boom := errors.New("close failed")
	calledFirst := false
	srv.OnShutdown("database", func(context.Context) error {
		calledFirst = true
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := srv.Run(ctx)

	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "redis")
	require.True(t, calledFirst, "a failing component must not stop the rest")
}

func TestNew_Defaults(t *testing.T) {
	srv := New(http.NotFoundHandler(), Config{Port: 8080}, nil)

	require.Equal(t, ":8080", srv.Addr())
	require.Equal(t, 30*time.Second, srv.shutdownTimeout)
}
