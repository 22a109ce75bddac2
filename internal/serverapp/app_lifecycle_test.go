package serverapp

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"ecosystem-api/internal/config"
	"ecosystem-api/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.Discard()
}

func TestNew_RequiresDatabaseName(t *testing.T) {
	_, err := New(&config.Config{}, testLogger())
	require.Error(t, err)

	app, err := New(&config.Config{Database: config.DatabaseConfig{ConnectionString: "u:p@tcp(db:3306)/ecosystem"}}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "ecosystem", app.databaseName)
}

func TestWaitForStop_SignalWins(t *testing.T) {
	app := &App{logger: testLogger()}
	stop := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)
	stop <- syscall.SIGTERM

	reason, err := app.WaitForStop(stop, serverErrors)
	require.NoError(t, err)
	assert.Equal(t, "signal", reason)
}

func TestWaitForStop_ServerErrorWins(t *testing.T) {
	app := &App{logger: testLogger()}
	stop := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)
	serverErrors <- errors.New("boom")

	reason, err := app.WaitForStop(stop, serverErrors)
	require.Error(t, err)
	assert.Equal(t, "server_error", reason)
	assert.Contains(t, err.Error(), "boom")
}

func TestWaitForStop_NoChannels(t *testing.T) {
	app := &App{logger: testLogger()}
	_, err := app.WaitForStop(nil, nil)
	require.Error(t, err)
}

func TestShutdown_Idempotent(t *testing.T) {
	app := &App{logger: testLogger()}
	var calls int32
	app.cleanup.push("test", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, app.Shutdown(ctx))
	require.NoError(t, app.Shutdown(ctx))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestCleanupStack_RunsInReverseOrder(t *testing.T) {
	var order []string
	stack := cleanupStack{}
	for _, name := range []string{"meter provider", "database", "HTTP server"} {
		name := name
		stack.push(name, func(context.Context) error {
			order = append(order, name)
			return errors.New("ignored")
		})
	}

	err := stack.run(context.Background(), testLogger())
	assert.Equal(t, []string{"HTTP server", "database", "meter provider"}, order)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database: ignored")
}

func TestShutdown_ReportsCleanupFailure(t *testing.T) {
	app := &App{logger: testLogger()}
	app.cleanup.push("database", func(context.Context) error {
		return errors.New("close failed")
	})

	err := app.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close failed")
	assert.NoError(t, app.Shutdown(context.Background()))
}

func TestStart_BeforeInit_Fails(t *testing.T) {
	app := &App{logger: testLogger()}
	_, err := app.Start()
	require.Error(t, err)
}

func TestStartAndShutdown_HappyPath(t *testing.T) {
	app := &App{
		cfg:        &config.Config{},
		logger:     testLogger(),
		serverAddr: "127.0.0.1:0",
		srv: &http.Server{
			Addr:    "127.0.0.1:0",
			Handler: http.NewServeMux(),
		},
		initialized: true,
	}
	app.cleanup.push("HTTP server", func(ctx context.Context) error {
		return app.srv.Shutdown(ctx)
	})

	first, err := app.Start()
	require.NoError(t, err)
	second, err := app.Start()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
}

func TestInitFailure_DoesNotMarkInitialized(t *testing.T) {
	appCfg := &config.Config{
		Database: config.DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     1,
			User:     "root",
			Password: "invalid",
			Database: "ecosystem",
			TLS:      config.DatabaseTLSConfig{Mode: "off"},
			Pool:     config.PoolConfig{MaxOpen: 1, MaxIdle: 1, MaxLifetime: time.Second},
		},
		Server: config.ServerConfig{
			Port:               18089,
			ReadTimeout:        time.Second,
			WriteTimeout:       time.Second,
			IdleTimeout:        time.Second,
			ShutdownTimeout:    time.Second,
			HealthCheckTimeout: time.Second,
		},
		Auth: config.AuthConfig{JWTSecret: "0123456789abcdef0123456789abcdef", BcryptCost: 4},
		Observability: config.ObservabilityConfig{
			ServiceName:    "ecosystem-api",
			ServiceVersion: "test",
			Environment:    "test",
			Logging:        config.LoggingConfig{Level: "info", Format: "text"},
		},
	}

	app, err := New(appCfg, testLogger())
	require.NoError(t, err)

	require.Error(t, app.Init(context.Background()), "init should fail with an unreachable database")

	app.stateMu.Lock()
	initialized := app.initialized
	app.stateMu.Unlock()
	assert.False(t, initialized)
	assert.Nil(t, app.Handler())
}

func TestWaitForDatabase(t *testing.T) {
	t.Run("single attempt without timeout", func(t *testing.T) {
		calls := 0
		err := waitForDatabase(context.Background(), 0, time.Millisecond, testLogger(), func(context.Context) error {
			calls++
			return errors.New("refused")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries until ready", func(t *testing.T) {
		calls := 0
		err := waitForDatabase(context.Background(), time.Second, time.Millisecond, testLogger(), func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("refused")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after timeout", func(t *testing.T) {
		err := waitForDatabase(context.Background(), 20*time.Millisecond, 5*time.Millisecond, testLogger(), func(context.Context) error {
			return errors.New("refused")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "refused")
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := waitForDatabase(ctx, time.Second, time.Millisecond, testLogger(), func(context.Context) error {
			return errors.New("refused")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
