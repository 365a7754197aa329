package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *Logger {
	return NewLogger(ErrorLevel, &bytes.Buffer{})
}

func TestNewShutdownManager_Defaults(t *testing.T) {
	sm := NewShutdownManager(nil, 0)
	assert.NotNil(t, sm.logger)
	assert.Equal(t, 30*time.Second, sm.timeout)
}

func TestShutdownManager_RunsAllFunctions(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), time.Second)

	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		sm.Register("resource", func(ctx context.Context) error {
			calls.Add(1)
			return nil
		})
	}
	sm.Register("ignored", nil)

	require.NoError(t, sm.Shutdown())
	assert.Equal(t, int32(3), calls.Load())
}

func TestShutdownManager_CollectsErrors(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), time.Second)
	sm.Register("db", func(ctx context.Context) error { return errors.New("close failed") })
	sm.Register("redis", func(ctx context.Context) error { return nil })

	err := sm.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 errors")
	assert.Contains(t, err.Error(), "db: close failed")
}

func TestShutdownManager_Timeout(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), 50*time.Millisecond)
	sm.Register("slow", func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	err := sm.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestShutdownManager_StopsServer(t *testing.T) {
	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Start()
	defer ts.Close()

	sm := NewShutdownManager(quietLogger(), time.Second, ts.Config)
	require.NoError(t, sm.Shutdown())

	_, err := http.Get(ts.URL)
	assert.Error(t, err, "server should refuse connections after shutdown")
}

func TestShutdownManager_WaitForSignalContextCancel(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), time.Second)
	var ran atomic.Bool
	sm.Register("flag", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, sm.WaitForSignal(ctx))
	assert.True(t, ran.Load())
}
