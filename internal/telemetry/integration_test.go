package telemetry

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeOpenTelemetry_Disabled(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = false

	shutdown, err := InitializeOpenTelemetry(context.Background(), config)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}

func TestProvider_ShutdownWhenDisabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, provider.TraceProvider)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestOpenInstrumentedDB_UnknownDriver(t *testing.T) {
	_, err := OpenInstrumentedDB("no-such-driver", "invalid_dsn")
	assert.Error(t, err)
}

func TestInstrumentRedisClient(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	assert.NotPanics(t, func() { InstrumentRedisClient(client) })
}
