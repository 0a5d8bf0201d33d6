package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	cb := New(DefaultConfig("test"))

	require.NotNil(t, cb)
	assert.Equal(t, "test", cb.Name())
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_Execute_Success(t *testing.T) {
	cb := New(DefaultConfig("test"))

	result, err := cb.Execute(func() (interface{}, error) {
		return "ok", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_Execute_Failure(t *testing.T) {
	cb := New(DefaultConfig("test"))
	wantErr := errors.New("gateway down")

	result, err := cb.Execute(func() (interface{}, error) {
		return nil, wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Nil(t, result)
	// A single failure must not trip the circuit.
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_TripsOpen(t *testing.T) {
	cfg := Config{
		Name:             "trip-test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
	cb := New(cfg)

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (interface{}, error) {
			return nil, errors.New("boom")
		})
	}

	assert.True(t, cb.IsOpen(), "circuit should open after the failure threshold")

	_, err := cb.Execute(func() (interface{}, error) {
		t.Fatal("function must not run while the circuit is open")
		return nil, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestCircuitBreaker_MinRequests(t *testing.T) {
	cfg := Config{
		Name:             "min-requests-test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      10,
	}
	cb := New(cfg)

	// Fewer failures than MinRequests never trip the circuit.
	for i := 0; i < 9; i++ {
		_, _ = cb.Execute(func() (interface{}, error) {
			return nil, errors.New("boom")
		})
	}

	assert.False(t, cb.IsOpen())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("svc")

	assert.Equal(t, "svc", cfg.Name)
	assert.Equal(t, uint32(3), cfg.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 0.6, cfg.FailureThreshold)
	assert.Equal(t, uint32(5), cfg.MinRequests)
}

func TestProviderConfig(t *testing.T) {
	cfg := ProviderConfig()

	assert.Equal(t, "provider-gateway", cfg.Name)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}
