package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/swarmroll/pkg/log"
	"github.com/cuemby/swarmroll/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorGaugesServices(t *testing.T) {
	status := func(ctx context.Context) ([]types.ServiceStatus, error) {
		return []types.ServiceStatus{
			{ServiceRef: types.ServiceRef{Name: "api"}, Active: true},
			{ServiceRef: types.ServiceRef{Name: "web"}, Active: true},
			{ServiceRef: types.ServiceRef{Name: "worker"}, Active: false},
		}, nil
	}

	c := NewCollector(status, time.Hour)
	c.collect()

	assert.Equal(t, float64(3), testutil.ToFloat64(RegisteredServices))
	assert.Equal(t, float64(2), testutil.ToFloat64(ActiveServices))
}

func TestCollectorKeepsGaugesOnError(t *testing.T) {
	RegisteredServices.Set(7)
	ActiveServices.Set(5)

	c := NewCollector(func(ctx context.Context) ([]types.ServiceStatus, error) {
		return nil, errors.New("store closed")
	}, time.Hour)
	c.collect()

	assert.Equal(t, float64(7), testutil.ToFloat64(RegisteredServices))
	assert.Equal(t, float64(5), testutil.ToFloat64(ActiveServices))
}

func TestCollectorLogsStatusError(t *testing.T) {
	var buf bytes.Buffer
	saved := log.Logger
	log.Init(log.Config{Level: log.DebugLevel, JSONOutput: true, Output: &buf})
	defer func() {
		log.Logger = saved
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}()

	c := NewCollector(func(ctx context.Context) ([]types.ServiceStatus, error) {
		return nil, errors.New("store closed")
	}, time.Hour)
	c.collect()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "metrics", entry["component"])
	assert.Equal(t, "store closed", entry["error"])
	assert.Equal(t, "Failed to collect service status", entry["message"])
}

func TestCollectorStartStop(t *testing.T) {
	var calls int32
	c := NewCollector(func(ctx context.Context) ([]types.ServiceStatus, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}, 5*time.Millisecond)

	c.Start()
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 2
	}, time.Second, time.Millisecond)
	c.Stop()

	after := atomic.LoadInt32(&calls)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&calls))
}
