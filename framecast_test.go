package framecast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridge "github.com/bft-labs/framecast/pkg/framecast"
	"github.com/bft-labs/framecast/pkg/log"
)

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Width, cfg.Height = 64, 48
	cfg.DisableHUD = true

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.NoError(t, Run(ctx, cfg, WithLogger(log.NewNoopLogger())))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quality = 0
	cfg.Format = "gif"

	err := Run(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bridge.ErrInvalidConfig))
}
