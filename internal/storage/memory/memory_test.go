package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forum/internal/core"
	"forum/internal/ports"
	"forum/internal/ports/porttest"
)

func TestStoreConformance(t *testing.T) {
	porttest.Run(t, func(t *testing.T) ports.Store { return New() })
}

func TestCancelledContextIsUnavailable(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ListMembers(ctx)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), core.ErrStoreUnavailable)
}
