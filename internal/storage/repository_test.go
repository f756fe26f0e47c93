package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forum/internal/core"
	"forum/internal/ports"
	"forum/internal/ports/porttest"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "forum.db"))
	require.NoError(t, err)
	return repo
}

func TestSQLiteConformance(t *testing.T) {
	porttest.Run(t, func(t *testing.T) ports.Store { return newTestRepo(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forum.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.CreateMember(context.Background(), porttest.Member("M-001")))
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()
	m, err := repo.GetMember(context.Background(), "M-001")
	require.NoError(t, err)
	assert.Equal(t, "M-001", m.ID)
}

func TestCancelledContextIsUnavailable(t *testing.T) {
	repo := newTestRepo(t)
	defer repo.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := repo.ListMembers(ctx)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}
