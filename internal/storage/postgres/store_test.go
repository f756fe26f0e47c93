package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"forum/internal/ports"
	"forum/internal/ports/porttest"
)

// Requires a disposable database; every case truncates all tables.
func TestPostgresConformance(t *testing.T) {
	dsn := os.Getenv("FORUM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FORUM_TEST_POSTGRES_DSN not set")
	}
	porttest.Run(t, func(t *testing.T) ports.Store {
		ctx := context.Background()
		s, err := New(ctx, dsn)
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, `TRUNCATE transactions, members, notices, projects`)
		require.NoError(t, err)
		return s
	})
}
