package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forum/internal/cache"
	"forum/internal/core"
	"forum/internal/metrics"
	"forum/internal/ports"
	"forum/internal/ports/porttest"
	"forum/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev core.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Events() []core.LedgerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.LedgerEvent(nil), p.events...)
}

type fixture struct {
	store     *memory.Store
	publisher *recordingPublisher
	summary   *cache.LRUCache[core.Summary]
	deps      Deps
	ledger    *LedgerService
	directory *DirectoryService
	board     *BoardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		store:     store,
		publisher: &recordingPublisher{},
		summary:   cache.NewLRUCache[core.Summary](4, time.Minute),
	}
	f.deps = Deps{
		Store:     store,
		Publisher: f.publisher,
		Metrics:   metrics.New(),
		Summary:   f.summary,
		Timeout:   time.Second,
	}
	f.ledger = NewLedgerService(f.deps)
	f.directory = NewDirectoryService(f.deps, f.ledger)
	f.board = NewBoardService(f.deps)
	return f
}

func (f *fixture) addMember(t *testing.T, id string, totalSaved int64) core.Member {
	t.Helper()
	m := porttest.Member(id)
	m.TotalSaved = core.NewMoney(totalSaved)
	require.NoError(t, f.store.CreateMember(context.Background(), m))
	return m
}

func money(units int64) *core.Money {
	m := core.NewMoney(units)
	return &m
}

// flakyStore fails the first n ListMembers calls as unavailable.
type flakyStore struct {
	ports.Store
	mu    sync.Mutex
	fails int
	calls int
}

func (s *flakyStore) ListMembers(ctx context.Context) ([]core.Member, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.fails
	s.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("%w: connection reset", core.ErrStoreUnavailable)
	}
	return s.Store.ListMembers(ctx)
}

func fastBackoff(t *testing.T) {
	t.Helper()
	saved := readBackoff
	readBackoff = []time.Duration{time.Millisecond, time.Millisecond}
	t.Cleanup(func() { readBackoff = saved })
}

func TestReadRetryRecoversFromUnavailable(t *testing.T) {
	fastBackoff(t)
	store := &flakyStore{Store: memory.New(), fails: 2}
	dir := NewDirectoryService(Deps{Store: store}, nil)

	_, err := dir.ListMembers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, store.calls)
}

func TestReadRetryGivesUpAfterThreeAttempts(t *testing.T) {
	fastBackoff(t)
	store := &flakyStore{Store: memory.New(), fails: 10}
	dir := NewDirectoryService(Deps{Store: store}, nil)

	_, err := dir.ListMembers(context.Background())
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.Equal(t, 3, store.calls)
}

func TestReadBackoffSchedule(t *testing.T) {
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, readBackoff)
}

func TestReadRetrySkipsOtherErrors(t *testing.T) {
	calls := 0
	_, err := withReadRetry(context.Background(), time.Second, func(context.Context) (int, error) {
		calls++
		return 0, core.ErrNotFound
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, 1, calls)
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "validation_error", ErrorType(core.Invalid("x")))
	assert.Equal(t, "not_found_error", ErrorType(fmt.Errorf("wrap: %w", core.ErrNotFound)))
	assert.Equal(t, "conflict_error", ErrorType(core.ErrConflict))
	assert.Equal(t, "store_unavailable", ErrorType(core.ErrStoreUnavailable))
	assert.Equal(t, "internal_error", ErrorType(fmt.Errorf("boom")))
	assert.Equal(t, "", ErrorType(nil))
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	seeded, err := Seed(ctx, store, nil)
	require.NoError(t, err)
	assert.True(t, seeded)

	members, err := store.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 50)
	assert.Equal(t, "M-001", members[0].ID)
	assert.Equal(t, "M-050", members[49].ID)
	for _, m := range members {
		assert.Equal(t, core.NewMoney(40000), m.TotalSaved, m.ID)
	}
	assert.Equal(t, core.NewMoney(2000), members[0].TotalDue)
	assert.Equal(t, core.Money{}, members[1].TotalDue)
	assert.Equal(t, core.NewMoney(2000), members[5].TotalDue)

	txs, err := store.ListTransactionsByMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Len(t, txs, 4)

	notices, err := store.ListNotices(ctx)
	require.NoError(t, err)
	assert.Len(t, notices, 3)
	projects, err := store.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 3)

	again, err := Seed(ctx, store, nil)
	require.NoError(t, err)
	assert.False(t, again)
}
