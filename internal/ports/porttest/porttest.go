// Package porttest is a conformance suite shared by every ports.Store backend.
package porttest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forum/internal/core"
	"forum/internal/ports"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) ports.Store

// Run executes the whole suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(*testing.T, ports.Store)
	}{
		{"MemberCRUD", testMemberCRUD},
		{"UpsertMember", testUpsertMember},
		{"PatchKeepsConcurrentDeposits", testPatchKeepsDeposits},
		{"DepositIncrementsTotalSaved", testDepositIncrements},
		{"NonDepositLeavesAggregates", testNonDepositKinds},
		{"DepositOverflowRejected", testDepositOverflow},
		{"UnknownMemberWritesNothing", testUnknownMember},
		{"IdempotencyKeyUnique", testIdempotencyKey},
		{"TransactionOrdering", testOrdering},
		{"DeleteMemberCascades", testDeleteCascade},
		{"DeleteTransactionsByMember", testDeleteTransactions},
		{"ConcurrentDeposits", testConcurrentDeposits},
		{"Notices", testNotices},
		{"Projects", testProjects},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func Member(id string) core.Member {
	return core.Member{
		ID:             id,
		Name:           "Member " + id,
		Email:          id + "@al-ittehad.com",
		Phone:          "01700-000000",
		JoiningDate:    core.NewDate(2023, 1, 1),
		MonthlySavings: core.NewMoney(2000),
		Avatar:         "https://ui-avatars.com/api/?name=" + id,
		Role:           core.RoleMember,
	}
}

func Tx(id, memberID string, kind core.TransactionKind, amount core.Money, on core.Date) core.Transaction {
	return core.Transaction{
		ID:          id,
		MemberID:    memberID,
		Amount:      amount,
		Kind:        kind,
		OccurredOn:  on,
		Description: "entry " + id,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func testMemberCRUD(t *testing.T, s ports.Store) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	_, err := s.GetMember(ctx, "M-001")
	require.ErrorIs(t, err, core.ErrNotFound)

	m := Member("M-001")
	require.NoError(t, s.CreateMember(ctx, m))
	require.ErrorIs(t, s.CreateMember(ctx, m), core.ErrConflict)
	require.NoError(t, s.CreateMember(ctx, Member("M-002")))

	got, err := s.GetMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Equal(t, m, got)

	name := "Renamed"
	due := core.NewMoney(500)
	profit := core.Money{Cents: 150075}
	updated, err := s.UpdateMember(ctx, "M-001", core.MemberPatch{Name: &name, TotalDue: &due, ProfitShare: &profit})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, m.Email, updated.Email, "untouched fields keep their values")
	assert.Equal(t, m.MonthlySavings, updated.MonthlySavings)

	got, err = s.GetMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Equal(t, updated, got)
	assert.Equal(t, core.NewMoney(500), got.TotalDue)
	assert.Equal(t, core.Money{Cents: 150075}, got.ProfitShare)

	_, err = s.UpdateMember(ctx, "M-404", core.MemberPatch{Name: &name})
	require.ErrorIs(t, err, core.ErrNotFound)

	list, err := s.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "M-001", list[0].ID)
	assert.Equal(t, "M-002", list[1].ID)

	require.ErrorIs(t, s.DeleteMember(ctx, "M-404"), core.ErrNotFound)
}

func testUpsertMember(t *testing.T, s ports.Store) {
	ctx := context.Background()
	m := Member("M-010")
	created, err := s.UpsertMember(ctx, m)
	require.NoError(t, err)
	assert.True(t, created)

	m.TotalSaved = core.NewMoney(42000)
	created, err = s.UpsertMember(ctx, m)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.GetMember(ctx, "M-010")
	require.NoError(t, err)
	assert.Equal(t, core.NewMoney(42000), got.TotalSaved)
}

func testPatchKeepsDeposits(t *testing.T, s ports.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, Member("M-001")))
	require.NoError(t, s.InsertTransaction(ctx, Tx("tx-1", "M-001", core.KindDeposit, core.NewMoney(2000), core.NewDate(2024, 1, 1))))

	phone := "01800-111111"
	got, err := s.UpdateMember(ctx, "M-001", core.MemberPatch{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, core.NewMoney(2000), got.TotalSaved)

	override := core.NewMoney(100)
	got, err = s.UpdateMember(ctx, "M-001", core.MemberPatch{TotalSaved: &override})
	require.NoError(t, err)
	assert.Equal(t, override, got.TotalSaved)
}

func testDepositIncrements(t *testing.T, s ports.Store) {
	ctx := context.Background()
	m := Member("M-001")
	m.TotalSaved = core.NewMoney(40000)
	require.NoError(t, s.CreateMember(ctx, m))

	day := core.NewDate(2024, 1, 1)
	require.NoError(t, s.InsertTransaction(ctx, Tx("tx-1", "M-001", core.KindDeposit, core.NewMoney(2000), day)))
	require.NoError(t, s.InsertTransaction(ctx, Tx("tx-2", "M-001", core.KindDeposit, core.Money{Cents: 50}, day)))
	require.NoError(t, s.InsertTransaction(ctx, Tx("tx-3", "M-001", core.KindDeposit, core.Money{Cents: -25}, day)))

	got, err := s.GetMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: 4000000 + 200000 + 50 - 25}, got.TotalSaved)

	sum, err := s.SumDepositsByMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: 200000 + 50 - 25}, sum)

	sum, err = s.SumDepositsByMember(ctx, "M-404")
	require.NoError(t, err)
	assert.Zero(t, sum.Cents)
}

func testNonDepositKinds(t *testing.T, s ports.Store) {
	ctx := context.Background()
	m := Member("M-001")
	m.TotalDue = core.NewMoney(2000)
	m.ProfitShare = core.NewMoney(1500)
	require.NoError(t, s.CreateMember(ctx, m))

	day := core.NewDate(2024, 1, 1)
	require.NoError(t, s.InsertTransaction(ctx, Tx("tx-d", "M-001", core.KindDue, core.NewMoney(300), day)))
	require.NoError(t, s.InsertTransaction(ctx, Tx("tx-p", "M-001", core.KindProfit, core.NewMoney(150), day)))

	got, err := s.GetMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Equal(t, m.TotalSaved, got.TotalSaved)
	assert.Equal(t, m.TotalDue, got.TotalDue)
	assert.Equal(t, m.ProfitShare, got.ProfitShare)

	txs, err := s.ListTransactionsByMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func testDepositOverflow(t *testing.T, s ports.Store) {
	ctx := context.Background()
	m := Member("M-001")
	m.TotalSaved = core.Money{Cents: math.MaxInt64 - 10}
	require.NoError(t, s.CreateMember(ctx, m))

	day := core.NewDate(2024, 1, 1)
	err := s.InsertTransaction(ctx, Tx("tx-big", "M-001", core.KindDeposit, core.Money{Cents: 100}, day))
	require.ErrorIs(t, err, core.ErrValidation)
	assert.ErrorIs(t, err, core.ErrAmountOverflow)

	got, err := s.GetMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Equal(t, m.TotalSaved, got.TotalSaved)
	txs, err := s.ListTransactionsByMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Empty(t, txs)

	// The headroom is still usable.
	require.NoError(t, s.InsertTransaction(ctx, Tx("tx-fit", "M-001", core.KindDeposit, core.Money{Cents: 10}, day)))
	got, err = s.GetMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: math.MaxInt64}, got.TotalSaved)
}

func testUnknownMember(t *testing.T, s ports.Store) {
	ctx := context.Background()
	err := s.InsertTransaction(ctx, Tx("tx-x", "M-999", core.KindDeposit, core.NewMoney(100), core.NewDate(2024, 1, 1)))
	require.ErrorIs(t, err, core.ErrNotFound)

	txs, err := s.ListTransactionsByMember(ctx, "M-999")
	require.NoError(t, err)
	assert.Empty(t, txs)
	all, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testIdempotencyKey(t *testing.T, s ports.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, Member("M-001")))
	require.NoError(t, s.CreateMember(ctx, Member("M-002")))

	day := core.NewDate(2024, 2, 1)
	first := Tx("tx-a", "M-001", core.KindDeposit, core.NewMoney(2000), day)
	first.IdempotencyKey = "k-1"
	require.NoError(t, s.InsertTransaction(ctx, first))

	again := Tx("tx-b", "M-001", core.KindDeposit, core.NewMoney(2000), day)
	again.IdempotencyKey = "k-1"
	require.ErrorIs(t, s.InsertTransaction(ctx, again), core.ErrConflict)

	// keys are scoped per member
	other := Tx("tx-c", "M-002", core.KindDeposit, core.NewMoney(2000), day)
	other.IdempotencyKey = "k-1"
	require.NoError(t, s.InsertTransaction(ctx, other))

	found, err := s.FindTransactionByKey(ctx, "M-001", "k-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-a", found.ID)
	assert.Equal(t, core.NewMoney(2000), found.Amount)

	_, err = s.FindTransactionByKey(ctx, "M-001", "k-2")
	require.ErrorIs(t, err, core.ErrNotFound)

	got, err := s.GetMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Equal(t, core.NewMoney(2000), got.TotalSaved)
}

func testOrdering(t *testing.T, s ports.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, Member("M-001")))
	require.NoError(t, s.CreateMember(ctx, Member("M-002")))

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	entries := []core.Transaction{
		Tx("tx-old", "M-001", core.KindDeposit, core.NewMoney(1), core.NewDate(2024, 1, 1)),
		Tx("tx-new", "M-001", core.KindDeposit, core.NewMoney(1), core.NewDate(2024, 3, 1)),
		Tx("tx-mid", "M-002", core.KindProfit, core.NewMoney(1), core.NewDate(2024, 2, 1)),
		Tx("tx-new-later", "M-001", core.KindDue, core.NewMoney(1), core.NewDate(2024, 3, 1)),
	}
	for i := range entries {
		entries[i].CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.InsertTransaction(ctx, entries[i]))
	}

	txs, err := s.ListTransactionsByMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Equal(t, []string{"tx-new-later", "tx-new", "tx-old"}, ids(txs))
	assert.Equal(t, entries[0].CreatedAt, txs[2].CreatedAt.UTC())

	all, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tx-new-later", "tx-new", "tx-mid", "tx-old"}, ids(all))
}

func testDeleteCascade(t *testing.T, s ports.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, Member("M-001")))
	require.NoError(t, s.CreateMember(ctx, Member("M-002")))
	day := core.NewDate(2024, 1, 1)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertTransaction(ctx, Tx(fmt.Sprintf("tx-%d", i), "M-001", core.KindDeposit, core.NewMoney(2000), day)))
	}
	require.NoError(t, s.InsertTransaction(ctx, Tx("tx-keep", "M-002", core.KindDeposit, core.NewMoney(10), day)))

	require.NoError(t, s.DeleteMember(ctx, "M-001"))

	_, err := s.GetMember(ctx, "M-001")
	require.ErrorIs(t, err, core.ErrNotFound)
	txs, err := s.ListTransactionsByMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Empty(t, txs)

	all, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tx-keep"}, ids(all))
}

func testDeleteTransactions(t *testing.T, s ports.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, Member("M-001")))
	day := core.NewDate(2024, 1, 1)
	require.NoError(t, s.InsertTransaction(ctx, Tx("tx-1", "M-001", core.KindDeposit, core.NewMoney(5), day)))
	require.NoError(t, s.InsertTransaction(ctx, Tx("tx-2", "M-001", core.KindDue, core.NewMoney(5), day)))

	n, err := s.DeleteTransactionsByMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := s.GetMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Equal(t, core.NewMoney(5), got.TotalSaved, "aggregates are not rolled back")

	n, err = s.DeleteTransactionsByMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testConcurrentDeposits(t *testing.T, s ports.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateMember(ctx, Member("M-001")))

	const n = 25
	amount := core.Money{Cents: 200033}
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.InsertTransaction(ctx, Tx(fmt.Sprintf("tx-c-%02d", i), "M-001", core.KindDeposit, amount, core.NewDate(2024, 6, 1)))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: n * amount.Cents}, got.TotalSaved)

	txs, err := s.ListTransactionsByMember(ctx, "M-001")
	require.NoError(t, err)
	assert.Len(t, txs, n)
}

func testNotices(t *testing.T, s ports.Store) {
	ctx := context.Background()
	older := core.Notice{ID: "n-1", Title: "AGM", Content: "Annual meeting", Date: core.NewDate(2024, 1, 10), Author: "সভাপতি", Priority: core.PriorityHigh}
	newer := core.Notice{ID: "n-2", Title: "Deposit", Content: "Pay by the 10th", Date: core.NewDate(2024, 2, 1), Author: "Secretary", Priority: core.PriorityMedium}
	require.NoError(t, s.CreateNotice(ctx, older))
	require.NoError(t, s.CreateNotice(ctx, newer))
	require.ErrorIs(t, s.CreateNotice(ctx, older), core.ErrConflict)

	list, err := s.ListNotices(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n-2", list[0].ID)
	assert.Equal(t, older, list[1])

	older.Priority = core.PriorityLow
	require.NoError(t, s.UpdateNotice(ctx, older))
	got, err := s.GetNotice(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, core.PriorityLow, got.Priority)

	require.NoError(t, s.DeleteNotice(ctx, "n-1"))
	require.ErrorIs(t, s.DeleteNotice(ctx, "n-1"), core.ErrNotFound)
	_, err = s.GetNotice(ctx, "n-1")
	require.ErrorIs(t, err, core.ErrNotFound)
	require.ErrorIs(t, s.UpdateNotice(ctx, older), core.ErrNotFound)
}

func testProjects(t *testing.T, s ports.Store) {
	ctx := context.Background()
	p := core.ProjectUpdate{ID: "b-1", Title: "Fish farm", Description: "Pond lease", InvestmentAmount: core.NewMoney(500000), Status: core.StatusProfitable, ImageURL: "https://picsum.photos/seed/b-1/800/600"}
	require.NoError(t, s.CreateProject(ctx, p))
	require.NoError(t, s.CreateProject(ctx, core.ProjectUpdate{ID: "b-0", Title: "Shop", InvestmentAmount: core.NewMoney(1), Status: core.StatusRunning}))
	require.ErrorIs(t, s.CreateProject(ctx, p), core.ErrConflict)

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b-0", list[0].ID)
	assert.Equal(t, p, list[1])

	p.Status = core.StatusExpanding
	require.NoError(t, s.UpdateProject(ctx, p))
	got, err := s.GetProject(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusExpanding, got.Status)

	require.NoError(t, s.DeleteProject(ctx, "b-1"))
	_, err = s.GetProject(ctx, "b-1")
	require.ErrorIs(t, err, core.ErrNotFound)
	require.ErrorIs(t, s.UpdateProject(ctx, p), core.ErrNotFound)
}

func ids(txs []core.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}
