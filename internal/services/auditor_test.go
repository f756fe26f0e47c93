package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forum/internal/core"
)

func TestAuditMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addMember(t, "M-200", 0)
	_, err := f.ledger.RecordTransaction(ctx, TransactionRequest{MemberID: "M-200", Amount: money(2000), Kind: core.KindDeposit, Description: "x"})
	require.NoError(t, err)

	auditor := NewAuditor(f.deps, 2)
	report, err := auditor.AuditMember(ctx, "M-200")
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.Equal(t, core.NewMoney(2000), report.DepositSum)

	saved := core.NewMoney(2500)
	_, err = f.directory.UpdateMember(ctx, "M-200", core.MemberPatch{TotalSaved: &saved})
	require.NoError(t, err)

	report, err = auditor.AuditMember(ctx, "M-200")
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	assert.Equal(t, core.NewMoney(500), report.Drift)

	_, err = auditor.AuditMember(ctx, "M-404")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAuditAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"M-203", "M-201", "M-202"} {
		f.addMember(t, id, 0)
	}
	f.addMember(t, "M-204", 100)

	reports, err := NewAuditor(f.deps, 0).AuditAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 4)
	ids := []string{reports[0].MemberID, reports[1].MemberID, reports[2].MemberID, reports[3].MemberID}
	assert.Equal(t, []string{"M-201", "M-202", "M-203", "M-204"}, ids)
	assert.False(t, reports[3].Consistent())

	members, err := f.store.ListMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 4)
}

func TestAuditSchedulerLifecycle(t *testing.T) {
	f := newFixture(t)
	s := NewAuditScheduler(NewAuditor(f.deps, 1), time.Hour, nil)
	assert.False(t, s.IsRunning())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Stop(stopCtx))
}
