package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forum/internal/core"
)

func TestCreateMemberDefaults(t *testing.T) {
	f := newFixture(t)
	f.deps.Now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }
	dir := NewDirectoryService(f.deps, f.ledger)

	m, err := dir.CreateMember(context.Background(), NewMember{ID: "M-100", Name: "Abdul Karim"})
	require.NoError(t, err)

	assert.Equal(t, "M-100@al-ittehad.com", m.Email)
	assert.Equal(t, "https://ui-avatars.com/api/?name=Abdul+Karim&background=059669&color=fff", m.Avatar)
	assert.Equal(t, core.RoleMember, m.Role)
	assert.Equal(t, core.NewMoney(2000), m.MonthlySavings)
	assert.Equal(t, "2026-10-18", m.JoiningDate.String())
	assert.Equal(t, core.Money{}, m.TotalSaved)

	stored, err := dir.GetMember(context.Background(), "M-100")
	require.NoError(t, err)
	assert.Equal(t, m, stored)
}

func TestCreateMemberKeepsExplicitZeroSavings(t *testing.T) {
	f := newFixture(t)
	m, err := f.directory.CreateMember(context.Background(), NewMember{ID: "M-101", Name: "x", MonthlySavings: money(0)})
	require.NoError(t, err)
	assert.Equal(t, core.Money{}, m.MonthlySavings)
}

func TestCreateMemberRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.directory.CreateMember(ctx, NewMember{ID: "M-102", Name: "first"})
	require.NoError(t, err)

	_, err = f.directory.CreateMember(ctx, NewMember{ID: "M-102", Name: "again"})
	assert.ErrorIs(t, err, core.ErrConflict)

	_, err = f.directory.CreateMember(ctx, NewMember{ID: "M-103", Name: "x", Email: "not-an-email"})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.directory.CreateMember(ctx, NewMember{ID: "M-104", Name: "x", MonthlySavings: money(-1)})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.directory.CreateMember(ctx, NewMember{Name: "no id"})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestUpdateMemberProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addMember(t, "M-110", 300)

	name, phone := "Renamed", "01800-111111"
	m, err := f.directory.UpdateMember(ctx, "M-110", core.MemberPatch{Name: &name, Phone: &phone})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", m.Name)
	assert.Equal(t, "01800-111111", m.Phone)
	assert.Equal(t, core.NewMoney(300), m.TotalSaved)
	assert.Empty(t, f.publisher.Events())
}

func TestUpdateMemberAggregateOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addMember(t, "M-111", 300)

	saved, due := core.NewMoney(9999), core.NewMoney(50)
	m, err := f.directory.UpdateMember(ctx, "M-111", core.MemberPatch{TotalSaved: &saved, TotalDue: &due})
	require.NoError(t, err)
	assert.Equal(t, saved, m.TotalSaved)
	assert.Equal(t, due, m.TotalDue)

	events := f.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, core.EventMemberUpdated, events[0].Type)
	assert.Equal(t, "M-111", events[0].MemberID)
}

func TestUpdateMemberErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.directory.UpdateMember(ctx, "M-112", core.MemberPatch{})
	assert.ErrorIs(t, err, core.ErrValidation)

	name := "x"
	_, err = f.directory.UpdateMember(ctx, "M-404", core.MemberPatch{Name: &name})
	assert.ErrorIs(t, err, core.ErrNotFound)

	saved := core.NewMoney(1)
	_, err = f.directory.UpdateMember(ctx, "M-404", core.MemberPatch{TotalSaved: &saved})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSummaryExcludesAdminsAndCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addMember(t, "M-120", 1000)
	f.addMember(t, "M-121", 500)
	admin := f.addMember(t, "A-001", 0)
	role := core.RoleAdmin
	saved := core.NewMoney(77777)
	_, err := f.store.UpdateMember(ctx, admin.ID, core.MemberPatch{Role: &role, TotalSaved: &saved})
	require.NoError(t, err)

	_, err = f.board.CreateProject(ctx, core.ProjectUpdate{Title: "Shop", InvestmentAmount: core.NewMoney(500000)})
	require.NoError(t, err)

	sum, err := f.directory.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Members)
	assert.Equal(t, core.NewMoney(1500), sum.TotalSaved)
	assert.Equal(t, core.NewMoney(500000), sum.TotalInvestment)
	assert.Equal(t, 1, sum.Projects)

	// Writes that bypass the services are not seen until the entry is invalidated.
	_, err = f.store.UpdateMember(ctx, "M-120", core.MemberPatch{TotalSaved: &saved})
	require.NoError(t, err)
	cached, err := f.directory.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, sum, cached)

	f.summary.Clear()
	fresh, err := f.directory.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.NewMoney(77777+500), fresh.TotalSaved)
}
