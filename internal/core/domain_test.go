package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMember() Member {
	return Member{
		ID:             "M-001",
		Name:           "Karim",
		Email:          "m-001@al-ittehad.com",
		JoiningDate:    NewDate(2023, 1, 1),
		MonthlySavings: NewMoney(2000),
		Role:           RoleMember,
	}
}

func TestMemberValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Member)
		ok     bool
	}{
		{"valid", func(*Member) {}, true},
		{"empty id", func(m *Member) { m.ID = " " }, false},
		{"empty name", func(m *Member) { m.Name = "" }, false},
		{"bengali name at limit", func(m *Member) { m.Name = strings.Repeat("ক", MaxNameLen) }, true},
		{"bengali name over limit", func(m *Member) { m.Name = strings.Repeat("ক", MaxNameLen+1) }, false},
		{"bad email", func(m *Member) { m.Email = "not-an-email" }, false},
		{"no email", func(m *Member) { m.Email = "" }, true},
		{"negative savings", func(m *Member) { m.MonthlySavings = Money{Cents: -1} }, false},
		{"bad role", func(m *Member) { m.Role = "owner" }, false},
		{"zero joining date", func(m *Member) { m.JoiningDate = Date{} }, false},
		{"negative aggregates allowed", func(m *Member) { m.TotalSaved = Money{Cents: -500} }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := validMember()
			tc.mutate(&m)
			err := m.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}

func TestTransactionValidate(t *testing.T) {
	base := Transaction{
		MemberID:    "M-001",
		Amount:      NewMoney(2000),
		Kind:        KindDeposit,
		OccurredOn:  NewDate(2024, 3, 1),
		Description: "monthly savings",
	}
	require.NoError(t, base.Validate())

	negative := base
	negative.Amount = Money{Cents: -2000}
	assert.NoError(t, negative.Validate(), "sign is not constrained")

	badKind := base
	badKind.Kind = "withdrawal"
	err := badKind.Validate()
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrInvalidKind)

	empty := base
	empty.Description = "  "
	assert.True(t, errors.Is(empty.Validate(), ErrEmptyDescription))

	long := base
	long.Description = strings.Repeat("x", MaxDescriptionLen+1)
	assert.ErrorIs(t, long.Validate(), ErrValidation)

	noDate := base
	noDate.OccurredOn = Date{}
	assert.ErrorIs(t, noDate.Validate(), ErrValidation)
}

func TestSameIntent(t *testing.T) {
	a := Transaction{MemberID: "M-001", Kind: KindDeposit, Amount: NewMoney(10)}
	b := a
	b.Description = "different text"
	assert.True(t, a.SameIntent(b))
	b.Amount = NewMoney(11)
	assert.False(t, a.SameIntent(b))
}

func TestDateJSON(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-05"`), &d))
	assert.Equal(t, NewDate(2024, 3, 5), d)

	require.NoError(t, json.Unmarshal([]byte(`"2024-03-05T22:10:00Z"`), &d))
	assert.Equal(t, NewDate(2024, 3, 5), d)

	assert.ErrorIs(t, json.Unmarshal([]byte(`"05/03/2024"`), &d), ErrValidation)

	b, err := json.Marshal(NewDate(2024, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, `"2024-12-31"`, string(b))
}

func TestSummarize(t *testing.T) {
	members := []Member{
		{ID: "M-001", Role: RoleMember, TotalSaved: NewMoney(100), TotalDue: NewMoney(5), ProfitShare: NewMoney(1)},
		{ID: "M-002", Role: RoleMember, TotalSaved: NewMoney(50)},
		{ID: "A-1", Role: RoleAdmin, TotalSaved: NewMoney(9999)},
	}
	projects := []ProjectUpdate{{InvestmentAmount: NewMoney(500000)}, {InvestmentAmount: NewMoney(200000)}}
	s := Summarize(members, projects)
	assert.Equal(t, 2, s.Members)
	assert.Equal(t, NewMoney(150), s.TotalSaved)
	assert.Equal(t, NewMoney(5), s.TotalDue)
	assert.Equal(t, NewMoney(1), s.TotalProfit)
	assert.Equal(t, NewMoney(700000), s.TotalInvestment)
	assert.Equal(t, 2, s.Projects)
}

func TestDriftReport(t *testing.T) {
	r := NewDriftReport("M-001", NewMoney(46000), NewMoney(6000))
	assert.False(t, r.Consistent())
	assert.Equal(t, NewMoney(40000), r.Drift)
	assert.True(t, NewDriftReport("M-002", NewMoney(1), NewMoney(1)).Consistent())
}

func TestMemberPatchNameLength(t *testing.T) {
	name := strings.Repeat("ক", MaxNameLen)
	assert.NoError(t, MemberPatch{Name: &name}.Validate())

	long := name + "ক"
	assert.ErrorIs(t, MemberPatch{Name: &long}.Validate(), ErrValidation)
}
