package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"2000", 200000, false},
		{"12.34", 1234, false},
		{"12,34", 1234, false},
		{"12.345", 1235, false},
		{"12.344", 1234, false},
		{"-150", -15000, false},
		{"0", 0, false},
		{"", 0, true},
		{"abc", 0, true},
		{"NaN", 0, true},
		{"1e400", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMoney(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidAmount))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Cents)
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Money `json:"a"`
	}{Money{Cents: 200050}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2000.5}`, string(b))

	var v struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":150.25,"b":"-20"}`), &v))
	assert.Equal(t, int64(15025), v.A.Cents)
	assert.Equal(t, int64(-2000), v.B.Cents)

	err = json.Unmarshal([]byte(`{"a":"ten"}`), &v)
	assert.Error(t, err)
}

func TestMoneyJSONRejectsSubCent(t *testing.T) {
	for _, in := range []string{`12.345`, `"12.345"`, `0.001`, `1e-3`} {
		t.Run(in, func(t *testing.T) {
			var m Money
			err := m.UnmarshalJSON([]byte(in))
			assert.ErrorIs(t, err, ErrInvalidAmount)
			assert.Zero(t, m.Cents)
		})
	}

	for in, want := range map[string]int64{`12.340`: 1234, `"12.3400"`: 1234, `1.2e1`: 1200, `-0.05`: -5} {
		t.Run(in, func(t *testing.T) {
			var m Money
			require.NoError(t, m.UnmarshalJSON([]byte(in)))
			assert.Equal(t, want, m.Cents)
		})
	}
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "2000.00", NewMoney(2000).String())
	assert.Equal(t, "-1.05", Money{Cents: -105}.String())
}

func TestCheckedAdd(t *testing.T) {
	got, err := Money{Cents: 100}.CheckedAdd(Money{Cents: -250})
	require.NoError(t, err)
	assert.Equal(t, int64(-150), got.Cents)

	got, err = Money{Cents: math.MaxInt64 - 1}.CheckedAdd(Money{Cents: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), got.Cents)

	_, err = Money{Cents: math.MaxInt64 - 10}.CheckedAdd(Money{Cents: 100})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrAmountOverflow)

	_, err = Money{Cents: math.MinInt64}.CheckedAdd(Money{Cents: -1})
	assert.ErrorIs(t, err, ErrAmountOverflow)
}
