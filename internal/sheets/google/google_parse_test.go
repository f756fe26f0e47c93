package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToRows(t *testing.T) {
	values := [][]interface{}{
		{"M-001", " সদস্য ১ ", 40000.0, "2000", 1500.5},
		{},
		{"", nil, ""},
		{"M-002", "Karim", 1e6, "abc"},
	}

	rows := toRows(values)

	assert.Equal(t, [][]string{
		{"M-001", "সদস্য ১", "40000", "2000", "1500.5"},
		{"M-002", "Karim", "1000000", "abc"},
	}, rows)
}
