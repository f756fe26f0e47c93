// Package memory is an in-process spreadsheet used by tests and local runs
// without Google credentials.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"forum/internal/core"
	"forum/internal/sheets"
)

type Sheet struct {
	mu     sync.Mutex
	ranges map[string][][]string
	reads  int
}

var _ sheets.RowReader = (*Sheet)(nil)

func New() *Sheet {
	return &Sheet{ranges: make(map[string][][]string)}
}

func key(spreadsheetID, rng string) string {
	return spreadsheetID + "|" + rng
}

// Put replaces the rows served for (spreadsheetID, rng).
func (s *Sheet) Put(spreadsheetID, rng string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranges[key(spreadsheetID, rng)] = cloneRows(rows)
}

// ReadRows returns a copy of the stored rows with cells trimmed and blank rows dropped.
func (s *Sheet) ReadRows(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++

	rows, ok := s.ranges[key(spreadsheetID, rng)]
	if !ok {
		return nil, fmt.Errorf("%w: range %s in %s", core.ErrNotFound, rng, spreadsheetID)
	}
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		trimmed := make([]string, len(row))
		blank := true
		for i, c := range row {
			trimmed[i] = strings.TrimSpace(c)
			if trimmed[i] != "" {
				blank = false
			}
		}
		if !blank {
			out = append(out, trimmed)
		}
	}
	return out, nil
}

// Reads reports how many ReadRows calls were served.
func (s *Sheet) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func cloneRows(in [][]string) [][]string {
	out := make([][]string, len(in))
	for i, r := range in {
		out[i] = append([]string(nil), r...)
	}
	return out
}
