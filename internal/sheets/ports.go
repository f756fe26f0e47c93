// Package sheets declares the spreadsheet boundary used by the member import.
package sheets

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no Google credential is available yet.
var ErrNotConfigured = errors.New("spreadsheet access not configured")

// RowReader returns the trimmed cell text of every row in a range.
// Short rows are returned as-is; callers pad as needed.
type RowReader interface {
	ReadRows(ctx context.Context, spreadsheetID, rng string) ([][]string, error)
}
