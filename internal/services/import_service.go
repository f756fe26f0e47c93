package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"forum/internal/core"
	"forum/internal/log"
	"forum/internal/sheets"
)

// Column order of the member sheet.
const (
	colID = iota
	colName
	colTotalSaved
	colTotalDue
	colProfitShare
)

// ImportRequest selects the sheet to import. Empty fields use the configured defaults.
type ImportRequest struct {
	SpreadsheetID string `json:"spreadsheetId"`
	Range         string `json:"range"`
	DryRun        bool   `json:"dryRun"`
}

type ImportReport struct {
	Imported int `json:"imported"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	DryRun   bool `json:"dryRun,omitempty"`
}

// ImportService loads member balances from a spreadsheet.
type ImportService struct {
	deps          Deps
	reader        sheets.RowReader
	directory     *DirectoryService
	spreadsheetID string
	rng           string
}

func NewImportService(deps Deps, reader sheets.RowReader, directory *DirectoryService, spreadsheetID, rng string) *ImportService {
	deps = deps.withDefaults()
	deps.Logger = deps.Logger.WithComponent(log.ComponentImport)
	return &ImportService{
		deps:          deps,
		reader:        reader,
		directory:     directory,
		spreadsheetID: spreadsheetID,
		rng:           rng,
	}
}

type importRow struct {
	id, name                          string
	totalSaved, totalDue, profitShare core.Money
}

// parseCell reads a numeric cell; anything non-numeric counts as zero.
func parseCell(row []string, i int) core.Money {
	if i >= len(row) {
		return core.Money{}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(row[i]))
	if err != nil {
		return core.Money{}
	}
	m, err := core.MoneyFromDecimal(d)
	if err != nil {
		return core.Money{}
	}
	return m
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseImportRow(row []string) (importRow, bool) {
	r := importRow{
		id:          cell(row, colID),
		name:        cell(row, colName),
		totalSaved:  parseCell(row, colTotalSaved),
		totalDue:    parseCell(row, colTotalDue),
		profitShare: parseCell(row, colProfitShare),
	}
	if r.id == "" {
		return r, false
	}
	if r.name == "" {
		r.name = r.id
	}
	return r, true
}

// ImportMembers reads the sheet and writes each row's balances. Existing
// members keep their profile and get the sheet's aggregates as an admin
// override; unknown ids are created with the usual defaults first.
// Rows without an id or with invalid data are skipped.
func (s *ImportService) ImportMembers(ctx context.Context, req ImportRequest) (ImportReport, error) {
	if s.reader == nil {
		return ImportReport{}, sheets.ErrNotConfigured
	}
	spreadsheetID := strings.TrimSpace(req.SpreadsheetID)
	if spreadsheetID == "" {
		spreadsheetID = s.spreadsheetID
	}
	if spreadsheetID == "" {
		return ImportReport{}, core.Invalid("spreadsheet id is required")
	}
	rng := strings.TrimSpace(req.Range)
	if rng == "" {
		rng = s.rng
	}

	rows, err := s.reader.ReadRows(ctx, spreadsheetID, rng)
	if err != nil {
		return ImportReport{}, fmt.Errorf("read sheet: %w", err)
	}

	report := ImportReport{DryRun: req.DryRun}
	for i, raw := range rows {
		r, ok := parseImportRow(raw)
		if !ok {
			report.Skipped++
			s.deps.Metrics.ObserveImportRow("skipped")
			continue
		}
		if req.DryRun {
			report.Imported++
			continue
		}

		created, err := s.importRow(ctx, r)
		switch {
		case errors.Is(err, core.ErrValidation):
			report.Skipped++
			s.deps.Metrics.ObserveImportRow("skipped")
			s.deps.Logger.WarnContext(ctx, "Sheet row rejected",
				"row", i+1,
				log.FieldMemberID, r.id,
				log.FieldError, err)
			continue
		case err != nil:
			s.deps.Metrics.ObserveImportRow("failed")
			return report, fmt.Errorf("import row %d (%s): %w", i+1, r.id, err)
		}

		report.Imported++
		if created {
			report.Created++
			s.deps.Metrics.ObserveImportRow("created")
		} else {
			report.Updated++
			s.deps.Metrics.ObserveImportRow("updated")
		}
	}

	s.deps.Logger.InfoContext(ctx, "Sheet import finished",
		log.FieldOperation, log.OpImport,
		log.FieldSpreadsheetID, spreadsheetID,
		log.FieldRange, rng,
		"imported", report.Imported,
		"created", report.Created,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"dry_run", req.DryRun)
	return report, nil
}

func (s *ImportService) importRow(ctx context.Context, r importRow) (created bool, err error) {
	patch := core.MemberPatch{
		TotalSaved:  &r.totalSaved,
		TotalDue:    &r.totalDue,
		ProfitShare: &r.profitShare,
	}
	_, err = s.directory.UpdateMember(ctx, r.id, patch)
	if !errors.Is(err, core.ErrNotFound) {
		return false, err
	}

	if _, err := s.directory.CreateMember(ctx, NewMember{ID: r.id, Name: r.name}); err != nil {
		return false, err
	}
	if r.totalSaved.Cents == 0 && r.totalDue.Cents == 0 && r.profitShare.Cents == 0 {
		return true, nil
	}
	_, err = s.directory.UpdateMember(ctx, r.id, patch)
	return true, err
}
