// Package report exports push operations as Excel workbooks.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jordanlanch/funnelsync/pkg/ledger"
)

// ContentType is the MIME type of the generated workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	SheetSummary = "Summary"
	SheetCreated = "Created"
	SheetUpdated = "Updated"
	SheetFailed  = "Failed"
	SheetSkipped = "Skipped"
)

// Filename is the download name for an operation's workbook
func Filename(op *ledger.Operation) string {
	return fmt.Sprintf("push-%s-%s.xlsx", op.FunnelID, op.StartedAt.UTC().Format("20060102-150405"))
}

// Write renders the operation workbook to w
func Write(w io.Writer, op *ledger.Operation) error {
	f, err := Build(op)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Build creates the workbook: a summary sheet plus one sheet per outcome list
func Build(op *ledger.Operation) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	sheets := []struct {
		name    string
		headers []string
		rows    [][]any
	}{
		{SheetSummary, []string{"Field", "Value"}, summaryRows(op)},
		{SheetCreated, []string{"Key", "Value"}, changeRows(op.Pushed.Created, false)},
		{SheetUpdated, []string{"Key", "Before", "After"}, changeRows(op.Pushed.Updated, true)},
		{SheetFailed, []string{"Key", "Value", "Error"}, failureRows(op.Pushed.Failed)},
		{SheetSkipped, []string{"Key"}, skippedRows(op.Pushed.Skipped)},
	}

	for i, sh := range sheets {
		if i > 0 {
			if _, err := f.NewSheet(sh.name); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to create sheet %s: %w", sh.name, err)
			}
		}
		if err := writeTable(f, sh.name, sh.headers, sh.rows, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeTable(f *excelize.File, sheet string, headers []string, rows [][]any, headerStyle int) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to write %s header: %w", sheet, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to style %s header: %w", sheet, err)
		}
	}

	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, r+2, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 40)
}

func summaryRows(op *ledger.Operation) [][]any {
	s := op.Summary()
	finished := ""
	if op.FinishedAt != nil {
		finished = op.FinishedAt.UTC().Format(time.RFC3339)
	}
	return [][]any{
		{"Operation", op.ID},
		{"Funnel", op.FunnelID},
		{"Status", string(op.Status)},
		{"Cached", op.Cached},
		{"Total", s.Total},
		{"Created", s.Created},
		{"Updated", s.Updated},
		{"Skipped", s.Skipped},
		{"Failed", s.Failed},
		{"Success rate", s.SuccessRate},
		{"Content hash", op.ContentHash},
		{"Started", op.StartedAt.UTC().Format(time.RFC3339)},
		{"Finished", finished},
		{"Duration (ms)", op.DurationMS},
		{"Error", op.Error},
	}
}

func changeRows(changes []ledger.KeyChange, withBefore bool) [][]any {
	rows := make([][]any, 0, len(changes))
	for _, c := range changes {
		if withBefore {
			rows = append(rows, []any{c.Key, c.Before, c.After})
			continue
		}
		rows = append(rows, []any{c.Key, c.After})
	}
	return rows
}

func failureRows(failures []ledger.KeyFailure) [][]any {
	rows := make([][]any, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []any{f.Key, f.Value, f.Error})
	}
	return rows
}

func skippedRows(keys []string) [][]any {
	rows := make([][]any, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []any{k})
	}
	return rows
}
