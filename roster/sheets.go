package roster

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsSource reads the two tables from A1 ranges of one spreadsheet,
// for example "Students!A:J" and "Projects!A:C".
type SheetsSource struct {
	SpreadsheetID string
	StudentsRange string
	ProjectsRange string
	Options       []option.ClientOption
}

func (s SheetsSource) Tables(ctx context.Context) (Table, Table, error) {
	srv, err := sheets.NewService(ctx, s.Options...)
	if err != nil {
		return Table{}, Table{}, fmt.Errorf("sheets client: %w", err)
	}

	resp, err := srv.Spreadsheets.Values.BatchGet(s.SpreadsheetID).
		Ranges(s.StudentsRange, s.ProjectsRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return Table{}, Table{}, fmt.Errorf("read spreadsheet %s: %w", s.SpreadsheetID, err)
	}
	if len(resp.ValueRanges) != 2 {
		return Table{}, Table{}, fmt.Errorf("read spreadsheet %s: got %d ranges, want 2", s.SpreadsheetID, len(resp.ValueRanges))
	}

	students, err := valuesTable(resp.ValueRanges[0].Values)
	if err != nil {
		return Table{}, Table{}, fmt.Errorf("range %s: %w", s.StudentsRange, err)
	}
	projects, err := valuesTable(resp.ValueRanges[1].Values)
	if err != nil {
		return Table{}, Table{}, fmt.Errorf("range %s: %w", s.ProjectsRange, err)
	}
	return students, projects, nil
}

// valuesTable converts a Sheets value grid. The API drops trailing empty
// cells, so rows can be shorter than the header.
func valuesTable(values [][]interface{}) (Table, error) {
	if len(values) == 0 {
		return Table{}, fmt.Errorf("range is empty")
	}
	t := Table{Header: stringRow(values[0])}
	for _, row := range values[1:] {
		t.Rows = append(t.Rows, stringRow(row))
	}
	return t, nil
}

func stringRow(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		if v == nil {
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}
