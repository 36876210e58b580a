package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// CSVSource reads the two tables from local CSV files with a header row.
type CSVSource struct {
	StudentsPath string
	ProjectsPath string
}

func (s CSVSource) Tables(ctx context.Context) (Table, Table, error) {
	students, err := readCSVFile(s.StudentsPath)
	if err != nil {
		return Table{}, Table{}, err
	}
	if err := ctx.Err(); err != nil {
		return Table{}, Table{}, err
	}
	projects, err := readCSVFile(s.ProjectsPath)
	if err != nil {
		return Table{}, Table{}, err
	}
	return students, projects, nil
}

func readCSVFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// ReadCSV reads a header row followed by data rows. Rows may be ragged.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, errors.New("empty file")
	}
	if err != nil {
		return Table{}, err
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return Table{}, err
	}
	return Table{Header: header, Rows: rows}, nil
}
