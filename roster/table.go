package roster

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"teams/solver"
)

// Table is a header row plus data rows, as read from any source.
type Table struct {
	Header []string
	Rows   [][]string
}

const (
	tableStudents = "students"
	tableProjects = "projects"
)

var (
	studentColumns = []string{"Name", "Nationality", "Pref1", "Pref2", "Pref3", "Pref4", "Pref5", "CompanyPreference"}
	projectColumns = []string{"Project", "Type", "Capacity"}
)

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "_", "").Replace(h)
}

// columnIndex maps the wanted column names onto header positions. Missing
// required columns are reported together; optional ones map to -1.
func columnIndex(table string, header []string, required, optional []string) (map[string]int, error) {
	seen := map[string]int{}
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := seen[key]; !dup {
			seen[key] = i
		}
	}

	ix := map[string]int{}
	var missing []string
	for _, name := range required {
		i, ok := seen[normalizeHeader(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		ix[name] = i
	}
	if len(missing) > 0 {
		return nil, invalid(table, 0, strings.Join(missing, ", "), ErrMissingColumn, "header is %v", header)
	}
	for _, name := range optional {
		if i, ok := seen[normalizeHeader(name)]; ok {
			ix[name] = i
		} else {
			ix[name] = -1
		}
	}
	return ix, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ParseStudents converts a students table. Blank rows are skipped.
func ParseStudents(t Table) ([]solver.Student, error) {
	ix, err := columnIndex(tableStudents, t.Header, studentColumns, []string{"Background", "TimeSlots"})
	if err != nil {
		return nil, err
	}

	var students []solver.Student
	firstRow := map[string]int{}
	for n, row := range t.Rows {
		rowNum := n + 1
		if blank(row) {
			continue
		}
		s := solver.Student{
			ID:                cell(row, ix["Name"]),
			Nationality:       cell(row, ix["Nationality"]),
			Background:        cell(row, ix["Background"]),
			CompanyPreference: cell(row, ix["CompanyPreference"]),
			Slots:             ParseSlots(cell(row, ix["TimeSlots"])),
		}
		if s.ID == "" {
			return nil, invalid(tableStudents, rowNum, "Name", ErrBadValue, "empty name")
		}
		if prev, dup := firstRow[s.ID]; dup {
			return nil, invalid(tableStudents, rowNum, "Name", ErrDuplicateID, "%q already on row %d", s.ID, prev)
		}
		firstRow[s.ID] = rowNum
		if s.Nationality == "" {
			return nil, invalid(tableStudents, rowNum, "Nationality", ErrBadValue, "student %q has no nationality", s.ID)
		}
		if s.CompanyPreference == "" {
			return nil, invalid(tableStudents, rowNum, "CompanyPreference", ErrBadValue, "student %q has no company preference", s.ID)
		}

		for k := range solver.NumPreferences {
			col := fmt.Sprintf("Pref%d", k+1)
			p := cell(row, ix[col])
			if p == "" {
				return nil, invalid(tableStudents, rowNum, col, ErrBadValue, "student %q has no choice %d", s.ID, k+1)
			}
			for j := range k {
				if s.Preferences[j] == p {
					return nil, invalid(tableStudents, rowNum, col, ErrDuplicatePreference, "student %q lists %q twice", s.ID, p)
				}
			}
			s.Preferences[k] = p
		}
		students = append(students, s)
	}
	return students, nil
}

// ParseProjects converts a projects table. Blank rows are skipped.
func ParseProjects(t Table) ([]solver.Project, error) {
	ix, err := columnIndex(tableProjects, t.Header, projectColumns, nil)
	if err != nil {
		return nil, err
	}

	var projects []solver.Project
	firstRow := map[string]int{}
	for n, row := range t.Rows {
		rowNum := n + 1
		if blank(row) {
			continue
		}
		p := solver.Project{
			ID:   cell(row, ix["Project"]),
			Type: cell(row, ix["Type"]),
		}
		if p.ID == "" {
			return nil, invalid(tableProjects, rowNum, "Project", ErrBadValue, "empty project id")
		}
		if prev, dup := firstRow[p.ID]; dup {
			return nil, invalid(tableProjects, rowNum, "Project", ErrDuplicateID, "%q already on row %d", p.ID, prev)
		}
		firstRow[p.ID] = rowNum

		capacity, err := parseCapacity(cell(row, ix["Capacity"]))
		if err != nil {
			return nil, invalid(tableProjects, rowNum, "Capacity", ErrBadValue, "project %q: %v", p.ID, err)
		}
		p.Capacity = capacity
		projects = append(projects, p)
	}
	return projects, nil
}

// parseCapacity accepts integers and integral floats ("4.0"), which
// spreadsheet exports produce.
func parseCapacity(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 {
			return 0, fmt.Errorf("capacity %d must be positive", n)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("capacity %q is not an integer", s)
	}
	if f < 1 {
		return 0, fmt.Errorf("capacity %q must be positive", s)
	}
	return int(f), nil
}
