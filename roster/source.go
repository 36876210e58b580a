// Package roster loads the student and project tables from CSV files or a
// Google Sheets spreadsheet and turns them into a solver.Roster.
package roster

import (
	"context"
	"fmt"

	"google.golang.org/api/option"

	"teams/config"
	"teams/solver"
)

// Source yields the raw students and projects tables.
type Source interface {
	Tables(ctx context.Context) (students, projects Table, err error)
}

// FromConfig picks the spreadsheet when one is configured, the CSV files
// otherwise.
func FromConfig(c *config.Config) Source {
	if c.UsesSheets() {
		var opts []option.ClientOption
		if c.Input.Sheets.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(c.Input.Sheets.CredentialsFile))
		}
		return SheetsSource{
			SpreadsheetID: c.Input.Sheets.SpreadsheetID,
			StudentsRange: c.Input.Sheets.StudentsRange,
			ProjectsRange: c.Input.Sheets.ProjectsRange,
			Options:       opts,
		}
	}
	return CSVSource{StudentsPath: c.Input.Students, ProjectsPath: c.Input.Projects}
}

// Load reads both tables from src, validates them and builds the roster.
// Every validation failure is a *ValidationError.
func Load(ctx context.Context, src Source) (*solver.Roster, error) {
	st, pt, err := src.Tables(ctx)
	if err != nil {
		return nil, err
	}
	return Build(st, pt)
}

// Build parses and cross-checks already-read tables.
func Build(studentsTable, projectsTable Table) (*solver.Roster, error) {
	students, err := ParseStudents(studentsTable)
	if err != nil {
		return nil, err
	}
	projects, err := ParseProjects(projectsTable)
	if err != nil {
		return nil, err
	}

	seats := 0
	for _, p := range projects {
		seats += p.Capacity
	}
	if seats < len(students) {
		return nil, invalid("", 0, "", ErrInsufficientSeats, "%d seats for %d students", seats, len(students))
	}

	r, err := solver.NewRoster(students, projects)
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	return r, nil
}

// UnknownPreferences lists, per student, ranked project ids that are not in
// the catalog. The matcher skips them; callers usually warn.
func UnknownPreferences(r *solver.Roster) map[string][]string {
	out := map[string][]string{}
	for _, s := range r.Students() {
		for _, p := range s.Preferences {
			if _, ok := r.Project(p); !ok {
				out[s.ID] = append(out[s.ID], p)
			}
		}
	}
	return out
}
