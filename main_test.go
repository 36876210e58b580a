package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliStudents = `Name,Nationality,Background,Pref1,Pref2,Pref3,Pref4,Pref5,CompanyPreference,TimeSlots
s01,FR,cs,A,B,C,D,E,startup,Mon;Tue
s02,FR,biz,A,C,B,D,E,startup,Mon;Wed
s03,DE,cs,A,B,C,D,E,ngo,Tue
s04,DE,design,B,A,C,D,E,corporate,Mon;Tue
s05,IT,cs,B,C,A,D,E,corporate,Wed
s06,IT,biz,C,A,B,D,E,ngo,Mon
s07,ES,cs,C,B,A,D,E,ngo,Tue;Wed
s08,ES,design,D,A,B,C,E,startup,Mon
s09,CN,cs,E,A,B,C,D,startup,Tue
s10,IN,biz,A,B,C,D,E,startup,Mon;Tue;Wed
`

const cliProjects = `Project,Type,Capacity
A,startup,4
B,corporate,3
C,ngo,3
D,startup,2
E,ngo,4
`

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestCLI_AssignValidateShow(t *testing.T) {
	for _, key := range []string{"TEAMS_SEED", "TEAMS_DATABASE_DRIVER", "TEAMS_DATABASE_URL", "GOOGLE_APPLICATION_CREDENTIALS"} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	students := filepath.Join(dir, "students.csv")
	projects := filepath.Join(dir, "projects.csv")
	require.NoError(t, os.WriteFile(students, []byte(cliStudents), 0o644))
	require.NoError(t, os.WriteFile(projects, []byte(cliProjects), 0o644))
	cfgPath := filepath.Join(dir, "teams.yaml")
	db := filepath.Join(dir, "ledger.db")

	out := execute(t, "init", cfgPath)
	assert.Contains(t, out, "wrote")

	out = execute(t, "validate", "-c", cfgPath, "--students", students, "--projects", projects)
	assert.Contains(t, out, "ok: 10 students, 5 projects, 16 seats")

	first := filepath.Join(dir, "first")
	out = execute(t, "assign", "-c", cfgPath, "--seed", "7", "-q",
		"--students", students, "--projects", projects, "--out", first,
		"--metrics", "teams.prom", "--db-driver", "sqlite", "--db-url", db)
	assert.Contains(t, out, "fingerprint")
	assert.FileExists(t, filepath.Join(first, "assigned_teams.csv"))
	assert.FileExists(t, filepath.Join(first, "assignment_summary.csv"))
	assert.FileExists(t, filepath.Join(first, "teams.prom"))

	var runID string
	for _, line := range strings.Split(out, "\n") {
		if id, ok := strings.CutPrefix(line, "run "); ok {
			runID = id
		}
	}
	require.NotEmpty(t, runID)

	second := filepath.Join(dir, "second")
	execute(t, "assign", "-c", cfgPath, "--seed", "7", "-q",
		"--students", students, "--projects", projects, "--out", second,
		"--metrics", "teams.prom", "--db-driver", "sqlite", "--db-url", db)

	a, err := os.ReadFile(filepath.Join(first, "assigned_teams.csv"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(second, "assigned_teams.csv"))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	out = execute(t, "show", "-c", cfgPath, "--db-driver", "sqlite", "--db-url", db)
	assert.Equal(t, 2, strings.Count(out, "seed=7"))

	export := filepath.Join(dir, "export")
	out = execute(t, "show", runID, "-c", cfgPath, "--db-driver", "sqlite", "--db-url", db, "--export", export)
	assert.Contains(t, out, "run "+runID)
	exported, err := os.ReadFile(filepath.Join(export, "assigned_teams.csv"))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(exported))
}
