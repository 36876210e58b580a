package report

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"teams/solver"
)

// Stats aggregates a ledger for the summary file, the terminal table and
// the metrics exporter.
type Stats struct {
	Students   int
	Assigned   int
	Unassigned int
	NonViable  int
	// ByRank is keyed by Rank.String(), so "fallback" sits next to "1".."5".
	ByRank  map[string]int
	ByStage map[solver.Stage]int
	// TypeMatchRate is per project; projects without members are absent.
	TypeMatchRate map[string]float64
	// Nationalities counts members per project, then per nationality.
	Nationalities map[string]map[string]int
}

func Summarize(l *solver.Ledger) Stats {
	s := Stats{
		Students:      l.Total(),
		Assigned:      len(l.Rows),
		Unassigned:    len(l.Unassigned),
		NonViable:     len(l.NonViable()),
		ByRank:        map[string]int{},
		ByStage:       map[solver.Stage]int{},
		TypeMatchRate: map[string]float64{},
		Nationalities: map[string]map[string]int{},
	}
	matched := map[string]int{}
	size := map[string]int{}
	for _, r := range l.Rows {
		s.ByRank[r.Rank.String()]++
		s.ByStage[r.Stage]++
		size[r.ProjectID]++
		if r.TypeMatched {
			matched[r.ProjectID]++
		}
		if s.Nationalities[r.ProjectID] == nil {
			s.Nationalities[r.ProjectID] = map[string]int{}
		}
		s.Nationalities[r.ProjectID][r.Nationality]++
	}
	for p, n := range size {
		s.TypeMatchRate[p] = float64(matched[p]) / float64(n)
	}
	return s
}

// rankKeys orders rank labels numerically with the fallback last.
func rankKeys(m map[string]int) []string {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, func(a, b string) int {
		ai, aerr := strconv.Atoi(a)
		bi, berr := strconv.Atoi(b)
		switch {
		case aerr != nil && berr != nil:
			return strings.Compare(a, b)
		case aerr != nil:
			return 1
		case berr != nil:
			return -1
		}
		return cmp.Compare(ai, bi)
	})
	return keys
}

func formatRate(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

// WriteSummary writes the per-project team section followed by the type
// match, nationality, preference satisfaction and stage sections. Each
// section starts with a "# title" line and has its own header row.
func WriteSummary(w io.Writer, l *solver.Ledger) error {
	stats := Summarize(l)
	members := map[string][]solver.Row{}
	for _, r := range l.Rows {
		members[r.ProjectID] = append(members[r.ProjectID], r)
	}

	sections := []struct {
		title string
		write func(*csv.Writer) error
	}{
		{"Teams by project", func(cw *csv.Writer) error {
			h := []string{"Project", "Type", "Capacity", "TeamSize", "Remaining", "Viable", "Nationalities"}
			if l.HasBackground {
				h = append(h, "Backgrounds")
			}
			if l.HasSlots {
				h = append(h, "SharedSlots")
			}
			if err := cw.Write(h); err != nil {
				return err
			}
			for _, p := range l.Projects {
				rows := members[p.Project.ID]
				rec := []string{
					p.Project.ID,
					p.Project.Type,
					strconv.Itoa(p.Project.Capacity),
					strconv.Itoa(len(p.Members)),
					strconv.Itoa(p.Remaining()),
					strconv.FormatBool(p.Viable),
					joinField(rows, func(r solver.Row) string { return r.Nationality }),
				}
				if l.HasBackground {
					rec = append(rec, joinField(rows, func(r solver.Row) string { return r.Background }))
				}
				if l.HasSlots {
					rec = append(rec, strings.Join(sharedSlots(rows), SlotSeparator))
				}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
			return nil
		}},
		{"Type match rate by project", func(cw *csv.Writer) error {
			if err := cw.Write([]string{"Project", "TypeMatchRate"}); err != nil {
				return err
			}
			for _, p := range slices.Sorted(maps.Keys(stats.TypeMatchRate)) {
				if err := cw.Write([]string{p, formatRate(stats.TypeMatchRate[p])}); err != nil {
					return err
				}
			}
			return nil
		}},
		{"Nationality distribution by project", func(cw *csv.Writer) error {
			if err := cw.Write([]string{"Project", "Nationality", "Count"}); err != nil {
				return err
			}
			for _, p := range slices.Sorted(maps.Keys(stats.Nationalities)) {
				counts := stats.Nationalities[p]
				for _, nat := range slices.Sorted(maps.Keys(counts)) {
					if err := cw.Write([]string{p, nat, strconv.Itoa(counts[nat])}); err != nil {
						return err
					}
				}
			}
			return nil
		}},
		{"Preference satisfaction distribution", func(cw *csv.Writer) error {
			if err := cw.Write([]string{"PreferenceRank", "NumStudents"}); err != nil {
				return err
			}
			for _, k := range rankKeys(stats.ByRank) {
				if err := cw.Write([]string{k, strconv.Itoa(stats.ByRank[k])}); err != nil {
					return err
				}
			}
			return nil
		}},
		{"Placement stage distribution", func(cw *csv.Writer) error {
			if err := cw.Write([]string{"Stage", "NumStudents"}); err != nil {
				return err
			}
			for _, st := range slices.Sorted(maps.Keys(stats.ByStage)) {
				if err := cw.Write([]string{string(st), strconv.Itoa(stats.ByStage[st])}); err != nil {
					return err
				}
			}
			return cw.Write([]string{"unassigned", strconv.Itoa(stats.Unassigned)})
		}},
	}

	for i, sec := range sections {
		prefix := "\n"
		if i == 0 {
			prefix = ""
		}
		if _, err := fmt.Fprintf(w, "%s# %s\n", prefix, sec.title); err != nil {
			return err
		}
		cw := csv.NewWriter(w)
		if err := sec.write(cw); err != nil {
			return err
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
	}
	return nil
}

func joinField(rows []solver.Row, field func(solver.Row) string) string {
	vals := make([]string, 0, len(rows))
	for _, r := range rows {
		if v := field(r); v != "" {
			vals = append(vals, v)
		}
	}
	return strings.Join(vals, SlotSeparator)
}

// sharedSlots is the intersection of every member's slots, sorted.
func sharedSlots(rows []solver.Row) []string {
	if len(rows) == 0 {
		return nil
	}
	shared := slices.Clone(rows[0].Slots)
	for _, r := range rows[1:] {
		shared = slices.DeleteFunc(shared, func(s string) bool {
			return !slices.Contains(r.Slots, s)
		})
	}
	slices.Sort(shared)
	return shared
}
