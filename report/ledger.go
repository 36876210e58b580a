// Package report writes a solver.Ledger out: the ledger, summary and
// unassigned CSV files, a terminal table, a fingerprint and Prometheus
// textfile metrics.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"teams/solver"
)

// SlotSeparator joins a student's slots inside one CSV cell.
const SlotSeparator = "; "

func ledgerHeader(l *solver.Ledger) []string {
	h := []string{"Project", "ProjectType", "Capacity", "Student", "Nationality"}
	if l.HasBackground {
		h = append(h, "Background")
	}
	if l.HasSlots {
		h = append(h, "TimeSlots")
	}
	return append(h, "CompanyPreference", "TypeMatched", "PreferenceRank", "Stage", "Tier")
}

func ledgerRecord(l *solver.Ledger, r solver.Row) []string {
	rec := []string{r.ProjectID, r.ProjectType, strconv.Itoa(r.Capacity), r.StudentID, r.Nationality}
	if l.HasBackground {
		rec = append(rec, r.Background)
	}
	if l.HasSlots {
		rec = append(rec, strings.Join(r.Slots, SlotSeparator))
	}
	return append(rec,
		r.CompanyPreference,
		strconv.FormatBool(r.TypeMatched),
		r.Rank.String(),
		string(r.Stage),
		string(r.Tier),
	)
}

// WriteLedger writes one row per assigned student in ledger order.
func WriteLedger(w io.Writer, l *solver.Ledger) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ledgerHeader(l)); err != nil {
		return err
	}
	for _, r := range l.Rows {
		if err := cw.Write(ledgerRecord(l, r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteUnassigned writes one row per student no tier could place.
func WriteUnassigned(w io.Writer, l *solver.Ledger) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Student", "Evicted", "TriedTiers", "Reason"}); err != nil {
		return err
	}
	for _, u := range l.Unassigned {
		tried := make([]string, len(u.Tried))
		for i, t := range u.Tried {
			tried[i] = string(t)
		}
		rec := []string{u.StudentID, strconv.FormatBool(u.Evicted), strings.Join(tried, SlotSeparator), u.Error()}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Paths names the output files. Unassigned is only written when some
// student is unassigned.
type Paths struct {
	Ledger     string
	Summary    string
	Unassigned string
}

func WriteFiles(p Paths, l *solver.Ledger) error {
	if err := writeFile(p.Ledger, l, WriteLedger); err != nil {
		return err
	}
	if err := writeFile(p.Summary, l, WriteSummary); err != nil {
		return err
	}
	if len(l.Unassigned) > 0 && p.Unassigned != "" {
		if err := writeFile(p.Unassigned, l, WriteUnassigned); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, l *solver.Ledger, write func(io.Writer, *solver.Ledger) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f, l); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
