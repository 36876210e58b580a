package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"teams/solver"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle      = lipgloss.NewStyle().Padding(0, 1)
	nonViableStyle = cellStyle.Foreground(lipgloss.Color("241"))
)

// Table renders one line per project plus a totals line underneath.
func Table(l *solver.Ledger) string {
	rows := make([][]string, 0, len(l.Projects))
	viable := make([]bool, 0, len(l.Projects))
	for _, p := range l.Projects {
		status := "ok"
		if !p.Viable {
			status = "closed"
		}
		rows = append(rows, []string{
			p.Project.ID,
			p.Project.Type,
			fmt.Sprintf("%d/%d", len(p.Members), p.Project.Capacity),
			status,
			strings.Join(p.Members, ", "),
		})
		viable = append(viable, p.Viable)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PROJECT", "TYPE", "FILLED", "STATUS", "MEMBERS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(viable) && !viable[row]:
				return nonViableStyle
			}
			return cellStyle
		})

	stats := Summarize(l)
	var ranks []string
	for _, k := range rankKeys(stats.ByRank) {
		ranks = append(ranks, k+":"+strconv.Itoa(stats.ByRank[k]))
	}
	footer := fmt.Sprintf("%d students, %d assigned, %d unassigned, %d closed projects; ranks %s",
		stats.Students, stats.Assigned, stats.Unassigned, stats.NonViable, strings.Join(ranks, " "))
	return t.String() + "\n" + footer + "\n"
}
