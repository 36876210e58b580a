package report

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"teams/solver"
)

// Metrics holds the gauges describing one finished run. Each run gets its
// own registry so nothing leaks between runs in one process.
type Metrics struct {
	reg *prometheus.Registry

	students   prometheus.Gauge
	assigned   prometheus.Gauge
	unassigned prometheus.Gauge
	nonViable  prometheus.Gauge
	seed       prometheus.Gauge
	byRank     *prometheus.GaugeVec
	byStage    *prometheus.GaugeVec
	fill       *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		students: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "teams_students",
			Help: "Students in the roster",
		}),
		assigned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "teams_assigned_students",
			Help: "Students placed in a project",
		}),
		unassigned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "teams_unassigned_students",
			Help: "Students no tier could place",
		}),
		nonViable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "teams_nonviable_projects",
			Help: "Projects closed by the viability prune",
		}),
		seed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "teams_run_seed",
			Help: "Seed the run used",
		}),
		byRank: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "teams_assignments_by_rank",
			Help: "Assigned students per preference rank",
		}, []string{"rank"}),
		byStage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "teams_assignments_by_stage",
			Help: "Assigned students per placement stage",
		}, []string{"stage"}),
		fill: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "teams_project_fill_ratio",
			Help: "Members over capacity per project",
		}, []string{"project"}),
	}
	m.reg.MustRegister(m.students, m.assigned, m.unassigned, m.nonViable, m.seed, m.byRank, m.byStage, m.fill)
	return m
}

func (m *Metrics) Observe(l *solver.Ledger, seed int64) {
	stats := Summarize(l)
	m.students.Set(float64(stats.Students))
	m.assigned.Set(float64(stats.Assigned))
	m.unassigned.Set(float64(stats.Unassigned))
	m.nonViable.Set(float64(stats.NonViable))
	m.seed.Set(float64(seed))

	for r := 1; r <= solver.NumPreferences; r++ {
		k := strconv.Itoa(r)
		m.byRank.WithLabelValues(k).Set(float64(stats.ByRank[k]))
	}
	m.byRank.WithLabelValues(solver.Fallback.String()).Set(float64(stats.ByRank[solver.Fallback.String()]))
	for st, n := range stats.ByStage {
		m.byStage.WithLabelValues(string(st)).Set(float64(n))
	}
	for _, p := range l.Projects {
		m.fill.WithLabelValues(p.Project.ID).Set(float64(len(p.Members)) / float64(p.Project.Capacity))
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// WriteTextfile writes the gauges in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
