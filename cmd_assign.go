package main

import (
	"fmt"
	"math/rand"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"teams/report"
	"teams/roster"
	"teams/solver"
	"teams/store"
)

var assignFlags struct {
	students string
	projects string
	sheetID  string
	outDir   string
	metrics  string
	dbDriver string
	dbURL    string
	quiet    bool
}

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Run the assignment and write the ledger and summary files",
	Long: `Load the students and projects tables, run the preference pass, the viability
prune and reassignment, then write the ledger, summary and (when needed)
unassigned CSV files. Optionally export Prometheus textfile metrics and save
the ledger to a database.`,
	Args: cobra.NoArgs,
	RunE: runAssign,
}

func init() {
	f := assignCmd.Flags()
	f.StringVar(&assignFlags.students, "students", "", "Students CSV (overrides config)")
	f.StringVar(&assignFlags.projects, "projects", "", "Projects CSV (overrides config)")
	f.StringVar(&assignFlags.sheetID, "sheet", "", "Spreadsheet id to read instead of CSV files")
	f.StringVarP(&assignFlags.outDir, "out", "o", "", "Output directory (overrides config)")
	f.StringVar(&assignFlags.metrics, "metrics", "", "Prometheus textfile to write")
	f.StringVar(&assignFlags.dbDriver, "db-driver", "", "Ledger database driver: sqlite or postgres")
	f.StringVar(&assignFlags.dbURL, "db-url", "", "Ledger database URL")
	f.BoolVarP(&assignFlags.quiet, "quiet", "q", false, "Do not print the team table")
}

func applyAssignFlags() {
	if assignFlags.students != "" {
		cfg.Input.Students = assignFlags.students
	}
	if assignFlags.projects != "" {
		cfg.Input.Projects = assignFlags.projects
	}
	if assignFlags.sheetID != "" {
		cfg.Input.Sheets.SpreadsheetID = assignFlags.sheetID
	}
	if assignFlags.outDir != "" {
		cfg.Output.Dir = assignFlags.outDir
	}
	if assignFlags.metrics != "" {
		cfg.Output.Metrics = assignFlags.metrics
	}
	if assignFlags.dbDriver != "" {
		cfg.Database.Driver = assignFlags.dbDriver
	}
	if assignFlags.dbURL != "" {
		cfg.Database.URL = assignFlags.dbURL
	}
}

func runAssign(cmd *cobra.Command, args []string) error {
	applyAssignFlags()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}
	params.Logger = logger

	ctx, cancel := withTimeout(cmd)
	defer cancel()

	r, err := roster.Load(ctx, roster.FromConfig(cfg))
	if err != nil {
		return err
	}
	warnUnknownPreferences(r)
	logger.Info("roster loaded",
		zap.Int("students", len(r.Students())),
		zap.Int("projects", len(r.Projects())),
		zap.Int("seats", r.TotalCapacity()),
		zap.Int64("seed", cfg.Seed))

	start := time.Now()
	ledger, err := solver.Solve(r, params, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return err
	}
	logger.Info("assignment finished",
		zap.Int("assigned", len(ledger.Rows)),
		zap.Int("unassigned", len(ledger.Unassigned)),
		zap.Strings("non_viable", ledger.NonViable()),
		zap.Duration("elapsed", time.Since(start)))
	for _, u := range ledger.Unassigned {
		logger.Warn("student left unassigned", zap.Error(u))
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	paths := report.Paths{
		Ledger:     cfg.OutputPath(cfg.Output.Ledger),
		Summary:    cfg.OutputPath(cfg.Output.Summary),
		Unassigned: cfg.OutputPath(cfg.Output.Unassigned),
	}
	if err := report.WriteFiles(paths, ledger); err != nil {
		return err
	}
	fingerprint, err := report.Fingerprint(ledger)
	if err != nil {
		return err
	}
	logger.Info("ledger written", zap.String("path", paths.Ledger), zap.String("fingerprint", fingerprint))

	if cfg.Output.Metrics != "" {
		m := report.NewMetrics()
		m.Observe(ledger, cfg.Seed)
		path := cfg.OutputPath(cfg.Output.Metrics)
		if err := m.WriteTextfile(path); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		logger.Debug("metrics written", zap.String("path", path))
	}

	out := cmd.OutOrStdout()
	if cfg.Database.Driver != "" {
		st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer st.Close()
		id, err := st.SaveRun(ctx, store.Run{Seed: cfg.Seed, Fingerprint: fingerprint, Ledger: ledger})
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		logger.Info("run saved", zap.String("run_id", id.String()), zap.String("driver", cfg.Database.Driver))
		fmt.Fprintf(out, "run %s\n", id)
	}

	if !assignFlags.quiet {
		fmt.Fprint(out, report.Table(ledger))
	}
	fmt.Fprintf(out, "ledger %s (fingerprint %s)\n", paths.Ledger, fingerprint)
	return nil
}

func warnUnknownPreferences(r *solver.Roster) {
	unknown := roster.UnknownPreferences(r)
	ids := make([]string, 0, len(unknown))
	for id := range unknown {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		logger.Warn("preference names an unknown project", zap.String("student", id), zap.Strings("projects", unknown[id]))
	}
}
