package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"teams/config"
	"teams/report"
	"teams/roster"
	"teams/solver"
)

type runResult struct {
	unassigned  int
	nonViable   int
	ranks       map[string]int
	fingerprint string
	elapsed     time.Duration
}

func printStats(w io.Writer, label string, results []runResult, runs int) {
	unassigned := map[int]int{}
	ledgers := map[string]int{}
	ranks := map[string]int{}
	var totalTime time.Duration
	var totalNonViable, totalAssigned int

	for _, r := range results {
		totalTime += r.elapsed
		unassigned[r.unassigned]++
		ledgers[r.fingerprint]++
		totalNonViable += r.nonViable
		for k, n := range r.ranks {
			ranks[k] += n
			totalAssigned += n
		}
	}

	fmt.Fprintf(w, "--- %s ---\n", label)
	if runs == 0 {
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, "  avg time: %v\n", totalTime/time.Duration(runs))
	fmt.Fprintf(w, "  avg closed projects: %.1f\n", float64(totalNonViable)/float64(runs))

	var unassignedList []struct {
		n     int
		count int
	}
	for n, c := range unassigned {
		unassignedList = append(unassignedList, struct {
			n     int
			count int
		}{n, c})
	}
	sort.Slice(unassignedList, func(i, j int) bool { return unassignedList[i].n < unassignedList[j].n })

	fmt.Fprintf(w, "  unassigned distribution:\n")
	for _, u := range unassignedList {
		fmt.Fprintf(w, "    %d unassigned: %d/%d runs (%.0f%%)\n", u.n, u.count, runs, float64(u.count)/float64(runs)*100)
	}

	fmt.Fprintf(w, "  rank share:")
	for r := 1; r <= solver.NumPreferences; r++ {
		k := strconv.Itoa(r)
		fmt.Fprintf(w, " %s=%.1f%%", k, share(ranks[k], totalAssigned))
	}
	fmt.Fprintf(w, " fallback=%.1f%%\n", share(ranks[solver.Fallback.String()], totalAssigned))

	counts := make([]int, 0, len(ledgers))
	for _, c := range ledgers {
		counts = append(counts, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))
	fmt.Fprintf(w, "  distinct ledgers: %d\n", len(ledgers))
	if len(counts) > 0 {
		topN := min(5, len(counts))
		fmt.Fprintf(w, "  top %d ledger frequencies: ", topN)
		for i := range topN {
			if i > 0 {
				fmt.Fprint(w, ", ")
			}
			fmt.Fprintf(w, "%d/%d", counts[i], runs)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

var flags struct {
	configPath string
	students   string
	projects   string
	runs       int
	natCaps    string
	viability  string
	relaxation string
	verbose    bool
}

var rootCmd = &cobra.Command{
	Use:   "assign-tune",
	Short: "Sweep seeds and policy settings and report outcome statistics",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flags.configPath, "config", "c", "teams.yaml", "Config file with the base policy")
	f.StringVar(&flags.students, "students", "", "Students CSV (overrides config)")
	f.StringVar(&flags.projects, "projects", "", "Projects CSV (overrides config)")
	f.IntVar(&flags.runs, "runs", 20, "Number of seeds per setting")
	f.StringVar(&flags.natCaps, "nat-caps", "2", "Comma-separated nationality caps; a bounded config keeps its mode, any other runs as fixed")
	f.StringVar(&flags.viability, "viability", "half", "Comma-separated viability policies")
	f.StringVar(&flags.relaxation, "relax", "", "Comma-separated relaxation tiers, applied to every setting")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "Log each run")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.students != "" {
		cfg.Input.Students = flags.students
	}
	if flags.projects != "" {
		cfg.Input.Projects = flags.projects
	}
	if flags.relaxation != "" {
		cfg.Policy.Relaxation = parseList(flags.relaxation)
	}

	logger := zap.NewNop()
	if flags.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer logger.Sync()
	}

	r, err := roster.Load(context.Background(), roster.FromConfig(cfg))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Students: %d, Projects: %d, Seats: %d\n", len(r.Students()), len(r.Projects()), r.TotalCapacity())
	fmt.Fprintf(w, "Runs per setting: %d\n\n", flags.runs)

	for _, natCap := range parseIntList(flags.natCaps) {
		for _, policy := range parseList(flags.viability) {
			cfg.Policy.Nationality = nationalityCap(cfg.Policy.Nationality, natCap)
			cfg.Policy.Viability.Policy = policy
			params, err := cfg.Params()
			if err != nil {
				return err
			}
			if err := params.Validate(); err != nil {
				return fmt.Errorf("nat-cap=%d viability=%s: %w", natCap, policy, err)
			}

			var results []runResult
			for i := range flags.runs {
				seed := int64(i * 31337)
				start := time.Now()
				ledger, err := solver.Solve(r, params, rand.New(rand.NewSource(seed)))
				elapsed := time.Since(start)
				if err != nil {
					return fmt.Errorf("seed %d: %w", seed, err)
				}
				fp, err := report.Fingerprint(ledger)
				if err != nil {
					return err
				}
				stats := report.Summarize(ledger)
				logger.Debug("run", zap.Int64("seed", seed), zap.Int("unassigned", stats.Unassigned), zap.String("fingerprint", fp))
				results = append(results, runResult{
					unassigned:  stats.Unassigned,
					nonViable:   stats.NonViable,
					ranks:       stats.ByRank,
					fingerprint: fp,
					elapsed:     elapsed,
				})
			}
			printStats(w, fmt.Sprintf("nat-cap=%d viability=%s", natCap, policy), results, flags.runs)
		}
	}
	return nil
}

// nationalityCap swaps the sweep value into the configured rule. Only
// bounded and fixed take a number, so other modes become fixed.
func nationalityCap(base config.CapConfig, limit int) config.CapConfig {
	if base.Mode != string(solver.CapBounded) {
		base.Mode = string(solver.CapFixed)
	}
	base.Max = limit
	return base
}

func parseIntList(s string) []int {
	parts := strings.Split(s, ",")
	var result []int
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err == nil {
			result = append(result, v)
		}
	}
	return result
}

func parseList(s string) []string {
	var result []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
