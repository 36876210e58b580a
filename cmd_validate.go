package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"teams/roster"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config and input tables without assigning",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyAssignFlags()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		ctx, cancel := withTimeout(cmd)
		defer cancel()
		r, err := roster.Load(ctx, roster.FromConfig(cfg))
		if err != nil {
			return err
		}
		warnUnknownPreferences(r)

		withBackground, withSlots := 0, 0
		for _, s := range r.Students() {
			if s.Background != "" {
				withBackground++
			}
			if len(s.Slots) > 0 {
				withSlots++
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(),
			"ok: %d students, %d projects, %d seats; %d with background, %d with time slots\n",
			len(r.Students()), len(r.Projects()), r.TotalCapacity(), withBackground, withSlots)
		return nil
	},
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&assignFlags.students, "students", "", "Students CSV (overrides config)")
	f.StringVar(&assignFlags.projects, "projects", "", "Projects CSV (overrides config)")
	f.StringVar(&assignFlags.sheetID, "sheet", "", "Spreadsheet id to read instead of CSV files")
}
