// Package config holds the teams.yaml file: input locations, assignment
// policy, outputs and the optional ledger database.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"teams/solver"
)

type Config struct {
	Seed     int64          `yaml:"seed"`
	Input    InputConfig    `yaml:"input"`
	Policy   PolicyConfig   `yaml:"policy"`
	Output   OutputConfig   `yaml:"output"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InputConfig names CSV files, or a spreadsheet when Sheets.SpreadsheetID
// is set.
type InputConfig struct {
	Students string       `yaml:"students"`
	Projects string       `yaml:"projects"`
	Sheets   SheetsConfig `yaml:"sheets"`
}

type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	StudentsRange   string `yaml:"students_range"`
	ProjectsRange   string `yaml:"projects_range"`
	CredentialsFile string `yaml:"credentials_file"`
}

type PolicyConfig struct {
	Nationality              CapConfig       `yaml:"nationality"`
	Background               CapConfig       `yaml:"background"`
	Overlap                  OverlapConfig   `yaml:"overlap"`
	EnforceTypeInPreferences bool            `yaml:"enforce_type_in_preferences"`
	Viability                ViabilityConfig `yaml:"viability"`
	Relaxation               []string        `yaml:"relaxation"`
	FailOnExhaustion         bool            `yaml:"fail_on_exhaustion"`
}

// CapConfig modes: off, fixed, bounded, half.
type CapConfig struct {
	Mode string `yaml:"mode"`
	Max  int    `yaml:"max"`
}

// OverlapConfig modes: off, joint, pairwise.
type OverlapConfig struct {
	Mode      string `yaml:"mode"`
	MinShared int    `yaml:"min_shared"`
}

// ViabilityConfig policies: half, fixed, none.
type ViabilityConfig struct {
	Policy      string `yaml:"policy"`
	Min         int    `yaml:"min"`
	ExemptEmpty bool   `yaml:"exempt_empty"`
}

type OutputConfig struct {
	Dir        string `yaml:"dir"`
	Ledger     string `yaml:"ledger"`
	Summary    string `yaml:"summary"`
	Unassigned string `yaml:"unassigned"`
	// Metrics is a Prometheus textfile path; empty disables it.
	Metrics string `yaml:"metrics"`
}

// DatabaseConfig drivers: "" (no persistence), sqlite, postgres.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func DefaultConfig() *Config {
	return &Config{
		Seed: 42,
		Input: InputConfig{
			Students: "student_preferences.csv",
			Projects: "projects.csv",
			Sheets: SheetsConfig{
				StudentsRange: "Students!A:Z",
				ProjectsRange: "Projects!A:C",
			},
		},
		Policy: PolicyConfig{
			Nationality: CapConfig{Mode: "fixed", Max: 2},
			Background:  CapConfig{Mode: "off", Max: 2},
			Overlap:     OverlapConfig{Mode: "off", MinShared: 2},
			Viability:   ViabilityConfig{Policy: "half"},
		},
		Output: OutputConfig{
			Dir:        ".",
			Ledger:     "assigned_teams.csv",
			Summary:    "assignment_summary.csv",
			Unassigned: "unassigned_students.csv",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML config on top of the defaults. A missing file yields
// the defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("TEAMS_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TEAMS_SEED: %w", err)
		}
		c.Seed = seed
	}
	if v := os.Getenv("TEAMS_DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("TEAMS_DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && c.Input.Sheets.CredentialsFile == "" {
		c.Input.Sheets.CredentialsFile = v
	}
	return nil
}

// UsesSheets reports whether input comes from a spreadsheet instead of CSV.
func (c *Config) UsesSheets() bool {
	return c.Input.Sheets.SpreadsheetID != ""
}

// OutputPath joins name onto the output directory.
func (c *Config) OutputPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Output.Dir, name)
}

func (c *Config) Validate() error {
	var errs []error
	if c.UsesSheets() {
		if c.Input.Sheets.StudentsRange == "" || c.Input.Sheets.ProjectsRange == "" {
			errs = append(errs, errors.New("input.sheets: both ranges are required"))
		}
	} else if c.Input.Students == "" || c.Input.Projects == "" {
		errs = append(errs, errors.New("input: students and projects paths are required"))
	}
	if c.Output.Ledger == "" || c.Output.Summary == "" {
		errs = append(errs, errors.New("output: ledger and summary names are required"))
	}
	switch c.Database.Driver {
	case "":
	case "sqlite", "postgres":
		if c.Database.URL == "" {
			errs = append(errs, fmt.Errorf("database: url is required for driver %s", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("database: unknown driver %q (valid: sqlite, postgres)", c.Database.Driver))
	}
	if _, err := zap.ParseAtomicLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	params, err := c.Params()
	if err != nil {
		errs = append(errs, err)
	} else if err := params.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("policy: %w", err))
	}
	return errors.Join(errs...)
}

// Params maps the policy section onto solver parameters. Logger and hooks
// are left for the caller.
func (c *Config) Params() (solver.Params, error) {
	pc := c.Policy
	nat, err := capRule(pc.Nationality)
	if err != nil {
		return solver.Params{}, fmt.Errorf("policy.nationality: %w", err)
	}
	bg, err := capRule(pc.Background)
	if err != nil {
		return solver.Params{}, fmt.Errorf("policy.background: %w", err)
	}
	overlap := solver.OverlapRule{Mode: solver.OverlapMode(pc.Overlap.Mode), MinShared: pc.Overlap.MinShared}
	if pc.Overlap.Mode == "off" {
		overlap.Mode = solver.OverlapOff
	}

	p := solver.Params{
		Nationality:              nat,
		Background:               bg,
		Overlap:                  overlap,
		EnforceTypeInPreferences: pc.EnforceTypeInPreferences,
		Viability: solver.ViabilityRule{
			Policy:      solver.ViabilityPolicy(pc.Viability.Policy),
			Min:         pc.Viability.Min,
			ExemptEmpty: pc.Viability.ExemptEmpty,
		},
		FailOnExhaustion: pc.FailOnExhaustion,
	}
	for _, t := range pc.Relaxation {
		p.Relaxation = append(p.Relaxation, solver.TierName(t))
	}
	return p, nil
}

func capRule(cc CapConfig) (solver.CapRule, error) {
	switch cc.Mode {
	case "", "off":
		return solver.CapRule{}, nil
	case "fixed", "bounded":
		if cc.Max < 1 {
			return solver.CapRule{}, fmt.Errorf("mode %s needs max >= 1, got %d", cc.Mode, cc.Max)
		}
		return solver.CapRule{Mode: solver.CapMode(cc.Mode), Fixed: cc.Max}, nil
	case "half":
		return solver.CapRule{Mode: solver.CapHalf}, nil
	}
	return solver.CapRule{}, fmt.Errorf("unknown cap mode %q", cc.Mode)
}
