// Package store persists finished runs: the final ledger only, keyed by a
// run UUID, in Postgres or SQLite.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"teams/solver"
)

var (
	//go:embed schema/postgres.sql
	postgresSchema string
	//go:embed schema/sqlite.sql
	sqliteSchema string
)

var (
	ErrUnknownDriver = errors.New("unknown database driver")
	ErrRunNotFound   = errors.New("run not found")
)

// dialect covers the differences between the two backends: placeholder
// syntax and how a slot list is stored.
type dialect struct {
	name       string
	sqlDriver  string
	schema     string
	dollarArgs bool
	slotsArg   func([]string) any
	slotsDest  func(*[]string) any
}

var dialects = map[string]dialect{
	"postgres": {
		name:       "postgres",
		sqlDriver:  "postgres",
		schema:     postgresSchema,
		dollarArgs: true,
		slotsArg: func(s []string) any {
			if s == nil {
				s = []string{}
			}
			return pq.Array(s)
		},
		slotsDest: func(p *[]string) any { return pq.Array(p) },
	},
	"sqlite": {
		name:      "sqlite",
		sqlDriver: "sqlite",
		schema:    sqliteSchema,
		slotsArg:  func(s []string) any { return joinedSlots(s) },
		slotsDest: func(p *[]string) any { return (*joinedSlots)(p) },
	},
}

// rebind rewrites ? placeholders to $1, $2, ... where the backend needs it.
func (d dialect) rebind(q string) string {
	if !d.dollarArgs {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const slotSep = "\x1f"

// joinedSlots stores a slot list in one TEXT column.
type joinedSlots []string

func (j joinedSlots) Value() (driver.Value, error) {
	return strings.Join(j, slotSep), nil
}

func (j *joinedSlots) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("scan slots: unsupported type %T", src)
	}
	if s == "" {
		*j = nil
		return nil
	}
	*j = strings.Split(s, slotSep)
	return nil
}

type Store struct {
	db *sql.DB
	d  dialect
}

// Open connects, checks the connection and applies the schema.
func Open(ctx context.Context, driverName, url string) (*Store, error) {
	d, ok := dialects[driverName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driverName)
	}
	db, err := sql.Open(d.sqlDriver, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.name == "sqlite" {
		// One connection keeps :memory: databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db, d: d}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Run is one persisted result.
type Run struct {
	ID          uuid.UUID
	Seed        int64
	Fingerprint string
	CreatedAt   time.Time
	Ledger      *solver.Ledger
}

// RunInfo is the listing view of a run, without the ledger.
type RunInfo struct {
	ID          uuid.UUID
	Seed        int64
	Fingerprint string
	Students    int
	Assigned    int
	Unassigned  int
	CreatedAt   time.Time
}

func (s *Store) exec(ctx context.Context, tx *sql.Tx, q string, args ...any) error {
	_, err := tx.ExecContext(ctx, s.d.rebind(q), args...)
	return err
}

// SaveRun writes the run in one transaction. A zero ID gets a fresh UUID;
// the ID used is returned.
func (s *Store) SaveRun(ctx context.Context, run Run) (uuid.UUID, error) {
	if run.Ledger == nil {
		return uuid.Nil, errors.New("save run: nil ledger")
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	l := run.Ledger
	id := run.ID.String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	err = s.exec(ctx, tx, `
		INSERT INTO runs (id, seed, fingerprint, students, assigned, unassigned, has_background, has_slots, created_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, run.Seed, run.Fingerprint, l.Total(), len(l.Rows), len(l.Unassigned), l.HasBackground, l.HasSlots, run.CreatedAt.Unix())
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}

	seq := map[string]int{}
	for i, p := range l.Projects {
		err := s.exec(ctx, tx, `
			INSERT INTO run_projects (run_id, position, project_id, project_type, capacity, viable)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, i, p.Project.ID, p.Project.Type, p.Project.Capacity, p.Viable)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert project %s: %w", p.Project.ID, err)
		}
		for k, m := range p.Members {
			seq[m] = k
		}
	}

	for i, r := range l.Rows {
		err := s.exec(ctx, tx, `
			INSERT INTO run_assignments (run_id, position, member_seq, student_id, project_id, project_type, capacity,
				nationality, background, slots, company_preference, rank, type_matched, stage, tier)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, seq[r.StudentID], r.StudentID, r.ProjectID, r.ProjectType, r.Capacity,
			r.Nationality, r.Background, s.d.slotsArg(r.Slots), r.CompanyPreference, int(r.Rank), r.TypeMatched, string(r.Stage), string(r.Tier))
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert assignment %s: %w", r.StudentID, err)
		}
	}

	for i, u := range l.Unassigned {
		tried := make([]string, len(u.Tried))
		for k, t := range u.Tried {
			tried[k] = string(t)
		}
		err := s.exec(ctx, tx, `
			INSERT INTO run_unassigned (run_id, position, student_id, evicted, tried)
			VALUES (?, ?, ?, ?, ?)`,
			id, i, u.StudentID, u.Evicted, strings.Join(tried, ","))
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert unassigned %s: %w", u.StudentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, err
	}
	return run.ID, nil
}

// LoadRun rebuilds the ledger exactly as it was saved.
func (s *Store) LoadRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	run := &Run{ID: id, Ledger: &solver.Ledger{}}
	l := run.Ledger
	var created int64
	err := s.db.QueryRowContext(ctx, s.d.rebind(
		"SELECT seed, fingerprint, has_background, has_slots, created_unix FROM runs WHERE id = ?"), id.String()).
		Scan(&run.Seed, &run.Fingerprint, &l.HasBackground, &l.HasSlots, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	run.CreatedAt = time.Unix(created, 0)

	rows, err := s.db.QueryContext(ctx, s.d.rebind(`
		SELECT project_id, project_type, capacity, viable
		FROM run_projects WHERE run_id = ? ORDER BY position`), id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	projectIx := map[string]int{}
	for rows.Next() {
		var p solver.ProjectOutcome
		if err := rows.Scan(&p.Project.ID, &p.Project.Type, &p.Project.Capacity, &p.Viable); err != nil {
			return nil, err
		}
		projectIx[p.Project.ID] = len(l.Projects)
		l.Projects = append(l.Projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	arows, err := s.db.QueryContext(ctx, s.d.rebind(`
		SELECT member_seq, student_id, project_id, project_type, capacity, nationality, background, slots,
			company_preference, rank, type_matched, stage, tier
		FROM run_assignments WHERE run_id = ? ORDER BY position`), id.String())
	if err != nil {
		return nil, err
	}
	defer arows.Close()
	type member struct {
		seq int
		id  string
	}
	members := map[string][]member{}
	for arows.Next() {
		var (
			r           solver.Row
			seq, rank   int
			stage, tier string
		)
		err := arows.Scan(&seq, &r.StudentID, &r.ProjectID, &r.ProjectType, &r.Capacity, &r.Nationality, &r.Background,
			s.d.slotsDest(&r.Slots), &r.CompanyPreference, &rank, &r.TypeMatched, &stage, &tier)
		if err != nil {
			return nil, err
		}
		r.Rank = solver.Rank(rank)
		r.Stage = solver.Stage(stage)
		r.Tier = solver.TierName(tier)
		if len(r.Slots) == 0 {
			r.Slots = nil
		}
		l.Rows = append(l.Rows, r)
		members[r.ProjectID] = append(members[r.ProjectID], member{seq, r.StudentID})
	}
	if err := arows.Err(); err != nil {
		return nil, err
	}
	for pid, ms := range members {
		i, ok := projectIx[pid]
		if !ok {
			return nil, fmt.Errorf("run %s: assignment to unlisted project %s", id, pid)
		}
		out := make([]string, len(ms))
		for _, m := range ms {
			if m.seq < 0 || m.seq >= len(out) {
				return nil, fmt.Errorf("run %s: bad member order in project %s", id, pid)
			}
			out[m.seq] = m.id
		}
		l.Projects[i].Members = out
	}

	urows, err := s.db.QueryContext(ctx, s.d.rebind(`
		SELECT student_id, evicted, tried FROM run_unassigned WHERE run_id = ? ORDER BY position`), id.String())
	if err != nil {
		return nil, err
	}
	defer urows.Close()
	for urows.Next() {
		var (
			u     solver.ExhaustionError
			tried string
		)
		if err := urows.Scan(&u.StudentID, &u.Evicted, &tried); err != nil {
			return nil, err
		}
		if tried != "" {
			for _, t := range strings.Split(tried, ",") {
				u.Tried = append(u.Tried, solver.TierName(t))
			}
		}
		l.Unassigned = append(l.Unassigned, &u)
	}
	return run, urows.Err()
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(`
		SELECT id, seed, fingerprint, students, assigned, unassigned, created_unix
		FROM runs ORDER BY created_unix DESC, id LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			ri      RunInfo
			created int64
		)
		if err := rows.Scan(&ri.ID, &ri.Seed, &ri.Fingerprint, &ri.Students, &ri.Assigned, &ri.Unassigned, &created); err != nil {
			return nil, err
		}
		ri.CreatedAt = time.Unix(created, 0)
		out = append(out, ri)
	}
	return out, rows.Err()
}
