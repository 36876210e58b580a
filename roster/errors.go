package roster

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("invalid input tables")

// Validation kinds.
var (
	ErrMissingColumn       = errors.New("missing column")
	ErrBadValue            = errors.New("bad value")
	ErrDuplicateID         = errors.New("duplicate id")
	ErrDuplicatePreference = errors.New("duplicate preference")
	ErrInsufficientSeats   = errors.New("total capacity below student count")
)

// ValidationError describes one problem with the input tables. Row is the
// 1-based data row (the header is row 0) and is 0 when the problem is not
// tied to a row.
type ValidationError struct {
	Table   string
	Row     int
	Column  string
	Kind    error
	Message string
}

func (e *ValidationError) Error() string {
	var where []string
	if e.Table != "" {
		where = append(where, e.Table)
	}
	if e.Row > 0 {
		where = append(where, fmt.Sprintf("row %d", e.Row))
	}
	if e.Column != "" {
		where = append(where, fmt.Sprintf("column %s", e.Column))
	}
	prefix := "roster"
	if len(where) > 0 {
		prefix += " " + strings.Join(where, ", ")
	}
	if e.Message == "" {
		return fmt.Sprintf("%s: %v", prefix, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", prefix, e.Kind, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Kind }

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(table string, row int, column string, kind error, format string, args ...any) *ValidationError {
	return &ValidationError{
		Table:   table,
		Row:     row,
		Column:  column,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}
