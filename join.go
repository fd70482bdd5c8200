package vbzogd

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

var ErrColumnCollision = errors.New("column collision")

// KeyPair matches a column of the left table with a column of the right table.
type KeyPair struct {
	Left  string
	Right string
}

// JoinSpec describes a left outer join of a fact table (Left) with a
// dimension table (Right), materialized as the table Into.
type JoinSpec struct {
	Left  string
	Right string
	Into  string
	On    []KeyPair

	// DropLeft lists columns of Left that are not carried into Into.
	DropLeft []string
	// Rename maps columns appended from Right to their name in Into.
	// Columns not in Rename get Suffix appended.
	Rename map[string]string
	Suffix string
}

// LeftJoin keeps every row of spec.Left exactly once, in order, and appends
// the non-key columns of spec.Right. Rows without a match get NULL in the
// appended columns. Right key columns are not appended since they equal the
// left keys wherever a match exists.
//
// Right is expected to have unique keys. If it doesn't, fact rows are
// duplicated; this is logged but not prevented.
func LeftJoin(db *sqlite.Conn, spec JoinSpec) (int64, error) {
	if spec.Left == "" || spec.Right == "" || spec.Into == "" {
		panic("Missing table in JoinSpec")
	}
	if len(spec.On) == 0 {
		panic("Missing keys in JoinSpec")
	}

	leftCols, err := tableColumns(db, spec.Left)
	if err != nil {
		return 0, err
	}
	rightCols, err := tableColumns(db, spec.Right)
	if err != nil {
		return 0, err
	}
	if len(leftCols) == 0 {
		return 0, fmt.Errorf("join: no such table %s", spec.Left)
	}
	if len(rightCols) == 0 {
		return 0, fmt.Errorf("join: no such table %s", spec.Right)
	}

	for _, col := range spec.DropLeft {
		if !slices.Contains(leftCols, col) {
			return 0, fmt.Errorf("join: cannot drop %s: %w %s", spec.Left, ErrMissingColumn, col)
		}
	}

	var rightKeys []string
	var onFragments []string
	for _, key := range spec.On {
		if !slices.Contains(leftCols, key.Left) {
			return 0, fmt.Errorf("join: %s: %w %s", spec.Left, ErrMissingColumn, key.Left)
		}
		if !slices.Contains(rightCols, key.Right) {
			return 0, fmt.Errorf("join: %s: %w %s", spec.Right, ErrMissingColumn, key.Right)
		}
		rightKeys = append(rightKeys, key.Right)
		onFragments = append(onFragments, fmt.Sprintf("l.%s = r.%s", quoteIdent(key.Left), quoteIdent(key.Right)))
	}

	var outCols []string
	var selectFragments []string
	for _, col := range leftCols {
		if slices.Contains(spec.DropLeft, col) {
			continue
		}
		outCols = append(outCols, col)
		selectFragments = append(selectFragments, "l."+quoteIdent(col))
	}
	for _, col := range rightCols {
		if slices.Contains(rightKeys, col) {
			continue
		}
		name, ok := spec.Rename[col]
		if !ok {
			name = col + spec.Suffix
		}
		if slices.Contains(outCols, name) {
			return 0, fmt.Errorf("join %s with %s: %w on %s", spec.Left, spec.Right, ErrColumnCollision, name)
		}
		outCols = append(outCols, name)
		selectFragments = append(selectFragments, fmt.Sprintf("r.%s AS %s", quoteIdent(col), quoteIdent(name)))
	}

	if err := dropTable(db, spec.Into); err != nil {
		return 0, err
	}
	query := fmt.Sprintf("CREATE TABLE %s AS SELECT %s FROM %s AS l LEFT JOIN %s AS r ON %s ORDER BY l.rowid",
		quoteIdent(spec.Into),
		strings.Join(selectFragments, ", "),
		quoteIdent(spec.Left),
		quoteIdent(spec.Right),
		strings.Join(onFragments, " AND "))
	if err := sqlitex.ExecTransient(db, query, sqlitexNoop); err != nil {
		return 0, fmt.Errorf("join %s with %s: %w", spec.Left, spec.Right, err)
	}

	leftCount, err := countRows(db, spec.Left)
	if err != nil {
		return 0, err
	}
	outCount, err := countRows(db, spec.Into)
	if err != nil {
		return 0, err
	}
	if outCount != leftCount {
		slog.Warn(fmt.Sprintf("Joining %s with %s turned %d rows into %d; %s has duplicate keys",
			spec.Left, spec.Right, leftCount, outCount, spec.Right))
	}
	slog.Debug(fmt.Sprintf("Joined %s with %s into %s (%d rows)", spec.Left, spec.Right, spec.Into, outCount))

	return outCount, nil
}

// joinChain runs joins in order, each reading the previous one's output. The
// intermediate tables are dropped once consumed.
func (s *Store) joinChain(fact string, into string, steps []JoinSpec) (err error) {
	defer sqlitex.Save(s.db)(&err)

	var issues []string
	left := fact
	for i, step := range steps {
		step.Left = left
		step.Into = fmt.Sprintf("__%s_join_%d", into, i)
		if i == len(steps)-1 {
			step.Into = into
		}

		found, err := checkJoin(s.db, step, s.issueLevel())
		if err != nil {
			return err
		}
		issues = append(issues, found...)

		if _, err := LeftJoin(s.db, step); err != nil {
			return err
		}
		if left != fact {
			if err := dropTable(s.db, left); err != nil {
				return err
			}
		}
		left = step.Into
	}

	s.issues = append(s.issues, issues...)
	if len(issues) > 0 && s.cfg.Strict {
		return fmt.Errorf("%d issue(s) joining %s: %w", len(issues), fact, ErrInvalidInput)
	}
	return nil
}

// on pairs the given fact columns with the primary key of a dimension table.
func on(table string, left ...string) []KeyPair {
	pk := tableSchemas[table].PrimaryKey
	if len(pk) != len(left) {
		panic(fmt.Sprintf("%s has %d key columns, got %d", table, len(pk), len(left)))
	}
	out := make([]KeyPair, len(left))
	for i := range left {
		out[i] = KeyPair{Left: left[i], Right: pk[i]}
	}
	return out
}
