package vbzogd

import (
	"context"
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"fmt"
	"log/slog"
	"strings"
)

func (s *Store) issueLevel() slog.Level {
	if s.cfg.Strict {
		return slog.LevelError
	}
	return slog.LevelWarn
}

// checkJoin reports dimension keys that would duplicate fact rows and fact
// keys that find no dimension row. Neither stops the join.
func checkJoin(db *sqlite.Conn, spec JoinSpec, level slog.Level) ([]string, error) {
	v := &joinValidator{db: db, level: level}
	if err := v.checkUniqueKeys(spec); err != nil {
		return nil, err
	}
	if err := v.checkUnmatched(spec); err != nil {
		return nil, err
	}
	return v.issues, nil
}

type joinValidator struct {
	db     *sqlite.Conn
	level  slog.Level
	issues []string
}

func (v *joinValidator) append(msg string, args ...any) {
	issue := fmt.Sprintf(msg, args...)
	slog.Log(context.Background(), v.level, issue)
	v.issues = append(v.issues, issue)
}

func (v *joinValidator) checkUniqueKeys(spec JoinSpec) error {
	var keys []string
	for _, key := range spec.On {
		keys = append(keys, quoteIdent(key.Right))
	}
	keyList := strings.Join(keys, ", ")

	query := fmt.Sprintf(
		"SELECT count(*) AS count FROM (SELECT %s FROM %s GROUP BY %s HAVING count(*) > 1)",
		keyList, quoteIdent(spec.Right), keyList)

	return sqlitex.Exec(v.db, query, func(stmt *sqlite.Stmt) error {
		if count := stmt.GetInt64("count"); count > 0 {
			v.append("%d key(s) of %s occur more than once on (%s)", count, spec.Right, onRight(spec))
		}
		return nil
	})
}

func (v *joinValidator) checkUnmatched(spec JoinSpec) error {
	var notNull []string
	var match []string
	for _, key := range spec.On {
		notNull = append(notNull, fmt.Sprintf("l.%s IS NOT NULL", quoteIdent(key.Left)))
		match = append(match, fmt.Sprintf("r.%s = l.%s", quoteIdent(key.Right), quoteIdent(key.Left)))
	}

	query := fmt.Sprintf(
		"SELECT count(*) AS count FROM %s AS l WHERE %s AND NOT EXISTS (SELECT 1 FROM %s AS r WHERE %s)",
		quoteIdent(spec.Left), strings.Join(notNull, " AND "), quoteIdent(spec.Right), strings.Join(match, " AND "))

	return sqlitex.Exec(v.db, query, func(stmt *sqlite.Stmt) error {
		if count := stmt.GetInt64("count"); count > 0 {
			v.append("%d row(s) have no match in %s on (%s)", count, spec.Right, onLeft(spec))
		}
		return nil
	})
}

func onLeft(spec JoinSpec) string {
	var out []string
	for _, key := range spec.On {
		out = append(out, key.Left)
	}
	return strings.Join(out, ", ")
}

func onRight(spec JoinSpec) string {
	var out []string
	for _, key := range spec.On {
		out = append(out, key.Right)
	}
	return strings.Join(out, ", ")
}
