package vbzogd

import (
	"cmp"
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

var ErrInvalidInput = errors.New("invalid input")

const memoryStore = ":memory:"

var storePragmas = map[string]string{
	"synchronous": "OFF",
}

// Store holds the loaded datasets and every table derived from them for the
// duration of one run.
type Store struct {
	db     *sqlite.Conn
	cfg    *Config
	issues []string
}

func Open(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	path := cfg.Store
	var flags sqlite.OpenFlags
	if path == "" || path == memoryStore {
		path = memoryStore
		flags = sqlite.SQLITE_OPEN_READWRITE | sqlite.SQLITE_OPEN_CREATE | sqlite.SQLITE_OPEN_NOMUTEX
	} else {
		// The file is scratch space for inspecting a run, never an input.
		err := os.Remove(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	slog.Debug(fmt.Sprintf("Opening store %s", path))
	db, err := sqlite.OpenConn(path, flags)
	if err != nil {
		return nil, err
	}

	if path != memoryStore {
		for pragma, value := range storePragmas {
			if err := sqlitex.Exec(db, "PRAGMA "+pragma+" = "+value, sqlitexNoop); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
	}

	return &Store{db: db, cfg: cfg}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Issues returns every data quality finding reported while joining.
func (s *Store) Issues() []string {
	return s.issues
}

func sqlitexNoop(*sqlite.Stmt) error { return nil }

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdents(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = quoteIdent(name)
	}
	return out
}

func tableColumns(db *sqlite.Conn, table string) ([]string, error) {
	var cols []string
	err := sqlitex.Exec(db, "SELECT name FROM pragma_table_info(?)", func(stmt *sqlite.Stmt) error {
		cols = append(cols, stmt.GetText("name"))
		return nil
	}, table)
	return cols, err
}

func countRows(db *sqlite.Conn, table string) (int64, error) {
	var count int64
	err := sqlitex.Exec(db, "SELECT count(*) AS count FROM "+quoteIdent(table), func(stmt *sqlite.Stmt) error {
		count = stmt.GetInt64("count")
		return nil
	})
	return count, err
}

func dropTable(db *sqlite.Conn, table string) error {
	return sqlitex.ExecTransient(db, "DROP TABLE IF EXISTS "+quoteIdent(table), sqlitexNoop)
}

func isNull(stmt *sqlite.Stmt, col int) bool {
	return stmt.ColumnType(col) == sqlite.SQLITE_NULL
}

// columnFloat reads a numeric cell stored as text. ok is false for NULL.
func columnFloat(stmt *sqlite.Stmt, col int) (v float64, ok bool, err error) {
	if isNull(stmt, col) {
		return 0, false, nil
	}
	text := strings.TrimSpace(stmt.ColumnText(col))
	v, err = strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s is not a number: %q", stmt.ColumnName(col), text)
	}
	return v, true, nil
}

// compareKey orders empty (NULL) values first, then identifiers that parse as
// numbers by value, then all others lexically.
func compareKey(a, b string) int {
	if a == "" || b == "" {
		return cmp.Compare(a, b)
	}
	af, aErr := strconv.ParseFloat(a, 64)
	bf, bErr := strconv.ParseFloat(b, 64)
	aNum, bNum := aErr == nil, bErr == nil
	switch {
	case aNum && !bNum:
		return -1
	case !aNum && bNum:
		return 1
	case aNum && bNum:
		if c := cmp.Compare(af, bf); c != 0 {
			return c
		}
	}
	return cmp.Compare(a, b)
}
