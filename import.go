package vbzogd

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"
)

var ErrMissingColumn = errors.New("missing column")

// LoadPassengers loads the passenger count dataset (REISENDE and its
// dimension tables) from Config.Passengers.
func (s *Store) LoadPassengers() error {
	c := s.cfg.Passengers
	return s.load(passengerDataset, c.Dir, c.Separator, "")
}

// LoadTravelTimes loads the stop point and stop tables and every weekly
// travel time file matching Config.TravelTimes.FactPattern into one table.
func (s *Store) LoadTravelTimes() error {
	c := s.cfg.TravelTimes
	return s.load(travelTimeDataset, c.Dir, c.Separator, c.FactPattern)
}

func (s *Store) load(ds dataset, dir, separator, factPattern string) (err error) {
	if dir == "" {
		return fmt.Errorf("no data directory configured for %s", ds.Name)
	}
	comma, _ := utf8.DecodeRuneInString(separator)

	slog.Info(fmt.Sprintf("Loading %s from %s", ds.Name, dir))
	defer sqlitex.Save(s.db)(&err)

	for _, table := range ds.Tables {
		files, err := tableFiles(dir, table, factPattern)
		if err != nil {
			return err
		}
		if err := dropTable(s.db, table); err != nil {
			return err
		}
		for _, file := range files {
			if err := importFile(s.db, table, file, comma); err != nil {
				return fmt.Errorf("load %s: %w", file, err)
			}
		}
	}
	return nil
}

func tableFiles(dir, table, factPattern string) ([]string, error) {
	schema := tableSchemas[table]
	if schema.File != "" {
		return []string{filepath.Join(dir, schema.File)}, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, factPattern))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no file in %s matches %s: %w", dir, factPattern, fs.ErrNotExist)
	}
	slices.Sort(files)
	return files, nil
}

func importFile(db *sqlite.Conn, table, path string, comma rune) error {
	inputF, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = inputF.Close() }()

	inputCSV := csv.NewReader(inputF)
	inputCSV.Comma = comma

	// Header

	header, err := inputCSV.Read()
	if err != nil {
		return err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	slog.Info(fmt.Sprintf("Importing %s: %s", filepath.Base(path), strings.Join(header, ",")))

	seen := make(map[string]bool)
	for _, column := range header {
		if seen[column] {
			return fmt.Errorf("duplicate column %s", column)
		}
		seen[column] = true
	}
	for _, column := range tableSchemas[table].Required {
		if !seen[column] {
			return fmt.Errorf("%w %s", ErrMissingColumn, column)
		}
	}

	existing, err := tableColumns(db, table)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		var columnFragments []string
		for _, column := range header {
			columnFragments = append(columnFragments, quoteIdent(column)+" TEXT")
		}
		query := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(columnFragments, ", "))
		if err := sqlitex.ExecTransient(db, query, sqlitexNoop); err != nil {
			return err
		}
	} else {
		// Later files of a fact table may carry columns the first one lacked.
		for _, column := range header {
			if slices.Contains(existing, column) {
				continue
			}
			query := fmt.Sprintf("ALTER TABLE %s ADD %s TEXT", quoteIdent(table), quoteIdent(column))
			if err := sqlitex.ExecTransient(db, query, sqlitexNoop); err != nil {
				return err
			}
		}
	}

	var argFragments []string
	for i := range header {
		argFragments = append(argFragments, fmt.Sprintf("?%d", i+1))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoteIdents(header), ", "), strings.Join(argFragments, ", "))
	insertStmt, err := db.Prepare(query)
	if err != nil {
		return err
	}

	// Rows

	rowCount := 0
	for {
		row, err := inputCSV.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return err
		}

		if err := insertStmt.Reset(); err != nil {
			return err
		}
		if err := insertStmt.ClearBindings(); err != nil {
			return err
		}

		for i, v := range row {
			param := i + 1
			if v == "" {
				insertStmt.BindNull(param)
			} else {
				insertStmt.BindText(param, v)
			}
		}

		if _, err := insertStmt.Step(); err != nil {
			return err
		}
		rowCount++
	}
	slog.Info(fmt.Sprintf("Wrote %d rows to %s", rowCount, table))

	return nil
}
