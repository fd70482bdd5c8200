package vbzogd

import (
	"archive/zip"
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
)

// Export writes the given tables as <table>.csv entries of a zip archive.
func (s *Store) Export(outputPath string, tables ...string) (err error) {
	if outputPath == "" {
		panic("Missing outputPath")
	}

	slog.Info(fmt.Sprintf("Exporting %d table(s) to %s", len(tables), outputPath))

	outputF, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	outputZip := zip.NewWriter(outputF)
	defer func() {
		if zipErr := outputZip.Close(); err == nil {
			err = zipErr
		}
		if closeErr := outputF.Close(); err == nil {
			err = closeErr
		}
	}()

	for _, table := range tables {
		outputName := table + ".csv"
		entry, err := outputZip.Create(outputName)
		if err != nil {
			return err
		}
		rowCount, err := s.WriteTable(entry, table)
		if err != nil {
			return err
		}
		slog.Info(fmt.Sprintf("Wrote %d rows to %s", rowCount, outputName))
	}
	return nil
}

// WriteTable writes a table as CSV with a header line. NULL cells are written
// empty and floats in their shortest exact form, so output is stable across
// runs.
func (s *Store) WriteTable(w io.Writer, table string) (int, error) {
	cols, err := tableColumns(s.db, table)
	if err != nil {
		return 0, err
	}
	if len(cols) == 0 {
		return 0, fmt.Errorf("no such table %s", table)
	}

	outputCSV := csv.NewWriter(w)
	if err := outputCSV.Write(cols); err != nil {
		return 0, err
	}

	rowCount := 0
	err = sqlitex.Exec(s.db, "SELECT * FROM "+quoteIdent(table)+" ORDER BY rowid", func(stmt *sqlite.Stmt) error {
		row := make([]string, stmt.ColumnCount())
		for i := range row {
			switch stmt.ColumnType(i) {
			case sqlite.SQLITE_NULL:
			case sqlite.SQLITE_FLOAT:
				row[i] = strconv.FormatFloat(stmt.ColumnFloat(i), 'f', -1, 64)
			default:
				row[i] = stmt.ColumnText(i)
			}
		}
		if err := outputCSV.Write(row); err != nil {
			return err
		}
		rowCount++
		return nil
	})
	if err != nil {
		return rowCount, err
	}

	outputCSV.Flush()
	return rowCount, outputCSV.Error()
}
