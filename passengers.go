package vbzogd

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
)

const tableReisendeFull = "reisende_full"

// DayType is one of the day categories passenger counts are averaged over.
type DayType int

const (
	DTV     DayType = iota // average day, Monday to Sunday
	DWV                    // average workday, Monday to Friday
	SA                     // average Saturday
	SO                     // average Sunday
	SANight                // average Saturday night
	SONight                // average Sunday night
)

const numDayTypes = 6

var DayTypes = [numDayTypes]DayType{DTV, DWV, SA, SO, SANight, SONight}

var dayTypeColumns = [numDayTypes]struct {
	name   string
	factor string
	metric string
}{
	DTV:     {"DTV", "Tage_DTV", "pax_per_DTV"},
	DWV:     {"DWV", "Tage_DWV", "pax_per_DWV"},
	SA:      {"SA", "Tage_SA", "pax_per_Sa"},
	SO:      {"SO", "Tage_SO", "pax_per_So"},
	SANight: {"SA_N", "Tage_SA_N", "pax_per_Sa_N"},
	SONight: {"SO_N", "Tage_SO_N", "pax_per_So_N"},
}

func (d DayType) String() string { return dayTypeColumns[d].name }

// FactorColumn is the REISENDE column holding how many days of this type a
// count stands for.
func (d DayType) FactorColumn() string { return dayTypeColumns[d].factor }

func (d DayType) MetricColumn() string { return dayTypeColumns[d].metric }

// Grouping is a composite key passenger volumes are summed over.
type Grouping struct {
	Table   string
	Columns [3]string
}

var (
	// ByLine groups by line. Linien_Id is only unique within one year; compare
	// years by Linienname.
	ByLine = Grouping{
		Table:   "pax_per_line",
		Columns: [3]string{"Linien_Id", "Linienname", "Linienname_Fahrgastauskunft"},
	}
	// ByStop groups by stop. Haltestellennummer is the stable key across years.
	ByStop = Grouping{
		Table:   "pax_per_stop",
		Columns: [3]string{"Haltestellen_Id", "Haltestellennummer", "Haltestellenlangname"},
	}
)

type GroupKey struct {
	ID   string
	Code string
	Name string
}

func (k GroupKey) compare(o GroupKey) int {
	if c := compareKey(k.ID, o.ID); c != 0 {
		return c
	}
	if c := compareKey(k.Code, o.Code); c != 0 {
		return c
	}
	return compareKey(k.Name, o.Name)
}

// PassengerVolume is one row of the wide passenger table. A metric is NULL
// when no row of the group has both a boarding count and the day factor.
type PassengerVolume struct {
	Key     GroupKey
	PerYear sql.NullInt64
	PerDay  [numDayTypes]sql.NullInt64
}

// JoinPassengers matches REISENDE with its stops, day types, lines and
// vehicle capacities into reisende_full.
func (s *Store) JoinPassengers() error {
	slog.Info("Joining passenger data")
	return s.joinChain(tableReisende, tableReisendeFull, []JoinSpec{
		{
			Right: tableHaltestellen,
			On:    on(tableHaltestellen, "Haltestellen_Id"),
			// LINIE carries the authoritative line name.
			DropLeft: []string{"Linienname"},
		},
		{Right: tableTagtyp, On: on(tableTagtyp, "Tagtyp_Id")},
		{Right: tableLinie, On: on(tableLinie, "Linien_Id")},
		{Right: tableGefaessgroesse, On: on(tableGefaessgroesse, "Plan_Fahrt_Id")},
	})
}

type volumeSums struct {
	key   GroupKey
	sum   [numDayTypes]float64
	valid [numDayTypes]bool
}

// PassengerVolumes sums boardings times day factors per group and averages
// them over the configured number of days per day type. The result is also
// stored as the table g.Table.
func (s *Store) PassengerVolumes(g Grouping) ([]PassengerVolume, error) {
	cols := []string{g.Columns[0], g.Columns[1], g.Columns[2], "Einsteiger"}
	for _, dt := range DayTypes {
		cols = append(cols, dt.FactorColumn())
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid",
		strings.Join(quoteIdents(cols), ", "), quoteIdent(tableReisendeFull))

	groups := make(map[GroupKey]*volumeSums)
	err := sqlitex.Exec(s.db, query, func(stmt *sqlite.Stmt) error {
		key := GroupKey{ID: stmt.ColumnText(0), Code: stmt.ColumnText(1), Name: stmt.ColumnText(2)}
		acc, ok := groups[key]
		if !ok {
			acc = &volumeSums{key: key}
			groups[key] = acc
		}

		boardings, ok, err := columnFloat(stmt, 3)
		if err != nil || !ok {
			return err
		}
		for i, dt := range DayTypes {
			factor, ok, err := columnFloat(stmt, 4+i)
			if err != nil {
				return err
			}
			if ok {
				acc.sum[dt] += boardings * factor
				acc.valid[dt] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("passengers by %s: %w", g.Columns[0], err)
	}

	var out []PassengerVolume
	for _, acc := range groups {
		v := PassengerVolume{Key: acc.key}
		if acc.valid[DTV] {
			v.PerYear = sql.NullInt64{Int64: roundHalfEven(acc.sum[DTV]), Valid: true}
		}
		for _, dt := range DayTypes {
			if acc.valid[dt] {
				avg := acc.sum[dt] / s.cfg.Divisors.For(dt)
				v.PerDay[dt] = sql.NullInt64{Int64: roundHalfEven(avg), Valid: true}
			}
		}
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b PassengerVolume) int { return a.Key.compare(b.Key) })

	if err := s.storeVolumes(g, out); err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("Computed %d rows of %s", len(out), g.Table))
	return out, nil
}

func (s *Store) storeVolumes(g Grouping, volumes []PassengerVolume) (err error) {
	defer sqlitex.Save(s.db)(&err)

	if err := dropTable(s.db, g.Table); err != nil {
		return err
	}

	columnFragments := []string{
		quoteIdent(g.Columns[0]) + " TEXT",
		quoteIdent(g.Columns[1]) + " TEXT",
		quoteIdent(g.Columns[2]) + " TEXT",
		"pax_per_year INTEGER",
	}
	argFragments := []string{"?1", "?2", "?3", "?4"}
	for i, dt := range DayTypes {
		columnFragments = append(columnFragments, quoteIdent(dt.MetricColumn())+" INTEGER")
		argFragments = append(argFragments, fmt.Sprintf("?%d", i+5))
	}
	query := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(g.Table), strings.Join(columnFragments, ", "))
	if err := sqlitex.ExecTransient(s.db, query, sqlitexNoop); err != nil {
		return err
	}

	insertStmt, err := s.db.Prepare(fmt.Sprintf("INSERT INTO %s VALUES (%s)",
		quoteIdent(g.Table), strings.Join(argFragments, ", ")))
	if err != nil {
		return err
	}
	for _, v := range volumes {
		if err := insertStmt.Reset(); err != nil {
			return err
		}
		if err := insertStmt.ClearBindings(); err != nil {
			return err
		}
		bindText(insertStmt, 1, v.Key.ID)
		bindText(insertStmt, 2, v.Key.Code)
		bindText(insertStmt, 3, v.Key.Name)
		bindInt(insertStmt, 4, v.PerYear)
		for i, dt := range DayTypes {
			bindInt(insertStmt, i+5, v.PerDay[dt])
		}
		if _, err := insertStmt.Step(); err != nil {
			return err
		}
	}
	return nil
}

func bindText(stmt *sqlite.Stmt, param int, v string) {
	if v == "" {
		stmt.BindNull(param)
	} else {
		stmt.BindText(param, v)
	}
}

func bindInt(stmt *sqlite.Stmt, param int, v sql.NullInt64) {
	if v.Valid {
		stmt.BindInt64(param, v.Int64)
	} else {
		stmt.BindNull(param)
	}
}

// Ties round to even.
func roundHalfEven(v float64) int64 {
	return int64(math.RoundToEven(v))
}
