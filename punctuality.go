package vbzogd

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

const (
	tableFahrzeitenFull = "fahrzeiten_full"
	PunctualityTable    = "punctuality"
)

// Category is the punctuality class of a single ride segment.
type Category string

const (
	Delay    Category = "delay"
	TooEarly Category = "too early"
	Punctual Category = "punctual"
)

const (
	// A ride arriving this much later than scheduled is delayed.
	maxArrivalDelay = 2 * time.Minute
	// A ride leaving this much earlier than scheduled is too early.
	maxEarlyDeparture = -1 * time.Minute
)

// Classify applies the VBZ punctuality definition at the destination stop:
// the arrival decides whether a ride is delayed, the departure whether it is
// too early. A delayed arrival wins over an early departure.
func Classify(arrivalDelay, departureDelay time.Duration) Category {
	if arrivalDelay >= maxArrivalDelay {
		return Delay
	}
	if departureDelay <= maxEarlyDeparture {
		return TooEarly
	}
	return Punctual
}

// PunctualityShare is the number of ride segments of a line in one category
// and their share of all the line's segments in percent.
type PunctualityShare struct {
	Line     string
	Category Category
	Count    int64
	Percent  float64
}

// JoinTravelTimes matches every ride segment with the stop point and stop at
// both its origin (von) and destination (nach) into fahrzeiten_full.
func (s *Store) JoinTravelTimes() error {
	slog.Info("Joining travel time data")
	return s.joinChain(tableFahrzeiten, tableFahrzeitenFull, []JoinSpec{
		{
			Right:  tableHaltepunkt,
			On:     on(tableHaltepunkt, "halt_punkt_id_von", "halt_punkt_diva_von", "halt_id_von"),
			Suffix: "_von",
		},
		{
			Right:  tableHaltepunkt,
			On:     on(tableHaltepunkt, "halt_punkt_id_nach", "halt_punkt_diva_nach", "halt_id_nach"),
			Suffix: "_nach",
		},
		{
			Right:  tableHaltestelle,
			On:     on(tableHaltestelle, "halt_id_von", "halt_diva_von", "halt_kurz_von1"),
			Suffix: "_von",
		},
		{
			Right:  tableHaltestelle,
			On:     on(tableHaltestelle, "halt_id_nach", "halt_diva_nach", "halt_kurz_nach1"),
			Suffix: "_nach",
		},
	})
}

// Punctuality classifies every joined ride segment and returns the share of
// each category per line, ordered by line and category. The result is also
// stored as the table punctuality.
func (s *Store) Punctuality() ([]PunctualityShare, error) {
	counts := make(map[string]map[Category]int64)
	var incomplete int

	query := fmt.Sprintf("SELECT linie, ist_an_nach1, soll_an_nach, ist_ab_nach, soll_ab_nach FROM %s ORDER BY rowid",
		quoteIdent(tableFahrzeitenFull))
	err := sqlitex.Exec(s.db, query, func(stmt *sqlite.Stmt) error {
		arrival, arrivalOK, err := delay(stmt, 1, 2)
		if err != nil {
			return err
		}
		departure, departureOK, err := delay(stmt, 3, 4)
		if err != nil {
			return err
		}
		if !arrivalOK || !departureOK {
			incomplete++
		}

		line := stmt.ColumnText(0)
		if counts[line] == nil {
			counts[line] = make(map[Category]int64)
		}
		counts[line][Classify(arrival, departure)]++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("punctuality: %w", err)
	}
	if incomplete > 0 {
		slog.Warn(fmt.Sprintf("%d ride segment(s) lack a scheduled or actual time at the destination", incomplete))
	}

	var out []PunctualityShare
	for line, byCategory := range counts {
		var total int64
		for _, n := range byCategory {
			total += n
		}
		for category, n := range byCategory {
			out = append(out, PunctualityShare{
				Line:     line,
				Category: category,
				Count:    n,
				Percent:  100 * float64(n) / float64(total),
			})
		}
	}
	slices.SortFunc(out, func(a, b PunctualityShare) int {
		if c := compareKey(a.Line, b.Line); c != 0 {
			return c
		}
		return strings.Compare(string(a.Category), string(b.Category))
	})

	if err := s.storePunctuality(out); err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("Computed punctuality for %d line(s)", len(counts)))
	return out, nil
}

// delay returns actual minus scheduled for timestamps given in seconds. ok is
// false if either is missing, in which case the delay is zero and never
// crosses a threshold.
func delay(stmt *sqlite.Stmt, actualCol, scheduledCol int) (d time.Duration, ok bool, err error) {
	actual, actualOK, err := columnFloat(stmt, actualCol)
	if err != nil {
		return 0, false, err
	}
	scheduled, scheduledOK, err := columnFloat(stmt, scheduledCol)
	if err != nil {
		return 0, false, err
	}
	if !actualOK || !scheduledOK {
		return 0, false, nil
	}
	return time.Duration((actual - scheduled) * float64(time.Second)), true, nil
}

func (s *Store) storePunctuality(shares []PunctualityShare) (err error) {
	defer sqlitex.Save(s.db)(&err)

	if err := dropTable(s.db, PunctualityTable); err != nil {
		return err
	}
	query := fmt.Sprintf("CREATE TABLE %s (linie TEXT, punct_cat TEXT, count INTEGER, percent REAL)",
		quoteIdent(PunctualityTable))
	if err := sqlitex.ExecTransient(s.db, query, sqlitexNoop); err != nil {
		return err
	}
	for _, share := range shares {
		err := sqlitex.Exec(s.db, "INSERT INTO punctuality (linie, punct_cat, count, percent) VALUES (?, ?, ?, ?)",
			sqlitexNoop, share.Line, string(share.Category), share.Count, share.Percent)
		if err != nil {
			return err
		}
	}
	return nil
}
