package vbzogd

import (
	"database/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func loadedPassengers(t *testing.T, cfg *Config) *Store {
	t.Helper()
	s := openTestStore(t, cfg)
	require.NoError(t, s.LoadPassengers())
	require.NoError(t, s.JoinPassengers())
	return s
}

func n(v int64) sql.NullInt64 { return sql.NullInt64{Int64: v, Valid: true} }

var null = sql.NullInt64{}

func TestJoinPassengers(t *testing.T) {
	s := loadedPassengers(t, nil)

	count, err := countRows(s.db, tableReisendeFull)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	cols, err := tableColumns(s.db, tableReisendeFull)
	require.NoError(t, err)
	assert.Contains(t, cols, "Haltestellenlangname")
	assert.Contains(t, cols, "Tagtyp_Bezeichnung")
	assert.Contains(t, cols, "Linienname_Fahrgastauskunft")
	assert.Contains(t, cols, "Sitzplaetze")
	assert.Equal(t, 1, countOf(cols, "Linienname"))

	// Unmatched stop 103, line 12 and trip 9004
	assert.Len(t, s.Issues(), 3)
}

func TestJoinPassengersStrict(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Passengers.Dir = "./testdata/passengers"
	cfg.Strict = true
	s := openTestStore(t, cfg)
	require.NoError(t, s.LoadPassengers())

	err := s.JoinPassengers()
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Len(t, s.Issues(), 3)
}

func TestPassengersByLine(t *testing.T) {
	s := loadedPassengers(t, nil)

	got, err := s.PassengerVolumes(ByLine)
	require.NoError(t, err)
	assert.Equal(t, []PassengerVolume{
		{
			Key:     GroupKey{ID: "10", Code: "2", Name: "2"},
			PerYear: n(4500),
			PerDay:  [numDayTypes]sql.NullInt64{n(12), n(15), n(15), n(15), null, null},
		},
		{
			Key:     GroupKey{ID: "11", Code: "N2", Name: "N2"},
			PerYear: n(1040),
			PerDay:  [numDayTypes]sql.NullInt64{n(3), n(0), n(0), n(0), n(20), n(0)},
		},
		{
			// Not in LINIE: kept with empty names. 912.5 and 2.5 round to even.
			Key:     GroupKey{ID: "12"},
			PerYear: n(912),
			PerDay:  [numDayTypes]sql.NullInt64{n(2), n(2), n(2), n(2), null, null},
		},
	}, got)
}

func TestPassengersByStop(t *testing.T) {
	s := loadedPassengers(t, nil)

	got, err := s.PassengerVolumes(ByStop)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, GroupKey{ID: "101", Code: "1001", Name: "Zürich, Bellevue"}, got[0].Key)
	assert.Equal(t, n(4040), got[0].PerYear)
	// Only the night trip has a Saturday night factor.
	assert.Equal(t, n(20), got[0].PerDay[SANight])
	assert.Equal(t, n(0), got[0].PerDay[SONight])

	assert.Equal(t, GroupKey{ID: "102", Code: "1002", Name: "Zürich, Central"}, got[1].Key)
	assert.Equal(t, n(4), got[1].PerDay[DTV])
	assert.Equal(t, null, got[1].PerDay[SANight])
}

func TestPassengerDivisorsFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Passengers.Dir = "./testdata/passengers"
	cfg.Divisors.DTV = 366
	cfg.Divisors.DWV = 1
	s := loadedPassengers(t, cfg)

	got, err := s.PassengerVolumes(ByLine)
	require.NoError(t, err)
	assert.Equal(t, n(4500), got[0].PerYear)
	assert.Equal(t, n(12), got[0].PerDay[DTV])   // 4500 / 366
	assert.Equal(t, n(3765), got[0].PerDay[DWV]) // 15 * 251
}

func TestPassengerVolumesMatchSumOverRows(t *testing.T) {
	dir := testTempdir(t)
	copyDir(t, "./testdata/passengers", dir)
	writeFile(t, dir, "REISENDE.csv", ""+
		"Haltestellen_Id;Tagtyp_Id;Linien_Id;Linienname;Plan_Fahrt_Id;Einsteiger;Tage_DTV;Tage_DWV;Tage_SA;Tage_SO;Tage_SA_N;Tage_SO_N\n"+
		"101;3;10;2;9001;10;300;251;52;62;52;52\n"+
		"102;3;10;2;9002;5;300;251;52;62;52;52\n")

	cfg := DefaultConfig()
	cfg.Passengers.Dir = dir
	s := loadedPassengers(t, cfg)

	got, err := s.PassengerVolumes(ByLine)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, n(4500), got[0].PerYear)
	assert.Equal(t, n(12), got[0].PerDay[DTV])
}

func TestPassengerVolumesRejectNonNumeric(t *testing.T) {
	dir := testTempdir(t)
	copyDir(t, "./testdata/passengers", dir)
	writeFile(t, dir, "REISENDE.csv", ""+
		"Haltestellen_Id;Tagtyp_Id;Linien_Id;Linienname;Plan_Fahrt_Id;Einsteiger;Tage_DTV;Tage_DWV;Tage_SA;Tage_SO;Tage_SA_N;Tage_SO_N\n"+
		"101;3;10;2;9001;ten;300;251;52;62;52;52\n")

	cfg := DefaultConfig()
	cfg.Passengers.Dir = dir
	s := loadedPassengers(t, cfg)

	_, err := s.PassengerVolumes(ByLine)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Einsteiger")
}

func TestPassengerVolumesStoredAsTable(t *testing.T) {
	s := loadedPassengers(t, nil)

	_, err := s.PassengerVolumes(ByLine)
	require.NoError(t, err)

	rows := readTable(t, s.db, ByLine.Table)
	assert.Equal(t, []string{"11", "N2", "N2", "1040", "3", "0", "0", "0", "20", "0"}, rows[1])
}

func TestDayTypeColumns(t *testing.T) {
	assert.Equal(t, "SA_N", SANight.String())
	assert.Equal(t, "Tage_SO_N", SONight.FactorColumn())
	assert.Equal(t, "pax_per_Sa", SA.MetricColumn())
	assert.Equal(t, 62.0, DefaultConfig().Divisors.For(SO))
}

func countOf(values []string, v string) int {
	count := 0
	for _, value := range values {
		if value == v {
			count++
		}
	}
	return count
}
