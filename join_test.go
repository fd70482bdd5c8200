package vbzogd

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

const joinFixture = `
CREATE TABLE facts (stop TEXT, trip TEXT, boardings TEXT);
INSERT INTO facts VALUES ('1', 'a', '10'), ('2', 'b', '5'), ('9', 'c', '1'), (NULL, 'd', '2');
CREATE TABLE stops (id TEXT, name TEXT, lat TEXT);
INSERT INTO stops VALUES ('1', 'Bellevue', '47.36'), ('2', 'Central', '47.37');
CREATE TABLE trips (trip TEXT, name TEXT);
INSERT INTO trips VALUES ('a', 'Morning'), ('b', 'Evening');
CREATE TABLE dupes (id TEXT, name TEXT);
INSERT INTO dupes VALUES ('1', 'Bellevue'), ('1', 'Bellevue Nord');
`

func openJoinFixture(t *testing.T) *sqlite.Conn {
	t.Helper()
	s := openTestStore(t, nil)
	require.NoError(t, sqlitex.ExecScript(s.db, joinFixture))
	return s.db
}

func TestLeftJoinPreservesFactRows(t *testing.T) {
	db := openJoinFixture(t)

	rows, err := LeftJoin(db, JoinSpec{
		Left:  "facts",
		Right: "stops",
		Into:  "joined",
		On:    []KeyPair{{Left: "stop", Right: "id"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), rows)

	cols, err := tableColumns(db, "joined")
	require.NoError(t, err)
	assert.Equal(t, []string{"stop", "trip", "boardings", "name", "lat"}, cols)

	assert.Equal(t, [][]string{
		{"1", "a", "10", "Bellevue", "47.36"},
		{"2", "b", "5", "Central", "47.37"},
		{"9", "c", "1", "", ""},
		{"", "d", "2", "", ""},
	}, readTable(t, db, "joined"))
}

func TestLeftJoinRejectsCollision(t *testing.T) {
	db := openJoinFixture(t)

	_, err := LeftJoin(db, JoinSpec{Left: "facts", Right: "stops", Into: "step1", On: []KeyPair{{Left: "stop", Right: "id"}}})
	require.NoError(t, err)

	_, err = LeftJoin(db, JoinSpec{Left: "step1", Right: "trips", Into: "step2", On: []KeyPair{{Left: "trip", Right: "trip"}}})
	require.ErrorIs(t, err, ErrColumnCollision)

	_, err = LeftJoin(db, JoinSpec{
		Left:   "step1",
		Right:  "trips",
		Into:   "step2",
		On:     []KeyPair{{Left: "trip", Right: "trip"}},
		Rename: map[string]string{"name": "trip_name"},
	})
	require.NoError(t, err)

	cols, err := tableColumns(db, "step2")
	require.NoError(t, err)
	assert.Equal(t, []string{"stop", "trip", "boardings", "name", "lat", "trip_name"}, cols)
}

func TestLeftJoinSuffix(t *testing.T) {
	db := openJoinFixture(t)

	_, err := LeftJoin(db, JoinSpec{
		Left:     "facts",
		Right:    "stops",
		Into:     "joined",
		On:       []KeyPair{{Left: "stop", Right: "id"}},
		DropLeft: []string{"boardings"},
		Suffix:   "_von",
	})
	require.NoError(t, err)

	cols, err := tableColumns(db, "joined")
	require.NoError(t, err)
	assert.Equal(t, []string{"stop", "trip", "name_von", "lat_von"}, cols)
}

func TestLeftJoinDuplicateKeysMultiplyRows(t *testing.T) {
	db := openJoinFixture(t)

	rows, err := LeftJoin(db, JoinSpec{Left: "facts", Right: "dupes", Into: "joined", On: []KeyPair{{Left: "stop", Right: "id"}}})
	require.NoError(t, err)
	assert.Equal(t, int64(5), rows)

	issues, err := checkJoin(db, JoinSpec{Left: "facts", Right: "dupes", On: []KeyPair{{Left: "stop", Right: "id"}}}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"1 key(s) of dupes occur more than once on (id)",
		"2 row(s) have no match in dupes on (stop)",
	}, issues)
}

func TestLeftJoinMissingKeyColumn(t *testing.T) {
	db := openJoinFixture(t)

	_, err := LeftJoin(db, JoinSpec{Left: "facts", Right: "stops", Into: "joined", On: []KeyPair{{Left: "stop_id", Right: "id"}}})
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestLeftJoinReplacesInto(t *testing.T) {
	db := openJoinFixture(t)
	spec := JoinSpec{Left: "facts", Right: "stops", Into: "joined", On: []KeyPair{{Left: "stop", Right: "id"}}}

	_, err := LeftJoin(db, spec)
	require.NoError(t, err)
	rows, err := LeftJoin(db, spec)
	require.NoError(t, err)
	assert.Equal(t, int64(4), rows)
}

func readTable(t *testing.T, db *sqlite.Conn, table string) [][]string {
	t.Helper()
	return readRows(t, db, "SELECT * FROM "+quoteIdent(table)+" ORDER BY rowid")
}

func readQuery(t *testing.T, s *Store, query string) [][]string {
	t.Helper()
	return readRows(t, s.db, query)
}

func readRows(t *testing.T, db *sqlite.Conn, query string) [][]string {
	t.Helper()
	var out [][]string
	err := sqlitex.Exec(db, query, func(stmt *sqlite.Stmt) error {
		row := make([]string, stmt.ColumnCount())
		for i := range row {
			row[i] = stmt.ColumnText(i)
		}
		out = append(out, row)
		return nil
	})
	require.NoError(t, err)
	return out
}
