package vbzogd

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"fmt"
	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"
	"log/slog"
	"strconv"
)

// Clip removes every joined ride segment whose destination stop point lies
// outside clipFeature, or has no known position. Call it between
// JoinTravelTimes and Punctuality.
func (s *Store) Clip(clipFeature string) (err error) {
	feature, err := geojson.Parse(clipFeature, &geojson.ParseOptions{RequireValid: true})
	if err != nil {
		return fmt.Errorf("parse clip feature: %w", err)
	}

	slog.Info(fmt.Sprintf("Clipping %s (clipFeature has %d points)", tableFahrzeitenFull, feature.NumPoints()))

	defer sqlitex.Save(s.db)(&err)

	if err := sqlitex.ExecTransient(s.db, "CREATE TEMP TABLE __segments_inside (id INTEGER PRIMARY KEY)", sqlitexNoop); err != nil {
		return err
	}

	inside := make(map[[2]string]bool)
	insideCount := 0
	totalCount := 0
	query := "SELECT rowid AS id, GPS_Latitude_nach AS lat, GPS_Longitude_nach AS lng FROM " + quoteIdent(tableFahrzeitenFull)
	err = sqlitex.Exec(s.db, query, func(stmt *sqlite.Stmt) error {
		totalCount++
		pos := [2]string{stmt.GetText("lat"), stmt.GetText("lng")}
		if pos[0] == "" || pos[1] == "" {
			return nil
		}

		contained, ok := inside[pos]
		if !ok {
			lat, err := strconv.ParseFloat(pos[0], 64)
			if err != nil {
				return fmt.Errorf("GPS_Latitude_nach is not a number: %q", pos[0])
			}
			lng, err := strconv.ParseFloat(pos[1], 64)
			if err != nil {
				return fmt.Errorf("GPS_Longitude_nach is not a number: %q", pos[1])
			}
			contained = feature.Contains(geojson.NewPoint(geometry.Point{X: lng, Y: lat}))
			inside[pos] = contained
		}
		if !contained {
			return nil
		}

		insideCount++
		return sqlitex.Exec(s.db, "INSERT INTO __segments_inside (id) VALUES (?)", sqlitexNoop, stmt.GetInt64("id"))
	})
	if err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("%d of %d ride segments end inside", insideCount, totalCount))

	script := fmt.Sprintf(`
DELETE FROM %s WHERE rowid NOT IN (SELECT id FROM __segments_inside);
DROP TABLE __segments_inside;
`, quoteIdent(tableFahrzeitenFull))
	return sqlitex.ExecScript(s.db, script)
}
