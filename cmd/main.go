package main

import (
	"fmt"
	"github.com/dzfranklin/vbzogd"
	"github.com/spf13/pflag"
	"io"
	"log/slog"
	"os"
)

func usageAndDie() {
	fmt.Println("Example usage:\n" +
		"    vbzogd --passengers <data dir>\n" +
		"    vbzogd --travel-times <data dir> [--clip-feature <feature_geojson.json>]\n" +
		"    vbzogd --config <config.yml> --passengers <data dir> --out <results.zip>")
	os.Exit(1)
}

func main() {
	passengersDir := pflag.StringP("passengers", "p", "", "Analyze the passenger data in this directory")
	travelTimesDir := pflag.StringP("travel-times", "t", "", "Analyze the travel time data in this directory")

	configPath := pflag.StringP("config", "c", "", "Path to a YAML config file")
	output := pflag.StringP("out", "o", "", "Write result tables to this zip file instead of stdout")
	storePath := pflag.String("store", "", "Keep the loaded and joined tables in this SQLite file")
	clipFeaturePath := pflag.String("clip-feature", "", "Only count ride segments ending inside the GeoJSON feature in this file")
	strict := pflag.Bool("strict", false, "Fail on unmatched or duplicate join keys")
	logJSON := pflag.Bool("log-json", false, "Log as JSON")
	verbose := pflag.BoolP("verbose", "v", false, "Log debug output")

	pflag.Parse()

	if (*passengersDir == "") == (*travelTimesDir == "") {
		usageAndDie()
	}
	if *clipFeaturePath != "" && *travelTimesDir == "" {
		usageAndDie()
	}

	setupLogging(*logJSON, *verbose)

	opts := options{
		passengersDir:   *passengersDir,
		travelTimesDir:  *travelTimesDir,
		configPath:      *configPath,
		output:          *output,
		storePath:       *storePath,
		clipFeaturePath: *clipFeaturePath,
		strict:          *strict,
	}
	if err := run(opts); err != nil {
		die(err)
	}
}

type options struct {
	passengersDir   string
	travelTimesDir  string
	configPath      string
	output          string
	storePath       string
	clipFeaturePath string
	strict          bool
}

func run(opts options) (err error) {
	cfg, err := vbzogd.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.passengersDir != "" {
		cfg.Passengers.Dir = opts.passengersDir
	}
	if opts.travelTimesDir != "" {
		cfg.TravelTimes.Dir = opts.travelTimesDir
	}
	if opts.storePath != "" {
		cfg.Store = opts.storePath
	}
	if opts.strict {
		cfg.Strict = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := vbzogd.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); err == nil {
			err = closeErr
		}
	}()

	var tables []string
	if opts.passengersDir != "" {
		tables, err = runPassengers(store)
	} else {
		var clipFeature []byte
		if opts.clipFeaturePath != "" {
			clipFeature, err = os.ReadFile(opts.clipFeaturePath)
			if err != nil {
				return err
			}
		}
		tables, err = runTravelTimes(store, string(clipFeature))
	}
	if err != nil {
		return err
	}

	if opts.output != "" {
		if err := store.Export(opts.output, tables...); err != nil {
			return err
		}
	} else {
		if err := writeTables(os.Stdout, store, tables); err != nil {
			return err
		}
	}

	if issues := store.Issues(); len(issues) > 0 {
		slog.Warn(fmt.Sprintf("Finished with %d data issue(s)", len(issues)))
	}
	return nil
}

func writeTables(w io.Writer, store *vbzogd.Store, tables []string) error {
	for _, table := range tables {
		if _, err := fmt.Fprintf(w, "# %s\n", table); err != nil {
			return err
		}
		if _, err := store.WriteTable(w, table); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func runPassengers(store *vbzogd.Store) ([]string, error) {
	if err := store.LoadPassengers(); err != nil {
		return nil, err
	}
	if err := store.JoinPassengers(); err != nil {
		return nil, err
	}
	var tables []string
	for _, g := range []vbzogd.Grouping{vbzogd.ByLine, vbzogd.ByStop} {
		if _, err := store.PassengerVolumes(g); err != nil {
			return nil, err
		}
		tables = append(tables, g.Table)
	}
	return tables, nil
}

func runTravelTimes(store *vbzogd.Store, clipFeature string) ([]string, error) {
	if err := store.LoadTravelTimes(); err != nil {
		return nil, err
	}
	if err := store.JoinTravelTimes(); err != nil {
		return nil, err
	}
	if clipFeature != "" {
		if err := store.Clip(clipFeature); err != nil {
			return nil, err
		}
	}
	if _, err := store.Punctuality(); err != nil {
		return nil, err
	}
	return []string{vbzogd.PunctualityTable}, nil
}

func setupLogging(json bool, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	// Results may go to stdout, so logs go to stderr.
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func die(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	os.Exit(1)
}
