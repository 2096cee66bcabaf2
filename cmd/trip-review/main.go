package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/banshee-data/trip.review/internal/monitoring"
	"github.com/banshee-data/trip.review/internal/version"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "run":
		err = handleRun(args)
	case "runs":
		err = handleRuns(args)
	case "show":
		err = handleShow(args)
	case "migrate":
		err = handleMigrate(args)
	case "version":
		fmt.Printf("trip-review %s\n", version.String())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "trip-review %s: %v\n", command, err)
		os.Exit(1)
	}
}

// setupLogging installs a zap-backed logger for the monitoring package and
// returns its flush function.
func setupLogging(level string) (func(), error) {
	loggers, err := monitoring.NewZapLoggers(level)
	if err != nil {
		return nil, err
	}
	loggers.Install()
	return func() { _ = loggers.Sync() }, nil
}

func printUsage() {
	fmt.Println(`trip-review - offline trip analytics

Usage: trip-review <command> [options]

Commands:
  run        Track objects, detect events and estimate TTC for one or more trips
  runs       List stored runs of a trip
  show       Show the stages and outputs of a stored run
  migrate    Apply or inspect the result database schema
  version    Show trip-review version
  help       Show this help message

Run Flags:
  --trip <paths>       Comma-separated trip manifest files (repeatable)
  --config <file>      Tuning config (.json, .yaml); defaults apply when omitted
  --taxonomy <name>    Category taxonomy preset: legacy or passthrough
  --db <file>          SQLite result database (default: trip_review.db, "" to disable)
  --out <dir>          Report output directory (default: reports)
  --workers <n>        Trips processed concurrently (default: 2)
  --prepare            Rebuild the lidar detections artefact before tracking
  --save-ttc           Write TTC series back into each trip as channel files
  --log-level <level>  debug, info, warn or error (default: info)

Examples:
  trip-review run --trip trips/0412/trip.json --out reports
  trip-review run --trip a.json,b.json --config tuning.yaml --workers 4
  trip-review runs --trip 0412
  trip-review show --run 3f1c...
  trip-review migrate version`)
}
