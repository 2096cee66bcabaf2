package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/banshee-data/trip.review/internal/timeutil"
	"github.com/banshee-data/trip.review/internal/trip/report"
	"github.com/banshee-data/trip.review/internal/trip/storage/sqlite"
)

func handleRuns(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	dbPath := fs.String("db", "trip_review.db", "sqlite result database")
	trip := fs.String("trip", "", "trip name (empty lists every run)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	db, err := sqlite.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return listRuns(os.Stdout, sqlite.NewRunStore(db.DB), *trip)
}

func listRuns(w io.Writer, store *sqlite.RunStore, trip string) error {
	runs, err := store.ListRuns(trip)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs")
		return nil
	}
	fmt.Fprintf(w, "%-36s  %-20s  %-8s  %-25s  %7s  %6s  %6s  %6s\n",
		"RUN", "TRIP", "STATUS", "STARTED", "FRAMES", "TRACKS", "EVENTS", "TTC")
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-20s  %-8s  %-25s  %7d  %6d  %6d  %6d\n",
			r.RunID, r.Trip, r.Status, timeutil.NanoToTime(r.StartedAt).UTC().Format(time.RFC3339),
			r.FrameCount, r.TrackCount, r.EventCount, r.TTCCount)
	}
	return nil
}

func handleShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	dbPath := fs.String("db", "trip_review.db", "sqlite result database")
	runID := fs.String("run", "", "run id")
	outDir := fs.String("out", "", "re-render the run's reports into this directory")
	del := fs.Bool("delete", false, "delete the run instead of showing it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("--run is required")
	}
	db, err := sqlite.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	store := sqlite.NewRunStore(db.DB)

	if *del {
		if err := store.DeleteRun(*runID); err != nil {
			return err
		}
		fmt.Printf("deleted run %s\n", *runID)
		return nil
	}
	if err := showRun(os.Stdout, store, *runID); err != nil {
		return err
	}
	if *outDir == "" {
		return nil
	}
	res, err := store.LoadResult(*runID)
	if err != nil {
		return err
	}
	paths, err := report.WriteAll(*outDir, res, time.UTC)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Printf("wrote %s\n", p)
	}
	return nil
}

func showRun(w io.Writer, store *sqlite.RunStore, runID string) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	stages, err := store.Stages(runID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "run     %s\ntrip    %s\nstatus  %s\n", run.RunID, run.Trip, run.Status)
	fmt.Fprintf(w, "frames  %d\ntracks  %d\nevents  %d\nttc     %d\n", run.FrameCount, run.TrackCount, run.EventCount, run.TTCCount)
	if run.Error != "" {
		fmt.Fprintf(w, "error   %s\n", run.Error)
	}
	fmt.Fprintln(w)
	for _, st := range stages {
		fmt.Fprintf(w, "  %-10s %-8s %6d  %v", st.Stage, st.Status, st.Count, st.Duration)
		if st.Error != "" {
			fmt.Fprintf(w, "  %s", st.Error)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func handleMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbPath := fs.String("db", "trip_review.db", "sqlite result database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	action := "version"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}

	// Open applies pending migrations, so "up" needs no further work.
	db, err := sqlite.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	switch action {
	case "up", "version":
	case "down":
		if err := db.MigrateDown(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down or version)", action)
	}
	v, dirty, err := db.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Printf("schema version %d (dirty=%v)\n", v, dirty)
	return nil
}
