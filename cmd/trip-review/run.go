package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/trip.review/internal/config"
	"github.com/banshee-data/trip.review/internal/monitoring"
	"github.com/banshee-data/trip.review/internal/trip/channel"
	"github.com/banshee-data/trip.review/internal/trip/pipeline"
	"github.com/banshee-data/trip.review/internal/trip/report"
	"github.com/banshee-data/trip.review/internal/trip/storage/sqlite"
)

var errDuplicateTrip = errors.New("duplicate trip name")

// listFlag collects comma-separated values across repeated flags.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, splitList(v)...)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type runOptions struct {
	Trips      []string
	ConfigPath string
	Taxonomy   string
	DBPath     string
	OutDir     string
	Workers    int
	Prepare    bool
	SaveTTC    bool
}

func handleRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var opts runOptions
	var trips listFlag
	fs.Var(&trips, "trip", "trip manifest file(s), comma-separated or repeated")
	fs.StringVar(&opts.ConfigPath, "config", "", "tuning config file (.json, .yaml)")
	fs.StringVar(&opts.Taxonomy, "taxonomy", "", "category taxonomy preset (legacy, passthrough); overrides the config")
	fs.StringVar(&opts.DBPath, "db", "trip_review.db", "sqlite result database (empty to disable)")
	fs.StringVar(&opts.OutDir, "out", "reports", "report output directory (empty to disable)")
	fs.IntVar(&opts.Workers, "workers", 2, "trips processed concurrently")
	fs.BoolVar(&opts.Prepare, "prepare", false, "rebuild the lidar detections artefact first")
	fs.BoolVar(&opts.SaveTTC, "save-ttc", false, "write TTC series back into each trip")
	logLevel := fs.String("log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts.Trips = trips
	if len(opts.Trips) == 0 {
		return errors.New("at least one --trip is required")
	}

	flush, err := setupLogging(*logLevel)
	if err != nil {
		return err
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	items, err := executeRun(ctx, opts)
	failed := 0
	for _, it := range items {
		switch {
		case it.Err != nil:
			failed++
			fmt.Printf("%-24s error: %v\n", it.Trip, it.Err)
		case !it.Result.OK():
			failed++
			fmt.Printf("%-24s partial: %v\n", it.Trip, it.Result.Err())
		default:
			fmt.Printf("%-24s ok: %d frames, %d events, %d ttc samples\n",
				it.Trip, it.Result.Tracks.Len(), len(it.Result.Events), it.Result.TTCSampleCount())
		}
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d trips did not complete", failed, len(items))
	}
	return nil
}

// executeRun loads every trip, runs the pipeline over them and persists the
// results. Per-trip failures are reported in the returned items.
func executeRun(ctx context.Context, opts runOptions) ([]pipeline.BatchItem, error) {
	cfg := config.DefaultTuningConfig()
	if opts.ConfigPath != "" {
		loaded, err := config.LoadTuningConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.Taxonomy != "" {
		cfg.Taxonomy = &opts.Taxonomy
	}
	params, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}

	var items []pipeline.BatchItem
	var contexts []*pipeline.Context
	var paths []string
	seen := make(map[string]string)
	for _, path := range opts.Trips {
		m, err := channel.LoadManifest(path)
		if err != nil {
			items = append(items, pipeline.BatchItem{Trip: path, Err: err})
			continue
		}
		// Trip names key stored runs and report directories.
		if prev, ok := seen[m.Name]; ok {
			items = append(items, pipeline.BatchItem{Trip: m.Name, Err: fmt.Errorf(
				"%s: %w: %q is already used by %s; set \"name\" in the manifest", path, errDuplicateTrip, m.Name, prev)})
			continue
		}
		pc, err := pipeline.NewContext(m, cfg, pipeline.WithProgress(logProgress(m.Name)))
		if err != nil {
			return nil, err
		}
		if opts.Prepare {
			stats, err := pipeline.PrepareDetections(m, pc.Tracker.Taxonomy)
			if err != nil {
				items = append(items, pipeline.BatchItem{Trip: pc.Name(), Err: fmt.Errorf("prepare detections: %w", err)})
				continue
			}
			monitoring.Logf("[run] %s: prepared detections %+v", pc.Name(), stats)
			if err := m.Save(path); err != nil {
				return nil, err
			}
		}
		seen[m.Name] = path
		contexts = append(contexts, pc)
		paths = append(paths, path)
	}

	batch, err := pipeline.RunBatch(ctx, contexts, opts.Workers)
	items = append(items, batch...)
	if err != nil {
		return items, err
	}

	var store *sqlite.RunStore
	if opts.DBPath != "" {
		db, err := sqlite.Open(opts.DBPath)
		if err != nil {
			return items, err
		}
		defer db.Close()
		store = sqlite.NewRunStore(db.DB)
	}

	// RunBatch returns items in input order, so batch[i] belongs to contexts[i].
	for i, it := range batch {
		if it.Result == nil {
			continue
		}
		pc := contexts[i]
		if store != nil {
			run, err := store.SaveResult(it.Result, params)
			if err != nil {
				return items, fmt.Errorf("save %s: %w", it.Trip, err)
			}
			monitoring.Logf("[run] %s: stored run %s (%s)", it.Trip, run.RunID, run.Status)
		}
		if opts.OutDir != "" {
			if _, err := report.WriteAll(opts.OutDir, it.Result, locationOf(pc)); err != nil {
				return items, fmt.Errorf("report %s: %w", it.Trip, err)
			}
		}
		if opts.SaveTTC && len(it.Result.TTC) > 0 {
			if _, err := report.SaveTTCChannels(pc.Trip, it.Result.TTC); err != nil {
				return items, fmt.Errorf("save ttc %s: %w", it.Trip, err)
			}
			if err := pc.Trip.Save(paths[i]); err != nil {
				return items, err
			}
		}
	}
	return items, nil
}

func locationOf(pc *pipeline.Context) *time.Location {
	if pc.Location != nil {
		return pc.Location
	}
	return time.UTC
}

// logProgress logs a stage at most once per tenth of its work.
func logProgress(trip string) pipeline.ProgressFunc {
	last := map[string]int{}
	return func(stage string, done, total int) {
		if total <= 0 {
			return
		}
		decile := done * 10 / total
		if prev, ok := last[stage]; ok && prev == decile {
			return
		}
		last[stage] = decile
		monitoring.Logf("[run] %s: %s %d/%d", trip, stage, done, total)
	}
}
