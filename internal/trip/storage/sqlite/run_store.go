package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/trip.review/internal/trip/events"
	"github.com/banshee-data/trip.review/internal/trip/pipeline"
	"github.com/banshee-data/trip.review/internal/trip/tracks"
	"github.com/banshee-data/trip.review/internal/trip/ttc"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("run not found")

// Run status values.
const (
	RunStatusComplete = "complete" // every stage succeeded
	RunStatusPartial  = "partial"  // at least one stage failed or was skipped
)

// Run is the persisted summary of one pipeline run.
type Run struct {
	RunID      string          `json:"run_id"`
	Trip       string          `json:"trip"`
	Status     string          `json:"status"`
	StartedAt  int64           `json:"started_at"`
	FinishedAt int64           `json:"finished_at"`
	FrameCount int             `json:"frame_count"`
	TrackCount int             `json:"track_count"`
	EventCount int             `json:"event_count"`
	TTCCount   int             `json:"ttc_count"`
	ParamsJSON json.RawMessage `json:"params_json,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  int64           `json:"created_at"`
}

// Stage is a persisted stage outcome.
type Stage struct {
	Stage    string        `json:"stage"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Count    int           `json:"count"`
}

// RunStore provides persistence for analysis runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// SaveResult persists a pipeline result and all its outputs in one
// transaction. params is stored verbatim (typically the tuning config).
func (s *RunStore) SaveResult(res *pipeline.Result, params json.RawMessage) (*Run, error) {
	run := &Run{
		RunID:      uuid.New().String(),
		Trip:       res.Trip,
		Status:     RunStatusPartial,
		StartedAt:  res.StartedAt.UnixNano(),
		FinishedAt: res.FinishedAt.UnixNano(),
		FrameCount: res.Tracks.Len(),
		TrackCount: len(res.Tracks.TrackIDs()),
		EventCount: len(res.Events),
		TTCCount:   res.TTCSampleCount(),
		ParamsJSON: params,
		CreatedAt:  time.Now().UnixNano(),
	}
	if res.OK() {
		run.Status = RunStatusComplete
	}
	if err := res.Err(); err != nil {
		run.Error = err.Error()
	}

	err := retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := insertRun(tx, run); err != nil {
			return err
		}
		for _, st := range res.Stages {
			var errStr any
			if st.Err != nil {
				errStr = st.Err.Error()
			}
			if _, err := tx.Exec(`
				INSERT INTO trip_run_stages (run_id, stage, status, error, duration_ns, item_count)
				VALUES (?, ?, ?, ?, ?, ?)`,
				run.RunID, st.Stage, string(st.Status), errStr, st.Duration.Nanoseconds(), st.Count,
			); err != nil {
				return fmt.Errorf("insert stage %s: %w", st.Stage, err)
			}
		}
		if err := insertTrackMap(tx, run.RunID, res.Tracks); err != nil {
			return err
		}
		if err := insertEvents(tx, run.RunID, res.Events); err != nil {
			return err
		}
		if err := insertTTC(tx, run.RunID, res.TTC); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	return run, nil
}

func insertRun(tx *sql.Tx, run *Run) error {
	var paramsStr, errStr any
	if len(run.ParamsJSON) > 0 {
		paramsStr = string(run.ParamsJSON)
	}
	if run.Error != "" {
		errStr = run.Error
	}
	_, err := tx.Exec(`
		INSERT INTO trip_runs (
			run_id, trip, status, started_at, finished_at,
			frame_count, track_count, event_count, ttc_count,
			params_json, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Trip, run.Status, run.StartedAt, run.FinishedAt,
		run.FrameCount, run.TrackCount, run.EventCount, run.TTCCount,
		paramsStr, errStr, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func insertTrackMap(tx *sql.Tx, runID string, m *tracks.TrackMap) error {
	frameStmt, err := tx.Prepare(`INSERT INTO trip_track_frames (run_id, frame_time) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer frameStmt.Close()
	pointStmt, err := tx.Prepare(`
		INSERT INTO trip_track_points (run_id, frame_time, track_id, x, y, yaw, category)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer pointStmt.Close()

	for _, f := range m.Frames() {
		if _, err := frameStmt.Exec(runID, f.Time); err != nil {
			return fmt.Errorf("insert frame %d: %w", f.Time, err)
		}
		for _, o := range f.Objects {
			if _, err := pointStmt.Exec(runID, f.Time, o.TrackID, o.X, o.Y, o.Yaw, o.Category); err != nil {
				return fmt.Errorf("insert track %d at %d: %w", o.TrackID, f.Time, err)
			}
		}
	}
	return nil
}

func insertEvents(tx *sql.Tx, runID string, evs []events.Event) error {
	for i, e := range evs {
		var seq any
		if e.FrameSeq != nil {
			seq = *e.FrameSeq
		}
		if _, err := tx.Exec(`
			INSERT INTO trip_events (run_id, seq, event_time, event_type, label, frame_seq)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, i, e.Time, string(e.Type), e.Label, seq,
		); err != nil {
			return fmt.Errorf("insert event %d: %w", i, err)
		}
	}
	return nil
}

func insertTTC(tx *sql.Tx, runID string, bags []pipeline.BagTTC) error {
	stmt, err := tx.Prepare(`
		INSERT INTO trip_ttc_samples (run_id, bag, sample_time, frame_time, ttc_seconds, track_id)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, b := range bags {
		for _, smp := range b.Samples {
			if _, err := stmt.Exec(runID, b.Bag, smp.Time, smp.FrameTime, smp.TTCSeconds, smp.TrackID); err != nil {
				return fmt.Errorf("insert ttc %s@%d: %w", b.Bag, smp.Time, err)
			}
		}
	}
	return nil
}

const runColumns = `run_id, trip, status, started_at, finished_at,
	frame_count, track_count, event_count, ttc_count, params_json, error, created_at`

func scanRun(scanner interface{ Scan(...any) error }) (*Run, error) {
	var r Run
	var params, errStr sql.NullString
	if err := scanner.Scan(
		&r.RunID, &r.Trip, &r.Status, &r.StartedAt, &r.FinishedAt,
		&r.FrameCount, &r.TrackCount, &r.EventCount, &r.TTCCount,
		&params, &errStr, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	if params.Valid {
		r.ParamsJSON = json.RawMessage(params.String)
	}
	r.Error = errStr.String
	return &r, nil
}

// GetRun returns a single run by ID.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM trip_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the runs of a trip, newest first. An empty trip lists
// every run.
func (s *RunStore) ListRuns(trip string) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM trip_runs`
	var args []any
	if trip != "" {
		query += ` WHERE trip = ?`
		args = append(args, trip)
	}
	query += ` ORDER BY created_at DESC, run_id`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Stages returns the stage outcomes of a run in execution order.
func (s *RunStore) Stages(runID string) ([]Stage, error) {
	rows, err := s.db.Query(`
		SELECT stage, status, error, duration_ns, item_count
		FROM trip_run_stages WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var out []Stage
	for rows.Next() {
		var st Stage
		var errStr sql.NullString
		var dur int64
		if err := rows.Scan(&st.Stage, &st.Status, &errStr, &dur, &st.Count); err != nil {
			return nil, err
		}
		st.Error = errStr.String
		st.Duration = time.Duration(dur)
		out = append(out, st)
	}
	return out, rows.Err()
}

// LoadTrackMap rebuilds the track map of a run.
func (s *RunStore) LoadTrackMap(runID string) (*tracks.TrackMap, error) {
	rows, err := s.db.Query(`
		SELECT f.frame_time, p.track_id, p.x, p.y, p.yaw, p.category
		FROM trip_track_frames f
		LEFT JOIN trip_track_points p ON p.run_id = f.run_id AND p.frame_time = f.frame_time
		WHERE f.run_id = ?
		ORDER BY f.frame_time, p.track_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query track points: %w", err)
	}
	defer rows.Close()

	m := &tracks.TrackMap{}
	var cur int64
	var objs []tracks.TrackedObject
	started := false
	for rows.Next() {
		var t int64
		var id sql.NullInt64
		var x, y, yaw sql.NullFloat64
		var cat sql.NullString
		if err := rows.Scan(&t, &id, &x, &y, &yaw, &cat); err != nil {
			return nil, err
		}
		if started && t != cur {
			if err := m.Append(cur, objs); err != nil {
				return nil, err
			}
			objs = nil
		}
		cur, started = t, true
		if id.Valid {
			objs = append(objs, tracks.TrackedObject{
				TrackID: int(id.Int64), X: x.Float64, Y: y.Float64, Yaw: yaw.Float64, Category: cat.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if started {
		if err := m.Append(cur, objs); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// LoadEvents returns the events of a run in time order.
func (s *RunStore) LoadEvents(runID string) ([]events.Event, error) {
	rows, err := s.db.Query(`
		SELECT event_time, event_type, label, frame_seq
		FROM trip_events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var e events.Event
		var typ string
		var seq sql.NullInt64
		if err := rows.Scan(&e.Time, &typ, &e.Label, &seq); err != nil {
			return nil, err
		}
		e.Type = events.Type(typ)
		if seq.Valid {
			v := seq.Int64
			e.FrameSeq = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LoadTTC returns the per-bag TTC series of a run, bags in name order.
func (s *RunStore) LoadTTC(runID string) ([]pipeline.BagTTC, error) {
	rows, err := s.db.Query(`
		SELECT bag, sample_time, frame_time, ttc_seconds, track_id
		FROM trip_ttc_samples WHERE run_id = ? ORDER BY bag, sample_time`, runID)
	if err != nil {
		return nil, fmt.Errorf("query ttc: %w", err)
	}
	defer rows.Close()

	var out []pipeline.BagTTC
	for rows.Next() {
		var bag string
		var smp ttc.Sample
		if err := rows.Scan(&bag, &smp.Time, &smp.FrameTime, &smp.TTCSeconds, &smp.TrackID); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].Bag != bag {
			out = append(out, pipeline.BagTTC{Bag: bag})
		}
		out[len(out)-1].Samples = append(out[len(out)-1].Samples, smp)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and everything recorded for it.
func (s *RunStore) DeleteRun(runID string) error {
	return retryOnBusy(func() error {
		res, err := s.db.Exec(`DELETE FROM trip_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
		}
		return nil
	})
}

// LoadResult reassembles the pipeline result recorded for a run. Stage
// errors come back as plain messages and scenario labels are not restored.
func (s *RunStore) LoadResult(runID string) (*pipeline.Result, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	res := &pipeline.Result{
		Trip:       run.Trip,
		StartedAt:  time.Unix(0, run.StartedAt),
		FinishedAt: time.Unix(0, run.FinishedAt),
	}
	stages, err := s.Stages(runID)
	if err != nil {
		return nil, err
	}
	for _, st := range stages {
		sr := pipeline.StageResult{
			Stage:    st.Stage,
			Status:   pipeline.StageStatus(st.Status),
			Duration: st.Duration,
			Count:    st.Count,
		}
		if st.Error != "" {
			sr.Err = errors.New(st.Error)
		}
		res.Stages = append(res.Stages, sr)
	}
	if sr, ok := res.Stage(pipeline.StageTracking); ok && sr.Status == pipeline.StageOK {
		if res.Tracks, err = s.LoadTrackMap(runID); err != nil {
			return nil, err
		}
	}
	if res.Events, err = s.LoadEvents(runID); err != nil {
		return nil, err
	}
	if res.TTC, err = s.LoadTTC(runID); err != nil {
		return nil, err
	}
	return res, nil
}
