package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Recorder logs runs, window stats and events to a SQLite database so
// several runs can be compared with plain SQL.
type Recorder struct {
	conn  *sqlx.DB
	runID string
}

// RunInfo describes a run when it starts.
type RunInfo struct {
	ID        string    `db:"id"`
	StartedAt time.Time `db:"started_at"`
	Seed      int64     `db:"seed"`
	Species   string    `db:"species"`
	Agents    int       `db:"agents"`
	Frames    int32     `db:"frames"`
}

// OpenRecorder opens or creates the database at path and registers a new run.
// Returns nil if path is empty (recording disabled).
func OpenRecorder(path string, seed int64, species []string, agents int) (*Recorder, error) {
	if path == "" {
		return nil, nil
	}

	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open recorder db: %w", err)
	}

	r := &Recorder{conn: conn, runID: uuid.NewString()}
	if err := r.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	run := RunInfo{
		ID:        r.runID,
		StartedAt: time.Now().UTC(),
		Seed:      seed,
		Species:   strings.Join(species, ","),
		Agents:    agents,
	}
	if _, err := conn.NamedExec(`INSERT INTO runs (id, started_at, seed, species, agents, frames)
		VALUES (:id, :started_at, :seed, :species, :agents, :frames)`, run); err != nil {
		conn.Close()
		return nil, fmt.Errorf("insert run: %w", err)
	}

	return r, nil
}

func (r *Recorder) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		seed INTEGER NOT NULL,
		species TEXT NOT NULL,
		agents INTEGER NOT NULL,
		frames INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS windows (
		run_id TEXT NOT NULL,
		window_start INTEGER NOT NULL,
		window_end INTEGER NOT NULL,
		sim_time REAL NOT NULL,
		agents INTEGER NOT NULL,
		species INTEGER NOT NULL,
		events INTEGER NOT NULL,
		emissions INTEGER NOT NULL,
		cells INTEGER NOT NULL,
		candidates INTEGER NOT NULL,
		matches INTEGER NOT NULL,
		match_rate REAL NOT NULL,
		active_agents INTEGER NOT NULL,
		PRIMARY KEY (run_id, window_end)
	);

	CREATE TABLE IF NOT EXISTS channel_stats (
		run_id TEXT NOT NULL,
		window_end INTEGER NOT NULL,
		channel TEXT NOT NULL,
		mean REAL NOT NULL,
		std REAL NOT NULL,
		min REAL NOT NULL,
		p10 REAL NOT NULL,
		p50 REAL NOT NULL,
		p90 REAL NOT NULL,
		max REAL NOT NULL,
		habituation_mean REAL NOT NULL,
		drift_mean REAL NOT NULL,
		PRIMARY KEY (run_id, window_end, channel)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		frame INTEGER NOT NULL,
		source TEXT NOT NULL,
		name TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		intensity REAL NOT NULL,
		radius REAL NOT NULL,
		candidates INTEGER NOT NULL,
		matched INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_frame ON events(run_id, frame);
	`
	_, err := r.conn.Exec(schema)
	return err
}

// RunID returns the identifier of the run being recorded.
func (r *Recorder) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// RecordWindow stores a window and its channel rows in one transaction.
func (r *Recorder) RecordWindow(s WindowStats) error {
	if r == nil {
		return nil
	}

	tx, err := r.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO windows
		(run_id, window_start, window_end, sim_time, agents, species, events, emissions,
		 cells, candidates, matches, match_rate, active_agents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID, s.WindowStartTick, s.WindowEndTick, s.SimTimeSec, s.Agents, s.Species,
		s.Events, s.Emissions, s.Cells, s.Candidates, s.Matches, s.MatchRate, s.ActiveAgents,
	); err != nil {
		return fmt.Errorf("insert window %d: %w", s.WindowEndTick, err)
	}

	stmt, err := tx.Preparex(`INSERT INTO channel_stats
		(run_id, window_end, channel, mean, std, min, p10, p50, p90, max, habituation_mean, drift_mean)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range s.Channels {
		if _, err := stmt.Exec(r.runID, c.WindowEndTick, c.Channel, c.Mean, c.Std, c.Min,
			c.P10, c.P50, c.P90, c.Max, c.HabituationMean, c.DriftMean); err != nil {
			return fmt.Errorf("insert channel %s: %w", c.Channel, err)
		}
	}

	return tx.Commit()
}

// RecordEvents stores event records in one transaction.
func (r *Recorder) RecordEvents(records []EventRecord) error {
	if r == nil || len(records) == 0 {
		return nil
	}

	tx, err := r.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO events
		(run_id, frame, source, name, x, y, intensity, radius, candidates, matched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range records {
		if _, err := stmt.Exec(r.runID, e.Frame, string(e.Source), e.Name, e.X, e.Y,
			e.Intensity, e.Radius, e.Candidates, e.Matched); err != nil {
			return fmt.Errorf("insert event %s@%d: %w", e.Name, e.Frame, err)
		}
	}

	return tx.Commit()
}

// Windows loads the recorded windows of a run, oldest first.
func (r *Recorder) Windows(runID string) ([]WindowStats, error) {
	var out []WindowStats
	err := r.conn.Select(&out, `SELECT window_start, window_end, sim_time, agents, species,
		events, emissions, cells, candidates, matches, match_rate, active_agents
		FROM windows WHERE run_id = ? ORDER BY window_end`, runID)
	return out, err
}

// ChannelHistory loads one channel's stats for a run, oldest first.
func (r *Recorder) ChannelHistory(runID, channel string) ([]ChannelStats, error) {
	var out []ChannelStats
	err := r.conn.Select(&out, `SELECT window_end, channel, mean, std, min, p10, p50, p90, max,
		habituation_mean, drift_mean
		FROM channel_stats WHERE run_id = ? AND channel = ? ORDER BY window_end`, runID, channel)
	return out, err
}

// Close marks the run's final frame and closes the database.
func (r *Recorder) Close(frames int32) error {
	if r == nil {
		return nil
	}
	_, err := r.conn.Exec(`UPDATE runs SET frames = ? WHERE id = ?`, frames, r.runID)
	if cerr := r.conn.Close(); err == nil {
		err = cerr
	}
	return err
}
