package journal

import (
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/fair-eva/supervisor/pkg/errors"
)

// Config enables the lifecycle event journal. An empty path disables it.
type Config struct {
	Path string `yaml:"path,omitempty"`
}

// EventType identifies a lifecycle event of a managed process.
type EventType string

const (
	EventStarted    EventType = "started"
	EventExited     EventType = "exited"
	EventTerminated EventType = "terminated"
)

// Event is one journal row.
type Event struct {
	ID        int64     `db:"id" json:"id"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	ProcessID string    `db:"process_id" json:"process_id"`
	Type      EventType `db:"type" json:"type"`
	PID       int       `db:"pid" json:"pid"`
	ExitCode  *int      `db:"exit_code" json:"exit_code,omitempty"`
	Detail    string    `db:"detail" json:"detail,omitempty"`
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TIMESTAMP NOT NULL,
	process_id TEXT NOT NULL,
	type TEXT NOT NULL,
	pid INTEGER NOT NULL,
	exit_code INTEGER,
	detail TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_process_id ON events (process_id);
`

const insertEventSQL = `
INSERT INTO events (timestamp, process_id, type, pid, exit_code, detail)
VALUES (:timestamp, :process_id, :type, :pid, :exit_code, :detail)
`

// Journal persists process lifecycle events in a SQLite database so that the
// container's last run can be inspected after the fact.
type Journal struct {
	db *sqlx.DB
}

// Open connects to (and if needed initializes) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, errors.NewIOError("failed to open journal database", err).WithContext("path", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewInternalError("failed to initialize journal schema", err).WithContext("path", path)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) record(event Event) error {
	event.Timestamp = time.Now().UTC()
	if _, err := j.db.NamedExec(insertEventSQL, event); err != nil {
		return errors.NewIOError("failed to record journal event", err).
			WithContext("process_id", event.ProcessID).
			WithContext("type", string(event.Type))
	}
	return nil
}

// RecordStart journals the launch of a process.
func (j *Journal) RecordStart(processID string, pid int) error {
	return j.record(Event{ProcessID: processID, Type: EventStarted, PID: pid})
}

// RecordExit journals a process exit with its exit code.
func (j *Journal) RecordExit(processID string, pid int, exitCode int) error {
	return j.record(Event{ProcessID: processID, Type: EventExited, PID: pid, ExitCode: &exitCode})
}

// RecordTermination journals a supervisor-initiated termination.
func (j *Journal) RecordTermination(processID string, pid int, detail string) error {
	return j.record(Event{ProcessID: processID, Type: EventTerminated, PID: pid, Detail: detail})
}

// Events returns the most recent events, newest first. A non-positive limit
// returns all events.
func (j *Journal) Events(limit int) ([]Event, error) {
	query := "SELECT * FROM events ORDER BY id DESC"
	var events []Event
	var err error
	if limit > 0 {
		err = j.db.Select(&events, query+" LIMIT ?", limit)
	} else {
		err = j.db.Select(&events, query)
	}
	if err != nil {
		return nil, errors.NewIOError("failed to query journal events", err)
	}
	return events, nil
}

// ProcessEvents returns all events for one process, oldest first.
func (j *Journal) ProcessEvents(processID string) ([]Event, error) {
	var events []Event
	err := j.db.Select(&events, "SELECT * FROM events WHERE process_id = ? ORDER BY id ASC", processID)
	if err != nil {
		return nil, errors.NewIOError("failed to query journal events", err).WithContext("process_id", processID)
	}
	return events, nil
}
