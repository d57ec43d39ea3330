package fredsim

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLogger is a DataLogger that writes simulation output to a
// SQLite database, adapted from the teacher's SQLiteLogger in
// sqlite_logger.go: one table per record kind, tagged by run instance
// so repeated realizations share a database file without colliding.
type SQLiteLogger struct {
	db         *sql.DB
	instanceID int

	insertCounters *sql.Stmt
	insertEvent    *sql.Stmt
	insertCrossTab *sql.Stmt
}

// NewSQLiteLogger opens (creating if necessary) a WAL-mode SQLite
// database at path, tagged with run index i.
func NewSQLiteLogger(path string, i int) (*SQLiteLogger, error) {
	db, err := openSQLiteDBOptimized(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteLogger{db: db, instanceID: i}, nil
}

func openSQLiteDBOptimized(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_locking=NORMAL&_sync=NORMAL", path)
	return sql.Open("sqlite3", dsn)
}

// Init creates this run's tables, suffixed by instance id the way the
// teacher's newTable helper names e.g. Status003.
func (l *SQLiteLogger) Init() error {
	tables := []struct {
		name string
		cols string
	}{
		{"Counters", "(id integer not null primary key, day int, conditionID int, newExposures int, newSymptomatic int, newCaseFatalities int, currentActive int, currentInfectious int, currentSymptomatic int, totalInfections int)"},
		{"HealthEvent", "(id integer not null primary key, day int, personID text, conditionID int, state int, infected int, symptomatic int)"},
		{"PartnerCrossTab", "(id integer not null primary key, day int, bracketA int, bracketB int, count int)"},
	}
	for _, t := range tables {
		name := l.tableName(t.name)
		stmt := fmt.Sprintf("create table if not exists %s %s;", name, t.cols)
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("%q: %s", err, stmt)
		}
	}

	var err error
	l.insertCounters, err = l.db.Prepare(fmt.Sprintf(
		"insert into %s(day, conditionID, newExposures, newSymptomatic, newCaseFatalities, currentActive, currentInfectious, currentSymptomatic, totalInfections) values(?, ?, ?, ?, ?, ?, ?, ?, ?)",
		l.tableName("Counters")))
	if err != nil {
		return err
	}
	l.insertEvent, err = l.db.Prepare(fmt.Sprintf(
		"insert into %s(day, personID, conditionID, state, infected, symptomatic) values(?, ?, ?, ?, ?, ?)",
		l.tableName("HealthEvent")))
	if err != nil {
		return err
	}
	l.insertCrossTab, err = l.db.Prepare(fmt.Sprintf(
		"insert into %s(day, bracketA, bracketB, count) values(?, ?, ?, ?)",
		l.tableName("PartnerCrossTab")))
	return err
}

func (l *SQLiteLogger) tableName(base string) string {
	return strings.ToLower(base) + fmt.Sprintf("_%03d", l.instanceID)
}

// WriteCounters inserts one condition's daily snapshot.
func (l *SQLiteLogger) WriteCounters(conditionID int, r EpidemicReport) {
	if _, err := l.insertCounters.Exec(r.Day, conditionID, r.NewExposures, r.NewSymptomatic,
		r.NewCaseFatalities, r.CurrentActive, r.CurrentInfectious, r.CurrentSymptomatic, r.TotalInfections); err != nil {
		logWriteError("Counters", err)
	}
}

// WriteHealthEvent inserts one agent's state transition.
func (l *SQLiteLogger) WriteHealthEvent(evt HealthEvent) {
	if _, err := l.insertEvent.Exec(evt.Day, evt.PersonID.String(), evt.ConditionID, evt.State,
		boolToInt(evt.Infected), boolToInt(evt.Symptomatic)); err != nil {
		logWriteError("HealthEvent", err)
	}
}

// WritePartnerCrossTab inserts one day's age-bracket pairing counts.
func (l *SQLiteLogger) WritePartnerCrossTab(day int, tab PartnerCrossTab) {
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			if tab.Counts[a][b] == 0 {
				continue
			}
			if _, err := l.insertCrossTab.Exec(day, a, b, tab.Counts[a][b]); err != nil {
				logWriteError("PartnerCrossTab", err)
			}
		}
	}
}

// Close releases the prepared statements and the database handle.
func (l *SQLiteLogger) Close() error {
	for _, stmt := range []*sql.Stmt{l.insertCounters, l.insertEvent, l.insertCrossTab} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return l.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func logWriteError(table string, err error) {
	// Logger writes run on the hot path; a single failed insert should
	// not abort the simulation, so this only surfaces through stderr.
	fmt.Fprintf(os.Stderr, "sqlite logger: %s insert failed: %v\n", table, err)
}
