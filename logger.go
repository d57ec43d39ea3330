package fredsim

import (
	"fmt"
	"os"

	"github.com/segmentio/ksuid"
)

// DataLogger is the general definition of a logger that records
// simulation output, whether to flat files or to a database. Grounded
// on the teacher's DataLogger in logger.go, re-keyed from per-genotype
// writers to the per-day counters, per-event health records, and
// annual partner cross-tabs this domain produces.
type DataLogger interface {
	// Init prepares whatever backing store the logger writes to (e.g.
	// creating files with headers, or creating tables).
	Init() error
	// WriteCounters records one condition's daily epidemic snapshot.
	WriteCounters(conditionID int, report EpidemicReport)
	// WriteHealthEvent records one agent's state transition as one
	// structured record (a CSV row or a table row); no free-text
	// "HEALTH RECORD: ..." line is written.
	WriteHealthEvent(evt HealthEvent)
	// WritePartnerCrossTab records an annual partner-matching
	// cross-tabulation (SPEC_FULL.md supplement 4).
	WritePartnerCrossTab(day int, tab PartnerCrossTab)
	// Close flushes and releases any resources the logger holds.
	Close() error
}

// HealthEvent is one agent's condition-state transition, emitted as a
// single log line (spec.md section 7: "every transition is available
// as a loggable event, not only aggregate counts").
type HealthEvent struct {
	Day         int
	PersonID    ksuid.KSUID
	ConditionID int
	State       int
	Infected    bool
	Symptomatic bool
}

// PartnerCrossTab is a 3x3 count of newly formed partnerships by
// (AgeBracket(a), AgeBracket(b)), the QC report the teacher's
// annual partner-matching diagnostics the distilled spec dropped
// (SPEC_FULL.md supplement 4).
type PartnerCrossTab struct {
	Counts [3][3]int
}

// newFile creates path and fails if it already exists, matching the
// teacher's NewFile in csv_logger.go: loggers never silently overwrite
// a prior run's output.
func newFile(path string, header []byte) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(header); err != nil {
		return err
	}
	return f.Sync()
}

// appendToFile creates path if missing, or appends if it exists,
// matching the teacher's AppendToFile.
func appendToFile(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return err
	}
	return f.Sync()
}
