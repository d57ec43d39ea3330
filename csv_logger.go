package fredsim

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CSVLogger is a DataLogger that writes simulation output as
// comma-delimited files, one per record kind, adapted from the
// teacher's CSVLogger in csv_logger.go.
type CSVLogger struct {
	countersPath  string
	eventsPath    string
	crossTabPath  string
}

// NewCSVLogger creates a logger writing under basepath (a directory or
// a file-name prefix), tagged with run index i the way the teacher's
// NewCSVLogger/SetBasePath distinguish repeated realizations.
func NewCSVLogger(basepath string, i int) *CSVLogger {
	l := new(CSVLogger)
	l.setBasePath(basepath, i)
	return l
}

func (l *CSVLogger) setBasePath(basepath string, i int) {
	if info, err := os.Stat(basepath); err == nil && info.IsDir() {
		basepath = filepath.Join(basepath, fmt.Sprintf("log.%03d", i))
	}
	trimmed := strings.TrimSuffix(basepath, ".")
	l.countersPath = trimmed + fmt.Sprintf(".%03d.counters.csv", i)
	l.eventsPath = trimmed + fmt.Sprintf(".%03d.events.csv", i)
	l.crossTabPath = trimmed + fmt.Sprintf(".%03d.partners.csv", i)
}

// Init creates the CSV files and writes their header rows.
func (l *CSVLogger) Init() error {
	if err := newFile(l.countersPath, []byte("day,conditionID,newExposures,newSymptomatic,newCaseFatalities,currentActive,currentInfectious,currentSymptomatic,totalInfections\n")); err != nil {
		return err
	}
	if err := newFile(l.eventsPath, []byte("day,personID,conditionID,state,infected,symptomatic\n")); err != nil {
		return err
	}
	return newFile(l.crossTabPath, []byte("day,bracketA,bracketB,count\n"))
}

// WriteCounters appends one condition's daily snapshot.
func (l *CSVLogger) WriteCounters(conditionID int, r EpidemicReport) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d,%d,%d,%d,%d,%d,%d,%d,%d\n",
		r.Day, conditionID, r.NewExposures, r.NewSymptomatic, r.NewCaseFatalities,
		r.CurrentActive, r.CurrentInfectious, r.CurrentSymptomatic, r.TotalInfections)
	appendToFile(l.countersPath, b.Bytes())
}

// WriteHealthEvent appends one agent's state transition.
func (l *CSVLogger) WriteHealthEvent(evt HealthEvent) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d,%s,%d,%d,%t,%t\n",
		evt.Day, evt.PersonID.String(), evt.ConditionID, evt.State, evt.Infected, evt.Symptomatic)
	appendToFile(l.eventsPath, b.Bytes())
}

// WritePartnerCrossTab appends one day's 3x3 age-bracket pairing counts.
func (l *CSVLogger) WritePartnerCrossTab(day int, tab PartnerCrossTab) {
	var b bytes.Buffer
	for a := 0; a < 3; a++ {
		for bIdx := 0; bIdx < 3; bIdx++ {
			if tab.Counts[a][bIdx] == 0 {
				continue
			}
			fmt.Fprintf(&b, "%d,%d,%d,%d\n", day, a, bIdx, tab.Counts[a][bIdx])
		}
	}
	appendToFile(l.crossTabPath, b.Bytes())
}

// Close is a no-op: CSVLogger holds no long-lived handles between
// writes.
func (l *CSVLogger) Close() error { return nil }
