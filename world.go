package fredsim

import (
	"log"
	"math/rand"

	"github.com/pkg/errors"
)

// World is the explicit context threaded through every update entry
// point, replacing the file-static singletons (condition list, place
// list, population, global date) spec.md section 9 flags in the
// original source. Tests instantiate their own World.
type World struct {
	Conditions *ConditionList

	people []*Person

	groupsByType map[int][]MixingGroup
	networks     map[int]*Network // keyed by Condition.ID for sexual-mode conditions

	eventsByCondition map[int]*EventQueue

	GroupTypes map[int]*GroupType

	sexualNetworks []*sexualNetworkDriver

	// demographicsRNG and hivRNG are the two independent named
	// generators spec.md section 9 requires: "maintain one named
	// generator per subsystem and require every draw to go through its
	// owning generator to preserve reproducibility."
	demographicsRNG *rand.Rand
	hivRNG          *rand.Rand

	Day             int
	HorizonDays     int
	StepsPerDay     int
	Logger          DataLogger
	Warnings        int
	prepared        bool
}

// NewWorld creates an empty World from a validated Config.
func NewWorld(cfg *Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	w := &World{
		Conditions:        NewConditionList(),
		groupsByType:      make(map[int][]MixingGroup),
		networks:          make(map[int]*Network),
		eventsByCondition: make(map[int]*EventQueue),
		GroupTypes:        make(map[int]*GroupType),
		StepsPerDay:       24,
		HorizonDays:       cfg.Simulation.Days,
		demographicsRNG:   rand.New(rand.NewSource(cfg.Simulation.DemographicsSeed)),
		hivRNG:            rand.New(rand.NewSource(cfg.Simulation.HIVSeed)),
	}
	return w, nil
}

// DemographicsRNG returns the generator owning demographic and
// place/network-mixing draws.
func (w *World) DemographicsRNG() *rand.Rand { return w.demographicsRNG }

// HIVRNG returns the generator owning HIV patient-trajectory draws.
func (w *World) HIVRNG() *rand.Rand { return w.hivRNG }

// AddPerson registers a new agent with the population store. The
// population store is the sole owner of Person values (spec.md
// section 9).
func (w *World) AddPerson(p *Person) {
	w.people = append(w.people, p)
}

// Population returns every agent added to the World, including agents
// that have since been terminated (check Alive()).
func (w *World) Population() []*Person {
	return w.people
}

// RegisterGroup adds group to the set of mixing groups sharing its
// type-id, so Transmission strategies can iterate "every Mixing_Group
// holding at least one infectious member today" per spec.md section 4.5.
func (w *World) RegisterGroup(group MixingGroup) {
	w.groupsByType[group.TypeID()] = append(w.groupsByType[group.TypeID()], group)
}

// GroupsOfType returns every mixing group tagged with typeID.
func (w *World) GroupsOfType(typeID int) []MixingGroup {
	return w.groupsByType[typeID]
}

// RegisterNetwork binds conditionID's transmission network.
func (w *World) RegisterNetwork(conditionID int, n *Network) {
	w.networks[conditionID] = n
}

// NetworkFor returns the transmission network bound to conditionID, if
// any.
func (w *World) NetworkFor(conditionID int) (*Network, bool) {
	n, ok := w.networks[conditionID]
	return n, ok
}

// sexualNetworkDriver binds a SexualNetwork to the cadence World.Update
// drives it at: an annual matching tick (spec.md section 4.2 points 1-5)
// and a daily relationship-advance tick (point 6).
type sexualNetworkDriver struct {
	network           *SexualNetwork
	matchIntervalDays int
	actsPerWeek       int
	institutional     func(*Person) bool
}

// RegisterSexualNetwork binds n to the World so that Update drives its
// annual MatchPartners tick and daily AdvanceRelationships tick, per
// spec.md section 4.2. matchIntervalDays <= 0 defaults to 365 (one
// matching pass per simulated year). institutional may be nil, in which
// case each Person's own Institutional flag decides eligibility.
func (w *World) RegisterSexualNetwork(n *SexualNetwork, matchIntervalDays, actsPerWeek int, institutional func(*Person) bool) {
	w.RegisterGroup(n)
	if matchIntervalDays <= 0 {
		matchIntervalDays = 365
	}
	if institutional == nil {
		institutional = func(p *Person) bool { return p.Institutional }
	}
	w.sexualNetworks = append(w.sexualNetworks, &sexualNetworkDriver{
		network:           n,
		matchIntervalDays: matchIntervalDays,
		actsPerWeek:       actsPerWeek,
		institutional:     institutional,
	})
}

// EventsFor returns (creating if necessary) the per-condition event
// queue driving deferred state transitions for conditionID. Each
// condition gets its own ring so that cancelling a pending transition
// for one condition never scans another condition's entries.
func (w *World) EventsFor(conditionID int) *EventQueue {
	q, ok := w.eventsByCondition[conditionID]
	if !ok {
		q = NewEventQueue(w.HorizonDays * w.StepsPerDay)
		w.eventsByCondition[conditionID] = q
	}
	return q
}

// Warnf records a benign anomaly (spec.md section 7): execution
// continues, but the count is surfaced in the end-of-run report.
func (w *World) Warnf(format string, args ...interface{}) {
	w.Warnings++
	log.Printf("warning: "+format, args...)
}

// Prepare runs every registered Condition's Epidemic.Prepare. Natural
// histories and mortality tables are loaded earlier, when the Conditions
// are built, not here. After
// Prepare returns, the World's rate tables and parameter maps are
// treated as immutable (spec.md section 5).
func (w *World) Prepare() error {
	for _, c := range w.Conditions.All() {
		if err := c.Epidemic.Prepare(w); err != nil {
			return errors.Wrapf(err, "preparing condition %q", c.Name)
		}
	}
	w.prepared = true
	return nil
}

// Update advances the simulation by one day, running the fixed sequence
// spec.md section 5 requires: demographic updates, then per-condition
// epidemic updates in condition-id order, then a logger snapshot. Each
// condition's own Update performs its internal import/transition/active/
// infectious/transmission/counter sequence (spec.md section 4.4).
func (w *World) Update(day int) error {
	if !w.prepared {
		return configErrorf("World.Update called before Prepare")
	}
	w.Day = day

	// Drive every registered sexual-partner network's annual matching
	// tick and daily relationship advance before the per-condition
	// update runs, so that NetworkTransmission.Spread sees today's
	// ActToday flags and freshly formed partnerships (spec.md section
	// 4.2 points 1-6).
	for _, d := range w.sexualNetworks {
		if day%d.matchIntervalDays == 0 {
			d.network.MatchPartners(day, w.people, d.institutional)
			if w.Logger != nil {
				w.Logger.WritePartnerCrossTab(day, d.network.CrossTab())
			}
		}
		d.network.AdvanceRelationships(day, d.actsPerWeek)
	}

	for _, c := range w.Conditions.All() {
		if err := c.Epidemic.Update(w, day); err != nil {
			return errors.Wrapf(err, "updating condition %q on day %d", c.Name, day)
		}
		if w.Logger != nil {
			w.Logger.WriteCounters(c.ID, c.Epidemic.Report(day))
		}
	}
	return nil
}

// TerminatePerson cancels every pending transition for p across every
// condition, then unwinds its memberships and network links, per
// spec.md section 5: "When an agent dies, all its pending transitions
// (one per condition) are cancelled before memberships are unwound."
func (w *World) TerminatePerson(p *Person, day int) {
	for _, c := range w.Conditions.All() {
		c.Epidemic.TerminatePerson(p, day)
	}
	p.terminate()
}

// Finish closes the logger, if any, and returns its error. It does not
// report the warning count; that stays in Warnings for the caller.
func (w *World) Finish() error {
	if w.Logger != nil {
		return w.Logger.Close()
	}
	return nil
}
