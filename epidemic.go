package fredsim

import (
	"math"
	"sync"
)

// maxImportRetryAttempts bounds spec.md section 7's "engine retries with
// expanded parameters up to a bounded number of attempts" policy for an
// import seed whose candidate pool comes up short. importRadiusExpansionFactor
// is how much a radius-restricted seed's search radius grows each retry.
const (
	maxImportRetryAttempts      = 3
	importRadiusExpansionFactor = 2.0
)

// GenericEpidemic is the shared bookkeeping every condition kind needs:
// exogenous imports, draining due transitions, maintaining the active
// and infectious rosters, and the daily counters a Report snapshots.
// HIV and Markov conditions embed this and override only the hooks
// their specialisation changes, per spec.md section 9's capability
// interface plus tagged variant guidance.
type GenericEpidemic struct {
	ConditionID int

	world  *World
	active []*Person

	newExposures    int
	newSymptomatic  int
	newFatalities   int
	totalInfections int
}

// NewGenericEpidemic creates bookkeeping bound to conditionID. The
// Condition itself is looked up from the World at Update time, so
// construction order between Condition and Epidemic does not matter.
func NewGenericEpidemic(conditionID int) *GenericEpidemic {
	return &GenericEpidemic{ConditionID: conditionID}
}

// Prepare records the World reference every later hook needs; the
// natural history and transmission tables themselves are loaded by
// Condition setup before Prepare runs.
func (e *GenericEpidemic) Prepare(w *World) error {
	e.world = w
	return nil
}

// Update runs the fixed daily sequence spec.md section 4.4 describes:
// reset the per-day counters, import exogenous seeds, advance due
// transitions (terminating fatal cases), refresh per-group infectious
// rosters, invoke the condition's Transmission strategy, then run the
// end-of-day bookkeeping.
func (e *GenericEpidemic) Update(w *World, day int) error {
	e.world = w
	c, ok := w.Conditions.Get(e.ConditionID)
	if !ok {
		return configErrorf("epidemic bound to unknown condition id %d", e.ConditionID)
	}

	e.newExposures, e.newSymptomatic, e.newFatalities = 0, 0, 0

	e.importSeeds(w, c, day)
	e.advanceTransitions(w, c, day)
	e.refreshInfectiousLists(c)

	if c.Transmission != nil {
		for _, ex := range c.Transmission.Spread(w, c, day) {
			e.infect(w, c, ex.Person, day, ex.State, ex.Infector, ex.Group)
		}
	}

	e.endOfDay(c, day)
	return nil
}

// TerminatePerson cancels p's own pending transition for this condition.
// Membership and link teardown is World's responsibility (spec.md
// section 5); this hook only needs to stop a now-meaningless future
// event from firing against a dead agent.
func (e *GenericEpidemic) TerminatePerson(p *Person, day int) {
	if e.world == nil {
		return
	}
	h := p.Health(e.ConditionID)
	e.world.EventsFor(e.ConditionID).Remove(h.NextTransitionStep, p)
}

// Report returns today's counters and compacts the active roster,
// dropping agents who are dead or no longer infected.
func (e *GenericEpidemic) Report(day int) EpidemicReport {
	kept := e.active[:0]
	var currentActive, currentInfectious, currentSymptomatic int
	for _, p := range e.active {
		if !p.Alive() {
			continue
		}
		h := p.Health(e.ConditionID)
		if !h.IsInfected {
			continue
		}
		kept = append(kept, p)
		currentActive++
		if p.IsInfectious(e.ConditionID) {
			currentInfectious++
		}
		if h.SymptomsLevel != SymptomNone {
			currentSymptomatic++
		}
	}
	e.active = kept
	return EpidemicReport{
		Day:                day,
		NewExposures:       e.newExposures,
		NewSymptomatic:     e.newSymptomatic,
		NewCaseFatalities:  e.newFatalities,
		CurrentActive:      currentActive,
		CurrentInfectious:  currentInfectious,
		CurrentSymptomatic: currentSymptomatic,
		TotalInfections:    e.totalInfections,
	}
}

// importSeeds introduces exogenous cases scheduled for today (spec.md
// section 4.4, section 6's import file), optionally restricted by age
// and a geographic radius (SPEC_FULL.md supplement 5).
func (e *GenericEpidemic) importSeeds(w *World, c *Condition, day int) {
	for _, seed := range c.NaturalHistory.Imports {
		if seed.Day != day {
			continue
		}
		var lastPicked []*Person
		picked, ok := retryWithExpansion(maxImportRetryAttempts, func(round int) ([]*Person, bool) {
			trial := seed
			if trial.HasRadius {
				trial.RadiusKm *= math.Pow(importRadiusExpansionFactor, float64(round))
			}
			candidates := e.eligibleImportCandidates(w, c, trial)
			lastPicked = sampleWithoutReplacement(w.DemographicsRNG(), candidates, trial.Count)
			return lastPicked, len(lastPicked) >= trial.Count
		}, func() {
			w.Warnf("condition %q import on day %d: wanted %d candidates, found %d after %d attempts", c.Name, day, seed.Count, len(lastPicked), maxImportRetryAttempts)
		})
		if !ok {
			picked = lastPicked
		}
		for _, p := range picked {
			e.infect(w, c, p, day, seed.State, nil, nil)
		}
	}
}

func (e *GenericEpidemic) eligibleImportCandidates(w *World, c *Condition, seed ImportSeed) []*Person {
	var out []*Person
	for _, p := range w.Population() {
		if !p.Alive() || !p.Health(c.ID).IsSusceptible() {
			continue
		}
		if seed.MinAge > 0 && p.Age < seed.MinAge {
			continue
		}
		if seed.MaxAge > 0 && p.Age > seed.MaxAge {
			continue
		}
		if seed.HasRadius && haversineKm(seed.CenterLat, seed.CenterLon, p.Lat, p.Lon) > seed.RadiusKm {
			continue
		}
		out = append(out, p)
	}
	return out
}

// advanceTransitions drains today's scheduled events and applies each
// one: a due event in a fatal state terminates the agent; otherwise the
// next state and wait time are drawn and, unless absorbing, rescheduled.
func (e *GenericEpidemic) advanceTransitions(w *World, c *Condition, day int) {
	due := w.EventsFor(c.ID).Drain(day)
	for _, p := range due {
		if !p.Alive() {
			continue
		}
		h := p.Health(c.ID)
		if h.State == UnsetState {
			continue
		}
		if c.NaturalHistory.Fatal(h.State) {
			e.newFatalities++
			w.TerminatePerson(p, day)
			continue
		}

		next, _, _ := c.NaturalHistory.SelectTransition(p.Age, h.State)
		h.LastTransitionStep = day
		if next != h.State {
			wasSymptomatic := h.SymptomsLevel != SymptomNone
			h.State = next
			h.Infectivity = c.NaturalHistory.Infectivity(next)
			h.Susceptibility = c.NaturalHistory.Susceptibility(next)
			h.SymptomsLevel = c.NaturalHistory.SymptomLevel(next)
			if !wasSymptomatic && h.SymptomsLevel != SymptomNone {
				e.newSymptomatic++
			}
			e.applyPlaceAction(w, c, p, next)
			e.logEvent(w, c, p, day)
		}

		// The departure schedule belongs to the state the agent now
		// occupies, not the one it just left.
		_, wait, absorbing := c.NaturalHistory.SelectTransition(p.Age, h.State)
		if absorbing {
			h.NextTransitionStep = -1
			h.IsInfected = false
			h.IsRecovered = true
			h.IsImmune = h.Susceptibility <= 0
		} else {
			h.NextTransitionStep = day + wait
			w.EventsFor(c.ID).Add(day+wait, p)
		}
	}
}

// infect sets up a newly exposed agent's health record, applies any
// place action the entry state carries, enrolls it on the active
// roster, and schedules its first future transition.
func (e *GenericEpidemic) infect(w *World, c *Condition, p *Person, day, state int, infector *Person, group MixingGroup) {
	h := p.Health(c.ID)
	h.State = state
	h.IsInfected = true
	h.IsRecovered = false
	h.OnsetStep = day
	h.LastTransitionStep = day
	h.Infector = infector
	h.ExposureGroup = group
	h.Infectivity = c.NaturalHistory.Infectivity(state)
	h.Susceptibility = c.NaturalHistory.Susceptibility(state)
	h.SymptomsLevel = c.NaturalHistory.SymptomLevel(state)

	if infector != nil {
		infector.Health(c.ID).NumInfectees++
	}

	e.active = append(e.active, p)
	e.newExposures++
	e.totalInfections++
	if h.SymptomsLevel != SymptomNone {
		e.newSymptomatic++
	}

	e.applyPlaceAction(w, c, p, state)
	e.logEvent(w, c, p, day)

	next, wait, absorbing := c.NaturalHistory.SelectTransition(p.Age, state)
	if absorbing {
		h.NextTransitionStep = -1
	} else {
		h.NextTransitionStep = day + wait
		w.EventsFor(c.ID).Add(day+wait, p)
	}
	_ = next
}

// applyPlaceAction implements the supplemented state-driven
// place-join/place-quit hook (SPEC_FULL.md supplement 2): entering a
// state carrying an Action either enrolls the agent in a randomly
// chosen place of the target Group_Type (e.g. an isolation ward) or
// removes it from whichever of its current places share that type
// (e.g. quitting school/work while symptomatic).
func (e *GenericEpidemic) applyPlaceAction(w *World, c *Condition, p *Person, state int) {
	action := c.NaturalHistory.States[state].Action
	if action == nil {
		return
	}
	if action.Join {
		groups := w.GroupsOfType(action.GroupTypeID)
		if len(groups) == 0 {
			return
		}
		target := groups[w.DemographicsRNG().Intn(len(groups))]
		if _, already := p.MemberIndexIn(target); !already {
			target.AddMember(p)
		}
		return
	}
	for _, g := range p.Memberships() {
		if g.TypeID() == action.GroupTypeID {
			g.RemoveMember(p)
			return
		}
	}
}

// logEvent emits a per-agent health-event log line (spec.md section 7),
// a no-op when the World carries no logger.
func (e *GenericEpidemic) logEvent(w *World, c *Condition, p *Person, day int) {
	if w.Logger == nil {
		return
	}
	h := p.Health(c.ID)
	w.Logger.WriteHealthEvent(HealthEvent{
		Day:         day,
		PersonID:    p.ID(),
		ConditionID: c.ID,
		State:       h.State,
		Infected:    h.IsInfected,
		Symptomatic: h.SymptomsLevel != SymptomNone,
	})
}

// refreshInfectiousLists populates every mixing group's per-condition
// infectious roster for today, so Transmission strategies can iterate
// "every group holding at least one infectious member" (spec.md
// section 4.5) without scanning the whole population themselves.
//
// Per spec.md section 5, this data-parallel fan-out is safe because the
// per-agent read (p.IsInfectious, p.Memberships) touches only that
// agent's own disjoint fields; only the shared per-group infectious
// list is a write target, so each goroutine stages its own (group,
// person) pairs and a single goroutine merges them under a mutex after
// the WaitGroup barrier, mirroring the teacher's worker-goroutine +
// WaitGroup + staged-channel pattern in si_simulation.go's Update.
func (e *GenericEpidemic) refreshInfectiousLists(c *Condition) {
	const chunkSize = 64
	if len(e.active) <= chunkSize {
		for _, p := range e.active {
			if !p.Alive() || !p.IsInfectious(c.ID) {
				continue
			}
			for _, g := range p.Memberships() {
				g.AddInfectious(c.ID, p)
			}
		}
		return
	}

	type pair struct {
		group MixingGroup
		p     *Person
	}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for start := 0; start < len(e.active); start += chunkSize {
		end := start + chunkSize
		if end > len(e.active) {
			end = len(e.active)
		}
		wg.Add(1)
		go func(chunk []*Person) {
			defer wg.Done()
			var staged []pair
			for _, p := range chunk {
				if !p.Alive() || !p.IsInfectious(c.ID) {
					continue
				}
				for _, g := range p.Memberships() {
					staged = append(staged, pair{group: g, p: p})
				}
			}
			mu.Lock()
			for _, s := range staged {
				s.group.AddInfectious(c.ID, s.p)
			}
			mu.Unlock()
		}(e.active[start:end])
	}
	wg.Wait()
}

// endOfDay clears the infectious rosters populated above and advances
// every touched group's own per-day counters, so tomorrow starts clean.
func (e *GenericEpidemic) endOfDay(c *Condition, day int) {
	for _, p := range e.active {
		for _, g := range p.Memberships() {
			g.ClearInfectious(c.ID)
			g.AdvanceDay(day)
		}
	}
}
