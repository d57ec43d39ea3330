package fredsim

import "math/rand"

// DrugClass is a bitmask over the six antiretroviral drug classes
// spec.md section 4.4 names, used to track cross-resistance accrual
// (SPEC_FULL.md supplement 3, grounded on
// original_source/src/HIV_Infection.cc).
type DrugClass uint8

const (
	DrugNRTI DrugClass = 1 << iota
	DrugNNRTI
	DrugPI
	DrugInstI
	DrugEntryInhibitor
	DrugBoostingAgent
)

// ResourceSetting selects which regimen-change policy and cost table an
// HIVEpidemic applies: the resource-poor and resource-rich branches
// differ only in that policy, per spec.md section 4.4.
type ResourceSetting int

const (
	ResourcePoor ResourceSetting = iota
	ResourceRich
)

// CD4 bucket and viral-load (log10) bucket boundaries, used both to
// index the mortality lookup table and to decide treatment failure.
const (
	cd4BucketCount = 4 // >=500, 350-499, 200-349, <200
	vlBucketCount  = 4 // <1e3, 1e3-1e4, 1e4-1e5, >=1e5
)

// drugClassFromName maps a config keyword to its DrugClass bit, per
// SPEC_FULL.md supplement 3's cross-resistance table. Unrecognized
// names are silently dropped, since escalation_classes is an optional
// config list and a typo there should not abort the whole run.
func drugClassFromName(name string) DrugClass {
	switch name {
	case "nrti":
		return DrugNRTI
	case "nnrti":
		return DrugNNRTI
	case "pi":
		return DrugPI
	case "instI", "insti":
		return DrugInstI
	case "entryInhibitor", "entry_inhibitor":
		return DrugEntryInhibitor
	case "boostingAgent", "boosting_agent":
		return DrugBoostingAgent
	default:
		return 0
	}
}

func cd4Bucket(cd4 float64) int {
	switch {
	case cd4 >= 500:
		return 0
	case cd4 >= 350:
		return 1
	case cd4 >= 200:
		return 2
	default:
		return 3
	}
}

func vlBucket(log10VL float64) int {
	switch {
	case log10VL < 3:
		return 0
	case log10VL < 4:
		return 1
	case log10VL < 5:
		return 2
	default:
		return 3
	}
}

// Regimen is one antiretroviral combination: the three drug classes it
// draws on (an initial regimen is three-drug, per spec.md section 4.4)
// plus an escalation step taken on virologic failure.
type Regimen struct {
	Classes    DrugClass
	Line       int // 0 = initial, increments on each escalation
	CostPerDay float64
}

// HIVPatientRecord is the per-infected-agent trajectory state spec.md
// section 4.4 describes: CD4 and log10 viral-load trajectories, current
// regimen, accrued resistance, and the acute-phase window.
type HIVPatientRecord struct {
	ExposureDay int
	AcuteEndDay int // ExposureDay + uniform(120,180)

	CD4        float64
	Log10VL    float64
	OnTherapy  bool
	TherapyDay int // day therapy started, -1 if never
	Regimen    *Regimen
	Resistance DrugClass // classes the virus has accrued resistance to
	Adherence  float64   // [0,1], drives mutation/resistance accrual rate

	AIDS bool

	// escalationDeferred tracks whether a resource-poor patient's first
	// virologic failure on the initial regimen has already been deferred,
	// so the second detected failure escalates rather than deferring
	// indefinitely.
	escalationDeferred bool
}

// HIVEpidemic overlays the patient-level progression model on the
// sexual-partner network, embedding GenericEpidemic for the shared
// active/infectious/counter bookkeeping (spec.md section 9's
// capability-interface guidance) and contributing the CD4/VL
// trajectory, regimen selection, and mortality hooks spec.md section
// 4.4 describes. Grounded on original_source/src/HIV_Infection.cc and
// HIV_Natural_History.h, filtered to a bounded reimplementation.
type HIVEpidemic struct {
	*GenericEpidemic

	Setting ResourceSetting

	Mortality *MortalityTable // keyed by HIVMortalityKey
	AIDSCD4Threshold float64  // CD4 below this (with other criteria) marks AIDS

	// InitialRegimenClasses is the three-drug combination newly-treated
	// patients start on.
	InitialRegimenClasses DrugClass
	// EscalationClasses lists, in order, the drug classes layered on at
	// each successive line of therapy after virologic failure.
	EscalationClasses []DrugClass

	records map[*Person]*HIVPatientRecord
}

// NewHIVEpidemic creates an HIV-specialised epidemic for conditionID.
func NewHIVEpidemic(conditionID int, setting ResourceSetting, mortality *MortalityTable) *HIVEpidemic {
	return &HIVEpidemic{
		GenericEpidemic:       NewGenericEpidemic(conditionID),
		Setting:               setting,
		Mortality:             mortality,
		AIDSCD4Threshold:      200,
		InitialRegimenClasses: DrugNRTI | DrugNNRTI | DrugPI,
		records:               make(map[*Person]*HIVPatientRecord),
	}
}

// Prepare delegates to GenericEpidemic; the patient record map starts
// empty and is populated as agents are exposed.
func (e *HIVEpidemic) Prepare(w *World) error {
	return e.GenericEpidemic.Prepare(w)
}

// OnExposure creates a patient record for a newly infected agent and
// draws its acute-phase window, per spec.md section 4.4: "Acute-phase
// VL is elevated for a uniform-draw 120-180 days post-exposure." The
// GenericEpidemic does not know about it (HIV needs state beyond what
// HealthRecord carries); HIVEpidemic.Update calls it for every active
// infected agent that has no patient record yet and whose onset step is
// that day.
func (e *HIVEpidemic) OnExposure(w *World, p *Person, day int) *HIVPatientRecord {
	acuteDays := 120 + w.HIVRNG().Intn(61)
	rec := &HIVPatientRecord{
		ExposureDay: day,
		AcuteEndDay: day + acuteDays,
		CD4:         900 + w.HIVRNG().Float64()*100,
		Log10VL:     5.5 + w.HIVRNG().Float64(),
		TherapyDay:  -1,
	}
	e.records[p] = rec
	return rec
}

// Record returns p's HIV patient record, if any.
func (e *HIVEpidemic) Record(p *Person) (*HIVPatientRecord, bool) {
	r, ok := e.records[p]
	return r, ok
}

// Update runs the generic daily sequence first (imports, transitions,
// infectious-list refresh, transmission, counters), then advances every
// active patient's CD4/VL trajectory, therapy status, and fatality
// check, per spec.md section 4.4.
func (e *HIVEpidemic) Update(w *World, day int) error {
	if err := e.GenericEpidemic.Update(w, day); err != nil {
		return err
	}
	for _, p := range e.GenericEpidemic.active {
		rec, ok := e.records[p]
		if !ok {
			// GenericEpidemic.Update's own infect path has no hook for
			// HIV-specific state: a patient record is created lazily here,
			// the first time this newly exposed agent is seen.
			h := p.Health(e.ConditionID)
			if !h.IsInfected || h.OnsetStep != day {
				continue
			}
			rec = e.OnExposure(w, p, day)
		}
		e.advancePatient(w, p, rec, day)
	}
	return nil
}

// advancePatient implements the per-day CD4/VL random walk, regimen
// escalation on virologic failure, adherence-driven resistance accrual,
// and the joint mortality lookup, in that order.
func (e *HIVEpidemic) advancePatient(w *World, p *Person, rec *HIVPatientRecord, day int) {
	rng := w.HIVRNG()

	if day < rec.AcuteEndDay {
		rec.Log10VL = 5.0 + 0.5*rng.Float64()
	} else if rec.OnTherapy {
		e.applyTherapyEffect(rng, rec)
	} else {
		rec.CD4 -= 2.0 + rng.Float64()*3
		rec.Log10VL += (rng.Float64() - 0.5) * 0.05
	}
	if rec.CD4 < 0 {
		rec.CD4 = 0
	}
	if rec.Log10VL < 0 {
		rec.Log10VL = 0
	}

	if !rec.AIDS && rec.CD4 < e.AIDSCD4Threshold {
		rec.AIDS = true
	}

	if !rec.OnTherapy && rec.AIDS {
		e.startTherapy(rec, day)
	} else if rec.OnTherapy {
		e.accrueResistance(rng, rec)
		if e.virologicFailure(rec) {
			e.escalateRegimen(rec)
		}
	}

	e.checkFatality(w, p, rec, day)
}

// applyTherapyEffect models effective suppression absent resistance:
// CD4 recovers, viral load declines toward the suppression floor,
// proportionally slower as accrued resistance covers more of the
// current regimen's drug classes.
func (e *HIVEpidemic) applyTherapyEffect(rng *rand.Rand, rec *HIVPatientRecord) {
	resistantFraction := 0.0
	if rec.Regimen != nil && rec.Regimen.Classes != 0 {
		resistantFraction = float64(popcount(rec.Resistance&rec.Regimen.Classes)) / float64(popcount(rec.Regimen.Classes))
	}
	suppression := 1.0 - resistantFraction
	rec.CD4 += suppression * (5 + rng.Float64()*3)
	rec.Log10VL -= suppression * (0.3 + rng.Float64()*0.1)
	if resistantFraction > 0.5 {
		rec.Log10VL += 0.1 // failing regimen: VL creeps back up
	}
}

func popcount(d DrugClass) int {
	n := 0
	for d != 0 {
		n += int(d & 1)
		d >>= 1
	}
	return n
}

// startTherapy places a patient on the three-drug initial regimen, per
// spec.md section 4.4.
func (e *HIVEpidemic) startTherapy(rec *HIVPatientRecord, day int) {
	rec.OnTherapy = true
	rec.TherapyDay = day
	rec.Adherence = 0.85
	rec.Regimen = &Regimen{Classes: e.InitialRegimenClasses, Line: 0, CostPerDay: e.regimenCost(0)}
}

// regimenCost differs between resource settings only in magnitude,
// mirroring spec.md section 4.4's "resource-poor and resource-rich
// branches differ only in regimen-change policy and cost tables."
func (e *HIVEpidemic) regimenCost(line int) float64 {
	base := 1.0 + float64(line)*0.5
	if e.Setting == ResourceRich {
		return base * 4
	}
	return base
}

// accrueResistance adds resistance to the current regimen's classes at
// a rate inversely proportional to adherence, per spec.md section 4.4:
// "adherence-driven mutation accrual."
func (e *HIVEpidemic) accrueResistance(rng *rand.Rand, rec *HIVPatientRecord) {
	if rec.Regimen == nil {
		return
	}
	missRate := 1 - rec.Adherence
	if rng.Float64() < missRate*0.02 {
		rec.Resistance |= firstUnresistedClass(rec.Regimen.Classes, rec.Resistance)
	}
}

func firstUnresistedClass(classes, resistance DrugClass) DrugClass {
	for bit := DrugClass(1); bit != 0; bit <<= 1 {
		if classes&bit != 0 && resistance&bit == 0 {
			return bit
		}
	}
	return 0
}

// virologicFailure reports whether the patient's viral load indicates
// the current regimen is failing, triggering escalation policy.
func (e *HIVEpidemic) virologicFailure(rec *HIVPatientRecord) bool {
	return rec.Log10VL >= 4.0
}

// escalateRegimen layers on the next configured drug class, per spec.md
// section 4.4's "escalation on failure" and SPEC_FULL.md supplement 3's
// cross-resistance bookkeeping. In resource-poor settings the first
// detected failure on the initial regimen (line 0) is deferred and the
// next detected failure escalates; failures on later lines, and every
// failure in resource-rich settings, escalate at once. Once every
// EscalationClasses entry is used, the regimen stays as it is.
func (e *HIVEpidemic) escalateRegimen(rec *HIVPatientRecord) {
	if e.Setting == ResourcePoor && rec.Regimen.Line == 0 && !rec.escalationDeferred {
		rec.escalationDeferred = true
		return
	}
	nextLine := rec.Regimen.Line + 1
	if nextLine-1 >= len(e.EscalationClasses) {
		return
	}
	rec.Regimen = &Regimen{
		Classes:    rec.Regimen.Classes | e.EscalationClasses[nextLine-1],
		Line:       nextLine,
		CostPerDay: e.regimenCost(nextLine),
	}
	rec.escalationDeferred = false
}

// checkFatality looks up the joint (age_group, time_since_therapy,
// CD4 bucket, VL bucket) mortality rate and rolls a Bernoulli trial,
// applying an AIDS multiplier, per spec.md section 4.4.
func (e *HIVEpidemic) checkFatality(w *World, p *Person, rec *HIVPatientRecord, day int) {
	if e.Mortality == nil {
		return
	}
	yearsSinceTherapy := 0
	if rec.OnTherapy {
		yearsSinceTherapy = (day - rec.TherapyDay) / 365
	}
	key := HIVMortalityKey(AgeBracket(p.Age), yearsSinceTherapy, cd4Bucket(rec.CD4), vlBucket(rec.Log10VL))
	rate, ok := e.Mortality.Lookup(key)
	if !ok {
		return
	}
	if rec.AIDS {
		rate *= 2.0
	}
	if bernoulli(rate) {
		e.GenericEpidemic.newFatalities++
		w.TerminatePerson(p, day)
		delete(e.records, p)
	}
}

// TerminatePerson drops the HIV patient record in addition to the
// generic per-condition event cancellation.
func (e *HIVEpidemic) TerminatePerson(p *Person, day int) {
	e.GenericEpidemic.TerminatePerson(p, day)
	delete(e.records, p)
}
