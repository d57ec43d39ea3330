package fredsim

// DemographicClass groups whatever attributes a Bayesian initial-state
// prior is conditioned on (age bracket and sex, the only two
// demographics Person carries that original_source's drug-use model
// conditions on).
type DemographicClass struct {
	AgeBracket int // AgeBracket(age)
	Sex        byte
}

// MarkovInitialStatePrior is the optional Bayesian per-demographic
// initial-state assignment spec.md section 4.4 names for the Markov
// specialisation: a cumulative distribution over states, keyed by
// DemographicClass. Grounded on the teacher's intrahost_model.go
// transition-matrix-as-distribution idiom, re-keyed from genotype
// frequency to demographic class.
type MarkovInitialStatePrior map[DemographicClass][]float64

// SpatialTarget optionally restricts which agents a Markov condition's
// assignment or transition adjustment applies to, per spec.md section
// 9's note that spatial targeting is one of the ad-hoc overrides the
// original source scatters through its matching code; here it is a
// single explicit predicate instead, as spec.md section 9 recommends.
type SpatialTarget func(p *Person) bool

// MarkovEpidemic drives a pure state-machine condition (e.g.
// non-user/asymptomatic/symptomatic drug use) from an age-banded
// transition matrix already carried by NaturalHistory. It embeds
// GenericEpidemic for the shared active/infectious/counter bookkeeping
// (spec.md section 9's tagged-variant guidance) and contributes only
// the initial-state assignment hook, mirroring how the teacher's
// sis_simulation.go/sir_simulation.go embed the base epidemic struct and
// override just the transition-specific behavior.
type MarkovEpidemic struct {
	*GenericEpidemic

	Prior  MarkovInitialStatePrior // nil disables Bayesian assignment
	Target SpatialTarget           // nil applies to the whole population
}

// NewMarkovEpidemic creates a Markov-specialised epidemic for
// conditionID.
func NewMarkovEpidemic(conditionID int) *MarkovEpidemic {
	return &MarkovEpidemic{GenericEpidemic: NewGenericEpidemic(conditionID)}
}

// Prepare assigns every eligible agent's initial state from Prior (if
// set), then delegates to the embedded GenericEpidemic.Prepare.
// Agents left at UnsetState are treated as not-yet-entered the
// condition's state space, per spec.md section 3.
func (e *MarkovEpidemic) Prepare(w *World) error {
	if err := e.GenericEpidemic.Prepare(w); err != nil {
		return err
	}
	if e.Prior == nil {
		return nil
	}
	c, ok := w.Conditions.Get(e.ConditionID)
	if !ok {
		return configErrorf("epidemic bound to unknown condition id %d", e.ConditionID)
	}
	for _, p := range w.Population() {
		if e.Target != nil && !e.Target(p) {
			continue
		}
		e.assignInitialState(w, c, p)
	}
	return nil
}

func (e *MarkovEpidemic) assignInitialState(w *World, c *Condition, p *Person) {
	class := DemographicClass{AgeBracket: AgeBracket(p.Age), Sex: p.Sex}
	dist, ok := e.Prior[class]
	if !ok {
		return
	}
	state := weightedChoice(w.DemographicsRNG(), dist)
	e.GenericEpidemic.infect(w, c, p, 0, state, nil, nil)
}
