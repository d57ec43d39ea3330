package fredsim

import (
	"fmt"
	"math"
	"math/rand"
)

// PlaceAction is the supplemented state-driven place-join/place-quit
// hook from original_source/src/Natural_History.h (e.g. isolating
// symptomatic agents out of school/work places), restored here because
// spec.md section 4.3 names it in one clause but does not specify its
// shape.
type PlaceAction struct {
	Join        bool
	GroupTypeID int
}

// StateSpec is the per-state semantics spec.md section 4.3 lists:
// infectivity, susceptibility, symptom level, fatality, and the
// condition a state transmits (which may differ from the owning
// condition, letting one condition's state spawn exposure to another).
type StateSpec struct {
	Name                string
	Infectivity         float64
	Susceptibility      float64
	SymptomLevel        int
	Fatal               bool
	ConditionToTransmit int // condition id; defaults to the owning condition
	Dormant             bool // no scheduled exit
	Action              *PlaceAction
}

// AgeMap buckets ages into the groups a transition matrix is indexed by.
// Breaks holds the upper-exclusive bound of every group except the last,
// e.g. Breaks = [5, 18, 65] yields groups [0,5) [5,18) [18,65) [65,inf).
type AgeMap struct {
	Breaks []int
}

// GroupIndex returns the age-group index for age.
func (m AgeMap) GroupIndex(age int) int {
	for i, b := range m.Breaks {
		if age < b {
			return i
		}
	}
	return len(m.Breaks)
}

// NumGroups returns the number of age groups the map defines.
func (m AgeMap) NumGroups() int {
	return len(m.Breaks) + 1
}

// ImportSeed is one row of a Natural_History's import schedule: how many
// new cases of a given state to introduce per day, optionally restricted
// by geography and age (spec.md section 4.3/4.4, section 6).
type ImportSeed struct {
	Day       int
	State     int
	Count     int
	HasRadius bool
	CenterLat float64
	CenterLon float64
	RadiusKm  float64
	MinAge    int
	MaxAge    int
}

// NaturalHistory owns one Condition's state space, transition logic, and
// per-state side effects. Immutable after Prepare(), per spec.md
// section 3.
type NaturalHistory struct {
	States []StateSpec
	AgeMap AgeMap

	// StayProb[ageGroup][state] is the probability of remaining in state
	// for one more step; 1.0 (or within absorbingEpsilon of it) marks an
	// absorbing state with no scheduled exit.
	StayProb [][]float64
	// OutgoingProb[ageGroup][state] is the probability vector over next
	// states with the diagonal removed (spec.md section 4.3: "the
	// next_state draw itself samples the outgoing probability vector of
	// state s (with diagonal removed)").
	OutgoingProb [][][]float64

	TransitionTimePeriod float64 // scales the drawn wait time
	Imports              []ImportSeed

	// EntryState is the state a newly exposed agent enters, whether
	// exposed via import seeding or person-to-person transmission.
	EntryState int

	// adjustment optionally biases a single outgoing state for an
	// external driver (e.g. geographic targeting), per spec.md section
	// 4.3's "adjustment_state/adjustment" hook.
	AdjustmentState int
	Adjustment      float64

	rng *rand.Rand
}

const absorbingEpsilon = 1e-9

// NewNaturalHistory creates a NaturalHistory bound to rng for every
// stochastic draw it makes (spec.md section 9: "require every draw to go
// through its owning generator to preserve reproducibility").
func NewNaturalHistory(states []StateSpec, ageMap AgeMap, rng *rand.Rand) *NaturalHistory {
	return &NaturalHistory{
		States:               states,
		AgeMap:                ageMap,
		TransitionTimePeriod: 1.0,
		rng:                  rng,
	}
}

// IsAbsorbing reports whether state s never schedules a future
// transition for ageGroup.
func (nh *NaturalHistory) IsAbsorbing(ageGroup, s int) bool {
	if s < 0 || s >= len(nh.States) {
		return true
	}
	if nh.States[s].Dormant {
		return true
	}
	if ageGroup >= len(nh.StayProb) {
		return true
	}
	return nh.StayProb[ageGroup][s] >= 1.0-absorbingEpsilon
}

// SelectTransition draws (nextState, waitSteps) for an agent of the
// given age entering state s, per spec.md section 4.3:
//   - determine the age group
//   - draw next_state from the age-group row, conditioned on staying
//   - draw wait ~ Exponential(-ln(stay)) scaled by transition_time_period,
//     rounded, floored at 1
//
// absorbing is true when no future transition should be scheduled.
func (nh *NaturalHistory) SelectTransition(age, s int) (nextState, waitSteps int, absorbing bool) {
	ageGroup := nh.AgeMap.GroupIndex(age)
	if nh.IsAbsorbing(ageGroup, s) {
		return s, 0, true
	}
	stay := nh.StayProb[ageGroup][s]
	outgoing := nh.OutgoingProb[ageGroup][s]
	next := nh.drawNextState(outgoing)
	rate := -math.Log(stay)
	if rate <= 0 {
		return s, 0, true
	}
	wait := nh.rng.ExpFloat64() / rate * nh.TransitionTimePeriod
	steps := int(math.Round(wait))
	if steps < 1 {
		steps = 1
	}
	return next, steps, false
}

func (nh *NaturalHistory) drawNextState(outgoing []float64) int {
	if nh.Adjustment > 0 && nh.AdjustmentState < len(outgoing) {
		adjusted := make([]float64, len(outgoing))
		copy(adjusted, outgoing)
		adjusted[nh.AdjustmentState] += nh.Adjustment
		return weightedChoice(nh.rng, adjusted)
	}
	return weightedChoice(nh.rng, outgoing)
}

// Infectivity, Susceptibility, SymptomLevel, Fatal, and
// ConditionToTransmit expose the per-state fields used by the
// Transmission and Epidemic layers.
func (nh *NaturalHistory) Infectivity(s int) float64    { return nh.States[s].Infectivity }
func (nh *NaturalHistory) Susceptibility(s int) float64 { return nh.States[s].Susceptibility }
func (nh *NaturalHistory) SymptomLevel(s int) int       { return nh.States[s].SymptomLevel }
func (nh *NaturalHistory) Fatal(s int) bool             { return nh.States[s].Fatal }

// LoadNaturalHistoryFromParamFile builds a NaturalHistory from a
// whitespace parameter file using the exact key grammar
// original_source/src/Markov_Chain.cc's get_parameters() reads:
//
//	<name>.states                        -- number of states
//	<name>[i].name                        -- state i's display name
//	<name>.ages                           -- age-bracket breakpoints (vector)
//	<name>.group[g].initial_percent[i]    -- unused here (population seeding is out of scope)
//	<name>.group[g].trans[i][j]           -- transition_matrix[g][i][j], diagonal derived
//	<name>.transition_time_period         -- defaults to 1 if absent
//
// Missing trans entries default to 0, and the diagonal is always
// derived as 1 minus the row sum, exactly matching the teacher source's
// "guarantee probability distribution by making same-state transition
// the default" step.
func LoadNaturalHistoryFromParamFile(pf *ParamFile, name string, rng *rand.Rand) (*NaturalHistory, error) {
	numStates, ok, err := pf.Int(name + ".states")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, configErrorf(MissingRequiredKeyError, name+".states")
	}

	states := make([]StateSpec, numStates)
	for i := range states {
		stateName, _ := pf.Get(indexedKey(name, i, "name"))
		states[i] = StateSpec{Name: stateName}
	}

	ageMap := AgeMap{}
	if breaks, err := pf.Vector(name + ".ages"); err == nil {
		for _, b := range breaks {
			ageMap.Breaks = append(ageMap.Breaks, int(b))
		}
	}
	numGroups := ageMap.NumGroups()

	period := 1.0
	if p, ok, _ := pf.Float(name + ".transition_time_period"); ok {
		period = p
	}

	stayProb := make([][]float64, numGroups)
	outgoing := make([][][]float64, numGroups)
	for g := 0; g < numGroups; g++ {
		stayProb[g] = make([]float64, numStates)
		outgoing[g] = make([][]float64, numStates)
		for i := 0; i < numStates; i++ {
			row := make([]float64, numStates)
			rowSum := 0.0
			for j := 0; j < numStates; j++ {
				if i == j {
					continue
				}
				key := fmt.Sprintf("%s.group[%d].trans[%d][%d]", name, g, i, j)
				prob, _, _ := pf.Float(key)
				row[j] = prob
				rowSum += prob
			}
			outgoing[g][i] = row
			stayProb[g][i] = 1.0 - rowSum
		}
	}

	nh := NewNaturalHistory(states, ageMap, rng)
	nh.StayProb = stayProb
	nh.OutgoingProb = outgoing
	nh.TransitionTimePeriod = period
	return nh, nil
}
