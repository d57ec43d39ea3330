package fredsim

import "github.com/segmentio/ksuid"

// Symptom levels, shared across every condition's Natural_History.
const (
	SymptomNone = iota
	SymptomMild
	SymptomSevere
)

// UnsetState marks a per-condition health record that has never entered
// the condition's state space.
const UnsetState = -1

// CrossModifiers holds the per-agent, per-other-condition scalar
// modifiers spec.md section 3/9 describes: a dense N x N matrix is too
// wasteful to carry on every Person when most conditions never interact,
// so each HealthRecord instead carries one row (length = condition
// count), all initialized to 1.0, written only by the owning condition's
// own state transitions (spec.md section 5's "cross-condition modifier
// arrays ... written only from that Person's own state transitions").
type CrossModifiers struct {
	Transmission  []float64
	Susceptibility []float64
	Symptoms      []float64
}

func newCrossModifiers(numConditions int) CrossModifiers {
	m := CrossModifiers{
		Transmission:   make([]float64, numConditions),
		Susceptibility: make([]float64, numConditions),
		Symptoms:       make([]float64, numConditions),
	}
	for i := range m.Transmission {
		m.Transmission[i] = 1.0
		m.Susceptibility[i] = 1.0
		m.Symptoms[i] = 1.0
	}
	return m
}

// HealthRecord is the per-(agent,condition) state described in spec.md
// section 3. One is allocated per condition slot on every Person.
type HealthRecord struct {
	State               int
	LastTransitionStep  int
	NextTransitionStep  int // -1 when no future transition is scheduled
	OnsetStep           int
	SymptomsLevel       int
	IsInfected          bool
	IsImmune            bool
	IsRecovered         bool
	Infectivity         float64
	Susceptibility      float64
	Infector            *Person
	ExposureGroup       MixingGroup
	NumInfectees        int
	Modifiers           CrossModifiers
}

func newHealthRecord(numConditions int) *HealthRecord {
	return &HealthRecord{
		State:              UnsetState,
		NextTransitionStep: -1,
		Susceptibility:     1.0,
		Modifiers:          newCrossModifiers(numConditions),
	}
}

// IsSusceptible implements the spec.md section 3 invariant:
// is_susceptible <=> susceptibility > 0 and not infected and not immune.
func (h *HealthRecord) IsSusceptible() bool {
	return h.Susceptibility > 0 && !h.IsInfected && !h.IsImmune
}

// membership records the position of a Person within one MixingGroup's
// member list, so that removal can be located in O(1) rather than by
// scanning every group the Person belongs to.
type membership struct {
	group MixingGroup
	index int
}

// Person is the simulated agent: identity, demographics, and one
// per-condition HealthRecord slot. Persons are owned by the population
// store (the World); every other structure (MixingGroup, Network) holds
// only back-references, per spec.md section 9.
type Person struct {
	id ksuid.KSUID

	Age           int
	Sex           byte // 'M' or 'F'
	Race          string
	HouseholdCode string
	Lat, Lon      float64
	// Institutional marks a non-family household type (e.g. group
	// quarters, dormitory) excluded from sexual-partner matching's
	// eligibility rule (spec.md section 4.2 point 1).
	Institutional bool

	health      []*HealthRecord
	memberships []membership
	links       map[*Network]*personLink

	alive bool
}

// NewPerson creates an agent with one unset HealthRecord per condition.
func NewPerson(age int, sex byte, numConditions int) *Person {
	p := &Person{
		id:    ksuid.New(),
		Age:   age,
		Sex:   sex,
		links: make(map[*Network]*personLink),
		alive: true,
	}
	p.health = make([]*HealthRecord, numConditions)
	for i := range p.health {
		p.health[i] = newHealthRecord(numConditions)
	}
	return p
}

// ID returns the agent's stable identifier.
func (p *Person) ID() ksuid.KSUID {
	return p.id
}

// Alive reports whether the agent is still part of the live population.
func (p *Person) Alive() bool {
	return p.alive
}

// Health returns the per-condition health record for conditionID.
func (p *Person) Health(conditionID int) *HealthRecord {
	return p.health[conditionID]
}

// IsInfectious reports whether the agent can currently transmit
// conditionID, i.e. infected and the state's infectivity is positive.
func (p *Person) IsInfectious(conditionID int) bool {
	h := p.health[conditionID]
	return h.IsInfected && h.Infectivity > 0
}

// growHealth extends the per-condition health slots to numConditions,
// used when a Condition is registered after the Person was created.
func (p *Person) growHealth(numConditions int) {
	for len(p.health) < numConditions {
		p.health = append(p.health, newHealthRecord(numConditions))
	}
}

// updateMemberIndex is invoked by a MixingGroup after a swap-with-back
// removal displaces another member: the displaced Person's stored index
// must be corrected to match its new position (spec.md section 3's
// member-index invariant).
func (p *Person) updateMemberIndex(group MixingGroup, newIndex int) {
	for i := range p.memberships {
		if p.memberships[i].group == group {
			p.memberships[i].index = newIndex
			return
		}
	}
	invariantf("updateMemberIndex: person %s is not a member of group %v", p.id, group)
}

func (p *Person) addMembership(group MixingGroup, index int) {
	p.memberships = append(p.memberships, membership{group: group, index: index})
}

func (p *Person) removeMembership(group MixingGroup) {
	for i, m := range p.memberships {
		if m.group == group {
			last := len(p.memberships) - 1
			p.memberships[i] = p.memberships[last]
			p.memberships = p.memberships[:last]
			return
		}
	}
}

// MemberIndexIn returns the Person's current position within group, and
// false if the Person is not a member.
func (p *Person) MemberIndexIn(group MixingGroup) (int, bool) {
	for _, m := range p.memberships {
		if m.group == group {
			return m.index, true
		}
	}
	return 0, false
}

// Memberships returns every mixing group the Person currently belongs to.
func (p *Person) Memberships() []MixingGroup {
	out := make([]MixingGroup, len(p.memberships))
	for i, m := range p.memberships {
		out[i] = m.group
	}
	return out
}

// terminate unwinds every membership and network link before the agent
// is removed from the population, per spec.md section 3's lifecycle
// rule: "on destruction all memberships and links are removed before
// storage is reclaimed."
func (p *Person) terminate() {
	for _, m := range p.memberships {
		m.group.RemoveMember(p)
	}
	for n := range p.links {
		n.removePerson(p)
	}
	p.alive = false
}
