package fredsim

import "github.com/segmentio/ksuid"

// GroupCounters is the per-condition, per-day bookkeeping a MixingGroup
// carries, per spec.md section 3: new/current/total infections,
// new/current symptomatic, case fatalities, first/last day observed
// infectious.
type GroupCounters struct {
	NewInfections      int
	CurrentInfections  int
	TotalInfections    int
	NewSymptomatic     int
	CurrentSymptomatic int
	CaseFatalities     int
	FirstDayInfectious int
	LastDayInfectious  int
}

// MixingGroup is any container within which agents can contact one
// another: a Place (household, school, workplace, neighbourhood) or a
// Network (explicit directed edges). Grounded on the teacher's
// HostNetwork interface in network.go, generalized to the membership +
// per-condition infectious-list shape spec.md section 4.2 requires.
type MixingGroup interface {
	ID() ksuid.KSUID
	Label() string
	TypeID() int

	Members() []*Person
	Size() int
	AddMember(p *Person) int
	RemoveMember(p *Person)

	AddInfectious(conditionID int, p *Person)
	InfectiousMembers(conditionID int) []*Person
	ClearInfectious(conditionID int)

	Counters(conditionID int) *GroupCounters
	AdvanceDay(day int)
}

// groupBase implements the shared bookkeeping every MixingGroup
// (Place and Network alike) needs: a stable, swap-pop member list and
// per-condition infectious lists and counters. Place and Network embed
// this and add their own semantics on top, mirroring how the teacher's
// SequenceNodeEpidemic embeds shared state that SIR/SIS/endtrans
// variants specialize.
type groupBase struct {
	id     ksuid.KSUID
	label  string
	typeID int

	members []*Person

	infectious map[int][]*Person
	counters   map[int]*GroupCounters

	lastUpdateDay int
}

func newGroupBase(label string, typeID int) groupBase {
	return groupBase{
		id:         ksuid.New(),
		label:      label,
		typeID:     typeID,
		infectious: make(map[int][]*Person),
		counters:   make(map[int]*GroupCounters),

		lastUpdateDay: -1,
	}
}

func (g *groupBase) ID() ksuid.KSUID { return g.id }
func (g *groupBase) Label() string   { return g.label }
func (g *groupBase) TypeID() int     { return g.typeID }

func (g *groupBase) Members() []*Person { return g.members }
func (g *groupBase) Size() int          { return len(g.members) }

// addMember appends a Person and returns its position, per spec.md
// section 3's "membership addition appends" rule. self is the concrete
// MixingGroup the embedding type presents, so the Person's stored
// back-reference points at the right value, not at groupBase itself.
func (g *groupBase) addMember(self MixingGroup, p *Person) int {
	g.members = append(g.members, p)
	index := len(g.members) - 1
	p.addMembership(self, index)
	return index
}

// removeMember implements swap-with-back removal: the displaced member
// (formerly last) takes the removed Person's slot, and its stored index
// is corrected via Person.updateMemberIndex, per spec.md section 3's
// member-index invariant.
func (g *groupBase) removeMember(self MixingGroup, p *Person) {
	index, ok := p.MemberIndexIn(self)
	if !ok {
		return
	}
	last := len(g.members) - 1
	if index > last || g.members[index] != p {
		invariantf("removeMember: stored index %d for person %s does not match group %s", index, p.ID(), g.id)
	}
	displaced := g.members[last]
	g.members[index] = displaced
	g.members[last] = nil
	g.members = g.members[:last]
	p.removeMembership(self)
	if displaced != p {
		displaced.updateMemberIndex(self, index)
	}
}

// AddInfectious appends p to the per-condition infectious list for
// today. The caller (the epidemic update stage) is responsible for
// clearing the list at the end of the day.
func (g *groupBase) AddInfectious(conditionID int, p *Person) {
	g.infectious[conditionID] = append(g.infectious[conditionID], p)
}

func (g *groupBase) InfectiousMembers(conditionID int) []*Person {
	return g.infectious[conditionID]
}

func (g *groupBase) ClearInfectious(conditionID int) {
	g.infectious[conditionID] = nil
}

func (g *groupBase) Counters(conditionID int) *GroupCounters {
	c, ok := g.counters[conditionID]
	if !ok {
		c = &GroupCounters{}
		g.counters[conditionID] = c
	}
	return c
}

// AdvanceDay zeroes the new-infection and new-symptomatic counters once
// per calendar day, rate-limited by lastUpdateDay so repeated calls
// within the same day are no-ops (spec.md section 4.2).
func (g *groupBase) AdvanceDay(day int) {
	if day <= g.lastUpdateDay {
		return
	}
	g.lastUpdateDay = day
	for _, c := range g.counters {
		c.NewInfections = 0
		c.NewSymptomatic = 0
	}
}

// Place is a mixing group with shared physical context: household,
// school, workplace, or neighbourhood.
type Place struct {
	groupBase
}

// NewPlace creates an empty Place of the given Group_Type.
func NewPlace(label string, typeID int) *Place {
	return &Place{groupBase: newGroupBase(label, typeID)}
}

func (pl *Place) AddMember(p *Person) int { return pl.addMember(pl, p) }
func (pl *Place) RemoveMember(p *Person)  { pl.removeMember(pl, p) }

// GroupType carries the contact-rate and transmissibility parameters
// shared by every Place/Network instance tagged with the same type-id
// (spec.md section 3: "type-id ... whose contact rates and transmission
// probabilities are shared across all instances of that type"). This is
// one of the SPEC_FULL supplements: original_source/src/Mixing_Group.h
// keys contact behavior off a Group_Type the distilled spec only
// mentions in passing.
type GroupType struct {
	ID               int
	Label            string
	ContactRate      float64 // mean daily contacts per infectious member
	Transmissibility float64 // scales base_transmission_prob for this type
	SameAgeBias      float64 // [0,1] same age-bracket contact preference; carried from config, not read by PlaceTransmission, which samples contacts uniformly
}
