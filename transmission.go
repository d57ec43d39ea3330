package fredsim

import (
	rv "github.com/kentwait/randomvariate"
)

// Exposure is one newly transmitted case a Transmission strategy hands
// back to the Epidemic for bookkeeping: who was exposed, which state
// they enter, who (if anyone) infected them, and in which group the
// contact happened.
type Exposure struct {
	Person   *Person
	State    int
	Infector *Person
	Group    MixingGroup
}

// Transmission decides, for one condition on one day, which susceptible
// agents become newly exposed. Grounded on the teacher's Spreader/
// PathogenTransmitter pair in spreader.go and TransmissionModel in
// transmission_model.go: a Poisson-distributed contact count per
// infectious source, each contact resolved by an independent Bernoulli
// draw, generalized from the teacher's single pathogen-migration rule
// to spec.md section 4.5's place-based and network-based strategies.
type Transmission interface {
	Spread(w *World, c *Condition, day int) []Exposure
}

// crossFactor looks up the infector's cross-condition transmission
// modifier and the contact's cross-condition susceptibility modifier
// for c, defaulting to 1.0 when the condition id is out of range
// (spec.md section 3/9: "cross-condition modifier arrays ... written
// only from that Person's own state transitions").
func crossFactor(mods []float64, conditionID int) float64 {
	if conditionID < 0 || conditionID >= len(mods) {
		return 1.0
	}
	return mods[conditionID]
}

// bernoulli draws a single trial with success probability p via the
// teacher's rv.Binomial(1, p) idiom (spreader.go), clamping p into
// [0, 1] defensively since accumulated modifier products can drift
// outside that range.
func bernoulli(p float64) bool {
	if p <= 0 {
		return false
	}
	if p > 1 {
		p = 1
	}
	return rv.Binomial(1, p) == 1.0
}

// PlaceTransmission is the respiratory/close-contact strategy: every
// infectious member of every Group_Type-tagged Mixing_Group the
// condition is bound to draws a Poisson-distributed contact count
// scaled by the Group_Type's contact rate, samples that many fellow
// members, and resolves each contact with an independent Bernoulli
// draw on infectivity x transmissibility x susceptibility x
// cross-condition modifiers.
type PlaceTransmission struct {
	GroupTypes map[int]*GroupType
}

// NewPlaceTransmission creates a place-based strategy sourcing contact
// rates and transmissibility from groupTypes (normally World.GroupTypes).
func NewPlaceTransmission(groupTypes map[int]*GroupType) *PlaceTransmission {
	return &PlaceTransmission{GroupTypes: groupTypes}
}

func (t *PlaceTransmission) Spread(w *World, c *Condition, day int) []Exposure {
	var exposures []Exposure
	seen := make(map[ksuidLike]bool)

	for _, group := range w.GroupsOfType(c.GroupTypeID) {
		infectious := group.InfectiousMembers(c.ID)
		if len(infectious) == 0 {
			continue
		}
		gt := t.GroupTypes[group.TypeID()]
		contactRate, transmissibility := defaultContactParams(gt)

		members := group.Members()
		for _, source := range infectious {
			contacts := rv.Poisson(contactRate)
			if contacts <= 0 {
				continue
			}
			pool := sampleWithoutReplacement(w.DemographicsRNG(), members, contacts)
			for _, contact := range pool {
				if contact == source || seen[personKey(contact)] {
					continue
				}
				h := contact.Health(c.ID)
				if !h.IsSusceptible() {
					continue
				}
				prob := source.Health(c.ID).Infectivity * transmissibility * h.Susceptibility *
					crossFactor(source.Health(c.ID).Modifiers.Transmission, c.ID) *
					crossFactor(h.Modifiers.Susceptibility, c.ID)
				if bernoulli(prob) {
					exposures = append(exposures, Exposure{
						Person:   contact,
						State:    c.NaturalHistory.EntryState,
						Infector: source,
						Group:    group,
					})
					seen[personKey(contact)] = true
				}
			}
		}
	}
	return exposures
}

func defaultContactParams(gt *GroupType) (contactRate, transmissibility float64) {
	if gt == nil {
		return 1.0, 1.0
	}
	return gt.ContactRate, gt.Transmissibility
}

// ksuidLike avoids importing ksuid into this file's exported surface
// just to key a local set.
type ksuidLike = [20]byte

func personKey(p *Person) ksuidLike {
	return p.ID()
}

// NetworkTransmission is the per-act strategy for explicit-edge
// networks (principally sexual transmission): every relationship
// scheduled for an act today resolves independently, with probability
// scaled by a per-act base rate and an optional protective multiplier
// (e.g. condom usage) in addition to the same infectivity/
// susceptibility/cross-modifier terms PlaceTransmission uses.
type NetworkTransmission struct {
	Network *SexualNetwork

	// PerActProbability is the base chance of transmission given one
	// sexual act between an infectious and a susceptible partner.
	PerActProbability float64
	// ProtectionMultiplier scales PerActProbability down when protective
	// behavior is in effect; 1.0 means no protection modeled.
	ProtectionMultiplier float64
}

// NewNetworkTransmission creates a per-act strategy over network.
func NewNetworkTransmission(network *SexualNetwork, perActProbability, protectionMultiplier float64) *NetworkTransmission {
	return &NetworkTransmission{
		Network:              network,
		PerActProbability:    perActProbability,
		ProtectionMultiplier: protectionMultiplier,
	}
}

func (t *NetworkTransmission) Spread(w *World, c *Condition, day int) []Exposure {
	if t.Network == nil {
		return nil
	}
	var exposures []Exposure
	seen := make(map[ksuidLike]bool)

	for _, source := range t.Network.Members() {
		if !source.IsInfectious(c.ID) {
			continue
		}
		for _, rel := range t.Network.Relationships(source) {
			if !rel.ActToday {
				continue
			}
			contact := rel.Partner(source)
			if seen[personKey(contact)] {
				continue
			}
			h := contact.Health(c.ID)
			if !h.IsSusceptible() {
				continue
			}
			sh := source.Health(c.ID)
			prob := t.PerActProbability * t.ProtectionMultiplier * sh.Infectivity * h.Susceptibility *
				crossFactor(sh.Modifiers.Transmission, c.ID) *
				crossFactor(h.Modifiers.Susceptibility, c.ID)
			if bernoulli(prob) {
				exposures = append(exposures, Exposure{
					Person:   contact,
					State:    c.NaturalHistory.EntryState,
					Infector: source,
					Group:    t.Network,
				})
				seen[personKey(contact)] = true
			}
		}
	}
	return exposures
}

// NoTransmission is the degenerate strategy for conditions driven
// purely by exogenous imports or an upstream condition's state
// transitions (e.g. a Markov demographic process, or vector-borne
// conditions this engine does not model a mosquito population for).
type NoTransmission struct{}

func (NoTransmission) Spread(w *World, c *Condition, day int) []Exposure { return nil }
