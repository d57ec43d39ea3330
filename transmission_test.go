package fredsim

import "testing"

func TestBernoulliClampsProbability(t *testing.T) {
	if bernoulli(-0.5) {
		t.Error("a non-positive probability must never fire")
	}
	if !bernoulli(1.5) {
		t.Error("a probability above 1 should clamp to 1 and always fire")
	}
	if !bernoulli(1.0) {
		t.Error("a probability of exactly 1 should always fire")
	}
}

func TestCrossFactorDefaultsOutOfRange(t *testing.T) {
	if got := crossFactor(nil, 0); got != 1.0 {
		t.Errorf(UnequalFloatParameterError, "cross factor on a nil modifier slice", 1.0, got)
	}
	mods := []float64{0.5, 0.8}
	if got := crossFactor(mods, 1); got != 0.8 {
		t.Errorf(UnequalFloatParameterError, "in-range cross factor", 0.8, got)
	}
	if got := crossFactor(mods, -1); got != 1.0 {
		t.Errorf(UnequalFloatParameterError, "negative condition id cross factor", 1.0, got)
	}
	if got := crossFactor(mods, 5); got != 1.0 {
		t.Errorf(UnequalFloatParameterError, "out-of-range cross factor", 1.0, got)
	}
}

// TestPlaceTransmissionDeterministicSpread pins every probability term
// to 1.0 (full contact rate headroom, full transmissibility,
// infectivity, and susceptibility) so the Bernoulli draw is
// deterministic, isolating the contact-sampling and eligibility logic
// from the underlying stochastic draws.
func TestPlaceTransmissionDeterministicSpread(t *testing.T) {
	w := newTestWorld(t, 10)
	w.GroupTypes[0] = &GroupType{ID: 0, ContactRate: 50, Transmissibility: 1.0}
	place := NewPlace("household", 0)
	w.RegisterGroup(place)

	nh := twoStateNaturalHistory(w.DemographicsRNG())
	ep := NewGenericEpidemic(0)
	tr := NewPlaceTransmission(w.GroupTypes)
	c := &Condition{ID: 0, Name: "test", NaturalHistory: nh, Epidemic: ep, GroupTypeID: 0, Transmission: tr}
	w.Conditions.Add(c)
	ep.Prepare(w)

	source := NewPerson(25, 'M', 1)
	w.AddPerson(source)
	place.AddMember(source)
	source.Health(0).IsInfected = true
	source.Health(0).Infectivity = 1.0

	var susceptibles []*Person
	for i := 0; i < 5; i++ {
		s := NewPerson(20+i, 'F', 1)
		w.AddPerson(s)
		place.AddMember(s)
		susceptibles = append(susceptibles, s)
	}

	place.AddInfectious(0, source)
	exposures := tr.Spread(w, c, 0)

	if len(exposures) != len(susceptibles) {
		t.Fatalf("expected every susceptible contact to be exposed with full-strength parameters, got %d of %d", len(exposures), len(susceptibles))
	}
	for _, e := range exposures {
		if e.Infector != source {
			t.Errorf("expected %s to be recorded as the infector", source.ID())
		}
		if e.State != nh.EntryState {
			t.Errorf(UnequalIntParameterError, "exposure entry state", nh.EntryState, e.State)
		}
	}
}

// TestPlaceTransmissionSkipsNonSusceptibleContacts verifies that an
// immune contact is never exposed.
func TestPlaceTransmissionSkipsNonSusceptibleContacts(t *testing.T) {
	w := newTestWorld(t, 10)
	w.GroupTypes[0] = &GroupType{ID: 0, ContactRate: 50, Transmissibility: 1.0}
	place := NewPlace("household", 0)
	w.RegisterGroup(place)

	nh := twoStateNaturalHistory(w.DemographicsRNG())
	ep := NewGenericEpidemic(0)
	tr := NewPlaceTransmission(w.GroupTypes)
	c := &Condition{ID: 0, Name: "test", NaturalHistory: nh, Epidemic: ep, GroupTypeID: 0, Transmission: tr}
	w.Conditions.Add(c)
	ep.Prepare(w)

	source := NewPerson(25, 'M', 1)
	w.AddPerson(source)
	place.AddMember(source)
	source.Health(0).IsInfected = true
	source.Health(0).Infectivity = 1.0

	alreadyImmune := NewPerson(22, 'F', 1)
	w.AddPerson(alreadyImmune)
	place.AddMember(alreadyImmune)
	alreadyImmune.Health(0).IsImmune = true

	place.AddInfectious(0, source)
	exposures := tr.Spread(w, c, 0)
	for _, e := range exposures {
		if e.Person == alreadyImmune {
			t.Error("an immune contact must never be exposed")
		}
	}
}

// TestNetworkTransmissionOnlyFiresForScheduledActs verifies that
// NetworkTransmission only resolves relationships flagged ActToday,
// and never exposes the same contact twice in one day.
func TestNetworkTransmissionOnlyFiresForScheduledActs(t *testing.T) {
	w := newTestWorld(t, 10)
	rng := w.DemographicsRNG()
	net := NewSexualNetwork("partner-net", 0, balancedMatchingParams(), rng)

	nh := twoStateNaturalHistory(w.DemographicsRNG())
	ep := NewGenericEpidemic(0)
	tr := NewNetworkTransmission(net, 1.0, 1.0)
	c := &Condition{ID: 0, Name: "test", NaturalHistory: nh, Epidemic: ep, Transmission: tr}
	w.Conditions.Add(c)
	ep.Prepare(w)

	source := NewPerson(25, 'M', 1)
	partner := NewPerson(24, 'F', 1)
	w.AddPerson(source)
	w.AddPerson(partner)
	net.formPartnership(0, source, partner)

	source.Health(0).IsInfected = true
	source.Health(0).Infectivity = 1.0

	// No act scheduled today: no exposures.
	if exposures := tr.Spread(w, c, 0); len(exposures) != 0 {
		t.Errorf("expected no exposures before any act is scheduled, got %d", len(exposures))
	}

	net.relationships[source][0].ActToday = true
	exposures := tr.Spread(w, c, 0)
	if len(exposures) != 1 {
		t.Fatalf("expected exactly one exposure once the act is scheduled, got %d", len(exposures))
	}
	if exposures[0].Person != partner {
		t.Errorf("expected the partner to be the exposed contact")
	}
}

func TestNoTransmissionAlwaysReturnsNil(t *testing.T) {
	w := newTestWorld(t, 10)
	c := &Condition{ID: 0, Name: "test"}
	if got := (NoTransmission{}).Spread(w, c, 0); got != nil {
		t.Errorf("NoTransmission.Spread must always return nil, got %v", got)
	}
}
