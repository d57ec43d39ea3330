package fredsim

import (
	"fmt"
	"testing"
)

// TestHIVOnExposureAcutePhaseWindow implements spec.md section 8 seed
// test 5: an agent exposed on day 10 reports viral load in the acute
// band for every day in [10, 10+d) where d is in [120,180], and the
// CD4 count is untouched by the acute-phase branch.
func TestHIVOnExposureAcutePhaseWindow(t *testing.T) {
	w := newTestWorld(t, 400)
	ep := NewHIVEpidemic(0, ResourceRich, nil)

	p := NewPerson(28, 'M', 1)
	w.AddPerson(p)

	const exposureDay = 10
	rec := ep.OnExposure(w, p, exposureDay)

	windowDays := rec.AcuteEndDay - rec.ExposureDay
	if windowDays < 120 || windowDays > 180 {
		t.Fatalf("acute window must fall in [120,180] days, got %d", windowDays)
	}

	initialCD4 := rec.CD4
	for day := exposureDay; day < rec.AcuteEndDay; day++ {
		ep.advancePatient(w, p, rec, day)
		if rec.Log10VL < 5.0 || rec.Log10VL > 5.5 {
			t.Fatalf("day %d: expected acute-band viral load in [5.0,5.5], got %f", day, rec.Log10VL)
		}
	}
	if rec.CD4 != initialCD4 {
		t.Errorf("acute phase should not perturb CD4, got %f want %f", rec.CD4, initialCD4)
	}

	// The first day past the acute window takes the untreated-decline
	// branch: CD4 should fall away from its acute-phase plateau.
	ep.advancePatient(w, p, rec, rec.AcuteEndDay)
	if rec.CD4 >= initialCD4 {
		t.Errorf("expected CD4 to decline once the acute window ends without therapy, got %f (was %f)", rec.CD4, initialCD4)
	}
}

func TestCD4AndVLBucketBoundaries(t *testing.T) {
	cd4Cases := []struct {
		cd4  float64
		want int
	}{{600, 0}, {500, 0}, {400, 1}, {350, 1}, {250, 2}, {200, 2}, {100, 3}}
	for _, c := range cd4Cases {
		if got := cd4Bucket(c.cd4); got != c.want {
			t.Errorf(UnequalIntParameterError, "cd4 bucket", c.want, got)
		}
	}
	vlCases := []struct {
		vl   float64
		want int
	}{{2.5, 0}, {3.5, 1}, {4.5, 2}, {5.5, 3}}
	for _, c := range vlCases {
		if got := vlBucket(c.vl); got != c.want {
			t.Errorf(UnequalIntParameterError, "vl bucket", c.want, got)
		}
	}
}

func TestDrugClassFromName(t *testing.T) {
	cases := map[string]DrugClass{
		"nrti":            DrugNRTI,
		"nnrti":           DrugNNRTI,
		"pi":              DrugPI,
		"insti":           DrugInstI,
		"entry_inhibitor": DrugEntryInhibitor,
		"boosting_agent":  DrugBoostingAgent,
		"unknown-drug":    0,
	}
	for name, want := range cases {
		if got := drugClassFromName(name); got != want {
			t.Errorf("drugClassFromName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFirstUnresistedClassSkipsResistedBits(t *testing.T) {
	classes := DrugNRTI | DrugNNRTI | DrugPI
	resistance := DrugNRTI
	got := firstUnresistedClass(classes, resistance)
	if got != DrugNNRTI {
		t.Errorf("expected the next unresisted class to be NNRTI, got %v", got)
	}
	if firstUnresistedClass(classes, classes) != 0 {
		t.Error("a fully resisted regimen must return 0")
	}
}

// TestEscalateRegimenResourcePoorDefersOnceThenEscalates covers the
// resource-poor policy: the first virologic failure on the initial
// regimen is deferred, the second one escalates.
func TestEscalateRegimenResourcePoorDefersOnceThenEscalates(t *testing.T) {
	ep := NewHIVEpidemic(0, ResourcePoor, nil)
	ep.EscalationClasses = []DrugClass{DrugInstI, DrugEntryInhibitor}

	rec := &HIVPatientRecord{Regimen: &Regimen{Classes: ep.InitialRegimenClasses, Line: 0}}

	ep.escalateRegimen(rec)
	if rec.Regimen.Line != 0 {
		t.Fatalf("first failure on a resource-poor initial regimen must be deferred, got line %d", rec.Regimen.Line)
	}

	ep.escalateRegimen(rec)
	if rec.Regimen.Line != 1 {
		t.Fatalf("second consecutive failure must escalate, got line %d", rec.Regimen.Line)
	}
	if rec.Regimen.Classes&DrugInstI == 0 {
		t.Error("escalated regimen should layer on the next configured drug class")
	}
}

func TestEscalateRegimenResourceRichEscalatesImmediately(t *testing.T) {
	ep := NewHIVEpidemic(0, ResourceRich, nil)
	ep.EscalationClasses = []DrugClass{DrugInstI}

	rec := &HIVPatientRecord{Regimen: &Regimen{Classes: ep.InitialRegimenClasses, Line: 0}}
	ep.escalateRegimen(rec)
	if rec.Regimen.Line != 1 {
		t.Errorf("resource-rich settings should escalate on the first detected failure, got line %d", rec.Regimen.Line)
	}
}

func TestCheckFatalityUsesJointMortalityKey(t *testing.T) {
	path := writeTempMortalityTable(t, fmt.Sprintf("0 0.0\n%.0f 1.0\n", HIVMortalityKey(2, 0, 3, 3)))
	table, err := LoadMortalityTable(path, false)
	if err != nil {
		t.Fatalf(UnexpectedErrorWhileError, "loading mortality table", err)
	}

	w := newTestWorld(t, 100)
	ep := NewHIVEpidemic(0, ResourceRich, table)
	p := NewPerson(45, 'M', 1) // AgeBracket(45) == 2
	w.AddPerson(p)
	rec := &HIVPatientRecord{CD4: 50, Log10VL: 6.0, TherapyDay: -1} // cd4Bucket=3, vlBucket=3

	ep.checkFatality(w, p, rec, 0)

	if p.Alive() {
		t.Error("a mortality rate of 1.0 at the matching key should deterministically terminate the agent")
	}
	if _, ok := ep.records[p]; ok {
		t.Error("checkFatality should drop the patient record on termination")
	}
}
