package fredsim

import "testing"

func newTestPeople(n int) []*Person {
	out := make([]*Person, n)
	for i := range out {
		out[i] = NewPerson(20+i, 'M', 1)
	}
	return out
}

// TestMixingGroupIndexStability implements spec.md section 8 seed test 3:
// group with 5 members, remove member at index 2; the member formerly at
// index 4 now reports index 2, all other indices unchanged.
func TestMixingGroupIndexStability(t *testing.T) {
	g := NewPlace("household-1", 0)
	people := newTestPeople(5)
	for _, p := range people {
		g.AddMember(p)
	}

	removed := people[2]
	displaced := people[4]

	g.RemoveMember(removed)

	if g.Size() != 4 {
		t.Fatalf("expected 4 members after removal, got %d", g.Size())
	}
	idx, ok := displaced.MemberIndexIn(g)
	if !ok || idx != 2 {
		t.Errorf("displaced member should now report index 2, got (%d, %v)", idx, ok)
	}
	for i, p := range []*Person{people[0], people[1], people[3]} {
		gotIdx, ok := p.MemberIndexIn(g)
		if !ok {
			t.Errorf("person %d should still be a member", i)
		}
		wantIdx := []int{0, 1, 3}[i]
		if gotIdx != wantIdx {
			t.Errorf("unexpected index change for unrelated member %d", i)
		}
	}
	if g.Members()[2] != displaced {
		t.Errorf("group.Members()[2] should be the displaced person")
	}
}

func TestMixingGroupEnrollUnenrollRoundTrip(t *testing.T) {
	g := NewPlace("household-2", 0)
	people := newTestPeople(4)
	for _, p := range people {
		g.AddMember(p)
	}
	before := g.Size()

	target := people[1]
	g.RemoveMember(target)
	if g.Size() != before-1 {
		t.Fatalf("expected size %d after removal, got %d", before-1, g.Size())
	}
	g.AddMember(target)
	if g.Size() != before {
		t.Fatalf("expected size %d after re-adding, got %d", before, g.Size())
	}
	idx, ok := target.MemberIndexIn(g)
	if !ok || g.Members()[idx] != target {
		t.Errorf("re-added member's stored index must match its position")
	}
}

func TestMixingGroupAddReturnsAppendedIndex(t *testing.T) {
	g := NewPlace("household-3", 0)
	p0 := NewPerson(20, 'M', 1)
	p1 := NewPerson(21, 'F', 1)

	if idx := g.AddMember(p0); idx != 0 {
		t.Errorf("first AddMember should return index 0, got %d", idx)
	}
	if idx := g.AddMember(p1); idx != 1 {
		t.Errorf("second AddMember should return index 1, got %d", idx)
	}
}

func TestInfectiousListLifecycle(t *testing.T) {
	g := NewPlace("workplace-1", 1)
	p := NewPerson(40, 'M', 2)
	g.AddMember(p)

	g.AddInfectious(0, p)
	if len(g.InfectiousMembers(0)) != 1 {
		t.Fatalf("expected 1 infectious member for condition 0")
	}
	if len(g.InfectiousMembers(1)) != 0 {
		t.Errorf("condition 1's infectious list should be untouched")
	}
	g.ClearInfectious(0)
	if len(g.InfectiousMembers(0)) != 0 {
		t.Errorf("ClearInfectious(0) should empty the list")
	}
}

func TestGroupCountersResetOnNewDay(t *testing.T) {
	g := NewPlace("neighbourhood-1", 2)
	c := g.Counters(0)
	c.NewInfections = 5
	c.CurrentInfections = 5
	c.TotalInfections = 5

	g.AdvanceDay(1)

	c = g.Counters(0)
	if c.NewInfections != 0 {
		t.Errorf("NewInfections should reset to 0 on a new day, got %d", c.NewInfections)
	}
	if c.TotalInfections != 5 {
		t.Errorf("TotalInfections is cumulative and must survive day rollover, got %d", c.TotalInfections)
	}
}
