package fredsim

import "testing"

func TestNetworkCreateLinkSymmetry(t *testing.T) {
	n := NewNetwork("contact-net", 0)
	p := NewPerson(25, 'M', 1)
	q := NewPerson(24, 'F', 1)
	n.AddMember(p)
	n.AddMember(q)

	n.CreateLink(p, q)

	if !n.LinkExists(p, q) {
		t.Fatalf("expected p -> q link to exist")
	}
	found := false
	for _, r := range n.InLinks(q) {
		if r == p {
			found = true
		}
	}
	if !found {
		t.Errorf("q's in-links should contain p: %v", n.InLinks(q))
	}
}

// TestNetworkLinkRoundTrip implements spec.md section 8's idempotence
// law: create_link_to(p, q); destroy_link_to(p, q) leaves both adjacency
// vectors unchanged.
func TestNetworkLinkRoundTrip(t *testing.T) {
	n := NewNetwork("contact-net", 0)
	p := NewPerson(25, 'M', 1)
	q := NewPerson(24, 'F', 1)
	n.AddMember(p)
	n.AddMember(q)

	beforeOut := len(n.OutLinks(p))
	beforeIn := len(n.InLinks(q))

	n.CreateLink(p, q)
	n.DestroyLink(p, q)

	if len(n.OutLinks(p)) != beforeOut {
		t.Errorf("p's out-links should return to prior size, got %d want %d", len(n.OutLinks(p)), beforeOut)
	}
	if len(n.InLinks(q)) != beforeIn {
		t.Errorf("q's in-links should return to prior size, got %d want %d", len(n.InLinks(q)), beforeIn)
	}
	if n.LinkExists(p, q) {
		t.Errorf("link should no longer exist after destroy")
	}
}

func TestNetworkCreateLinkIdempotent(t *testing.T) {
	n := NewNetwork("contact-net", 0)
	p := NewPerson(25, 'M', 1)
	q := NewPerson(24, 'F', 1)
	n.AddMember(p)
	n.AddMember(q)

	n.CreateLink(p, q)
	n.CreateLink(p, q)

	if len(n.OutLinks(p)) != 1 {
		t.Errorf("duplicate CreateLink should be a no-op, got %d out-links", len(n.OutLinks(p)))
	}
}

// TestNetworkTerminationUnwindsLinks verifies spec.md section 3's network
// link invariant: q in p.out_links(n) <=> p in q.in_links(n), maintained
// through a Person's termination as both source and target of edges.
func TestNetworkTerminationUnwindsLinks(t *testing.T) {
	n := NewNetwork("contact-net", 0)
	a := NewPerson(30, 'M', 1)
	b := NewPerson(29, 'F', 1)
	c := NewPerson(28, 'M', 1)
	for _, p := range []*Person{a, b, c} {
		n.AddMember(p)
	}
	n.CreateLink(a, b) // a -> b
	n.CreateLink(c, a) // c -> a

	n.removePerson(a)

	if n.LinkExists(a, b) {
		t.Errorf("a -> b link should be gone after a terminates")
	}
	if n.LinkExists(c, a) {
		t.Errorf("c -> a link should be gone after a terminates")
	}
	if len(n.InLinks(b)) != 0 {
		t.Errorf("b's in-links should no longer reference a, got %v", n.InLinks(b))
	}
	if len(n.OutLinks(c)) != 0 {
		t.Errorf("c's out-links should no longer reference a, got %v", n.OutLinks(c))
	}
	if _, member := a.MemberIndexIn(n); member {
		t.Errorf("a should no longer be a member of the network")
	}
}

func TestPersonTerminateUnwindsMembershipsAndLinks(t *testing.T) {
	place := NewPlace("household", 0)
	net := NewNetwork("sexual-net", 1)

	p := NewPerson(22, 'F', 1)
	q := NewPerson(23, 'M', 1)

	place.AddMember(p)
	net.AddMember(p)
	net.AddMember(q)
	net.CreateLink(p, q)

	p.terminate()

	if p.Alive() {
		t.Errorf("terminated person should report Alive() == false")
	}
	if place.Size() != 0 {
		t.Errorf("household should be empty after its only member terminates")
	}
	if net.LinkExists(p, q) || net.LinkExists(q, p) {
		t.Errorf("network links involving a terminated person must be gone")
	}
	if len(net.OutLinks(q)) != 0 {
		t.Errorf("q's adjacency must no longer reference the terminated p")
	}
}
