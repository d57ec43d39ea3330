package fredsim

// personLink holds one Person's directed adjacency within one Network:
// the out-list (persons this Person points to) and the in-list (persons
// that point to this Person). Grounded on the teacher's adjacencyMatrix
// in network.go, generalized from a weighted map keyed by integer host
// id to explicit per-Person out/in Person slices, as spec.md section 3
// requires ("Network link ... a pair of adjacency vectors").
type personLink struct {
	out []*Person
	in  []*Person
}

// Network is a MixingGroup of explicit directed edges between
// individuals, e.g. a sexual-partner network. It embeds groupBase for
// membership bookkeeping and adds the directed adjacency spec.md section
// 4.2 describes.
type Network struct {
	groupBase
	links map[*Person]*personLink
}

// NewNetwork creates an empty Network of the given Group_Type.
func NewNetwork(label string, typeID int) *Network {
	return &Network{
		groupBase: newGroupBase(label, typeID),
		links:     make(map[*Person]*personLink),
	}
}

func (n *Network) AddMember(p *Person) int {
	idx := n.addMember(n, p)
	n.links[p] = &personLink{}
	p.links[n] = n.links[p]
	return idx
}

func (n *Network) RemoveMember(p *Person) {
	n.removePerson(p)
}

// removePerson unwinds p's adjacency (both as source and as target of
// every remaining edge) and drops p from the membership list, per
// spec.md section 4.2's termination rule: "iterate out-list and call
// delete_link_from(self) on each neighbour, iterate in-list and call
// delete_link_to(self), then unenroll from the network itself."
func (n *Network) removePerson(p *Person) {
	link, ok := n.links[p]
	if !ok {
		return
	}
	for _, q := range append([]*Person{}, link.out...) {
		n.DestroyLink(p, q)
	}
	for _, q := range append([]*Person{}, link.in...) {
		n.DestroyLink(q, p)
	}
	delete(n.links, p)
	delete(p.links, n)
	if _, member := p.MemberIndexIn(n); member {
		n.removeMember(n, p)
	}
}

// CreateLink adds a directed edge from -> to. Both endpoints must
// already be members of the network. The insertion is idempotent: a
// duplicate request is a no-op rather than an error, matching spec.md
// section 4.2's "create_link_to ... both-side insertion is idempotent."
func (n *Network) CreateLink(from, to *Person) {
	if from == to {
		return
	}
	fl, ok := n.links[from]
	if !ok {
		invariantf("CreateLink: person %s is not a member of network %s", from.ID(), n.id)
	}
	tl, ok := n.links[to]
	if !ok {
		invariantf("CreateLink: person %s is not a member of network %s", to.ID(), n.id)
	}
	for _, q := range fl.out {
		if q == to {
			return
		}
	}
	fl.out = append(fl.out, to)
	tl.in = append(tl.in, from)
}

// DestroyLink performs symmetric removal of the directed edge from ->
// to: dropped from from's out-list and to's in-list. Missing edges are a
// silent no-op.
func (n *Network) DestroyLink(from, to *Person) {
	fl, ok := n.links[from]
	if !ok {
		return
	}
	tl, ok := n.links[to]
	if !ok {
		return
	}
	fl.out = removePersonFromSlice(fl.out, to)
	tl.in = removePersonFromSlice(tl.in, from)
}

func removePersonFromSlice(s []*Person, target *Person) []*Person {
	for i, p := range s {
		if p == target {
			last := len(s) - 1
			s[i] = s[last]
			return s[:last]
		}
	}
	return s
}

// OutLinks returns the persons p points to in this network.
func (n *Network) OutLinks(p *Person) []*Person {
	if l, ok := n.links[p]; ok {
		return l.out
	}
	return nil
}

// InLinks returns the persons that point to p in this network.
func (n *Network) InLinks(p *Person) []*Person {
	if l, ok := n.links[p]; ok {
		return l.in
	}
	return nil
}

// LinkExists reports whether a directed edge from -> to is present.
func (n *Network) LinkExists(from, to *Person) bool {
	for _, q := range n.OutLinks(from) {
		if q == to {
			return true
		}
	}
	return false
}
