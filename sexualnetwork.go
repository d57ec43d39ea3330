package fredsim

import (
	"math/rand"
	"sort"

	"github.com/segmentio/ksuid"
)

// Relationship is the per-partner record spec.md section 3 describes:
// duration, elapsed/remaining days, concurrency overlap, and the per-day
// sexual-act schedule. Invariant: duration = days_elapsed +
// days_remaining, and end_day = start_day + duration.
type Relationship struct {
	ID ksuid.KSUID
	A, B *Person

	Duration              int
	DaysElapsed           int
	DaysRemaining         int
	ConcurrentOverlapDays int
	StartDay              int
	EndDay                int
	LongTerm              bool

	ActCount int
	ActDays  []int
	ActToday bool
}

// Partner returns the other end of the relationship from p's viewpoint.
func (r *Relationship) Partner(p *Person) *Person {
	if r.A == p {
		return r.B
	}
	return r.A
}

// AgeBracket buckets spec.md section 4.2's "three coarse age brackets
// (<20, 20-29, >=30)" used for the stratified matching pool.
func AgeBracket(age int) int {
	switch {
	case age < 20:
		return 0
	case age < 30:
		return 1
	default:
		return 2
	}
}

// PartnerMatchingParams bundles the empirical tables the matching
// algorithm draws from (spec.md section 4.2, section 6). The caller
// fills them in and passes them to NewSexualNetwork; this package does
// not read them from the 9x4 CDF files. The network does not modify them
// (spec.md section 5's "no I/O on hot paths").
type PartnerMatchingParams struct {
	// MatchedCountCDF[ageGroup][sex] is a cumulative distribution over
	// {0,1,2,3+} simultaneous partners, ageGroup in [0,8] (5-year bands
	// from 15 to 59), sex 0=male 1=female.
	MatchedCountCDF [9][2][4]float64
	// MixingMatrix[bracketA][bracketB] is the relative preference weight
	// for pairing an agent in bracketA with a candidate in bracketB
	// during the cross-household pass.
	MixingMatrix [3][3]float64
	// FirstMarriageCDF[ageGroup] is the cumulative probability that, by
	// this age group, an agent has designated one partner long-term.
	FirstMarriageCDF [9]float64
	// ShortTermDurationDays is a ranked duration table sampled uniformly
	// for non-long-term partnerships.
	ShortTermDurationDays []int
	// LongTermDurationDays is sampled for the single long-term slot.
	LongTermDurationDays []int
	// OverlapProbability is used when both partnerships fit within a
	// calendar year (spec.md section 4.2 point 5).
	OverlapProbability float64
}

// SexualNetwork is a Network with the concurrency-constrained
// directed-partner specialisation spec.md section 4.2 describes.
// Grounded on original_source/src/Sexual_Transmission_Network.cc and
// Relationships.cc: the matching passes, duration lottery, and overlap
// computation below reproduce that algorithm, renamed into Go idiom.
type SexualNetwork struct {
	*Network

	params PartnerMatchingParams
	rng    *rand.Rand

	relationships map[*Person][]*Relationship
	target        map[*Person]int // lifetime labelled partner-count target

	// crossTab accumulates the age-bracket pairing counts formed during
	// the most recent MatchPartners tick (SPEC_FULL.md supplement 4);
	// World.Update hands it to the logger right after each annual tick.
	crossTab PartnerCrossTab
}

// NewSexualNetwork creates an empty sexual-partner network.
func NewSexualNetwork(label string, typeID int, params PartnerMatchingParams, rng *rand.Rand) *SexualNetwork {
	return &SexualNetwork{
		Network:       NewNetwork(label, typeID),
		params:        params,
		rng:           rng,
		relationships: make(map[*Person][]*Relationship),
		target:        make(map[*Person]int),
	}
}

// Relationships returns every active partnership p currently holds.
func (n *SexualNetwork) Relationships(p *Person) []*Relationship {
	return n.relationships[p]
}

// CrossTab returns the age-bracket pairing counts accumulated during the
// most recent MatchPartners tick.
func (n *SexualNetwork) CrossTab() PartnerCrossTab {
	return n.crossTab
}

// eligible implements spec.md section 4.2 point 1: aged >= 15, not
// institutional, matched count below labelled target.
func (n *SexualNetwork) eligible(p *Person, institutional func(*Person) bool) bool {
	if p.Age < 15 {
		return false
	}
	if institutional != nil && institutional(p) {
		return false
	}
	return len(n.relationships[p]) < n.target[p]
}

// assignTarget draws a lifetime matched-count label for p from the
// age x sex empirical CDF, per spec.md section 4.2 point 2. Targets
// accumulate: calling this again for an older age group only raises the
// target, it never lowers it.
func (n *SexualNetwork) assignTarget(p *Person) {
	group := ageGroup5yr(p.Age)
	if group < 0 {
		return
	}
	sexIdx := 0
	if p.Sex == 'F' {
		sexIdx = 1
	}
	cdf := n.params.MatchedCountCDF[group][sexIdx]
	draw := n.rng.Float64()
	count := 0
	for i, cum := range cdf {
		if draw <= cum {
			count = i
			break
		}
		count = i
	}
	if count > n.target[p] {
		n.target[p] = count
	}
}

func ageGroup5yr(age int) int {
	if age < 15 || age > 59 {
		return -1
	}
	return (age - 15) / 5
}

// sameHouseholdOppositeSexSimilarAge implements the preference rule of
// matching pass (a): in-household, opposite sex, same coarse age
// bracket.
func sameHouseholdOppositeSexSimilarAge(a, b *Person) bool {
	return a.HouseholdCode == b.HouseholdCode &&
		a.HouseholdCode != "" &&
		a.Sex != b.Sex &&
		AgeBracket(a.Age) == AgeBracket(b.Age)
}

// MatchPartners performs one annual matching tick over the candidate
// pool, per spec.md section 4.2. institutional classifies a Person's
// household type; pass a nil func if the population carries none.
// Returns the number of new partnerships formed.
func (n *SexualNetwork) MatchPartners(day int, pool []*Person, institutional func(*Person) bool) int {
	n.crossTab = PartnerCrossTab{}

	for _, p := range pool {
		n.assignTarget(p)
	}

	var unmatched []*Person
	for _, p := range pool {
		if n.eligible(p, institutional) {
			unmatched = append(unmatched, p)
		}
	}

	formed := 0

	// Pass (a): monogamous pairs within family households.
	used := make(map[*Person]bool)
	for i, a := range unmatched {
		if used[a] {
			continue
		}
		for j := i + 1; j < len(unmatched); j++ {
			b := unmatched[j]
			if used[b] {
				continue
			}
			if sameHouseholdOppositeSexSimilarAge(a, b) {
				n.formPartnership(day, a, b)
				used[a], used[b] = true, true
				formed++
				break
			}
		}
	}

	// Pass (b): remaining pool, stratified by coarse age bracket using
	// the 3x3 mixing matrix.
	var remaining []*Person
	for _, p := range unmatched {
		if !used[p] && n.eligible(p, institutional) {
			remaining = append(remaining, p)
		}
	}
	byBracket := [3][]*Person{}
	for _, p := range remaining {
		b := AgeBracket(p.Age)
		byBracket[b] = append(byBracket[b], p)
	}
	for _, a := range remaining {
		if used[a] || !n.eligible(a, institutional) {
			continue
		}
		aBracket := AgeBracket(a.Age)
		weights := n.params.MixingMatrix[aBracket]
		targetBracket := weightedChoice(n.rng, weights[:])
		candidates := byBracket[targetBracket]
		var pick *Person
		for _, c := range candidates {
			if c == a || used[c] || c.Sex == a.Sex || !n.eligible(c, institutional) {
				continue
			}
			pick = c
			break
		}
		if pick == nil {
			continue
		}
		n.formPartnership(day, a, pick)
		used[a], used[pick] = true, true
		formed++
	}

	n.adjustConcurrency()
	return formed
}

func weightedChoice(rng *rand.Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return 0
	}
	draw := rng.Float64() * total
	var cum float64
	for i, w := range weights {
		cum += w
		if draw <= cum {
			return i
		}
	}
	return len(weights) - 1
}

// formPartnership creates the symmetric link plus the Relationship
// bookkeeping for both sides, assigning a duration per spec.md section
// 4.2 point 4: at most one long-term partner per agent, drawn from the
// age-conditional first-marriage CDF; everything else is short-term.
func (n *SexualNetwork) formPartnership(day int, a, b *Person) {
	if n.LinkExists(a, b) || n.LinkExists(b, a) {
		return
	}
	// Membership is checked and added against n.Network (the embedded
	// pointer), not n itself: Network.AddMember stores the Person's
	// membership keyed by whichever *Network value invoked it, and
	// embedding means that value is always n.Network, never the outer
	// *SexualNetwork — comparing against n here would never match.
	if _, ok := a.MemberIndexIn(n.Network); !ok {
		n.Network.AddMember(a)
	}
	if _, ok := b.MemberIndexIn(n.Network); !ok {
		n.Network.AddMember(b)
	}
	n.CreateLink(a, b)
	n.CreateLink(b, a)
	n.crossTab.Counts[AgeBracket(a.Age)][AgeBracket(b.Age)]++

	longTerm := !n.hasLongTerm(a) && !n.hasLongTerm(b) && n.rng.Float64() < n.params.FirstMarriageCDF[clampAgeGroup(a.Age)]
	var duration int
	if longTerm && len(n.params.LongTermDurationDays) > 0 {
		duration = n.params.LongTermDurationDays[n.rng.Intn(len(n.params.LongTermDurationDays))]
	} else if len(n.params.ShortTermDurationDays) > 0 {
		duration = n.params.ShortTermDurationDays[n.rng.Intn(len(n.params.ShortTermDurationDays))]
	} else {
		duration = 90
	}

	rel := &Relationship{
		ID:            ksuid.New(),
		A:             a,
		B:             b,
		Duration:      duration,
		DaysRemaining: duration,
		StartDay:      day,
		EndDay:        day + duration,
		LongTerm:      longTerm,
	}
	n.relationships[a] = append(n.relationships[a], rel)
	n.relationships[b] = append(n.relationships[b], rel)
}

func (n *SexualNetwork) hasLongTerm(p *Person) bool {
	for _, r := range n.relationships[p] {
		if r.LongTerm {
			return true
		}
	}
	return false
}

func clampAgeGroup(age int) int {
	g := ageGroup5yr(age)
	if g < 0 {
		if age < 15 {
			return 0
		}
		return 8
	}
	return g
}

// adjustConcurrency implements spec.md section 4.2 point 5: for every
// agent with two or more active partnerships, compute overlap days
// against the longest-remaining partnership.
func (n *SexualNetwork) adjustConcurrency() {
	seen := make(map[*Person]bool)
	visit := func(p *Person) {
		if seen[p] {
			return
		}
		seen[p] = true
		rels := n.relationships[p]
		if len(rels) < 2 {
			return
		}
		longest := rels[0]
		for _, r := range rels[1:] {
			if r.DaysRemaining > longest.DaysRemaining {
				longest = r
			}
		}
		for _, r := range rels {
			if r == longest {
				continue
			}
			const daysPerYear = 365
			if longest.Duration+r.Duration <= daysPerYear {
				if n.rng.Float64() < n.params.OverlapProbability {
					r.ConcurrentOverlapDays = minInt(r.Duration, longest.Duration)
				}
			} else {
				r.ConcurrentOverlapDays = maxInt(0, minInt(r.DaysRemaining, longest.DaysRemaining))
			}
		}
	}
	for p := range n.relationships {
		visit(p)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// AdvanceRelationships decrements every active relationship's remaining
// duration by one day, schedules today's sexual acts, and symmetrically
// removes partnerships that reach zero (spec.md section 4.2 point 6).
//
// Every Relationship is stored under both endpoints' map entries
// (formPartnership appends to n.relationships[a] and n.relationships[b]),
// so a naive "range over every person's list" walk visits each
// relationship twice per tick. processed gates the day-advance/act-
// scheduling/termination side effects to the first visit; the second
// visit only decides whether the relationship still belongs in that
// person's kept list, using the already-updated DaysRemaining.
//
// Termination for one person's relationship reaches into both endpoints'
// bookkeeping (terminatePartnership rewrites n.relationships[r.A] and
// n.relationships[r.B]), which can be the very map entry this loop is
// currently walking when p is one of those endpoints. The per-person
// slice is copied up front and rebuilt into a freshly allocated slice so
// that in-place append tricks elsewhere never alias the backing array
// this range is reading from.
func (n *SexualNetwork) AdvanceRelationships(day, actsPerPartnershipPerWeek int) {
	processed := make(map[ksuid.KSUID]bool)
	for p, rels := range n.relationships {
		snapshot := append([]*Relationship(nil), rels...)
		var kept []*Relationship
		for _, r := range snapshot {
			if !processed[r.ID] {
				processed[r.ID] = true
				r.DaysElapsed++
				r.DaysRemaining--
				r.ActToday = actsPerPartnershipPerWeek > 0 && day%maxInt(1, 7/actsPerPartnershipPerWeek) == 0
				if r.ActToday {
					r.ActCount++
					r.ActDays = append(r.ActDays, day)
				}
				if r.DaysRemaining <= 0 {
					n.terminatePartnership(r)
				}
			}
			if r.DaysRemaining > 0 {
				kept = append(kept, r)
			}
		}
		n.relationships[p] = kept
	}
}

func (n *SexualNetwork) terminatePartnership(r *Relationship) {
	n.DestroyLink(r.A, r.B)
	n.DestroyLink(r.B, r.A)
	n.relationships[r.A] = removeRelationship(n.relationships[r.A], r)
	n.relationships[r.B] = removeRelationship(n.relationships[r.B], r)
}

func removeRelationship(rels []*Relationship, target *Relationship) []*Relationship {
	var out []*Relationship
	for _, r := range rels {
		if r != target {
			out = append(out, r)
		}
	}
	return out
}

// sortPersonsByAge sorts people by ascending age, keeping the existing
// order of people of equal age.
func sortPersonsByAge(people []*Person) {
	sort.SliceStable(people, func(i, j int) bool { return people[i].Age < people[j].Age })
}
