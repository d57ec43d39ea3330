package fredsim

import "testing"

func TestEventQueueAddAndDrain(t *testing.T) {
	q := NewEventQueue(24 * 10)
	p := NewPerson(30, 'M', 1)

	q.Add(5, p)
	if q.Size(5) != 1 {
		t.Errorf("expected 1 event at step 5, got %d", q.Size(5))
	}
	if q.Get(5, 0) != p {
		t.Errorf("Get(5, 0) did not return the scheduled person")
	}

	drained := q.Drain(5)
	if len(drained) != 1 || drained[0] != p {
		t.Errorf("Drain(5) = %v, want [p]", drained)
	}
	if q.Size(5) != 0 {
		t.Errorf("expected slot 5 empty after drain, got size %d", q.Size(5))
	}
}

// TestEventRingWrap implements spec.md section 8 seed test 2: horizon
// 24*10 steps; steps 0, 24, 239 yield one event each; 240 and -1 are
// silent drops.
func TestEventRingWrap(t *testing.T) {
	q := NewEventQueue(24 * 10)
	p := NewPerson(20, 'F', 1)

	q.Add(0, p)
	q.Add(24, p)
	q.Add(239, p)
	q.Add(240, p)  // out of range: horizon is 240 steps, valid is [0,240)
	q.Add(-1, p)   // out of range

	for _, step := range []int{0, 24, 239} {
		if q.Size(step) != 1 {
			t.Errorf("step %d: expected 1 event, got %d", step, q.Size(step))
		}
	}
	if q.Size(240) != 0 {
		t.Errorf("step 240 (out of horizon) should be silently dropped, got size %d", q.Size(240))
	}
}

func TestEventQueueRemoveRoundTrip(t *testing.T) {
	q := NewEventQueue(100)
	a := NewPerson(10, 'M', 1)
	b := NewPerson(11, 'F', 1)
	c := NewPerson(12, 'M', 1)

	q.Add(10, a)
	q.Add(10, b)
	q.Add(10, c)
	before := q.Size(10)

	if !q.Remove(10, b) {
		t.Fatal("Remove(10, b) should succeed")
	}
	if q.Size(10) != before-1 {
		t.Errorf("expected slot size %d after removal, got %d", before-1, q.Size(10))
	}
	for i := 0; i < q.Size(10); i++ {
		if q.Get(10, i) == b {
			t.Errorf("removed person still present in slot")
		}
	}
}

func TestEventQueueRemoveMissingIsBenign(t *testing.T) {
	q := NewEventQueue(10)
	a := NewPerson(10, 'M', 1)
	b := NewPerson(11, 'F', 1)
	q.Add(1, a)

	if q.Remove(1, b) {
		t.Error("removing a person never scheduled should report false, not succeed")
	}
	if q.Size(1) != 1 {
		t.Errorf("a speculative remove must not disturb the slot, got size %d", q.Size(1))
	}
}

func TestEventQueueGetOutOfRangePanics(t *testing.T) {
	q := NewEventQueue(10)
	defer func() {
		if recover() == nil {
			t.Error("Get with out-of-range step should panic with an InvariantError")
		}
	}()
	q.Get(50, 0)
}

func TestEventQueueClear(t *testing.T) {
	q := NewEventQueue(10)
	p := NewPerson(25, 'M', 1)
	q.Add(3, p)
	q.Add(3, p)
	q.Clear(3)
	if q.Size(3) != 0 {
		t.Errorf("Clear(3) should empty the slot, got size %d", q.Size(3))
	}
}
