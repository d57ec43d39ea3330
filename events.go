package fredsim

import "log"

// EventQueue is a bounded-horizon, time-indexed scheduler. It drives
// deferred per-agent state transitions and reminders at O(1) insertion
// and amortised O(1) deletion, following spec.md section 4.1.
//
// The ring is a plain slice of slices; there is no circular index
// arithmetic because the horizon is known in advance (grounded on the
// teacher's preference for slice-backed collections over a heap-based
// priority queue in host.go's pathogen list and network.go's adjacency
// maps: slots here are small, so linear scan plus swap-pop beats a
// decrease-key priority queue).
type EventQueue struct {
	horizon int
	slots   [][]*Person
}

// NewEventQueue creates a ring of the given horizon (in whatever unit the
// caller schedules with, typically hours: 24 * simulation_days).
func NewEventQueue(horizon int) *EventQueue {
	if horizon < 0 {
		horizon = 0
	}
	return &EventQueue{
		horizon: horizon,
		slots:   make([][]*Person, horizon),
	}
}

// Horizon returns the maximum step for which events may be scheduled.
func (q *EventQueue) Horizon() int {
	return q.horizon
}

// Add schedules agent for processing at the given step. Steps outside
// [0, horizon) are silently dropped: a documented policy that keeps the
// hot path branch-cheap near the simulation end (spec.md section 4.1).
func (q *EventQueue) Add(step int, agent *Person) {
	if step < 0 || step >= q.horizon {
		return
	}
	q.slots[step] = append(q.slots[step], agent)
}

// Remove cancels a previously scheduled transition for agent at step, by
// linear scan of the slot followed by swap-with-last and pop. If the
// agent is not found, it logs a warning and returns false: callers may
// remove speculatively, so this is a benign anomaly, not a fatal error.
func (q *EventQueue) Remove(step int, agent *Person) bool {
	if step < 0 || step >= q.horizon {
		return false
	}
	slot := q.slots[step]
	for i, p := range slot {
		if p == agent {
			last := len(slot) - 1
			slot[i] = slot[last]
			slot[last] = nil
			q.slots[step] = slot[:last]
			return true
		}
	}
	log.Printf("warning: event for person %s not found at step %d", agent.ID(), step)
	return false
}

// Clear resets the slot's vector to empty.
func (q *EventQueue) Clear(step int) {
	if step < 0 || step >= q.horizon {
		return
	}
	q.slots[step] = nil
}

// Size returns the number of entries scheduled at step.
func (q *EventQueue) Size(step int) int {
	if step < 0 || step >= q.horizon {
		return 0
	}
	return len(q.slots[step])
}

// Get returns the i-th person scheduled at step. Spec.md section 9 flags
// that the original source disagreed on out-of-range behavior between
// call sites (abort vs return null); this implementation unifies on
// "fail with OutOfRange" by panicking with an InvariantError, so callers
// never silently see a nil agent.
func (q *EventQueue) Get(step, i int) *Person {
	if step < 0 || step >= q.horizon {
		invariantf("Get: step %d out of range [0, %d)", step, q.horizon)
	}
	if i < 0 || i >= len(q.slots[step]) {
		invariantf("Get: index %d out of range [0, %d) at step %d", i, len(q.slots[step]), step)
	}
	return q.slots[step][i]
}

// Drain returns and clears the slot's contents, used by the daily
// epidemic update to process every transition scheduled for "today".
func (q *EventQueue) Drain(step int) []*Person {
	if step < 0 || step >= q.horizon {
		return nil
	}
	out := q.slots[step]
	q.slots[step] = nil
	return out
}
