package schedule

import (
	"fmt"
	"slices"
	"sort"
)

// Queue is a deadline-ordered collection of events.
//
// Events are kept in a slice sorted by Deadline. A new event is placed
// immediately before the first queued event whose deadline is equal to or
// later than its own, so among equal deadlines the last inserted comes
// first. Membership is by pointer identity.
//
// Queue is not safe for concurrent use; the Scheduler guards it.
type Queue struct {
	events []*Event
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Insert adds e in deadline order.
//
// Returns:
//   - error: ErrDuplicateEvent (wrapped in ErrInvariantViolation) if e is
//     already queued
func (q *Queue) Insert(e *Event) error {
	if q.indexOf(e) >= 0 {
		return fmt.Errorf("%w: %w: %s", ErrInvariantViolation, ErrDuplicateEvent, e.ID)
	}

	i := sort.Search(len(q.events), func(i int) bool {
		return !q.events[i].Deadline.Before(e.Deadline)
	})
	q.events = slices.Insert(q.events, i, e)
	return nil
}

// Remove deletes e from the queue.
//
// Returns:
//   - error: ErrEventNotQueued (wrapped in ErrInvariantViolation) if e is
//     not a member
func (q *Queue) Remove(e *Event) error {
	i := q.indexOf(e)
	if i < 0 {
		id := "<nil>"
		if e != nil {
			id = e.ID
		}
		return fmt.Errorf("%w: %w: %s", ErrInvariantViolation, ErrEventNotQueued, id)
	}
	q.events = slices.Delete(q.events, i, i+1)
	return nil
}

// Peek returns the earliest event without removing it.
func (q *Queue) Peek() (*Event, bool) {
	if len(q.events) == 0 {
		return nil, false
	}
	return q.events[0], true
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.events)
}

// IsEmpty reports whether the queue has no events.
func (q *Queue) IsEmpty() bool {
	return len(q.events) == 0
}

// Snapshot returns copies of the queued events in firing order.
func (q *Queue) Snapshot() []Event {
	out := make([]Event, len(q.events))
	for i, e := range q.events {
		out[i] = *e
	}
	return out
}

func (q *Queue) indexOf(e *Event) int {
	if e == nil {
		return -1
	}
	for i, queued := range q.events {
		if queued == e {
			return i
		}
	}
	return -1
}
