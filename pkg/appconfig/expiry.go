package appconfig

import "container/heap"

// expiryEntry schedules name for reaping at deadline (Unix seconds).
type expiryEntry struct {
	name     string
	backing  BackingStore
	deadline int64
	seq      uint64 // breaks deadline ties in scheduling order
	index    int
}

// expiryQueue is a min-heap on deadline with an index by name, so each name
// has at most one pending entry and cancelling it is O(log n).
type expiryQueue struct {
	items  []*expiryEntry
	byName map[string]*expiryEntry
}

func (q *expiryQueue) Len() int { return len(q.items) }

func (q *expiryQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.deadline != b.deadline {
		return a.deadline < b.deadline
	}
	return a.seq < b.seq
}

func (q *expiryQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *expiryQueue) Push(x any) {
	e := x.(*expiryEntry)
	e.index = len(q.items)
	q.items = append(q.items, e)
	q.byName[e.name] = e
}

func (q *expiryQueue) Pop() any {
	old := q.items
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	e.index = -1
	delete(q.byName, e.name)
	return e
}

// scheduler owns the pending expiry entries. Not safe for concurrent use;
// Config guards it with its state lock.
type scheduler struct {
	q   expiryQueue
	seq uint64
}

func newScheduler() *scheduler {
	return &scheduler{q: expiryQueue{byName: make(map[string]*expiryEntry)}}
}

// schedule arms (or re-arms) the deadline for name.
func (s *scheduler) schedule(name string, backing BackingStore, deadline int64) {
	s.seq++
	if e, ok := s.q.byName[name]; ok {
		e.backing = backing
		e.deadline = deadline
		e.seq = s.seq
		heap.Fix(&s.q, e.index)
		return
	}
	heap.Push(&s.q, &expiryEntry{name: name, backing: backing, deadline: deadline, seq: s.seq})
}

// cancel drops any pending entry for name.
func (s *scheduler) cancel(name string) {
	if e, ok := s.q.byName[name]; ok {
		heap.Remove(&s.q, e.index)
	}
}

// deadline returns the pending deadline for name.
func (s *scheduler) deadline(name string) (int64, bool) {
	if e, ok := s.q.byName[name]; ok {
		return e.deadline, true
	}
	return 0, false
}

// popDue removes and returns, in ascending deadline order, every entry whose
// deadline is at or before now.
func (s *scheduler) popDue(now int64) []expiryEntry {
	var due []expiryEntry
	for s.q.Len() > 0 && s.q.items[0].deadline <= now {
		e := heap.Pop(&s.q).(*expiryEntry)
		due = append(due, *e)
	}
	return due
}

func (s *scheduler) len() int {
	return s.q.Len()
}
