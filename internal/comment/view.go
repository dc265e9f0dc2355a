package comment

import "sync"

// Views caches the threads and tally derived from the last snapshot
// revision it saw. Callers bump the revision whenever they replace the
// snapshot.
type Views struct {
	mu       sync.Mutex
	computed bool
	revision uint64
	threads  []Thread
	tally    Tally
}

func (v *Views) Get(revision uint64, snapshot []Comment) ([]Thread, Tally) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.computed && v.revision == revision {
		return v.threads, v.tally
	}
	ordered := SortByCreated(snapshot)
	v.threads = Assemble(ordered)
	v.tally = Aggregate(ordered)
	v.revision = revision
	v.computed = true
	return v.threads, v.tally
}
