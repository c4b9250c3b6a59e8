package crawler

// frontier is the FIFO work list of a single run together with the visited and
// queued membership sets. It is owned by one Run call and is not locked.
type frontier struct {
	entries []FrontierEntry
	queued  map[string]struct{}
	visited map[string]struct{}
}

func newFrontier() *frontier {
	return &frontier{
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
}

// Push appends entry unless its URL is already visited or waiting.
func (f *frontier) Push(entry FrontierEntry) bool {
	if _, ok := f.visited[entry.URL]; ok {
		return false
	}
	if _, ok := f.queued[entry.URL]; ok {
		return false
	}
	f.entries = append(f.entries, entry)
	f.queued[entry.URL] = struct{}{}
	return true
}

// Pop removes the head entry.
func (f *frontier) Pop() (FrontierEntry, bool) {
	if len(f.entries) == 0 {
		return FrontierEntry{}, false
	}
	entry := f.entries[0]
	f.entries[0] = FrontierEntry{}
	f.entries = f.entries[1:]
	delete(f.queued, entry.URL)
	return entry, true
}

// MarkVisited records url and returns false when it was already visited.
func (f *frontier) MarkVisited(url string) bool {
	if _, ok := f.visited[url]; ok {
		return false
	}
	f.visited[url] = struct{}{}
	return true
}

// Any reports whether a waiting entry satisfies pred.
func (f *frontier) Any(pred func(FrontierEntry) bool) bool {
	for _, e := range f.entries {
		if pred(e) {
			return true
		}
	}
	return false
}

func (f *frontier) Len() int {
	return len(f.entries)
}
