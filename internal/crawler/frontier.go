package crawler

// Entry is a URL waiting to be processed together with its link distance
// from the start URL.
type Entry struct {
	URL   string
	Depth int
}

// Frontier is the FIFO queue of a crawl session plus the bookkeeping that
// keeps a URL from being queued or processed twice.
// It is owned by a single Session and is not safe for concurrent use.
type Frontier struct {
	queue   []Entry
	queued  URLSet
	visited URLSet
	failed  URLSet
	depths  map[string]int
}

// NewFrontier returns a Frontier seeded with (startURL, 0).
func NewFrontier(startURL string) *Frontier {
	f := &Frontier{
		queue:   make([]Entry, 0, 16),
		queued:  NewURLSet(),
		visited: NewURLSet(),
		failed:  NewURLSet(),
		depths:  make(map[string]int),
	}
	f.Push(startURL, 0)
	return f
}

// Push appends (u, depth) unless u was already queued or visited in this
// session. The depth of first discovery is kept in the depth index.
func (f *Frontier) Push(u string, depth int) bool {
	if f.visited.Contains(u) || !f.queued.Add(u) {
		return false
	}
	f.queue = append(f.queue, Entry{URL: u, Depth: depth})
	f.depths[u] = depth
	return true
}

// Pop removes and returns the head entry.
func (f *Frontier) Pop() (Entry, bool) {
	if len(f.queue) == 0 {
		return Entry{}, false
	}
	e := f.queue[0]
	f.queue[0] = Entry{}
	f.queue = f.queue[1:]
	return e, true
}

// Len returns the number of queued entries.
func (f *Frontier) Len() int {
	return len(f.queue)
}

// MarkVisited records u as processed.
func (f *Frontier) MarkVisited(u string) {
	f.visited.Add(u)
}

// MarkFailed records u as failed. A failed URL is also visited.
func (f *Frontier) MarkFailed(u string) {
	f.failed.Add(u)
}

// IsVisited reports whether u was already processed.
func (f *Frontier) IsVisited(u string) bool {
	return f.visited.Contains(u)
}

// Visited returns the visited set. Callers must not modify it.
func (f *Frontier) Visited() URLSet {
	return f.visited
}

// Failed returns the failed set. Callers must not modify it.
func (f *Frontier) Failed() URLSet {
	return f.failed
}

// Depth returns the depth at which u was first discovered.
func (f *Frontier) Depth(u string) (int, bool) {
	d, ok := f.depths[u]
	return d, ok
}
