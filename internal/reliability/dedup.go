package reliability

import "sync"

// defaultDedupCap bounds how many message ids the dedup set remembers
// before evicting the oldest. Message ids carry no timestamp to expire by,
// unlike SAGE-X-project-sage's TTL-based packet detector, so this module
// uses a size cap with oldest-first eviction instead (see DESIGN.md).
const defaultDedupCap = 100_000

type dedupSet struct {
	mu    sync.Mutex
	cap   int
	ids   map[string]struct{}
	order []string
}

func newDedupSet(cap int) *dedupSet {
	if cap <= 0 {
		cap = defaultDedupCap
	}
	return &dedupSet{
		cap:   cap,
		ids:   make(map[string]struct{}),
	}
}

// seen reports whether id was already recorded, and records it if not.
func (d *dedupSet) seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.ids[id]; ok {
		return true
	}

	if len(d.order) >= d.cap {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.ids, oldest)
	}
	d.ids[id] = struct{}{}
	d.order = append(d.order, id)
	return false
}
