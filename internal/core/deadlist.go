package core

// Deadlist is the bounded dead-room blacklist. Codes land here when their
// host disconnects so that late signals and rejoin attempts are rejected
// instead of silently spawning a new room under the same code. Eviction is
// strictly oldest-inserted-first: the cap is a memory bound, not an LRU.
// Owned by the hub goroutine; not safe for concurrent use.
type Deadlist struct {
	cap   int
	index map[string]struct{}
	order []string
}

// NewDeadlist builds an empty blacklist holding at most cap codes.
// A non-positive cap falls back to 1 so Add can never grow unbounded.
func NewDeadlist(cap int) *Deadlist {
	if cap < 1 {
		cap = 1
	}
	return &Deadlist{
		cap:   cap,
		index: make(map[string]struct{}, cap),
	}
}

// Add records a dead room code, evicting the single oldest entry when at
// capacity. Re-adding a present code is a no-op and does not refresh its age.
func (d *Deadlist) Add(code string) {
	if _, exists := d.index[code]; exists {
		return
	}
	if len(d.order) >= d.cap {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.index, oldest)
	}
	d.index[code] = struct{}{}
	d.order = append(d.order, code)
}

// Contains reports whether the code is currently blacklisted.
func (d *Deadlist) Contains(code string) bool {
	_, ok := d.index[code]
	return ok
}

// Len returns the number of blacklisted codes.
func (d *Deadlist) Len() int {
	return len(d.order)
}
