package store

import "sort"

// priorityIndex keeps EditionHint ids sorted by their priority string, so the
// Slow Downloader can pop the highest-priority hint with no in-memory sort,
// mirroring the spec §4.1 requirement for an "EditionHint.priority ordered"
// index (the source implementation gets this for free from db4o's
// single-column index; no library in the example corpus provides an ordered
// map/btree, so this is built on sort.Search over a maintained-sorted slice
// — see DESIGN.md).
type priorityIndex struct {
	// entries is sorted ascending by priority; ids[i] corresponds to
	// priorities[i].
	priorities []string
	ids        []string
}

func newPriorityIndex() *priorityIndex {
	return &priorityIndex{}
}

// insert adds id with the given priority, keeping the slices sorted.
func (p *priorityIndex) insert(id, priority string) {
	i := sort.SearchStrings(p.priorities, priority)
	p.priorities = append(p.priorities, "")
	copy(p.priorities[i+1:], p.priorities[i:])
	p.priorities[i] = priority

	p.ids = append(p.ids, "")
	copy(p.ids[i+1:], p.ids[i:])
	p.ids[i] = id
}

// remove deletes the entry with the given id and priority.
func (p *priorityIndex) remove(id, priority string) {
	lo := sort.SearchStrings(p.priorities, priority)
	for i := lo; i < len(p.priorities) && p.priorities[i] == priority; i++ {
		if p.ids[i] == id {
			p.priorities = append(p.priorities[:i], p.priorities[i+1:]...)
			p.ids = append(p.ids[:i], p.ids[i+1:]...)
			return
		}
	}
}

// max returns the id with the greatest priority string, i.e. the highest
// priority hint per spec §4.6.
func (p *priorityIndex) max() (string, bool) {
	if len(p.ids) == 0 {
		return "", false
	}
	return p.ids[len(p.ids)-1], true
}

// len returns the number of indexed entries.
func (p *priorityIndex) len() int {
	return len(p.ids)
}
