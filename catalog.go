package zipkit

import "iter"

// catalog holds the in-memory directory of an open archive: entries in on-disk
// central-directory order, plus a name index for O(1) Lookup. Insertion order is
// preserved across AddEntry (appended) and RemoveEntry (the removed slot is deleted,
// not reshuffled into another entry's position).
type catalog struct {
	order  []*Entry
	byName map[string]int // name -> index into order
}

func newCatalog() *catalog {
	return &catalog{byName: make(map[string]int)}
}

func (c *catalog) add(e *Entry) {
	c.byName[e.Name] = len(c.order)
	c.order = append(c.order, e)
}

func (c *catalog) lookup(name string) (*Entry, bool) {
	i, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return c.order[i], true
}

// remove deletes the entry with the given name, compacting order and reindexing
// byName for every entry after the removed slot.
func (c *catalog) remove(name string) bool {
	i, ok := c.byName[name]
	if !ok {
		return false
	}

	c.order = append(c.order[:i], c.order[i+1:]...)
	delete(c.byName, name)
	for j := i; j < len(c.order); j++ {
		c.byName[c.order[j].Name] = j
	}
	return true
}

// all returns an iterator over entries in catalog order, as (index, *Entry) pairs.
func (c *catalog) all() iter.Seq2[int, *Entry] {
	return func(yield func(int, *Entry) bool) {
		for i, e := range c.order {
			if !yield(i, e) {
				return
			}
		}
	}
}

func (c *catalog) len() int {
	return len(c.order)
}
