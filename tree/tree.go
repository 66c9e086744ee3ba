package tree

import (
	"sort"

	"github.com/ChristianF88/searchviz/ingestor"
)

// DefaultObjectiveDomain is the solution payload key holding the objective
// bounds.
const DefaultObjectiveDomain = "cost"

// Options configures a build.
type Options struct {
	ObjectiveDomain string
}

// Forest is the linked search tree of one session. It owns its id index, so
// two forests never share state.
type Forest struct {
	Roots   []*ingestor.Record
	Records []*ingestor.Record // ascending id

	// Dangling counts real nodes whose parent id did not resolve.
	Dangling int
	// DanglingNogoods counts nogood references to ids that are not in the log.
	DanglingNogoods int
	// Duplicates counts records whose id was already indexed.
	Duplicates int

	index     map[int64]*ingestor.Record
	realIDs   []int64            // sorted ids >= 0, for predecessor search
	starts    []*ingestor.Record // restart roots in id order
	restarts  int
	objective string
}

// Build links records into a forest and fills every derived field. Records
// are stable sorted by id in place.
func Build(records []*ingestor.Record, opts Options) *Forest {
	if opts.ObjectiveDomain == "" {
		opts.ObjectiveDomain = DefaultObjectiveDomain
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	f := &Forest{
		Records:   records,
		index:     make(map[int64]*ingestor.Record, len(records)),
		objective: opts.ObjectiveDomain,
	}
	for i, rec := range records {
		if rec.ID != ingestor.RootID {
			rec.VisID = i
		}
		rec.Children = nil
		rec.FutureNogoods = nil
		if rec.ID == ingestor.Missing {
			continue
		}
		if _, exists := f.index[rec.ID]; exists {
			f.Duplicates++
			continue
		}
		f.index[rec.ID] = rec
		if rec.ID >= 0 {
			f.realIDs = append(f.realIDs, rec.ID)
		}
	}

	futureNogoods := make(map[int64][]int64)
	var lastBound *ingestor.Bound

	for _, rec := range records {
		pred := f.Predecessor(rec.ID)

		// elapsed time
		switch {
		case rec.ID < 0:
			rec.TimeTaken = 0
		case rec.ID == 0 || pred == nil:
			rec.TimeTaken = rec.Timestamp
		default:
			rec.TimeTaken = rec.Timestamp - pred.Timestamp
		}

		// objective bound
		rec.ObjDomain = nil
		if lo, hi, ok := rec.Solution.Domain(opts.ObjectiveDomain); ok && !rec.HasNogoods() {
			rec.ObjDomain = &ingestor.Bound{Min: lo, Range: hi - lo + 1}
			lastBound = rec.ObjDomain
		} else if rec.ID >= 0 && lastBound != nil {
			b := *lastBound
			rec.ObjDomain = &b
		}

		// future nogoods
		if rec.HasNogoods() {
			for _, ng := range rec.Solution.Nogoods {
				futureNogoods[ng] = appendUnique(futureNogoods[ng], rec.ID)
			}
		}

		f.link(rec)
	}

	for id, dependants := range futureNogoods {
		if target, ok := f.index[id]; ok {
			target.FutureNogoods = dependants
		} else {
			f.DanglingNogoods++
		}
	}

	f.promoteUnreachable()
	f.assignRestarts()
	return f
}

// link attaches rec to its parent or makes it a forest root.
func (f *Forest) link(rec *ingestor.Record) {
	parent := f.parentOf(rec)
	if parent != nil {
		if rec.ParentID == ingestor.RootID {
			rec.Root = true
		}
		if rec.ParentID < 0 {
			f.starts = append(f.starts, rec)
		}
		parent.Children = append(parent.Children, rec)
		return
	}

	if rec.ID != ingestor.RootID {
		f.Dangling++
	}
	f.starts = append(f.starts, rec)
	f.Roots = append(f.Roots, rec)
}

// assignRestarts numbers the restart roots and then walks down from every
// forest root, so a child always sees its parent's final values whatever
// their ids. Roots without an id are numbered after all others.
func (f *Forest) assignRestarts() {
	ordinal := make(map[*ingestor.Record]int, len(f.starts))
	for _, missing := range []bool{false, true} {
		for _, rec := range f.starts {
			if (rec.ID == ingestor.Missing) == missing {
				ordinal[rec] = f.nextRestart(rec)
			}
		}
	}

	for _, root := range f.Roots {
		root.RestartCount = 0
		root.RestartID = ordinal[root]
		stack := []*ingestor.Record{root}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, c := range n.Children {
				if id, ok := ordinal[c]; ok {
					c.RestartCount = 0
					c.RestartID = id
				} else {
					c.RestartCount = n.RestartCount + 1
					c.RestartID = n.RestartID
				}
				stack = append(stack, c)
			}
		}
	}
	f.starts = nil
}

func (f *Forest) parentOf(rec *ingestor.Record) *ingestor.Record {
	if rec.ParentID == ingestor.Missing || rec.ParentID == rec.ID {
		return nil
	}
	parent, ok := f.index[rec.ParentID]
	if !ok || parent == rec {
		return nil
	}
	return parent
}

// nextRestart numbers restart roots. The synthetic root and the first real
// restart share restart 0.
func (f *Forest) nextRestart(rec *ingestor.Record) int {
	if rec.ID == ingestor.RootID {
		return 0
	}
	id := f.restarts
	f.restarts++
	return id
}

// promoteUnreachable turns nodes caught in parent cycles into roots so that
// every record is reachable from exactly one root.
func (f *Forest) promoteUnreachable() {
	seen := make(map[*ingestor.Record]bool, len(f.Records))
	for _, root := range f.Roots {
		walk(root, func(r *ingestor.Record) bool {
			seen[r] = true
			return true
		})
	}
	if len(seen) == len(f.Records) {
		return
	}
	for _, rec := range f.Records {
		if seen[rec] {
			continue
		}
		if parent := f.parentOf(rec); parent != nil {
			parent.Children = removeChild(parent.Children, rec)
		}
		f.Dangling++
		f.starts = append(f.starts, rec)
		f.Roots = append(f.Roots, rec)
		walk(rec, func(r *ingestor.Record) bool {
			seen[r] = true
			return true
		})
	}
}

// ObjectiveDomain returns the solution payload key the bounds were read from.
func (f *Forest) ObjectiveDomain() string {
	return f.objective
}

// Lookup returns the record with the given id.
func (f *Forest) Lookup(id int64) (*ingestor.Record, bool) {
	r, ok := f.index[id]
	return r, ok
}

// Predecessor returns the record with the largest non-negative id below id,
// or nil.
func (f *Forest) Predecessor(id int64) *ingestor.Record {
	i := sort.Search(len(f.realIDs), func(i int) bool { return f.realIDs[i] >= id })
	if i == 0 {
		return nil
	}
	return f.index[f.realIDs[i-1]]
}

// Restarts returns the number of distinct restart ids.
func (f *Forest) Restarts() int {
	if f.restarts == 0 {
		return 1
	}
	return f.restarts
}

// Walk visits every node depth first, parents before children. Returning
// false from fn skips the node's subtree.
func (f *Forest) Walk(fn func(r *ingestor.Record) bool) {
	for _, root := range f.Roots {
		walk(root, fn)
	}
}

func walk(root *ingestor.Record, fn func(r *ingestor.Record) bool) {
	stack := []*ingestor.Record{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// Reachable counts the nodes reachable from all roots.
func (f *Forest) Reachable() int {
	n := 0
	f.Walk(func(*ingestor.Record) bool {
		n++
		return true
	})
	return n
}

// MaxDepth returns the deepest tree level, roots being level 0.
func (f *Forest) MaxDepth() int {
	maxDepth := 0
	type item struct {
		r     *ingestor.Record
		level int
	}
	stack := make([]item, 0, len(f.Roots))
	for _, root := range f.Roots {
		stack = append(stack, item{root, 0})
	}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.level > maxDepth {
			maxDepth = it.level
		}
		for _, c := range it.r.Children {
			stack = append(stack, item{c, it.level + 1})
		}
	}
	return maxDepth
}

// Leaves returns the records without children in id order.
func (f *Forest) Leaves() []*ingestor.Record {
	var out []*ingestor.Record
	for _, r := range f.Records {
		if r.IsLeaf() {
			out = append(out, r)
		}
	}
	return out
}

// NogoodLinks returns the ids related to a node through nogoods: the
// failures its own payload relies on, followed by later nodes relying on it.
func (f *Forest) NogoodLinks(id int64) (uses []int64, usedBy []int64) {
	rec, ok := f.index[id]
	if !ok {
		return nil, nil
	}
	if rec.HasNogoods() {
		uses = append(uses, rec.Solution.Nogoods...)
	}
	usedBy = append(usedBy, rec.FutureNogoods...)
	return uses, usedBy
}

// IDsWhere returns the selection ids of every record matching pred, in id
// order. Records without an id cannot be selected and are left out.
func (f *Forest) IDsWhere(pred func(r *ingestor.Record) bool) []int64 {
	var ids []int64
	for _, r := range f.Records {
		if r.SelectionID() != ingestor.Missing && pred(r) {
			ids = append(ids, r.SelectionID())
		}
	}
	return ids
}

// Subtree returns the ids of a node and all its descendants.
func (f *Forest) Subtree(id int64) []int64 {
	rec, ok := f.index[id]
	if !ok {
		return nil
	}
	var ids []int64
	walk(rec, func(r *ingestor.Record) bool {
		ids = append(ids, r.ID)
		return true
	})
	return ids
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeChild(children []*ingestor.Record, child *ingestor.Record) []*ingestor.Record {
	out := children[:0]
	for _, c := range children {
		if c != child {
			out = append(out, c)
		}
	}
	return out
}
