package system

import (
	"github.com/kelindar/bitmap"

	"github.com/kodebolds/froggies/internal/core/ecs"
	"github.com/kodebolds/froggies/internal/core/job"
)

// SystemID identifies a registered system.
type SystemID int

type declaration struct {
	access   Access
	upstream []SystemID
}

// node is one scheduled system update within the current frame.
type node struct {
	system SystemID
	handle job.Handle
}

// typeState remembers, for one component type, the node that last wrote it
// and the nodes that read it since. Node references are index+1; 0 is none.
type typeState struct {
	writer  int
	readers []int
}

// Tracker computes the handle a system has to wait for from the accesses
// registered earlier in the frame. Two accesses to the same type conflict
// unless both are reads. In the wait-set a writer lists the readers since
// the last write and a reader lists the last writer. The combined handle of
// a writer also covers the last writer, since a reader may register a
// handle that was not chained on its input.
type Tracker struct {
	decls  map[SystemID]declaration
	nodes  []node
	types  [ecs.MaxComponentTypes]typeState
	latest map[SystemID]int
}

func NewTracker() *Tracker {
	return &Tracker{
		decls:  make(map[SystemID]declaration),
		latest: make(map[SystemID]int),
	}
}

// Declare records the access set and explicit upstream systems of id.
func (t *Tracker) Declare(id SystemID, access Access, upstream []SystemID) {
	t.decls[id] = declaration{access: access, upstream: upstream}
}

// waitNodes collects the nodes id conflicts with. With lastWriter set a
// writer keeps the last writer of a type even when readers came after it.
func (t *Tracker) waitNodes(id SystemID, lastWriter bool) bitmap.Bitmap {
	var wait bitmap.Bitmap
	decl := t.decls[id]
	decl.access.Range(func(c ecs.ComponentID, m Mode) {
		st := &t.types[c]
		if m == Write && len(st.readers) > 0 {
			for _, r := range st.readers {
				wait.Set(uint32(r - 1))
			}
			if !lastWriter {
				return
			}
		}
		if st.writer > 0 {
			wait.Set(uint32(st.writer - 1))
		}
	})
	for _, up := range decl.upstream {
		if n := t.latest[up]; n > 0 {
			wait.Set(uint32(n - 1))
		}
	}
	return wait
}

// WaitSet returns the systems id has to wait for, in scheduling order.
func (t *Tracker) WaitSet(id SystemID) []SystemID {
	var out []SystemID
	seen := make(map[SystemID]bool)
	wait := t.waitNodes(id, false)
	wait.Range(func(n uint32) {
		s := t.nodes[n].system
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	})
	return out
}

// CombinedHandle returns a handle that completes once every conflicting
// node registered so far in this frame has completed.
func (t *Tracker) CombinedHandle(id SystemID) job.Handle {
	var handles []job.Handle
	wait := t.waitNodes(id, true)
	wait.Range(func(n uint32) {
		handles = append(handles, t.nodes[n].handle)
	})
	return job.Combine(handles...)
}

// RegisterCompletion makes id, finishing with h, the latest writer or
// reader of every type it declared.
func (t *Tracker) RegisterCompletion(id SystemID, h job.Handle) {
	t.nodes = append(t.nodes, node{system: id, handle: h})
	ref := len(t.nodes)
	t.decls[id].access.Range(func(c ecs.ComponentID, m Mode) {
		st := &t.types[c]
		if m == Write {
			st.writer = ref
			st.readers = st.readers[:0]
			return
		}
		st.readers = append(st.readers, ref)
	})
	t.latest[id] = ref
}

// Nodes returns the number of nodes registered this frame.
func (t *Tracker) Nodes() int { return len(t.nodes) }

// Reset discards the frame's nodes. Declarations are kept.
func (t *Tracker) Reset() {
	clear(t.nodes)
	t.nodes = t.nodes[:0]
	for i := range t.types {
		t.types[i].writer = 0
		t.types[i].readers = t.types[i].readers[:0]
	}
	clear(t.latest)
}
