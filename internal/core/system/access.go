package system

import (
	"fmt"

	"github.com/kelindar/bitmap"

	"github.com/kodebolds/froggies/internal/core/ecs"
)

// Mode is how a system touches a component type.
type Mode uint8

const (
	Read Mode = iota
	Write
)

func (m Mode) String() string {
	if m == Write {
		return "write"
	}
	return "read"
}

// Access is the set of component types a system reads and writes. Writing a
// type implies reading it.
type Access struct {
	reads  bitmap.Bitmap
	writes bitmap.Bitmap
}

func (a *Access) Read(ids ...ecs.ComponentID) {
	for _, id := range ids {
		if !a.writes.Contains(uint32(id)) {
			a.reads.Set(uint32(id))
		}
	}
}

func (a *Access) Write(ids ...ecs.ComponentID) {
	for _, id := range ids {
		a.reads.Remove(uint32(id))
		a.writes.Set(uint32(id))
	}
}

// Reads reports whether id may be read, which includes written types.
func (a Access) Reads(id ecs.ComponentID) bool {
	return a.reads.Contains(uint32(id)) || a.writes.Contains(uint32(id))
}

func (a Access) Writes(id ecs.ComponentID) bool {
	return a.writes.Contains(uint32(id))
}

func (a Access) Empty() bool {
	return a.reads.Count() == 0 && a.writes.Count() == 0
}

// Range calls fn for every declared type with its strongest mode.
func (a Access) Range(fn func(id ecs.ComponentID, m Mode)) {
	a.writes.Range(func(x uint32) { fn(ecs.ComponentID(x), Write) })
	a.reads.Range(func(x uint32) { fn(ecs.ComponentID(x), Read) })
}

// Conflicts reports whether running a and b concurrently could race: one
// writes a type the other reads or writes.
func (a Access) Conflicts(b Access) bool {
	return overlaps(a.writes, b.writes) || overlaps(a.writes, b.reads) || overlaps(a.reads, b.writes)
}

func overlaps(x, y bitmap.Bitmap) bool {
	both := x.Clone(nil)
	both.And(y)
	return both.Count() > 0
}

func (a Access) String() string {
	return fmt.Sprintf("reads=%d writes=%d", a.reads.Count(), a.writes.Count())
}

// Dependencies collects one system's declaration during DeclareDependencies.
type Dependencies struct {
	driver   *Driver
	self     *entry
	access   Access
	upstream []SystemID
	err      error
}

func (d *Dependencies) Store() *ecs.Store { return d.driver.store }

// Read declares read access to ids.
func (d *Dependencies) Read(ids ...ecs.ComponentID) *Dependencies {
	d.access.Read(ids...)
	return d
}

// Write declares write access to ids.
func (d *Dependencies) Write(ids ...ecs.ComponentID) *Dependencies {
	d.access.Write(ids...)
	return d
}

// Reads declares read access to component or buffer type T.
func Reads[T any](d *Dependencies) {
	d.Read(ecs.MustID[T](d.driver.store))
}

// Writes declares write access to component or buffer type T.
func Writes[T any](d *Dependencies) {
	d.Write(ecs.MustID[T](d.driver.store))
}

// Upstream makes the declaring system wait for the registered system of
// type T every frame and returns it, so derived non-component state (such
// as a computed target) can be read safely.
func Upstream[T System](d *Dependencies) T {
	for _, e := range d.driver.entries {
		if s, ok := e.sys.(T); ok && e != d.self {
			d.upstream = append(d.upstream, e.id)
			return s
		}
	}
	var zero T
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s needs %T", ErrMissingUpstream, d.self.sys.Name(), zero)
	}
	return zero
}
