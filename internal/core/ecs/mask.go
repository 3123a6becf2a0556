package ecs

// mask represents a set of up to 256 component IDs. It is used to uniquely
// identify archetypes and to match filters against them. Each bit corresponds
// to a component ID.
type mask [4]uint64

func (m *mask) set(id ComponentID) {
	m[id>>6] |= uint64(1) << (id & 63)
}

func (m *mask) unset(id ComponentID) {
	m[id>>6] &^= uint64(1) << (id & 63)
}

func (m mask) has(id ComponentID) bool {
	return m[id>>6]&(uint64(1)<<(id&63)) != 0
}

// contains checks if all the bits set in sub are also set in m.
func (m mask) contains(sub mask) bool {
	return (m[0]&sub[0]) == sub[0] &&
		(m[1]&sub[1]) == sub[1] &&
		(m[2]&sub[2]) == sub[2] &&
		(m[3]&sub[3]) == sub[3]
}

// intersects checks if m has any bits in common with other.
func (m mask) intersects(other mask) bool {
	return (m[0]&other[0]) != 0 ||
		(m[1]&other[1]) != 0 ||
		(m[2]&other[2]) != 0 ||
		(m[3]&other[3]) != 0
}

func makeMask(ids []ComponentID) mask {
	var m mask
	for _, id := range ids {
		m.set(id)
	}
	return m
}
