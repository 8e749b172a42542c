package window

// Ring is a fixed-capacity circular buffer of nanosecond samples.
type Ring struct {
	slots []int64
}

// NewRing allocates a ring of n zeroed slots.
func NewRing(n int) *Ring {
	return &Ring{slots: make([]int64, n)}
}

// Len returns the capacity.
func (r *Ring) Len() int {
	return len(r.slots)
}

// Put overwrites the slot for index.
func (r *Ring) Put(index uint64, v int64) {
	r.slots[index%uint64(len(r.slots))] = v
}

// At returns the slot for index.
func (r *Ring) At(index uint64) int64 {
	return r.slots[index%uint64(len(r.slots))]
}

// Stats summarizes every slot, written or not.
func (r *Ring) Stats() Stats {
	if len(r.slots) == 0 {
		return Stats{}
	}
	var sum int64
	minV, maxV := r.slots[0], r.slots[0]
	for _, v := range r.slots {
		sum += v
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return Stats{
		Avg: sum / int64(len(r.slots)),
		Min: minV,
		Max: maxV,
	}
}
