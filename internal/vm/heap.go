package vm

// Zone selects which end of the heap an allocation comes from.
type Zone uint8

const (
	// ZonePerm allocations bump the high-water mark and live for the life
	// of the VM (constant-pool array payloads).
	ZonePerm Zone = iota

	// ZoneTemp allocations bump the transient marker and are released when
	// the marker is rewound at the start of the next execution, or
	// explicitly via Return.
	ZoneTemp
)

const heapAlign = 8 // alignof(max scalar alignment) on every platform we target

func alignUp(n uint64) uint64 {
	return (n + heapAlign - 1) &^ (heapAlign - 1)
}

// Heap is a single byte buffer split into a permanent zone (growing up from
// offset 0) and a transient zone stacked directly above it (growing up from
// the high-water mark), per spec §3.
// The two-marker discipline is enforced here rather than merely documented:
// Alloc(ZonePerm) refuses to run while a temporary allocation is
// outstanding, and Alloc(ZoneTemp) always lands contiguously after the
// previous temporary allocation so that only the most recent one can be
// grown or returned.
type Heap struct {
	buf       []byte
	highwater uint64 // permanent zone: [0, highwater)
	dynmarker uint64 // transient zone: [highwater, highwater+dynmarker)
	lastTemp  uint64 // offset of the most recent temp allocation, for Grow/Return
	lastSize  uint64
}

// NewHeap allocates a heap of the given total capacity.
func NewHeap(size int) *Heap {
	return &Heap{buf: make([]byte, size)}
}

func (h *Heap) cap() uint64 { return uint64(len(h.buf)) }

// Alloc reserves size bytes in the given zone and returns the byte offset of
// the allocation, or ErrOutOfMemory if the heap is exhausted or the
// perm/temp discipline would be violated.
func (h *Heap) Alloc(size int, zone Zone) (uint64, error) {
	if size < 0 {
		return 0, ErrOutOfMemory
	}
	n := alignUp(uint64(size))

	switch zone {
	case ZonePerm:
		if h.dynmarker > 0 {
			return 0, ErrOutOfMemory
		}
		if h.highwater+n > h.cap() {
			return 0, ErrOutOfMemory
		}
		off := h.highwater
		h.highwater += n
		return off, nil

	case ZoneTemp:
		if h.highwater+h.dynmarker+n > h.cap() {
			return 0, ErrOutOfMemory
		}
		off := h.highwater + h.dynmarker
		h.dynmarker += n
		h.lastTemp = off
		h.lastSize = n
		return off, nil

	default:
		return 0, ErrOutOfMemory
	}
}

// Grow extends the most recently issued temporary allocation to newsize
// bytes. It is an error to grow anything but the last temporary allocation.
func (h *Heap) Grow(offset uint64, newsize int) error {
	if offset != h.lastTemp {
		return ErrOutOfMemory
	}
	n := alignUp(uint64(newsize))
	delta := n - h.lastSize
	if newsize < 0 || n < h.lastSize {
		return ErrOutOfMemory
	}
	if h.highwater+h.dynmarker+delta > h.cap() {
		return ErrOutOfMemory
	}
	h.dynmarker += delta
	h.lastSize = n
	return nil
}

// Return pops size bytes off the transient marker, releasing the most
// recent temporary allocation(s).
func (h *Heap) Return(size int) error {
	n := alignUp(uint64(size))
	if n > h.dynmarker {
		return ErrOutOfMemory
	}
	h.dynmarker -= n
	h.lastTemp = 0
	h.lastSize = 0
	return nil
}

// ResetTemp rewinds the transient marker to empty. Called at the start of
// every program execution.
func (h *Heap) ResetTemp() {
	h.dynmarker = 0
	h.lastTemp = 0
	h.lastSize = 0
}

// Bytes returns a mutable view of the byte range [offset, offset+size).
func (h *Heap) Bytes(offset uint64, size int) []byte {
	return h.buf[offset : offset+uint64(size)]
}

// CheckArray validates an array descriptor's bounds before it is dereferenced:
// the element size must fit in a Cell and the described range must lie
// within the heap.
func (h *Heap) CheckArray(d ArrayDesc) error {
	if uint64(d.Elsiz) > cellMaxElemSize {
		return ErrBadArray
	}
	end := d.Base + uint64(d.Nels)*uint64(d.Elsiz)
	if end > h.cap() || end < d.Base {
		return ErrBadArray
	}
	return nil
}

// cellMaxElemSize bounds ArrayDesc.Elsiz the way the spec's
// "elsiz <= sizeof(cell)" invariant requires; WideAS is the largest scalar
// the VM arrays ever hold (an 8-byte int64).
const cellMaxElemSize = 8
