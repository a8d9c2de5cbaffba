package vm

import "github.com/pkg/errors"

// heap is a bump allocator with two zones: PERM grows upward from 0 to
// highWater, TEMP grows from highWater using dynMarker. AllocPerm is
// refused once the TEMP zone has been opened; AllocTemp does not check
// whether PERM allocations were made before it.
type heap struct {
	buf        []byte
	highWater  int
	dynMarker  int
	permClosed bool
}

func newHeap(size int) *heap {
	return &heap{buf: make([]byte, size)}
}

// AllocPerm bumps the PERM zone by n bytes and returns its base offset.
func (h *heap) AllocPerm(n int) (int, error) {
	if h.permClosed {
		return 0, errors.New("vm: PERM allocation after TEMP zone opened")
	}
	if h.highWater+n > len(h.buf) {
		return 0, errOutOfMemory
	}
	base := h.highWater
	h.highWater += n
	h.dynMarker = h.highWater
	return base, nil
}

// ClosePerm freezes the PERM zone, permitting TEMP allocations afterward.
func (h *heap) ClosePerm() { h.permClosed = true }

// AllocTemp bumps the TEMP zone by n bytes from dynMarker.
func (h *heap) AllocTemp(n int) (int, error) {
	if h.dynMarker+n > len(h.buf) {
		return 0, errOutOfMemory
	}
	base := h.dynMarker
	h.dynMarker += n
	return base, nil
}

// Grow extends the most recent TEMP allocation in place by n bytes.
func (h *heap) Grow(n int) error {
	if h.dynMarker+n > len(h.buf) {
		return errOutOfMemory
	}
	h.dynMarker += n
	return nil
}

// Return releases the tail n bytes of the TEMP region.
func (h *heap) Return(n int) {
	h.dynMarker -= n
	if h.dynMarker < h.highWater {
		h.dynMarker = h.highWater
	}
}

// Reset rewinds TEMP back to the PERM high-water mark, for reuse across
// successive filter invocations without touching compiled PERM data.
func (h *heap) Reset() { h.dynMarker = h.highWater }

func (h *heap) Bytes(off, n int) []byte { return h.buf[off : off+n] }
