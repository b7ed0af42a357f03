package fusion

// HistoryBuffer is a fixed-capacity ring of the most recent per-window score
// vectors. Storage is allocated once and overwritten in place; the buffer is
// written by exactly one inference cycle at a time.
//
// Push writes at the cursor and advances it modulo the window count; the
// full flag latches true after the first complete wrap and never clears
// again.
type HistoryBuffer struct {
	slots   [][]float64
	cursor  int
	wrapped bool

	classCount int
	pushes     uint64
}

// NewHistoryBuffer allocates a ring holding windowCount vectors of classCount
// scores each.
func NewHistoryBuffer(classCount, windowCount int) *HistoryBuffer {
	slots := make([][]float64, windowCount)
	for i := range slots {
		slots[i] = make([]float64, classCount)
	}
	return &HistoryBuffer{
		slots:      slots,
		classCount: classCount,
	}
}

// Push stores vector into the current write slot, overwriting the oldest
// entry once the ring has wrapped. The caller guarantees len(vector) ==
// classCount; Detector.Observe enforces that boundary before delegating here.
func (h *HistoryBuffer) Push(vector []float64) {
	copy(h.slots[h.cursor], vector)
	h.cursor = (h.cursor + 1) % len(h.slots)
	if h.cursor == 0 {
		h.wrapped = true
	}
	h.pushes++
}

// IsFull reports whether the ring has seen at least one full wrap. Once true
// it stays true for the remainder of the process.
func (h *HistoryBuffer) IsFull() bool {
	return h.wrapped
}

// Len returns how many slots currently hold real data (capped at the window
// count).
func (h *HistoryBuffer) Len() int {
	if h.wrapped {
		return len(h.slots)
	}
	return h.cursor
}

// Pushes returns the total number of vectors written since startup.
func (h *HistoryBuffer) Pushes() uint64 {
	return h.pushes
}

// Capacity returns the window count W.
func (h *HistoryBuffer) Capacity() int {
	return len(h.slots)
}

// Snapshot returns the buffered vectors in chronological order, oldest first
// and most recent last, re-deriving logical order from the ring cursor. The
// returned vectors are copies; mutating them never touches ring storage.
//
// Before the first wrap the snapshot is shorter than the window count and
// must not be fused; callers gate on IsFull.
func (h *HistoryBuffer) Snapshot() [][]float64 {
	count := h.Len()
	out := make([][]float64, count)

	start := 0
	if h.wrapped {
		// Oldest entry sits at the write cursor once the ring has wrapped.
		start = h.cursor
	}

	for i := 0; i < count; i++ {
		src := h.slots[(start+i)%len(h.slots)]
		vec := make([]float64, h.classCount)
		copy(vec, src)
		out[i] = vec
	}
	return out
}
