package fusion

import (
	"fmt"
	"testing"
)

func scoreVector(values ...float64) []float64 {
	return values
}

func TestHistoryBufferWarmupGating(t *testing.T) {
	t.Parallel()

	buf := NewHistoryBuffer(3, 5)
	for i := 0; i < 4; i++ {
		if buf.IsFull() {
			t.Fatalf("buffer reported full after %d pushes", i)
		}
		buf.Push(scoreVector(0.1, 0.2, 0.3))
	}
	if buf.IsFull() {
		t.Fatal("buffer reported full after 4 of 5 pushes")
	}

	buf.Push(scoreVector(0.1, 0.2, 0.3))
	if !buf.IsFull() {
		t.Fatal("buffer not full after 5 pushes")
	}

	// The full flag is sticky for the rest of the process.
	for i := 0; i < 20; i++ {
		buf.Push(scoreVector(0, 0, 0))
		if !buf.IsFull() {
			t.Fatalf("full flag cleared after %d extra pushes", i+1)
		}
	}
}

func TestHistoryBufferSnapshotChronologicalOrder(t *testing.T) {
	t.Parallel()

	const window = 5
	buf := NewHistoryBuffer(1, window)

	// Push well past a single wrap and verify after every push that the
	// snapshot is exactly the last W vectors, oldest first.
	for n := 1; n <= 23; n++ {
		buf.Push(scoreVector(float64(n)))

		snap := buf.Snapshot()
		expectLen := n
		if expectLen > window {
			expectLen = window
		}
		if len(snap) != expectLen {
			t.Fatalf("after %d pushes snapshot has %d entries, expected %d", n, len(snap), expectLen)
		}

		oldest := n - expectLen + 1
		for i, vec := range snap {
			want := float64(oldest + i)
			if vec[0] != want {
				t.Fatalf("after %d pushes snapshot[%d]=%v, expected %v", n, i, vec[0], want)
			}
		}
	}
}

func TestHistoryBufferOverwritesOldest(t *testing.T) {
	t.Parallel()

	const window = 5
	buf := NewHistoryBuffer(1, window)

	first := scoreVector(111.0)
	buf.Push(first)
	for i := 0; i < window; i++ {
		buf.Push(scoreVector(float64(i)))
	}

	for _, vec := range buf.Snapshot() {
		if vec[0] == first[0] {
			t.Fatalf("vector from the first push still present after %d pushes", window+1)
		}
	}
}

func TestHistoryBufferSnapshotCopiesStorage(t *testing.T) {
	t.Parallel()

	buf := NewHistoryBuffer(2, 2)
	buf.Push(scoreVector(0.5, 0.5))
	buf.Push(scoreVector(0.25, 0.75))

	snap := buf.Snapshot()
	snap[0][0] = 99.0
	snap[1][1] = 99.0

	again := buf.Snapshot()
	if again[0][0] != 0.5 || again[1][1] != 0.75 {
		t.Fatalf("mutating a snapshot leaked into ring storage: %v", again)
	}
}

func TestHistoryBufferPushCopiesInput(t *testing.T) {
	t.Parallel()

	buf := NewHistoryBuffer(2, 2)
	vec := scoreVector(0.5, 0.5)
	buf.Push(vec)
	vec[0] = 42.0

	buf.Push(scoreVector(0, 0))
	snap := buf.Snapshot()
	if snap[0][0] != 0.5 {
		t.Fatalf("mutating the caller's vector after Push leaked into the ring: %v", snap[0])
	}
}

func TestHistoryBufferLenAndPushes(t *testing.T) {
	t.Parallel()

	buf := NewHistoryBuffer(1, 3)
	for i := 1; i <= 7; i++ {
		buf.Push(scoreVector(0))
		wantLen := i
		if wantLen > 3 {
			wantLen = 3
		}
		if buf.Len() != wantLen {
			t.Fatalf("after %d pushes Len()=%d, expected %d", i, buf.Len(), wantLen)
		}
		if buf.Pushes() != uint64(i) {
			t.Fatalf("after %d pushes Pushes()=%d", i, buf.Pushes())
		}
	}
	if buf.Capacity() != 3 {
		t.Fatalf("Capacity()=%d, expected 3", buf.Capacity())
	}
}

func ExampleHistoryBuffer_Snapshot() {
	buf := NewHistoryBuffer(1, 3)
	for i := 1; i <= 4; i++ {
		buf.Push([]float64{float64(i)})
	}
	for _, vec := range buf.Snapshot() {
		fmt.Println(vec[0])
	}
	// Output:
	// 2
	// 3
	// 4
}
