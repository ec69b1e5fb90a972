package serial

import "testing"

func TestAllocatorMonotonic(t *testing.T) {
	a := NewAllocator()
	prev := a.Next()
	for i := 0; i < 1000; i++ {
		s := a.Next()
		if s <= prev {
			t.Fatalf("serial %d did not increase past %d", s, prev)
		}
		prev = s
	}
}

func TestRingCoalescesContiguous(t *testing.T) {
	var r Ring
	for s := Serial(1); s <= 10; s++ {
		r.Record(s)
	}
	if r.Len() != 1 {
		t.Fatalf("expected contiguous serials to coalesce into one range, got %d", r.Len())
	}
}

func TestRingEvictsOldest(t *testing.T) {
	var r Ring
	// force non-contiguous ranges so each Record grows the ring instead
	// of coalescing.
	for i := 0; i < maxRanges+10; i++ {
		r.Record(Serial(i * 100))
	}
	if r.Len() != maxRanges {
		t.Fatalf("expected ring bounded at %d, got %d", maxRanges, r.Len())
	}
}

func TestReconstructRoundTrip(t *testing.T) {
	a := NewAllocator()
	var r Ring
	var last Serial
	for i := 0; i < 5; i++ {
		last = a.Next()
		r.Record(last)
	}
	got, err := r.Reconstruct(uint32(last))
	if err != nil {
		t.Fatal(err)
	}
	if got != last {
		t.Fatalf("got %d, want %d", got, last)
	}
}

func TestReconstructAroundWrap(t *testing.T) {
	var r Ring
	// emulate serials emitted one at a time up to 0x1_0000_0005, which
	// coalesce into a single contiguous range.
	for s := Serial(0x1_0000_0000); s <= 0x1_0000_0005; s++ {
		r.Record(s)
	}
	got, err := r.Reconstruct(0x0000_0003)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x1_0000_0003 {
		t.Fatalf("got %#x, want %#x", uint64(got), uint64(0x1_0000_0003))
	}
}

func TestReconstructAboveMostRecentIsInvalid(t *testing.T) {
	var r Ring
	r.Record(10)
	_, err := r.Reconstruct(20)
	if err != ErrInvalidEcho {
		t.Fatalf("got %v, want ErrInvalidEcho", err)
	}
}

func TestReconstructEmptyRingNotFound(t *testing.T) {
	var r Ring
	_, err := r.Reconstruct(5)
	if err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestReconstructBelowOldestWhenFullIsOptimisticallyAccepted(t *testing.T) {
	var r Ring
	for i := 0; i < maxRanges; i++ {
		r.Record(Serial(1000 + i*100))
	}
	// candidate clearly below the oldest retained lo, but the ring is
	// at capacity so an even older range must have been evicted.
	got, err := r.Reconstruct(5)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
}

func TestReconstructGapBetweenRangesNotFound(t *testing.T) {
	var r Ring
	r.Record(10)
	r.Record(500)
	_, err := r.Reconstruct(100)
	if err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound for a candidate in the gap between ranges", err)
	}
}
