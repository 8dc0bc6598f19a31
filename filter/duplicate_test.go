package filter

import "testing"

func TestApplyFirstSeenNotPresent(t *testing.T) {
	f := New(64)
	present, digest := f.Apply([]byte("hello"))
	if present {
		t.Fatalf("first application reported present")
	}
	if digest.IsZero() {
		t.Fatalf("digest should not be zero for non-empty input")
	}
}

func TestApplyRepeatIsPresent(t *testing.T) {
	f := New(64)
	f.Apply([]byte("hello"))
	present, _ := f.Apply([]byte("hello"))
	if !present {
		t.Fatalf("repeated application did not report present")
	}
}

func TestApplySingleSlotBoundary(t *testing.T) {
	f := New(1)
	present, _ := f.Apply([]byte("a"))
	if present {
		t.Fatalf("first item in a size-1 filter should not be present")
	}
	present, _ = f.Apply([]byte("a"))
	if !present {
		t.Fatalf("repeated item in a size-1 filter should be present")
	}
	// A distinct item in a size-1 filter necessarily lands on the same slot
	// and evicts "a"'s digest from it.
	present, _ = f.Apply([]byte("b"))
	if present {
		t.Fatalf("distinct item should not spuriously report present")
	}
	// "a" was evicted by "b" occupying the only slot, so re-applying "a"
	// now sees a mismatched occupant and correctly reports not-present.
	present, _ = f.Apply([]byte("a"))
	if present {
		t.Fatalf("\"a\" was evicted by \"b\"; re-application should not report present")
	}
}

func TestClearDigestRemovesOccupant(t *testing.T) {
	f := New(64)
	_, digest := f.Apply([]byte("hello"))
	f.ClearDigest(digest)
	present, _ := f.Apply([]byte("hello"))
	if present {
		t.Fatalf("cleared digest should not be reported present")
	}
}

func TestClearResetsEverySlot(t *testing.T) {
	f := New(64)
	for i := 0; i < 10; i++ {
		f.Apply([]byte{byte(i)})
	}
	f.Clear()
	for i := 0; i < 10; i++ {
		present, _ := f.Apply([]byte{byte(i)})
		if present {
			t.Fatalf("input %d reported present after Clear", i)
		}
	}
}

func TestApplyCycleDeterministic(t *testing.T) {
	f := New(5000)
	inputs := make([][]byte, 2000)
	for i := range inputs {
		inputs[i] = []byte{byte(i), byte(i >> 8), byte(i >> 16)}
	}

	firstPassPresent := 0
	for _, in := range inputs {
		if present, _ := f.Apply(in); present {
			firstPassPresent++
		}
	}

	secondPassPresent := 0
	for _, in := range inputs {
		if present, _ := f.Apply(in); present {
			secondPassPresent++
		}
	}
	// Inputs sharing a slot keep overwriting each other on every pass, so
	// the second pass need not report all of them present; what must hold
	// is that the filter has reached a fixed point and a third identical
	// pass reports exactly the same count.
	thirdPassPresent := 0
	for _, in := range inputs {
		if present, _ := f.Apply(in); present {
			thirdPassPresent++
		}
	}
	if thirdPassPresent != secondPassPresent {
		t.Fatalf("third identical pass: got %d present, want %d like the second pass", thirdPassPresent, secondPassPresent)
	}
}

func TestSizeIsFixed(t *testing.T) {
	f := New(128)
	if f.Size() != 128 {
		t.Fatalf("Size() = %d, want 128", f.Size())
	}
	f.Apply([]byte("x"))
	if f.Size() != 128 {
		t.Fatalf("Size() changed after Apply: %d", f.Size())
	}
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	f := New(0)
	if f.Size() != 1 {
		t.Fatalf("New(0).Size() = %d, want 1", f.Size())
	}
}
