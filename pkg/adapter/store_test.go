package adapter

import "testing"

func TestMemStoreReadWriteRoundTrip(t *testing.T) {
	s := NewMemStore()
	if !s.Enlarge(8) {
		t.Fatalf("Enlarge failed")
	}
	if s.Len() != 8 {
		t.Fatalf("Len() = %d, want 8", s.Len())
	}
	want := []byte{1, 2, 3, 4}
	if err := s.WriteAt(want, 2); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	got := make([]byte, 4)
	if err := s.ReadAt(got, 2); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ReadAt = %v, want %v", got, want)
		}
	}
}

func TestMemStoreOutOfRange(t *testing.T) {
	s := NewMemStore()
	s.Enlarge(4)
	if err := s.ReadAt(make([]byte, 2), 3); err != ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange on read, got %v", err)
	}
	if err := s.WriteAt(make([]byte, 2), 3); err != ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange on write, got %v", err)
	}
}

func TestMemStoreEnlargePreservesContent(t *testing.T) {
	s := NewMemStore()
	s.Enlarge(2)
	s.WriteAt([]byte{9, 9}, 0)
	s.Enlarge(4)
	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}
	got := make([]byte, 2)
	s.ReadAt(got, 0)
	if got[0] != 9 || got[1] != 9 {
		t.Fatalf("content lost after enlarge: %v", got)
	}
}

func TestMemStoreEnlargeShrinkIsNoop(t *testing.T) {
	s := NewMemStore()
	s.Enlarge(8)
	if !s.Enlarge(4) {
		t.Fatalf("Enlarge to smaller size should still report success")
	}
	if s.Len() != 8 {
		t.Fatalf("Len() = %d, want unchanged 8", s.Len())
	}
}
