package trie

import (
	"testing"

	"github.com/ComposableFi/emulated-light-client-sub001/pkg/adapter"
	"github.com/ComposableFi/emulated-light-client-sub001/pkg/ghash"
)

func TestOpenInitialisesEmptyRegion(t *testing.T) {
	store := adapter.NewMemStore()
	a, root, err := OpenAllocator(store)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if root.Ptr != 0 || !root.Hash.IsZero() {
		t.Fatalf("expected empty root, got %+v", root)
	}
	if a.nextBlock != HeaderSize {
		t.Fatalf("nextBlock = %d, want %d", a.nextBlock, HeaderSize)
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	store := adapter.NewMemStore()
	store.Enlarge(HeaderSize)
	bad := make([]byte, HeaderSize)
	bad[0] = 0xFF
	store.WriteAt(bad, 0)

	if _, _, err := OpenAllocator(store); err != ErrBadHeader {
		t.Fatalf("expected ErrBadHeader, got %v", err)
	}
}

func TestAllocGetSetRoundTrip(t *testing.T) {
	store := adapter.NewMemStore()
	a, _, err := OpenAllocator(store)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	n := Branch(NodeRef(0, ghash.Sum([]byte("left"))), NodeRef(0, ghash.Sum([]byte("right"))))
	ptr, err := a.Alloc(n)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if ptr != HeaderSize {
		t.Fatalf("first allocated ptr = %d, want %d", ptr, HeaderSize)
	}

	got, err := a.Get(ptr)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Children != n.Children {
		t.Fatalf("round-tripped node mismatch: got %+v want %+v", got, n)
	}

	replacement := Branch(NodeRef(0, ghash.Sum([]byte("new-left"))), NodeRef(0, ghash.Sum([]byte("new-right"))))
	if err := a.Set(ptr, replacement); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err = a.Get(ptr)
	if err != nil {
		t.Fatalf("Get after Set: %v", err)
	}
	if got.Children != replacement.Children {
		t.Fatalf("Set did not take effect: got %+v", got)
	}
}

func TestAllocAdvancesNextBlockByRawNodeSize(t *testing.T) {
	store := adapter.NewMemStore()
	a, _, err := OpenAllocator(store)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	n := Branch(NodeRef(0, ghash.Sum([]byte("a"))), NodeRef(0, ghash.Sum([]byte("b"))))

	p1, _ := a.Alloc(n)
	p2, _ := a.Alloc(n)
	if p2-p1 != RawNodeSize {
		t.Fatalf("second pointer = %d, want %d (first %d + RawNodeSize)", p2, p1+RawNodeSize, p1)
	}
}

func TestFreeListReuseIsLIFO(t *testing.T) {
	store := adapter.NewMemStore()
	a, _, err := OpenAllocator(store)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	n := Branch(NodeRef(0, ghash.Sum([]byte("a"))), NodeRef(0, ghash.Sum([]byte("b"))))

	p1, _ := a.Alloc(n)
	p2, _ := a.Alloc(n)
	p3, _ := a.Alloc(n)

	if err := a.Free(p2); err != nil {
		t.Fatalf("Free(p2): %v", err)
	}
	if err := a.Free(p3); err != nil {
		t.Fatalf("Free(p3): %v", err)
	}

	// LIFO: the most recently freed block (p3) is reused first.
	reused1, err := a.Alloc(n)
	if err != nil {
		t.Fatalf("Alloc after free: %v", err)
	}
	if reused1 != p3 {
		t.Fatalf("first reused ptr = %d, want %d (LIFO)", reused1, p3)
	}
	reused2, err := a.Alloc(n)
	if err != nil {
		t.Fatalf("Alloc after free: %v", err)
	}
	if reused2 != p2 {
		t.Fatalf("second reused ptr = %d, want %d (LIFO)", reused2, p2)
	}
	_ = p1
}

func TestFreeDetectsDoubleFree(t *testing.T) {
	store := adapter.NewMemStore()
	a, _, err := OpenAllocator(store)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	n := Branch(NodeRef(0, ghash.Sum([]byte("a"))), NodeRef(0, ghash.Sum([]byte("b"))))
	ptr, _ := a.Alloc(n)

	if err := a.Free(ptr); err != nil {
		t.Fatalf("Free: %v", err)
	}

	defer func() {
		r := recover()
		if r != ErrDoubleFree {
			t.Fatalf("expected panic(ErrDoubleFree) on double free, got %v", r)
		}
	}()
	a.Free(ptr)
	t.Fatalf("expected Free to panic on double-free")
}

func TestCommitPersistsRootAcrossOpen(t *testing.T) {
	store := adapter.NewMemStore()
	a, _, err := OpenAllocator(store)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	n := Branch(NodeRef(0, ghash.Sum([]byte("a"))), NodeRef(0, ghash.Sum([]byte("b"))))
	ptr, _ := a.Alloc(n)
	h, err := Hash(n)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := a.Commit(Root{Ptr: ptr, Hash: h}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	_, root, err := OpenAllocator(store)
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	if root.Ptr != ptr || root.Hash != h {
		t.Fatalf("root after re-Open = %+v, want ptr=%d hash=%s", root, ptr, h)
	}
}
