package trie

import (
	"encoding/binary"
	"errors"

	"github.com/ComposableFi/emulated-light-client-sub001/pkg/adapter"
	"github.com/ComposableFi/emulated-light-client-sub001/pkg/ghash"
)

// HeaderSize is the fixed size of the region header: magic (8B), root
// pointer (4B), root hash (32B), next_block (4B), first_free (4B), and 12
// reserved bytes.
const HeaderSize = 64

// magicV1 marks an initialised, version-1 trie region. An all-zero header
// means the region has never been used.
var magicV1 = [8]byte{0xd2, 0x97, 0x1f, 0x41, 0x20, 0x4a, 0xd6, 0xed}

var (
	// ErrOutOfMemory is returned by Alloc when the allocator cannot grow
	// its backing store any further.
	ErrOutOfMemory = errors.New("trie: allocator out of memory")
	// ErrBadHeader is returned by OpenAllocator when the region's header carries an
	// unrecognised magic number.
	ErrBadHeader = errors.New("trie: corrupt allocator header")
)

// ErrDoubleFree is the panic value raised by Free when a block's
// double-free canary (its last 32 bytes, already zeroed) indicates it was
// already freed. This is a programming-error precondition violation, not
// a recoverable runtime error (spec.md §7).
var ErrDoubleFree = errors.New("trie: double free detected")

// Ptr is a 30-bit non-zero byte offset into an Allocator's backing store.
// Ptr(0) means "no block" -- an empty trie, or a sealed/pruned subtree.
type Ptr uint32

// Root is the trie root as recorded in the allocator's header.
type Root struct {
	Ptr  Ptr
	Hash ghash.Hash
}

// Allocator manages fixed RawNodeSize blocks inside an adapter.Store. It
// never relocates a live block once allocated; growth is monotone except
// for LIFO free-list reuse (spec.md §5's memory model).
type Allocator struct {
	store     adapter.Store
	nextBlock uint32
	firstFree uint32
}

// OpenAllocator reads the header at the front of store, initialising it (and the
// store itself, enlarging as needed) if it has never been used, and
// returns a ready Allocator together with the trie root it describes.
func OpenAllocator(store adapter.Store) (*Allocator, Root, error) {
	if store.Len() < HeaderSize && !store.Enlarge(HeaderSize) {
		return nil, Root{}, ErrOutOfMemory
	}
	hdr := make([]byte, HeaderSize)
	if err := store.ReadAt(hdr, 0); err != nil {
		return nil, Root{}, err
	}

	var magic [8]byte
	copy(magic[:], hdr[0:8])
	if magic == ([8]byte{}) {
		a := &Allocator{store: store, nextBlock: HeaderSize}
		if err := a.writeHeader(Root{}); err != nil {
			return nil, Root{}, err
		}
		return a, Root{}, nil
	}
	if magic != magicV1 {
		return nil, Root{}, ErrBadHeader
	}

	rootPtr := binary.LittleEndian.Uint32(hdr[8:12])
	var rootHash ghash.Hash
	copy(rootHash[:], hdr[12:44])
	a := &Allocator{
		store:     store,
		nextBlock: binary.LittleEndian.Uint32(hdr[44:48]),
		firstFree: binary.LittleEndian.Uint32(hdr[48:52]),
	}
	return a, Root{Ptr: Ptr(rootPtr), Hash: rootHash}, nil
}

func (a *Allocator) writeHeader(root Root) error {
	var hdr [HeaderSize]byte
	copy(hdr[0:8], magicV1[:])
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(root.Ptr))
	copy(hdr[12:44], root.Hash[:])
	binary.LittleEndian.PutUint32(hdr[44:48], a.nextBlock)
	binary.LittleEndian.PutUint32(hdr[48:52], a.firstFree)
	return a.store.WriteAt(hdr[:], 0)
}

// Commit publishes root and the allocator's current next_block/first_free
// bookkeeping to the header. This is the only point at which the header --
// and therefore the trie's published root -- changes; node writes made
// before Commit leave the header, and so the visible root, untouched.
func (a *Allocator) Commit(root Root) error { return a.writeHeader(root) }

func (a *Allocator) allocFromFreelist() (Ptr, bool, error) {
	if a.firstFree == 0 {
		return 0, false, nil
	}
	ptr := a.firstFree
	buf := make([]byte, 4)
	if err := a.store.ReadAt(buf, int(ptr)); err != nil {
		return 0, false, err
	}
	a.firstFree = binary.LittleEndian.Uint32(buf)
	return Ptr(ptr), true, nil
}

func (a *Allocator) allocNextBlock() (Ptr, bool) {
	ptr := a.nextBlock
	if ptr > maxPtr {
		return 0, false
	}
	end := ptr + RawNodeSize
	if end > uint32(a.store.Len()) && !a.store.Enlarge(int(end)) {
		return 0, false
	}
	a.nextBlock = end
	return Ptr(ptr), true
}

// Alloc encodes n and stores it in a fresh or freelist-recycled block,
// returning its pointer.
func (a *Allocator) Alloc(n Node) (Ptr, error) {
	raw, err := EncodeNode(n)
	if err != nil {
		return 0, err
	}
	ptr, ok, err := a.allocFromFreelist()
	if err != nil {
		return 0, err
	}
	if !ok {
		ptr, ok = a.allocNextBlock()
		if !ok {
			return 0, ErrOutOfMemory
		}
	}
	if err := a.store.WriteAt(raw[:], int(ptr)); err != nil {
		return 0, err
	}
	return ptr, nil
}

// Get decodes the node stored at ptr.
func (a *Allocator) Get(ptr Ptr) (Node, error) {
	buf := make([]byte, RawNodeSize)
	if err := a.store.ReadAt(buf, int(ptr)); err != nil {
		return Node{}, err
	}
	return DecodeNode(buf)
}

// Set overwrites the node stored at ptr in place.
func (a *Allocator) Set(ptr Ptr, n Node) error {
	raw, err := EncodeNode(n)
	if err != nil {
		return err
	}
	return a.store.WriteAt(raw[:], int(ptr))
}

// Free returns ptr's block to the free list. It panics with ErrDoubleFree
// if the block's last 32 bytes are already all-zero: by collision
// resistance a live node can never hash to all zeros, so an all-zero tail
// can only mean the block was already freed.
func (a *Allocator) Free(ptr Ptr) error {
	buf := make([]byte, RawNodeSize)
	if err := a.store.ReadAt(buf, int(ptr)); err != nil {
		return err
	}
	tail := buf[RawNodeSize-32:]
	allZero := true
	for _, b := range tail {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		panic(ErrDoubleFree)
	}
	for i := range tail {
		tail[i] = 0
	}
	binary.LittleEndian.PutUint32(buf[0:4], a.firstFree)
	if err := a.store.WriteAt(buf, int(ptr)); err != nil {
		return err
	}
	a.firstFree = uint32(ptr)
	return nil
}
