// Package trie implements the sealable sparse Merkle trie: a binary
// Branch/Extension trie whose nodes live in fixed-size blocks of a
// byte-addressable store (see pkg/adapter.Store) managed by an in-module
// Allocator. Keys are bitslice.Slice values up to 8192 bits; values are
// identified by their 32-byte hash, never stored in full by the trie
// itself.
package trie

import (
	"encoding/binary"
	"errors"

	"github.com/ComposableFi/emulated-light-client-sub001/pkg/bitslice"
	"github.com/ComposableFi/emulated-light-client-sub001/pkg/ghash"
)

const (
	// RawNodeSize is the fixed, canonical on-disk size of every trie node.
	RawNodeSize = 72
	refSize     = 36
	extKeyBytes = 34
	// MaxExtensionBits is the longest key an Extension node can hold in a
	// single 34-byte key field. Longer keys are represented as chained
	// Extension nodes.
	MaxExtensionBits = bitslice.MaxChunkBits
	// maxPtr is the largest representable allocator pointer: 30 bits, since
	// a reference's top two bits are reserved for the node/value tag.
	maxPtr = 1<<30 - 1
)

// ErrBadRawNode is returned when a 72-byte block does not decode to a
// canonical node: this indicates storage corruption and is fatal for the
// trie session that observes it (spec.md §7).
var ErrBadRawNode = errors.New("trie: corrupt raw node encoding")

// Kind distinguishes the two node shapes a RawNode can hold.
type Kind byte

const (
	KindBranch Kind = iota
	KindExtension
)

// Ref is a 36-byte trie reference: either a node reference (allocator
// pointer plus subtree hash) or a value reference (sealed flag plus value
// hash). Node and value references are distinguished by the second
// most-significant bit of their first encoded byte; the most significant
// bit is always zero so that a Branch (whose first encoded byte is its
// first child's first byte) can never be mistaken for an Extension.
type Ref struct {
	IsValue bool
	// Ptr is the node-reference pointer into the allocator. Ptr == 0 means
	// the referenced subtree is sealed and its storage has been freed.
	Ptr uint32
	// Sealed is the value-reference sealed flag.
	Sealed bool
	// Hash is the subtree hash (node reference) or value hash (value
	// reference).
	Hash ghash.Hash
}

// NodeRef builds a live node reference.
func NodeRef(ptr uint32, hash ghash.Hash) Ref { return Ref{Ptr: ptr, Hash: hash} }

// SealedNodeRef builds a node reference for a subtree that has been
// entirely sealed and pruned: its storage is gone, only the hash remains.
func SealedNodeRef(hash ghash.Hash) Ref { return Ref{Ptr: 0, Hash: hash} }

// ValueRef builds a value reference.
func ValueRef(sealed bool, hash ghash.Hash) Ref {
	return Ref{IsValue: true, Sealed: sealed, Hash: hash}
}

// IsSealedNode reports whether r is a node reference whose subtree has
// been pruned (pointer gone, hash-only).
func (r Ref) IsSealedNode() bool { return !r.IsValue && r.Ptr == 0 }

// Node is the decoded, structured form of a RawNode.
type Node struct {
	Kind Kind

	// Children holds both branch children; valid only when Kind ==
	// KindBranch.
	Children [2]Ref

	// Key and Child describe an Extension node; valid only when Kind ==
	// KindExtension. Key.Len() is in 1..MaxExtensionBits.
	Key   bitslice.Slice
	Child Ref
}

// Branch constructs a Branch node from its two children.
func Branch(left, right Ref) Node {
	return Node{Kind: KindBranch, Children: [2]Ref{left, right}}
}

// Extension constructs an Extension node. key must be non-empty and at
// most MaxExtensionBits long, and key.Offset()+key.Len() must fit within
// the 34-byte key field (extKeyBytes*8 bits) -- callers chunking a longer
// key (bitslice.Slice.Chunks) should reserve key.Offset() bits of that
// budget for the first chunk.
func Extension(key bitslice.Slice, child Ref) Node {
	return Node{Kind: KindExtension, Key: key, Child: child}
}

func encodeRef(r Ref, out []byte) {
	if r.IsValue {
		out[0] = 0x40
		if r.Sealed {
			out[0] |= 0x20
		}
		out[1], out[2], out[3] = 0, 0, 0
	} else {
		binary.BigEndian.PutUint32(out[0:4], r.Ptr&maxPtr)
	}
	copy(out[4:refSize], r.Hash[:])
}

// encodeRefForHash renders r the same way encodeRef does, except a node
// reference's allocator pointer is always zeroed. The pointer is a storage
// detail -- where a subtree happens to live in this process's allocator --
// not part of the subtree's content, so it must not affect the subtree's
// hash (original_source/common/sealable-trie/src/nodes.rs's RawNode doc
// comment: internal details "don't take part in hashing of the node").
func encodeRefForHash(r Ref, out []byte) {
	if r.IsValue {
		out[0] = 0x40
		if r.Sealed {
			out[0] |= 0x20
		}
		out[1], out[2], out[3] = 0, 0, 0
	} else {
		out[0], out[1], out[2], out[3] = 0, 0, 0, 0
	}
	copy(out[4:refSize], r.Hash[:])
}

func decodeRef(in []byte) (Ref, error) {
	switch in[0] >> 6 {
	case 0b00:
		ptr := binary.BigEndian.Uint32(in[0:4])
		var h ghash.Hash
		copy(h[:], in[4:refSize])
		return Ref{Ptr: ptr, Hash: h}, nil
	case 0b01:
		if in[0]&0x1F != 0 || in[1] != 0 || in[2] != 0 || in[3] != 0 {
			return Ref{}, ErrBadRawNode
		}
		sealed := in[0]&0x20 != 0
		var h ghash.Hash
		copy(h[:], in[4:refSize])
		return Ref{IsValue: true, Sealed: sealed, Hash: h}, nil
	default:
		return Ref{}, ErrBadRawNode
	}
}

// EncodeNode renders n into its canonical 72-byte representation.
func EncodeNode(n Node) ([RawNodeSize]byte, error) {
	var out [RawNodeSize]byte
	switch n.Kind {
	case KindBranch:
		encodeRef(n.Children[0], out[0:refSize])
		encodeRef(n.Children[1], out[refSize:2*refSize])
	case KindExtension:
		length := n.Key.Len()
		offset := n.Key.Offset()
		if length == 0 || length > MaxExtensionBits {
			return out, ErrBadRawNode
		}
		if int(offset)+int(length) > extKeyBytes*8 {
			return out, ErrBadRawNode
		}
		out[0] = 0x80 | byte((length>>5)&0x0F)
		out[1] = byte((length&0x1F)<<3) | (offset & 0x07)
		keyBuf := out[2 : 2+extKeyBytes]
		for i := uint16(0); i < length; i++ {
			bit, _ := n.Key.Bit(i)
			if bit == 0 {
				continue
			}
			idx := int(offset) + int(i)
			keyBuf[idx/8] |= 1 << uint(7-idx%8)
		}
		encodeRef(n.Child, out[2+extKeyBytes:RawNodeSize])
	default:
		return out, ErrBadRawNode
	}
	return out, nil
}

// DecodeNode parses a canonical 72-byte block back into a Node, failing
// with ErrBadRawNode if the encoding is not canonical (non-zero reserved
// bits, unused key bits set, an out-of-range length, or a malformed
// reference).
func DecodeNode(raw []byte) (Node, error) {
	if len(raw) != RawNodeSize {
		return Node{}, ErrBadRawNode
	}
	if raw[0]&0x80 == 0 {
		r0, err := decodeRef(raw[0:refSize])
		if err != nil {
			return Node{}, err
		}
		r1, err := decodeRef(raw[refSize : 2*refSize])
		if err != nil {
			return Node{}, err
		}
		return Branch(r0, r1), nil
	}

	if raw[0]&0x70 != 0 {
		return Node{}, ErrBadRawNode
	}
	length := (uint16(raw[0]&0x0F) << 5) | uint16(raw[1]>>3)
	offset := raw[1] & 0x07
	if length == 0 || length > MaxExtensionBits {
		return Node{}, ErrBadRawNode
	}
	if int(offset)+int(length) > extKeyBytes*8 {
		return Node{}, ErrBadRawNode
	}
	keyBuf := raw[2 : 2+extKeyBytes]
	for i := int(offset) + int(length); i < extKeyBytes*8; i++ {
		if keyBuf[i/8]&(1<<uint(7-i%8)) != 0 {
			return Node{}, ErrBadRawNode
		}
	}
	key, err := bitslice.New(keyBuf, offset, length)
	if err != nil {
		return Node{}, ErrBadRawNode
	}
	child, err := decodeRef(raw[2+extKeyBytes:RawNodeSize])
	if err != nil {
		return Node{}, err
	}
	return Extension(key, child), nil
}

// encodeNodeForHash renders n the same way EncodeNode does, except every
// node-reference pointer is zeroed. See encodeRefForHash.
func encodeNodeForHash(n Node) ([RawNodeSize]byte, error) {
	var out [RawNodeSize]byte
	switch n.Kind {
	case KindBranch:
		encodeRefForHash(n.Children[0], out[0:refSize])
		encodeRefForHash(n.Children[1], out[refSize:2*refSize])
	case KindExtension:
		length := n.Key.Len()
		offset := n.Key.Offset()
		if length == 0 || length > MaxExtensionBits {
			return out, ErrBadRawNode
		}
		if int(offset)+int(length) > extKeyBytes*8 {
			return out, ErrBadRawNode
		}
		out[0] = 0x80 | byte((length>>5)&0x0F)
		out[1] = byte((length&0x1F)<<3) | (offset & 0x07)
		keyBuf := out[2 : 2+extKeyBytes]
		for i := uint16(0); i < length; i++ {
			bit, _ := n.Key.Bit(i)
			if bit == 0 {
				continue
			}
			idx := int(offset) + int(i)
			keyBuf[idx/8] |= 1 << uint(7-idx%8)
		}
		encodeRefForHash(n.Child, out[2+extKeyBytes:RawNodeSize])
	default:
		return out, ErrBadRawNode
	}
	return out, nil
}

// Hash computes a node's hash: the digest of its canonical encoding with
// node-reference allocator pointers zeroed, so the hash depends only on the
// subtree's content and never on where its children happen to be allocated.
func Hash(n Node) (ghash.Hash, error) {
	raw, err := encodeNodeForHash(n)
	if err != nil {
		return ghash.Hash{}, err
	}
	return ghash.Sum(raw[:]), nil
}
