package trie

import (
	"github.com/ComposableFi/emulated-light-client-sub001/pkg/bitslice"
	"github.com/ComposableFi/emulated-light-client-sub001/pkg/ghash"
)

// ProofStep is one record of a membership proof, ordered root-to-leaf
// (spec.md §4.1 "Proof format"). A Branch step carries the sibling that was
// not descended into; an Extension step carries the key bits consumed at
// that node, both needed to re-derive the node's hash during Verify.
type ProofStep struct {
	IsBranch bool

	// Bit and Sibling are valid when IsBranch is true: Bit is the side the
	// proof descended into, Sibling is the other child's reference.
	Bit     byte
	Sibling Ref

	// Key is valid when IsBranch is false: the Extension node's key bits.
	Key bitslice.Slice
}

// Prove walks the trie for key exactly as Get does, additionally recording
// a proof sufficient for Verify to reconstruct the root hash. It fails with
// ErrSealed under the same conditions as Get; a key with no live value
// yields found = false with the partial proof accumulated so far.
func (t *Trie) Prove(key bitslice.Slice) (ghash.Hash, bool, []ProofStep, error) {
	if key.Len() == 0 {
		return ghash.Hash{}, false, nil, ErrEmptyKey
	}
	if t.root.Ptr == 0 {
		if !t.root.Hash.IsZero() {
			return ghash.Hash{}, false, nil, ErrSealed
		}
		return ghash.Hash{}, false, nil, nil
	}
	return t.proveAt(NodeRef(uint32(t.root.Ptr), t.root.Hash), key, nil)
}

func (t *Trie) proveAt(ref Ref, key bitslice.Slice, steps []ProofStep) (ghash.Hash, bool, []ProofStep, error) {
	if ref.IsValue {
		if key.Len() != 0 {
			return ghash.Hash{}, false, steps, nil
		}
		if ref.Sealed {
			return ghash.Hash{}, false, steps, ErrSealed
		}
		return ref.Hash, true, steps, nil
	}
	if ref.IsSealedNode() {
		return ghash.Hash{}, false, steps, ErrSealed
	}
	node, err := t.alloc.Get(Ptr(ref.Ptr))
	if err != nil {
		return ghash.Hash{}, false, steps, err
	}
	switch node.Kind {
	case KindBranch:
		if key.Len() == 0 {
			return ghash.Hash{}, false, steps, nil
		}
		bit, _ := key.Bit(0)
		rest, _ := key.StripPrefix(oneBitSlice(bit))
		step := ProofStep{IsBranch: true, Bit: bit, Sibling: node.Children[1-bit]}
		return t.proveAt(node.Children[bit], rest, append(steps, step))
	case KindExtension:
		if !node.Key.IsPrefixOf(key) {
			return ghash.Hash{}, false, steps, nil
		}
		rest, _ := key.StripPrefix(node.Key)
		step := ProofStep{Key: node.Key}
		return t.proveAt(node.Child, rest, append(steps, step))
	}
	return ghash.Hash{}, false, steps, ErrBadRawNode
}

// Verify reconstructs the root hash from proof, the queried key, and the
// claimed value hash, and reports whether it matches root. It only handles
// membership proofs: value must be the hash Prove returned with found =
// true. Mutating a step's bit, key bits, or sibling hash or kind, or passing
// a different key, changes the reconstructed root and so fails
// verification. A sibling's Ptr is not part of the hash and is not checked.
func Verify(proof []ProofStep, key bitslice.Slice, value ghash.Hash, root ghash.Hash) bool {
	reconstructed := &pathBuilder{}
	for _, step := range proof {
		if step.IsBranch {
			reconstructed.appendBit(step.Bit)
		} else {
			reconstructed.appendSlice(step.Key)
		}
	}
	if !reconstructed.snapshot().Equal(key) {
		return false
	}

	childRef := ValueRef(false, value)
	for i := len(proof) - 1; i >= 0; i-- {
		step := proof[i]
		var node Node
		if step.IsBranch {
			var children [2]Ref
			children[step.Bit] = childRef
			children[1-step.Bit] = step.Sibling
			node = Branch(children[0], children[1])
		} else {
			node = Extension(step.Key, childRef)
		}
		h, err := Hash(node)
		if err != nil {
			return false
		}
		childRef = NodeRef(0, h)
	}
	return childRef.Hash == root
}
