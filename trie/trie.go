// Package trie implements the persistent Merkle-Patricia trie of spec §4.2:
// a binary (nibble, 16-ary) trie whose nodes are content-addressed in a
// key/value back-end, where any historical root remains a valid read entry
// point. It is grounded on the teacher's immutable-trie/NodeStore/buffered-
// write idiom, adapted to the tagged Leaf/Extension/Branch node shapes spec
// §4.2 names explicitly and to fixed 16-ary nibble paths.
package trie

import (
	"github.com/chainkit/statenode/common"
	"github.com/chainkit/statenode/kvstore"
	"github.com/chainkit/statenode/nodehash"
)

// Trie is a mutable handle on a persistent trie. Put/Delete never touch the
// underlying key/value store directly: new nodes are staged in an overlay
// and only reach the store when Flush is called, so an abandoned
// StoreTransformation (spec §4.4) leaves the store untouched.
type Trie struct {
	store         *NodeStore
	overlayNodes  map[nodehash.Digest]*Node
	overlayValues map[nodehash.Digest][]byte
	root          nodehash.Digest
}

// New opens a Trie at a given root (the zero Digest means the empty trie).
func New(kv common.KVReader, hasher nodehash.Hasher, root nodehash.Digest) *Trie {
	return &Trie{
		store:         NewNodeStore(kv, hasher),
		overlayNodes:  make(map[nodehash.Digest]*Node),
		overlayValues: make(map[nodehash.Digest][]byte),
		root:          root,
	}
}

// Root returns the trie's current root digest; the zero Digest means empty
// (testable property 3: a trie that ends up with an empty mapping has the
// absent root).
func (t *Trie) Root() nodehash.Digest { return t.root }

func (t *Trie) fetch(d nodehash.Digest) (*Node, error) {
	if n, ok := t.overlayNodes[d]; ok {
		return n, nil
	}
	return t.store.FetchNode(d)
}

func (t *Trie) resolveValue(inline []byte, ref nodehash.Digest) ([]byte, error) {
	if inline != nil {
		return inline, nil
	}
	if v, ok := t.overlayValues[ref]; ok {
		return v, nil
	}
	return t.store.FetchValue(ref)
}

func (t *Trie) putNode(n *Node) nodehash.Digest {
	d := t.store.hash(n.Bytes())
	t.overlayNodes[d] = n
	return d
}

func (t *Trie) putValue(value []byte) ([]byte, nodehash.Digest) {
	if isInline(value) {
		return value, nodehash.Digest{}
	}
	d := t.store.hash(value)
	t.overlayValues[d] = value
	return nil, d
}

func keyPath(store *NodeStore, key []byte) []byte {
	return UnpackNibbles(store.hash(key).Bytes())
}

// Get resolves key's current value. A false second return means absent.
func (t *Trie) Get(key []byte) ([]byte, bool, error) {
	return t.get(t.root, keyPath(t.store, key))
}

func (t *Trie) get(cur nodehash.Digest, path []byte) ([]byte, bool, error) {
	if cur.IsZero() {
		return nil, false, nil
	}
	n, err := t.fetch(cur)
	if err != nil {
		return nil, false, err
	}
	switch n.Kind {
	case KindLeaf:
		if !nibblesEqual(n.Path, path) {
			return nil, false, nil
		}
		v, err := t.resolveValue(n.ValueInline, n.ValueRef)
		return v, true, err
	case KindExtension:
		if len(path) < len(n.Path) || !nibblesEqual(n.Path, path[:len(n.Path)]) {
			return nil, false, nil
		}
		return t.get(n.Child, path[len(n.Path):])
	case KindBranch:
		if len(path) == 0 {
			if !n.HasValue {
				return nil, false, nil
			}
			v, err := t.resolveValue(n.BranchValueInline, n.BranchValueRef)
			return v, true, err
		}
		return t.get(n.Children[path[0]], path[1:])
	default:
		common.Assert(false, "trie: unreachable node kind %d", n.Kind)
		return nil, false, nil
	}
}

// Put inserts or replaces key's value, producing a new root. A nil value
// deletes the key. Put is gas-free and deterministic: identical (key,value)
// sets always produce the same root regardless of insertion order, and a
// Put that does not change the mapping yields the same root.
func (t *Trie) Put(key, value []byte) error {
	path := keyPath(t.store, key)
	if value == nil {
		newRoot, err := t.delete(t.root, path)
		if err != nil {
			return err
		}
		t.root = newRoot
		return nil
	}
	newRoot, err := t.insert(t.root, path, value)
	if err != nil {
		return err
	}
	t.root = newRoot
	return nil
}

// Delete removes key, if present.
func (t *Trie) Delete(key []byte) error { return t.Put(key, nil) }

func (t *Trie) insert(cur nodehash.Digest, path, value []byte) (nodehash.Digest, error) {
	if cur.IsZero() {
		inline, ref := t.putValue(value)
		return t.putNode(&Node{Kind: KindLeaf, Path: clone(path), ValueInline: inline, ValueRef: ref}), nil
	}
	n, err := t.fetch(cur)
	if err != nil {
		return nodehash.Digest{}, err
	}
	switch n.Kind {
	case KindLeaf:
		return t.insertAtLeaf(n, path, value)
	case KindExtension:
		return t.insertAtExtension(n, path, value)
	case KindBranch:
		return t.insertAtBranch(n, path, value)
	default:
		common.Assert(false, "trie: unreachable node kind %d", n.Kind)
		return nodehash.Digest{}, nil
	}
}

func (t *Trie) insertAtLeaf(n *Node, path, value []byte) (nodehash.Digest, error) {
	cp := commonPrefixLen(n.Path, path)
	if cp == len(n.Path) && cp == len(path) {
		inline, ref := t.putValue(value)
		return t.putNode(&Node{Kind: KindLeaf, Path: clone(n.Path), ValueInline: inline, ValueRef: ref}), nil
	}

	branch := &Node{Kind: KindBranch}
	if cp == len(n.Path) {
		branch.HasValue = true
		branch.BranchValueInline, branch.BranchValueRef = n.ValueInline, n.ValueRef
	} else {
		nibble := n.Path[cp]
		remainder := n.Path[cp+1:]
		branch.Children[nibble] = t.putNode(&Node{Kind: KindLeaf, Path: clone(remainder), ValueInline: n.ValueInline, ValueRef: n.ValueRef})
	}
	if cp == len(path) {
		branch.HasValue = true
		branch.BranchValueInline, branch.BranchValueRef = t.putValue(value)
	} else {
		nibble := path[cp]
		remainder := path[cp+1:]
		inline, ref := t.putValue(value)
		branch.Children[nibble] = t.putNode(&Node{Kind: KindLeaf, Path: clone(remainder), ValueInline: inline, ValueRef: ref})
	}
	return t.wrapWithPrefix(path[:cp], branch), nil
}

func (t *Trie) insertAtExtension(n *Node, path, value []byte) (nodehash.Digest, error) {
	cp := commonPrefixLen(n.Path, path)
	if cp == len(n.Path) {
		newChild, err := t.insert(n.Child, path[cp:], value)
		if err != nil {
			return nodehash.Digest{}, err
		}
		return t.putNode(&Node{Kind: KindExtension, Path: clone(n.Path), Child: newChild}), nil
	}

	branch := &Node{Kind: KindBranch}
	existingNibble := n.Path[cp]
	var existingChild nodehash.Digest
	if cp+1 == len(n.Path) {
		existingChild = n.Child
	} else {
		existingChild = t.putNode(&Node{Kind: KindExtension, Path: clone(n.Path[cp+1:]), Child: n.Child})
	}
	branch.Children[existingNibble] = existingChild

	if cp == len(path) {
		branch.HasValue = true
		branch.BranchValueInline, branch.BranchValueRef = t.putValue(value)
	} else {
		nibble := path[cp]
		remainder := path[cp+1:]
		inline, ref := t.putValue(value)
		branch.Children[nibble] = t.putNode(&Node{Kind: KindLeaf, Path: clone(remainder), ValueInline: inline, ValueRef: ref})
	}
	return t.wrapWithPrefix(path[:cp], branch), nil
}

func (t *Trie) insertAtBranch(n *Node, path, value []byte) (nodehash.Digest, error) {
	newBranch := cloneBranch(n)
	if len(path) == 0 {
		newBranch.HasValue = true
		newBranch.BranchValueInline, newBranch.BranchValueRef = t.putValue(value)
		return t.putNode(newBranch), nil
	}
	nibble := path[0]
	newChild, err := t.insert(n.Children[nibble], path[1:], value)
	if err != nil {
		return nodehash.Digest{}, err
	}
	newBranch.Children[nibble] = newChild
	return t.putNode(newBranch), nil
}

// wrapWithPrefix wraps a freshly built branch with an Extension carrying the
// shared prefix, unless the prefix is empty.
func (t *Trie) wrapWithPrefix(prefix []byte, branch *Node) nodehash.Digest {
	branchDigest := t.putNode(branch)
	if len(prefix) == 0 {
		return branchDigest
	}
	return t.putNode(&Node{Kind: KindExtension, Path: clone(prefix), Child: branchDigest})
}

func (t *Trie) delete(cur nodehash.Digest, path []byte) (nodehash.Digest, error) {
	if cur.IsZero() {
		return cur, nil
	}
	n, err := t.fetch(cur)
	if err != nil {
		return nodehash.Digest{}, err
	}
	switch n.Kind {
	case KindLeaf:
		if nibblesEqual(n.Path, path) {
			return nodehash.Digest{}, nil
		}
		return cur, nil
	case KindExtension:
		if len(path) < len(n.Path) || !nibblesEqual(n.Path, path[:len(n.Path)]) {
			return cur, nil
		}
		newChild, err := t.delete(n.Child, path[len(n.Path):])
		if err != nil {
			return nodehash.Digest{}, err
		}
		if newChild == n.Child {
			return cur, nil
		}
		if newChild.IsZero() {
			return nodehash.Digest{}, nil
		}
		return t.fuseExtension(n.Path, newChild)
	case KindBranch:
		newBranch := cloneBranch(n)
		if len(path) == 0 {
			if !n.HasValue {
				return cur, nil
			}
			newBranch.HasValue = false
			newBranch.BranchValueInline, newBranch.BranchValueRef = nil, nodehash.Digest{}
			return t.collapseBranch(newBranch)
		}
		nibble := path[0]
		newChild, err := t.delete(n.Children[nibble], path[1:])
		if err != nil {
			return nodehash.Digest{}, err
		}
		if newChild == n.Children[nibble] {
			return cur, nil
		}
		newBranch.Children[nibble] = newChild
		return t.collapseBranch(newBranch)
	default:
		common.Assert(false, "trie: unreachable node kind %d", n.Kind)
		return nodehash.Digest{}, nil
	}
}

// fuseExtension merges an extension's prefix with its (possibly newly
// collapsed) child so the trie stays in canonical form regardless of the
// order keys were inserted or removed in.
func (t *Trie) fuseExtension(prefix []byte, childDigest nodehash.Digest) (nodehash.Digest, error) {
	child, err := t.fetch(childDigest)
	if err != nil {
		return nodehash.Digest{}, err
	}
	switch child.Kind {
	case KindLeaf:
		return t.putNode(&Node{Kind: KindLeaf, Path: concatNibbles(prefix, child.Path), ValueInline: child.ValueInline, ValueRef: child.ValueRef}), nil
	case KindExtension:
		return t.putNode(&Node{Kind: KindExtension, Path: concatNibbles(prefix, child.Path), Child: child.Child}), nil
	default: // KindBranch
		return t.putNode(&Node{Kind: KindExtension, Path: clone(prefix), Child: childDigest}), nil
	}
}

// collapseBranch restores canonical form after a branch lost a child or its
// own value: zero children left collapses to empty (or a bare leaf if a
// value remains), exactly one child left fuses with that child.
func (t *Trie) collapseBranch(b *Node) (nodehash.Digest, error) {
	count, last := 0, -1
	for i, c := range b.Children {
		if !c.IsZero() {
			count++
			last = i
		}
	}
	switch {
	case count == 0 && !b.HasValue:
		return nodehash.Digest{}, nil
	case count == 0:
		return t.putNode(&Node{Kind: KindLeaf, Path: nil, ValueInline: b.BranchValueInline, ValueRef: b.BranchValueRef}), nil
	case count == 1 && !b.HasValue:
		childDigest := b.Children[last]
		child, err := t.fetch(childDigest)
		if err != nil {
			return nodehash.Digest{}, err
		}
		prefix := []byte{byte(last)}
		switch child.Kind {
		case KindLeaf:
			return t.putNode(&Node{Kind: KindLeaf, Path: concatNibbles(prefix, child.Path), ValueInline: child.ValueInline, ValueRef: child.ValueRef}), nil
		case KindExtension:
			return t.putNode(&Node{Kind: KindExtension, Path: concatNibbles(prefix, child.Path), Child: child.Child}), nil
		default:
			return t.putNode(&Node{Kind: KindExtension, Path: prefix, Child: childDigest}), nil
		}
	default:
		return t.putNode(b), nil
	}
}

// Flush writes every node and value created in this trie's overlay into b,
// content-addressed by their own digest. Called once per StoreTransformation
// commit (spec §4.4); Abandon simply never calls it.
func (t *Trie) Flush(b kvstore.Batch) {
	for d, n := range t.overlayNodes {
		b.Set(d.Bytes(), n.Bytes())
	}
	for d, v := range t.overlayValues {
		b.Set(d.Bytes(), v)
	}
}

// CheckoutAt opens a read-only view at a historical root. Old roots remain
// resolvable for as long as their nodes are reachable in the key/value
// store (spec §4.2).
func CheckoutAt(kv common.KVReader, hasher nodehash.Hasher, root nodehash.Digest) *TrieReader {
	return &TrieReader{store: NewNodeStore(kv, hasher), root: root}
}

// TrieReader is a read-only handle with no overlay: every lookup resolves
// directly against already-committed store state.
type TrieReader struct {
	store *NodeStore
	root  nodehash.Digest
}

func (tr *TrieReader) Root() nodehash.Digest { return tr.root }

func (tr *TrieReader) Get(key []byte) ([]byte, bool, error) {
	t := &Trie{store: tr.store, overlayNodes: map[nodehash.Digest]*Node{}, overlayValues: map[nodehash.Digest][]byte{}, root: tr.root}
	return t.Get(key)
}

// ---------------------------------------------------------------------------

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func concatNibbles(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func nibblesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func cloneBranch(n *Node) *Node {
	cp := *n
	return &cp
}
