package trie

import (
	"bytes"
	"io"

	"github.com/chainkit/statenode/common"
	"github.com/chainkit/statenode/nodehash"
)

// Kind tags the three node shapes of spec §4.2. The absent root ("Empty")
// is represented by the zero Digest and never marshalled.
type Kind byte

const (
	KindLeaf Kind = iota
	KindExtension
	KindBranch
)

const numChildren = 16

// Node is the in-memory, decoded form of one trie node. Exactly the fields
// relevant to its Kind are populated; the rest are left at their zero value.
type Node struct {
	Kind Kind

	// Leaf, Extension: the shared/remaining path, as nibbles (0-15), most
	// significant nibble of the hashed key first.
	Path []byte

	// Leaf only: the stored value, or a reference to it.
	ValueInline []byte          // non-nil when the value is inlined
	ValueRef    nodehash.Digest // set when the value lives in a separate blob

	// Extension only: the single child.
	Child nodehash.Digest

	// Branch only: all 16 children, zero Digest meaning "no child".
	Children [numChildren]nodehash.Digest
	// Branch only: optional value stored exactly at the branch's path.
	HasValue         bool
	BranchValueInline []byte
	BranchValueRef    nodehash.Digest
}

// inlineThreshold is the hash length: values no longer than this are stored
// directly in the leaf/branch; longer values are written as a separate
// content-addressed blob and referenced by hash (spec §4.2 "Hashing").
const inlineThreshold = nodehash.Size

func isInline(value []byte) bool { return len(value) <= inlineThreshold }

// Write marshals a node canonically: a one-byte selector, then
// kind-specific fields, with branches always serializing all 16 child
// slots in order so that identical trees always produce identical bytes.
func (n *Node) Write(w io.Writer) error {
	switch n.Kind {
	case KindLeaf:
		if err := common.WriteByte(w, byte(KindLeaf)); err != nil {
			return err
		}
		if err := common.WriteCompactBytes(w, encodeHexPrefix(n.Path, true)); err != nil {
			return err
		}
		return writeValue(w, n.ValueInline, n.ValueRef)
	case KindExtension:
		if err := common.WriteByte(w, byte(KindExtension)); err != nil {
			return err
		}
		if err := common.WriteCompactBytes(w, encodeHexPrefix(n.Path, false)); err != nil {
			return err
		}
		_, err := w.Write(n.Child.Bytes())
		return err
	case KindBranch:
		if err := common.WriteByte(w, byte(KindBranch)); err != nil {
			return err
		}
		for i := 0; i < numChildren; i++ {
			if _, err := w.Write(n.Children[i].Bytes()); err != nil {
				return err
			}
		}
		if err := common.WriteBool(w, n.HasValue); err != nil {
			return err
		}
		if n.HasValue {
			return writeValue(w, n.BranchValueInline, n.BranchValueRef)
		}
		return nil
	default:
		common.Assert(false, "trie: unknown node kind %d", n.Kind)
		return nil
	}
}

func writeValue(w io.Writer, inline []byte, ref nodehash.Digest) error {
	if inline != nil {
		if err := common.WriteBool(w, true); err != nil {
			return err
		}
		return common.WriteCompactBytes(w, inline)
	}
	if err := common.WriteBool(w, false); err != nil {
		return err
	}
	_, err := w.Write(ref.Bytes())
	return err
}

func readValue(r io.Reader) (inline []byte, ref nodehash.Digest, err error) {
	isInline, err := common.ReadBool(r)
	if err != nil {
		return nil, nodehash.Digest{}, err
	}
	if isInline {
		inline, err = common.ReadCompactBytes(r)
		return inline, nodehash.Digest{}, err
	}
	buf := make([]byte, nodehash.Size)
	if _, err = io.ReadFull(r, buf); err != nil {
		return nil, nodehash.Digest{}, err
	}
	return nil, nodehash.FromBytes(buf), nil
}

// Read decodes a node previously produced by Write.
func (n *Node) Read(r io.Reader) error {
	selector, err := common.ReadByte(r)
	if err != nil {
		return err
	}
	switch Kind(selector) {
	case KindLeaf:
		n.Kind = KindLeaf
		encoded, err := common.ReadCompactBytes(r)
		if err != nil {
			return err
		}
		path, _, err := decodeHexPrefix(encoded)
		if err != nil {
			return err
		}
		n.Path = path
		n.ValueInline, n.ValueRef, err = readValue(r)
		return err
	case KindExtension:
		n.Kind = KindExtension
		encoded, err := common.ReadCompactBytes(r)
		if err != nil {
			return err
		}
		path, _, err := decodeHexPrefix(encoded)
		if err != nil {
			return err
		}
		n.Path = path
		buf := make([]byte, nodehash.Size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		n.Child = nodehash.FromBytes(buf)
		return nil
	case KindBranch:
		n.Kind = KindBranch
		for i := 0; i < numChildren; i++ {
			buf := make([]byte, nodehash.Size)
			if _, err := io.ReadFull(r, buf); err != nil {
				return err
			}
			n.Children[i] = nodehash.FromBytes(buf)
		}
		has, err := common.ReadBool(r)
		if err != nil {
			return err
		}
		n.HasValue = has
		if has {
			n.BranchValueInline, n.BranchValueRef, err = readValue(r)
			return err
		}
		return nil
	default:
		return ErrNotAllBytesConsumed
	}
}

// Bytes returns the canonical marshalled form of n.
func (n *Node) Bytes() []byte { return common.MustBytes(n) }

// NodeFromBytes decodes a node and rejects any trailing bytes.
func NodeFromBytes(data []byte) (*Node, error) {
	n := &Node{}
	r := bytes.NewReader(data)
	if err := n.Read(r); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, ErrNotAllBytesConsumed
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// nibble helpers, grounded on the teacher's unpack16/pack16 (common/encode.go)

// UnpackNibbles splits raw bytes into one nibble per output byte, most
// significant nibble first.
func UnpackNibbles(src []byte) []byte {
	dst := make([]byte, 0, 2*len(src))
	for _, c := range src {
		dst = append(dst, c>>4, c&0x0f)
	}
	return dst
}

// packNibbles is the inverse of UnpackNibbles for an even-length input.
func packNibbles(nibbles []byte) []byte {
	out := make([]byte, 0, (len(nibbles)+1)/2)
	for i := 0; i < len(nibbles); i += 2 {
		b := nibbles[i] << 4
		if i+1 < len(nibbles) {
			b |= nibbles[i+1]
		}
		out = append(out, b)
	}
	return out
}

// encodeHexPrefix implements the hex-prefix path encoding named in spec
// §4.2: a one-nibble prefix flag (is-leaf, is-odd-length), an optional
// padding nibble, then the path nibbles.
func encodeHexPrefix(nibbles []byte, isLeaf bool) []byte {
	odd := len(nibbles)%2 == 1
	var flag byte
	if isLeaf {
		flag |= 0x02
	}
	if odd {
		flag |= 0x01
	}
	rest := nibbles
	first := flag << 4
	if odd {
		first |= nibbles[0]
		rest = nibbles[1:]
	}
	out := append([]byte{first}, packNibbles(rest)...)
	return out
}

func decodeHexPrefix(encoded []byte) (nibbles []byte, isLeaf bool, err error) {
	if len(encoded) == 0 {
		return nil, false, ErrNotAllBytesConsumed
	}
	flag := encoded[0] >> 4
	isLeaf = flag&0x02 != 0
	odd := flag&0x01 != 0
	rest := UnpackNibbles(encoded[1:])
	if odd {
		nibbles = append([]byte{encoded[0] & 0x0f}, rest...)
	} else {
		nibbles = rest
	}
	return nibbles, isLeaf, nil
}

// commonPrefixLen returns the length of the shared prefix of two nibble
// slices.
func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
