package trie

import "golang.org/x/xerrors"

var (
	// ErrNotAllBytesConsumed mirrors the teacher's serialization invariant:
	// a node's encoded form must be consumed exactly, with no trailing bytes.
	ErrNotAllBytesConsumed = xerrors.New("trie: not all bytes were consumed decoding a node")

	// ErrWrongNibble guards the nibble-packing helpers.
	ErrWrongNibble = xerrors.New("trie: nibble value out of range")
)

// IntegrityError is returned when a node hash referenced by a parent cannot
// be resolved in the key/value store. Fatal for the enclosing
// StoreTransformation (spec §4.2, §7).
type IntegrityError struct {
	Digest string
}

func (e *IntegrityError) Error() string {
	return xerrors.Errorf("trie: node %s is missing from the key/value store", e.Digest).Error()
}

// DecodingError is returned when a node's bytes do not parse into a valid
// Leaf/Extension/Branch. Fatal for the enclosing StoreTransformation.
type DecodingError struct {
	Digest string
	Cause  error
}

func (e *DecodingError) Error() string {
	return xerrors.Errorf("trie: node %s failed to decode: %w", e.Digest, e.Cause).Error()
}

func (e *DecodingError) Unwrap() error { return e.Cause }
