// Package nodehash provides the pluggable node-hashing abstraction used by
// the trie, the store and the request/response identifiers. Concrete
// cryptographic primitives are a Non-goal of the core (spec §1); this
// package only fixes the shape a hasher must have and ships one concrete,
// deterministic default.
package nodehash

import "golang.org/x/crypto/blake2b"

// Size is the fixed digest width every Hasher in this node must produce.
// PatriciaTrie keys, TransactionReferences and StateId roots are all Size
// bytes wide.
const Size = 32

// Digest is a fixed-width content hash.
type Digest [Size]byte

func (d Digest) Bytes() []byte { return d[:] }

func (d Digest) String() string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 2*Size)
	for i, b := range d {
		buf[2*i] = hextable[b>>4]
		buf[2*i+1] = hextable[b&0x0f]
	}
	return string(buf)
}

func (d Digest) IsZero() bool { return d == Digest{} }

// FromBytes copies a slice into a Digest. It panics if the slice is not
// exactly Size bytes, since callers are expected to have already validated
// the length of anything read from the KVS.
func FromBytes(b []byte) Digest {
	if len(b) != Size {
		panic("nodehash: wrong digest length")
	}
	var d Digest
	copy(d[:], b)
	return d
}

// Hasher is the pluggable hashing algorithm named in ConsensusConfig and
// used for trie node identity, transaction identity, and object reference
// derivation. Implementations must be deterministic and side-effect free.
type Hasher interface {
	// Name identifies the algorithm, persisted in the consensus snapshot.
	Name() string
	// Hash returns the digest of data.
	Hash(data []byte) Digest
}

// blake2bHasher is the default Hasher, grounded on blake2b-256.
type blake2bHasher struct{}

// Blake2b256 is the default node-hashing algorithm.
var Blake2b256 Hasher = blake2bHasher{}

func (blake2bHasher) Name() string { return "blake2b-256" }

func (blake2bHasher) Hash(data []byte) Digest {
	return Digest(blake2b.Sum256(data))
}

// ByName resolves a Hasher by the name persisted in a consensus snapshot.
// Unknown names fall back to the default so that a node never refuses to
// start over a typo in a config file; callers that need strictness should
// compare Name() themselves.
func ByName(name string) Hasher {
	switch name {
	case "blake2b-256", "":
		return Blake2b256
	default:
		return Blake2b256
	}
}
