package trie

import (
	"github.com/chainkit/statenode/common"
	"github.com/chainkit/statenode/metrics"
	"github.com/chainkit/statenode/nodehash"
)

// NodeStore resolves node and value hashes against a read-only key/value
// view, caching decoded nodes the way the teacher's NodeStore caches
// NodeData. It never writes; writes are staged in a Trie's overlay and only
// reach the key/value store at commit time (see Trie.Flush).
type NodeStore struct {
	kv     common.KVReader
	hasher nodehash.Hasher
	cache  map[nodehash.Digest]*Node
}

func NewNodeStore(kv common.KVReader, hasher nodehash.Hasher) *NodeStore {
	return &NodeStore{
		kv:     kv,
		hasher: hasher,
		cache:  make(map[nodehash.Digest]*Node),
	}
}

// FetchNode resolves digest to a decoded Node, or an IntegrityError/
// DecodingError if the store is corrupted.
func (ns *NodeStore) FetchNode(digest nodehash.Digest) (*Node, error) {
	if n, ok := ns.cache[digest]; ok {
		metrics.TrieCacheHits.Inc()
		return n, nil
	}
	metrics.TrieCacheMisses.Inc()
	raw := ns.kv.Get(digest.Bytes())
	if raw == nil {
		return nil, &IntegrityError{Digest: digest.String()}
	}
	n, err := NodeFromBytes(raw)
	if err != nil {
		return nil, &DecodingError{Digest: digest.String(), Cause: err}
	}
	ns.cache[digest] = n
	return n, nil
}

// FetchValue resolves an out-of-line value reference.
func (ns *NodeStore) FetchValue(ref nodehash.Digest) ([]byte, error) {
	raw := ns.kv.Get(ref.Bytes())
	if raw == nil {
		return nil, &IntegrityError{Digest: ref.String()}
	}
	return raw, nil
}

func (ns *NodeStore) hash(data []byte) nodehash.Digest { return ns.hasher.Hash(data) }
