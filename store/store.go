package store

import (
	"bytes"

	"github.com/chainkit/statenode/common"
	"github.com/chainkit/statenode/config"
	"github.com/chainkit/statenode/kvstore"
	"github.com/chainkit/statenode/nodehash"
	"github.com/chainkit/statenode/requests"
	"github.com/chainkit/statenode/responses"
	"github.com/chainkit/statenode/trie"
	"github.com/chainkit/statenode/values"
)

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

const (
	infoKeyManifest  = "manifest"
	infoKeyConsensus = "consensus"
	infoKeyCommits   = "commits"
)

// trieView is satisfied by both *trie.Trie and *trie.TrieReader, so a
// Store can be built either from committed, read-only checkouts or
// directly from a Transformation's staged, mutable tries (giving
// read-your-writes within a batch without re-opening from the KVS).
type trieView interface {
	Get(key []byte) ([]byte, bool, error)
	Root() nodehash.Digest
}

// Store composes the four read-only trie views of spec.md §4.3 at a
// single StateId. It never mutates; mutation happens through a
// Transformation built by Begin.
type Store struct {
	kv        kvstore.Store
	hasher    nodehash.Hasher
	responses trieView
	requests  trieView
	histories trieView
	info      trieView
}

// Open resolves a Store at the roots currently persisted in kv, the
// latest committed StateId. A kv with no roots yet yields the empty
// genesis store (all four tries absent, zero commits).
func Open(kv kvstore.Store, hasher nodehash.Hasher) *Store {
	return CheckoutAt(kv, hasher, rootsFromKV(kv))
}

func rootsFromKV(kv kvstore.Store) StateId {
	var id StateId
	if b, ok := kv.GetRoot(kvstore.RootResponses); ok {
		id.Responses = nodehash.FromBytes(b)
	}
	if b, ok := kv.GetRoot(kvstore.RootRequests); ok {
		id.Requests = nodehash.FromBytes(b)
	}
	if b, ok := kv.GetRoot(kvstore.RootHistories); ok {
		id.Histories = nodehash.FromBytes(b)
	}
	if b, ok := kv.GetRoot(kvstore.RootInfo); ok {
		id.Info = nodehash.FromBytes(b)
	}
	return id
}

// CheckoutAt opens a Store at a specific, possibly historical, StateId
// (spec.md §4.3's checkoutAt).
func CheckoutAt(kv kvstore.Store, hasher nodehash.Hasher, id StateId) *Store {
	return &Store{
		kv:        kv,
		hasher:    hasher,
		responses: trie.CheckoutAt(kv, hasher, id.Responses),
		requests:  trie.CheckoutAt(kv, hasher, id.Requests),
		histories: trie.CheckoutAt(kv, hasher, id.Histories),
		info:      trie.CheckoutAt(kv, hasher, id.Info),
	}
}

// Id returns this Store's StateId, reading the commit counter out of the
// info trie.
func (s *Store) Id() (StateId, error) {
	commits, _, err := s.getCommits()
	if err != nil {
		return StateId{}, err
	}
	return StateId{
		Responses: s.responses.Root(),
		Requests:  s.requests.Root(),
		Histories: s.histories.Root(),
		Info:      s.info.Root(),
		Commits:   commits,
	}, nil
}

func (s *Store) getCommits() (uint64, bool, error) {
	raw, ok, err := s.info.Get([]byte(infoKeyCommits))
	if err != nil || !ok {
		return 0, ok, err
	}
	var v uint64
	if err := common.ReadUint64(bytesReader(raw), &v); err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// GetRequest resolves a previously committed request by its reference.
func (s *Store) GetRequest(tr values.TransactionReference) (requests.Request, bool, error) {
	raw, ok, err := s.requests.Get(tr.Bytes())
	if err != nil || !ok {
		return nil, ok, err
	}
	req, err := requests.ReadRequest(bytesReader(raw))
	return req, true, err
}

// GetResponse resolves a previously committed response by the reference
// of the request that produced it.
func (s *Store) GetResponse(tr values.TransactionReference) (responses.Response, bool, error) {
	raw, ok, err := s.responses.Get(tr.Bytes())
	if err != nil || !ok {
		return nil, ok, err
	}
	resp, err := responses.ReadResponse(bytesReader(raw))
	return resp, true, err
}

// GetHistory returns an object's ordered list of transaction references,
// newest first, or an empty list if the object has no recorded history.
func (s *Store) GetHistory(ref values.StorageReference) ([]values.TransactionReference, error) {
	raw, ok, err := s.histories.Get(ref.Bytes())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return decodeHistory(raw)
}

// GetManifest resolves the store's singleton manifest pointer.
func (s *Store) GetManifest() (values.StorageReference, bool, error) {
	raw, ok, err := s.info.Get([]byte(infoKeyManifest))
	if err != nil || !ok {
		return values.StorageReference{}, ok, err
	}
	var ref values.StorageReference
	if err := ref.Read(bytesReader(raw)); err != nil {
		return values.StorageReference{}, false, err
	}
	return ref, true, nil
}

// GetConsensus resolves the consensus parameter snapshot in effect.
func (s *Store) GetConsensus() (config.ConsensusSnapshot, bool, error) {
	raw, ok, err := s.info.Get([]byte(infoKeyConsensus))
	if err != nil || !ok {
		return config.ConsensusSnapshot{}, ok, err
	}
	var snap config.ConsensusSnapshot
	if err := snap.Read(bytesReader(raw)); err != nil {
		return config.ConsensusSnapshot{}, false, err
	}
	return snap, true, nil
}

// GetState assembles the live field values of ref by walking its history
// newest-first, keeping the first update seen for each FieldSignature,
// until the creation update is consumed (spec.md §4.3). A history that
// runs out before the creation update is found means a corrupted store;
// this is fatal, matching the decision recorded in SPEC_FULL.md §10.
func (s *Store) GetState(ref values.StorageReference) (map[values.FieldSignature]values.Value, string, error) {
	fields, class, ok, err := s.tryGetState(ref)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", &IncompleteHistoryError{Object: ref.String()}
	}
	return fields, class, nil
}

// TryGetState is GetState's non-fatal counterpart: an exhausted history
// without a creation update yields ok=false instead of an error.
func (s *Store) TryGetState(ref values.StorageReference) (map[values.FieldSignature]values.Value, string, bool, error) {
	return s.tryGetState(ref)
}

func (s *Store) tryGetState(ref values.StorageReference) (map[values.FieldSignature]values.Value, string, bool, error) {
	history, err := s.GetHistory(ref)
	if err != nil {
		return nil, "", false, err
	}
	fields := make(map[values.FieldSignature]values.Value)
	for _, txRef := range history {
		resp, ok, err := s.GetResponse(txRef)
		if err != nil {
			return nil, "", false, err
		}
		if !ok {
			return nil, "", false, &IntegrityGapError{TransactionReference: txRef.String()}
		}
		var creationClass string
		var created bool
		for _, u := range resp.Base().Updates {
			if !u.Object.Equal(ref) {
				continue
			}
			if u.IsCreation {
				creationClass, created = u.ClassName, true
				continue
			}
			if _, seen := fields[u.Field]; !seen {
				fields[u.Field] = u.Value
			}
		}
		// The creation update sorts before its sibling field updates within
		// the same response (values.Compare), so the whole response must be
		// scanned before returning or those sibling values would be lost.
		if created {
			return fields, creationClass, true, nil
		}
	}
	return fields, "", false, nil
}

// IncompleteHistoryError reports that an object's history was exhausted
// without ever reaching its creation update.
type IncompleteHistoryError struct{ Object string }

func (e *IncompleteHistoryError) Error() string {
	return "store: history of " + e.Object + " is missing its creation update"
}

// IntegrityGapError reports that a transaction reference named by a
// history entry has no corresponding response.
type IntegrityGapError struct{ TransactionReference string }

func (e *IntegrityGapError) Error() string {
	return "store: response for " + e.TransactionReference + " referenced by a history is missing"
}

func decodeHistory(raw []byte) ([]values.TransactionReference, error) {
	r := bytesReader(raw)
	n, err := common.ReadCompactUint(r)
	if err != nil {
		return nil, err
	}
	out := make([]values.TransactionReference, n)
	for i := range out {
		if err := out[i].Read(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func encodeHistory(refs []values.TransactionReference) []byte {
	var buf bytes.Buffer
	_ = common.WriteCompactUint(&buf, uint64(len(refs)))
	for _, r := range refs {
		_ = r.Write(&buf)
	}
	return buf.Bytes()
}
