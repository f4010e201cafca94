package store

import (
	"time"

	"golang.org/x/xerrors"

	"github.com/chainkit/statenode/common"
	"github.com/chainkit/statenode/config"
	"github.com/chainkit/statenode/kvstore"
	"github.com/chainkit/statenode/requests"
	"github.com/chainkit/statenode/responses"
	"github.com/chainkit/statenode/trie"
	"github.com/chainkit/statenode/values"
)

// Deliverer runs the transaction pipeline (check/charge/deliver/post) of
// spec.md §4.5 against a read snapshot of the transformation staged so
// far. rejected=true means Check failed: no state may change and the
// transformation must not record anything; err carries the rejection
// reason and is not fatal in that case. rejected=false and err!=nil is a
// fatal error instead (e.g. the underlying store failed to read).
type Deliverer func(ref values.TransactionReference, req requests.Request, snapshot *Store, consensus config.ConsensusSnapshot, now time.Time) (resp responses.Response, rejected bool, err error)

// Transformation is the mutable accumulator of spec.md §4.4: it drafts a
// batch of executed requests against a base Store and, on Commit, writes
// every staged change to the four tries in one KVS transaction.
type Transformation struct {
	base      *Store
	consensus config.ConsensusSnapshot
	now       time.Time

	responses *trie.Trie
	requests  *trie.Trie
	histories *trie.Trie
	info      *trie.Trie

	deliverCount uint64
}

// Begin opens a Transformation drafting changes on top of s.
func (s *Store) Begin(consensus config.ConsensusSnapshot, now time.Time) *Transformation {
	return &Transformation{
		base:      s,
		consensus: consensus,
		now:       now,
		responses: trie.New(s.kv, s.hasher, s.responses.Root()),
		requests:  trie.New(s.kv, s.hasher, s.requests.Root()),
		histories: trie.New(s.kv, s.hasher, s.histories.Root()),
		info:      trie.New(s.kv, s.hasher, s.info.Root()),
	}
}

// snapshot builds a read view over the Transformation's staged tries, so
// a Deliverer sees every update recorded earlier in the same batch
// (spec.md §5's read-your-writes guarantee).
func (t *Transformation) snapshot() *Store {
	return &Store{
		kv:        t.base.kv,
		hasher:    t.base.hasher,
		responses: t.responses,
		requests:  t.requests,
		histories: t.histories,
		info:      t.info,
	}
}

// Execute runs deliver against this batch's snapshot and, unless the
// request was rejected, records the (request,response) pair and prepends
// the request's reference to the history of every object any update in
// the response names (spec.md §4.4).
func (t *Transformation) Execute(req requests.Request, deliver Deliverer) (responses.Response, bool, error) {
	ref := requests.Reference(req, t.base.hasher)
	resp, rejected, err := deliver(ref, req, t.snapshot(), t.consensus, t.now)
	if rejected {
		return nil, true, err
	}
	if err != nil {
		return nil, false, err
	}
	if err := t.record(ref, req, resp); err != nil {
		return nil, false, err
	}
	t.deliverCount++
	return resp, false, nil
}

func (t *Transformation) record(ref values.TransactionReference, req requests.Request, resp responses.Response) error {
	if err := t.requests.Put(ref.Bytes(), requests.Bytes(req)); err != nil {
		return err
	}
	if err := t.responses.Put(ref.Bytes(), responses.Bytes(resp)); err != nil {
		return err
	}
	touched := map[values.StorageReference]bool{}
	for _, u := range resp.Base().Updates {
		touched[u.Object] = true
	}
	for obj := range touched {
		if err := t.prependHistory(obj, ref); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transformation) prependHistory(obj values.StorageReference, ref values.TransactionReference) error {
	existing, err := readHistoryFromTrie(t.histories, obj)
	if err != nil {
		return err
	}
	updated := append([]values.TransactionReference{ref}, existing...)
	return t.histories.Put(obj.Bytes(), encodeHistory(updated))
}

func readHistoryFromTrie(tr *trie.Trie, obj values.StorageReference) ([]values.TransactionReference, error) {
	raw, ok, err := tr.Get(obj.Bytes())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return decodeHistory(raw)
}

// SetManifest stages the singleton manifest pointer (spec.md §4.3). Used
// once, by the InitializeManifestRequest deliverer.
func (t *Transformation) SetManifest(ref values.StorageReference) error {
	return t.info.Put([]byte(infoKeyManifest), ref.Bytes())
}

// SetConsensus stages an updated consensus parameter snapshot, should
// consensus parameters change mid-batch (spec.md §4.4).
func (t *Transformation) SetConsensus(snap config.ConsensusSnapshot) error {
	t.consensus = snap
	return t.info.Put([]byte(infoKeyConsensus), snap.Bytes())
}

// Commit applies every staged write to the four tries in the order
// responses, requests, histories, info, opens one KVS write transaction,
// stores the new roots and bumps the commit counter (spec.md §4.4). On
// any error the KVS transaction is rolled back and the base Store is
// left untouched.
func (t *Transformation) Commit() (StateId, error) {
	commits, _, err := t.base.getCommits()
	if err != nil {
		return StateId{}, err
	}
	newCommits := commits + 1
	if err := t.info.Put([]byte(infoKeyCommits), marshalUint64(newCommits)); err != nil {
		return StateId{}, err
	}

	var id StateId
	err = t.base.kv.WriteBatch(func(b kvstore.Batch) error {
		t.responses.Flush(b)
		t.requests.Flush(b)
		t.histories.Flush(b)
		t.info.Flush(b)

		id = StateId{
			Responses: t.responses.Root(),
			Requests:  t.requests.Root(),
			Histories: t.histories.Root(),
			Info:      t.info.Root(),
			Commits:   newCommits,
		}
		b.SetRoot(kvstore.RootResponses, id.Responses.Bytes())
		b.SetRoot(kvstore.RootRequests, id.Requests.Bytes())
		b.SetRoot(kvstore.RootHistories, id.Histories.Bytes())
		b.SetRoot(kvstore.RootInfo, id.Info.Bytes())
		return nil
	})
	if err != nil {
		return StateId{}, xerrors.Errorf("store: commit failed: %w", err)
	}
	return id, nil
}

// Abandon discards every staged write; the base Store is untouched since
// nothing was ever flushed to the KVS.
func (t *Transformation) Abandon() {
	t.responses = trie.New(t.base.kv, t.base.hasher, t.base.responses.Root())
	t.requests = trie.New(t.base.kv, t.base.hasher, t.base.requests.Root())
	t.histories = trie.New(t.base.kv, t.base.hasher, t.base.histories.Root())
	t.info = trie.New(t.base.kv, t.base.hasher, t.base.info.Root())
	t.deliverCount = 0
}

func marshalUint64(v uint64) []byte {
	var buf [8]byte
	_ = common.WriteUint64(countingWriter{&buf}, v)
	return buf[:]
}

// countingWriter adapts a fixed-size array pointer to io.Writer for the
// one-shot fixed-width encodings info values use.
type countingWriter struct{ buf *[8]byte }

func (w countingWriter) Write(p []byte) (int, error) {
	copy(w.buf[:], p)
	return len(p), nil
}
