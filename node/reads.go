package node

import (
	"github.com/chainkit/statenode/config"
	"github.com/chainkit/statenode/requests"
	"github.com/chainkit/statenode/responses"
	"github.com/chainkit/statenode/store"
	"github.com/chainkit/statenode/values"
)

// read paths are multi-reader and run against an immutable Store handle;
// they never block the scheduler (spec.md §5).

// Id returns the StateId of the latest committed Store.
func (n *Node) Id() (store.StateId, error) {
	return n.snapshot().Id()
}

// At resolves the committed Store at a specific StateId, e.g. to replay
// a historical read after a later commit has moved the latest pointer.
func (n *Node) At(id store.StateId) *store.Store {
	return store.CheckoutAt(n.kv, n.hasher, id)
}

func (n *Node) snapshot() *store.Store {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.latest
}

// GetRequest looks up a previously delivered request by reference against
// the latest committed Store.
func (n *Node) GetRequest(ref values.TransactionReference) (requests.Request, bool, error) {
	return n.snapshot().GetRequest(ref)
}

// GetResponse looks up a previously delivered response by reference
// against the latest committed Store.
func (n *Node) GetResponse(ref values.TransactionReference) (responses.Response, bool, error) {
	return n.snapshot().GetResponse(ref)
}

// GetHistory returns the ordered list of transactions that have touched
// obj, newest first.
func (n *Node) GetHistory(obj values.StorageReference) ([]values.TransactionReference, error) {
	return n.snapshot().GetHistory(obj)
}

// GetManifest returns the object the store's manifest was initialized to,
// if any.
func (n *Node) GetManifest() (values.StorageReference, bool, error) {
	return n.snapshot().GetManifest()
}

// GetConsensus returns the consensus parameters recorded at the latest
// committed StateId.
func (n *Node) GetConsensus() (config.ConsensusSnapshot, bool, error) {
	return n.snapshot().GetConsensus()
}

// GetState assembles obj's current field values by walking its history
// newest-first (spec.md §4.3). It returns an error if obj's history is
// incomplete (no creation update ever found).
func (n *Node) GetState(obj values.StorageReference) (map[values.FieldSignature]values.Value, string, error) {
	return n.snapshot().GetState(obj)
}
