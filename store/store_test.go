package store

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainkit/statenode/config"
	"github.com/chainkit/statenode/kvstore"
	"github.com/chainkit/statenode/nodehash"
	"github.com/chainkit/statenode/requests"
	"github.com/chainkit/statenode/responses"
	"github.com/chainkit/statenode/values"
)

func TestStoreEmptyGenesis(t *testing.T) {
	kv := kvstore.NewMemStore()
	s := Open(kv, nodehash.Blake2b256)
	id, err := s.Id()
	require.NoError(t, err)
	assert.True(t, id.Responses.IsZero())
	assert.Equal(t, uint64(0), id.Commits)
}

func TestTransformationRecordAndCommit(t *testing.T) {
	kv := kvstore.NewMemStore()
	hasher := nodehash.Blake2b256
	s := Open(kv, hasher)

	consensus := config.ConsensusSnapshot{ChainID: "test", HasherName: hasher.Name()}
	txn := s.Begin(consensus, time.Unix(0, 0))

	req := &requests.GameteCreationRequest{
		Classpath_:      values.TransactionReference(hasher.Hash([]byte("classpath"))),
		InitialBalances: []values.Value{values.BigIntegerValue{Int: big.NewInt(1_000_000)}},
		PublicKey:       []byte("pk"),
	}
	ref := requests.Reference(req, hasher)
	gamete := values.StorageReference{Creator: ref, Progressive: 0}

	resp := &responses.GameteCreationResponse{
		Common: responses.Base{
			Updates: []values.Update{values.NewClassTag(gamete, "io.chainkit.Gamete")},
		},
		Gamete: gamete,
	}

	deliver := func(gotRef values.TransactionReference, gotReq requests.Request, snapshot *Store, cons config.ConsensusSnapshot, now time.Time) (responses.Response, bool, error) {
		assert.Equal(t, ref, gotRef)
		return resp, false, nil
	}

	got, rejected, err := txn.Execute(req, deliver)
	require.NoError(t, err)
	require.False(t, rejected)
	require.Equal(t, resp, got)

	id, err := txn.Commit()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id.Commits)

	committed := CheckoutAt(kv, hasher, id)
	gotResp, ok, err := committed.GetResponse(ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resp.Common.Updates, gotResp.Base().Updates)

	history, err := committed.GetHistory(gamete)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ref, history[0])

	fields, class, err := committed.GetState(gamete)
	require.NoError(t, err)
	assert.Empty(t, fields)
	assert.Equal(t, "io.chainkit.Gamete", class)
}

func TestTransformationReadYourWrites(t *testing.T) {
	kv := kvstore.NewMemStore()
	hasher := nodehash.Blake2b256
	s := Open(kv, hasher)

	consensus := config.ConsensusSnapshot{ChainID: "test"}
	txn := s.Begin(consensus, time.Unix(0, 0))

	req := &requests.GameteCreationRequest{
		Classpath_: values.TransactionReference(hasher.Hash([]byte("cp"))),
		PublicKey:  []byte("pk"),
	}
	ref := requests.Reference(req, hasher)
	gamete := values.StorageReference{Creator: ref, Progressive: 0}
	resp := &responses.GameteCreationResponse{
		Common: responses.Base{Updates: []values.Update{values.NewClassTag(gamete, "io.chainkit.Gamete")}},
		Gamete: gamete,
	}

	_, _, err := txn.Execute(req, func(values.TransactionReference, requests.Request, *Store, config.ConsensusSnapshot, time.Time) (responses.Response, bool, error) {
		return resp, false, nil
	})
	require.NoError(t, err)

	var seenHistory []values.TransactionReference
	secondReq := &requests.InstanceSystemMethodCallRequest{
		Classpath_: req.Classpath_,
		Receiver:   gamete,
	}
	_, _, err = txn.Execute(secondReq, func(_ values.TransactionReference, _ requests.Request, snap *Store, _ config.ConsensusSnapshot, _ time.Time) (responses.Response, bool, error) {
		seenHistory, err = snap.GetHistory(gamete)
		require.NoError(t, err)
		return &responses.VoidMethodCallSuccessfulResponse{Common: responses.Base{}}, false, nil
	})
	require.NoError(t, err)
	require.Len(t, seenHistory, 1, "the gamete's creation update from the first Execute must be visible before Commit")
}

func TestTransformationAbandonLeavesBaseUntouched(t *testing.T) {
	kv := kvstore.NewMemStore()
	hasher := nodehash.Blake2b256
	s := Open(kv, hasher)
	before, err := s.Id()
	require.NoError(t, err)

	txn := s.Begin(config.ConsensusSnapshot{}, time.Unix(0, 0))
	req := &requests.GameteCreationRequest{Classpath_: values.TransactionReference(hasher.Hash([]byte("x")))}
	ref := requests.Reference(req, hasher)
	gamete := values.StorageReference{Creator: ref}
	resp := &responses.GameteCreationResponse{Common: responses.Base{Updates: []values.Update{values.NewClassTag(gamete, "C")}}, Gamete: gamete}
	_, _, err = txn.Execute(req, func(values.TransactionReference, requests.Request, *Store, config.ConsensusSnapshot, time.Time) (responses.Response, bool, error) {
		return resp, false, nil
	})
	require.NoError(t, err)
	txn.Abandon()

	after, err := s.Id()
	require.NoError(t, err)
	assert.True(t, before.Equal(after))
}

func TestGetStateReadsFieldsRecordedAlongsideCreation(t *testing.T) {
	kv := kvstore.NewMemStore()
	hasher := nodehash.Blake2b256
	s := Open(kv, hasher)

	consensus := config.ConsensusSnapshot{ChainID: "test", HasherName: hasher.Name()}
	txn := s.Begin(consensus, time.Unix(0, 0))

	req := &requests.GameteCreationRequest{
		Classpath_:      values.TransactionReference(hasher.Hash([]byte("classpath"))),
		InitialBalances: []values.Value{values.BigIntegerValue{Int: big.NewInt(1_000_000)}},
		PublicKey:       []byte("pk"),
	}
	ref := requests.Reference(req, hasher)
	gamete := values.StorageReference{Creator: ref, Progressive: 0}

	balanceField := values.FieldSignature{DefiningClass: "io.chainkit.Gamete", Name: "balance"}
	nonceField := values.FieldSignature{DefiningClass: "io.chainkit.Gamete", Name: "nonce"}

	// SortUpdates always places the creation update before this object's
	// field updates, so the response's update order already exercises the
	// case where the creation update is seen first.
	resp := &responses.GameteCreationResponse{
		Common: responses.Base{
			Updates: values.SortUpdates([]values.Update{
				values.NewFieldUpdate(gamete, nonceField, values.LongValue(0)),
				values.NewClassTag(gamete, "io.chainkit.Gamete"),
				values.NewFieldUpdate(gamete, balanceField, values.BigIntegerValue{Int: big.NewInt(1_000_000)}),
			}),
		},
		Gamete: gamete,
	}

	_, rejected, err := txn.Execute(req, func(values.TransactionReference, requests.Request, *Store, config.ConsensusSnapshot, time.Time) (responses.Response, bool, error) {
		return resp, false, nil
	})
	require.NoError(t, err)
	require.False(t, rejected)

	id, err := txn.Commit()
	require.NoError(t, err)

	committed := CheckoutAt(kv, hasher, id)
	fields, class, err := committed.GetState(gamete)
	require.NoError(t, err)
	assert.Equal(t, "io.chainkit.Gamete", class)
	assert.Equal(t, big.NewInt(1_000_000), fields[balanceField].(values.BigIntegerValue).Int)
	assert.Equal(t, values.LongValue(0), fields[nonceField])
}

func TestGetStateMissingCreationIsFatal(t *testing.T) {
	kv := kvstore.NewMemStore()
	hasher := nodehash.Blake2b256
	s := Open(kv, hasher)

	ref := values.StorageReference{Creator: values.TransactionReference(hasher.Hash([]byte("ghost")))}
	_, _, _, err := s.TryGetState(ref)
	require.NoError(t, err)

	_, _, err = s.GetState(ref)
	require.Error(t, err)
}
