package pipeline

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
	"github.com/chainkit/statenode/store"
	"github.com/chainkit/statenode/values"
)

type fakeExecutor struct {
	fn func(ExecutionRequest) (ExecutionResult, error)
}

func (f fakeExecutor) Execute(req ExecutionRequest) (ExecutionResult, error) { return f.fn(req) }

type allowVerifier struct{}

func (allowVerifier) Verify(publicKey, message, signature []byte) bool { return true }

type allowClassLoader struct{}

func (allowClassLoader) ClassExists(classpath values.TransactionReference, className string) bool {
	return true
}

type denyClassLoader struct{}

func (denyClassLoader) ClassExists(classpath values.TransactionReference, className string) bool {
	return false
}

func testConsensus(baseCosts map[byte]uint64) config.ConsensusSnapshot {
	return config.ConsensusSnapshot{
		ChainID:    "test",
		HasherName: nodehash.Blake2b256.Name(),
		GasCostModel: config.GasCostModel{
			CPUUnitCost:     1,
			RAMCellCost:     1,
			StorageByteCost: 1,
			BaseCost:        baseCosts,
		},
	}
}

// seedGamete commits a GameteCreationRequest and returns the committed
// Store and the gamete's StorageReference.
func seedGamete(t *testing.T, balance int64) (*store.Store, values.StorageReference) {
	t.Helper()
	hasher := nodehash.Blake2b256
	kv := kvstore.NewMemStore()
	s := store.Open(kv, hasher)
	consensus := testConsensus(nil)

	req := &requests.GameteCreationRequest{
		Classpath_:      values.TransactionReference(hasher.Hash([]byte("classpath"))),
		InitialBalances: []values.Value{values.BigIntegerValue{Int: big.NewInt(balance)}},
		PublicKey:       []byte("pk"),
	}
	ref := requests.Reference(req, hasher)
	gamete := values.StorageReference{Creator: ref, Progressive: 0}

	pl := New(fakeExecutor{}, allowVerifier{}, allowClassLoader{}, hasher)
	txn := s.Begin(consensus, time.Unix(0, 0))
	_, rejected, err := txn.Execute(req, pl.Deliver)
	require.NoError(t, err)
	require.False(t, rejected)
	id, err := txn.Commit()
	require.NoError(t, err)

	return store.CheckoutAt(kv, hasher, id), gamete
}

func TestDeliverGameteCreationCreatesAccount(t *testing.T) {
	committed, gamete := seedGamete(t, 1_000_000)

	fields, class, err := committed.GetState(gamete)
	require.NoError(t, err)
	assert.Equal(t, ClassExternallyOwnedAccount, class)
	balance := fields[FieldBalance].(values.BigIntegerValue)
	assert.Equal(t, big.NewInt(1_000_000), balance.Int)
	nonce := fields[FieldNonce].(values.LongValue)
	assert.EqualValues(t, 0, nonce)
}

func TestDeliverInitializeManifest(t *testing.T) {
	hasher := nodehash.Blake2b256
	kv := kvstore.NewMemStore()
	s := store.Open(kv, hasher)
	consensus := testConsensus(nil)
	pl := New(fakeExecutor{}, allowVerifier{}, allowClassLoader{}, hasher)

	txn := s.Begin(consensus, time.Unix(0, 0))
	manifest := values.StorageReference{Progressive: 1}
	req := &requests.InitializeManifestRequest{Manifest: manifest}
	resp, rejected, err := txn.Execute(req, pl.Deliver)
	require.NoError(t, err)
	require.False(t, rejected)
	require.IsType(t, &responses.InitializeManifestResponse{}, resp)
	require.NoError(t, txn.SetManifest(manifest))
	id, err := txn.Commit()
	require.NoError(t, err)

	committed := store.CheckoutAt(kv, hasher, id)
	got, ok, err := committed.GetManifest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, manifest, got)
}

func constructorCallFrom(caller values.StorageReference, nonce, gasLimit, gasPrice uint64) *requests.ConstructorCallRequest {
	r := &requests.ConstructorCallRequest{}
	r.Caller = caller
	r.Nonce = nonce
	r.GasLimit = gasLimit
	r.GasPrice = gasPrice
	r.ChainID = "test"
	r.Classpath_ = values.TransactionReference{}
	r.Constructor = requests.ConstructorSignature{DefiningClass: "io.chainkit.Counter"}
	return r
}

func TestDeliverConstructorCallSuccessRefundsUnusedGas(t *testing.T) {
	committed, gamete := seedGamete(t, 1_000_000)
	hasher := nodehash.Blake2b256
	req := constructorCallFrom(gamete, 0, 1_000, 1)

	newObj := values.StorageReference{Creator: requests.Reference(req, hasher), Progressive: 0}
	executor := fakeExecutor{fn: func(er ExecutionRequest) (ExecutionResult, error) {
		require.NoError(t, er.Meter.ChargeCPU(10))
		return ExecutionResult{NewObject: newObj, ClassName: "io.chainkit.Counter"}, nil
	}}
	pl := New(executor, allowVerifier{}, allowClassLoader{}, hasher)
	consensus := testConsensus(map[byte]uint64{req.Selector(): 5})

	resp, rejected, err := pl.Deliver(requests.Reference(req, hasher), req, committed, consensus, time.Unix(0, 0))
	require.NoError(t, err)
	require.False(t, rejected)
	success, ok := resp.(*responses.ConstructorCallSuccessfulResponse)
	require.True(t, ok)
	assert.Equal(t, newObj, success.Created)
	assert.EqualValues(t, 15, success.Base().Gas.Sum())

	var sawBalance, sawNonce, sawClassTag bool
	for _, u := range success.Base().Updates {
		if u.Object != gamete {
			continue
		}
		if u.Field == FieldBalance {
			sawBalance = true
			bi := u.Value.(values.BigIntegerValue)
			assert.Equal(t, big.NewInt(1_000_000-15), bi.Int)
		}
		if u.Field == FieldNonce {
			sawNonce = true
			assert.Equal(t, values.LongValue(1), u.Value)
		}
		_ = sawClassTag
	}
	assert.True(t, sawBalance, "expected a refunded balance update for the caller")
	assert.True(t, sawNonce, "expected a nonce bump update for the caller")
}

func TestDeliverExecutionFailureBillsFullGasLimit(t *testing.T) {
	committed, gamete := seedGamete(t, 1_000_000)
	hasher := nodehash.Blake2b256
	req := constructorCallFrom(gamete, 0, 100, 1)

	executor := fakeExecutor{fn: func(er ExecutionRequest) (ExecutionResult, error) {
		return ExecutionResult{}, ErrOutOfGas
	}}
	pl := New(executor, allowVerifier{}, allowClassLoader{}, hasher)
	consensus := testConsensus(nil)

	resp, rejected, err := pl.Deliver(requests.Reference(req, hasher), req, committed, consensus, time.Unix(0, 0))
	require.NoError(t, err)
	require.False(t, rejected)
	failed, ok := resp.(*responses.FailedResponse)
	require.True(t, ok)
	assert.EqualValues(t, 100, failed.Base().Gas.Penalty)
	assert.EqualValues(t, 0, failed.Base().Gas.CPU+failed.Base().Gas.RAM+failed.Base().Gas.Storage)

	var debited bool
	for _, u := range failed.Base().Updates {
		if u.Object == gamete && u.Field == FieldBalance {
			debited = true
			bi := u.Value.(values.BigIntegerValue)
			assert.Equal(t, big.NewInt(1_000_000-100), bi.Int, "a failed delivery debits the full gas cost and refunds nothing")
		}
	}
	assert.True(t, debited)
}

// TestDeliverExecutionFailureOverflowSplitsConsumedAndPenalty exercises the
// charge() overflow branch directly (gas.go), matching spec.md's worked
// gas-exhaustion example: the bucket that tripped the limit keeps only what
// was charged before the overflowing charge (none of that charge is added),
// and the unconsumed remainder becomes Penalty, not an extra charge on top
// of the limit.
func TestDeliverExecutionFailureOverflowSplitsConsumedAndPenalty(t *testing.T) {
	committed, gamete := seedGamete(t, 1_000_000)
	hasher := nodehash.Blake2b256
	req := constructorCallFrom(gamete, 0, 100, 1)

	executor := fakeExecutor{fn: func(er ExecutionRequest) (ExecutionResult, error) {
		require.NoError(t, er.Meter.ChargeCPU(30))
		err := er.Meter.ChargeCPU(80) // 30+80 > limit=100
		require.ErrorIs(t, err, ErrOutOfGas)
		return ExecutionResult{}, err
	}}
	pl := New(executor, allowVerifier{}, allowClassLoader{}, hasher)
	consensus := testConsensus(nil)

	resp, rejected, err := pl.Deliver(requests.Reference(req, hasher), req, committed, consensus, time.Unix(0, 0))
	require.NoError(t, err)
	require.False(t, rejected)
	failed, ok := resp.(*responses.FailedResponse)
	require.True(t, ok)
	assert.EqualValues(t, 30, failed.Base().Gas.CPU, "the failing bucket keeps only what fit before the abort")
	assert.EqualValues(t, 0, failed.Base().Gas.RAM+failed.Base().Gas.Storage)
	assert.EqualValues(t, 70, failed.Base().Gas.Penalty, "unconsumed remainder becomes penalty")
	assert.EqualValues(t, 100, failed.Base().Gas.Sum())

	var debited bool
	for _, u := range failed.Base().Updates {
		if u.Object == gamete && u.Field == FieldBalance {
			debited = true
			bi := u.Value.(values.BigIntegerValue)
			assert.Equal(t, big.NewInt(1_000_000-100), bi.Int)
		}
	}
	assert.True(t, debited)
}

func TestDeliverInUserCodeExceptionRefundsUnusedGas(t *testing.T) {
	committed, gamete := seedGamete(t, 1_000_000)
	hasher := nodehash.Blake2b256
	req := constructorCallFrom(gamete, 0, 1_000, 1)

	executor := fakeExecutor{fn: func(er ExecutionRequest) (ExecutionResult, error) {
		require.NoError(t, er.Meter.ChargeCPU(20))
		return ExecutionResult{Exception: &ExecutionException{Class: "java.lang.NullPointerException", Message: "boom"}}, nil
	}}
	pl := New(executor, allowVerifier{}, allowClassLoader{}, hasher)
	consensus := testConsensus(nil)

	resp, rejected, err := pl.Deliver(requests.Reference(req, hasher), req, committed, consensus, time.Unix(0, 0))
	require.NoError(t, err)
	require.False(t, rejected)
	excepted, ok := resp.(*responses.ConstructorCallExceptionResponse)
	require.True(t, ok)
	assert.Equal(t, "java.lang.NullPointerException", excepted.ExceptionClass)
	assert.Equal(t, "boom", excepted.Message)

	var refundedBalance *big.Int
	for _, u := range excepted.Base().Updates {
		if u.Object == gamete && u.Field == FieldBalance {
			refundedBalance = u.Value.(values.BigIntegerValue).Int
		}
	}
	require.NotNil(t, refundedBalance)
	assert.Equal(t, big.NewInt(1_000_000-20), refundedBalance)
}

func TestDeliverViewMethodMutationIsBilledAsFailure(t *testing.T) {
	committed, gamete := seedGamete(t, 1_000_000)
	hasher := nodehash.Blake2b256

	req := &requests.InstanceMethodCallRequest{}
	req.Caller = gamete
	req.GasLimit = 1_000
	req.GasPrice = 1
	req.ChainID = "test"
	req.Receiver = gamete
	req.Method = requests.MethodSignature{DefiningClass: "io.chainkit.Counter", Name: "peek", ReturnType: "int"}
	req.View = true

	mutated := values.NewFieldUpdate(gamete, FieldBalance, values.BigIntegerValue{Int: big.NewInt(0)})
	executor := fakeExecutor{fn: func(er ExecutionRequest) (ExecutionResult, error) {
		return ExecutionResult{Updates: []values.Update{mutated}}, nil
	}}
	pl := New(executor, allowVerifier{}, allowClassLoader{}, hasher)
	consensus := testConsensus(nil)

	resp, rejected, err := pl.Deliver(requests.Reference(req, hasher), req, committed, consensus, time.Unix(0, 0))
	require.NoError(t, err)
	require.False(t, rejected)
	_, ok := resp.(*responses.FailedResponse)
	assert.True(t, ok, "a view method that mutates state must come back as a Failed response")
}

func TestCheckRejectsBadNonce(t *testing.T) {
	committed, gamete := seedGamete(t, 1_000_000)
	hasher := nodehash.Blake2b256
	req := constructorCallFrom(gamete, 7, 1_000, 1)

	pl := New(fakeExecutor{}, allowVerifier{}, allowClassLoader{}, hasher)
	consensus := testConsensus(nil)

	_, rejected, err := pl.Deliver(requests.Reference(req, hasher), req, committed, consensus, time.Unix(0, 0))
	require.Error(t, err)
	assert.True(t, rejected)
	assert.ErrorIs(t, err, ErrNonceMismatch)
}

func TestCheckRejectsInsufficientBalance(t *testing.T) {
	committed, gamete := seedGamete(t, 10)
	hasher := nodehash.Blake2b256
	req := constructorCallFrom(gamete, 0, 1_000, 1)

	pl := New(fakeExecutor{}, allowVerifier{}, allowClassLoader{}, hasher)
	consensus := testConsensus(nil)

	_, rejected, err := pl.Deliver(requests.Reference(req, hasher), req, committed, consensus, time.Unix(0, 0))
	require.Error(t, err)
	assert.True(t, rejected)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestCheckRejectsUnknownCaller(t *testing.T) {
	committed, _ := seedGamete(t, 1_000_000)
	hasher := nodehash.Blake2b256
	unknown := values.StorageReference{Progressive: 99}
	req := constructorCallFrom(unknown, 0, 1_000, 1)

	pl := New(fakeExecutor{}, allowVerifier{}, allowClassLoader{}, hasher)
	consensus := testConsensus(nil)

	_, rejected, err := pl.Deliver(requests.Reference(req, hasher), req, committed, consensus, time.Unix(0, 0))
	require.Error(t, err)
	assert.True(t, rejected)
	assert.ErrorIs(t, err, ErrUnknownCaller)
}

// TestCheckRejectsHugeGasLimitDespiteLowBalance guards against a signed
// overflow in the gasLimit*gasPrice product: a gasLimit at or above 2^63
// must not wrap into a negative cost that slips past the balance check.
func TestCheckRejectsHugeGasLimitDespiteLowBalance(t *testing.T) {
	committed, gamete := seedGamete(t, 10)
	hasher := nodehash.Blake2b256
	req := constructorCallFrom(gamete, 0, 1<<63, 1)

	pl := New(fakeExecutor{}, allowVerifier{}, allowClassLoader{}, hasher)
	consensus := testConsensus(nil)

	_, rejected, err := pl.Deliver(requests.Reference(req, hasher), req, committed, consensus, time.Unix(0, 0))
	require.Error(t, err)
	assert.True(t, rejected)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestCheckRejectsUnknownClass(t *testing.T) {
	committed, gamete := seedGamete(t, 1_000_000)
	hasher := nodehash.Blake2b256
	req := constructorCallFrom(gamete, 0, 1_000, 1)

	pl := New(fakeExecutor{}, allowVerifier{}, denyClassLoader{}, hasher)
	consensus := testConsensus(nil)

	_, rejected, err := pl.Deliver(requests.Reference(req, hasher), req, committed, consensus, time.Unix(0, 0))
	require.Error(t, err)
	assert.True(t, rejected)
	assert.ErrorIs(t, err, ErrUnknownClass)
}
