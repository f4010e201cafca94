package node

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainkit/statenode/config"
	"github.com/chainkit/statenode/kvstore"
	"github.com/chainkit/statenode/nodehash"
	"github.com/chainkit/statenode/pipeline"
	"github.com/chainkit/statenode/requests"
	"github.com/chainkit/statenode/responses"
	"github.com/chainkit/statenode/values"
)

type nopExecutor struct{}

func (nopExecutor) Execute(req pipeline.ExecutionRequest) (pipeline.ExecutionResult, error) {
	return pipeline.ExecutionResult{}, nil
}

type allowVerifier struct{}

func (allowVerifier) Verify(publicKey, message, signature []byte) bool { return true }

type allowClassLoader struct{}

func (allowClassLoader) ClassExists(classpath values.TransactionReference, className string) bool {
	return true
}

func testConfig() config.LocalNodeConfig {
	cfg := config.DefaultLocalNodeConfig()
	cfg.Workers = 2
	cfg.AddTimeout = 2 * time.Second
	return cfg
}

func newTestNode(t *testing.T) *Node {
	t.Helper()
	hasher := nodehash.Blake2b256
	kv := kvstore.NewMemStore()
	pl := pipeline.New(nopExecutor{}, allowVerifier{}, allowClassLoader{}, hasher)
	consensus := config.ConsensusSnapshot{ChainID: "test", HasherName: hasher.Name()}
	n := New(kv, hasher, pl, consensus, testConfig())
	t.Cleanup(n.Close)
	return n
}

func TestNodeAddCommitsGameteCreation(t *testing.T) {
	n := newTestNode(t)

	req := &requests.GameteCreationRequest{
		InitialBalances: []values.Value{values.BigIntegerValue{Int: big.NewInt(500)}},
		PublicKey:       []byte("pk"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ref, resp, rejected, err := n.Add(ctx, req)
	require.NoError(t, err)
	require.False(t, rejected)
	require.IsType(t, &responses.GameteCreationResponse{}, resp)

	gamete := values.StorageReference{Creator: ref, Progressive: 0}
	fields, class, err := n.GetState(gamete)
	require.NoError(t, err)
	assert.Equal(t, pipeline.ClassExternallyOwnedAccount, class)
	assert.Equal(t, big.NewInt(500), fields[pipeline.FieldBalance].(values.BigIntegerValue).Int)

	id, err := n.Id()
	require.NoError(t, err)
	assert.EqualValues(t, 1, id.Commits)
}

func TestNodePostReturnsReferenceBeforeCommit(t *testing.T) {
	n := newTestNode(t)

	req := &requests.GameteCreationRequest{PublicKey: []byte("pk")}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ref, err := n.Post(ctx, req)
	require.NoError(t, err)
	assert.False(t, ref.IsZero())

	require.Eventually(t, func() bool {
		id, err := n.Id()
		return err == nil && id.Commits == 1
	}, time.Second, 5*time.Millisecond)

	_, ok, err := n.GetResponse(ref)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNodeInitializeManifestIsVisibleAfterCommit(t *testing.T) {
	n := newTestNode(t)

	manifest := values.StorageReference{Progressive: 1}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, _, rejected, err := n.Add(ctx, &requests.InitializeManifestRequest{Manifest: manifest})
	require.NoError(t, err)
	require.False(t, rejected)

	got, ok, err := n.GetManifest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, manifest, got)
}

func TestNodeAddTimesOutButRequestStillCommits(t *testing.T) {
	hasher := nodehash.Blake2b256
	kv := kvstore.NewMemStore()

	blocked := make(chan struct{})
	executor := blockingExecutor{release: blocked}
	pl := pipeline.New(executor, allowVerifier{}, allowClassLoader{}, hasher)
	consensus := config.ConsensusSnapshot{ChainID: "test", HasherName: hasher.Name()}
	cfg := testConfig()
	cfg.AddTimeout = 20 * time.Millisecond
	n := New(kv, hasher, pl, consensus, cfg)
	defer n.Close()

	gameteReq := &requests.GameteCreationRequest{
		PublicKey:       []byte("pk"),
		InitialBalances: []values.Value{values.BigIntegerValue{Int: big.NewInt(1_000_000)}},
	}
	ctx := context.Background()
	gameteRef, _, rejected, err := n.Add(ctx, gameteReq)
	require.NoError(t, err)
	require.False(t, rejected)
	gamete := values.StorageReference{Creator: gameteRef, Progressive: 0}

	methodReq := &requests.InstanceMethodCallRequest{}
	methodReq.Caller = gamete
	methodReq.GasLimit = 1_000
	methodReq.GasPrice = 1
	methodReq.ChainID = "test"
	methodReq.Receiver = gamete
	methodReq.Method = requests.MethodSignature{DefiningClass: "io.chainkit.Counter", Name: "slow"}

	_, _, _, err = n.Add(ctx, methodReq)
	assert.ErrorIs(t, err, ErrAddTimeout)

	close(blocked)
	require.Eventually(t, func() bool {
		id, err := n.Id()
		return err == nil && id.Commits == 2
	}, time.Second, 5*time.Millisecond)
}

type blockingExecutor struct {
	release chan struct{}
}

func (b blockingExecutor) Execute(req pipeline.ExecutionRequest) (pipeline.ExecutionResult, error) {
	<-b.release
	return pipeline.ExecutionResult{}, nil
}
