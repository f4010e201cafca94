package requests

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainkit/statenode/nodehash"
	"github.com/chainkit/statenode/values"
)

func sampleCaller() values.StorageReference {
	return values.StorageReference{Creator: values.TransactionReference{0xAA}, Progressive: 1}
}

func TestRequestRoundTrip(t *testing.T) {
	caller := sampleCaller()
	head := nonInitialHeader{Caller: caller, Nonce: 3, GasLimit: 10000, GasPrice: 1, ChainID: "test-chain"}

	tests := []Request{
		&GameteCreationRequest{
			InitialBalances: []values.Value{values.BigIntegerValue{Int: big.NewInt(1000)}},
			PublicKey:       []byte{1, 2, 3},
		},
		&InitializeManifestRequest{
			Manifest: values.StorageReference{Creator: values.TransactionReference{0xBB}, Progressive: 0},
		},
		&InstallJarRequest{
			nonInitialHeader: head,
			Jar:              []byte{0xDE, 0xAD, 0xBE, 0xEF},
			Dependencies:     []values.TransactionReference{{0x01}, {0x02}},
		},
		&ConstructorCallRequest{
			nonInitialHeader: head,
			Constructor:      ConstructorSignature{DefiningClass: "io.chain.Wallet", Parameters: []string{"int"}},
			Actuals:          []values.Value{values.IntValue(42)},
		},
		&InstanceMethodCallRequest{
			nonInitialHeader: head,
			Method:           MethodSignature{DefiningClass: "io.chain.Wallet", Name: "transfer", Parameters: []string{"long"}, ReturnType: "boolean"},
			Receiver:         caller,
			Actuals:          []values.Value{values.LongValue(5)},
		},
		&StaticMethodCallRequest{
			nonInitialHeader: head,
			Method:           MethodSignature{DefiningClass: "io.chain.Util", Name: "now"},
			Actuals:          nil,
		},
		&InstanceSystemMethodCallRequest{
			nonInitialHeader: head,
			Method:           MethodSignature{DefiningClass: "io.chain.Validators", Name: "reward"},
			Receiver:         caller,
			Actuals:          []values.Value{values.LongValue(100)},
		},
	}

	for _, want := range tests {
		t.Run(want.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteRequest(&buf, want))
			got, err := ReadRequest(&buf)
			require.NoError(t, err)
			assert.Equal(t, 0, buf.Len())
			assert.Equal(t, want.Selector(), got.Selector())
			assert.Equal(t, want.IsInitial(), got.IsInitial())
		})
	}
}

func TestRequestReferenceIsDeterministic(t *testing.T) {
	req := &ConstructorCallRequest{
		nonInitialHeader: nonInitialHeader{Caller: sampleCaller(), Nonce: 1, GasLimit: 100, GasPrice: 1, ChainID: "c"},
		Constructor:      ConstructorSignature{DefiningClass: "io.chain.Wallet"},
	}
	r1 := Reference(req, nodehash.Blake2b256)
	r2 := Reference(req, nodehash.Blake2b256)
	assert.Equal(t, r1, r2)

	req2 := *req
	req2.Nonce = 2
	r3 := Reference(&req2, nodehash.Blake2b256)
	assert.NotEqual(t, r1, r3, "changing any signed field must change the transaction reference")
}
