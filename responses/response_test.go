package responses

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainkit/statenode/values"
)

func sampleBase() Base {
	obj := values.StorageReference{Creator: values.TransactionReference{0x01}, Progressive: 1}
	return Base{
		Updates: []values.Update{values.NewClassTag(obj, "io.chain.Wallet")},
		Events:  nil,
		Gas:     Gas{CPU: 10, RAM: 4, Storage: 1, Penalty: 0},
	}
}

func TestResponseRoundTrip(t *testing.T) {
	obj := values.StorageReference{Creator: values.TransactionReference{0x02}, Progressive: 0}

	tests := []Response{
		&GameteCreationResponse{Common: sampleBase(), Gamete: obj},
		&InitializeManifestResponse{Common: sampleBase()},
		&InstallJarSuccessfulResponse{Common: sampleBase()},
		&ConstructorCallSuccessfulResponse{Common: sampleBase(), Created: obj},
		&ConstructorCallExceptionResponse{Common: sampleBase(), exceptionPayload: exceptionPayload{ExceptionClass: "io.chain.Err", Message: "boom"}},
		&MethodCallSuccessfulResponse{Common: sampleBase(), ReturnValue: values.IntValue(7)},
		&MethodCallExceptionResponse{Common: sampleBase(), exceptionPayload: exceptionPayload{ExceptionClass: "io.chain.Err", Message: "bad"}},
		&FailedResponse{Common: sampleBase(), exceptionPayload: exceptionPayload{ExceptionClass: "io.chain.OutOfGas", Message: "exhausted"}},
		&VoidMethodCallSuccessfulResponse{Common: sampleBase()},
	}

	for _, want := range tests {
		t.Run(want.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteResponse(&buf, want))
			got, err := ReadResponse(&buf)
			require.NoError(t, err)
			assert.Equal(t, 0, buf.Len())
			assert.Equal(t, want.Kind(), got.Kind())
			assert.Equal(t, len(want.Base().Updates), len(got.Base().Updates))
		})
	}
}

func TestVoidMethodCallSelectorDependsOnEvents(t *testing.T) {
	empty := &VoidMethodCallSuccessfulResponse{Common: Base{}}
	assert.Equal(t, byte(selVoidMethodCallEmptyEvts), empty.Selector())

	withEvent := &VoidMethodCallSuccessfulResponse{Common: Base{
		Events: []values.Event{{Emitter: values.StorageReference{}, Index: 0}},
	}}
	assert.Equal(t, byte(selVoidMethodCallNonEmptyEvts), withEvent.Selector())
}

func TestGasSum(t *testing.T) {
	g := Gas{CPU: 1, RAM: 2, Storage: 3, Penalty: 4}
	assert.Equal(t, uint64(10), g.Sum())
}
