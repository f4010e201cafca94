// Package pipeline implements the TransactionPipeline of spec.md §4.5:
// Check, Charge-upfront, Deliver, Post and Refund, turning one Request
// into a deterministic Response against a read snapshot of a
// StoreTransformation in progress. Contract execution itself, bytecode
// verification and concrete cryptography remain external collaborator
// interfaces (spec.md §6) — this package only orchestrates them.
package pipeline

import (
	"github.com/chainkit/statenode/requests"
	"github.com/chainkit/statenode/values"
)

// ExecutionRequest is what the pipeline hands the CodeExecutor for every
// Deliver that is not a GameteCreationRequest or InitializeManifestRequest.
type ExecutionRequest struct {
	Classpath   values.TransactionReference
	Caller      values.StorageReference
	Receiver    *values.StorageReference
	Method      *requests.MethodSignature
	Constructor *requests.ConstructorSignature
	Actuals     []values.Value
	Jar         []byte
	View        bool
	Meter       *GasMeter
}

// ExecutionException reports an exception thrown by user code — distinct
// from an executor abort, which Execute reports as a Go error.
type ExecutionException struct {
	Class   string
	Message string
}

// ExecutionResult is the executor's deterministic outcome for one
// ExecutionRequest. Updates excludes the forced caller balance/nonce
// updates and any creation tag, which the pipeline adds itself.
type ExecutionResult struct {
	ReturnValue values.Value
	Updates     []values.Update
	Events      []values.Event
	NewObject   values.StorageReference
	ClassName   string
	Exception   *ExecutionException
}

// CodeExecutor runs one request's payload deterministically against the
// store snapshot visible through Meter, charging gas for every observable
// operation. A non-nil error means the execution aborted (out-of-gas,
// whitelisting violation, determinism violation) and must be billed as an
// execution failure (spec.md §4.5 step 4); Exception on the result means
// user code ran to completion but threw.
type CodeExecutor interface {
	Execute(req ExecutionRequest) (ExecutionResult, error)
}

// ClassLoaderProvider resolves whether a class or member exists in a
// previously installed classpath. Bytecode verification and instrumentation
// themselves remain out of scope (spec.md's Non-goals); this interface only
// lets Check reject requests naming classes that were never installed.
type ClassLoaderProvider interface {
	ClassExists(classpath values.TransactionReference, className string) bool
}

// Verifier checks a request's signature against its caller's public key.
type Verifier interface {
	Verify(publicKey, message, signature []byte) bool
}

// Signer produces a signature over a message. Used by request submitters,
// not by the pipeline itself; kept alongside Verifier since spec.md §6
// lists both as one collaborator pair.
type Signer interface {
	Sign(message, privateKey []byte) ([]byte, error)
}
