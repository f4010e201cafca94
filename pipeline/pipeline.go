package pipeline

import (
	"math/big"
	"time"

	"golang.org/x/xerrors"

	"github.com/chainkit/statenode/config"
	"github.com/chainkit/statenode/log"
	"github.com/chainkit/statenode/metrics"
	"github.com/chainkit/statenode/nodehash"
	"github.com/chainkit/statenode/requests"
	"github.com/chainkit/statenode/responses"
	"github.com/chainkit/statenode/store"
	"github.com/chainkit/statenode/values"
)

// TransactionPipeline turns one Request into a Response against a read
// snapshot of the StoreTransformation it is delivered within (spec.md
// §4.5). It holds no state of its own between calls.
type TransactionPipeline struct {
	executor    CodeExecutor
	verifier    Verifier
	classLoader ClassLoaderProvider
	hasher      nodehash.Hasher
}

func New(executor CodeExecutor, verifier Verifier, classLoader ClassLoaderProvider, hasher nodehash.Hasher) *TransactionPipeline {
	return &TransactionPipeline{executor: executor, verifier: verifier, classLoader: classLoader, hasher: hasher}
}

// Deliver matches store.Deliverer's signature, so a Node wires it directly
// into Transformation.Execute for every request in a batch.
func (p *TransactionPipeline) Deliver(ref values.TransactionReference, req requests.Request, snapshot *store.Store, consensus config.ConsensusSnapshot, now time.Time) (responses.Response, bool, error) {
	logger := log.WithTxRef("pipeline", ref.String())

	if err := p.check(req, snapshot); err != nil {
		logger.Warn().Err(err).Msg("request rejected")
		metrics.RequestsTotal.WithLabelValues(OutcomeRejected.String()).Inc()
		return nil, true, err
	}

	switch r := req.(type) {
	case *requests.GameteCreationRequest:
		resp := p.deliverGameteCreation(ref, r)
		metrics.RequestsTotal.WithLabelValues(OutcomeOk.String()).Inc()
		return resp, false, nil
	case *requests.InitializeManifestRequest:
		resp := p.deliverInitializeManifest(r)
		metrics.RequestsTotal.WithLabelValues(OutcomeOk.String()).Inc()
		return resp, false, nil
	}

	resp, outcome, err := p.deliverNonInitial(ref, req.(requests.NonInitial), snapshot, consensus)
	if err != nil {
		return nil, false, err
	}
	metrics.RequestsTotal.WithLabelValues(outcome.String()).Inc()
	for bucket, v := range map[string]uint64{
		"cpu": resp.Base().Gas.CPU, "ram": resp.Base().Gas.RAM,
		"storage": resp.Base().Gas.Storage, "penalty": resp.Base().Gas.Penalty,
	} {
		metrics.GasConsumed.WithLabelValues(bucket).Observe(float64(v))
	}
	return resp, false, nil
}

// check implements spec.md §4.5 step 1.
func (p *TransactionPipeline) check(req requests.Request, snapshot *store.Store) error {
	switch r := req.(type) {
	case *requests.GameteCreationRequest:
		return nil
	case *requests.InitializeManifestRequest:
		if _, ok, err := snapshot.GetManifest(); err != nil {
			return err
		} else if ok {
			return ErrManifestAlreadySet
		}
		return nil
	default:
		nonInit := r.(requests.NonInitial)
		acct, err := readAccount(snapshot, nonInit.GetCaller())
		if err != nil {
			return err
		}
		if acct.Nonce != nonInit.GetNonce() {
			return ErrNonceMismatch
		}
		cost := gasCost(nonInit.GetGasLimit(), nonInit.GetGasPrice())
		if acct.Balance.Cmp(cost) < 0 {
			return ErrInsufficientBalance
		}
		if classpath, className, ok := definingClassOf(req); ok {
			if !p.classLoader.ClassExists(classpath, className) {
				return ErrUnknownClass
			}
		}
		if sig := nonInit.GetSignature(); len(sig) > 0 {
			if !p.verifier.Verify(acct.PublicKey, requests.Reference(req, p.hasher).Bytes(), sig) {
				return ErrBadSignature
			}
		}
		return nil
	}
}

func (p *TransactionPipeline) deliverGameteCreation(ref values.TransactionReference, r *requests.GameteCreationRequest) responses.Response {
	gamete := values.StorageReference{Creator: ref, Progressive: 0}
	balance := big.NewInt(0)
	if len(r.InitialBalances) > 0 {
		if bi, ok := r.InitialBalances[0].(values.BigIntegerValue); ok {
			balance = bi.Int
		}
	}
	return &responses.GameteCreationResponse{
		Common: responses.Base{Updates: values.SortUpdates(gameteUpdates(gamete, balance, r.PublicKey))},
		Gamete: gamete,
	}
}

func (p *TransactionPipeline) deliverInitializeManifest(r *requests.InitializeManifestRequest) responses.Response {
	return &responses.InitializeManifestResponse{Common: responses.Base{}}
}

func (p *TransactionPipeline) deliverNonInitial(ref values.TransactionReference, req requests.NonInitial, snapshot *store.Store, consensus config.ConsensusSnapshot) (responses.Response, Outcome, error) {
	caller := req.GetCaller()
	acct, err := readAccount(snapshot, caller)
	if err != nil {
		return nil, OutcomeRejected, err
	}

	cost := gasCost(req.GetGasLimit(), req.GetGasPrice())
	forced := forcedUpdates(caller, acct, cost)
	debitedBalance := new(big.Int).Sub(acct.Balance, cost)

	meter, err := NewGasMeter(consensus.GasCostModel, req.GetGasLimit(), req.Selector())
	if err != nil {
		return p.failedResponse(req, forced, responses.Gas{Penalty: req.GetGasLimit()}), OutcomeFailed, nil
	}

	execReq, err := p.executionRequestFor(req, caller, meter)
	if err != nil {
		return nil, OutcomeRejected, err
	}

	result, execErr := p.executor.Execute(execReq)
	if execErr != nil {
		penalty := meter.Remaining()
		gas := meter.Result()
		gas.Penalty = penalty
		return p.failedResponse(req, forced, gas), OutcomeFailed, nil
	}

	if execReq.View && len(result.Updates) > 0 {
		penalty := meter.Remaining()
		gas := meter.Result()
		gas.Penalty = penalty
		return p.failedResponse(req, forced, gas), OutcomeFailed, nil
	}

	if result.Exception != nil {
		refund := gasCost(meter.Remaining(), req.GetGasPrice())
		updates := []values.Update{
			values.NewFieldUpdate(caller, FieldNonce, values.LongValue(acct.Nonce+1)),
			refundUpdate(caller, debitedBalance, refund),
		}
		return p.exceptionResponse(req, values.SortUpdates(updates), meter.Result(), *result.Exception), OutcomeExcepted, nil
	}

	refund := gasCost(meter.Remaining(), req.GetGasPrice())
	updates := append([]values.Update{}, forced[1:]...) // nonce bump only; balance is replaced below
	updates = append(updates, refundUpdate(caller, debitedBalance, refund))
	updates = append(updates, result.Updates...)
	if req.Kind() == requests.KindConstructorCall {
		updates = append(updates, values.NewClassTag(result.NewObject, result.ClassName))
	}

	return p.successResponse(req, values.SortUpdates(updates), result, meter.Result()), OutcomeOk, nil
}

// gasCost computes gasLimit*gasPrice as an unsigned product; both operands
// come straight off the wire as uint64, and converting either to int64
// before multiplying would wrap a value at or above 2^63 into a negative
// big.Int, letting an attacker-chosen huge gasLimit pass the balance check
// for free.
func gasCost(gasLimit, gasPrice uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), new(big.Int).SetUint64(gasPrice))
}

// definingClassOf reports the classpath and class name a constructor or
// method call names, so check() can reject a call into a class that was
// never installed. InstallJarRequest installs a classpath rather than
// naming one, so it has no defining class to resolve.
func definingClassOf(req requests.Request) (values.TransactionReference, string, bool) {
	switch r := req.(type) {
	case *requests.ConstructorCallRequest:
		return r.Classpath_, r.Constructor.DefiningClass, true
	case *requests.InstanceMethodCallRequest:
		return r.Classpath_, r.Method.DefiningClass, true
	case *requests.StaticMethodCallRequest:
		return r.Classpath_, r.Method.DefiningClass, true
	case *requests.InstanceSystemMethodCallRequest:
		return r.Classpath_, r.Method.DefiningClass, true
	default:
		return values.TransactionReference{}, "", false
	}
}

func (p *TransactionPipeline) executionRequestFor(req requests.NonInitial, caller values.StorageReference, meter *GasMeter) (ExecutionRequest, error) {
	switch r := req.(type) {
	case *requests.InstallJarRequest:
		return ExecutionRequest{Classpath: r.Classpath_, Caller: caller, Jar: r.Jar, Meter: meter}, nil
	case *requests.ConstructorCallRequest:
		return ExecutionRequest{Classpath: r.Classpath_, Caller: caller, Constructor: &r.Constructor, Actuals: r.Actuals, Meter: meter}, nil
	case *requests.InstanceMethodCallRequest:
		recv := r.Receiver
		return ExecutionRequest{Classpath: r.Classpath_, Caller: caller, Receiver: &recv, Method: &r.Method, Actuals: r.Actuals, View: r.View, Meter: meter}, nil
	case *requests.StaticMethodCallRequest:
		return ExecutionRequest{Classpath: r.Classpath_, Caller: caller, Method: &r.Method, Actuals: r.Actuals, View: r.View, Meter: meter}, nil
	case *requests.InstanceSystemMethodCallRequest:
		recv := r.Receiver
		return ExecutionRequest{Classpath: r.Classpath_, Caller: caller, Receiver: &recv, Method: &r.Method, Actuals: r.Actuals, Meter: meter}, nil
	default:
		return ExecutionRequest{}, xerrors.Errorf("pipeline: unrecognized non-initial request %T", req)
	}
}

func (p *TransactionPipeline) failedResponse(req requests.NonInitial, forced []values.Update, gas responses.Gas) responses.Response {
	r := &responses.FailedResponse{Common: responses.Base{Updates: values.SortUpdates(forced), Gas: gas}}
	r.ExceptionClass = "pipeline.ExecutionFailure"
	return r
}

func (p *TransactionPipeline) exceptionResponse(req requests.NonInitial, updates []values.Update, gas responses.Gas, exc ExecutionException) responses.Response {
	base := responses.Base{Updates: updates, Gas: gas}
	if req.Kind() == requests.KindConstructorCall {
		r := &responses.ConstructorCallExceptionResponse{Common: base}
		r.ExceptionClass, r.Message = exc.Class, exc.Message
		return r
	}
	r := &responses.MethodCallExceptionResponse{Common: base}
	r.ExceptionClass, r.Message = exc.Class, exc.Message
	return r
}

func (p *TransactionPipeline) successResponse(req requests.NonInitial, updates []values.Update, result ExecutionResult, gas responses.Gas) responses.Response {
	base := responses.Base{Updates: updates, Events: result.Events, Gas: gas}
	switch req.Kind() {
	case requests.KindInstallJar:
		return &responses.InstallJarSuccessfulResponse{Common: base}
	case requests.KindConstructorCall:
		return &responses.ConstructorCallSuccessfulResponse{Common: base, Created: result.NewObject}
	case requests.KindInstanceMethodCall, requests.KindStaticMethodCall, requests.KindInstanceSystemMethodCall:
		if result.ReturnValue == nil {
			return &responses.VoidMethodCallSuccessfulResponse{Common: base}
		}
		return &responses.MethodCallSuccessfulResponse{Common: base, ReturnValue: result.ReturnValue}
	default:
		return &responses.VoidMethodCallSuccessfulResponse{Common: base}
	}
}
