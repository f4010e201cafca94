package pipeline

import (
	"encoding/hex"
	"math/big"

	"golang.org/x/xerrors"

	"github.com/chainkit/statenode/store"
	"github.com/chainkit/statenode/values"
)

// ClassExternallyOwnedAccount is the class tag every gamete and every
// subsequently created account object carries.
const ClassExternallyOwnedAccount = "io.chainkit.ExternallyOwnedAccount"

var (
	FieldBalance = values.FieldSignature{DefiningClass: ClassExternallyOwnedAccount, Name: "balance", Type: "java.math.BigInteger"}
	FieldNonce   = values.FieldSignature{DefiningClass: ClassExternallyOwnedAccount, Name: "nonce", Type: "long"}
	FieldPubKey  = values.FieldSignature{DefiningClass: ClassExternallyOwnedAccount, Name: "publicKey", Type: "java.lang.String"}
)

// ErrUnknownCaller means the caller's storage reference does not resolve to
// an externally-owned-account object in the snapshot Check ran against.
var ErrUnknownCaller = xerrors.New("pipeline: caller does not resolve to an account")

// account is the read-only projection of an externally-owned account's
// current state, assembled from Store.TryGetState (spec.md §4.3).
type account struct {
	Balance   *big.Int
	Nonce     uint64
	PublicKey []byte
}

func readAccount(s *store.Store, ref values.StorageReference) (account, error) {
	fields, class, ok, err := s.TryGetState(ref)
	if err != nil {
		return account{}, err
	}
	if !ok || class != ClassExternallyOwnedAccount {
		return account{}, ErrUnknownCaller
	}
	balance, ok := fields[FieldBalance].(values.BigIntegerValue)
	if !ok {
		return account{}, ErrUnknownCaller
	}
	nonce, ok := fields[FieldNonce].(values.LongValue)
	if !ok {
		return account{}, ErrUnknownCaller
	}
	var pub []byte
	if s, ok := fields[FieldPubKey].(values.StringValue); ok {
		pub, _ = hex.DecodeString(string(s))
	}
	return account{Balance: balance.Int, Nonce: uint64(nonce), PublicKey: pub}, nil
}

func gameteUpdates(ref values.StorageReference, balance *big.Int, publicKey []byte) []values.Update {
	return []values.Update{
		values.NewClassTag(ref, ClassExternallyOwnedAccount),
		values.NewFieldUpdate(ref, FieldBalance, values.BigIntegerValue{Int: new(big.Int).Set(balance)}),
		values.NewFieldUpdate(ref, FieldNonce, values.LongValue(0)),
		values.NewFieldUpdate(ref, FieldPubKey, values.StringValue(hex.EncodeToString(publicKey))),
	}
}

// forcedUpdates produces the unconditional balance-debit and nonce-bump
// updates of spec.md §4.5 step 2, charged regardless of how Deliver ends.
func forcedUpdates(ref values.StorageReference, acct account, cost *big.Int) []values.Update {
	newBalance := new(big.Int).Sub(acct.Balance, cost)
	return []values.Update{
		values.NewFieldUpdate(ref, FieldBalance, values.BigIntegerValue{Int: newBalance}),
		values.NewFieldUpdate(ref, FieldNonce, values.LongValue(acct.Nonce+1)),
	}
}

// refundUpdate adds back unused gas to the balance the forced debit already
// set (spec.md §4.5 step 5): it replaces, rather than stacks atop, the
// forced balance update so the final sorted Updates carry one value per
// field.
func refundUpdate(ref values.StorageReference, debitedBalance *big.Int, refund *big.Int) values.Update {
	final := new(big.Int).Add(debitedBalance, refund)
	return values.NewFieldUpdate(ref, FieldBalance, values.BigIntegerValue{Int: final})
}
