// Package responses implements the Response variants of spec.md §3: every
// response carries the ordered updates, ordered events and gas-consumed
// breakdown the Post stage of the transaction pipeline assembles, plus a
// per-variant payload (return value, created object, exception, or
// nothing at all).
package responses

import (
	"bytes"
	"io"

	"github.com/chainkit/statenode/common"
	"github.com/chainkit/statenode/values"
)

type Kind int

const (
	KindGameteCreation Kind = iota
	KindInitializeManifest
	KindInstallJarSuccessful
	KindConstructorCallSuccessful
	KindConstructorCallException
	KindMethodCallSuccessful
	KindVoidMethodCallSuccessful
	KindMethodCallException
	KindFailed
)

const (
	selGameteCreation             = 1
	selInitializeManifest         = 2
	selInstallJarSuccessful       = 3
	selConstructorCallSuccessful  = 4
	selConstructorCallException   = 5
	selMethodCallSuccessful       = 6
	selMethodCallException        = 7
	selFailed                     = 8
	selVoidMethodCallNonEmptyEvts = 12
	selVoidMethodCallEmptyEvts    = 16
)

// Gas is the gas-consumed breakdown every response carries (spec.md §4.5).
type Gas struct {
	CPU     uint64
	RAM     uint64
	Storage uint64
	Penalty uint64
}

func (g Gas) Write(w io.Writer) error {
	if err := common.WriteUint64(w, g.CPU); err != nil {
		return err
	}
	if err := common.WriteUint64(w, g.RAM); err != nil {
		return err
	}
	if err := common.WriteUint64(w, g.Storage); err != nil {
		return err
	}
	return common.WriteUint64(w, g.Penalty)
}

func (g *Gas) Read(r io.Reader) (err error) {
	if err = common.ReadUint64(r, &g.CPU); err != nil {
		return err
	}
	if err = common.ReadUint64(r, &g.RAM); err != nil {
		return err
	}
	if err = common.ReadUint64(r, &g.Storage); err != nil {
		return err
	}
	return common.ReadUint64(r, &g.Penalty)
}

// Sum is the total gas charged against the request's gas limit. Spec.md
// §9 requires CPU+RAM+Storage+Penalty <= request.gasLimit.
func (g Gas) Sum() uint64 { return g.CPU + g.RAM + g.Storage + g.Penalty }

// Base holds the fields common to every response variant.
type Base struct {
	Updates []values.Update
	Events  []values.Event
	Gas     Gas
}

func (b Base) writeBase(w io.Writer) error {
	if err := writeUpdates(w, b.Updates); err != nil {
		return err
	}
	if err := values.WriteEvents(w, b.Events); err != nil {
		return err
	}
	return b.Gas.Write(w)
}

func (b *Base) readBase(r io.Reader) (err error) {
	if b.Updates, err = readUpdates(r); err != nil {
		return err
	}
	if b.Events, err = values.ReadEvents(r); err != nil {
		return err
	}
	return b.Gas.Read(r)
}

func writeUpdates(w io.Writer, updates []values.Update) error {
	if err := common.WriteCompactUint(w, uint64(len(updates))); err != nil {
		return err
	}
	for _, u := range updates {
		if err := u.Write(w); err != nil {
			return err
		}
	}
	return nil
}

func readUpdates(r io.Reader) ([]values.Update, error) {
	n, err := common.ReadCompactUint(r)
	if err != nil {
		return nil, err
	}
	out := make([]values.Update, n)
	for i := range out {
		if err := out[i].Read(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Response is the common interface of every response variant.
type Response interface {
	Kind() Kind
	Selector() byte
	Base() Base
	Write(w io.Writer) error
	String() string
}

func Bytes(r Response) []byte {
	var buf bytes.Buffer
	if err := WriteResponse(&buf, r); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func WriteResponse(w io.Writer, r Response) error {
	if err := common.WriteByte(w, r.Selector()); err != nil {
		return err
	}
	return r.Write(w)
}

func ReadResponse(r io.Reader) (Response, error) {
	sel, err := common.ReadByte(r)
	if err != nil {
		return nil, err
	}
	switch sel {
	case selGameteCreation:
		var resp GameteCreationResponse
		return &resp, resp.readBody(r)
	case selInitializeManifest:
		var resp InitializeManifestResponse
		return &resp, resp.readBody(r)
	case selInstallJarSuccessful:
		var resp InstallJarSuccessfulResponse
		return &resp, resp.readBody(r)
	case selConstructorCallSuccessful:
		var resp ConstructorCallSuccessfulResponse
		return &resp, resp.readBody(r)
	case selConstructorCallException:
		var resp ConstructorCallExceptionResponse
		return &resp, resp.readBody(r)
	case selMethodCallSuccessful:
		var resp MethodCallSuccessfulResponse
		return &resp, resp.readBody(r)
	case selMethodCallException:
		var resp MethodCallExceptionResponse
		return &resp, resp.readBody(r)
	case selFailed:
		var resp FailedResponse
		return &resp, resp.readBody(r)
	case selVoidMethodCallNonEmptyEvts, selVoidMethodCallEmptyEvts:
		var resp VoidMethodCallSuccessfulResponse
		return &resp, resp.readBody(r)
	default:
		return nil, common.ErrNotAllBytesConsumed
	}
}
