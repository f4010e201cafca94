// Package requests implements the seven kinds of transaction request named
// by spec.md §3, their canonical selector-prefixed encoding (spec.md §6),
// and the TransactionReference hash that identifies each one.
package requests

import (
	"bytes"
	"io"

	"github.com/chainkit/statenode/common"
	"github.com/chainkit/statenode/nodehash"
	"github.com/chainkit/statenode/values"
)

// Kind distinguishes the seven request variants independently of their
// wire selector, so callers can switch on behaviour without a type switch.
type Kind int

const (
	KindGameteCreation Kind = iota
	KindInitializeManifest
	KindInstallJar
	KindConstructorCall
	KindInstanceMethodCall
	KindStaticMethodCall
	KindInstanceSystemMethodCall
)

// Selector bytes. GameteCreation keeps the number spec.md's own example
// uses for an initial request (InitializationTransactionRequest=10);
// the rest take the next free numbers.
const (
	selGameteCreation          = 10
	selInitializeManifest      = 11
	selInstallJar              = 1
	selConstructorCall         = 2
	selInstanceMethodCall      = 3
	selStaticMethodCall        = 4
	selInstanceSystemMethodCall = 5
)

// MethodSignature identifies a method by defining class, name, parameter
// types and return type ("" for void).
type MethodSignature struct {
	DefiningClass string
	Name          string
	Parameters    []string
	ReturnType    string
}

func (m MethodSignature) Write(w io.Writer) error {
	if err := common.WriteString(w, m.DefiningClass); err != nil {
		return err
	}
	if err := common.WriteString(w, m.Name); err != nil {
		return err
	}
	if err := writeStrings(w, m.Parameters); err != nil {
		return err
	}
	return common.WriteString(w, m.ReturnType)
}

func (m *MethodSignature) Read(r io.Reader) (err error) {
	if m.DefiningClass, err = common.ReadString(r); err != nil {
		return err
	}
	if m.Name, err = common.ReadString(r); err != nil {
		return err
	}
	if m.Parameters, err = readStrings(r); err != nil {
		return err
	}
	m.ReturnType, err = common.ReadString(r)
	return err
}

func (m MethodSignature) IsVoid() bool { return m.ReturnType == "" }

// ConstructorSignature identifies a constructor by defining class and
// parameter types.
type ConstructorSignature struct {
	DefiningClass string
	Parameters    []string
}

func (c ConstructorSignature) Write(w io.Writer) error {
	if err := common.WriteString(w, c.DefiningClass); err != nil {
		return err
	}
	return writeStrings(w, c.Parameters)
}

func (c *ConstructorSignature) Read(r io.Reader) (err error) {
	if c.DefiningClass, err = common.ReadString(r); err != nil {
		return err
	}
	c.Parameters, err = readStrings(r)
	return err
}

func writeStrings(w io.Writer, ss []string) error {
	if err := common.WriteCompactUint(w, uint64(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := common.WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readStrings(r io.Reader) ([]string, error) {
	n, err := common.ReadCompactUint(r)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = common.ReadString(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeValues(w io.Writer, vs []values.Value) error {
	if err := common.WriteCompactUint(w, uint64(len(vs))); err != nil {
		return err
	}
	for _, v := range vs {
		if err := values.WriteValue(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readValues(r io.Reader) ([]values.Value, error) {
	n, err := common.ReadCompactUint(r)
	if err != nil {
		return nil, err
	}
	out := make([]values.Value, n)
	for i := range out {
		if out[i], err = values.ReadValue(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Request is the common interface of every request variant.
type Request interface {
	Kind() Kind
	Selector() byte
	IsInitial() bool
	Classpath() values.TransactionReference
	Write(w io.Writer) error
	String() string
}

// Bytes returns the canonical encoding of r, selector included.
func Bytes(r Request) []byte {
	var buf bytes.Buffer
	if err := WriteRequest(&buf, r); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Reference hashes r's canonical encoding with hasher to produce its
// TransactionReference, the identifier spec.md §3 says is "produced by
// hashing the marshalled request."
func Reference(r Request, hasher nodehash.Hasher) values.TransactionReference {
	return values.TransactionReference(hasher.Hash(Bytes(r)))
}

func WriteRequest(w io.Writer, r Request) error {
	if err := common.WriteByte(w, r.Selector()); err != nil {
		return err
	}
	return r.Write(w)
}

func ReadRequest(r io.Reader) (Request, error) {
	sel, err := common.ReadByte(r)
	if err != nil {
		return nil, err
	}
	switch sel {
	case selGameteCreation:
		var req GameteCreationRequest
		return &req, req.readBody(r)
	case selInitializeManifest:
		var req InitializeManifestRequest
		return &req, req.readBody(r)
	case selInstallJar:
		var req InstallJarRequest
		return &req, req.readBody(r)
	case selConstructorCall:
		var req ConstructorCallRequest
		return &req, req.readBody(r)
	case selInstanceMethodCall:
		var req InstanceMethodCallRequest
		return &req, req.readBody(r)
	case selStaticMethodCall:
		var req StaticMethodCallRequest
		return &req, req.readBody(r)
	case selInstanceSystemMethodCall:
		var req InstanceSystemMethodCallRequest
		return &req, req.readBody(r)
	default:
		return nil, common.ErrNotAllBytesConsumed
	}
}

// nonInitialHeader carries the fields every non-initial request kind
// shares: caller identity, replay-protection nonce, gas budget, chain
// binding and an optional signature over everything that precedes it.
type nonInitialHeader struct {
	Caller    values.StorageReference
	Nonce     uint64
	GasLimit  uint64
	GasPrice  uint64
	ChainID   string
	Signature []byte
}

// NonInitial is satisfied by the five request kinds that embed
// nonInitialHeader, letting the pipeline read caller/nonce/gas fields
// without a type switch over every concrete kind.
type NonInitial interface {
	Request
	GetCaller() values.StorageReference
	GetNonce() uint64
	GetGasLimit() uint64
	GetGasPrice() uint64
	GetChainID() string
	GetSignature() []byte
}

func (h nonInitialHeader) GetCaller() values.StorageReference { return h.Caller }
func (h nonInitialHeader) GetNonce() uint64                   { return h.Nonce }
func (h nonInitialHeader) GetGasLimit() uint64                { return h.GasLimit }
func (h nonInitialHeader) GetGasPrice() uint64                { return h.GasPrice }
func (h nonInitialHeader) GetChainID() string                 { return h.ChainID }
func (h nonInitialHeader) GetSignature() []byte               { return h.Signature }

func (h nonInitialHeader) writeHead(w io.Writer) error {
	if err := h.Caller.Write(w); err != nil {
		return err
	}
	if err := common.WriteUint64(w, h.Nonce); err != nil {
		return err
	}
	if err := common.WriteUint64(w, h.GasLimit); err != nil {
		return err
	}
	if err := common.WriteUint64(w, h.GasPrice); err != nil {
		return err
	}
	return common.WriteString(w, h.ChainID)
}

func (h *nonInitialHeader) readHead(r io.Reader) (err error) {
	if err = h.Caller.Read(r); err != nil {
		return err
	}
	if err = common.ReadUint64(r, &h.Nonce); err != nil {
		return err
	}
	if err = common.ReadUint64(r, &h.GasLimit); err != nil {
		return err
	}
	if err = common.ReadUint64(r, &h.GasPrice); err != nil {
		return err
	}
	h.ChainID, err = common.ReadString(r)
	return err
}

func writeSignature(w io.Writer, sig []byte) error {
	if err := common.WriteBool(w, len(sig) > 0); err != nil {
		return err
	}
	if len(sig) == 0 {
		return nil
	}
	return common.WriteCompactBytes(w, sig)
}

func readSignature(r io.Reader) ([]byte, error) {
	signed, err := common.ReadBool(r)
	if err != nil {
		return nil, err
	}
	if !signed {
		return nil, nil
	}
	return common.ReadCompactBytes(r)
}
