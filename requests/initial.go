package requests

import (
	"io"

	"github.com/chainkit/statenode/common"
	"github.com/chainkit/statenode/values"
)

// GameteCreationRequest bootstraps the first externally-owned account: it
// carries no caller, nonce or gas budget since no account yet exists to
// charge (spec.md §3, "except initial kinds").
type GameteCreationRequest struct {
	Classpath_      values.TransactionReference
	InitialBalances []values.Value
	PublicKey       []byte
}

func (r *GameteCreationRequest) Kind() Kind                            { return KindGameteCreation }
func (r *GameteCreationRequest) Selector() byte                        { return selGameteCreation }
func (r *GameteCreationRequest) IsInitial() bool                       { return true }
func (r *GameteCreationRequest) Classpath() values.TransactionReference { return r.Classpath_ }
func (r *GameteCreationRequest) String() string                        { return "GameteCreationRequest" }

func (r *GameteCreationRequest) Write(w io.Writer) error {
	if err := r.Classpath_.Write(w); err != nil {
		return err
	}
	if err := writeValues(w, r.InitialBalances); err != nil {
		return err
	}
	return common.WriteCompactBytes(w, r.PublicKey)
}

func (r *GameteCreationRequest) readBody(rd io.Reader) (err error) {
	if err = r.Classpath_.Read(rd); err != nil {
		return err
	}
	if r.InitialBalances, err = readValues(rd); err != nil {
		return err
	}
	r.PublicKey, err = common.ReadCompactBytes(rd)
	return err
}

// InitializeManifestRequest installs the store's singleton manifest. The
// store must not already contain one (spec.md §4.5's Check stage).
type InitializeManifestRequest struct {
	Classpath_ values.TransactionReference
	Manifest   values.StorageReference
}

func (r *InitializeManifestRequest) Kind() Kind                            { return KindInitializeManifest }
func (r *InitializeManifestRequest) Selector() byte                        { return selInitializeManifest }
func (r *InitializeManifestRequest) IsInitial() bool                       { return true }
func (r *InitializeManifestRequest) Classpath() values.TransactionReference { return r.Classpath_ }
func (r *InitializeManifestRequest) String() string                        { return "InitializeManifestRequest" }

func (r *InitializeManifestRequest) Write(w io.Writer) error {
	if err := r.Classpath_.Write(w); err != nil {
		return err
	}
	return r.Manifest.Write(w)
}

func (r *InitializeManifestRequest) readBody(rd io.Reader) error {
	if err := r.Classpath_.Read(rd); err != nil {
		return err
	}
	return r.Manifest.Read(rd)
}
