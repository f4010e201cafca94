package responses

import (
	"io"

	"github.com/chainkit/statenode/common"
	"github.com/chainkit/statenode/values"
)

// GameteCreationResponse reports the storage reference of the freshly
// created externally-owned account.
type GameteCreationResponse struct {
	Common Base
	Gamete values.StorageReference
}

func (r *GameteCreationResponse) Kind() Kind        { return KindGameteCreation }
func (r *GameteCreationResponse) Selector() byte    { return selGameteCreation }
func (r *GameteCreationResponse) Base() Base          { return r.Common }
func (r *GameteCreationResponse) String() string    { return "GameteCreationResponse:" + r.Gamete.String() }

func (r *GameteCreationResponse) Write(w io.Writer) error {
	if err := r.Common.writeBase(w); err != nil {
		return err
	}
	return r.Gamete.Write(w)
}

func (r *GameteCreationResponse) readBody(rd io.Reader) error {
	if err := r.Common.readBase(rd); err != nil {
		return err
	}
	return r.Gamete.Read(rd)
}

// InitializeManifestResponse carries only the common fields: installing
// the manifest produces no return value.
type InitializeManifestResponse struct{ Common Base }

func (r *InitializeManifestResponse) Kind() Kind     { return KindInitializeManifest }
func (r *InitializeManifestResponse) Selector() byte { return selInitializeManifest }
func (r *InitializeManifestResponse) Base() Base       { return r.Common }
func (r *InitializeManifestResponse) String() string { return "InitializeManifestResponse" }
func (r *InitializeManifestResponse) Write(w io.Writer) error { return r.Common.writeBase(w) }
func (r *InitializeManifestResponse) readBody(rd io.Reader) error { return r.Common.readBase(rd) }

// InstallJarSuccessfulResponse reports a completed code installation; the
// installed jar's classpath is the request's own TransactionReference, so
// no extra payload is needed.
type InstallJarSuccessfulResponse struct{ Common Base }

func (r *InstallJarSuccessfulResponse) Kind() Kind     { return KindInstallJarSuccessful }
func (r *InstallJarSuccessfulResponse) Selector() byte { return selInstallJarSuccessful }
func (r *InstallJarSuccessfulResponse) Base() Base       { return r.Common }
func (r *InstallJarSuccessfulResponse) String() string { return "InstallJarSuccessfulResponse" }
func (r *InstallJarSuccessfulResponse) Write(w io.Writer) error { return r.Common.writeBase(w) }
func (r *InstallJarSuccessfulResponse) readBody(rd io.Reader) error { return r.Common.readBase(rd) }

// ConstructorCallSuccessfulResponse reports the newly created object.
type ConstructorCallSuccessfulResponse struct {
	Common Base
	Created values.StorageReference
}

func (r *ConstructorCallSuccessfulResponse) Kind() Kind     { return KindConstructorCallSuccessful }
func (r *ConstructorCallSuccessfulResponse) Selector() byte { return selConstructorCallSuccessful }
func (r *ConstructorCallSuccessfulResponse) Base() Base       { return r.Common }
func (r *ConstructorCallSuccessfulResponse) String() string {
	return "ConstructorCallSuccessfulResponse:" + r.Created.String()
}

func (r *ConstructorCallSuccessfulResponse) Write(w io.Writer) error {
	if err := r.Common.writeBase(w); err != nil {
		return err
	}
	return r.Created.Write(w)
}

func (r *ConstructorCallSuccessfulResponse) readBody(rd io.Reader) error {
	if err := r.Common.readBase(rd); err != nil {
		return err
	}
	return r.Created.Read(rd)
}

// exceptionPayload is shared by every response reporting an in-user-code
// exception or a post-charge delivery failure: the exception's runtime
// class and message.
type exceptionPayload struct {
	ExceptionClass string
	Message        string
}

func (e exceptionPayload) write(w io.Writer) error {
	if err := common.WriteString(w, e.ExceptionClass); err != nil {
		return err
	}
	return common.WriteString(w, e.Message)
}

func (e *exceptionPayload) read(r io.Reader) (err error) {
	if e.ExceptionClass, err = common.ReadString(r); err != nil {
		return err
	}
	e.Message, err = common.ReadString(r)
	return err
}

// ConstructorCallExceptionResponse reports that the constructor ran but
// threw. Base.Updates holds only the caller's forced updates (nonce bump
// and refunded balance) with zero penalty; updates the constructor made
// before throwing are not recorded.
type ConstructorCallExceptionResponse struct {
	Common Base
	exceptionPayload
}

func (r *ConstructorCallExceptionResponse) Kind() Kind     { return KindConstructorCallException }
func (r *ConstructorCallExceptionResponse) Selector() byte { return selConstructorCallException }
func (r *ConstructorCallExceptionResponse) Base() Base       { return r.Common }
func (r *ConstructorCallExceptionResponse) String() string {
	return "ConstructorCallExceptionResponse:" + r.ExceptionClass
}

func (r *ConstructorCallExceptionResponse) Write(w io.Writer) error {
	if err := r.Common.writeBase(w); err != nil {
		return err
	}
	return r.exceptionPayload.write(w)
}

func (r *ConstructorCallExceptionResponse) readBody(rd io.Reader) error {
	if err := r.Common.readBase(rd); err != nil {
		return err
	}
	return r.exceptionPayload.read(rd)
}

// MethodCallSuccessfulResponse reports the return value of a non-void
// method call.
type MethodCallSuccessfulResponse struct {
	Common Base
	ReturnValue values.Value
}

func (r *MethodCallSuccessfulResponse) Kind() Kind     { return KindMethodCallSuccessful }
func (r *MethodCallSuccessfulResponse) Selector() byte { return selMethodCallSuccessful }
func (r *MethodCallSuccessfulResponse) Base() Base       { return r.Common }
func (r *MethodCallSuccessfulResponse) String() string { return "MethodCallSuccessfulResponse" }

func (r *MethodCallSuccessfulResponse) Write(w io.Writer) error {
	if err := r.Common.writeBase(w); err != nil {
		return err
	}
	return values.WriteValue(w, r.ReturnValue)
}

func (r *MethodCallSuccessfulResponse) readBody(rd io.Reader) (err error) {
	if err := r.Common.readBase(rd); err != nil {
		return err
	}
	r.ReturnValue, err = values.ReadValue(rd)
	return err
}

// VoidMethodCallSuccessfulResponse reports a completed void method call.
// Its wire selector is overloaded per spec.md §6: 12 when the response
// carries at least one event, 16 when the event list is empty.
type VoidMethodCallSuccessfulResponse struct{ Common Base }

func (r *VoidMethodCallSuccessfulResponse) Kind() Kind { return KindVoidMethodCallSuccessful }

func (r *VoidMethodCallSuccessfulResponse) Selector() byte {
	if len(r.Common.Events) == 0 {
		return selVoidMethodCallEmptyEvts
	}
	return selVoidMethodCallNonEmptyEvts
}

func (r *VoidMethodCallSuccessfulResponse) Base() Base   { return r.Common }
func (r *VoidMethodCallSuccessfulResponse) String() string {
	return "VoidMethodCallSuccessfulResponse"
}
func (r *VoidMethodCallSuccessfulResponse) Write(w io.Writer) error    { return r.Common.writeBase(w) }
func (r *VoidMethodCallSuccessfulResponse) readBody(rd io.Reader) error { return r.Common.readBase(rd) }

// MethodCallExceptionResponse reports that a method ran but threw.
type MethodCallExceptionResponse struct {
	Common Base
	exceptionPayload
}

func (r *MethodCallExceptionResponse) Kind() Kind     { return KindMethodCallException }
func (r *MethodCallExceptionResponse) Selector() byte { return selMethodCallException }
func (r *MethodCallExceptionResponse) Base() Base       { return r.Common }
func (r *MethodCallExceptionResponse) String() string {
	return "MethodCallExceptionResponse:" + r.ExceptionClass
}

func (r *MethodCallExceptionResponse) Write(w io.Writer) error {
	if err := r.Common.writeBase(w); err != nil {
		return err
	}
	return r.exceptionPayload.write(w)
}

func (r *MethodCallExceptionResponse) readBody(rd io.Reader) error {
	if err := r.Common.readBase(rd); err != nil {
		return err
	}
	return r.exceptionPayload.read(rd)
}

// FailedResponse reports that the request was rejected after gas was
// already charged (spec.md §3): a deliver-time failure distinct from an
// in-user-code exception, e.g. running out of gas or a verification
// error surfacing only once execution began. Its Base.Gas.Penalty is
// typically non-zero (spec.md §7, "unrefunded-gas penalty").
type FailedResponse struct {
	Common Base
	exceptionPayload
}

func (r *FailedResponse) Kind() Kind     { return KindFailed }
func (r *FailedResponse) Selector() byte { return selFailed }
func (r *FailedResponse) Base() Base       { return r.Common }
func (r *FailedResponse) String() string { return "FailedResponse:" + r.ExceptionClass }

func (r *FailedResponse) Write(w io.Writer) error {
	if err := r.Common.writeBase(w); err != nil {
		return err
	}
	return r.exceptionPayload.write(w)
}

func (r *FailedResponse) readBody(rd io.Reader) error {
	if err := r.Common.readBase(rd); err != nil {
		return err
	}
	return r.exceptionPayload.read(rd)
}
