package requests

import (
	"io"

	"github.com/chainkit/statenode/common"
	"github.com/chainkit/statenode/values"
)

// InstallJarRequest deploys a code archive and its already-installed
// dependencies at a fresh TransactionReference.
type InstallJarRequest struct {
	nonInitialHeader
	Classpath_   values.TransactionReference
	Jar          []byte
	Dependencies []values.TransactionReference
}

func (r *InstallJarRequest) Kind() Kind                            { return KindInstallJar }
func (r *InstallJarRequest) Selector() byte                        { return selInstallJar }
func (r *InstallJarRequest) IsInitial() bool                       { return false }
func (r *InstallJarRequest) Classpath() values.TransactionReference { return r.Classpath_ }
func (r *InstallJarRequest) String() string                        { return "InstallJarRequest" }

func (r *InstallJarRequest) Write(w io.Writer) error {
	if err := r.writeHead(w); err != nil {
		return err
	}
	if err := r.Classpath_.Write(w); err != nil {
		return err
	}
	if err := common.WriteCompactBytes(w, r.Jar); err != nil {
		return err
	}
	if err := common.WriteCompactUint(w, uint64(len(r.Dependencies))); err != nil {
		return err
	}
	for _, d := range r.Dependencies {
		if err := d.Write(w); err != nil {
			return err
		}
	}
	return writeSignature(w, r.Signature)
}

func (r *InstallJarRequest) readBody(rd io.Reader) (err error) {
	if err = r.readHead(rd); err != nil {
		return err
	}
	if err = r.Classpath_.Read(rd); err != nil {
		return err
	}
	if r.Jar, err = common.ReadCompactBytes(rd); err != nil {
		return err
	}
	n, err := common.ReadCompactUint(rd)
	if err != nil {
		return err
	}
	r.Dependencies = make([]values.TransactionReference, n)
	for i := range r.Dependencies {
		if err := r.Dependencies[i].Read(rd); err != nil {
			return err
		}
	}
	r.Signature, err = readSignature(rd)
	return err
}

// ConstructorCallRequest invokes a constructor, creating a new object.
type ConstructorCallRequest struct {
	nonInitialHeader
	Classpath_  values.TransactionReference
	Constructor ConstructorSignature
	Actuals     []values.Value
}

func (r *ConstructorCallRequest) Kind() Kind                            { return KindConstructorCall }
func (r *ConstructorCallRequest) Selector() byte                        { return selConstructorCall }
func (r *ConstructorCallRequest) IsInitial() bool                       { return false }
func (r *ConstructorCallRequest) Classpath() values.TransactionReference { return r.Classpath_ }
func (r *ConstructorCallRequest) String() string                        { return "ConstructorCallRequest:" + r.Constructor.DefiningClass }

func (r *ConstructorCallRequest) Write(w io.Writer) error {
	if err := r.writeHead(w); err != nil {
		return err
	}
	if err := r.Classpath_.Write(w); err != nil {
		return err
	}
	if err := r.Constructor.Write(w); err != nil {
		return err
	}
	if err := writeValues(w, r.Actuals); err != nil {
		return err
	}
	return writeSignature(w, r.Signature)
}

func (r *ConstructorCallRequest) readBody(rd io.Reader) (err error) {
	if err = r.readHead(rd); err != nil {
		return err
	}
	if err = r.Classpath_.Read(rd); err != nil {
		return err
	}
	if err = r.Constructor.Read(rd); err != nil {
		return err
	}
	if r.Actuals, err = readValues(rd); err != nil {
		return err
	}
	r.Signature, err = readSignature(rd)
	return err
}

// InstanceMethodCallRequest invokes an instance method on a receiver.
type InstanceMethodCallRequest struct {
	nonInitialHeader
	Classpath_ values.TransactionReference
	Method     MethodSignature
	Receiver   values.StorageReference
	Actuals    []values.Value
	View       bool
}

func (r *InstanceMethodCallRequest) Kind() Kind                            { return KindInstanceMethodCall }
func (r *InstanceMethodCallRequest) Selector() byte                        { return selInstanceMethodCall }
func (r *InstanceMethodCallRequest) IsInitial() bool                       { return false }
func (r *InstanceMethodCallRequest) Classpath() values.TransactionReference { return r.Classpath_ }
func (r *InstanceMethodCallRequest) String() string                        { return "InstanceMethodCallRequest:" + r.Method.Name }

func (r *InstanceMethodCallRequest) Write(w io.Writer) error {
	if err := r.writeHead(w); err != nil {
		return err
	}
	if err := r.Classpath_.Write(w); err != nil {
		return err
	}
	if err := common.WriteBool(w, r.View); err != nil {
		return err
	}
	if err := r.Method.Write(w); err != nil {
		return err
	}
	if err := r.Receiver.Write(w); err != nil {
		return err
	}
	if err := writeValues(w, r.Actuals); err != nil {
		return err
	}
	return writeSignature(w, r.Signature)
}

func (r *InstanceMethodCallRequest) readBody(rd io.Reader) (err error) {
	if err = r.readHead(rd); err != nil {
		return err
	}
	if err = r.Classpath_.Read(rd); err != nil {
		return err
	}
	if r.View, err = common.ReadBool(rd); err != nil {
		return err
	}
	if err = r.Method.Read(rd); err != nil {
		return err
	}
	if err = r.Receiver.Read(rd); err != nil {
		return err
	}
	if r.Actuals, err = readValues(rd); err != nil {
		return err
	}
	r.Signature, err = readSignature(rd)
	return err
}

// StaticMethodCallRequest invokes a static method; there is no receiver.
type StaticMethodCallRequest struct {
	nonInitialHeader
	Classpath_ values.TransactionReference
	Method     MethodSignature
	Actuals    []values.Value
	View       bool
}

func (r *StaticMethodCallRequest) Kind() Kind                            { return KindStaticMethodCall }
func (r *StaticMethodCallRequest) Selector() byte                        { return selStaticMethodCall }
func (r *StaticMethodCallRequest) IsInitial() bool                       { return false }
func (r *StaticMethodCallRequest) Classpath() values.TransactionReference { return r.Classpath_ }
func (r *StaticMethodCallRequest) String() string                        { return "StaticMethodCallRequest:" + r.Method.Name }

func (r *StaticMethodCallRequest) Write(w io.Writer) error {
	if err := r.writeHead(w); err != nil {
		return err
	}
	if err := r.Classpath_.Write(w); err != nil {
		return err
	}
	if err := common.WriteBool(w, r.View); err != nil {
		return err
	}
	if err := r.Method.Write(w); err != nil {
		return err
	}
	if err := writeValues(w, r.Actuals); err != nil {
		return err
	}
	return writeSignature(w, r.Signature)
}

func (r *StaticMethodCallRequest) readBody(rd io.Reader) (err error) {
	if err = r.readHead(rd); err != nil {
		return err
	}
	if err = r.Classpath_.Read(rd); err != nil {
		return err
	}
	if r.View, err = common.ReadBool(rd); err != nil {
		return err
	}
	if err = r.Method.Read(rd); err != nil {
		return err
	}
	if r.Actuals, err = readValues(rd); err != nil {
		return err
	}
	r.Signature, err = readSignature(rd)
	return err
}

// InstanceSystemMethodCallRequest is a privileged instance method call
// issued by the consensus layer itself (e.g. validator reward
// distribution) rather than by a signed external request.
type InstanceSystemMethodCallRequest struct {
	nonInitialHeader
	Classpath_ values.TransactionReference
	Method     MethodSignature
	Receiver   values.StorageReference
	Actuals    []values.Value
}

func (r *InstanceSystemMethodCallRequest) Kind() Kind { return KindInstanceSystemMethodCall }
func (r *InstanceSystemMethodCallRequest) Selector() byte {
	return selInstanceSystemMethodCall
}
func (r *InstanceSystemMethodCallRequest) IsInitial() bool { return false }
func (r *InstanceSystemMethodCallRequest) Classpath() values.TransactionReference {
	return r.Classpath_
}
func (r *InstanceSystemMethodCallRequest) String() string {
	return "InstanceSystemMethodCallRequest:" + r.Method.Name
}

func (r *InstanceSystemMethodCallRequest) Write(w io.Writer) error {
	if err := r.writeHead(w); err != nil {
		return err
	}
	if err := r.Classpath_.Write(w); err != nil {
		return err
	}
	if err := r.Method.Write(w); err != nil {
		return err
	}
	if err := r.Receiver.Write(w); err != nil {
		return err
	}
	return writeValues(w, r.Actuals)
}

func (r *InstanceSystemMethodCallRequest) readBody(rd io.Reader) (err error) {
	if err = r.readHead(rd); err != nil {
		return err
	}
	if err = r.Classpath_.Read(rd); err != nil {
		return err
	}
	if err = r.Method.Read(rd); err != nil {
		return err
	}
	if err = r.Receiver.Read(rd); err != nil {
		return err
	}
	r.Actuals, err = readValues(rd)
	return err
}
