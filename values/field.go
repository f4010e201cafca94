package values

import (
	"io"

	"github.com/chainkit/statenode/common"
)

// FieldSignature identifies a field by its defining class, name and
// declared type. Two signatures compare equal on all three components.
type FieldSignature struct {
	DefiningClass string
	Name          string
	Type          string
}

func (f FieldSignature) Equal(o FieldSignature) bool {
	return f.DefiningClass == o.DefiningClass && f.Name == o.Name && f.Type == o.Type
}

// Compare gives FieldSignature a total order for the canonical update
// ordering of spec §4.4: class, then name, then declared type.
func (f FieldSignature) Compare(o FieldSignature) int {
	if c := compareStrings(f.DefiningClass, o.DefiningClass); c != 0 {
		return c
	}
	if c := compareStrings(f.Name, o.Name); c != 0 {
		return c
	}
	return compareStrings(f.Type, o.Type)
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (f FieldSignature) Write(w io.Writer) error {
	if err := common.WriteString(w, f.DefiningClass); err != nil {
		return err
	}
	if err := common.WriteString(w, f.Name); err != nil {
		return err
	}
	return common.WriteString(w, f.Type)
}

func (f *FieldSignature) Read(r io.Reader) (err error) {
	if f.DefiningClass, err = common.ReadString(r); err != nil {
		return err
	}
	if f.Name, err = common.ReadString(r); err != nil {
		return err
	}
	f.Type, err = common.ReadString(r)
	return err
}

func (f FieldSignature) String() string {
	return f.DefiningClass + "." + f.Name + ":" + f.Type
}
