package values

import (
	"bytes"
	"io"

	"github.com/chainkit/statenode/common"
)

// Update is a single fact recorded against an object: either the tag fixing
// the object's runtime class at creation, or a new value for one of its
// fields (spec §4.4). Exactly one update per object carries IsCreation.
type Update struct {
	Object     StorageReference
	IsCreation bool
	ClassName  string         // valid iff IsCreation
	Field      FieldSignature // valid iff !IsCreation
	Value      Value          // valid iff !IsCreation
}

// NewClassTag builds the creation update fixing an object's runtime class.
func NewClassTag(object StorageReference, className string) Update {
	return Update{Object: object, IsCreation: true, ClassName: className}
}

// NewFieldUpdate builds an update assigning value to one field of object.
func NewFieldUpdate(object StorageReference, field FieldSignature, value Value) Update {
	return Update{Object: object, Field: field, Value: value}
}

const (
	updateSelectorField = 0
	updateSelectorClass = 1
)

func (u Update) Write(w io.Writer) error {
	if err := u.Object.Write(w); err != nil {
		return err
	}
	if u.IsCreation {
		if err := common.WriteByte(w, updateSelectorClass); err != nil {
			return err
		}
		return common.WriteString(w, u.ClassName)
	}
	if err := common.WriteByte(w, updateSelectorField); err != nil {
		return err
	}
	if err := u.Field.Write(w); err != nil {
		return err
	}
	return WriteValue(w, u.Value)
}

func (u *Update) Read(r io.Reader) error {
	if err := u.Object.Read(r); err != nil {
		return err
	}
	sel, err := common.ReadByte(r)
	if err != nil {
		return err
	}
	switch sel {
	case updateSelectorClass:
		u.IsCreation = true
		u.ClassName, err = common.ReadString(r)
		return err
	case updateSelectorField:
		u.IsCreation = false
		if err := u.Field.Read(r); err != nil {
			return err
		}
		u.Value, err = ReadValue(r)
		return err
	default:
		return common.ErrNotAllBytesConsumed
	}
}

func (u Update) Bytes() []byte { return common.MustBytes(u) }

// Compare gives Update the canonical total order of spec §4.4: object,
// then the class tag before every field update (checked explicitly through
// IsCreation), then class name or field signature, then the encoded value.
func (u Update) Compare(o Update) int {
	if c := u.Object.Compare(o.Object); c != 0 {
		return c
	}
	if u.IsCreation != o.IsCreation {
		if u.IsCreation {
			return -1
		}
		return 1
	}
	if u.IsCreation {
		return compareStrings(u.ClassName, o.ClassName)
	}
	if c := u.Field.Compare(o.Field); c != 0 {
		return c
	}
	return bytes.Compare(Bytes(u.Value), Bytes(o.Value))
}

// SortUpdates returns a new slice sorted by the canonical Update order,
// the order a StoreTransformation commits updates in (spec §9).
func SortUpdates(updates []Update) []Update {
	out := make([]Update, len(updates))
	copy(out, updates)
	insertionSortUpdates(out)
	return out
}

// insertionSortUpdates avoids pulling in sort.Slice's reflection-based
// comparator for what is, in practice, a small per-transaction list.
func insertionSortUpdates(u []Update) {
	for i := 1; i < len(u); i++ {
		for j := i; j > 0 && u[j-1].Compare(u[j]) > 0; j-- {
			u[j-1], u[j] = u[j], u[j-1]
		}
	}
}
