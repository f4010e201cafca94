// Package values implements the data model of spec §3: transaction and
// storage references, field signatures, the StorageValue tagged union, and
// field updates, with the canonical selector-prefixed marshalling spec §6
// describes.
package values

import (
	"bytes"
	"io"

	"github.com/chainkit/statenode/common"
	"github.com/chainkit/statenode/nodehash"
)

// TransactionReference is the opaque fixed-width identifier of a
// transaction, produced by hashing its marshalled request.
type TransactionReference nodehash.Digest

func (r TransactionReference) Bytes() []byte  { return nodehash.Digest(r).Bytes() }
func (r TransactionReference) String() string { return nodehash.Digest(r).String() }
func (r TransactionReference) IsZero() bool   { return nodehash.Digest(r).IsZero() }

func (r TransactionReference) Write(w io.Writer) error {
	_, err := w.Write(r.Bytes())
	return err
}

func (r *TransactionReference) Read(rd io.Reader) error {
	buf := make([]byte, nodehash.Size)
	if _, err := io.ReadFull(rd, buf); err != nil {
		return err
	}
	*r = TransactionReference(nodehash.FromBytes(buf))
	return nil
}

func (r TransactionReference) Compare(o TransactionReference) int {
	return bytes.Compare(r.Bytes(), o.Bytes())
}

// StorageReference identifies a storage object: the transaction that
// created it plus a dense, deterministically assigned progressive.
type StorageReference struct {
	Creator     TransactionReference
	Progressive uint64
}

func (s StorageReference) Write(w io.Writer) error {
	if err := s.Creator.Write(w); err != nil {
		return err
	}
	return common.WriteCompactUint(w, s.Progressive)
}

func (s *StorageReference) Read(r io.Reader) error {
	if err := s.Creator.Read(r); err != nil {
		return err
	}
	p, err := common.ReadCompactUint(r)
	if err != nil {
		return err
	}
	s.Progressive = p
	return nil
}

func (s StorageReference) Bytes() []byte { return common.MustBytes(s) }

func (s StorageReference) Equal(o StorageReference) bool {
	return s.Creator == o.Creator && s.Progressive == o.Progressive
}

// Compare orders two references by creator then progressive, the first two
// components of the total update order (spec §4.4).
func (s StorageReference) Compare(o StorageReference) int {
	if c := s.Creator.Compare(o.Creator); c != 0 {
		return c
	}
	switch {
	case s.Progressive < o.Progressive:
		return -1
	case s.Progressive > o.Progressive:
		return 1
	default:
		return 0
	}
}

func (s StorageReference) String() string {
	return s.Creator.String() + "#" + uintToDecimal(s.Progressive)
}

func uintToDecimal(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
