package common

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// MustBytes is the common way of serializing a Write-able value.
func MustBytes(o interface{ Write(w io.Writer) error }) []byte {
	var buf bytes.Buffer
	if err := o.Write(&buf); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Assert panics with a formatted message if cond is false. Used for
// conditions that indicate a corrupted trie or store, never for
// user-reachable failures.
func Assert(cond bool, format string, p ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, p...))
	}
}

// ---------------------------------------------------------------------------
// canonical marshalling helpers (fixed-width big-endian primitives, as
// required by the marshalling conventions of the wire/storage format).

func ReadByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func WriteByte(w io.Writer, val byte) error {
	_, err := w.Write([]byte{val})
	return err
}

func ReadBool(r io.Reader) (bool, error) {
	b, err := ReadByte(r)
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func WriteBool(w io.Writer, val bool) error {
	if val {
		return WriteByte(w, 1)
	}
	return WriteByte(w, 0)
}

func ReadUint16(r io.Reader, pval *uint16) error {
	var tmp [2]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return err
	}
	*pval = binary.BigEndian.Uint16(tmp[:])
	return nil
}

func WriteUint16(w io.Writer, val uint16) error {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], val)
	_, err := w.Write(tmp[:])
	return err
}

func ReadUint32(r io.Reader, pval *uint32) error {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return err
	}
	*pval = binary.BigEndian.Uint32(tmp[:])
	return nil
}

func WriteUint32(w io.Writer, val uint32) error {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], val)
	_, err := w.Write(tmp[:])
	return err
}

func ReadUint64(r io.Reader, pval *uint64) error {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return err
	}
	*pval = binary.BigEndian.Uint64(tmp[:])
	return nil
}

func WriteUint64(w io.Writer, val uint64) error {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], val)
	_, err := w.Write(tmp[:])
	return err
}

// WriteCompactUint writes a LEB128-style variable-length unsigned integer,
// used throughout the wire format for lengths and selectors wider than one
// byte does not already cover.
func WriteCompactUint(w io.Writer, val uint64) error {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], val)
	_, err := w.Write(tmp[:n])
	return err
}

// ReadCompactUint reads a value written by WriteCompactUint.
func ReadCompactUint(r io.Reader) (uint64, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReaderAdapter{r: r}
	}
	return binary.ReadUvarint(br)
}

type byteReaderAdapter struct {
	r io.Reader
}

func (a *byteReaderAdapter) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(a.r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func ReadBytes16(r io.Reader) ([]byte, error) {
	var length uint16
	if err := ReadUint16(r, &length); err != nil {
		return nil, err
	}
	if length == 0 {
		return []byte{}, nil
	}
	ret := make([]byte, length)
	if _, err := io.ReadFull(r, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func WriteBytes16(w io.Writer, data []byte) error {
	if len(data) > math.MaxUint16 {
		panic(fmt.Sprintf("WriteBytes16: too long data (%v)", len(data)))
	}
	if err := WriteUint16(w, uint16(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	_, err := w.Write(data)
	return err
}

func ReadBytes32(r io.Reader) ([]byte, error) {
	var length uint32
	if err := ReadUint32(r, &length); err != nil {
		return nil, err
	}
	if length == 0 {
		return []byte{}, nil
	}
	ret := make([]byte, length)
	if _, err := io.ReadFull(r, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func WriteBytes32(w io.Writer, data []byte) error {
	if uint64(len(data)) > math.MaxUint32 {
		panic(fmt.Sprintf("WriteBytes32: too long data (%v)", len(data)))
	}
	if err := WriteUint32(w, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// ReadCompactBytes reads a compact-int length prefix followed by that many
// bytes; the convention used for request/response payloads (spec §6).
func ReadCompactBytes(r io.Reader) ([]byte, error) {
	length, err := ReadCompactUint(r)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return []byte{}, nil
	}
	ret := make([]byte, length)
	if _, err := io.ReadFull(r, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func WriteCompactBytes(w io.Writer, data []byte) error {
	if err := WriteCompactUint(w, uint64(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// ReadString reads a compact-int length prefix followed by UTF-8 bytes.
func ReadString(r io.Reader) (string, error) {
	b, err := ReadCompactBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func WriteString(w io.Writer, s string) error {
	return WriteCompactBytes(w, []byte(s))
}

var ErrNotAllBytesConsumed = errors.New("serialization error: not all bytes were consumed")
