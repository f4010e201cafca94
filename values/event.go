package values

import (
	"io"

	"github.com/chainkit/statenode/common"
)

// Event is a log record emitted during Deliver (spec.md §6's executor
// eventSink callback) and carried inline in the response that produced it.
// It is identified for replay by (Emitter, Index): the object that raised
// it and its position in emission order.
type Event struct {
	Emitter StorageReference
	Index   uint32
	Payload []Value
}

func (e Event) Write(w io.Writer) error {
	if err := e.Emitter.Write(w); err != nil {
		return err
	}
	if err := common.WriteUint32(w, e.Index); err != nil {
		return err
	}
	if err := common.WriteCompactUint(w, uint64(len(e.Payload))); err != nil {
		return err
	}
	for _, v := range e.Payload {
		if err := WriteValue(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (e *Event) Read(r io.Reader) error {
	if err := e.Emitter.Read(r); err != nil {
		return err
	}
	if err := common.ReadUint32(r, &e.Index); err != nil {
		return err
	}
	n, err := common.ReadCompactUint(r)
	if err != nil {
		return err
	}
	e.Payload = make([]Value, n)
	for i := range e.Payload {
		v, err := ReadValue(r)
		if err != nil {
			return err
		}
		e.Payload[i] = v
	}
	return nil
}

func (e Event) Bytes() []byte { return common.MustBytes(e) }

// WriteEvents and ReadEvents marshal an ordered event list with a
// compact-int count prefix, the convention spec.md §6 uses for arrays.
func WriteEvents(w io.Writer, events []Event) error {
	if err := common.WriteCompactUint(w, uint64(len(events))); err != nil {
		return err
	}
	for _, e := range events {
		if err := e.Write(w); err != nil {
			return err
		}
	}
	return nil
}

func ReadEvents(r io.Reader) ([]Event, error) {
	n, err := common.ReadCompactUint(r)
	if err != nil {
		return nil, err
	}
	events := make([]Event, n)
	for i := range events {
		if err := events[i].Read(r); err != nil {
			return nil, err
		}
	}
	return events, nil
}
