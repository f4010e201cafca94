// Package store composes the four logical tries (responses, requests,
// histories, info) described by spec.md §4.3 into one versioned state,
// and implements the StoreTransformation accumulator of §4.4.
package store

import (
	"bytes"
	"io"

	"github.com/chainkit/statenode/common"
	"github.com/chainkit/statenode/nodehash"
)

// StateId identifies a store snapshot by the four trie roots plus the
// number of commits that produced it (spec.md §3).
type StateId struct {
	Responses nodehash.Digest
	Requests  nodehash.Digest
	Histories nodehash.Digest
	Info      nodehash.Digest
	Commits   uint64
}

func (id StateId) Write(w io.Writer) error {
	for _, d := range [4]nodehash.Digest{id.Responses, id.Requests, id.Histories, id.Info} {
		if _, err := w.Write(d.Bytes()); err != nil {
			return err
		}
	}
	return common.WriteUint64(w, id.Commits)
}

func (id *StateId) Read(r io.Reader) error {
	for _, d := range [4]*nodehash.Digest{&id.Responses, &id.Requests, &id.Histories, &id.Info} {
		buf := make([]byte, nodehash.Size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		*d = nodehash.FromBytes(buf)
	}
	return common.ReadUint64(r, &id.Commits)
}

func (id StateId) Bytes() []byte { return common.MustBytes(id) }

func (id StateId) Equal(o StateId) bool {
	return bytes.Equal(id.Bytes(), o.Bytes())
}

func (id StateId) String() string {
	return id.Responses.String()[:8] + "/" + id.Requests.String()[:8] + "/" +
		id.Histories.String()[:8] + "/" + id.Info.String()[:8]
}
