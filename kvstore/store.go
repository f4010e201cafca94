// Package kvstore implements the KeyValueStore contract of spec §4.1: a
// flat, content-addressed byte store plus a small fixed namespace of named
// roots, with durability and atomicity delegated to the back-end.
package kvstore

import "github.com/chainkit/statenode/common"

// RootName identifies one of the four well-known store roots (spec §4.3).
type RootName string

const (
	RootResponses RootName = "responses"
	RootRequests  RootName = "requests"
	RootHistories RootName = "histories"
	RootInfo      RootName = "info"
)

// AllRoots lists the fixed root namespace, in the order commits are written
// (spec §4.4: "responses, requests, histories, info").
var AllRoots = []RootName{RootResponses, RootRequests, RootHistories, RootInfo}

// Store is the KeyValueStore contract: get/put/remove on content-addressed
// keys, get/set on the named roots, and an atomic write-batch boundary.
type Store interface {
	common.KVReader

	// Put writes value under key. Content-addressed: a Put of an existing
	// key is expected to carry the same bytes it already holds.
	Put(key, value []byte) error

	// Remove deletes key. Nothing in this repository calls it: ordinary
	// trie growth only adds keys.
	Remove(key []byte) error

	// GetRoot reads one of the four named roots; updates to them are
	// staged through Batch.SetRoot inside WriteBatch.
	GetRoot(name RootName) ([]byte, bool)

	// WriteBatch opens a transactional write group. fn stages puts,
	// removes and root updates through b; if fn returns a non-nil error,
	// or WriteBatch's underlying commit fails, none of the staged writes
	// are visible (spec: "a commit either installs all four new roots
	// atomically or none").
	WriteBatch(fn func(b Batch) error) error

	// Close releases back-end resources.
	Close() error
}

// Batch is the write side of a single atomic group.
type Batch interface {
	common.KVWriter
	Remove(key []byte)
	SetRoot(name RootName, value []byte)
}
