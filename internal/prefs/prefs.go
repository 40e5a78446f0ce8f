package prefs

import (
	"errors"
	"fmt"
)

// ErrUnknownBackend is returned by Open for an unrecognised backend kind.
var ErrUnknownBackend = errors.New("unknown preferences backend")

// Backend kinds accepted by Open.
const (
	KindNative = "native"
	KindFile   = "file"
	KindSQLite = "sqlite"
)

// Backend is a single preference node: a flat map of string keys to
// string values. Keys are stored verbatim; no backend escapes them.
type Backend interface {
	GetString(key string) (val string, ok bool, err error)
	SetString(key, val string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	Keys() ([]string, error)
}

// Root is a hierarchical preference store that hands out named nodes.
// Nodes with different names never share keys.
type Root interface {
	Node(name string) Backend
	Close() error
}

// Open opens the preference root of the given kind under dataDir.
// For the sqlite kind, dataDir may be ":memory:".
func Open(kind, dataDir string) (Root, error) {
	switch kind {
	case KindNative, "":
		return openNative(dataDir)
	case KindFile:
		r, err := OpenFile(dataDir)
		if err != nil {
			return nil, err
		}
		return r, nil
	case KindSQLite:
		r, err := OpenSQLite(dataDir)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
}
