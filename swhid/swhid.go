// Package swhid implements the Software Heritage identifier value type.
//
// A SWHID names any object in the archive: a content blob, a directory, a
// revision, a release, a snapshot or an origin. The textual form is
// "swh:1:<kind>:<40 hex digits>" and every external identifier is converted
// to this type at the boundary.
package swhid

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidSWHID is returned by Parse for anything that is not a well
// formed version-1 SWHID.
var ErrInvalidSWHID = errors.New("invalid SWHID")

// Kind is the object type tag of a SWHID.
type Kind string

// The object kinds defined by the SWHID specification.
const (
	KindContent   Kind = "cnt"
	KindDirectory Kind = "dir"
	KindRevision  Kind = "rev"
	KindRelease   Kind = "rel"
	KindSnapshot  Kind = "snp"
	KindOrigin    Kind = "ori"
)

// HashSize is the length in bytes of an object hash.
const HashSize = 20

// Prefix is the scheme and version every SWHID starts with.
const Prefix = "swh:1:"

var kinds = map[Kind]bool{
	KindContent:   true,
	KindDirectory: true,
	KindRevision:  true,
	KindRelease:   true,
	KindSnapshot:  true,
	KindOrigin:    true,
}

// SWHID is a parsed Software Heritage identifier. The zero value is not a
// valid identifier.
type SWHID struct {
	kind Kind
	hash [HashSize]byte
}

// New builds a SWHID from a kind and a raw 20-byte hash.
func New(kind Kind, hash [HashSize]byte) SWHID {
	return SWHID{kind: kind, hash: hash}
}

// Parse parses the textual form "swh:1:<kind>:<40 hex>".
func Parse(s string) (SWHID, error) {
	if !strings.HasPrefix(s, Prefix) {
		return SWHID{}, errors.Wrapf(ErrInvalidSWHID, "%q", s)
	}
	rest := s[len(Prefix):]
	i := strings.IndexByte(rest, ':')
	if i < 0 {
		return SWHID{}, errors.Wrapf(ErrInvalidSWHID, "%q", s)
	}
	kind, hexPart := Kind(rest[:i]), rest[i+1:]
	if !kinds[kind] {
		return SWHID{}, errors.Wrapf(ErrInvalidSWHID, "unknown kind in %q", s)
	}
	return FromHex(kind, hexPart)
}

// FromHex builds a SWHID from a kind and a 40-digit lowercase hex hash.
func FromHex(kind Kind, hexHash string) (SWHID, error) {
	if !kinds[kind] {
		return SWHID{}, errors.Wrapf(ErrInvalidSWHID, "unknown kind %q", kind)
	}
	if len(hexHash) != 2*HashSize || strings.ToLower(hexHash) != hexHash {
		return SWHID{}, errors.Wrapf(ErrInvalidSWHID, "bad hash %q", hexHash)
	}
	var id SWHID
	id.kind = kind
	n, err := hex.Decode(id.hash[:], []byte(hexHash))
	if err != nil || n != HashSize {
		return SWHID{}, errors.Wrapf(ErrInvalidSWHID, "bad hash %q", hexHash)
	}
	return id, nil
}

// MustParse is Parse that panics on error, for tests and constants.
func MustParse(s string) SWHID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Kind returns the object type tag.
func (id SWHID) Kind() Kind { return id.kind }

// Hash returns the raw 20-byte object hash.
func (id SWHID) Hash() [HashSize]byte { return id.hash }

// HexHash returns the 40-digit lowercase hex form of the hash.
func (id SWHID) HexHash() string { return hex.EncodeToString(id.hash[:]) }

// String renders the canonical textual form.
func (id SWHID) String() string {
	return fmt.Sprintf("%s%s:%s", Prefix, id.kind, id.HexHash())
}

// IsZero reports whether id is the zero value.
func (id SWHID) IsZero() bool { return id.kind == "" }

// MarshalText implements encoding.TextMarshaler.
func (id SWHID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *SWHID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Less orders identifiers by their textual form.
func (id SWHID) Less(other SWHID) bool {
	return id.String() < other.String()
}
