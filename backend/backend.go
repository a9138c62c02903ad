// Package backend defines the capability interfaces the filesystem core
// consumes and the uniform metadata representation all backends produce.
//
// Concrete backends live in the sub-packages: webapi (public HTTP API),
// compressed (gRPC to a compressed-graph instance) and objstorage
// (storage/objstorage content service). The core never sees backend
// specific types: every response is normalised to the JSON shapes below
// before it reaches the cache.
package backend

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/softwareheritage/swhfs/swhid"
)

// ErrNotFound reports an object the archive does not have.
var ErrNotFound = errors.New("object not found")

// GraphBackend serves metadata, revision histories and origin visits.
type GraphBackend interface {
	// GetMetadata returns the normalised JSON metadata for any artifact.
	// The shape depends on the kind, see the Meta types in this package.
	GetMetadata(ctx context.Context, id swhid.SWHID) (json.RawMessage, error)

	// GetHistory returns the ancestry of a revision as (descendant,
	// ancestor) edges, each edge emitted once, in reverse topological
	// traversal order over rev:rev edges.
	GetHistory(ctx context.Context, id swhid.SWHID) ([]Edge, error)

	// GetVisits returns the recorded visits of a percent-encoded origin
	// URL, oldest first.
	GetVisits(ctx context.Context, urlEncoded string) ([]Visit, error)

	// Shutdown releases resources. Wait-time statistics are reported
	// separately by the metrics package at teardown.
	Shutdown()
}

// ContentBackend serves the raw bytes of content objects.
type ContentBackend interface {
	// GetBlob fetches the bytes of a cnt object. ErrNotFound when neither
	// the storage index nor the object storage has it.
	GetBlob(ctx context.Context, id swhid.SWHID) ([]byte, error)

	// Shutdown releases resources. Wait-time statistics are reported
	// separately by the metrics package at teardown.
	Shutdown()
}

// Edge is one rev:rev ancestry edge, src being the descendant.
type Edge struct {
	Src string
	Dst string
}

// ContentMeta is the metadata of a cnt object.
type ContentMeta struct {
	Length int64  `json:"length"`
	Status string `json:"status"`
}

// DirEntry is one entry of an archived directory listing.
type DirEntry struct {
	DirID  string `json:"dir_id"`
	Name   string `json:"name"`
	Type   string `json:"type"` // "file", "dir" or "rev"
	Target string `json:"target"`
	Perms  uint32 `json:"perms"`
	// Length and Status are only set when the target is a content; the
	// listing carries them so stat() needs no extra metadata call.
	Length *int64 `json:"length,omitempty"`
	Status string `json:"status,omitempty"`
}

// RevParent names one parent of a revision.
type RevParent struct {
	ID string `json:"id"`
}

// RevMeta is the metadata of a rev object. Dates are nullable ISO 8601
// strings; author and committer are kept raw since their shape differs
// between the Web API and the compressed graph.
type RevMeta struct {
	ID            string          `json:"id"`
	Directory     string          `json:"directory"`
	Parents       []RevParent     `json:"parents"`
	Author        json.RawMessage `json:"author"`
	Committer     json.RawMessage `json:"committer"`
	Message       string          `json:"message"`
	Date          *string         `json:"date"`
	CommitterDate *string         `json:"committer_date"`
}

// RelMeta is the metadata of a rel object.
type RelMeta struct {
	ID         string          `json:"id"`
	Target     string          `json:"target"`
	TargetType string          `json:"target_type"`
	Name       string          `json:"name"`
	Message    string          `json:"message"`
	Author     json.RawMessage `json:"author"`
	Date       *string         `json:"date"`
}

// SnpBranch is the target of one snapshot branch.
type SnpBranch struct {
	Target     string `json:"target"`
	TargetType string `json:"target_type"` // content, directory, revision, release, snapshot, alias
}

// SnpBranches maps branch names to their targets.
type SnpBranches map[string]SnpBranch

// Visit is one recorded visit of an origin.
type Visit struct {
	Date     string `json:"date"`
	Origin   string `json:"origin"`
	Snapshot string `json:"snapshot"` // hex hash, may be empty
}

// ParseContentMeta decodes normalised cnt metadata.
func ParseContentMeta(raw json.RawMessage) (ContentMeta, error) {
	var m ContentMeta
	if err := json.Unmarshal(raw, &m); err != nil {
		return ContentMeta{}, errors.Wrap(err, "content metadata")
	}
	return m, nil
}

// ParseDirListing decodes normalised dir metadata.
func ParseDirListing(raw json.RawMessage) ([]DirEntry, error) {
	var l []DirEntry
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, errors.Wrap(err, "directory listing")
	}
	return l, nil
}

// ParseRevMeta decodes normalised rev metadata.
func ParseRevMeta(raw json.RawMessage) (RevMeta, error) {
	var m RevMeta
	if err := json.Unmarshal(raw, &m); err != nil {
		return RevMeta{}, errors.Wrap(err, "revision metadata")
	}
	return m, nil
}

// ParseRelMeta decodes normalised rel metadata.
func ParseRelMeta(raw json.RawMessage) (RelMeta, error) {
	var m RelMeta
	if err := json.Unmarshal(raw, &m); err != nil {
		return RelMeta{}, errors.Wrap(err, "release metadata")
	}
	return m, nil
}

// ParseSnpBranches decodes normalised snp metadata.
func ParseSnpBranches(raw json.RawMessage) (SnpBranches, error) {
	var m SnpBranches
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, "snapshot branches")
	}
	return m, nil
}

// ParseVisits decodes a normalised visit list.
func ParseVisits(raw json.RawMessage) ([]Visit, error) {
	var v []Visit
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, "visits")
	}
	return v, nil
}
