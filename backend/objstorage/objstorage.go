// Package objstorage implements the content backend over the archive's
// storage RPC service, optionally short-circuiting blob reads to an
// object storage service. Both speak msgpack over HTTP POST.
//
// The storage service is always consulted first: it indexes contents by
// their git sha1 and returns the full hash set a blob is stored under.
// With an object storage configured the bytes come from there, otherwise
// the storage service serves them itself.
package objstorage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/softwareheritage/swhfs/backend"
	"github.com/softwareheritage/swhfs/metrics"
	"github.com/softwareheritage/swhfs/swhid"
)

// Check the interfaces are satisfied
var _ backend.ContentBackend = &Backend{}

// Backend fetches blobs through swh-storage, and swh-objstorage when
// configured.
type Backend struct {
	storageURL    string
	objstorageURL string
	client        *http.Client
}

// New builds a content backend over the given service URLs; objstorageURL
// may be empty.
func New(storageURL, objstorageURL string) *Backend {
	return &Backend{
		storageURL:    strings.TrimRight(storageURL, "/"),
		objstorageURL: strings.TrimRight(objstorageURL, "/"),
		client:        &http.Client{Timeout: 5 * time.Minute},
	}
}

// Shutdown is a no-op; wait-time counters are reported at teardown.
func (b *Backend) Shutdown() {}

// rpc posts one msgpack-encoded call and decodes the reply into out.
func (b *Backend) rpc(ctx context.Context, base, method string, args, out interface{}) error {
	body, err := msgpack.Marshal(args)
	if err != nil {
		return errors.Wrapf(err, "encode %s", method)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		base+"/"+method, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "%s", method)
	}
	req.Header.Set("Content-Type", "application/x-msgpack")
	req.Header.Set("Accept", "application/x-msgpack")

	resp, err := b.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s", method)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return errors.Wrapf(backend.ErrNotFound, "%s", method)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s: %s", method, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "%s", method)
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decode %s", method)
	}
	return nil
}

// contentRow is the storage index row for one content.
type contentRow struct {
	Sha1    []byte `msgpack:"sha1"`
	Sha1Git []byte `msgpack:"sha1_git"`
	Sha256  []byte `msgpack:"sha256"`
	Blake2S []byte `msgpack:"blake2s256"`
	Length  int64  `msgpack:"length"`
	Status  string `msgpack:"status"`
}

// objID is the hash set addressing a blob in the object storage.
type objID struct {
	Sha1    []byte `msgpack:"sha1,omitempty"`
	Sha1Git []byte `msgpack:"sha1_git,omitempty"`
	Sha256  []byte `msgpack:"sha256,omitempty"`
	Blake2S []byte `msgpack:"blake2s256,omitempty"`
}

// GetBlob resolves the content through the storage index and downloads
// its bytes. backend.ErrNotFound when neither service has the object.
func (b *Backend) GetBlob(ctx context.Context, id swhid.SWHID) ([]byte, error) {
	hash := id.Hash()

	var rows []*contentRow
	func() {
		defer metrics.Timed("storage", "content_get")()
		err := b.rpc(ctx, b.storageURL, "content/get", map[string]interface{}{
			"contents": [][]byte{hash[:]},
			"algo":     "sha1_git",
		}, &rows)
		if err != nil {
			rows = nil
			log.Errorf("failed to look up %s in storage: %v", id, err)
		}
	}()
	if len(rows) == 0 || rows[0] == nil {
		return nil, errors.Wrapf(backend.ErrNotFound, "storage cannot find %s", id)
	}
	hashes := objID{
		Sha1:    rows[0].Sha1,
		Sha1Git: rows[0].Sha1Git,
		Sha256:  rows[0].Sha256,
		Blake2S: rows[0].Blake2S,
	}

	if b.objstorageURL == "" {
		defer metrics.Timed("storage", "content_get_data")()
		log.Debugf("downloading %s from storage", id)
		var blob []byte
		err := b.rpc(ctx, b.storageURL, "content/get_data", map[string]interface{}{
			"content": hashes,
		}, &blob)
		if err != nil {
			return nil, err
		}
		if blob == nil {
			return nil, errors.Wrapf(backend.ErrNotFound, "storage cannot get %s", id)
		}
		return blob, nil
	}

	defer metrics.Timed("objstorage", "content_get")()
	log.Debugf("downloading %s from objstorage", id)
	var blob []byte
	err := b.rpc(ctx, b.objstorageURL, "content/get", map[string]interface{}{
		"obj_id": hashes,
	}, &blob)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, errors.Wrapf(backend.ErrNotFound, "objstorage cannot get %s", id)
	}
	return blob, nil
}
