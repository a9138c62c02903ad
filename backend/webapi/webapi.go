// Package webapi implements the graph and content backends over the
// public Software Heritage Web API. Simple to configure and reach, at
// the price of long response times; requests are paced to stay within
// the API rate limits.
package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/softwareheritage/swhfs/backend"
	"github.com/softwareheritage/swhfs/metrics"
	"github.com/softwareheritage/swhfs/swhid"
)

// DefaultURL is the public archive API.
const DefaultURL = "https://archive.softwareheritage.org/api/1"

// The anonymous rate limit of the public API is 120 requests per hour
// for most endpoints; authenticated users get a much higher one. Pacing
// below the authenticated limit keeps bulk prefetches polite.
const requestsPerSecond = 10

// Check the interfaces are satisfied
var (
	_ backend.GraphBackend   = &Backend{}
	_ backend.ContentBackend = &Backend{}
)

// Backend talks to the Web API. It implements both backend.GraphBackend
// and backend.ContentBackend.
type Backend struct {
	base    string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// New builds a Web API backend for the given base URL ("" for the public
// archive) and optional bearer token.
func New(baseURL, token string) *Backend {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Backend{
		base:    strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 5 * time.Minute},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

// Shutdown is a no-op; the wait-time counters are reported by the mount
// driver at teardown.
func (b *Backend) Shutdown() {}

// get issues one paced GET. The caller owns the response body.
func (b *Backend) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "web api request")
	}
	req.Header.Set("Accept", "application/json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "web api request")
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, errors.Wrapf(backend.ErrNotFound, "GET %s", rawURL)
	case resp.StatusCode != http.StatusOK:
		_ = resp.Body.Close()
		return nil, errors.Errorf("GET %s: %s", rawURL, resp.Status)
	}
	return resp, nil
}

func (b *Backend) endpoint(parts ...string) string {
	return b.base + "/" + strings.Join(parts, "/") + "/"
}

// getJSON decodes one endpoint into v.
func (b *Backend) getJSON(ctx context.Context, rawURL string, v interface{}) error {
	resp, err := b.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrapf(err, "GET %s", rawURL)
	}
	return nil
}

var nextLinkRx = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="next"`)

// getJSONList decodes a paginated list endpoint, following Link rel=next
// headers and merging all pages.
func (b *Backend) getJSONList(ctx context.Context, rawURL string) ([]json.RawMessage, error) {
	var merged []json.RawMessage
	for rawURL != "" {
		resp, err := b.get(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		var page []json.RawMessage
		err = json.NewDecoder(resp.Body).Decode(&page)
		_ = resp.Body.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "GET %s", rawURL)
		}
		merged = append(merged, page...)

		rawURL = ""
		if m := nextLinkRx.FindStringSubmatch(resp.Header.Get("Link")); m != nil {
			rawURL = m[1]
		}
	}
	return merged, nil
}

// GetMetadata fetches and normalises the metadata of any artifact kind.
func (b *Backend) GetMetadata(ctx context.Context, id swhid.SWHID) (json.RawMessage, error) {
	defer metrics.Timed("web-api", "get_metadata")()
	log.Debugf("fetching metadata for %s via web api", id)

	switch id.Kind() {
	case swhid.KindContent:
		var meta backend.ContentMeta
		if err := b.getJSON(ctx, b.endpoint("content", "sha1_git:"+id.HexHash()), &meta); err != nil {
			return nil, err
		}
		return json.Marshal(meta)

	case swhid.KindDirectory:
		pages, err := b.getJSONList(ctx, b.endpoint("directory", id.HexHash()))
		if err != nil {
			return nil, err
		}
		listing := make([]backend.DirEntry, 0, len(pages))
		for _, raw := range pages {
			var item backend.DirEntry
			if err := json.Unmarshal(raw, &item); err != nil {
				return nil, errors.Wrapf(err, "directory %s", id)
			}
			listing = append(listing, item)
		}
		return json.Marshal(listing)

	case swhid.KindRevision:
		var meta backend.RevMeta
		if err := b.getJSON(ctx, b.endpoint("revision", id.HexHash()), &meta); err != nil {
			return nil, err
		}
		return json.Marshal(meta)

	case swhid.KindRelease:
		var meta backend.RelMeta
		if err := b.getJSON(ctx, b.endpoint("release", id.HexHash()), &meta); err != nil {
			return nil, err
		}
		return json.Marshal(meta)

	case swhid.KindSnapshot:
		branches, err := b.snapshotBranches(ctx, id)
		if err != nil {
			return nil, err
		}
		return json.Marshal(branches)

	default:
		return nil, errors.Errorf("get_metadata(%s) not supported", id.Kind())
	}
}

// snapshotPage is one page of the snapshot endpoint.
type snapshotPage struct {
	Branches   map[string]backend.SnpBranch `json:"branches"`
	NextBranch *string                      `json:"next_branch"`
}

// snapshotBranches merges the branch pages of a snapshot.
func (b *Backend) snapshotBranches(ctx context.Context, id swhid.SWHID) (backend.SnpBranches, error) {
	branches := make(backend.SnpBranches)
	next := ""
	for {
		u := b.endpoint("snapshot", id.HexHash())
		if next != "" {
			u += "?branches_from=" + url.QueryEscape(next)
		}
		var page snapshotPage
		if err := b.getJSON(ctx, u, &page); err != nil {
			return nil, err
		}
		for name, branch := range page.Branches {
			branches[name] = branch
		}
		if page.NextBranch == nil || *page.NextBranch == "" {
			return branches, nil
		}
		next = *page.NextBranch
	}
}

// GetBlob fetches the raw bytes of a content object.
func (b *Backend) GetBlob(ctx context.Context, id swhid.SWHID) ([]byte, error) {
	defer metrics.Timed("web-api", "get_blob")()
	log.Debugf("retrieving blob %s via web api", id)

	resp, err := b.get(ctx, b.endpoint("content", "sha1_git:"+id.HexHash(), "raw"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "blob %s", id)
	}
	return blob, nil
}

// GetHistory fetches the ancestry edges through the graph API mirror of
// the archive. The graph does not necessarily contain the most recent
// artifacts and walking the plain Web API instead would be prohibitive,
// so failures degrade to an empty history.
func (b *Backend) GetHistory(ctx context.Context, id swhid.SWHID) ([]backend.Edge, error) {
	defer metrics.Timed("web-api", "get_history")()
	log.Debugf("retrieving history of %s via graph api", id)

	u := fmt.Sprintf("%s/graph/visit/edges/%s/?edges=rev:rev", b.base, id)
	resp, err := b.get(ctx, u)
	if err != nil {
		log.Errorf("cannot fetch history for %s: %v", id, err)
		return nil, nil
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Errorf("cannot fetch history for %s: %v", id, err)
		return nil, nil
	}

	var edges []backend.Edge
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 {
			edges = append(edges, backend.Edge{Src: fields[0], Dst: fields[1]})
		}
	}
	return edges, nil
}

// GetVisits fetches the visits of a percent-encoded origin URL.
func (b *Backend) GetVisits(ctx context.Context, urlEncoded string) ([]backend.Visit, error) {
	defer metrics.Timed("web-api", "get_visits")()

	// The API takes the decoded URL; the encoded one is only a valid
	// filename.
	origin, err := url.QueryUnescape(urlEncoded)
	if err != nil {
		return nil, errors.Wrapf(backend.ErrNotFound, "undecodable origin %q", urlEncoded)
	}
	log.Debugf("retrieving visits for origin %q via web api", origin)

	// Probe existence first: a missing origin must fail the lookup
	// rather than produce an empty directory.
	resp, err := b.get(ctx, b.endpoint("origin", origin, "get"))
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()

	pages, err := b.getJSONList(ctx, b.endpoint("origin", origin, "visits"))
	if err != nil {
		return nil, err
	}
	visits := make([]backend.Visit, 0, len(pages))
	for _, raw := range pages {
		var v backend.Visit
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.Wrapf(err, "visits of %q", origin)
		}
		visits = append(visits, v)
	}
	return visits, nil
}
