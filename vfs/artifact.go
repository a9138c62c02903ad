package vfs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/softwareheritage/swhfs/backend"
	"github.com/softwareheritage/swhfs/swhid"
)

// Git tree permission bits as archived.
const (
	permsSymlink = 0o120000
)

// fileModeFromPerms maps archived git permissions onto a regular-file
// mode; the writable bits survive even though writes fail with ENOSYS.
func fileModeFromPerms(perms uint32) os.FileMode {
	return os.FileMode(perms & 0o777)
}

var targetTypeKinds = map[string]swhid.Kind{
	"content":   swhid.KindContent,
	"directory": swhid.KindDirectory,
	"revision":  swhid.KindRevision,
	"release":   swhid.KindRelease,
	"snapshot":  swhid.KindSnapshot,
}

// newArtifact builds the entry matching an artifact kind, named and
// moded by the caller.
func newArtifact(parent *entry, name string, id swhid.SWHID, mode os.FileMode) (Entry, error) {
	switch id.Kind() {
	case swhid.KindContent:
		return newContent(parent, name, mode, id, nil), nil
	case swhid.KindDirectory:
		return newDirectory(parent, name, id), nil
	case swhid.KindRevision:
		return newRevision(parent, name, id), nil
	case swhid.KindRelease:
		return newRelease(parent, name, id), nil
	case swhid.KindSnapshot:
		return newSnapshot(parent, name, id, ""), nil
	default:
		return nil, errors.Wrapf(errWrongKind, "mount %s", id)
	}
}

// Content is an archived blob, represented as a regular file. Permissions
// only carry meaning in the context of a directory: accessed through
// archive/ directly, the mode is an arbitrary read-only one.
type Content struct {
	fileEntry
	swhid swhid.SWHID

	mu       sync.Mutex
	prefetch *backend.ContentMeta
}

func newContent(parent *entry, name string, mode os.FileMode, id swhid.SWHID, prefetch *backend.ContentMeta) *Content {
	return &Content{
		fileEntry: fileEntry{entry: parent.child(name, mode)},
		swhid:     id,
		prefetch:  prefetch,
	}
}

func (c *Content) swhidValue() string { return c.swhid.String() }

func (c *Content) Content(ctx context.Context) ([]byte, error) {
	data, err := c.fs.GetBlob(ctx, c.swhid)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.prefetch == nil {
		c.prefetch = &backend.ContentMeta{Length: int64(len(data))}
	}
	c.mu.Unlock()
	return data, nil
}

// Size prefers the prefetched length so stat() does not download the
// blob; once known the length is stable.
func (c *Content) Size(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	pre := c.prefetch
	c.mu.Unlock()
	if pre != nil {
		return uint64(pre.Length), nil
	}
	data, err := c.Content(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(len(data)), nil
}

// Directory is an archived directory: one child per archived entry, with
// names and permissions as archived. Sub-directories are forced to a
// read-only directory mode (the archive stores a constant for them).
type Directory struct {
	dirEntry
	swhid swhid.SWHID
}

func newDirectory(parent *entry, name string, id swhid.SWHID) *Directory {
	return &Directory{
		dirEntry: dirEntry{entry: parent.child(name, modeDir)},
		swhid:    id,
	}
}

func (d *Directory) swhidValue() string { return d.swhid.String() }

func (d *Directory) ComputeEntries(ctx context.Context) ([]Entry, error) {
	listing, err := d.fs.dirListing(ctx, d.swhid)
	if err != nil {
		return nil, err
	}
	rootPath := d.relativeRootPath()

	var ents []Entry
	for _, item := range listing {
		var kind swhid.Kind
		switch item.Type {
		case "file":
			kind = swhid.KindContent
		case "dir":
			kind = swhid.KindDirectory
		case "rev":
			kind = swhid.KindRevision
		default:
			return nil, errors.Errorf("unknown directory entry type %q", item.Type)
		}
		target, err := swhid.FromHex(kind, item.Target)
		if err != nil {
			return nil, err
		}

		switch {
		case item.Perms == permsSymlink:
			// The symlink target is stored in the blob content; failure
			// to fetch it still produces a (broken) symlink.
			linkTarget, err := d.fs.GetBlob(ctx, target)
			if err != nil {
				log.Debugf("broken symlink %q in %s: %v", item.Name, d.swhid, err)
			}
			ents = append(ents, newSymlink(&d.entry, item.Name, string(linkTarget)))

		case kind == swhid.KindContent:
			pre := &backend.ContentMeta{Status: item.Status}
			if item.Length != nil {
				pre.Length = *item.Length
			} else {
				pre = nil
			}
			ents = append(ents, newContent(&d.entry, item.Name, fileModeFromPerms(item.Perms), target, pre))

		case kind == swhid.KindDirectory:
			ents = append(ents, newDirectory(&d.entry, item.Name, target))

		case kind == swhid.KindRevision:
			// A submodule: prefetch the revision so later traversal is
			// cheap, and surface it as a symlink into archive/ to
			// distinguish it from regular directories.
			if _, err := d.fs.GetMetadata(ctx, target); err != nil {
				log.Debugf("cannot prefetch submodule %s: %v", target, err)
			}
			ents = append(ents, newSymlink(&d.entry, item.Name, rootPath+"archive/"+target.String()))
		}
	}
	return ents, nil
}

// Revision is an archived commit: the source tree (root), the parent
// commits (parents/, parent), the full ancestry (history/) and the
// metadata (meta.json).
type Revision struct {
	dirEntry
	swhid swhid.SWHID
}

func newRevision(parent *entry, name string, id swhid.SWHID) *Revision {
	return &Revision{
		dirEntry: dirEntry{entry: parent.child(name, modeDir)},
		swhid:    id,
	}
}

func (r *Revision) swhidValue() string { return r.swhid.String() }

func (r *Revision) ComputeEntries(ctx context.Context) ([]Entry, error) {
	meta, err := r.fs.revMeta(ctx, r.swhid)
	if err != nil {
		return nil, err
	}
	directory, err := swhid.FromHex(swhid.KindDirectory, meta.Directory)
	if err != nil {
		return nil, err
	}
	rootPath := r.relativeRootPath()

	parents := make([]swhid.SWHID, 0, len(meta.Parents))
	for _, p := range meta.Parents {
		id, err := swhid.FromHex(swhid.KindRevision, p.ID)
		if err != nil {
			return nil, err
		}
		parents = append(parents, id)
	}

	ents := []Entry{
		newSymlink(&r.entry, "root", rootPath+"archive/"+directory.String()),
		newSymlink(&r.entry, "meta.json", rootPath+"archive/"+r.swhid.String()+jsonSuffix),
		newRevisionParents(&r.entry, parents),
	}
	if len(parents) >= 1 {
		ents = append(ents, newSymlink(&r.entry, "parent", "parents/1/"))
	}
	ents = append(ents, newRevisionHistory(&r.entry, r.swhid))
	return ents, nil
}

// RevisionParents is the parents/ directory: 1, 2, … symlinks into
// archive/, one per parent commit.
type RevisionParents struct {
	dirEntry
	parents []swhid.SWHID
}

func newRevisionParents(parent *entry, parents []swhid.SWHID) *RevisionParents {
	return &RevisionParents{
		dirEntry: dirEntry{entry: parent.child("parents", modeDir)},
		parents:  parents,
	}
}

func (p *RevisionParents) ComputeEntries(ctx context.Context) ([]Entry, error) {
	rootPath := p.relativeRootPath()
	ents := make([]Entry, 0, len(p.parents))
	for i, id := range p.parents {
		ents = append(ents, newSymlink(&p.entry, fmt.Sprint(i+1), rootPath+"archive/"+id.String()))
	}
	return ents, nil
}

// RevisionHistory is the history/ directory, dispatching the ancestor set
// to three shardings. Listing it kicks off a background prefetch of every
// ancestor's metadata, which by-date needs to materialise its shards.
type RevisionHistory struct {
	dirEntry
	swhid swhid.SWHID
}

func newRevisionHistory(parent *entry, id swhid.SWHID) *RevisionHistory {
	return &RevisionHistory{
		dirEntry: dirEntry{entry: parent.child("history", modeDir)},
		swhid:    id,
	}
}

// prefillByDate fetches metadata for every ancestor so the by-date
// sharding fills up. The by-date listing is invalidated every 100 fetches
// so partial views surface, and once at the end. Failures are logged
// only: the partial view remains usable.
func (h *RevisionHistory) prefillByDate(byDate *RevisionHistoryShardByDate) {
	ctx := context.Background()
	history, err := h.fs.GetHistory(ctx, h.swhid)
	if err != nil {
		log.Errorf("cannot prefetch history of %s: %v", h.swhid, err)
		return
	}

	fetches := 0
	for _, id := range history {
		cached, err := h.fs.cache.Metadata.Get(ctx, id)
		if err == nil && cached != nil {
			continue
		}
		if _, err := h.fs.GetMetadata(ctx, id); err != nil {
			log.Debugf("cannot prefetch ancestor %s: %v", id, err)
			continue
		}
		fetches++
		if fetches%100 == 0 {
			h.fs.cache.DirEntry.Invalidate(uint64(byDate.Inode()))
		}
	}
	h.fs.cache.DirEntry.Invalidate(uint64(byDate.Inode()))
}

func (h *RevisionHistory) ComputeEntries(ctx context.Context) ([]Entry, error) {
	byDate := newRevisionHistoryShardByDate(&h.entry, "by-date", h.swhid, "")

	// Many metadata calls may be needed; run them concurrently with the
	// listing.
	go h.prefillByDate(byDate)

	return []Entry{
		byDate,
		newRevisionHistoryShardByHash(&h.entry, "by-hash", h.swhid, ""),
		newRevisionHistoryShardByPage(&h.entry, "by-page", h.swhid, -1),
	}, nil
}

var byDateNameRx = regexp.MustCompile(`^([0-9]{2,4}|\.status|` + swhidPattern + `)$`)

// RevisionHistoryShardByDate shards ancestors as YYYY/MM/DD/<SWHID>,
// computed from the history graph joined against the already-cached
// metadata: only ancestors whose metadata is cached appear. While the
// background prefetch is incomplete a .status file at the top level
// reports progress.
type RevisionHistoryShardByDate struct {
	dirEntry
	historySWHID swhid.SWHID
	prefix       string
	status       *StatusFile
}

func newRevisionHistoryShardByDate(parent *entry, name string, id swhid.SWHID, prefix string) *RevisionHistoryShardByDate {
	d := &RevisionHistoryShardByDate{
		dirEntry: dirEntry{
			entry:  parent.child(name, modeDir),
			nameRx: byDateNameRx,
		},
		historySWHID: id,
		prefix:       prefix,
	}
	if prefix == "" {
		// Created once so it can be dropped when the whole history has
		// been fetched.
		d.status = newStatusFile(&d.entry, id)
	}
	return d
}

func (d *RevisionHistoryShardByDate) ComputeEntries(ctx context.Context) ([]Entry, error) {
	full, err := d.fs.GetHistory(ctx, d.historySWHID)
	if err != nil {
		return nil, err
	}
	// Only look at cached revisions with the right prefix: fetching the
	// whole ancestry here would take far too long.
	cached, err := d.fs.cache.History.AncestorsWithDatePrefix(ctx, d.historySWHID, d.prefix)
	if err != nil {
		return nil, err
	}

	depth := strings.Count(d.prefix, "/")
	rootPath := d.relativeRootPath()
	shards := make(map[string]bool)

	var ents []Entry
	for _, anc := range cached {
		if depth == 3 {
			ents = append(ents, newSymlink(&d.entry, anc.ID.String(), rootPath+"archive/"+anc.ID.String()))
			continue
		}
		next := strings.Split(anc.ShardedName[len(d.prefix):], "/")[0]
		if !shards[next] {
			shards[next] = true
			ents = append(ents, newRevisionHistoryShardByDate(&d.entry, next, d.historySWHID, d.prefix+next+"/"))
		}
	}

	if d.status != nil {
		fetched, err := d.fs.cache.History.CachedAncestorCount(ctx, d.historySWHID)
		if err != nil {
			return nil, err
		}
		if fetched == len(full) {
			d.fs.removeInode(d.status.Inode())
		} else {
			ents = append(ents, d.status)
		}
	}
	return ents, nil
}

// StatusFile reports by-date prefetch progress. Direct IO and no kernel
// caching: every read recomputes the counters.
type StatusFile struct {
	fileEntry
	historySWHID swhid.SWHID
}

func newStatusFile(parent *entry, id swhid.SWHID) *StatusFile {
	return &StatusFile{
		fileEntry: fileEntry{
			entry:  parent.child(".status", modeFile),
			direct: true,
		},
		historySWHID: id,
	}
}

func (s *StatusFile) Content(ctx context.Context) ([]byte, error) {
	full, err := s.fs.GetHistory(ctx, s.historySWHID)
	if err != nil {
		return nil, err
	}
	fetched, err := s.fs.cache.History.CachedAncestorCount(ctx, s.historySWHID)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("Done: %d/%d\n", fetched, len(full))), nil
}

func (s *StatusFile) Size(ctx context.Context) (uint64, error) {
	data, err := s.Content(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(len(data)), nil
}

var (
	hashShardNameRx = regexp.MustCompile(`^[a-f0-9]{2}$`)
	swhidLeafNameRx = regexp.MustCompile(`^` + swhidPattern + `$`)
	pageShardNameRx = regexp.MustCompile(`^[0-9]+$`)
)

const (
	hashShardingLength  = 2
	historyPageSize     = 10000
	historyPageNameSpec = "%03d"
)

// RevisionHistoryShardByHash shards ancestors under 2-hex prefix
// directories of symlinks into archive/.
type RevisionHistoryShardByHash struct {
	dirEntry
	historySWHID swhid.SWHID
	prefix       string
}

func newRevisionHistoryShardByHash(parent *entry, name string, id swhid.SWHID, prefix string) *RevisionHistoryShardByHash {
	rx := hashShardNameRx
	if prefix != "" {
		rx = swhidLeafNameRx
	}
	return &RevisionHistoryShardByHash{
		dirEntry: dirEntry{
			entry:  parent.child(name, modeDir),
			nameRx: rx,
		},
		historySWHID: id,
		prefix:       prefix,
	}
}

func (d *RevisionHistoryShardByHash) ComputeEntries(ctx context.Context) ([]Entry, error) {
	history, err := d.fs.GetHistory(ctx, d.historySWHID)
	if err != nil {
		return nil, err
	}

	var ents []Entry
	if d.prefix != "" {
		rootPath := d.relativeRootPath()
		for _, id := range history {
			if strings.HasPrefix(id.HexHash(), d.prefix) {
				ents = append(ents, newSymlink(&d.entry, id.String(), rootPath+"archive/"+id.String()))
			}
		}
		return ents, nil
	}

	shards := make(map[string]bool)
	for _, id := range history {
		next := id.HexHash()[:hashShardingLength]
		if !shards[next] {
			shards[next] = true
			ents = append(ents, newRevisionHistoryShardByHash(&d.entry, next, d.historySWHID, next))
		}
	}
	return ents, nil
}

// RevisionHistoryShardByPage shards ancestors into numbered pages of up
// to 10 000 entries, preserving the reverse-topological order.
type RevisionHistoryShardByPage struct {
	dirEntry
	historySWHID swhid.SWHID
	page         int // -1 at the top level
}

func newRevisionHistoryShardByPage(parent *entry, name string, id swhid.SWHID, page int) *RevisionHistoryShardByPage {
	rx := pageShardNameRx
	if page >= 0 {
		rx = swhidLeafNameRx
	}
	return &RevisionHistoryShardByPage{
		dirEntry: dirEntry{
			entry:  parent.child(name, modeDir),
			nameRx: rx,
		},
		historySWHID: id,
		page:         page,
	}
}

func (d *RevisionHistoryShardByPage) ComputeEntries(ctx context.Context) ([]Entry, error) {
	history, err := d.fs.GetHistory(ctx, d.historySWHID)
	if err != nil {
		return nil, err
	}

	var ents []Entry
	if d.page >= 0 {
		rootPath := d.relativeRootPath()
		start := d.page * historyPageSize
		end := start + historyPageSize
		if end > len(history) {
			end = len(history)
		}
		for _, id := range history[start:end] {
			ents = append(ents, newSymlink(&d.entry, id.String(), rootPath+"archive/"+id.String()))
		}
		return ents, nil
	}

	for i := 0; i < len(history); i += historyPageSize {
		page := i / historyPageSize
		ents = append(ents, newRevisionHistoryShardByPage(&d.entry,
			fmt.Sprintf(historyPageNameSpec, page), d.historySWHID, page))
	}
	return ents, nil
}

// Release is an archived tag: its target, the target's type, the root
// directory the target transitively resolves to, and the metadata.
type Release struct {
	dirEntry
	swhid swhid.SWHID
}

func newRelease(parent *entry, name string, id swhid.SWHID) *Release {
	return &Release{
		dirEntry: dirEntry{entry: parent.child(name, modeDir)},
		swhid:    id,
	}
}

func (r *Release) swhidValue() string { return r.swhid.String() }

// findRootDirectory resolves a release target to the directory it
// (transitively) points at, through release and revision hops; a content
// target has no root.
func (r *Release) findRootDirectory(ctx context.Context, id swhid.SWHID) (swhid.SWHID, error) {
	switch id.Kind() {
	case swhid.KindRelease:
		meta, err := r.fs.relMeta(ctx, id)
		if err != nil {
			return swhid.SWHID{}, err
		}
		target, err := releaseTarget(meta)
		if err != nil {
			return swhid.SWHID{}, err
		}
		return r.findRootDirectory(ctx, target)
	case swhid.KindRevision:
		meta, err := r.fs.revMeta(ctx, id)
		if err != nil {
			return swhid.SWHID{}, err
		}
		return swhid.FromHex(swhid.KindDirectory, meta.Directory)
	case swhid.KindDirectory:
		return id, nil
	default:
		return swhid.SWHID{}, nil
	}
}

func releaseTarget(meta backend.RelMeta) (swhid.SWHID, error) {
	kind, ok := targetTypeKinds[meta.TargetType]
	if !ok {
		return swhid.SWHID{}, errors.Errorf("unknown release target type %q", meta.TargetType)
	}
	return swhid.FromHex(kind, meta.Target)
}

func (r *Release) ComputeEntries(ctx context.Context) ([]Entry, error) {
	meta, err := r.fs.relMeta(ctx, r.swhid)
	if err != nil {
		return nil, err
	}
	target, err := releaseTarget(meta)
	if err != nil {
		return nil, err
	}
	rootPath := r.relativeRootPath()

	ents := []Entry{
		newSymlink(&r.entry, "meta.json", rootPath+"archive/"+r.swhid.String()+jsonSuffix),
		newSymlink(&r.entry, "target", rootPath+"archive/"+target.String()),
		newReleaseType(&r.entry, meta.TargetType),
	}

	targetDir, err := r.findRootDirectory(ctx, target)
	if err != nil {
		return nil, err
	}
	if !targetDir.IsZero() {
		ents = append(ents, newSymlink(&r.entry, "root", rootPath+"archive/"+targetDir.String()))
	}
	return ents, nil
}

// ReleaseType is the target_type virtual file.
type ReleaseType struct {
	fileEntry
	targetType string
}

func newReleaseType(parent *entry, targetType string) *ReleaseType {
	return &ReleaseType{
		fileEntry:  fileEntry{entry: parent.child("target_type", modeFile)},
		targetType: targetType,
	}
}

func (t *ReleaseType) Content(ctx context.Context) ([]byte, error) {
	return []byte(t.targetType + "\n"), nil
}

func (t *ReleaseType) Size(ctx context.Context) (uint64, error) {
	return uint64(len(t.targetType) + 1), nil
}

// Snapshot is an archived snapshot, recursively sharded along the "/" in
// its branch names: refs/tags/v1.0 becomes refs/ → tags/ → a v1.0
// symlink. Alias branches become symlinks relative to the alias' own
// place in the tree, everything else points into archive/.
type Snapshot struct {
	dirEntry
	swhid  swhid.SWHID
	prefix string
}

func newSnapshot(parent *entry, name string, id swhid.SWHID, prefix string) *Snapshot {
	return &Snapshot{
		dirEntry: dirEntry{entry: parent.child(name, modeDir)},
		swhid:    id,
		prefix:   prefix,
	}
}

func (s *Snapshot) swhidValue() string { return s.swhid.String() }

func (s *Snapshot) ComputeEntries(ctx context.Context) ([]Entry, error) {
	branches, err := s.fs.snpBranches(ctx, s.swhid)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(branches))
	for name := range branches {
		names = append(names, name)
	}
	sort.Strings(names)

	rootPath := s.relativeRootPath()
	subdirs := make(map[string]bool)
	var ents []Entry

	for _, branchName := range names {
		if !strings.HasPrefix(branchName, s.prefix) {
			continue
		}
		rest := branchName[len(s.prefix):]
		parts := strings.SplitN(rest, "/", 2)

		if len(parts) > 1 {
			subdirs[parts[0]] = true
			continue
		}

		branch := branches[branchName]
		var target string
		if branch.TargetType == "alias" {
			// Aliases resolve inside the snapshot tree, relative to the
			// alias branch's own parent directory.
			rel, err := filepath.Rel(path.Dir(branchName), branch.Target)
			if err != nil {
				return nil, errors.Wrapf(err, "alias %q", branchName)
			}
			target = rel
		} else {
			kind, ok := targetTypeKinds[branch.TargetType]
			if !ok {
				return nil, errors.Errorf("unknown branch target type %q", branch.TargetType)
			}
			id, err := swhid.FromHex(kind, branch.Target)
			if err != nil {
				return nil, err
			}
			target = rootPath + "archive/" + id.String()
		}
		ents = append(ents, newSymlink(&s.entry, parts[0], target))
	}

	for _, subdir := range sortedKeys(subdirs) {
		ents = append(ents, newSnapshot(&s.entry, subdir, s.swhid, s.prefix+subdir+"/"))
	}
	return ents, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var visitNameRx = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}$`)

// Origin is a visited origin URL: one sub-directory per visit, named by
// the visit date. Visits colliding on the same day are deduplicated,
// keeping the first.
type Origin struct {
	dirEntry
}

func newOrigin(parent *entry, urlEncoded string) *Origin {
	return &Origin{dirEntry{
		entry:  parent.child(urlEncoded, modeDir),
		nameRx: visitNameRx,
	}}
}

func (o *Origin) ComputeEntries(ctx context.Context) ([]Entry, error) {
	// The entry name is the origin URL, percent-encoded into a valid
	// UNIX filename.
	visits, err := o.fs.GetVisits(ctx, o.name)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ents []Entry
	for _, visit := range visits {
		name := visitDay(visit.Date)
		if name == "" {
			log.Debugf("unparseable visit date %q on origin %s", visit.Date, visit.Origin)
			continue
		}
		if seen[name] {
			log.Debugf("conflicting visit date on origin %s: %s", visit.Origin, name)
			continue
		}
		seen[name] = true
		ents = append(ents, newOriginVisit(&o.entry, name, visit))
	}
	return ents, nil
}

// visitDay extracts the YYYY-MM-DD day of an ISO visit date.
func visitDay(date string) string {
	if len(date) < 10 || !visitNameRx.MatchString(date[:10]) {
		return ""
	}
	return date[:10]
}

// OriginVisit is one visit directory: the visit record as meta.json and,
// when the visit holds one, a symlink to its snapshot.
type OriginVisit struct {
	dirEntry
	visit backend.Visit
}

func newOriginVisit(parent *entry, name string, visit backend.Visit) *OriginVisit {
	return &OriginVisit{
		dirEntry: dirEntry{entry: parent.child(name, modeDir)},
		visit:    visit,
	}
}

func (v *OriginVisit) ComputeEntries(ctx context.Context) ([]Entry, error) {
	var ents []Entry
	if v.visit.Snapshot != "" {
		snap, err := swhid.FromHex(swhid.KindSnapshot, v.visit.Snapshot)
		if err != nil {
			return nil, err
		}
		ents = append(ents, newSymlink(&v.entry, "snapshot", v.relativeRootPath()+"archive/"+snap.String()))
	}

	raw, err := json.Marshal(v.visit)
	if err != nil {
		return nil, errors.Wrap(err, "encode visit")
	}
	content, err := v.fs.renderJSON(raw)
	if err != nil {
		return nil, err
	}
	ents = append(ents, newMetaFile(&v.entry, "meta.json", content))
	return ents, nil
}

// MetaFile is a static inline JSON file.
type MetaFile struct {
	fileEntry
	content []byte
}

func newMetaFile(parent *entry, name string, content []byte) *MetaFile {
	return &MetaFile{
		fileEntry: fileEntry{entry: parent.child(name, modeFile)},
		content:   content,
	}
}

func (m *MetaFile) Content(ctx context.Context) ([]byte, error) {
	return m.content, nil
}

func (m *MetaFile) Size(ctx context.Context) (uint64, error) {
	return uint64(len(m.content)), nil
}

// Check the interfaces are satisfied
var (
	_ FileEntry    = &Content{}
	_ DirEntry     = &Directory{}
	_ DirEntry     = &Revision{}
	_ DirEntry     = &RevisionParents{}
	_ DirEntry     = &RevisionHistory{}
	_ DirEntry     = &RevisionHistoryShardByDate{}
	_ DirEntry     = &RevisionHistoryShardByHash{}
	_ DirEntry     = &RevisionHistoryShardByPage{}
	_ FileEntry    = &StatusFile{}
	_ DirEntry     = &Release{}
	_ FileEntry    = &ReleaseType{}
	_ DirEntry     = &Snapshot{}
	_ DirEntry     = &Origin{}
	_ DirEntry     = &OriginVisit{}
	_ FileEntry    = &MetaFile{}
	_ SymlinkEntry = &Symlink{}
)
