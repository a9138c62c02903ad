// Package compressed implements the graph backend over a compressed
// graph instance reached by gRPC. This is the fast path, meant for
// deployments colocated with the graph service.
package compressed

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/url"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/softwareheritage/swhfs/backend"
	"github.com/softwareheritage/swhfs/backend/compressed/swhgraph"
	"github.com/softwareheritage/swhfs/metrics"
	"github.com/softwareheritage/swhfs/swhid"
)

// dialTimeout bounds the pre-mount health check of the gRPC channel.
const dialTimeout = 30 * time.Second

var kindTargetTypes = map[swhid.Kind]string{
	swhid.KindContent:   "content",
	swhid.KindDirectory: "directory",
	swhid.KindRevision:  "revision",
	swhid.KindRelease:   "release",
	swhid.KindSnapshot:  "snapshot",
}

// Check the interfaces are satisfied
var _ backend.GraphBackend = &Backend{}

// Backend is a graph backend querying a compressed graph via gRPC.
type Backend struct {
	conn *grpc.ClientConn
	stub swhgraph.TraversalServiceClient
}

// New dials the graph service, blocking until the channel is healthy or
// the 30 second check expires, and aborting the mount in the latter case.
func New(ctx context.Context, grpcURL string) (*Backend, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, grpcURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
		// Listing some directories exceeds the default message cap.
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(math.MaxInt32)),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "graph gRPC channel %q", grpcURL)
	}
	return newFromConn(conn), nil
}

// newFromConn wraps an established channel; used by New and by tests
// dialing in-process servers.
func newFromConn(conn *grpc.ClientConn) *Backend {
	return &Backend{conn: conn, stub: swhgraph.NewTraversalServiceClient(conn)}
}

// Shutdown closes the gRPC channel.
func (b *Backend) Shutdown() {
	if err := b.conn.Close(); err != nil {
		log.Errorf("cannot close graph channel: %v", err)
	}
}

// mapErr converts gRPC status codes into backend errors.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.NotFound, codes.InvalidArgument:
			return errors.Wrapf(backend.ErrNotFound, "%s: %s", what, s.Message())
		}
	}
	return errors.Wrap(err, what)
}

// isoDate renders a graph timestamp with its recorded UTC offset, the
// way the Web API serialises dates.
func isoDate(ts int64, offsetMinutes int32) string {
	zone := time.FixedZone("", int(offsetMinutes)*60)
	return time.Unix(ts, 0).In(zone).Format(time.RFC3339)
}

// GetMetadata fetches a node and normalises its payload per kind.
func (b *Backend) GetMetadata(ctx context.Context, id swhid.SWHID) (json.RawMessage, error) {
	defer metrics.Timed("graph", "get_metadata")()

	node, err := b.stub.GetNode(ctx, &swhgraph.GetNodeRequest{Swhid: id.String()})
	if err != nil {
		return nil, mapErr(err, "GetNode "+id.String())
	}

	switch id.Kind() {
	case swhid.KindSnapshot:
		return b.snapshotMetadata(node)
	case swhid.KindRevision:
		return b.revisionMetadata(id, node)
	case swhid.KindRelease:
		return b.releaseMetadata(id, node)
	case swhid.KindDirectory:
		return b.directoryMetadata(ctx, id, node)
	case swhid.KindContent:
		return contentMetadata(node)
	default:
		return nil, errors.Errorf("get_metadata(%s) not supported", id.Kind())
	}
}

func contentMetadata(node *swhgraph.Node) (json.RawMessage, error) {
	status := "visible"
	if node.GetCnt().GetIsSkipped() {
		status = "skipped"
	}
	return json.Marshal(backend.ContentMeta{
		Length: node.GetCnt().GetLength(),
		Status: status,
	})
}

func (b *Backend) snapshotMetadata(node *swhgraph.Node) (json.RawMessage, error) {
	branches := make(backend.SnpBranches)
	for _, succ := range node.GetSuccessor() {
		target, err := swhid.Parse(succ.GetSwhid())
		if err != nil {
			return nil, err
		}
		for _, label := range succ.GetLabel() {
			branches[backend.DecodeOrBase64(label.GetName())] = backend.SnpBranch{
				Target:     target.HexHash(),
				TargetType: kindTargetTypes[target.Kind()],
			}
		}
	}
	return json.Marshal(branches)
}

func (b *Backend) revisionMetadata(id swhid.SWHID, node *swhgraph.Node) (json.RawMessage, error) {
	meta := backend.RevMeta{ID: id.HexHash()}
	for _, succ := range node.GetSuccessor() {
		target, err := swhid.Parse(succ.GetSwhid())
		if err != nil {
			return nil, err
		}
		switch target.Kind() {
		case swhid.KindDirectory:
			meta.Directory = target.HexHash()
		case swhid.KindRevision:
			meta.Parents = append(meta.Parents, backend.RevParent{ID: target.HexHash()})
		default:
			return nil, errors.Errorf("unsupported successor type for %s: %s", id, target.Kind())
		}
	}
	if rev := node.GetRev(); rev != nil {
		meta.Author = json.RawMessage(fmt.Sprint(rev.GetAuthor()))
		meta.Committer = json.RawMessage(fmt.Sprint(rev.GetCommitter()))
		meta.Message = backend.DecodeOrBase64(rev.GetMessage())
		date := isoDate(rev.GetAuthorDate(), rev.GetAuthorDateOffset())
		meta.Date = &date
		committerDate := isoDate(rev.GetCommitterDate(), rev.GetCommitterDateOffset())
		meta.CommitterDate = &committerDate
	}
	return json.Marshal(meta)
}

func (b *Backend) releaseMetadata(id swhid.SWHID, node *swhgraph.Node) (json.RawMessage, error) {
	succ := node.GetSuccessor()
	if len(succ) == 0 {
		return nil, errors.Errorf("cannot find target for release %s", id)
	}
	target, err := swhid.Parse(succ[0].GetSwhid())
	if err != nil {
		return nil, err
	}

	meta := backend.RelMeta{
		ID:         id.HexHash(),
		Target:     target.HexHash(),
		TargetType: kindTargetTypes[target.Kind()],
	}
	if rel := node.GetRel(); rel != nil {
		meta.Author = json.RawMessage(fmt.Sprint(rel.GetAuthor()))
		meta.Name = backend.DecodeOrBase64(rel.GetName())
		meta.Message = backend.DecodeOrBase64(rel.GetMessage())
		date := isoDate(rel.GetAuthorDate(), rel.GetAuthorDateOffset())
		meta.Date = &date
	}
	return json.Marshal(meta)
}

// directoryMetadata needs two calls: GetNode for the labelled successors
// and a depth-1 dir:cnt traversal for the content lengths, which the
// plain node response does not carry.
func (b *Backend) directoryMetadata(ctx context.Context, id swhid.SWHID, node *swhgraph.Node) (json.RawMessage, error) {
	stream, err := b.stub.Traverse(ctx, &swhgraph.TraversalRequest{
		Src:      []string{id.String()},
		MaxDepth: 1,
		Edges:    "dir:cnt",
		Mask:     &swhgraph.FieldMask{Paths: []string{"swhid", "cnt"}},
	})
	if err != nil {
		return nil, mapErr(err, "Traverse "+id.String())
	}
	lengths := make(map[string]*swhgraph.ContentData)
	for {
		item, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, mapErr(err, "Traverse "+id.String())
		}
		if item.GetCnt() != nil {
			lengths[item.GetSwhid()] = item.GetCnt()
		}
	}

	var listing []backend.DirEntry
	for _, succ := range node.GetSuccessor() {
		target, err := swhid.Parse(succ.GetSwhid())
		if err != nil {
			return nil, err
		}
		labels := succ.GetLabel()
		if len(labels) == 0 {
			continue
		}

		entryType := ""
		switch target.Kind() {
		case swhid.KindContent:
			entryType = "file"
		case swhid.KindDirectory:
			entryType = "dir"
		case swhid.KindRevision:
			entryType = "rev"
		default:
			return nil, errors.Errorf("unsupported successor type for %s: %s", id, target.Kind())
		}

		item := backend.DirEntry{
			DirID:  id.HexHash(),
			Name:   backend.DecodeOrBase64(labels[0].GetName()),
			Type:   entryType,
			Target: target.HexHash(),
			Perms:  uint32(labels[0].GetPermission()),
		}
		if target.Kind() == swhid.KindContent {
			if cnt, ok := lengths[succ.GetSwhid()]; ok {
				length := cnt.GetLength()
				item.Length = &length
				item.Status = "visible"
				if cnt.GetIsSkipped() {
					item.Status = "skipped"
				}
			} else {
				log.Warnf("%s listed as successor of %s but absent from the dir:cnt traversal", target, id)
			}
		}
		listing = append(listing, item)
	}
	return json.Marshal(listing)
}

// GetHistory streams the revisions reachable from id over rev:rev edges.
func (b *Backend) GetHistory(ctx context.Context, id swhid.SWHID) ([]backend.Edge, error) {
	defer metrics.Timed("graph", "get_history")()

	stream, err := b.stub.Traverse(ctx, &swhgraph.TraversalRequest{
		Src:   []string{id.String()},
		Edges: "rev:rev",
		Mask:  &swhgraph.FieldMask{Paths: []string{"swhid"}},
	})
	if err != nil {
		return nil, mapErr(err, "Traverse "+id.String())
	}

	root := id.String()
	var edges []backend.Edge
	for {
		item, err := stream.Recv()
		if err == io.EOF {
			return edges, nil
		}
		if err != nil {
			return nil, mapErr(err, "Traverse "+id.String())
		}
		edges = append(edges, backend.Edge{Src: root, Dst: item.GetSwhid()})
	}
}

// GetVisits reads the snapshot successors of the origin node; the origin
// SWHID is the sha1 of the decoded URL.
func (b *Backend) GetVisits(ctx context.Context, urlEncoded string) ([]backend.Visit, error) {
	defer metrics.Timed("graph", "get_visits")()

	origin, err := url.QueryUnescape(urlEncoded)
	if err != nil {
		return nil, errors.Wrapf(backend.ErrNotFound, "undecodable origin %q", urlEncoded)
	}
	sum := sha1.Sum([]byte(origin))
	oriSWHID := "swh:1:ori:" + hex.EncodeToString(sum[:])

	node, err := b.stub.GetNode(ctx, &swhgraph.GetNodeRequest{Swhid: oriSWHID})
	if err != nil {
		return nil, mapErr(err, "GetNode "+oriSWHID)
	}

	var visits []backend.Visit
	for _, succ := range node.GetSuccessor() {
		snapshot, err := swhid.Parse(succ.GetSwhid())
		if err != nil {
			return nil, err
		}
		for _, label := range succ.GetLabel() {
			visits = append(visits, backend.Visit{
				Date:     time.Unix(label.GetVisitTimestamp(), 0).UTC().Format("2006-01-02"),
				Origin:   origin,
				Snapshot: snapshot.HexHash(),
			})
		}
	}
	return visits, nil
}
