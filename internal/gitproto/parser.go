package gitproto

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/bravo68web/githttpgw/internal/headers"
	"github.com/bravo68web/githttpgw/internal/pktline"
)

// pathSegmentRE matches a "." or ".." path segment, used to reject
// repository paths that could escape the configured repository root.
var pathSegmentRE = regexp.MustCompile(`\.{1,2}[/\\]`)

// ErrInvalidPath is returned by ValidatePath when the path contains a
// "." or ".." segment.
var ErrInvalidPath = fmt.Errorf("gitproto: path contains a disallowed . or .. segment")

// ValidatePath reports whether path is safe to join onto a repository root.
func ValidatePath(path string) error {
	if pathSegmentRE.MatchString(path) {
		return ErrInvalidPath
	}
	return nil
}

var gitServiceSuffixRE = regexp.MustCompile(`^(.*)/git-([A-Za-z0-9-]+)$`)

// dispatch is the outcome of URL matching, before any body parsing.
type dispatch struct {
	matched         bool
	isAdvertisement bool
	service         Service
	path            string
}

func dispatchURL(method, rawURL, contentType string) dispatch {
	u, err := url.Parse(rawURL)
	if err != nil {
		return dispatch{}
	}
	p := u.Path
	p = strings.TrimPrefix(p, "/")

	if strings.HasSuffix(p, "/info/refs") || p == "info/refs" {
		var repoPath string
		if p == "info/refs" {
			repoPath = ""
		} else {
			repoPath = strings.TrimSuffix(p, "/info/refs")
		}
		if method != "GET" {
			return dispatch{matched: true, isAdvertisement: true, service: ServiceUnknown, path: repoPath}
		}
		svc := ParseService(u.Query().Get("service"))
		return dispatch{matched: true, isAdvertisement: true, service: svc, path: repoPath}
	}

	if m := gitServiceSuffixRE.FindStringSubmatch(p); m != nil {
		repoPath, command := m[1], m[2]
		if method != "POST" {
			return dispatch{matched: true, isAdvertisement: false, service: ServiceUnknown, path: repoPath}
		}
		svc := ParseService("git-" + command)
		if svc == ServiceUnknown {
			return dispatch{matched: true, isAdvertisement: false, service: ServiceUnknown, path: repoPath}
		}
		wantCT := fmt.Sprintf("application/x-%s-request", svc.String())
		if contentType != wantCT {
			return dispatch{matched: true, isAdvertisement: false, service: ServiceUnknown, path: repoPath}
		}
		return dispatch{matched: true, isAdvertisement: false, service: svc, path: repoPath}
	}

	return dispatch{}
}

// Matched reports whether ParseRequest recognized the URL at all: when
// false, the caller (the controller's host binding) must respond 404
// without constructing a Request.
func Matched(method, rawURL, contentType string) bool {
	return dispatchURL(method, rawURL, contentType).matched
}

// receivePackLineRE and uploadPackLineRE anchor over a frame's full bytes,
// length prefix included, exactly as the spec's regexes do.
var (
	// The ref and its capability list are separated by a NUL on the first
	// receive-pack command line; later lines carry no capabilities at all.
	receivePackLineRE = regexp.MustCompile(`^[0-9a-f]{4}([0-9a-f]{40}) ([0-9a-f]{40}) (refs/[^\n\x00 ]*)(?:\x00((?:[A-Za-z0-9_\-]+(?:=[\w.\-_/]+)?)(?: [A-Za-z0-9_\-]+(?:=[\w.\-_/]+)?)*)?)?\n$`)
	// want/have capabilities, when present, ride on the first line's command
	// separated by plain spaces -- no NUL involved.
	uploadPackLineRE = regexp.MustCompile(`^[0-9a-f]{4}(want|have) ([0-9a-f]{40})(?: ((?:[A-Za-z0-9_\-]+(?:=[\w.\-_/]+)?)(?: [A-Za-z0-9_\-]+(?:=[\w.\-_/]+)?)*))?\n$`)
)

var zeroOID = strings.Repeat("0", 40)

func parseCapabilityTail(tail string, into map[string]string) {
	for _, tok := range strings.Fields(tail) {
		if idx := strings.Index(tok, "="); idx != -1 {
			into[tok[:idx]] = tok[idx+1:]
		} else {
			into[tok] = ""
		}
	}
}

func handleFrame(req *Request, frame []byte) {
	if m := receivePackLineRE.FindSubmatch(frame); m != nil {
		oldOID, newOID, ref, tail := string(m[1]), string(m[2]), string(m[3]), string(m[4])
		kind := CommandUpdate
		switch {
		case oldOID == zeroOID:
			kind = CommandCreate
		case newOID == zeroOID:
			kind = CommandDelete
		}
		req.Commands = append(req.Commands, Command{Kind: kind, OldOID: oldOID, NewOID: newOID, Ref: ref})
		parseCapabilityTail(tail, req.Capabilities)
		return
	}
	if m := uploadPackLineRE.FindSubmatch(frame); m != nil {
		kind := CommandKind(m[1])
		oid, tail := string(m[2]), string(m[3])
		req.Commands = append(req.Commands, Command{Kind: kind, OID: oid})
		parseCapabilityTail(tail, req.Capabilities)
		return
	}
	// Frames matching neither regex (flush packets, pack data, side channel
	// metadata) are ignored, per the spec.
}

// bodyTap wraps the request body so that reading it drains the underlying
// stream while feeding each recognized pkt-line frame to handleFrame --
// exactly the "wrap body through a packetReader while still streaming bytes
// downstream" behavior of C3.
type bodyTap struct {
	src io.Reader
	pr  *pktline.PacketReader
}

func (b *bodyTap) Read(p []byte) (int, error) {
	n, err := b.src.Read(p)
	if n > 0 {
		if _, werr := b.pr.Write(p[:n]); werr != nil {
			return n, werr
		}
	}
	if err == io.EOF {
		if cerr := b.pr.Close(); cerr != nil {
			return n, cerr
		}
	}
	return n, err
}

// discardSink implements io.Writer by discarding everything -- the pkt-line
// transform forwards bytes to it purely to drive carry-over bookkeeping;
// bodyTap.Read is the real pass-through path to the caller.
type discardSink struct{}

func (discardSink) Write(p []byte) (int, error) { return len(p), nil }

// ParseRequest classifies (method, rawURL, contentType) per the dispatch
// table in spec §4.3 and, for a request whose service is known and which is
// not an advertisement, returns a Request whose Commands/Capabilities
// populate themselves as the returned body is read to completion.
//
// ok is false when the URL matched none of the dispatch patterns; the
// caller must then answer with 404 without consulting a driver.
func ParseRequest(method, rawURL, contentType string, hdrs *headers.Headers, body io.Reader) (req *Request, wrappedBody io.Reader, ok bool) {
	d := dispatchURL(method, rawURL, contentType)
	if !d.matched {
		return nil, nil, false
	}

	req = NewRequest()
	req.Headers = hdrs
	req.IsAdvertisement = d.isAdvertisement
	req.Service = d.service
	req.Path = d.path

	if d.isAdvertisement || d.service == ServiceUnknown || body == nil {
		return req, body, true
	}

	pr := pktline.NewPacketReader(discardSink{}, func(frame []byte) {
		handleFrame(req, frame)
	})
	return req, &bodyTap{src: body, pr: pr}, true
}
