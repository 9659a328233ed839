package gitproto

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatchTable(t *testing.T) {
	cases := []struct {
		name        string
		method      string
		url         string
		contentType string
		wantMatch   bool
		wantAdv     bool
		wantService Service
		wantPath    string
	}{
		{"advertise upload-pack", "GET", "/foo/info/refs?service=git-upload-pack", "", true, true, ServiceUploadPack, "foo"},
		{"advertise receive-pack", "GET", "/foo/bar/info/refs?service=git-receive-pack", "", true, true, ServiceReceivePack, "foo/bar"},
		{"advertise unknown service", "GET", "/foo/info/refs?service=bogus", "", true, true, ServiceUnknown, "foo"},
		{"advertise missing service", "GET", "/foo/info/refs", "", true, true, ServiceUnknown, "foo"},
		{"advertise wrong method", "POST", "/foo/info/refs?service=git-upload-pack", "", true, true, ServiceUnknown, "foo"},
		{"rpc upload-pack", "POST", "/foo/git-upload-pack", "application/x-git-upload-pack-request", true, false, ServiceUploadPack, "foo"},
		{"rpc receive-pack", "POST", "/foo/git-receive-pack", "application/x-git-receive-pack-request", true, false, ServiceReceivePack, "foo"},
		{"rpc bad content type", "POST", "/foo/git-receive-pack", "text/plain", true, false, ServiceUnknown, "foo"},
		{"rpc wrong method", "GET", "/foo/git-upload-pack", "", true, false, ServiceUnknown, "foo"},
		{"unrelated path", "GET", "/foo/bar/baz", "", false, false, ServiceUnknown, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req, _, ok := ParseRequest(c.method, c.url, c.contentType, nil, nil)
			require.Equal(t, c.wantMatch, ok)
			if !c.wantMatch {
				return
			}
			require.Equal(t, c.wantAdv, req.IsAdvertisement)
			require.Equal(t, c.wantService, req.Service)
			require.Equal(t, c.wantPath, req.Path)
		})
	}
}

func TestParseBodyReceivePackUpdate(t *testing.T) {
	oldOID := "2222222222222222222222222222222222222222"
	newOID := "1111111111111111111111111111111111111111"
	frame := oldOID + " " + newOID + " refs/heads/main\x00report-status side-band-64k agent=git/2.40\n"
	pkt := encodePkt(frame)
	body := bytes.NewBufferString(pkt + "0000")

	req, wrapped, ok := ParseRequest("POST", "/foo/git-receive-pack", "application/x-git-receive-pack-request", nil, body)
	require.True(t, ok)
	_, err := io.Copy(io.Discard, wrapped)
	require.NoError(t, err)

	require.Len(t, req.Commands, 1)
	cmd := req.Commands[0]
	require.Equal(t, CommandUpdate, cmd.Kind)
	require.Equal(t, oldOID, cmd.OldOID)
	require.Equal(t, newOID, cmd.NewOID)
	require.Equal(t, "refs/heads/main", cmd.Ref)
	require.Equal(t, "", req.Capabilities["report-status"])
	require.Equal(t, "", req.Capabilities["side-band-64k"])
	require.Equal(t, "git/2.40", req.Capabilities["agent"])
}

func TestParseBodyReceivePackCreateAndDelete(t *testing.T) {
	zero := "0000000000000000000000000000000000000000"
	sha := "abcdefabcdefabcdefabcdefabcdefabcdefabcd"

	createFrame := encodePkt(zero + " " + sha + " refs/heads/feature\n")
	deleteFrame := encodePkt(sha + " " + zero + " refs/heads/old\n")
	body := bytes.NewBufferString(createFrame + deleteFrame + "0000")

	req, wrapped, ok := ParseRequest("POST", "/r/git-receive-pack", "application/x-git-receive-pack-request", nil, body)
	require.True(t, ok)
	_, err := io.Copy(io.Discard, wrapped)
	require.NoError(t, err)

	require.Len(t, req.Commands, 2)
	require.Equal(t, CommandCreate, req.Commands[0].Kind)
	require.Equal(t, CommandDelete, req.Commands[1].Kind)
}

func TestParseBodyUploadPackWantHave(t *testing.T) {
	sha := "abcdefabcdefabcdefabcdefabcdefabcdefabcd"
	wantFrame := encodePkt("want " + sha + " side-band-64k\n")
	haveFrame := encodePkt("have " + sha + "\n")
	body := bytes.NewBufferString(wantFrame + haveFrame + "0000")

	req, wrapped, ok := ParseRequest("POST", "/r/git-upload-pack", "application/x-git-upload-pack-request", nil, body)
	require.True(t, ok)
	_, err := io.Copy(io.Discard, wrapped)
	require.NoError(t, err)

	require.Len(t, req.Commands, 2)
	require.Equal(t, CommandWant, req.Commands[0].Kind)
	require.Equal(t, sha, req.Commands[0].OID)
	require.Equal(t, "", req.Capabilities["side-band-64k"])
	require.Equal(t, CommandHave, req.Commands[1].Kind)
}

func TestValidatePathRejectsDotDot(t *testing.T) {
	require.NoError(t, ValidatePath("foo/bar"))
	require.ErrorIs(t, ValidatePath("../etc/passwd"), ErrInvalidPath)
	require.ErrorIs(t, ValidatePath("foo/../bar"), ErrInvalidPath)
}

func encodePkt(s string) string {
	n := len(s) + 4
	return hex4(n) + s
}

func hex4(n int) string {
	const digits = "0123456789abcdef"
	b := make([]byte, 4)
	for i := 3; i >= 0; i-- {
		b[i] = digits[n&0xf]
		n >>= 4
	}
	return string(b)
}
