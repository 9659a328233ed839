package driver

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/bravo68web/githttpgw/internal/gitproto"
	"github.com/stretchr/testify/require"
)

func newBareRepo(t *testing.T) (originDir, repoPath string) {
	t.Helper()
	originDir = t.TempDir()
	repoPath = "repo.git"
	full := filepath.Join(originDir, repoPath)
	require.NoError(t, exec.Command("git", "init", "--bare", full).Run())
	return originDir, repoPath
}

func uploadPackRequest(path string, advertisement bool) *gitproto.Request {
	req := gitproto.NewRequest()
	req.Path = path
	req.Service = gitproto.ServiceUploadPack
	req.IsAdvertisement = advertisement
	return req
}

func TestLocalExists(t *testing.T) {
	origin, repoPath := newBareRepo(t)
	l := &Local{OriginDir: origin}

	ok, err := l.Exists(context.Background(), uploadPackRequest(repoPath, true), nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Exists(context.Background(), uploadPackRequest("missing.git", true), nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocalExistsRejectsTraversal(t *testing.T) {
	origin, _ := newBareRepo(t)
	l := &Local{OriginDir: origin}

	ok, err := l.Exists(context.Background(), uploadPackRequest("../etc", true), nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocalEnabledDefaults(t *testing.T) {
	origin, repoPath := newBareRepo(t)
	l := &Local{OriginDir: origin}

	ok, err := l.Enabled(context.Background(), uploadPackRequest(repoPath, true), nil)
	require.NoError(t, err)
	require.True(t, ok, "upload-pack defaults to permissive when daemon.uploadpack is unset")

	receiveReq := uploadPackRequest(repoPath, true)
	receiveReq.Service = gitproto.ServiceReceivePack
	ok, err = l.Enabled(context.Background(), receiveReq, nil)
	require.NoError(t, err)
	require.True(t, ok, "receive-pack falls back to the default of true when daemon.receivepack is unset")
}

func TestLocalEnabledHonorsConfig(t *testing.T) {
	origin, repoPath := newBareRepo(t)
	full := filepath.Join(origin, repoPath)
	require.NoError(t, exec.Command("git", "-C", full, "config", "--bool", "daemon.receivepack", "true").Run())

	l := &Local{OriginDir: origin}
	req := uploadPackRequest(repoPath, true)
	req.Service = gitproto.ServiceReceivePack

	ok, err := l.Enabled(context.Background(), req, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLocalServeAdvertisement(t *testing.T) {
	origin, repoPath := newBareRepo(t)
	l := &Local{OriginDir: origin}

	resp, err := l.Serve(context.Background(), uploadPackRequest(repoPath, true), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.NotEmpty(t, resp.Body)
}

type stubMirror struct {
	calls []string
}

func (m *stubMirror) MirrorAsync(path string) {
	m.calls = append(m.calls, path)
}

func TestLocalServeAdvertisementDoesNotTriggerMirror(t *testing.T) {
	origin, repoPath := newBareRepo(t)
	mirror := &stubMirror{}
	l := &Local{OriginDir: origin, Mirror: mirror}

	_, err := l.Serve(context.Background(), uploadPackRequest(repoPath, true), nil, nil)
	require.NoError(t, err)
	require.Empty(t, mirror.calls, "advertisement requests never mirror")
}
