package driver

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bravo68web/githttpgw/internal/gitproto"
)

// Local drives repositories that live as bare directories under OriginDir,
// shelling out to the git binary exactly as the protocol's stateless-rpc
// mode expects. Grounded on GitProtocol.GetInfoRefs/runGitService.
type Local struct {
	// OriginDir is the directory repository paths are joined onto.
	OriginDir string

	// EnabledDefaults overrides the fallback used when `git config
	// --bool daemon.<command>` exits non-zero with empty output. The
	// default-default, when a service has no entry here, is true.
	EnabledDefaults map[gitproto.Service]bool

	// Mirror, if set, is notified after a successful receive-pack so it
	// can push the repository to remote storage in the background. A
	// nil Mirror disables mirroring entirely.
	Mirror Mirror
}

func (l *Local) repoPath(req *gitproto.Request) string {
	return filepath.Join(l.OriginDir, req.Path)
}

// Exists runs `git ls-remote <repo> HEAD` and reports whether it
// succeeded. An invalid repository path always reports false.
func (l *Local) Exists(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error) {
	if err := gitproto.ValidatePath(req.Path); err != nil {
		return false, nil
	}
	cmd := exec.CommandContext(ctx, "git", "ls-remote", l.repoPath(req), "HEAD")
	return cmd.Run() == nil, nil
}

// Access has no built-in authorization; every request is allowed unless a
// Proxy override supplies one.
func (l *Local) Access(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error) {
	return true, nil
}

// Enabled runs `git config --bool daemon.<command>` in the repository and
// interprets its exit code and output per §4.4: upload-pack defaults to
// permissive, receive-pack to restrictive, falling back to
// EnabledDefaults (or true) when the key is unset.
func (l *Local) Enabled(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error) {
	if err := gitproto.ValidatePath(req.Path); err != nil {
		return false, nil
	}
	command := strings.ReplaceAll(req.Service.Command(), "-", "")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", "-C", l.repoPath(req), "config", "--bool", "daemon."+command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	out := strings.TrimSpace(stdout.String())

	if runErr == nil {
		switch req.Service {
		case gitproto.ServiceUploadPack:
			return out != "false", nil
		case gitproto.ServiceReceivePack:
			return out == "true", nil
		default:
			return false, nil
		}
	}

	if out == "" {
		return l.defaultEnabled(req.Service), nil
	}

	exitCode := -1
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}
	return false, &ExecutionError{ExitCode: exitCode, Stderr: stderr.String()}
}

func (l *Local) defaultEnabled(svc gitproto.Service) bool {
	if l.EnabledDefaults != nil {
		if v, ok := l.EnabledDefaults[svc]; ok {
			return v
		}
	}
	return true
}

// Serve invokes `git <service> (--advertise-refs|--stateless-rpc) .` in
// the repository, piping body into stdin for non-advertisement requests,
// and kicks off a best-effort mirror after a receive-pack succeeds.
func (l *Local) Serve(ctx context.Context, req *gitproto.Request, body io.Reader, hook *ResponseHook) (Response, error) {
	if err := gitproto.ValidatePath(req.Path); err != nil {
		return Response{}, err
	}

	args := []string{"-C", l.repoPath(req), req.Service.Command()}
	if req.IsAdvertisement {
		args = append(args, "--advertise-refs", ".")
	} else {
		args = append(args, "--stateless-rpc", ".")
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	// A cancelled ctx (client gone) stops the child with SIGTERM rather
	// than CommandContext's default kill.
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	if !req.IsAdvertisement {
		cmd.Stdin = body
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return Response{}, &ExecutionError{ExitCode: exitCode, Stderr: stderr.String()}
	}

	if !req.IsAdvertisement && req.Service == gitproto.ServiceReceivePack && l.Mirror != nil {
		l.Mirror.MirrorAsync(req.Path)
	}

	return Response{Body: stdout.Bytes(), StatusCode: 200}, nil
}
