package gateway

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bravo68web/githttpgw/internal/driver"
	"github.com/bravo68web/githttpgw/internal/gitproto"
	"github.com/stretchr/testify/require"
)

type stubDriver struct {
	exists, access, enabled bool
	existsErr, accessErr, enabledErr, serveErr error
	serveResponse                              driver.Response
	serveCalled                                bool
}

func (s *stubDriver) Exists(ctx context.Context, req *gitproto.Request, hook *driver.ResponseHook) (bool, error) {
	return s.exists, s.existsErr
}
func (s *stubDriver) Access(ctx context.Context, req *gitproto.Request, hook *driver.ResponseHook) (bool, error) {
	return s.access, s.accessErr
}
func (s *stubDriver) Enabled(ctx context.Context, req *gitproto.Request, hook *driver.ResponseHook) (bool, error) {
	return s.enabled, s.enabledErr
}
func (s *stubDriver) Serve(ctx context.Context, req *gitproto.Request, body io.Reader, hook *driver.ResponseHook) (driver.Response, error) {
	s.serveCalled = true
	return s.serveResponse, s.serveErr
}

func newReq(svc gitproto.Service) *gitproto.Request {
	r := gitproto.NewRequest()
	r.Service = svc
	return r
}

func TestServeRejects404WhenNotExists(t *testing.T) {
	c := NewController(&stubDriver{exists: false})
	req := newReq(gitproto.ServiceUploadPack)
	resp, err := c.Serve(context.Background(), req, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 404, resp.StatusCode)
	require.Equal(t, gitproto.Rejected, req.Status())
}

func TestServeRejects404ForUnknownServiceWithoutProbing(t *testing.T) {
	d := &stubDriver{exists: true, access: true, enabled: true}
	c := NewController(d)
	req := newReq(gitproto.ServiceUnknown)
	resp, err := c.Serve(context.Background(), req, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 404, resp.StatusCode)
	require.Equal(t, gitproto.Rejected, req.Status())
	require.False(t, d.serveCalled)
}

func TestServeRejects401WhenNoAccess(t *testing.T) {
	c := NewController(&stubDriver{exists: true, access: false})
	req := newReq(gitproto.ServiceUploadPack)
	resp, err := c.Serve(context.Background(), req, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 401, resp.StatusCode)
}

func TestServeRejects403WhenNotEnabled(t *testing.T) {
	c := NewController(&stubDriver{exists: true, access: true, enabled: false})
	req := newReq(gitproto.ServiceUploadPack)
	resp, err := c.Serve(context.Background(), req, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 403, resp.StatusCode)
}

func TestServeAcceptsAndFramesSuccessfulDriverResponse(t *testing.T) {
	d := &stubDriver{
		exists: true, access: true, enabled: true,
		serveResponse: driver.Response{StatusCode: 200, Body: []byte("0008NAK\n0000")},
	}
	c := NewController(d)
	req := newReq(gitproto.ServiceUploadPack)
	resp, err := c.Serve(context.Background(), req, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, gitproto.Accepted, req.Status())
	require.True(t, d.serveCalled)
}

func TestServeTreatsProbeErrorAsFalseAndDispatches(t *testing.T) {
	wantErr := errors.New("boom")
	d := &stubDriver{exists: true, access: true, enabledErr: wantErr}
	c := NewController(d)

	var mu sync.Mutex
	var got error
	done := make(chan struct{})
	c.OnError(func(err error) {
		mu.Lock()
		got = err
		mu.Unlock()
		close(done)
	})

	req := newReq(gitproto.ServiceUploadPack)
	resp, err := c.Serve(context.Background(), req, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 403, resp.StatusCode)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("onError was never called")
	}
	mu.Lock()
	defer mu.Unlock()
	require.ErrorIs(t, got, wantErr)
}

func TestServeSynthesizes500WhenServeRaises(t *testing.T) {
	d := &stubDriver{exists: true, access: true, enabled: true, serveErr: errors.New("exec failed")}
	c := NewController(d)
	req := newReq(gitproto.ServiceUploadPack)
	resp, err := c.Serve(context.Background(), req, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 500, resp.StatusCode)
	require.Equal(t, gitproto.Failure, req.Status())
}

func TestAcceptIsNoOpOnceNotPending(t *testing.T) {
	d := &stubDriver{}
	c := NewController(d)
	req := newReq(gitproto.ServiceUploadPack)
	req.MarkRejected()

	resp, err := c.Accept(context.Background(), req, nil, nil)
	require.NoError(t, err)
	require.False(t, d.serveCalled)
	require.Zero(t, resp.StatusCode)
}

func TestAcceptUnknownServiceReturnsEmptyBodyWithoutInvokingDriver(t *testing.T) {
	d := &stubDriver{}
	c := NewController(d)
	req := newReq(gitproto.ServiceUnknown)

	resp, err := c.Accept(context.Background(), req, nil, nil)
	require.NoError(t, err)
	require.False(t, d.serveCalled)
	require.Empty(t, resp.Body)
	require.Equal(t, gitproto.Accepted, req.Status())
}

func TestRejectBuildsRealResponseEvenForUnknownService(t *testing.T) {
	c := NewController(&stubDriver{})
	req := newReq(gitproto.ServiceUnknown)

	resp := c.Reject(req, 404, "")
	require.Equal(t, 404, resp.StatusCode)
	require.Equal(t, "Not Found", string(resp.Body))
	require.Equal(t, gitproto.Rejected, req.Status())
}

func TestRejectClampsCodeOutsideRange(t *testing.T) {
	c := NewController(&stubDriver{})
	req := newReq(gitproto.ServiceUploadPack)

	resp := c.Reject(req, 999, "")
	require.Equal(t, 500, resp.StatusCode)
}

func TestSidebandMessagesAppearInAcceptedRPCBody(t *testing.T) {
	d := &stubDriver{
		exists: true, access: true, enabled: true,
		serveResponse: driver.Response{StatusCode: 200, Body: []byte("0008NAK\n0000")},
	}
	c := NewController(d)
	c.SidebandMessage([]byte("hello\n"))

	req := newReq(gitproto.ServiceUploadPack)
	req.IsAdvertisement = false
	resp, err := c.Serve(context.Background(), req, nil, nil)
	require.NoError(t, err)
	require.Contains(t, string(resp.Body), "hello")
}
