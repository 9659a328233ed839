package driver

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/bravo68web/githttpgw/internal/gitproto"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	existsResult bool
}

func (f *fakeDriver) Exists(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error) {
	return f.existsResult, nil
}
func (f *fakeDriver) Access(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error) {
	return true, nil
}
func (f *fakeDriver) Enabled(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error) {
	return true, nil
}
func (f *fakeDriver) Serve(ctx context.Context, req *gitproto.Request, body io.Reader, hook *ResponseHook) (Response, error) {
	return Response{StatusCode: 200}, nil
}

func TestProxyFallsThroughWithoutOverride(t *testing.T) {
	p := &Proxy{Underlying: &fakeDriver{existsResult: true}}
	ok, err := p.Exists(context.Background(), gitproto.NewRequest(), nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestProxyUsesOverride(t *testing.T) {
	p := &Proxy{
		Underlying: &fakeDriver{existsResult: true},
		Overrides: Overrides{
			Exists: func(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error) {
				return false, nil
			},
		},
	}
	ok, err := p.Exists(context.Background(), gitproto.NewRequest(), nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProxyWrapsOverrideError(t *testing.T) {
	wantErr := errors.New("boom")
	p := &Proxy{
		Underlying: &fakeDriver{},
		Overrides: Overrides{
			Access: func(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error) {
				return false, wantErr
			},
		},
	}
	_, err := p.Access(context.Background(), gitproto.NewRequest(), nil)
	require.Error(t, err)
	var mf *MethodFailure
	require.ErrorAs(t, err, &mf)
	require.Equal(t, "access", mf.Method)
	require.ErrorIs(t, err, wantErr)
}

func TestProxyRecoversOverridePanic(t *testing.T) {
	p := &Proxy{
		Underlying: &fakeDriver{},
		Overrides: Overrides{
			Enabled: func(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error) {
				panic("unexpected")
			},
		},
	}
	ok, err := p.Enabled(context.Background(), gitproto.NewRequest(), nil)
	require.False(t, ok)
	require.Error(t, err)
	var mf *MethodFailure
	require.ErrorAs(t, err, &mf)
	require.Equal(t, "enabled", mf.Method)
}

func TestProxyServeAlwaysFallsThrough(t *testing.T) {
	p := &Proxy{Underlying: &fakeDriver{}}
	resp, err := p.Serve(context.Background(), gitproto.NewRequest(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
}
