package driver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bravo68web/githttpgw/internal/headers"
	"github.com/stretchr/testify/require"
)

func TestHTTPExistsReportsUpstream2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "HEAD", r.Method)
		require.Equal(t, "git-upload-pack", r.URL.Query().Get("service"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL)
	req := uploadPackRequest("foo", true)

	ok, err := h.Exists(context.Background(), req, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHTTPEnabledReportsUpstreamNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL)
	req := uploadPackRequest("foo", true)

	ok, err := h.Enabled(context.Background(), req, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHTTPServeCopiesResponseHeadersThroughHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("0008NAK\n0000"))
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL)
	req := uploadPackRequest("foo", false)

	hook := NewResponseHook()
	resp, err := h.Serve(context.Background(), req, nil, hook)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	out := headers.New()
	hook.Fire(out)
	v, ok := out.Get("X-Upstream")
	require.True(t, ok)
	require.Equal(t, "yes", v)
}

func TestHTTPServeForwardsRequestBodyOnPost(t *testing.T) {
	const payload = "0009want x\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, payload, string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL)
	req := uploadPackRequest("foo", false)

	_, err := h.Serve(context.Background(), req, strings.NewReader(payload), nil)
	require.NoError(t, err)
}
