// Package driver implements the backend driver abstraction (C4): the
// polymorphic interface a repository backend satisfies, plus the two
// built-in implementations (local filesystem/subprocess and HTTP
// upstream) and the override-table proxy wrapper.
package driver

import (
	"context"
	"io"
	"sync"

	"github.com/bravo68web/githttpgw/internal/gitproto"
	"github.com/bravo68web/githttpgw/internal/headers"
)

// Response is what Serve produces: bytes plus a status the controller
// treats as a rejection whenever StatusCode >= 400.
type Response struct {
	Body          []byte
	StatusCode    int
	StatusMessage string
}

// ResponseHook is the one-shot observable a driver may subscribe to in
// order to mutate the outgoing Headers once the controller has built the
// final response. The HTTP upstream driver uses it to copy the upstream's
// response headers through.
type ResponseHook struct {
	mu  sync.Mutex
	fns []func(*headers.Headers)
}

// NewResponseHook returns an empty hook.
func NewResponseHook() *ResponseHook {
	return &ResponseHook{}
}

// Subscribe registers fn to run when Fire is called. Safe to call from
// any of the four driver operations.
func (h *ResponseHook) Subscribe(fn func(*headers.Headers)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fns = append(h.fns, fn)
}

// Fire runs every subscribed function against hdrs, in subscription order.
func (h *ResponseHook) Fire(hdrs *headers.Headers) {
	h.mu.Lock()
	fns := append([]func(*headers.Headers)(nil), h.fns...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(hdrs)
	}
}

// Driver is the polymorphic backend interface. Each probe returns a bool
// plus an error; the gateway controller dispatches a non-nil error to its
// onError observers and treats the probe as having returned false,
// exactly as spec'd for C6.
type Driver interface {
	Exists(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error)
	Access(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error)
	Enabled(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error)
	Serve(ctx context.Context, req *gitproto.Request, body io.Reader, hook *ResponseHook) (Response, error)
}

// Mirror is the narrow interface driver.Local needs from the storage
// mirror, kept here instead of importing the storage package directly so
// the core driver package stays free of the AWS SDK dependency.
type Mirror interface {
	MirrorAsync(path string)
}
