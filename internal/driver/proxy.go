package driver

import (
	"context"
	"fmt"
	"io"

	"github.com/bravo68web/githttpgw/internal/gitproto"
)

// Overrides holds the optional per-operation replacements a Proxy applies.
// A nil field falls through to the underlying driver.
type Overrides struct {
	Exists  func(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error)
	Access  func(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error)
	Enabled func(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error)
}

// Proxy wraps a Driver with an override table for exists/access/enabled.
// Serve always falls through to Underlying -- the spec's override mapping
// never names it.
type Proxy struct {
	Underlying Driver
	Overrides  Overrides
}

func (p *Proxy) Exists(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (ok bool, err error) {
	if p.Overrides.Exists == nil {
		return p.Underlying.Exists(ctx, req, hook)
	}
	return callOverride("exists", func() (bool, error) { return p.Overrides.Exists(ctx, req, hook) })
}

func (p *Proxy) Access(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (ok bool, err error) {
	if p.Overrides.Access == nil {
		return p.Underlying.Access(ctx, req, hook)
	}
	return callOverride("access", func() (bool, error) { return p.Overrides.Access(ctx, req, hook) })
}

func (p *Proxy) Enabled(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (ok bool, err error) {
	if p.Overrides.Enabled == nil {
		return p.Underlying.Enabled(ctx, req, hook)
	}
	return callOverride("enabled", func() (bool, error) { return p.Overrides.Enabled(ctx, req, hook) })
}

func (p *Proxy) Serve(ctx context.Context, req *gitproto.Request, body io.Reader, hook *ResponseHook) (Response, error) {
	return p.Underlying.Serve(ctx, req, body, hook)
}

// callOverride runs fn, recovering a panic the way an overridden operation
// that "raises" would, and wraps any failure as MethodFailure.
func callOverride(method string, fn func() (bool, error)) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			rerr, isErr := r.(error)
			if !isErr {
				rerr = &panicValue{r}
			}
			ok, err = false, &MethodFailure{Method: method, Err: rerr}
		}
	}()
	result, ferr := fn()
	if ferr != nil {
		return false, &MethodFailure{Method: method, Err: ferr}
	}
	return result, nil
}

type panicValue struct{ v any }

func (p *panicValue) Error() string {
	return fmt.Sprintf("panic: %v", p.v)
}
