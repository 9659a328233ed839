// Package gateway implements the logic controller (C6): the
// exists/access/enabled/accept pipeline that turns a parsed request into a
// framed response, plus the sideband buffer and the error-dispatch
// broadcast the other components raise into.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/bravo68web/githttpgw/internal/driver"
	"github.com/bravo68web/githttpgw/internal/gitproto"
	"github.com/bravo68web/githttpgw/internal/pktline"
	"github.com/bravo68web/githttpgw/internal/response"
)

// DispatchFailure is the one error kind that can escape Controller.Serve,
// raised when the response framer itself fails (a malformed driver body).
type DispatchFailure struct {
	Code int
	Err  error
}

func (e *DispatchFailure) Error() string {
	return fmt.Sprintf("gateway: dispatch failed (%d): %v", e.Code, e.Err)
}

func (e *DispatchFailure) Unwrap() error { return e.Err }

// Controller drives one backend driver through the accept/reject
// pipeline. It owns the sideband buffer and the onError broadcast list;
// both are safe for concurrent use across requests sharing a Controller.
type Controller struct {
	Driver driver.Driver

	mu       sync.Mutex
	sideband [][]byte

	errMu     sync.Mutex
	onErrorFn []func(error)
}

// NewController returns a Controller backed by d.
func NewController(d driver.Driver) *Controller {
	return &Controller{Driver: d}
}

// OnError registers fn to be called, asynchronously and potentially many
// times over the Controller's lifetime, whenever a driver probe raises.
func (c *Controller) OnError(fn func(error)) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.onErrorFn = append(c.onErrorFn, fn)
}

func (c *Controller) dispatchError(err error) {
	c.errMu.Lock()
	fns := append([]func(error)(nil), c.onErrorFn...)
	c.errMu.Unlock()
	if len(fns) == 0 {
		return
	}
	go func() {
		for _, fn := range fns {
			fn(err)
		}
	}()
}

// SidebandMessage encodes msg as a sideband-2 (progress channel) pkt-line
// frame and appends it to the controller's buffer. It is ignored unless
// the request is subsequently accepted for an rpc (non-advertisement)
// response.
func (c *Controller) SidebandMessage(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sideband = append(c.sideband, pktline.EncodeSideband(pktline.SidebandProgress, msg))
}

func (c *Controller) drainSideband() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.sideband
	c.sideband = nil
	return out
}

// Serve runs the exists -> access -> enabled -> accept pipeline described
// in §4.6, short-circuiting on the first false probe. A request whose
// service could not be classified is rejected with 404 before any probe
// runs, since "absent service" only ever permits a Rejected-404 or
// Accepted-empty terminal state and the driver probes have nothing to
// classify it against.
func (c *Controller) Serve(ctx context.Context, req *gitproto.Request, body io.Reader, hook *driver.ResponseHook) (*response.Response, error) {
	if req.Service == gitproto.ServiceUnknown {
		return c.Reject(req, http.StatusNotFound, ""), nil
	}

	exists, err := c.Driver.Exists(ctx, req, hook)
	if err != nil {
		c.dispatchError(err)
		exists = false
	}
	if !exists {
		return c.Reject(req, http.StatusNotFound, ""), nil
	}

	access, err := c.Driver.Access(ctx, req, hook)
	if err != nil {
		c.dispatchError(err)
		access = false
	}
	if !access {
		return c.Reject(req, http.StatusUnauthorized, ""), nil
	}

	enabled, err := c.Driver.Enabled(ctx, req, hook)
	if err != nil {
		c.dispatchError(err)
		enabled = false
	}
	if !enabled {
		return c.Reject(req, http.StatusForbidden, ""), nil
	}

	return c.Accept(ctx, req, body, hook)
}

// Accept transitions req to Accepted, invokes the driver, and frames the
// result. A no-op (returning an empty response) if req has already left
// Pending or names an unknown service.
func (c *Controller) Accept(ctx context.Context, req *gitproto.Request, body io.Reader, hook *driver.ResponseHook) (*response.Response, error) {
	if !req.MarkAccepted() {
		return &response.Response{}, nil
	}
	if req.Service == gitproto.ServiceUnknown {
		return &response.Response{}, nil
	}

	dr, err := c.Driver.Serve(ctx, req, body, hook)
	if err != nil {
		c.dispatchError(err)
		dr = driver.Response{
			StatusCode:    http.StatusInternalServerError,
			StatusMessage: http.StatusText(http.StatusInternalServerError),
		}
	}
	if dr.StatusCode >= http.StatusBadRequest {
		req.MarkFailure()
	}

	resp, err := response.Frame(req, dr, c.drainSideband())
	if err != nil {
		return nil, &DispatchFailure{Code: http.StatusInternalServerError, Err: err}
	}
	return resp, nil
}

// Reject transitions req to Rejected and builds a plain-text response.
// A no-op (returning an empty response) if req has already left Pending.
// Unlike Accept, an unknown service does not special-case Reject: a
// rejection is always a real status-code-plus-reason-phrase body, since
// "Rejected with 404" is an explicitly allowed terminal state for
// requests whose service could not be classified. code is clamped into
// [400, 600); an empty message defaults to the standard HTTP reason
// phrase for code.
func (c *Controller) Reject(req *gitproto.Request, code int, message string) *response.Response {
	if !req.MarkRejected() {
		return &response.Response{}
	}
	if code < 400 || code >= 600 {
		code = http.StatusInternalServerError
	}
	if message == "" {
		message = http.StatusText(code)
	}
	body := []byte(message)
	return &response.Response{
		StatusCode:    code,
		StatusMessage: message,
		ContentType:   "text/plain; charset=utf-8",
		Body:          body,
		ContentLength: len(body),
	}
}
