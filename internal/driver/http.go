package driver

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bravo68web/githttpgw/internal/gitproto"
	"github.com/bravo68web/githttpgw/internal/headers"
	"github.com/go-resty/resty/v2"
)

// HTTP proxies every operation to an upstream Smart HTTP server, reached
// through a resty client -- the teacher's own choice for outbound calls.
type HTTP struct {
	// Origin is the upstream base URL, e.g. "https://git.example.com".
	Origin string
	Client *resty.Client
}

// NewHTTP builds an HTTP driver with a freshly configured resty client.
func NewHTTP(origin string) *HTTP {
	return &HTTP{Origin: origin, Client: resty.New()}
}

func (h *HTTP) client() *resty.Client {
	if h.Client != nil {
		return h.Client
	}
	return resty.New()
}

func (h *HTTP) joinURL(path string) string {
	return strings.TrimRight(h.Origin, "/") + "/" + strings.TrimLeft(path, "/")
}

func is2xx(code int) bool {
	return code >= 200 && code < 300
}

// Exists issues `HEAD <origin>/<path>/info/refs?service=git-upload-pack`.
func (h *HTTP) Exists(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error) {
	resp, err := h.client().R().
		SetContext(ctx).
		SetQueryParam("service", gitproto.ServiceUploadPack.String()).
		Head(h.joinURL(req.Path + "/info/refs"))
	if err != nil {
		return false, err
	}
	return is2xx(resp.StatusCode()), nil
}

// Access has no built-in authorization in the upstream driver either.
func (h *HTTP) Access(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error) {
	return true, nil
}

// Enabled issues `HEAD <origin>/<path>/info/refs?service=git-<service>`.
func (h *HTTP) Enabled(ctx context.Context, req *gitproto.Request, hook *ResponseHook) (bool, error) {
	if req.Service == gitproto.ServiceUnknown {
		return false, nil
	}
	resp, err := h.client().R().
		SetContext(ctx).
		SetQueryParam("service", req.Service.String()).
		Head(h.joinURL(req.Path + "/info/refs"))
	if err != nil {
		return false, err
	}
	return is2xx(resp.StatusCode()), nil
}

// Serve forwards the client's headers and body to the upstream and, via
// hook, copies every response header into the outgoing Headers.
func (h *HTTP) Serve(ctx context.Context, req *gitproto.Request, body io.Reader, hook *ResponseHook) (Response, error) {
	target, method := h.target(req)

	r := h.client().R().SetContext(ctx)
	if req.Headers != nil {
		req.Headers.Iterate(func(name string, values []string) {
			for _, v := range values {
				r.SetHeader(name, v)
			}
		})
	}
	if method == "POST" {
		r.SetBody(body)
	}

	resp, err := r.Execute(method, target)
	if err != nil {
		return Response{}, err
	}

	if hook != nil {
		hook.Subscribe(func(out *headers.Headers) {
			for name, values := range resp.Header() {
				for _, v := range values {
					_ = out.Append(name, v)
				}
			}
		})
	}

	return Response{
		Body:          resp.Body(),
		StatusCode:    resp.StatusCode(),
		StatusMessage: resp.Status(),
	}, nil
}

func (h *HTTP) target(req *gitproto.Request) (url, method string) {
	if req.IsAdvertisement {
		return h.joinURL(req.Path+"/info/refs") + "?service=" + req.Service.String(), "GET"
	}
	return h.joinURL(fmt.Sprintf("%s/%s", req.Path, req.Service.String())), "POST"
}
