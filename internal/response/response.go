// Package response implements the response framer (C5): turning a
// gitproto.Request, a driver.Response, and the controller's pending
// sideband messages into the bytes and headers the host binding writes
// back to the client.
package response

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/bravo68web/githttpgw/internal/driver"
	"github.com/bravo68web/githttpgw/internal/gitproto"
	"github.com/bravo68web/githttpgw/internal/pktline"
)

// preface is the exact byte sequence §6 requires ahead of an
// advertisement body when the driver's own output doesn't already
// include it.
var preface = map[gitproto.Service][]byte{
	gitproto.ServiceUploadPack:  []byte("001e# service=git-upload-pack\n0000"),
	gitproto.ServiceReceivePack: []byte("001f# service=git-receive-pack\n0000"),
}

// Response is the framed, ready-to-write result of C5.
type Response struct {
	StatusCode    int
	StatusMessage string
	ContentType   string
	Body          []byte
	ContentLength int
}

// Frame implements the 5-step algorithm of §4.5.
func Frame(req *gitproto.Request, dr driver.Response, sideband [][]byte) (*Response, error) {
	if dr.StatusCode >= 400 {
		req.MarkFailure()
		msg := dr.StatusMessage
		if msg == "" {
			msg = http.StatusText(dr.StatusCode)
		}
		// A non-empty backend body wins over the synthesized status
		// message: the backend had something specific to say.
		body := dr.Body
		if len(body) == 0 {
			body = []byte(msg)
		}
		return &Response{
			StatusCode:    dr.StatusCode,
			StatusMessage: msg,
			ContentType:   "text/plain; charset=utf-8",
			Body:          body,
			ContentLength: len(body),
		}, nil
	}

	if len(dr.Body) == 0 {
		return &Response{StatusCode: dr.StatusCode, StatusMessage: dr.StatusMessage}, nil
	}

	if req.IsAdvertisement {
		body := dr.Body
		if want := preface[req.Service]; want != nil && !bytes.HasPrefix(body, want) {
			prefixed := make([]byte, 0, len(want)+len(body))
			prefixed = append(prefixed, want...)
			prefixed = append(prefixed, body...)
			body = prefixed
		}
		return &Response{
			StatusCode:    dr.StatusCode,
			ContentType:   fmt.Sprintf("application/x-%s-advertisement", req.Service.String()),
			Body:          body,
			ContentLength: len(body),
		}, nil
	}

	buffers := append([][]byte{dr.Body}, sideband...)
	splitAt := 0
	body, err := pktline.ConcatPackets(buffers, &splitAt)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode:    dr.StatusCode,
		ContentType:   fmt.Sprintf("application/x-%s-result", req.Service.String()),
		Body:          body,
		ContentLength: len(body),
	}, nil
}
