package handler

import (
	"strconv"

	"github.com/bravo68web/githttpgw/internal/driver"
	"github.com/bravo68web/githttpgw/internal/gateway"
	"github.com/bravo68web/githttpgw/internal/gitproto"
	"github.com/bravo68web/githttpgw/internal/headers"
	apperrors "github.com/bravo68web/githttpgw/pkg/errors"
	"github.com/bravo68web/githttpgw/pkg/logger"
	"github.com/gin-gonic/gin"
)

// GitHandler adapts gin requests to the gateway.Controller pipeline: it
// builds a gitproto.Request from the incoming (method, url, content-type,
// headers, body), drives it through Controller.Serve, and writes the
// resulting response.Response back to the client.
type GitHandler struct {
	controller *gateway.Controller
	log        *logger.Logger
}

// NewGitHandler wires a GitHandler to controller.
func NewGitHandler(controller *gateway.Controller) *GitHandler {
	return &GitHandler{
		controller: controller,
		log:        logger.Get().WithFields(logger.Component("git-handler")),
	}
}

// ServeGit handles every Smart HTTP route: GET .../info/refs and POST
// .../git-upload-pack|git-receive-pack all dispatch here, since
// gitproto.ParseRequest itself classifies the request from the URL and
// content-type -- the handler only needs to translate to and from gin.
func (h *GitHandler) ServeGit(c *gin.Context) {
	reqHeaders := headers.New()
	for name, values := range c.Request.Header {
		for _, v := range values {
			_ = reqHeaders.Append(name, v)
		}
	}

	req, body, ok := gitproto.ParseRequest(
		c.Request.Method,
		c.Request.URL.String(),
		c.ContentType(),
		reqHeaders,
		c.Request.Body,
	)
	if !ok {
		c.Status(404)
		return
	}

	hook := driver.NewResponseHook()
	resp, err := h.controller.Serve(c.Request.Context(), req, body, hook)
	if err != nil {
		appErr := apperrors.DispatchError(err)
		h.log.Error("dispatch failed",
			logger.Error(appErr),
			logger.Path(c.Request.URL.Path),
		)
		c.Status(appErr.HTTPStatus())
		return
	}

	outHeaders := headers.New()
	hook.Fire(outHeaders)
	outHeaders.Iterate(func(name string, values []string) {
		for _, v := range values {
			c.Writer.Header().Add(name, v)
		}
	})

	if resp.ContentType != "" {
		c.Writer.Header().Set("Content-Type", resp.ContentType)
	}
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Content-Length", strconv.Itoa(resp.ContentLength))

	statusCode := resp.StatusCode
	if statusCode == 0 {
		statusCode = 200
	}
	c.Writer.WriteHeader(statusCode)
	if len(resp.Body) > 0 {
		_, _ = c.Writer.Write(resp.Body)
	}
}
