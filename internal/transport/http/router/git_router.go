package router

import (
	"github.com/bravo68web/githttpgw/internal/gateway"
	"github.com/bravo68web/githttpgw/internal/transport/http/handler"
	"github.com/gin-gonic/gin"
)

// registerGitRoutes wires the four URLs named in §6 as three routes: one
// GET info/refs route for both advertisements and the two RPC endpoints,
// joined on /:owner/:repo exactly as the teacher's gitRouter does. One
// handler (GitHandler.ServeGit) backs all three --
// gitproto.ParseRequest is what actually tells them apart.
func registerGitRoutes(engine *gin.Engine, controller *gateway.Controller) {
	h := handler.NewGitHandler(controller)

	engine.GET("/:owner/:repo/info/refs", h.ServeGit)
	engine.POST("/:owner/:repo/git-upload-pack", h.ServeGit)
	engine.POST("/:owner/:repo/git-receive-pack", h.ServeGit)
}
