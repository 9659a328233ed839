package router

import (
	"github.com/bravo68web/githttpgw/internal/transport/http/handler"
	"github.com/gin-gonic/gin"
)

func registerHealthRoutes(engine *gin.Engine) {
	engine.GET("/", handler.HealthHandler())
}
