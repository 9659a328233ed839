// Package router wires the gateway's gin.Engine: middleware, health check,
// and the Smart HTTP routes. Adapted from the teacher's Router type, with
// the DB-backed injectable.Dependencies collapsed to the one dependency
// this gateway actually has -- a *gateway.Controller.
package router

import (
	"github.com/bravo68web/githttpgw/internal/gateway"
	"github.com/bravo68web/githttpgw/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

// New builds a gin.Engine with the gateway's full middleware stack and
// routes, ready to ListenAndServe.
func New(controller *gateway.Controller, corsOrigins []string) *gin.Engine {
	engine := gin.New()

	engine.Use(middleware.RecoveryMiddleware())
	engine.Use(middleware.LoggerMiddleware())
	engine.Use(middleware.CORSMiddleware(corsOrigins))

	registerHealthRoutes(engine)
	registerGitRoutes(engine, controller)

	return engine
}
