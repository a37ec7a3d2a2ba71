package api

import (
	"github.com/gin-gonic/gin"

	"github.com/use-agent/pagemd/api/handler"
	"github.com/use-agent/pagemd/api/middleware"
	"github.com/use-agent/pagemd/config"
)

// NewRouter creates a configured Gin engine.
//
// Middleware chain: Recovery → RequestLog.
//
// POST /convert is the only route. There is no authentication or rate
// limiting.
func NewRouter(conv handler.Converter, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLog())

	r.POST("/convert", handler.Convert(conv, cfg.Converter))

	return r
}
