package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/josuedeavila/productbg/middleware"
)

// NewRouter wires the routes and middleware of the service.
func NewRouter(h *RemoveHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	r.GET("/", h.Status)
	r.GET("/health", h.Health)
	r.POST("/remove-bg", h.RemoveBackground)

	return r
}
