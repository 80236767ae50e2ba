// router.go - Route table

package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the gin engine with all API routes.
func NewRouter(h *Handler, allowedOrigins string, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log), CORS(allowedOrigins))
	router.MaxMultipartMemory = DefaultMaxUploadBytes

	router.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})
	router.GET("/health", h.Health)

	v1 := router.Group("/api/v1")
	v1.POST("/extract", h.Extract)
	v1.POST("/letter", h.Letter)
	v1.POST("/template", h.Template)
	v1.POST("/template/pdf", h.TemplatePDF)
	v1.GET("/extractions", h.ListExtractions)
	v1.GET("/extractions/export", h.ExportExtractions)
	v1.GET("/extractions/:id", h.GetExtraction)

	return router
}
