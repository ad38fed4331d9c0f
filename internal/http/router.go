package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yachttime/qbconnect/internal/config"
	"github.com/yachttime/qbconnect/internal/custody"
	"github.com/yachttime/qbconnect/internal/http/handler"
	httpmiddleware "github.com/yachttime/qbconnect/internal/http/middleware"
	"github.com/yachttime/qbconnect/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, qbHandler *handler.QuickBooksHandler, custodyHandler *custody.Handler, gate *httpmiddleware.Gate) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	r.Use(middleware.CORS())
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.POST("/quickbooks", gate.RequireAdmin, qbHandler.Handle)
	r.POST("/token-custody", custodyHandler.Handle)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
