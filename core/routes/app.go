package routes

import (
	"pharmaguard/core/controllers"
	"pharmaguard/core/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Mount attaches a group of handlers to the router group it is given.
type Mount func(rg *gin.RouterGroup)

// NewApp builds the HTTP application: CORS first, then the analyze and
// report groups under their prefixes, any extra mounts on the root, and
// finally the health routes.
func NewApp(log *logrus.Logger, analyze, report Mount, extra ...Mount) *gin.Engine {
	router := gin.New()
	router.Use(middleware.CORS(log), middleware.RequestLogger(log), gin.Recovery())

	analyze(router.Group("/analyze"))
	report(router.Group("/report"))
	for _, m := range extra {
		m(&router.RouterGroup)
	}

	router.GET("/", controllers.Root)
	router.GET("/healthz", controllers.Healthz)
	return router
}
