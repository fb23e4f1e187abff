package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// AllowedOrigins are the frontends permitted to call the API with credentials.
var AllowedOrigins = []string{
	"https://pharma-guard-ai-rho.vercel.app", // production frontend
	"http://localhost:3000",
	"http://localhost:3001",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:3001",
}

var allMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
	http.MethodConnect,
	http.MethodTrace,
}

// CORS applies the origin allow-list. Requests from other origins are still
// served, just without Access-Control-Allow-Origin, leaving rejection to the
// browser.
func CORS(log *logrus.Logger) gin.HandlerFunc {
	opts := cors.Options{
		AllowedOrigins:   AllowedOrigins,
		AllowedMethods:   allMethods,
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Analysis-ID", "Content-Disposition"},
		AllowCredentials: true,
	}
	if log != nil && log.IsLevelEnabled(logrus.DebugLevel) {
		opts.Debug = true
		opts.Logger = log
	}
	c := cors.New(opts)

	return func(ctx *gin.Context) {
		c.HandlerFunc(ctx.Writer, ctx.Request)
		if ctx.Request.Method == http.MethodOptions && ctx.GetHeader("Access-Control-Request-Method") != "" {
			// preflight answered by cors
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
