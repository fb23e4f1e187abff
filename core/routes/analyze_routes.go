package routes

import (
	"pharmaguard/core/controllers"
	"pharmaguard/core/services"

	"github.com/gin-gonic/gin"
)

func SetupAnalyzeRoutes(svc services.AnalyzeSvc, maxBytes int64) Mount {
	ctrl := controllers.NewAnalyzeCtrl(svc, maxBytes)

	return func(analyzeGroup *gin.RouterGroup) {
		analyzeGroup.POST("", ctrl.Analyze)
		analyzeGroup.POST("/", ctrl.Analyze)
		analyzeGroup.GET("/drugs", ctrl.ListDrugs)
		analyzeGroup.GET("/:analysis_id", ctrl.GetAnalysis)
		analyzeGroup.DELETE("/:analysis_id", ctrl.PurgeAnalysis)
	}
}
