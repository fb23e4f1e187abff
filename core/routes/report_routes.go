package routes

import (
	"pharmaguard/core/controllers"
	"pharmaguard/core/services"

	"github.com/gin-gonic/gin"
)

func SetupReportRoutes(analyses services.AnalyzeSvc) Mount {
	svc := services.NewReportSvc()
	ctrl := controllers.NewReportCtrl(svc, analyses)

	return func(reportGroup *gin.RouterGroup) {
		reportGroup.POST("", ctrl.PDF)
		reportGroup.POST("/", ctrl.PDF)
		reportGroup.POST("/pdf", ctrl.PDF)
		reportGroup.POST("/xlsx", ctrl.XLSX)
		reportGroup.GET("/:analysis_id/pdf", ctrl.StoredPDF)
		reportGroup.GET("/:analysis_id/json", ctrl.StoredJSON)
	}
}
