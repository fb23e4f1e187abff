package routes

import (
	"pharmaguard/core/controllers"
	"pharmaguard/core/repositories"
	"pharmaguard/core/services"

	"github.com/gin-gonic/gin"
)

func SetupSysRoutes(drugCount int) Mount {
	repo := repositories.NewSysRepo()
	svc := services.NewSysSvc(repo, drugCount)
	ctrl := controllers.NewSysCtrl(svc)

	return func(rg *gin.RouterGroup) {
		sysGroup := rg.Group("/system")
		{
			sysGroup.GET("/info", ctrl.GetInfo)
		}
	}
}
