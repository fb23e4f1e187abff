package controllers

import (
	"net/http"

	"pharmaguard/core/dtos"
	"pharmaguard/core/services"

	"github.com/gin-gonic/gin"
)

const serviceName = "PharmaGuard"

type SysCtrl struct {
	svc services.SysSvc
}

func NewSysCtrl(s services.SysSvc) *SysCtrl {
	return &SysCtrl{svc: s}
}

func (ctrl *SysCtrl) GetInfo(c *gin.Context) {
	res := ctrl.svc.FetchInfo(c.Request.Context())
	c.JSON(http.StatusOK, res)
}

func Root(c *gin.Context) {
	c.JSON(http.StatusOK, dtos.RootRes{Message: serviceName + " running"})
}

func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, dtos.HealthRes{Status: "ok", Service: serviceName})
}
