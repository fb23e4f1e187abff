package controllers

import (
	"errors"
	"net/http"

	"pharmaguard/core/dtos"
	"pharmaguard/core/repositories"
	"pharmaguard/core/services"

	"github.com/gin-gonic/gin"
)

func abortWithDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, dtos.ErrorRes{Detail: detail})
}

// abortWithError maps service errors onto HTTP statuses. Internal failures
// are recorded on the context for the request logger and hidden from the
// client.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNoDrugs),
		errors.Is(err, services.ErrUnsupportedDrug),
		errors.Is(err, services.ErrInvalidVCF),
		errors.Is(err, services.ErrNoResults):
		abortWithDetail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, repositories.ErrNotFound):
		abortWithDetail(c, http.StatusNotFound, "Analysis not found")
	default:
		_ = c.Error(err)
		abortWithDetail(c, http.StatusInternalServerError, "Internal server error")
	}
}
