package controllers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"pharmaguard/core/services"

	"github.com/gin-gonic/gin"
)

// multipartSlack covers boundaries and form fields around the file part.
const multipartSlack = 64 << 10

type AnalyzeCtrl struct {
	svc      services.AnalyzeSvc
	maxBytes int64
}

func NewAnalyzeCtrl(s services.AnalyzeSvc, maxBytes int64) *AnalyzeCtrl {
	return &AnalyzeCtrl{svc: s, maxBytes: maxBytes}
}

func (ctrl *AnalyzeCtrl) Analyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ctrl.maxBytes+multipartSlack)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithDetail(c, http.StatusRequestEntityTooLarge, ctrl.sizeDetail())
			return
		}
		abortWithDetail(c, http.StatusBadRequest, "No VCF file uploaded")
		return
	}

	if strings.ToLower(filepath.Ext(file.Filename)) != ".vcf" {
		abortWithDetail(c, http.StatusBadRequest, "Unsupported file type. Please upload a .vcf file.")
		return
	}
	if file.Size > ctrl.maxBytes {
		abortWithDetail(c, http.StatusRequestEntityTooLarge, ctrl.sizeDetail())
		return
	}
	if file.Size == 0 {
		abortWithDetail(c, http.StatusBadRequest, "Uploaded VCF file is empty")
		return
	}

	drugs, err := ctrl.svc.NormalizeDrugs(c.PostFormArray("drugs"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	f, err := file.Open()
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		abortWithError(c, err)
		return
	}

	id, results, err := ctrl.svc.Analyze(c.Request.Context(), services.AnalyzeInput{
		FileName: file.Filename,
		Data:     data,
		Drugs:    drugs,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header("X-Analysis-ID", id)
	c.JSON(http.StatusOK, results)
}

func (ctrl *AnalyzeCtrl) ListDrugs(c *gin.Context) {
	c.JSON(http.StatusOK, ctrl.svc.SupportedDrugs())
}

func (ctrl *AnalyzeCtrl) GetAnalysis(c *gin.Context) {
	results, err := ctrl.svc.GetAnalysis(c.Request.Context(), c.Param("analysis_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (ctrl *AnalyzeCtrl) PurgeAnalysis(c *gin.Context) {
	res, err := ctrl.svc.PurgeAnalysis(c.Request.Context(), c.Param("analysis_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (ctrl *AnalyzeCtrl) sizeDetail() string {
	return "VCF file exceeds the " + formatMiB(ctrl.maxBytes) + " upload limit"
}

func formatMiB(n int64) string {
	return strconv.FormatFloat(float64(n)/(1<<20), 'f', -1, 64) + " MiB"
}
