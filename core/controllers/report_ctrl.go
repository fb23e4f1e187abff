package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"pharmaguard/core/dtos"
	"pharmaguard/core/services"

	"github.com/gin-gonic/gin"
)

const (
	pdfFileName  = "clinical_report.pdf"
	xlsxFileName = "pharmaguard_results.xlsx"
	jsonFileName = "pharmaguard_results.json"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type ReportCtrl struct {
	svc      services.ReportSvc
	analyses services.AnalyzeSvc
}

func NewReportCtrl(s services.ReportSvc, analyses services.AnalyzeSvc) *ReportCtrl {
	return &ReportCtrl{svc: s, analyses: analyses}
}

func (ctrl *ReportCtrl) PDF(c *gin.Context) {
	results, ok := bindResults(c)
	if !ok {
		return
	}
	ctrl.writePDF(c, results)
}

func (ctrl *ReportCtrl) XLSX(c *gin.Context) {
	results, ok := bindResults(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := ctrl.svc.WriteXLSX(&buf, results); err != nil {
		abortWithError(c, err)
		return
	}
	attachment(c, xlsxFileName)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (ctrl *ReportCtrl) StoredPDF(c *gin.Context) {
	results, err := ctrl.analyses.GetAnalysis(c.Request.Context(), c.Param("analysis_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	ctrl.writePDF(c, results)
}

func (ctrl *ReportCtrl) StoredJSON(c *gin.Context) {
	results, err := ctrl.analyses.GetAnalysis(c.Request.Context(), c.Param("analysis_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	attachment(c, jsonFileName)
	c.IndentedJSON(http.StatusOK, results)
}

func (ctrl *ReportCtrl) writePDF(c *gin.Context, results []dtos.DrugResult) {
	var buf bytes.Buffer
	if err := ctrl.svc.WritePDF(&buf, results); err != nil {
		abortWithError(c, err)
		return
	}
	attachment(c, pdfFileName)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// bindResults accepts either the full result array or a single result object.
func bindResults(c *gin.Context) ([]dtos.DrugResult, bool) {
	raw, err := c.GetRawData()
	if err != nil {
		abortWithDetail(c, http.StatusBadRequest, "Could not read request body")
		return nil, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		abortWithError(c, services.ErrNoResults)
		return nil, false
	}

	var results []dtos.DrugResult
	if raw[0] == '[' {
		err = json.Unmarshal(raw, &results)
	} else {
		var one dtos.DrugResult
		if err = json.Unmarshal(raw, &one); err == nil {
			results = []dtos.DrugResult{one}
		}
	}
	if err != nil {
		abortWithDetail(c, http.StatusBadRequest, "Invalid analysis results: "+err.Error())
		return nil, false
	}
	if len(results) == 0 {
		abortWithError(c, services.ErrNoResults)
		return nil, false
	}
	return results, true
}

func attachment(c *gin.Context, name string) {
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
}
