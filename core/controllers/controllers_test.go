package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"pharmaguard/core/dtos"
	"pharmaguard/core/knowledge"
	"pharmaguard/core/repositories"
	"pharmaguard/core/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleVCF = "##fileformat=VCFv4.2\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tPATIENT_042\n" +
	"chr22\t42128945\trs3892097\tC\tT\t.\tPASS\tGENE=CYP2D6;STAR=*4\tGT\t0/1\n"

func newAnalyzeSvc(t *testing.T) services.AnalyzeSvc {
	t.Helper()
	kb, err := knowledge.Default()
	require.NoError(t, err)
	log, _ := test.NewNullLogger()
	return services.NewAnalyzeSvc(services.AnalyzeDeps{
		Knowledge: kb,
		Repo:      repositories.NewMemAnalyzeRepo(),
		Log:       log,
	})
}

func newRouter(t *testing.T, maxBytes int64) (*gin.Engine, services.AnalyzeSvc) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := newAnalyzeSvc(t)
	analyze := NewAnalyzeCtrl(svc, maxBytes)
	report := NewReportCtrl(services.NewReportSvc(), svc)

	r := gin.New()
	r.POST("/analyze", analyze.Analyze)
	r.GET("/analyze/drugs", analyze.ListDrugs)
	r.GET("/analyze/:analysis_id", analyze.GetAnalysis)
	r.DELETE("/analyze/:analysis_id", analyze.PurgeAnalysis)
	r.POST("/report", report.PDF)
	r.POST("/report/xlsx", report.XLSX)
	r.GET("/report/:analysis_id/pdf", report.StoredPDF)
	r.GET("/report/:analysis_id/json", report.StoredJSON)
	return r, svc
}

func uploadRequest(t *testing.T, name string, content []byte, drugs ...string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	for _, d := range drugs {
		require.NoError(t, mw.WriteField("drugs", d))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func detailOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var res dtos.ErrorRes
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.Detail
}

func TestAnalyzeLifecycle(t *testing.T) {
	r, _ := newRouter(t, 5<<20)

	w := serve(r, uploadRequest(t, "patient.VCF", []byte(sampleVCF), "codeine, warfarin"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := w.Header().Get("X-Analysis-ID")
	require.NotEmpty(t, id)

	var results []dtos.DrugResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "CODEINE", results[0].Drug)
	assert.Equal(t, "PATIENT_042", results[0].PatientID)
	assert.Equal(t, "*1/*4", results[0].PharmacogenomicProfile.Diplotype)
	assert.Equal(t, "IM", results[0].PharmacogenomicProfile.Phenotype)
	assert.Equal(t, "Adjust Dosage", results[0].RiskAssessment.RiskLabel)
	assert.Equal(t, "WARFARIN", results[1].Drug)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/analyze/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var stored []dtos.DrugResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	assert.Equal(t, results, stored)

	w = serve(r, httptest.NewRequest(http.MethodDelete, "/analyze/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "purged")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/analyze/"+id, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Analysis not found", detailOf(t, w))

	w = serve(r, httptest.NewRequest(http.MethodDelete, "/analyze/"+id, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	r, _ := newRouter(t, 1024)

	tests := []struct {
		name   string
		req    *http.Request
		status int
		detail string
	}{
		{"no file", uploadRequest(t, "", nil, "CODEINE"), http.StatusBadRequest, "No VCF file uploaded"},
		{"wrong extension", uploadRequest(t, "notes.txt", []byte(sampleVCF), "CODEINE"), http.StatusBadRequest, "Unsupported file type"},
		{"empty file", uploadRequest(t, "empty.vcf", nil, "CODEINE"), http.StatusBadRequest, "empty"},
		{"too large", uploadRequest(t, "big.vcf", bytes.Repeat([]byte("#"), 2048), "CODEINE"), http.StatusRequestEntityTooLarge, "upload limit"},
		{"no drugs", uploadRequest(t, "patient.vcf", []byte(sampleVCF)), http.StatusBadRequest, "at least one drug"},
		{"unsupported drug", uploadRequest(t, "patient.vcf", []byte(sampleVCF), "ASPIRIN"), http.StatusBadRequest, "Supported drugs: "},
		{"not a vcf", uploadRequest(t, "patient.vcf", []byte("hello world\n"), "CODEINE"), http.StatusBadRequest, "invalid VCF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.req)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, detailOf(t, w), tt.detail)
			assert.Empty(t, w.Header().Get("X-Analysis-ID"))
		})
	}
}

func TestListDrugs(t *testing.T) {
	r, _ := newRouter(t, 5<<20)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/analyze/drugs", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var drugs []dtos.DrugInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &drugs))
	require.Len(t, drugs, 6)
	assert.Equal(t, dtos.DrugInfo{Drug: "CODEINE", Gene: "CYP2D6", Guideline: drugs[0].Guideline}, drugs[0])
}

func analyzed(t *testing.T, svc services.AnalyzeSvc) (string, []dtos.DrugResult) {
	t.Helper()
	id, results, err := svc.Analyze(context.Background(), services.AnalyzeInput{
		FileName: "patient.vcf",
		Data:     []byte(sampleVCF),
		Drugs:    []string{"CODEINE", "SIMVASTATIN"},
	})
	require.NoError(t, err)
	return id, results
}

func TestReportFromBody(t *testing.T) {
	r, svc := newRouter(t, 5<<20)
	_, results := analyzed(t, svc)

	body, err := json.Marshal(results)
	require.NoError(t, err)
	w := serve(r, httptest.NewRequest(http.MethodPost, "/report", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="clinical_report.pdf"`, w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	single, err := json.Marshal(results[0])
	require.NoError(t, err)
	w = serve(r, httptest.NewRequest(http.MethodPost, "/report", bytes.NewReader(single)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodPost, "/report/xlsx", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), xlsxFileName)
	// xlsx is a zip container
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestReportRejectsBadBody(t *testing.T) {
	r, _ := newRouter(t, 5<<20)

	for _, body := range []string{"", "[]", "  ", "{not json", `[{"drug": 5}]`} {
		w := serve(r, httptest.NewRequest(http.MethodPost, "/report", bytes.NewBufferString(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.NotEmpty(t, detailOf(t, w))
	}
}

func TestStoredReports(t *testing.T) {
	r, svc := newRouter(t, 5<<20)
	id, results := analyzed(t, svc)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/report/"+id+"/pdf", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/report/"+id+"/json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="pharmaguard_results.json"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "\n    ")
	var got []dtos.DrugResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, results, got)

	for _, path := range []string{"/report/missing/pdf", "/report/missing/json"} {
		w = serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestHealthHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", Root)
	r.GET("/healthz", Healthz)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"message":"PharmaGuard running"}`, w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"status":"ok","service":"PharmaGuard"}`, w.Body.String())
}

func TestFormatMiB(t *testing.T) {
	assert.Equal(t, "5 MiB", formatMiB(5<<20))
	assert.Equal(t, "0.5 MiB", formatMiB(512<<10))
}
