package services

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"pharmaguard/core/dtos"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
)

var ErrNoResults = errors.New("no results to report")

const disclaimer = "This report supports, and does not replace, clinical judgement. " +
	"Recommendations are derived from CPIC guidelines for the variants present in the supplied VCF."

type ReportSummary struct {
	Total    int
	Safe     int
	Adjust   int
	HighRisk int
	Unknown  int
}

// Summarize counts results by risk label; Toxic and Ineffective are both high risk.
func Summarize(results []dtos.DrugResult) ReportSummary {
	s := ReportSummary{Total: len(results)}
	for _, r := range results {
		switch r.RiskAssessment.RiskLabel {
		case "Safe":
			s.Safe++
		case "Adjust Dosage":
			s.Adjust++
		case "Toxic", "Ineffective":
			s.HighRisk++
		default:
			s.Unknown++
		}
	}
	return s
}

type ReportSvc interface {
	WritePDF(w io.Writer, results []dtos.DrugResult) error
	WriteXLSX(w io.Writer, results []dtos.DrugResult) error
}

type reportSvcImpl struct {
	now func() time.Time
}

func NewReportSvc() ReportSvc {
	return &reportSvcImpl{now: time.Now}
}

func (s *reportSvcImpl) WritePDF(w io.Writer, results []dtos.DrugResult) error {
	if len(results) == 0 {
		return ErrNoResults
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("PharmaGuard Clinical Report", true)
	pdf.SetCreator("PharmaGuard", true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 7)
		pdf.SetTextColor(120, 120, 120)
		pdf.MultiCell(0, 3.5, tr(disclaimer), "", "C", false)
		pdf.CellFormat(0, 4, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(20, 40, 80)
	pdf.CellFormat(0, 10, "PharmaGuard Clinical Pharmacogenomic Report", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, tr("Patient: "+results[0].PatientID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Generated: "+s.now().UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	sum := Summarize(results)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 240, 248)
	for _, cell := range []string{
		fmt.Sprintf("Analyzed: %d", sum.Total),
		fmt.Sprintf("Safe: %d", sum.Safe),
		fmt.Sprintf("Adjust Dose: %d", sum.Adjust),
		fmt.Sprintf("High Risk: %d", sum.HighRisk),
	} {
		pdf.CellFormat(45, 8, cell, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(12)

	for _, r := range results {
		writeDrugSection(pdf, tr, r)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func writeDrugSection(pdf *fpdf.Fpdf, tr func(string) string, r dtos.DrugResult) {
	p := r.PharmacogenomicProfile
	red, green, blue := riskColor(r.RiskAssessment.RiskLabel)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(20, 40, 80)
	pdf.CellFormat(120, 8, tr(r.Drug), "B", 0, "L", false, 0, "")
	pdf.SetTextColor(red, green, blue)
	pdf.CellFormat(0, 8, tr(orDash(r.RiskAssessment.RiskLabel)), "B", 1, "R", false, 0, "")
	pdf.Ln(1)

	pdf.SetTextColor(40, 40, 40)
	score := "-"
	if p.ActivityScore != nil {
		score = formatScore(*p.ActivityScore)
	}
	rows := [][2]string{
		{"Primary gene", p.PrimaryGene},
		{"Diplotype", p.Diplotype},
		{"Phenotype", p.Phenotype},
		{"Activity score", score},
		{"Severity", r.RiskAssessment.Severity},
		{"Confidence", fmt.Sprintf("%.0f%%", r.RiskAssessment.ConfidenceScore*100)},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(40, 5.5, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 5.5, tr(orDash(row[1])), "", 1, "L", false, 0, "")
	}

	paragraph(pdf, tr, "Recommendation", r.ClinicalRecommendation.Text)
	paragraph(pdf, tr, "Interpretation", r.DrugLevelInterpretation)
	paragraph(pdf, tr, "Explanation", r.LLMGeneratedExplanation.Summary)
	if g := r.ClinicalRecommendation.CPICGuideline; g != "" {
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(100, 100, 100)
		pdf.MultiCell(0, 4, tr("Guideline: "+g), "", "L", false)
	}
	pdf.Ln(5)
}

func paragraph(pdf *fpdf.Fpdf, tr func(string) string, label, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	pdf.Ln(1)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(40, 40, 40)
	pdf.CellFormat(0, 5, label, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 4.5, tr(text), "", "L", false)
}

func riskColor(label string) (int, int, int) {
	switch label {
	case "Safe":
		return 30, 140, 70
	case "Adjust Dosage":
		return 200, 130, 0
	case "Toxic", "Ineffective":
		return 190, 30, 30
	}
	return 110, 110, 110
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

const (
	summarySheet  = "Results"
	variantsSheet = "Variants"
)

func (s *reportSvcImpl) WriteXLSX(w io.Writer, results []dtos.DrugResult) error {
	if len(results) == 0 {
		return ErrNoResults
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(variantsSheet); err != nil {
		return err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DCE6F1"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	summaryCols := []interface{}{"Patient", "Drug", "Risk", "Severity", "Confidence", "Gene", "Diplotype",
		"Phenotype", "Activity Score", "Recommendation", "Guideline", "Timestamp"}
	if err := writeRow(f, summarySheet, 1, summaryCols); err != nil {
		return err
	}
	variantCols := []interface{}{"Patient", "Drug", "Gene", "rsID", "Star Allele", "Chrom", "Pos", "Ref", "Alt", "Genotype"}
	if err := writeRow(f, variantsSheet, 1, variantCols); err != nil {
		return err
	}

	vRow := 2
	for i, r := range results {
		p := r.PharmacogenomicProfile
		var score interface{} = ""
		if p.ActivityScore != nil {
			score = *p.ActivityScore
		}
		row := []interface{}{r.PatientID, r.Drug, r.RiskAssessment.RiskLabel, r.RiskAssessment.Severity,
			r.RiskAssessment.ConfidenceScore, p.PrimaryGene, p.Diplotype, p.Phenotype, score,
			r.ClinicalRecommendation.Text, r.ClinicalRecommendation.CPICGuideline, r.Timestamp}
		if err := writeRow(f, summarySheet, i+2, row); err != nil {
			return err
		}
		for _, v := range p.DetectedVariants {
			vr := []interface{}{r.PatientID, r.Drug, v.Gene, v.RSID, v.StarAllele, v.Chrom, v.Pos, v.Ref, v.Alt, v.Genotype}
			if err := writeRow(f, variantsSheet, vRow, vr); err != nil {
				return err
			}
			vRow++
		}
	}

	for sheet, cols := range map[string]int{summarySheet: len(summaryCols), variantsSheet: len(variantCols)} {
		last, _ := excelize.CoordinatesToCellName(cols, 1)
		if err := f.SetCellStyle(sheet, "A1", last, header); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(summarySheet, "J", "K", 60); err != nil {
		return err
	}
	return f.Write(w)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
