package dtos

type RiskAssessment struct {
	RiskLabel       string  `json:"risk_label"`
	ConfidenceScore float64 `json:"confidence_score"`
	Severity        string  `json:"severity"`
}

type DetectedVariant struct {
	RSID       string `json:"rsid"`
	Gene       string `json:"gene"`
	StarAllele string `json:"star_allele"`
	Chrom      string `json:"chrom"`
	Pos        int    `json:"pos"`
	Ref        string `json:"ref"`
	Alt        string `json:"alt"`
	Genotype   string `json:"genotype"`
	Copies     int    `json:"copies"`
}

type PharmacogenomicProfile struct {
	PrimaryGene      string            `json:"primary_gene"`
	Diplotype        string            `json:"diplotype"`
	Phenotype        string            `json:"phenotype"`
	ActivityScore    *float64          `json:"activity_score"`
	DetectedVariants []DetectedVariant `json:"detected_variants"`
	DecisionTrace    []string          `json:"decision_trace"`
}

type ClinicalRecommendation struct {
	Text          string `json:"text"`
	Action        string `json:"action"`
	CPICGuideline string `json:"cpic_guideline"`
}

type Explanation struct {
	Summary   string   `json:"summary"`
	Mechanism string   `json:"mechanism"`
	Evidence  string   `json:"evidence"`
	Citations []string `json:"citations"`
	Source    string   `json:"source"`
}

type QualityMetrics struct {
	VCFParsingSuccess      bool `json:"vcf_parsing_success"`
	TotalRecords           int  `json:"total_records"`
	PharmacogenomicRecords int  `json:"pharmacogenomic_records"`
	UnresolvedRecords      int  `json:"unresolved_records"`
	GeneCovered            bool `json:"gene_covered"`
}

// DrugResult is the per-drug payload returned by /analyze and accepted by /report.
type DrugResult struct {
	AnalysisID              string                 `json:"analysis_id,omitempty"`
	PatientID               string                 `json:"patient_id"`
	Drug                    string                 `json:"drug"`
	Timestamp               string                 `json:"timestamp"`
	RiskAssessment          RiskAssessment         `json:"risk_assessment"`
	PharmacogenomicProfile  PharmacogenomicProfile `json:"pharmacogenomic_profile"`
	ClinicalRecommendation  ClinicalRecommendation `json:"clinical_recommendation"`
	LLMGeneratedExplanation Explanation            `json:"llm_generated_explanation"`
	DrugLevelInterpretation string                 `json:"drug_level_interpretation"`
	QualityMetrics          QualityMetrics         `json:"quality_metrics"`
}

type DrugInfo struct {
	Drug      string `json:"drug"`
	Gene      string `json:"gene"`
	Guideline string `json:"cpic_guideline"`
}

type PurgeRes struct {
	Message string `json:"message"`
}

type ErrorRes struct {
	Detail string `json:"detail"`
}
