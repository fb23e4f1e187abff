package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pharmaguard/core/dtos"
	"pharmaguard/core/knowledge"
	"pharmaguard/core/repositories"
	"pharmaguard/core/vcf"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoDrugs         = errors.New("at least one drug must be selected")
	ErrUnsupportedDrug = errors.New("unsupported drug")
	ErrInvalidVCF      = errors.New("invalid VCF file")
)

const (
	confidenceCalled    = 0.95
	confidenceReference = 0.6
	confidenceUnknown   = 0.4
)

type AnalyzeInput struct {
	FileName string
	Data     []byte
	Drugs    []string
}

type AnalyzeSvc interface {
	SupportedDrugs() []dtos.DrugInfo
	NormalizeDrugs(raw []string) ([]string, error)
	Analyze(ctx context.Context, in AnalyzeInput) (string, []dtos.DrugResult, error)
	GetAnalysis(ctx context.Context, id string) ([]dtos.DrugResult, error)
	PurgeAnalysis(ctx context.Context, id string) (dtos.PurgeRes, error)
}

type AnalyzeDeps struct {
	Knowledge *knowledge.Base
	Repo      repositories.AnalyzeRepo
	Cache     repositories.ResultCache
	Blobs     repositories.BlobStore
	Explainer Explainer
	Log       *logrus.Logger
	// Archive keeps the raw VCF in Blobs.
	Archive bool
}

type analyzeSvcImpl struct {
	kb        *knowledge.Base
	repo      repositories.AnalyzeRepo
	cache     repositories.ResultCache
	blobs     repositories.BlobStore
	explainer Explainer
	fallback  Explainer
	log       *logrus.Logger
	archive   bool
	now       func() time.Time
}

func NewAnalyzeSvc(d AnalyzeDeps) AnalyzeSvc {
	s := &analyzeSvcImpl{
		kb:        d.Knowledge,
		repo:      d.Repo,
		cache:     d.Cache,
		blobs:     d.Blobs,
		explainer: d.Explainer,
		fallback:  NewTemplateExplainer(d.Knowledge),
		log:       d.Log,
		archive:   d.Archive,
		now:       time.Now,
	}
	if s.cache == nil {
		s.cache = repositories.NewNoopCache()
	}
	if s.explainer == nil {
		s.explainer = s.fallback
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

func (s *analyzeSvcImpl) SupportedDrugs() []dtos.DrugInfo {
	out := make([]dtos.DrugInfo, 0, len(s.kb.Supported))
	for _, name := range s.kb.Supported {
		d, _ := s.kb.Drug(name)
		out = append(out, dtos.DrugInfo{Drug: d.Name, Gene: d.Gene, Guideline: d.Guideline})
	}
	return out
}

// NormalizeDrugs accepts repeated or comma-separated names, upper-cases
// them and drops duplicates while keeping the caller's order.
func (s *analyzeSvcImpl) NormalizeDrugs(raw []string) ([]string, error) {
	seen := make(map[string]bool)
	var drugs []string
	for _, entry := range raw {
		for _, name := range strings.Split(entry, ",") {
			name = strings.ToUpper(strings.TrimSpace(name))
			if name == "" || seen[name] {
				continue
			}
			if _, ok := s.kb.Drug(name); !ok {
				return nil, fmt.Errorf("%w: %s. Supported drugs: %s", ErrUnsupportedDrug, name, strings.Join(s.kb.Supported, ", "))
			}
			seen[name] = true
			drugs = append(drugs, name)
		}
	}
	if len(drugs) == 0 {
		return nil, ErrNoDrugs
	}
	return drugs, nil
}

func (s *analyzeSvcImpl) Analyze(ctx context.Context, in AnalyzeInput) (string, []dtos.DrugResult, error) {
	drugs, err := s.NormalizeDrugs(in.Drugs)
	if err != nil {
		return "", nil, err
	}

	sum := sha256.Sum256(in.Data)
	vcfHash := hex.EncodeToString(sum[:])
	cacheKey := repositories.CacheKey(vcfHash, drugs)
	id := uuid.New().String()
	entry := s.log.WithFields(logrus.Fields{"analysis_id": id, "drugs": drugs})

	results, hit, err := s.cache.Get(ctx, cacheKey)
	if err != nil {
		entry.Warnf("cache lookup failed: %v", err)
	}
	if hit {
		entry.Info("serving analysis from cache")
		ts := s.now().UTC().Format(time.RFC3339)
		for i := range results {
			results[i].AnalysisID = id
			results[i].Timestamp = ts
		}
	} else {
		results, err = s.run(ctx, id, in.Data, drugs)
		if err != nil {
			return "", nil, err
		}
	}

	blobKey := ""
	if s.archive && s.blobs != nil {
		key := id + ".vcf"
		if err := s.blobs.Put(ctx, key, bytes.NewReader(in.Data), int64(len(in.Data)), "text/x-vcf"); err != nil {
			entry.Warnf("archiving upload failed: %v", err)
		} else {
			blobKey = key
		}
	}

	patientID := ""
	if len(results) > 0 {
		patientID = results[0].PatientID
	}
	err = s.repo.CreateAnalysis(ctx, repositories.Analysis{
		ID:        id,
		PatientID: patientID,
		VCFHash:   vcfHash,
		CacheKey:  cacheKey,
		BlobKey:   blobKey,
		CreatedAt: s.now().UTC(),
		Results:   results,
	})
	if err != nil {
		if blobKey != "" {
			if derr := s.blobs.Delete(ctx, blobKey); derr != nil {
				entry.Warnf("could not remove archived upload %s: %v", blobKey, derr)
			}
		}
		return "", nil, fmt.Errorf("store analysis: %w", err)
	}

	if !hit {
		if err := s.cache.Set(ctx, cacheKey, results); err != nil {
			entry.Warnf("cache store failed: %v", err)
		}
	}
	entry.WithField("patient_id", patientID).Info("analysis completed")
	return id, results, nil
}

func (s *analyzeSvcImpl) run(ctx context.Context, id string, data []byte, drugs []string) ([]dtos.DrugResult, error) {
	f, err := vcf.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVCF, err)
	}
	idx := indexGenotypes(s.kb, f)
	patientID := patientIDFor(f)
	ts := s.now().UTC().Format(time.RFC3339)

	results := make([]dtos.DrugResult, len(drugs))
	for i, name := range drugs {
		drug, _ := s.kb.Drug(name)
		results[i] = s.assess(drug, idx)
		results[i].AnalysisID = id
		results[i].PatientID = patientID
		results[i].Timestamp = ts
	}
	s.explain(ctx, results)
	return results, nil
}

func (s *analyzeSvcImpl) assess(drug knowledge.Drug, idx genotypeIndex) dtos.DrugResult {
	gene, _ := s.kb.Gene(drug.Gene)
	variants := idx.variants[gene.Name]
	trace := []string{fmt.Sprintf("Primary gene for %s: %s", drug.Name, gene.Name)}

	// Reference-only calls are observed genotypes and keep full confidence.
	confidence := confidenceCalled
	unmapped := idx.unmapped[gene.Name]
	switch {
	case len(variants) > 0:
		trace = append(trace, fmt.Sprintf("Detected %d variant(s) in %s: %s", len(variants), gene.Name, describeVariants(variants)))
	case unmapped > 0:
		// reported below
	case idx.covered[gene.Name]:
		trace = append(trace, fmt.Sprintf("%s records present with reference genotypes only", gene.Name))
	default:
		confidence = confidenceReference
		trace = append(trace, fmt.Sprintf("No %s records in VCF; assuming reference diplotype", gene.Name))
	}
	if unmapped > 0 {
		confidence = confidenceReference
		trace = append(trace, fmt.Sprintf("%d alt call(s) in %s could not be mapped to a star allele; assuming reference", unmapped, gene.Name))
	}

	alleles := callDiplotype(gene, variants)
	diplotype := strings.Join(alleles, "/")
	trace = append(trace, "Called diplotype "+diplotype)

	score, unknown := activityScore(gene, alleles)
	phenotype := knowledge.PhenotypeUnknown
	var activity *float64
	if len(unknown) > 0 {
		confidence = confidenceUnknown
		trace = append(trace, fmt.Sprintf("No function value for allele(s) %s; phenotype cannot be assigned", strings.Join(unknown, ", ")))
	} else {
		activity = &score
		phenotype = gene.Phenotype(score)
		trace = append(trace,
			fmt.Sprintf("Activity score %s (%s)", formatScore(score), describeScore(gene, alleles)),
			fmt.Sprintf("Activity score %s maps to phenotype %s", formatScore(score), phenotype))
	}

	rule := drug.Rule(phenotype)
	trace = append(trace, fmt.Sprintf("Rule for %s %s: %s (%s)", drug.Name, phenotype, rule.Risk, rule.Severity))

	if variants == nil {
		variants = []dtos.DetectedVariant{}
	}
	return dtos.DrugResult{
		Drug: drug.Name,
		RiskAssessment: dtos.RiskAssessment{
			RiskLabel:       rule.Risk,
			ConfidenceScore: confidence,
			Severity:        rule.Severity,
		},
		PharmacogenomicProfile: dtos.PharmacogenomicProfile{
			PrimaryGene:      gene.Name,
			Diplotype:        diplotype,
			Phenotype:        phenotype,
			ActivityScore:    activity,
			DetectedVariants: variants,
			DecisionTrace:    trace,
		},
		ClinicalRecommendation: dtos.ClinicalRecommendation{
			Text:          rule.Recommendation,
			Action:        rule.Action,
			CPICGuideline: drug.Guideline,
		},
		DrugLevelInterpretation: rule.Interpretation,
		QualityMetrics: dtos.QualityMetrics{
			VCFParsingSuccess:      true,
			TotalRecords:           idx.total,
			PharmacogenomicRecords: idx.pgx,
			UnresolvedRecords:      idx.unresolved,
			GeneCovered:            idx.covered[gene.Name],
		},
	}
}

func describeScore(gene knowledge.Gene, alleles []string) string {
	parts := make([]string, 0, len(alleles))
	for _, a := range alleles {
		v, _ := gene.AlleleValue(a)
		parts = append(parts, a+"="+formatScore(v))
	}
	return strings.Join(parts, " + ")
}

// explain fills in explanations concurrently, one goroutine per drug.
func (s *analyzeSvcImpl) explain(ctx context.Context, results []dtos.DrugResult) {
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(r *dtos.DrugResult) {
			defer wg.Done()
			exp, err := s.explainer.Explain(ctx, *r)
			if err != nil {
				s.log.WithField("drug", r.Drug).Warnf("explanation failed, using template: %v", err)
				exp, _ = s.fallback.Explain(ctx, *r)
			}
			r.LLMGeneratedExplanation = exp
		}(&results[i])
	}
	wg.Wait()
}

func (s *analyzeSvcImpl) GetAnalysis(ctx context.Context, id string) ([]dtos.DrugResult, error) {
	a, err := s.repo.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.Results, nil
}

func (s *analyzeSvcImpl) PurgeAnalysis(ctx context.Context, id string) (dtos.PurgeRes, error) {
	a, err := s.repo.GetAnalysis(ctx, id)
	if err != nil {
		return dtos.PurgeRes{}, err
	}
	if err := s.repo.DeleteAnalysis(ctx, id); err != nil {
		return dtos.PurgeRes{}, err
	}

	entry := s.log.WithField("analysis_id", id)
	if a.CacheKey != "" {
		if err := s.cache.Delete(ctx, a.CacheKey); err != nil {
			entry.Warnf("could not evict cache entry: %v", err)
		}
	}
	if a.BlobKey != "" && s.blobs != nil {
		if err := s.blobs.Delete(ctx, a.BlobKey); err != nil {
			entry.Warnf("could not delete archived upload %s: %v", a.BlobKey, err)
		}
	}
	entry.Info("analysis purged")
	return dtos.PurgeRes{Message: "Analysis purged successfully."}, nil
}

func patientIDFor(f *vcf.File) string {
	if len(f.Samples) > 0 && strings.TrimSpace(f.Samples[0]) != "" {
		return strings.TrimSpace(f.Samples[0])
	}
	short := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return "PATIENT_" + strings.ToUpper(short)
}
