package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pharmaguard/core/dtos"
	"pharmaguard/core/knowledge"

	"golang.org/x/time/rate"
)

const (
	SourceTemplate = "template"
	SourceLLM      = "llm"

	cpicURL = "https://cpicpgx.org/guidelines/"
)

// Explainer produces the narrative attached to a drug result.
type Explainer interface {
	Explain(ctx context.Context, r dtos.DrugResult) (dtos.Explanation, error)
}

type templateExplainer struct {
	kb *knowledge.Base
}

func NewTemplateExplainer(kb *knowledge.Base) Explainer {
	return &templateExplainer{kb: kb}
}

func (e *templateExplainer) Explain(_ context.Context, r dtos.DrugResult) (dtos.Explanation, error) {
	p := r.PharmacogenomicProfile
	drug, _ := e.kb.Drug(r.Drug)

	var summary string
	if p.Phenotype == knowledge.PhenotypeUnknown {
		summary = fmt.Sprintf("The %s diplotype %s includes alleles of unknown function, so a phenotype could not be assigned. %s",
			p.PrimaryGene, p.Diplotype, r.ClinicalRecommendation.Text)
	} else {
		score := "n/a"
		if p.ActivityScore != nil {
			score = formatScore(*p.ActivityScore)
		}
		summary = fmt.Sprintf("The patient carries %s %s (activity score %s), consistent with a %s phenotype. For %s: %s %s",
			p.PrimaryGene, p.Diplotype, score, PhenotypeLabel(p.PrimaryGene, p.Phenotype),
			strings.ToLower(r.Drug), r.DrugLevelInterpretation, r.ClinicalRecommendation.Text)
	}

	evidence := fmt.Sprintf("Assessment follows %s.", drug.Guideline)
	if len(p.DetectedVariants) > 0 {
		evidence += " Supporting variants: " + describeVariants(p.DetectedVariants) + "."
	} else {
		evidence += " No actionable variants were detected in " + p.PrimaryGene + "."
	}

	return dtos.Explanation{
		Summary:   summary,
		Mechanism: drug.Mechanism,
		Evidence:  evidence,
		Citations: []string{drug.Guideline, cpicURL, "https://www.pharmgkb.org/gene/" + p.PrimaryGene},
		Source:    SourceTemplate,
	}, nil
}

// PhenotypeLabel spells out a phenotype code for narrative text.
func PhenotypeLabel(gene, phenotype string) string {
	if gene == "SLCO1B1" {
		switch phenotype {
		case "PM":
			return "poor function"
		case "IM":
			return "decreased function"
		case "NM":
			return "normal function"
		}
	}
	switch phenotype {
	case "PM":
		return "poor metabolizer"
	case "IM":
		return "intermediate metabolizer"
	case "NM":
		return "normal metabolizer"
	case "RM":
		return "rapid metabolizer"
	case "UM":
		return "ultra-rapid metabolizer"
	}
	return "unknown"
}

// LLM explainer: OpenAI-compatible chat completions.

type LLMOptions struct {
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerMinute int
	MaxAttempts       int
	BaseRetryDelay    time.Duration
	MaxRetryDelay     time.Duration
}

type llmExplainer struct {
	opts    LLMOptions
	client  *http.Client
	limiter *rate.Limiter
}

type retryableError struct{ err error }

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

func NewLLMExplainer(opts LLMOptions) Explainer {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 30
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseRetryDelay == 0 {
		opts.BaseRetryDelay = 500 * time.Millisecond
	}
	if opts.MaxRetryDelay == 0 {
		opts.MaxRetryDelay = 5 * time.Second
	}
	return &llmExplainer{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), opts.RequestsPerMinute),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPrompt = "You are a clinical pharmacogenomics assistant. Explain the supplied CPIC-based result for a clinician. " +
	"Do not change the risk label or recommendation. Reply with a JSON object with string fields summary, mechanism, evidence " +
	"and an array of strings citations."

func (e *llmExplainer) Explain(ctx context.Context, r dtos.DrugResult) (dtos.Explanation, error) {
	facts, err := json.Marshal(struct {
		Drug           string                      `json:"drug"`
		Profile        dtos.PharmacogenomicProfile `json:"pharmacogenomic_profile"`
		Risk           dtos.RiskAssessment         `json:"risk_assessment"`
		Recommendation dtos.ClinicalRecommendation `json:"clinical_recommendation"`
		Interpretation string                      `json:"drug_level_interpretation"`
	}{r.Drug, r.PharmacogenomicProfile, r.RiskAssessment, r.ClinicalRecommendation, r.DrugLevelInterpretation})
	if err != nil {
		return dtos.Explanation{}, err
	}

	body, err := json.Marshal(chatRequest{
		Model: e.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(facts)},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return dtos.Explanation{}, err
	}

	var content string
	for attempt := 1; ; attempt++ {
		content, err = e.complete(ctx, body)
		if err == nil {
			break
		}
		var re retryableError
		if !errors.As(err, &re) || attempt >= e.opts.MaxAttempts {
			return dtos.Explanation{}, err
		}
		select {
		case <-ctx.Done():
			return dtos.Explanation{}, ctx.Err()
		case <-time.After(backoff(e.opts.BaseRetryDelay, e.opts.MaxRetryDelay, attempt)):
		}
	}

	var exp dtos.Explanation
	if err := json.Unmarshal([]byte(stripFences(content)), &exp); err != nil {
		return dtos.Explanation{}, fmt.Errorf("llm returned non-JSON explanation: %w", err)
	}
	if strings.TrimSpace(exp.Summary) == "" {
		return dtos.Explanation{}, errors.New("llm explanation has no summary")
	}
	if exp.Citations == nil {
		exp.Citations = []string{}
	}
	exp.Source = SourceLLM
	return exp, nil
}

func (e *llmExplainer) complete(ctx context.Context, body []byte) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}

	url := strings.TrimRight(e.opts.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.opts.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", retryableError{err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", retryableError{err}
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", retryableError{fmt.Errorf("llm status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", errors.New("llm response has no choices")
	}
	return cr.Choices[0].Message.Content, nil
}

// backoff returns base * 2^(attempt-1), capped at maxDelay.
func backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	if attempt > 16 {
		attempt = 16
	}
	d := base << uint(attempt-1)
	if d > maxDelay {
		d = maxDelay
	}
	return d
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
