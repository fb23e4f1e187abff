// Package knowledge holds the gene and drug rules used to turn called
// diplotypes into phenotypes and prescribing guidance.
package knowledge

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

const (
	PhenotypeUnknown = "Unknown"
	RiskUnknown      = "Unknown"
	SeverityUnknown  = "unknown"
)

type Threshold struct {
	Max       float64 `yaml:"max"`
	Phenotype string  `yaml:"phenotype"`
}

type Gene struct {
	Name       string             `yaml:"-"`
	Alleles    map[string]float64 `yaml:"alleles"`
	RSIDs      map[string]string  `yaml:"rsids"`
	Phenotypes []Threshold        `yaml:"phenotypes"`
	Above      string             `yaml:"above"`
}

// Phenotype maps an activity score onto the gene's metabolizer class.
func (g Gene) Phenotype(score float64) string {
	for _, t := range g.Phenotypes {
		if score <= t.Max {
			return t.Phenotype
		}
	}
	return g.Above
}

func (g Gene) AlleleValue(star string) (float64, bool) {
	v, ok := g.Alleles[star]
	return v, ok
}

type Rule struct {
	Risk           string `yaml:"risk"`
	Severity       string `yaml:"severity"`
	Action         string `yaml:"action"`
	Recommendation string `yaml:"recommendation"`
	Interpretation string `yaml:"interpretation"`
}

type Drug struct {
	Name      string          `yaml:"-"`
	Gene      string          `yaml:"gene"`
	Guideline string          `yaml:"guideline"`
	Mechanism string          `yaml:"mechanism"`
	Rules     map[string]Rule `yaml:"rules"`
}

// Rule returns the guidance for a phenotype. Phenotypes without a rule
// yield an Unknown risk.
func (d Drug) Rule(phenotype string) Rule {
	if r, ok := d.Rules[phenotype]; ok {
		return r
	}
	return Rule{
		Risk:           RiskUnknown,
		Severity:       SeverityUnknown,
		Action:         "consult",
		Recommendation: fmt.Sprintf("Insufficient pharmacogenomic evidence for %s; follow standard clinical judgement.", strings.ToLower(d.Name)),
		Interpretation: fmt.Sprintf("The %s phenotype could not be determined from the supplied variants.", d.Gene),
	}
}

type Base struct {
	Supported []string        `yaml:"supported"`
	Genes     map[string]Gene `yaml:"genes"`
	Drugs     map[string]Drug `yaml:"drugs"`

	rsIndex map[string]rsEntry
}

type rsEntry struct {
	gene string
	star string
}

// Default parses the embedded rule set.
func Default() (*Base, error) {
	return Parse(rulesYAML)
}

func Parse(data []byte) (*Base, error) {
	var b Base
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("knowledge: parse rules: %w", err)
	}

	b.rsIndex = make(map[string]rsEntry)
	for name, g := range b.Genes {
		g.Name = name
		b.Genes[name] = g
		for rs, star := range g.RSIDs {
			b.rsIndex[strings.ToLower(rs)] = rsEntry{gene: name, star: star}
		}
	}
	for name, d := range b.Drugs {
		if _, ok := b.Genes[d.Gene]; !ok {
			return nil, fmt.Errorf("knowledge: drug %s references unknown gene %s", name, d.Gene)
		}
		d.Name = name
		b.Drugs[name] = d
	}
	for _, name := range b.Supported {
		if _, ok := b.Drugs[name]; !ok {
			return nil, fmt.Errorf("knowledge: supported drug %s has no rules", name)
		}
	}
	return &b, nil
}

func (b *Base) Drug(name string) (Drug, bool) {
	d, ok := b.Drugs[strings.ToUpper(strings.TrimSpace(name))]
	return d, ok
}

func (b *Base) Gene(name string) (Gene, bool) {
	g, ok := b.Genes[strings.ToUpper(name)]
	return g, ok
}

// Lookup resolves a dbSNP id to its gene and star allele.
func (b *Base) Lookup(rsid string) (gene, star string, ok bool) {
	e, ok := b.rsIndex[strings.ToLower(rsid)]
	return e.gene, e.star, ok
}
