package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"pharmaguard/core/dtos"
	"pharmaguard/core/knowledge"
	"pharmaguard/core/vcf"
)

const referenceAllele = "*1"

// genotypeIndex is the VCF reduced to pharmacogene calls. unmapped counts
// alt calls per gene whose star allele could not be resolved.
type genotypeIndex struct {
	variants   map[string][]dtos.DetectedVariant
	covered    map[string]bool
	unmapped   map[string]int
	total      int
	pgx        int
	unresolved int
}

func indexGenotypes(kb *knowledge.Base, f *vcf.File) genotypeIndex {
	idx := genotypeIndex{
		variants: make(map[string][]dtos.DetectedVariant),
		covered:  make(map[string]bool),
		unmapped: make(map[string]int),
	}
	for _, rec := range f.Records {
		idx.total++

		gene, star, rsid := rec.Gene(), rec.Star(), rec.RSID()
		if rsid != "" {
			if g, st, ok := kb.Lookup(rsid); ok {
				if gene == "" {
					gene = g
				}
				if star == "" && gene == g {
					star = st
				}
			}
		}
		if _, known := kb.Gene(gene); !known {
			idx.unresolved++
			continue
		}
		idx.pgx++
		idx.covered[gene] = true

		copies := rec.AltCopies()
		if copies == 0 {
			continue
		}
		if star == "" {
			idx.unresolved++
			idx.unmapped[gene]++
			continue
		}
		idx.variants[gene] = append(idx.variants[gene], dtos.DetectedVariant{
			RSID:       rsid,
			Gene:       gene,
			StarAllele: star,
			Chrom:      rec.Chrom,
			Pos:        rec.Pos,
			Ref:        rec.Ref,
			Alt:        strings.Join(rec.Alt, ","),
			Genotype:   rec.Genotype,
			Copies:     copies,
		})
	}
	return idx
}

// callDiplotype turns detected variants into two alleles. Missing slots are
// filled with the reference allele; with more than two candidates the two
// lowest-function alleles are kept, unknown-function alleles first.
func callDiplotype(gene knowledge.Gene, variants []dtos.DetectedVariant) []string {
	var alleles []string
	for _, v := range variants {
		for c := 0; c < v.Copies && c < 2; c++ {
			alleles = append(alleles, v.StarAllele)
		}
	}
	if len(alleles) > 2 {
		rank := func(star string) float64 {
			if v, ok := gene.AlleleValue(star); ok {
				return v
			}
			return -1
		}
		sort.SliceStable(alleles, func(i, j int) bool { return rank(alleles[i]) < rank(alleles[j]) })
		alleles = alleles[:2]
	}
	for len(alleles) < 2 {
		alleles = append(alleles, referenceAllele)
	}
	sort.Slice(alleles, func(i, j int) bool { return starLess(alleles[i], alleles[j]) })
	return alleles
}

// starLess orders star alleles numerically (*2 before *10), then lexically.
func starLess(a, b string) bool {
	na, ra := splitStar(a)
	nb, rb := splitStar(b)
	if na != nb {
		return na < nb
	}
	return ra < rb
}

func splitStar(s string) (int, string) {
	t := strings.TrimPrefix(s, "*")
	i := 0
	for i < len(t) && t[i] >= '0' && t[i] <= '9' {
		i++
	}
	if i == 0 {
		return 1 << 30, t
	}
	n, _ := strconv.Atoi(t[:i])
	return n, t[i:]
}

// activityScore sums allele values and reports alleles with no known function.
func activityScore(gene knowledge.Gene, alleles []string) (score float64, unknown []string) {
	for _, a := range alleles {
		v, ok := gene.AlleleValue(a)
		if !ok {
			unknown = append(unknown, a)
			continue
		}
		score += v
	}
	return score, unknown
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func describeVariants(vs []dtos.DetectedVariant) string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		id := v.RSID
		if id == "" {
			id = fmt.Sprintf("%s:%d", v.Chrom, v.Pos)
		}
		parts = append(parts, fmt.Sprintf("%s (%s, %s)", id, v.StarAllele, genotypeOrDash(v.Genotype)))
	}
	return strings.Join(parts, ", ")
}

func genotypeOrDash(gt string) string {
	if gt == "" {
		return "-"
	}
	return gt
}
