// Package vcf reads the subset of the Variant Call Format needed for
// pharmacogenomic lookups: fixed columns, INFO tags and the first
// sample's genotype.
package vcf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	ErrEmpty    = errors.New("vcf: empty file")
	ErrNoHeader = errors.New("vcf: missing #CHROM header line")
)

type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf: line %d: %s", e.Line, e.Msg)
}

type Record struct {
	Chrom    string
	Pos      int
	ID       string
	Ref      string
	Alt      []string
	Filter   string
	Info     map[string]string
	Genotype string
}

// RSID returns the dbSNP identifier from the ID column, or the RS INFO tag.
func (r Record) RSID() string {
	if strings.HasPrefix(strings.ToLower(r.ID), "rs") {
		return strings.ToLower(r.ID)
	}
	if rs := r.Info["RS"]; rs != "" {
		rs = strings.ToLower(rs)
		if !strings.HasPrefix(rs, "rs") {
			rs = "rs" + rs
		}
		return rs
	}
	return ""
}

func (r Record) Gene() string { return strings.ToUpper(r.Info["GENE"]) }

func (r Record) Star() string {
	star := r.Info["STAR"]
	if star == "" {
		return ""
	}
	if !strings.HasPrefix(star, "*") {
		star = "*" + star
	}
	return star
}

// AltCopies counts non-reference alleles in the genotype. A record with no
// sample data counts as one copy.
func (r Record) AltCopies() int {
	if r.Genotype == "" {
		return 1
	}
	copies := 0
	for _, a := range strings.FieldsFunc(r.Genotype, func(c rune) bool { return c == '/' || c == '|' }) {
		if a == "." || a == "0" {
			continue
		}
		if _, err := strconv.Atoi(a); err == nil {
			copies++
		}
	}
	return copies
}

type File struct {
	FileFormat string
	Samples    []string
	Records    []Record
}

// Parse reads a whole VCF document.
func Parse(r io.Reader) (*File, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	f := &File{}
	lineNo := 0
	seenAny := false
	seenHeader := false
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		seenAny = true

		switch {
		case strings.HasPrefix(line, "##"):
			if v, ok := strings.CutPrefix(line, "##fileformat="); ok {
				f.FileFormat = v
			}
			continue
		case strings.HasPrefix(line, "#"):
			cols := strings.Split(line, "\t")
			if len(cols) > 9 {
				f.Samples = cols[9:]
			}
			seenHeader = true
			continue
		}

		if !seenHeader {
			return nil, ErrNoHeader
		}
		rec, err := parseRecord(line, lineNo)
		if err != nil {
			return nil, err
		}
		f.Records = append(f.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vcf: read: %w", err)
	}
	if !seenAny {
		return nil, ErrEmpty
	}
	if !seenHeader {
		return nil, ErrNoHeader
	}
	return f, nil
}

func parseRecord(line string, lineNo int) (Record, error) {
	cols := strings.Split(line, "\t")
	if len(cols) < 8 {
		return Record{}, &ParseError{Line: lineNo, Msg: fmt.Sprintf("expected at least 8 columns, got %d", len(cols))}
	}
	pos, err := strconv.Atoi(cols[1])
	if err != nil {
		return Record{}, &ParseError{Line: lineNo, Msg: fmt.Sprintf("invalid POS %q", cols[1])}
	}

	rec := Record{
		Chrom:  cols[0],
		Pos:    pos,
		ID:     cols[2],
		Ref:    cols[3],
		Filter: cols[6],
		Info:   parseInfo(cols[7]),
	}
	if cols[4] != "." {
		rec.Alt = strings.Split(cols[4], ",")
	}
	if len(cols) >= 10 {
		rec.Genotype = genotype(cols[8], cols[9])
	}
	return rec, nil
}

func parseInfo(raw string) map[string]string {
	info := make(map[string]string)
	if raw == "." || raw == "" {
		return info
	}
	for _, kv := range strings.Split(raw, ";") {
		if kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			v = "true"
		}
		info[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return info
}

func genotype(format, sample string) string {
	keys := strings.Split(format, ":")
	vals := strings.Split(sample, ":")
	for i, k := range keys {
		if k == "GT" && i < len(vals) {
			return vals[i]
		}
	}
	return ""
}
