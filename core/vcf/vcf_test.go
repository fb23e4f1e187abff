package vcf

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "##fileformat=VCFv4.2\n" +
	"##source=test\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tPATIENT_001\n" +
	"chr22\t42128945\trs3892097\tC\tT\t.\tPASS\tGENE=CYP2D6;STAR=*4\tGT\t0/1\n" +
	"chr10\t94781859\t.\tG\tA\t.\tPASS\tGENE=CYP2C19;STAR=2;RS=4244285\tGT:DP\t1|1:30\n" +
	"chr1\t97450058\trs3918290\tC\tT\t.\tPASS\tDB\tGT\t0/0\n"

func TestParse(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "VCFv4.2", f.FileFormat)
	assert.Equal(t, []string{"PATIENT_001"}, f.Samples)
	require.Len(t, f.Records, 3)

	r := f.Records[0]
	assert.Equal(t, "chr22", r.Chrom)
	assert.Equal(t, 42128945, r.Pos)
	assert.Equal(t, "rs3892097", r.RSID())
	assert.Equal(t, "CYP2D6", r.Gene())
	assert.Equal(t, "*4", r.Star())
	assert.Equal(t, []string{"T"}, r.Alt)
	assert.Equal(t, 1, r.AltCopies())

	r = f.Records[1]
	assert.Equal(t, "rs4244285", r.RSID())
	assert.Equal(t, "*2", r.Star())
	assert.Equal(t, "1|1", r.Genotype)
	assert.Equal(t, 2, r.AltCopies())

	r = f.Records[2]
	assert.Equal(t, "true", r.Info["DB"])
	assert.Equal(t, 0, r.AltCopies())
}

func TestAltCopiesWithoutSample(t *testing.T) {
	assert.Equal(t, 1, Record{}.AltCopies())
	assert.Equal(t, 0, Record{Genotype: "./."}.AltCopies())
	assert.Equal(t, 1, Record{Genotype: "0|2"}.AltCopies())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("\n\n"))
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse(strings.NewReader("##fileformat=VCFv4.2\n"))
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = Parse(strings.NewReader("chr1\t1\t.\tA\tG\t.\tPASS\t.\n"))
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = Parse(strings.NewReader("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\nchr1\tx\t.\tA\tG\t.\tPASS\t.\n"))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Line)

	_, err = Parse(strings.NewReader("#CHROM\tPOS\tID\nchr1\t1\t.\n"))
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Error(), "at least 8 columns")
}
