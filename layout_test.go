package font

import (
	"testing"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/test"
)

func TestParseCoverageFormat1(t *testing.T) {
	// format=1, glyphCount=3, glyphs={5,6,10}
	b := []byte{0x00, 0x01, 0x00, 0x03, 0x00, 0x05, 0x00, 0x06, 0x00, 0x0A}
	cov, err := ParseCoverage(parse.NewBinaryReader(b))
	test.Error(t, err)
	test.T(t, cov.Glyphs[5], uint16(0))
	test.T(t, cov.Glyphs[6], uint16(1))
	test.T(t, cov.Glyphs[10], uint16(2))
	test.T(t, len(cov.Glyphs), 3)
}

func TestParseCoverageFormat2(t *testing.T) {
	// format=2, rangeCount=1, {start=10, end=12, startCoverageIndex=0}
	b := []byte{0x00, 0x02, 0x00, 0x01, 0x00, 0x0A, 0x00, 0x0C, 0x00, 0x00}
	cov, err := ParseCoverage(parse.NewBinaryReader(b))
	test.Error(t, err)
	test.T(t, cov.Glyphs[10], uint16(0))
	test.T(t, cov.Glyphs[11], uint16(1))
	test.T(t, cov.Glyphs[12], uint16(2))
}

func TestParseClassDefFormat1(t *testing.T) {
	// format=1, startGlyphID=4, glyphCount=3, classes={1,0,2}
	b := []byte{0x00, 0x01, 0x00, 0x04, 0x00, 0x03, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02}
	cd, err := parseClassDef(parse.NewBinaryReader(b))
	test.Error(t, err)
	test.T(t, cd.Classes[4], uint16(1))
	_, hasClassZero := cd.Classes[5]
	test.T(t, hasClassZero, false)
	test.T(t, cd.Classes[6], uint16(2))
}

func TestParseClassDefFormat2(t *testing.T) {
	// format=2, rangeCount=1, {start=20, end=22, class=3}
	b := []byte{0x00, 0x02, 0x00, 0x01, 0x00, 0x14, 0x00, 0x16, 0x00, 0x03}
	cd, err := parseClassDef(parse.NewBinaryReader(b))
	test.Error(t, err)
	test.T(t, cd.Classes[20], uint16(3))
	test.T(t, cd.Classes[21], uint16(3))
	test.T(t, cd.Classes[22], uint16(3))
}

func TestParseCoverageUnsupportedFormat(t *testing.T) {
	b := []byte{0x00, 0x03}
	_, err := ParseCoverage(parse.NewBinaryReader(b))
	if err == nil {
		t.Fatal("expected error for unsupported coverage format")
	}
}
