package font

import (
	"encoding/binary"
	"testing"

	"github.com/tdewolff/test"
)

// buildTestTTF assembles a minimal, valid, 3-glyph TrueType font (.notdef,
// 'A', 'B', all with empty outlines) by hand-filling each required table and
// letting SFNT.Write lay out the sfnt container, directory and checksums.
// This gives Parse/ParseSFNT/Subset/WriteWOFF2 something real to exercise
// without needing an on-disk font.
func buildTestTTF() []byte {
	cmapData := make([]byte, 12+262)
	binary.BigEndian.PutUint16(cmapData[0:], 0) // version
	binary.BigEndian.PutUint16(cmapData[2:], 1) // numTables
	binary.BigEndian.PutUint16(cmapData[4:], 3) // platformID: Windows
	binary.BigEndian.PutUint16(cmapData[6:], 1) // encodingID: Unicode BMP
	binary.BigEndian.PutUint32(cmapData[8:], 12) // offset to subtable
	binary.BigEndian.PutUint16(cmapData[12:], 0)   // format 0
	binary.BigEndian.PutUint16(cmapData[14:], 262) // length
	binary.BigEndian.PutUint16(cmapData[16:], 0)   // language
	cmapData[18+'A'] = 1
	cmapData[18+'B'] = 2

	head := make([]byte, 54)
	binary.BigEndian.PutUint16(head[0:], 1)          // majorVersion
	binary.BigEndian.PutUint16(head[2:], 0)          // minorVersion
	binary.BigEndian.PutUint32(head[4:], 0x00010000) // fontRevision
	binary.BigEndian.PutUint32(head[8:], 0)          // checksumAdjustment
	binary.BigEndian.PutUint32(head[12:], 0x5F0F3CF5) // magicNumber
	binary.BigEndian.PutUint16(head[16:], 0)          // flags
	binary.BigEndian.PutUint16(head[18:], 1000)       // unitsPerEm
	binary.BigEndian.PutUint16(head[46:], 8)          // lowestRecPPEM
	binary.BigEndian.PutUint16(head[48:], 2)          // fontDirectionHint
	binary.BigEndian.PutUint16(head[50:], 0)          // indexToLocFormat
	binary.BigEndian.PutUint16(head[54-2:], 0)        // glyphDataFormat

	hhea := make([]byte, 36)
	binary.BigEndian.PutUint16(hhea[0:], 1)   // majorVersion
	binary.BigEndian.PutUint16(hhea[2:], 0)   // minorVersion
	binary.BigEndian.PutUint16(hhea[4:], 800) // ascender
	binary.BigEndian.PutUint16(hhea[6:], uint16(int16(-200))) // descender
	binary.BigEndian.PutUint16(hhea[8:], 0)   // lineGap
	binary.BigEndian.PutUint16(hhea[10:], 700) // advanceWidthMax
	binary.BigEndian.PutUint16(hhea[18:], 1)   // caretSlopeRise
	binary.BigEndian.PutUint16(hhea[34:], 3)   // numberOfHMetrics

	hmtx := make([]byte, 12)
	binary.BigEndian.PutUint16(hmtx[0:], 500) // glyph 0 advance
	binary.BigEndian.PutUint16(hmtx[4:], 600) // glyph 1 ('A') advance
	binary.BigEndian.PutUint16(hmtx[6:], 10)  // glyph 1 lsb
	binary.BigEndian.PutUint16(hmtx[8:], 650) // glyph 2 ('B') advance
	binary.BigEndian.PutUint16(hmtx[10:], 15) // glyph 2 lsb

	maxp := make([]byte, 32)
	binary.BigEndian.PutUint32(maxp[0:], 0x00010000) // version
	binary.BigEndian.PutUint16(maxp[4:], 3)           // numGlyphs

	name := make([]byte, 6)
	binary.BigEndian.PutUint16(name[4:], 6) // storageOffset

	os2 := make([]byte, 68)
	binary.BigEndian.PutUint16(os2[0:], 0)   // version
	binary.BigEndian.PutUint16(os2[4:], 400) // usWeightClass
	binary.BigEndian.PutUint16(os2[6:], 5)   // usWidthClass
	copy(os2[58:62], "NONE")                 // achVendID
	binary.BigEndian.PutUint16(os2[64:], 'A') // usFirstCharIndex
	binary.BigEndian.PutUint16(os2[66:], 'B') // usLastCharIndex

	post := make([]byte, 32)
	binary.BigEndian.PutUint32(post[0:], 0x00030000) // version

	loca := make([]byte, 8) // 4 entries, short format, all-empty glyphs

	sfnt := &SFNT{
		IsTrueType: true,
		Tables: map[string][]byte{
			"cmap": cmapData,
			"glyf": {},
			"head": head,
			"hhea": hhea,
			"hmtx": hmtx,
			"loca": loca,
			"maxp": maxp,
			"name": name,
			"OS/2": os2,
			"post": post,
		},
	}
	return sfnt.Write()
}

func TestParseTTFRoundTrip(t *testing.T) {
	b := buildTestTTF()
	sfnt, err := Parse(b, 0)
	test.Error(t, err)
	test.T(t, sfnt.NumGlyphs(), uint16(3))
	test.T(t, sfnt.GlyphIndex('A'), uint16(1))
	test.T(t, sfnt.GlyphIndex('B'), uint16(2))
	test.T(t, sfnt.GlyphAdvance(1), uint16(600))

	sfnt2, err := ParseSFNT(b, 0)
	test.Error(t, err)
	test.T(t, sfnt2.NumGlyphs(), uint16(3))
}

func TestParseUnknownContainer(t *testing.T) {
	_, err := Parse([]byte("xxxx????"), 0)
	if err == nil {
		t.Fatal("expected error for unrecognized container")
	}
}

func TestSubsetEndToEnd(t *testing.T) {
	sfnt, err := Parse(buildTestTTF(), 0)
	test.Error(t, err)

	sub, err := sfnt.Subset([]uint16{0, 1}, SubsetOptions{Tables: KeepMinTables})
	test.Error(t, err)
	test.T(t, sub.NumGlyphs(), uint16(2))
	test.T(t, sub.GlyphAdvance(1), uint16(600))

	b := sub.Write()
	reopened, err := Parse(b, 0)
	test.Error(t, err)
	test.T(t, reopened.NumGlyphs(), uint16(2))
	test.T(t, reopened.GlyphIndex('A'), uint16(1))
	test.T(t, reopened.GlyphAdvance(1), uint16(600))
}

func TestParseWOFF2RoundTrip(t *testing.T) {
	sfnt, err := Parse(buildTestTTF(), 0)
	test.Error(t, err)

	woff2, err := sfnt.WriteWOFF2()
	test.Error(t, err)

	sfntData, err := ParseWOFF2(woff2)
	test.Error(t, err)

	reopened, err := ParseSFNT(sfntData, 0)
	test.Error(t, err)
	test.T(t, reopened.NumGlyphs(), uint16(3))
	test.T(t, reopened.GlyphIndex('A'), uint16(1))
	test.T(t, reopened.GlyphAdvance(1), uint16(600))

	viaParse, err := Parse(woff2, 0)
	test.Error(t, err)
	test.T(t, viaParse.NumGlyphs(), uint16(3))
}
