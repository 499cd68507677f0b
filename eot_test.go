package font

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/tdewolff/test"
)

// buildTestEOT wraps fontData in a minimal (uncompressed, non-XORed,
// version 0x00010000) EOT header, per https://www.w3.org/Submission/EOT/
func buildTestEOT(fontData []byte) []byte {
	buf := &bytes.Buffer{}
	w := func(v interface{}) { binary.Write(buf, binary.LittleEndian, v) }

	w(uint32(0))                   // EOTSize, patched below
	w(uint32(len(fontData)))       // FontDataSize
	w(uint32(0x00010000))          // Version
	w(uint32(0))                   // Flags
	w(make([]byte, 10))            // FontPANOSE
	w(uint8(0))                    // Charset
	w(uint8(0))                    // Italic
	w(uint32(0))                   // Weight
	w(uint16(0))                   // fsType
	w(uint16(0x504C))              // MagicNumber
	w(make([]byte, 24))            // Unicode and CodePage ranges
	w(uint32(0))                   // checkSumAdjustment
	w(make([]byte, 16))            // Reserved
	w(uint16(0))                   // Padding1
	w(uint16(0))                   // FamilyNameSize
	w(uint16(0))                   // Padding2
	w(uint16(0))                   // StyleNameSize
	w(uint16(0))                   // Padding3
	w(uint16(0))                   // VersionNameSize
	w(uint16(0))                   // Padding4
	w(uint16(0))                   // FullNameSize
	w(fontData)

	b := buf.Bytes()
	binary.LittleEndian.PutUint32(b[0:], uint32(len(b)))
	return b
}

func TestParseEOT(t *testing.T) {
	ttf := buildTestTTF()
	eot := buildTestEOT(ttf)

	fontData, err := ParseEOT(eot)
	test.Error(t, err)
	test.T(t, len(fontData), len(ttf))

	sfnt, err := ParseSFNT(fontData, 0)
	test.Error(t, err)
	test.T(t, sfnt.NumGlyphs(), uint16(3))
	test.T(t, sfnt.GlyphIndex('A'), uint16(1))
}
