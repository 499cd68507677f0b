package font

import (
	"encoding/binary"
	"testing"

	"github.com/tdewolff/test"
)

// buildWOFF1 assembles a minimal, uncompressed, single-table WOFF1 file
// wrapping one "head" table, for exercising the container-unwrap mechanics
// without needing a full real font on disk.
func buildWOFF1() []byte {
	headData := make([]byte, 20) // arbitrary but >= 18 bytes, as head requires

	const headerSize = 44
	const dirSize = 20 // one table entry
	tableOffset := uint32(headerSize + dirSize)
	totalSfntSize := uint32(12 + 16 + len(headData)) // sfnt header + 1 directory entry + table

	b := make([]byte, headerSize+dirSize+len(headData))
	binary.BigEndian.PutUint32(b[0:], 0x774F4646) // 'wOFF'
	binary.BigEndian.PutUint32(b[4:], 0x00010000) // flavor: TTF
	binary.BigEndian.PutUint32(b[8:], uint32(len(b)))
	binary.BigEndian.PutUint16(b[12:], 1) // numTables
	binary.BigEndian.PutUint16(b[14:], 0) // reserved
	binary.BigEndian.PutUint32(b[16:], totalSfntSize)
	binary.BigEndian.PutUint16(b[20:], 1) // majorVersion
	binary.BigEndian.PutUint16(b[22:], 0) // minorVersion
	// metaOffset/metaLength/metaOrigLength/privOffset/privLength all zero

	binary.BigEndian.PutUint32(b[44:], 0x68656164) // 'head'
	binary.BigEndian.PutUint32(b[48:], tableOffset)
	binary.BigEndian.PutUint32(b[52:], uint32(len(headData))) // compLength == origLength: uncompressed
	binary.BigEndian.PutUint32(b[56:], uint32(len(headData)))
	binary.BigEndian.PutUint32(b[60:], calcChecksum(headData))

	copy(b[tableOffset:], headData)
	return b
}

func TestParseWOFFRoundTrip(t *testing.T) {
	b := buildWOFF1()
	sfntData, err := ParseWOFF(b)
	test.Error(t, err)

	// sfnt header + 1 directory entry + table data, 4-byte aligned
	test.T(t, len(sfntData), 12+16+20)

	checksumAdjustment := binary.BigEndian.Uint32(sfntData[12+16+8:])
	tmp := make([]byte, len(sfntData))
	copy(tmp, sfntData)
	binary.BigEndian.PutUint32(tmp[12+16+8:], 0)
	test.T(t, checksumAdjustment, 0xB1B0AFBA-calcChecksum(tmp))
}

func TestParseWOFFBadSignature(t *testing.T) {
	b := buildWOFF1()
	b[0] = 'X'
	_, err := ParseWOFF(b)
	if err == nil {
		t.Fatal("expected error for bad signature")
	}
}

func TestParseWOFFRejectsCollections(t *testing.T) {
	b := buildWOFF1()
	binary.BigEndian.PutUint32(b[4:], 0x74746366) // 'ttcf'
	_, err := ParseWOFF(b)
	if err == nil {
		t.Fatal("expected error for WOFF-wrapped collection")
	}
}
