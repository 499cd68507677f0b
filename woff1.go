package font

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// Specification:
// https://www.w3.org/TR/WOFF/

type woffTable struct {
	tag          string
	offset       uint32
	length       uint32 // compressed length
	origLength   uint32
	origChecksum uint32
}

// tablePositions keeps track of the byte ranges claimed by table data,
// metadata and private data so that overlaps between them can be detected.
type tablePositions struct {
	offsets, lengths []uint32
}

func (tp *tablePositions) Add(offset, length uint32) {
	tp.offsets = append(tp.offsets, offset)
	tp.lengths = append(tp.lengths, length)
}

func (tp *tablePositions) HasOverlap(offset, length uint32) bool {
	if length == 0 {
		return false
	}
	for i := 0; i < len(tp.offsets); i++ {
		if tp.lengths[i] == 0 {
			continue
		}
		if offset < tp.offsets[i]+tp.lengths[i] && tp.offsets[i] < offset+length {
			return true
		}
	}
	return false
}

// ParseWOFF parses the WOFF font format and returns its contained SFNT font
// format (TTF or OTF). See https://www.w3.org/TR/WOFF/
func ParseWOFF(b []byte) ([]byte, error) {
	if len(b) < 44 {
		return nil, ErrInvalidFontData
	}

	r := NewByteReader(b)
	signature := r.ReadString(4)
	if signature != "wOFF" {
		return nil, fmt.Errorf("bad signature")
	}
	flavor := r.ReadUint32()
	if uint32ToString(flavor) == "ttcf" {
		return nil, fmt.Errorf("collections are unsupported")
	}
	length := r.ReadUint32()
	numTables := r.ReadUint16()
	reserved := r.ReadUint16()
	totalSfntSize := r.ReadUint32()
	_ = r.ReadUint16() // majorVersion
	_ = r.ReadUint16() // minorVersion
	metaOffset := r.ReadUint32()
	metaLength := r.ReadUint32()
	metaOrigLength := r.ReadUint32()
	privOffset := r.ReadUint32()
	privLength := r.ReadUint32()
	if r.EOF() {
		return nil, ErrInvalidFontData
	} else if length != uint32(len(b)) {
		return nil, fmt.Errorf("length in header must match file size")
	} else if numTables == 0 {
		return nil, fmt.Errorf("numTables in header must not be zero")
	} else if reserved != 0 {
		return nil, fmt.Errorf("reserved in header must be zero")
	}
	_ = metaOrigLength

	tags := []string{}
	tagTableIndex := map[string]int{}
	tables := []woffTable{}
	positions := &tablePositions{}
	positions.Add(0, 44+20*uint32(numTables)) // header + table directory
	var uncompressedSize uint32
	prevTag := ""
	for i := 0; i < int(numTables); i++ {
		tag := uint32ToString(r.ReadUint32())
		offset := r.ReadUint32()
		compLength := r.ReadUint32()
		origLength := r.ReadUint32()
		origChecksum := r.ReadUint32()
		if r.EOF() {
			return nil, ErrInvalidFontData
		}
		if _, ok := tagTableIndex[tag]; ok {
			return nil, fmt.Errorf("%s: table defined more than once", tag)
		}
		if prevTag != "" && tag < prevTag {
			return nil, fmt.Errorf("table directory must be sorted alphabetically")
		}
		prevTag = tag

		if compLength > origLength {
			return nil, fmt.Errorf("%s: compressed length must not exceed original length", tag)
		}
		if uint32(len(b))-offset < compLength || uint32(len(b)) < offset {
			return nil, ErrInvalidFontData
		}
		if positions.HasOverlap(offset, compLength) {
			return nil, fmt.Errorf("%s: table data overlaps another block", tag)
		}
		positions.Add(offset, compLength)
		if MaxMemory-uncompressedSize < origLength {
			return nil, ErrExceedsMemory
		}
		uncompressedSize += origLength

		tags = append(tags, tag)
		tagTableIndex[tag] = len(tables)
		tables = append(tables, woffTable{
			tag:          tag,
			offset:       offset,
			length:       compLength,
			origLength:   origLength,
			origChecksum: origChecksum,
		})
	}

	if metaLength != 0 {
		if uint32(len(b))-metaOffset < metaLength || uint32(len(b)) < metaOffset {
			return nil, ErrInvalidFontData
		}
		if positions.HasOverlap(metaOffset, metaLength) {
			return nil, fmt.Errorf("metadata block overlaps table data")
		}
		positions.Add(metaOffset, metaLength)
	}
	if privLength != 0 {
		if uint32(len(b))-privOffset < privLength || uint32(len(b)) < privOffset {
			return nil, ErrInvalidFontData
		}
		if positions.HasOverlap(privOffset, privLength) {
			return nil, fmt.Errorf("private data block overlaps table data or metadata")
		}
		positions.Add(privOffset, privLength)
	}

	// find values for offset table
	var searchRange uint16 = 1
	var entrySelector uint16
	var rangeShift uint16
	for {
		if searchRange*2 > numTables {
			break
		}
		searchRange *= 2
		entrySelector++
	}
	searchRange *= 16
	rangeShift = numTables*16 - searchRange

	if MaxMemory < totalSfntSize {
		return nil, ErrExceedsMemory
	}
	w := NewByteWriter(make([]byte, 0, totalSfntSize))
	w.WriteUint32(flavor)
	w.WriteUint16(numTables)
	w.WriteUint16(searchRange)
	w.WriteUint16(entrySelector)
	w.WriteUint16(rangeShift)

	sort.Strings(tags)
	sfntOffset := 12 + 16*uint32(numTables)
	for _, tag := range tags {
		i := tagTableIndex[tag]
		w.WriteString(tag)
		w.WriteUint32(tables[i].origChecksum)
		w.WriteUint32(sfntOffset)
		w.WriteUint32(tables[i].origLength)

		padded := (tables[i].origLength + 3) &^ 3
		sfntOffset += padded
	}

	var iCheckSumAdjustment uint32
	for _, tag := range tags {
		i := tagTableIndex[tag]
		table := tables[i]

		var data []byte
		if table.length == table.origLength {
			data = b[table.offset : table.offset+table.length]
		} else {
			zr, err := zlib.NewReader(bytes.NewReader(b[table.offset : table.offset+table.length]))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", tag, err)
			}
			buf := bytes.NewBuffer(make([]byte, 0, table.origLength))
			if _, err := io.Copy(buf, zr); err != nil {
				return nil, fmt.Errorf("%s: %w", tag, err)
			}
			zr.Close()
			data = buf.Bytes()
		}
		if uint32(len(data)) != table.origLength {
			return nil, fmt.Errorf("%s: decompressed table does not match origLength", tag)
		}

		if tag == "head" {
			if len(data) < 18 {
				return nil, fmt.Errorf("head: must be at least 18 bytes")
			}
			iCheckSumAdjustment = w.Len() + 8
		}

		w.WriteBytes(data)
		padding := (4 - table.origLength&3) & 3
		for j := uint32(0); j < padding; j++ {
			w.WriteByte(0x00)
		}
	}

	buf := w.Bytes()
	if iCheckSumAdjustment == 0 || uint32(len(buf)) < iCheckSumAdjustment+4 {
		return nil, fmt.Errorf("head: must be present")
	}
	// WOFF stores each table's origChecksum as computed over the original
	// (unmodified) sfnt table, including whatever checkSumAdjustment the
	// source font was built with. Re-derive it from the reassembled file
	// rather than trust the stored value, consistent with the WOFF2 path.
	binary.BigEndian.PutUint32(buf[iCheckSumAdjustment:], 0x00000000)
	checkSumAdjustment := 0xB1B0AFBA - calcChecksum(buf)
	binary.BigEndian.PutUint32(buf[iCheckSumAdjustment:], checkSumAdjustment)
	return buf, nil
}
