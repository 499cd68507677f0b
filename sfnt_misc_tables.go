package font

import (
	"fmt"

	"github.com/tdewolff/parse/v2"
)

// vorgTable is the Vertical Origin table (VORG), used by CFF fonts that
// diverge from the default (horizontal bearing derived) vertical origin.
type vorgTable struct {
	DefaultVertOriginY int16
	Metrics            map[uint16]int16 // glyphID -> vertOriginY, sparse
}

// Get returns the vertical origin Y for glyphID, falling back to the
// table's default when the glyph has no explicit entry.
func (vorg *vorgTable) Get(glyphID uint16) int16 {
	if y, ok := vorg.Metrics[glyphID]; ok {
		return y
	}
	return vorg.DefaultVertOriginY
}

func (sfnt *SFNT) parseVORG() error {
	b, ok := sfnt.Tables["VORG"]
	if !ok {
		return fmt.Errorf("VORG: missing table")
	} else if len(b) < 8 {
		return fmt.Errorf("VORG: bad table")
	}

	r := parse.NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16() // minorVersion
	if majorVersion != 1 {
		return &ErrUnsupportedVersion{Container: "VORG", Got: uint32(majorVersion)}
	}
	defaultVertOriginY := r.ReadInt16()
	numVertOriginYMetrics := r.ReadUint16()
	if uint32(len(b)) < 8+4*uint32(numVertOriginYMetrics) {
		return fmt.Errorf("VORG: bad table")
	}

	vorg := &vorgTable{
		DefaultVertOriginY: defaultVertOriginY,
		Metrics:            make(map[uint16]int16, numVertOriginYMetrics),
	}
	for i := 0; i < int(numVertOriginYMetrics); i++ {
		glyphIndex := r.ReadUint16()
		vertOriginY := r.ReadInt16()
		vorg.Metrics[glyphIndex] = vertOriginY
	}
	sfnt.VORG = vorg
	return nil
}

////////////////////////////////////////////////////////////////

// statTable is the Style Attributes table (STAT), which records the axes
// and named values used to label a font's position within a family.
// Parsed bounds-checked down to the design-axis and axis-value record
// counts; the per-record contents (beyond spec.md's "expose fields") are
// out of scope and left in sfnt.Tables["STAT"] for a caller to walk.
type statTable struct {
	DesignAxisCount      uint16
	AxisValueCount       uint16
	ElidedFallbackNameID uint16
}

func (sfnt *SFNT) parseSTAT() error {
	b, ok := sfnt.Tables["STAT"]
	if !ok {
		return fmt.Errorf("STAT: missing table")
	} else if len(b) < 18 {
		return fmt.Errorf("STAT: bad table")
	}

	r := parse.NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	minorVersion := r.ReadUint16()
	if majorVersion != 1 || 2 < minorVersion {
		return &ErrUnsupportedVersion{Container: "STAT", Got: uint32(majorVersion)<<16 | uint32(minorVersion)}
	}
	_ = r.ReadUint16() // designAxisSize
	designAxisCount := r.ReadUint16()
	designAxesOffset := r.ReadUint32()
	axisValueCount := r.ReadUint16()
	offsetToAxisValueOffsets := r.ReadUint32()
	if uint32(len(b)) < designAxesOffset || uint32(len(b)) < offsetToAxisValueOffsets {
		return fmt.Errorf("STAT: bad table")
	}

	stat := &statTable{
		DesignAxisCount: designAxisCount,
		AxisValueCount:  axisValueCount,
	}
	if 0 < minorVersion && r.Len() >= 2 {
		stat.ElidedFallbackNameID = r.ReadUint16()
	}
	sfnt.STAT = stat
	return nil
}

////////////////////////////////////////////////////////////////

// cvarTable is the CVT Variations table, a tuple variation store whose
// deltas apply to the control-value (cvt) entries a font's hinting
// bytecode reads rather than to outline points. Parsed down to its tuple
// variation headers (peak/intermediate tuples, shared-tuple index);
// the deltas each header's data block encodes are consumed only by the
// (unexecuted) hinting interpreter, so decoding them is out of scope.
type cvarTupleHeader struct {
	PeakTuple                           []float64
	IntermediateStart, IntermediateEnd  []float64
	SharedIndex                         int
}

type cvarTable struct {
	Headers []cvarTupleHeader
}

func (sfnt *SFNT) parseCvar() error {
	if sfnt.Fvar == nil {
		return fmt.Errorf("cvar: missing fvar table")
	}

	b, ok := sfnt.Tables["cvar"]
	if !ok {
		return fmt.Errorf("cvar: missing table")
	} else if len(b) < 8 {
		return fmt.Errorf("cvar: bad table")
	}

	r := parse.NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16() // minorVersion
	if majorVersion != 1 {
		return &ErrUnsupportedVersion{Container: "cvar", Got: uint32(majorVersion)}
	}
	tupleVariationCount := r.ReadUint16()
	_ = r.ReadUint16() // dataOffset, unused: header-only decode
	axisCount := len(sfnt.Fvar.Axes)
	count := int(tupleVariationCount & 0x0FFF)

	headers := make([]cvarTupleHeader, count)
	for i := 0; i < count; i++ {
		if r.Len() < 4 {
			return fmt.Errorf("cvar: tuple variation header out of bounds")
		}
		_ = r.ReadUint16() // variationDataSize
		tupleIndex := r.ReadUint16()
		var h cvarTupleHeader
		h.SharedIndex = int(tupleIndex & 0x0FFF)
		if tupleIndex&0x8000 != 0 { // embedded peak tuple
			if r.Len() < 2*axisCount {
				return fmt.Errorf("cvar: peak tuple out of bounds")
			}
			peak := make([]float64, axisCount)
			for j := range peak {
				peak[j] = r.ReadF2Dot14()
			}
			h.PeakTuple = peak
		}
		if tupleIndex&0x4000 != 0 { // intermediate region
			if r.Len() < 4*axisCount {
				return fmt.Errorf("cvar: intermediate tuple out of bounds")
			}
			start, end := make([]float64, axisCount), make([]float64, axisCount)
			for j := range start {
				start[j] = r.ReadF2Dot14()
			}
			for j := range end {
				end[j] = r.ReadF2Dot14()
			}
			h.IntermediateStart, h.IntermediateEnd = start, end
		}
		headers[i] = h
	}
	sfnt.Cvar = &cvarTable{Headers: headers}
	return nil
}

////////////////////////////////////////////////////////////////

// colrTable is the (version 0) Color table: each colored glyph is a list
// of (glyphID, paletteIndex) layers composited in order. Only the base
// format is parsed; the version-1 paint-graph extensions are beyond
// spec.md's "parse bounds-checked, expose fields" boundary.
type colrTable struct {
	baseGlyphRecords []colrBaseGlyphRecord
	layerRecords     []colrLayerRecord
}

type colrBaseGlyphRecord struct {
	GlyphID     uint16
	FirstLayer  uint16
	NumLayers   uint16
}

type colrLayerRecord struct {
	GlyphID      uint16
	PaletteIndex uint16
}

// Layers returns the (glyphID, paletteIndex) layers a colored glyph is
// composited from, in bottom-to-top order, or ok=false if glyphID has no
// color entry.
func (colr *colrTable) Layers(glyphID uint16) ([]colrLayerRecord, bool) {
	for _, rec := range colr.baseGlyphRecords {
		if rec.GlyphID == glyphID {
			start, end := int(rec.FirstLayer), int(rec.FirstLayer)+int(rec.NumLayers)
			if end <= len(colr.layerRecords) {
				return colr.layerRecords[start:end], true
			}
			return nil, false
		}
	}
	return nil, false
}

func (sfnt *SFNT) parseCOLR() error {
	b, ok := sfnt.Tables["COLR"]
	if !ok {
		return fmt.Errorf("COLR: missing table")
	} else if len(b) < 14 {
		return fmt.Errorf("COLR: bad table")
	}

	r := parse.NewBinaryReader(b)
	version := r.ReadUint16()
	if version != 0 {
		// version 1 paint graphs are not parsed; keep as raw bytes
		return nil
	}
	numBaseGlyphRecords := r.ReadUint16()
	baseGlyphRecordsOffset := r.ReadUint32()
	layerRecordsOffset := r.ReadUint32()
	numLayerRecords := r.ReadUint16()
	if uint32(len(b)) < baseGlyphRecordsOffset+6*uint32(numBaseGlyphRecords) {
		return fmt.Errorf("COLR: bad baseGlyphRecords")
	} else if uint32(len(b)) < layerRecordsOffset+4*uint32(numLayerRecords) {
		return fmt.Errorf("COLR: bad layerRecords")
	}

	colr := &colrTable{
		baseGlyphRecords: make([]colrBaseGlyphRecord, numBaseGlyphRecords),
		layerRecords:     make([]colrLayerRecord, numLayerRecords),
	}
	rb := parse.NewBinaryReader(b[baseGlyphRecordsOffset:])
	for i := 0; i < int(numBaseGlyphRecords); i++ {
		colr.baseGlyphRecords[i] = colrBaseGlyphRecord{
			GlyphID:    rb.ReadUint16(),
			FirstLayer: rb.ReadUint16(),
			NumLayers:  rb.ReadUint16(),
		}
	}
	rl := parse.NewBinaryReader(b[layerRecordsOffset:])
	for i := 0; i < int(numLayerRecords); i++ {
		colr.layerRecords[i] = colrLayerRecord{
			GlyphID:      rl.ReadUint16(),
			PaletteIndex: rl.ReadUint16(),
		}
	}
	sfnt.COLR = colr
	return nil
}

////////////////////////////////////////////////////////////////

// cpalTable is the Color Palette table: one or more palettes of BGRA
// color entries that COLR layer records index into.
type cpalTable struct {
	NumPaletteEntries uint16
	Palettes          [][]uint32 // one []uint32 (0xBBGGRRAA) per palette
}

func (sfnt *SFNT) parseCPAL() error {
	b, ok := sfnt.Tables["CPAL"]
	if !ok {
		return fmt.Errorf("CPAL: missing table")
	} else if len(b) < 12 {
		return fmt.Errorf("CPAL: bad table")
	}

	r := parse.NewBinaryReader(b)
	version := r.ReadUint16()
	numPaletteEntries := r.ReadUint16()
	numPalettes := r.ReadUint16()
	numColorRecords := r.ReadUint16()
	colorRecordsArrayOffset := r.ReadUint32()
	if uint32(len(b)) < colorRecordsArrayOffset+4*uint32(numColorRecords) {
		return fmt.Errorf("CPAL: bad colorRecords")
	} else if uint32(len(b)) < 12+2*uint32(numPalettes) {
		return fmt.Errorf("CPAL: bad colorRecordIndices")
	}

	indices := make([]uint16, numPalettes)
	for i := range indices {
		indices[i] = r.ReadUint16()
	}
	if version == 1 {
		// paletteTypesArrayOffset, paletteLabelsArrayOffset,
		// paletteEntryLabelsArrayOffset: labels/types only, not needed
		// to expose the color data itself.
	}

	colors := make([]uint32, numColorRecords)
	rc := parse.NewBinaryReader(b[colorRecordsArrayOffset:])
	for i := range colors {
		colors[i] = rc.ReadUint32()
	}

	cpal := &cpalTable{
		NumPaletteEntries: numPaletteEntries,
		Palettes:          make([][]uint32, numPalettes),
	}
	for i, firstIndex := range indices {
		if uint32(firstIndex)+uint32(numPaletteEntries) > uint32(numColorRecords) {
			return fmt.Errorf("CPAL: bad palette %d", i)
		}
		cpal.Palettes[i] = colors[firstIndex : uint32(firstIndex)+uint32(numPaletteEntries)]
	}
	sfnt.CPAL = cpal
	return nil
}

////////////////////////////////////////////////////////////////

// svgTable is the SVG table: per-glyph-range SVG documents, each an
// (optionally gzip-compressed, per the SVG spec) XML document addressed
// by glyph ID range.
type svgTable struct {
	data    []byte
	entries []svgDocumentRecord
}

type svgDocumentRecord struct {
	StartGlyphID, EndGlyphID uint16
	offset, length           uint32
}

// Get returns the raw (possibly gzip-compressed) SVG document covering
// glyphID, or ok=false if none is defined.
func (svg *svgTable) Get(glyphID uint16) (doc []byte, ok bool) {
	for _, rec := range svg.entries {
		if rec.StartGlyphID <= glyphID && glyphID <= rec.EndGlyphID {
			return svg.data[rec.offset : rec.offset+rec.length], true
		}
	}
	return nil, false
}

func (sfnt *SFNT) parseSVG() error {
	b, ok := sfnt.Tables["SVG "]
	if !ok {
		return fmt.Errorf("SVG: missing table")
	} else if len(b) < 10 {
		return fmt.Errorf("SVG: bad table")
	}

	r := parse.NewBinaryReader(b)
	version := r.ReadUint16()
	if version != 0 {
		return &ErrUnsupportedVersion{Container: "SVG", Got: uint32(version)}
	}
	svgDocumentListOffset := r.ReadUint32()
	if uint32(len(b)) < svgDocumentListOffset+2 {
		return fmt.Errorf("SVG: bad svgDocumentListOffset")
	}

	rl := parse.NewBinaryReader(b[svgDocumentListOffset:])
	numEntries := rl.ReadUint16()
	if uint32(len(b))-svgDocumentListOffset < 2+12*uint32(numEntries) {
		return fmt.Errorf("SVG: bad numEntries")
	}

	svg := &svgTable{data: b, entries: make([]svgDocumentRecord, numEntries)}
	for i := 0; i < int(numEntries); i++ {
		startGlyphID := rl.ReadUint16()
		endGlyphID := rl.ReadUint16()
		docOffset := rl.ReadUint32()
		docLength := rl.ReadUint32()
		if endGlyphID < startGlyphID {
			return fmt.Errorf("SVG: bad glyph range in entry %d", i)
		}
		if uint32(len(b))-svgDocumentListOffset < docOffset || uint32(len(b))-svgDocumentListOffset-docOffset < docLength {
			return fmt.Errorf("SVG: bad document in entry %d", i)
		}
		svg.entries[i] = svgDocumentRecord{
			StartGlyphID: startGlyphID,
			EndGlyphID:   endGlyphID,
			offset:       svgDocumentListOffset + docOffset,
			length:       docLength,
		}
	}
	sfnt.SVG = svg
	return nil
}
