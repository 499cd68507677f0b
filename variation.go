package font

import (
	"math"
	"sort"

	"github.com/tdewolff/parse/v2"
)

// VarAxis describes one axis of a variable font as declared by fvar.
type VarAxis struct {
	Tag     string
	Min     float64
	Default float64
	Max     float64
	Hidden  bool
	NameID  uint16
}

type fvarInstance struct {
	SubfamilyNameID   uint16
	Coordinates       []float64
	PostScriptNameID  uint16
}

type fvarTable struct {
	Axes      []VarAxis
	Instances []fvarInstance
}

func (sfnt *SFNT) parseFvar() error {
	b, ok := sfnt.Tables["fvar"]
	if !ok {
		return ErrMissingTable("fvar")
	} else if len(b) < 16 {
		return malformed("fvar", "table too short")
	}

	r := parse.NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	minorVersion := r.ReadUint16()
	if majorVersion != 1 || minorVersion != 0 {
		return &ErrUnsupportedVersion{Container: "fvar", Got: uint32(majorVersion)<<16 | uint32(minorVersion)}
	}
	axesArrayOffset := r.ReadUint16()
	_ = r.ReadUint16() // reserved
	axisCount := r.ReadUint16()
	axisSize := r.ReadUint16()
	instanceCount := r.ReadUint16()
	instanceSize := r.ReadUint16()
	if axisSize < 20 || instanceSize < 4 {
		return malformed("fvar", "bad axis or instance record size")
	}

	fvar := &fvarTable{}
	r.Seek(int64(axesArrayOffset), 0)
	for i := 0; i < int(axisCount); i++ {
		if r.Len() < int64(axisSize) {
			return malformed("fvar", "axis record out of bounds")
		}
		start := r.Pos()
		axis := VarAxis{}
		axis.Tag = r.ReadString(4)
		axis.Min = r.ReadFixed()
		axis.Default = r.ReadFixed()
		axis.Max = r.ReadFixed()
		flags := r.ReadUint16()
		axis.Hidden = flags&0x0001 != 0
		axis.NameID = r.ReadUint16()
		if axis.Max < axis.Min || axis.Default < axis.Min || axis.Max < axis.Default {
			return malformed("fvar", "axis range is not ordered min <= default <= max")
		}
		fvar.Axes = append(fvar.Axes, axis)
		r.Seek(start + int64(axisSize))
	}

	instancesOffset := r.Pos()
	for i := 0; i < int(instanceCount); i++ {
		r.Seek(instancesOffset + int64(i)*int64(instanceSize))
		if r.Len() < int64(instanceSize) {
			return malformed("fvar", "instance record out of bounds")
		}
		inst := fvarInstance{}
		inst.SubfamilyNameID = r.ReadUint16()
		_ = r.ReadUint16() // flags, reserved
		inst.Coordinates = make([]float64, axisCount)
		for j := range inst.Coordinates {
			inst.Coordinates[j] = r.ReadFixed()
		}
		if 4+4*int64(axisCount)+2 <= int64(instanceSize) {
			inst.PostScriptNameID = r.ReadUint16()
		}
		fvar.Instances = append(fvar.Instances, inst)
	}

	sfnt.Fvar = fvar
	return nil
}

////////////////////////////////////////////////////////////////

type avarSegmentMap struct {
	FromCoord []float64
	ToCoord   []float64
}

type avarTable struct {
	Segments []avarSegmentMap // one per fvar axis, in fvar axis order
}

func (sfnt *SFNT) parseAvar() error {
	b, ok := sfnt.Tables["avar"]
	if !ok {
		return ErrMissingTable("avar")
	} else if len(b) < 8 || sfnt.Fvar == nil {
		return malformed("avar", "table too short, or fvar is missing")
	}

	r := parse.NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16()
	if majorVersion != 1 {
		return &ErrUnsupportedVersion{Container: "avar", Got: uint32(majorVersion)}
	}
	_ = r.ReadUint16() // reserved
	axisCount := r.ReadUint16()
	if int(axisCount) != len(sfnt.Fvar.Axes) {
		return malformed("avar", "axisCount does not match fvar")
	}

	avar := &avarTable{Segments: make([]avarSegmentMap, axisCount)}
	for i := 0; i < int(axisCount); i++ {
		if r.Len() < 2 {
			return malformed("avar", "segment map out of bounds")
		}
		positionMapCount := r.ReadUint16()
		seg := avarSegmentMap{}
		for j := 0; j < int(positionMapCount); j++ {
			if r.Len() < 4 {
				return malformed("avar", "axis value map out of bounds")
			}
			seg.FromCoord = append(seg.FromCoord, r.ReadF2Dot14())
			seg.ToCoord = append(seg.ToCoord, r.ReadF2Dot14())
		}
		if !validAvarSegment(seg) {
			seg = avarSegmentMap{}
		}
		avar.Segments[i] = seg
	}
	sfnt.Avar = avar
	return nil
}

// NormalizeCoords converts user-space axis coordinates (keyed by axis tag,
// using the axis's own units) into normalized [-1,1] design coordinates,
// applying the fvar default/clamp and the avar piecewise remap when present.
func (sfnt *SFNT) NormalizeCoords(user map[string]float64) []float64 {
	if sfnt.Fvar == nil {
		return nil
	}
	coords := make([]float64, len(sfnt.Fvar.Axes))
	for i, axis := range sfnt.Fvar.Axes {
		v, ok := user[axis.Tag]
		if !ok {
			v = axis.Default
		}
		if v < axis.Min {
			v = axis.Min
		} else if v > axis.Max {
			v = axis.Max
		}

		var normalized float64
		if v < axis.Default {
			if axis.Default == axis.Min {
				normalized = 0
			} else {
				normalized = -(axis.Default - v) / (axis.Default - axis.Min)
			}
		} else if v > axis.Default {
			if axis.Default == axis.Max {
				normalized = 0
			} else {
				normalized = (v - axis.Default) / (axis.Max - axis.Default)
			}
		}

		if sfnt.Avar != nil && i < len(sfnt.Avar.Segments) {
			normalized = applyAvarSegment(sfnt.Avar.Segments[i], normalized)
		}
		coords[i] = normalized
	}
	return coords
}

// validAvarSegment reports whether seg meets the avar segment map
// requirements: FromCoord sorted ascending, and the three identity points
// (-1,-1), (0,0), (1,1) present. A map failing this is discarded by the
// caller, which falls back to an identity mapping.
func validAvarSegment(seg avarSegmentMap) bool {
	if len(seg.FromCoord) == 0 {
		return true
	}
	var sawMin, sawMid, sawMax bool
	for i, from := range seg.FromCoord {
		to := seg.ToCoord[i]
		if 0 < i && from < seg.FromCoord[i-1] {
			return false
		}
		if from == -1 && to == -1 {
			sawMin = true
		} else if from == 0 && to == 0 {
			sawMid = true
		} else if from == 1 && to == 1 {
			sawMax = true
		}
	}
	return sawMin && sawMid && sawMax
}

func applyAvarSegment(seg avarSegmentMap, v float64) float64 {
	if len(seg.FromCoord) == 0 {
		return v
	}
	for i := 1; i < len(seg.FromCoord); i++ {
		if v < seg.FromCoord[i] {
			prevFrom, prevTo := seg.FromCoord[i-1], seg.ToCoord[i-1]
			curFrom, curTo := seg.FromCoord[i], seg.ToCoord[i]
			if curFrom == prevFrom {
				return curTo
			}
			return prevTo + (v-prevFrom)*(curTo-prevTo)/(curFrom-prevFrom)
		}
	}
	return seg.ToCoord[len(seg.ToCoord)-1]
}

////////////////////////////////////////////////////////////////
// Item Variation Store, shared by HVAR, VVAR, and MVAR.

type varRegionAxis struct {
	Start, Peak, End float64
}

type itemVariationData struct {
	RegionIndexes []uint16
	DeltaSets     [][]int32 // [itemIndex][regionIndexes index]
}

type itemVariationStore struct {
	Regions [][]varRegionAxis // [regionIndex][axisIndex]
	Data    []itemVariationData
}

func parseItemVariationStore(b []byte) (*itemVariationStore, error) {
	if len(b) < 8 {
		return nil, malformed("item variation store", "table too short")
	}
	r := parse.NewBinaryReader(b)
	format := r.ReadUint16()
	if format != 1 {
		return nil, &ErrUnsupportedVersion{Container: "item variation store", Got: uint32(format)}
	}
	variationRegionListOffset := r.ReadUint32()
	itemVariationDataCount := r.ReadUint16()
	dataOffsets := make([]uint32, itemVariationDataCount)
	for i := range dataOffsets {
		if r.Len() < 4 {
			return nil, malformed("item variation store", "data offset out of bounds")
		}
		dataOffsets[i] = r.ReadUint32()
	}

	store := &itemVariationStore{}

	rr := parse.NewBinaryReader(b)
	rr.Seek(int64(variationRegionListOffset), 0)
	if rr.Len() < 4 {
		return nil, malformed("item variation store", "region list out of bounds")
	}
	axisCount := rr.ReadUint16()
	regionCount := rr.ReadUint16()
	store.Regions = make([][]varRegionAxis, regionCount)
	for i := range store.Regions {
		axes := make([]varRegionAxis, axisCount)
		for j := range axes {
			if rr.Len() < 6 {
				return nil, malformed("item variation store", "region axis out of bounds")
			}
			axes[j] = varRegionAxis{
				Start: rr.ReadF2Dot14(),
				Peak:  rr.ReadF2Dot14(),
				End:   rr.ReadF2Dot14(),
			}
		}
		store.Regions[i] = axes
	}

	store.Data = make([]itemVariationData, len(dataOffsets))
	for i, offset := range dataOffsets {
		dr := parse.NewBinaryReader(b)
		dr.Seek(int64(offset), 0)
		if dr.Len() < 6 {
			return nil, malformed("item variation store", "item variation data out of bounds")
		}
		itemCount := dr.ReadUint16()
		shortDeltaCount := dr.ReadUint16()
		regionIndexCount := dr.ReadUint16()
		regionIndexes := make([]uint16, regionIndexCount)
		for j := range regionIndexes {
			regionIndexes[j] = dr.ReadUint16()
		}
		deltaSets := make([][]int32, itemCount)
		for j := range deltaSets {
			row := make([]int32, regionIndexCount)
			for k := range row {
				if k < int(shortDeltaCount) {
					row[k] = int32(dr.ReadInt16())
				} else {
					row[k] = int32(dr.ReadInt8())
				}
			}
			deltaSets[j] = row
		}
		store.Data[i] = itemVariationData{RegionIndexes: regionIndexes, DeltaSets: deltaSets}
	}
	return store, nil
}

func regionScalar(region []varRegionAxis, coords []float64) float64 {
	scalar := 1.0
	for i, axis := range region {
		if i >= len(coords) {
			break
		}
		v := coords[i]
		if axis.Peak == 0 {
			continue
		}
		if v < math.Min(axis.Start, axis.Peak) || v > math.Max(axis.Start, axis.Peak) && v > math.Max(axis.Peak, axis.End) {
			return 0
		}
		if v < axis.Start || v > axis.End {
			return 0
		}
		if v == axis.Peak {
			continue
		} else if v < axis.Peak {
			if axis.Peak == axis.Start {
				continue
			}
			scalar *= (v - axis.Start) / (axis.Peak - axis.Start)
		} else {
			if axis.Peak == axis.End {
				continue
			}
			scalar *= (axis.End - v) / (axis.End - axis.Peak)
		}
	}
	return scalar
}

// GetDelta returns the interpolated delta for the given (outer,inner)
// index pair at the given normalized design coordinates.
func (store *itemVariationStore) GetDelta(outer, inner uint16, coords []float64) float64 {
	if store == nil || int(outer) >= len(store.Data) {
		return 0
	}
	data := store.Data[outer]
	if int(inner) >= len(data.DeltaSets) {
		return 0
	}
	row := data.DeltaSets[inner]
	var total float64
	for i, regionIndex := range data.RegionIndexes {
		if int(regionIndex) >= len(store.Regions) {
			continue
		}
		s := regionScalar(store.Regions[regionIndex], coords)
		if s != 0 {
			total += s * float64(row[i])
		}
	}
	return total
}

type deltaSetIndexMap struct {
	entries []uint32 // packed (outer<<16 | inner) per glyph, or nil for identity glyph->glyph mapping
}

func parseDeltaSetIndexMap(b []byte) (*deltaSetIndexMap, error) {
	if len(b) < 4 {
		return nil, malformed("delta set index map", "table too short")
	}
	r := parse.NewBinaryReader(b)
	format := r.ReadUint8()
	entryFormat := r.ReadUint8()
	var mapCount uint32
	if format == 0 {
		mapCount = uint32(r.ReadUint16())
	} else {
		mapCount = r.ReadUint32()
	}
	entrySize := int((entryFormat>>4)&0x3) + 1
	innerBits := uint(entryFormat&0xF) + 1

	m := &deltaSetIndexMap{entries: make([]uint32, mapCount)}
	for i := range m.entries {
		if r.Len() < int64(entrySize) {
			return nil, malformed("delta set index map", "entry out of bounds")
		}
		var raw uint32
		for j := 0; j < entrySize; j++ {
			raw = raw<<8 | uint32(r.ReadUint8())
		}
		inner := raw & (1<<innerBits - 1)
		outer := raw >> innerBits
		m.entries[i] = outer<<16 | inner
	}
	return m, nil
}

func (m *deltaSetIndexMap) Index(glyphID uint16) (outer, inner uint16) {
	if m == nil {
		return 0, glyphID
	}
	i := uint32(glyphID)
	if i >= uint32(len(m.entries)) {
		i = uint32(len(m.entries)) - 1
	}
	if len(m.entries) == 0 {
		return 0, glyphID
	}
	packed := m.entries[i]
	return uint16(packed >> 16), uint16(packed)
}

////////////////////////////////////////////////////////////////

type hvarTable struct {
	Store               *itemVariationStore
	AdvanceWidthMapping *deltaSetIndexMap
	LsbMapping          *deltaSetIndexMap
	RsbMapping          *deltaSetIndexMap
}

func parseHVarVVar(b []byte) (*hvarTable, error) {
	if len(b) < 20 {
		return nil, malformed("HVAR/VVAR", "table too short")
	}
	r := parse.NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16()
	if majorVersion != 1 {
		return nil, &ErrUnsupportedVersion{Container: "HVAR/VVAR", Got: uint32(majorVersion)}
	}
	itemVariationStoreOffset := r.ReadUint32()
	advanceWidthMappingOffset := r.ReadUint32()
	lsbMappingOffset := r.ReadUint32()
	rsbMappingOffset := r.ReadUint32()

	if uint32(len(b)) < itemVariationStoreOffset {
		return nil, malformed("HVAR/VVAR", "item variation store offset out of bounds")
	}
	store, err := parseItemVariationStore(b[itemVariationStoreOffset:])
	if err != nil {
		return nil, err
	}

	t := &hvarTable{Store: store}
	if advanceWidthMappingOffset != 0 {
		if t.AdvanceWidthMapping, err = parseDeltaSetIndexMap(b[advanceWidthMappingOffset:]); err != nil {
			return nil, err
		}
	}
	if lsbMappingOffset != 0 {
		if t.LsbMapping, err = parseDeltaSetIndexMap(b[lsbMappingOffset:]); err != nil {
			return nil, err
		}
	}
	if rsbMappingOffset != 0 {
		if t.RsbMapping, err = parseDeltaSetIndexMap(b[rsbMappingOffset:]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (sfnt *SFNT) parseHVar() error {
	b, ok := sfnt.Tables["HVAR"]
	if !ok {
		return ErrMissingTable("HVAR")
	}
	t, err := parseHVarVVar(b)
	if err != nil {
		return err
	}
	sfnt.HVar = t
	return nil
}

func (sfnt *SFNT) parseVVar() error {
	b, ok := sfnt.Tables["VVAR"]
	if !ok {
		return ErrMissingTable("VVAR")
	}
	t, err := parseHVarVVar(b)
	if err != nil {
		return err
	}
	sfnt.VVar = t
	return nil
}

// AdvanceWidthDelta returns the HVAR-driven delta (in font units) to add to
// a glyph's default advance width at the given normalized coordinates.
func (sfnt *SFNT) AdvanceWidthDelta(glyphID uint16, coords []float64) float64 {
	if sfnt.HVar == nil {
		return 0
	}
	outer, inner := sfnt.HVar.AdvanceWidthMapping.Index(glyphID)
	return sfnt.HVar.Store.GetDelta(outer, inner, coords)
}

////////////////////////////////////////////////////////////////

type mvarValueRecord struct {
	Tag          string
	Outer, Inner uint16
}

type mvarTable struct {
	Store   *itemVariationStore
	Records []mvarValueRecord
}

func (sfnt *SFNT) parseMVar() error {
	b, ok := sfnt.Tables["MVAR"]
	if !ok {
		return ErrMissingTable("MVAR")
	} else if len(b) < 12 {
		return malformed("MVAR", "table too short")
	}
	r := parse.NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16()
	if majorVersion != 1 {
		return &ErrUnsupportedVersion{Container: "MVAR", Got: uint32(majorVersion)}
	}
	_ = r.ReadUint16() // reserved
	valueRecordSize := r.ReadUint16()
	valueRecordCount := r.ReadUint16()
	itemVariationStoreOffset := r.ReadUint16()

	mvar := &mvarTable{}
	for i := 0; i < int(valueRecordCount); i++ {
		if r.Len() < int64(valueRecordSize) {
			return malformed("MVAR", "value record out of bounds")
		}
		start := r.Pos()
		rec := mvarValueRecord{}
		rec.Tag = r.ReadString(4)
		rec.Outer = r.ReadUint16()
		rec.Inner = r.ReadUint16()
		mvar.Records = append(mvar.Records, rec)
		r.Seek(start + int64(valueRecordSize))
	}
	sort.Slice(mvar.Records, func(i, j int) bool { return mvar.Records[i].Tag < mvar.Records[j].Tag })

	if itemVariationStoreOffset != 0 {
		if uint32(len(b)) < uint32(itemVariationStoreOffset) {
			return malformed("MVAR", "item variation store offset out of bounds")
		}
		store, err := parseItemVariationStore(b[itemVariationStoreOffset:])
		if err != nil {
			return err
		}
		mvar.Store = store
	}
	sfnt.MVar = mvar
	return nil
}

// MetricDelta returns the MVAR delta for a given four-byte value tag (such
// as "hasc" or "undo") at the given normalized design coordinates.
func (mvar *mvarTable) MetricDelta(tag string, coords []float64) float64 {
	if mvar == nil {
		return 0
	}
	i := sort.Search(len(mvar.Records), func(i int) bool { return mvar.Records[i].Tag >= tag })
	if i == len(mvar.Records) || mvar.Records[i].Tag != tag {
		return 0
	}
	rec := mvar.Records[i]
	return mvar.Store.GetDelta(rec.Outer, rec.Inner, coords)
}

////////////////////////////////////////////////////////////////
// gvar: per-glyph outline deltas.

type tupleVariation struct {
	PeakTuple          []float64 // nil means "use shared tuple" via SharedIndex
	SharedIndex        int
	IntermediateStart  []float64 // nil if no intermediate region given
	IntermediateEnd    []float64
	PrivatePoints      []uint16 // nil means all points
	DeltasX, DeltasY   []int16  // parallel to PrivatePoints, or to all points when PrivatePoints is nil
}

func (t *tupleVariation) scalar(coords []float64, sharedTuples [][]float64) float64 {
	peak := t.PeakTuple
	if peak == nil {
		if t.SharedIndex >= len(sharedTuples) {
			return 0
		}
		peak = sharedTuples[t.SharedIndex]
	}
	scalar := 1.0
	for i, p := range peak {
		if p == 0 {
			continue
		}
		var v float64
		if i < len(coords) {
			v = coords[i]
		}
		if v == p {
			continue
		}
		if t.IntermediateStart != nil {
			start, end := t.IntermediateStart[i], t.IntermediateEnd[i]
			if v < start || v > end {
				return 0
			}
			if v < p {
				if p == start {
					continue
				}
				scalar *= (v - start) / (p - start)
			} else {
				if p == end {
					continue
				}
				scalar *= (end - v) / (end - p)
			}
		} else if v == 0 || v < math.Min(0, p) || v > math.Max(0, p) {
			return 0
		} else {
			scalar *= v / p
		}
	}
	return scalar
}

type gvarTable struct {
	AxisCount    int
	SharedTuples [][]float64
	PerGlyph     [][]tupleVariation // indexed by glyphID
}

func (sfnt *SFNT) parseGvar() error {
	b, ok := sfnt.Tables["gvar"]
	if !ok {
		return ErrMissingTable("gvar")
	} else if len(b) < 20 || sfnt.Fvar == nil {
		return malformed("gvar", "table too short, or fvar is missing")
	}

	r := parse.NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16()
	if majorVersion != 1 {
		return &ErrUnsupportedVersion{Container: "gvar", Got: uint32(majorVersion)}
	}
	axisCount := int(r.ReadUint16())
	sharedTupleCount := r.ReadUint16()
	sharedTuplesOffset := r.ReadUint32()
	glyphCount := r.ReadUint16()
	flags := r.ReadUint16()
	glyphVariationDataArrayOffset := r.ReadUint32()
	long := flags&0x0001 != 0

	gvar := &gvarTable{AxisCount: axisCount}

	tr := parse.NewBinaryReader(b)
	tr.Seek(int64(sharedTuplesOffset), 0)
	gvar.SharedTuples = make([][]float64, sharedTupleCount)
	for i := range gvar.SharedTuples {
		tuple := make([]float64, axisCount)
		for j := range tuple {
			if tr.Len() < 2 {
				return malformed("gvar", "shared tuple out of bounds")
			}
			tuple[j] = tr.ReadF2Dot14()
		}
		gvar.SharedTuples[i] = tuple
	}

	offsets := make([]uint32, int(glyphCount)+1)
	or := parse.NewBinaryReader(b)
	or.Seek(20, 0) // glyphVariationDataOffsets directly follows the fixed header
	for i := range offsets {
		if long {
			if or.Len() < 4 {
				return malformed("gvar", "offset table out of bounds")
			}
			offsets[i] = or.ReadUint32()
		} else {
			if or.Len() < 2 {
				return malformed("gvar", "offset table out of bounds")
			}
			offsets[i] = uint32(or.ReadUint16()) * 2
		}
	}

	gvar.PerGlyph = make([][]tupleVariation, glyphCount)
	for glyphID := 0; glyphID < int(glyphCount); glyphID++ {
		start, end := offsets[glyphID], offsets[glyphID+1]
		if end < start || uint32(len(b)) < glyphVariationDataArrayOffset+end {
			return malformed("gvar", "glyph variation data out of bounds")
		}
		if start == end {
			continue
		}
		data := b[glyphVariationDataArrayOffset+start : glyphVariationDataArrayOffset+end]

		numPoints := 0
		if sfnt.Glyf != nil {
			if contour, err := sfnt.Glyf.Contour(uint16(glyphID)); err == nil && 0 < len(contour.EndPoints) {
				numPoints = int(contour.EndPoints[len(contour.EndPoints)-1]) + 1
			}
		}
		numPoints += 4 // phantom points

		tvs, err := parseGlyphVariationData(data, axisCount, numPoints)
		if err != nil {
			return err
		}
		gvar.PerGlyph[glyphID] = tvs
	}
	sfnt.Gvar = gvar
	return nil
}

func parseGlyphVariationData(data []byte, axisCount, numPoints int) ([]tupleVariation, error) {
	r := parse.NewBinaryReader(data)
	if r.Len() < 4 {
		return nil, malformed("gvar", "glyph variation data header out of bounds")
	}
	tupleCount := r.ReadUint16()
	dataOffset := r.ReadUint16()
	hasSharedPoints := tupleCount&0x8000 != 0
	count := int(tupleCount & 0x0FFF)

	type header struct {
		size              uint16
		tv                tupleVariation
		privatePointsFlag bool
	}
	headers := make([]header, count)
	for i := 0; i < count; i++ {
		if r.Len() < 4 {
			return nil, malformed("gvar", "tuple variation header out of bounds")
		}
		variationDataSize := r.ReadUint16()
		tupleIndex := r.ReadUint16()
		h := header{size: variationDataSize}
		embeddedPeak := tupleIndex&0x8000 != 0
		intermediate := tupleIndex&0x4000 != 0
		h.privatePointsFlag = tupleIndex&0x2000 != 0
		h.tv.SharedIndex = int(tupleIndex & 0x0FFF)
		if embeddedPeak {
			peak := make([]float64, axisCount)
			for j := range peak {
				peak[j] = r.ReadF2Dot14()
			}
			h.tv.PeakTuple = peak
		}
		if intermediate {
			start := make([]float64, axisCount)
			for j := range start {
				start[j] = r.ReadF2Dot14()
			}
			end := make([]float64, axisCount)
			for j := range end {
				end[j] = r.ReadF2Dot14()
			}
			h.tv.IntermediateStart = start
			h.tv.IntermediateEnd = end
		}
		headers[i] = h
	}

	body := data[dataOffset:]
	var sharedPoints []uint16
	if hasSharedPoints {
		var err error
		sharedPoints, body, err = parsePackedPointNumbers(body)
		if err != nil {
			return nil, err
		}
	}

	out := make([]tupleVariation, count)
	for i, h := range headers {
		tv := h.tv
		points := sharedPoints
		remaining := body
		if h.privatePointsFlag {
			var err error
			points, remaining, err = parsePackedPointNumbers(remaining)
			if err != nil {
				return nil, err
			}
		}
		tv.PrivatePoints = points

		n := numPoints
		if points != nil {
			n = len(points)
		}
		deltasX, rest, err := parsePackedDeltas(remaining, n)
		if err != nil {
			return nil, err
		}
		deltasY, rest2, err := parsePackedDeltas(rest, n)
		if err != nil {
			return nil, err
		}
		tv.DeltasX, tv.DeltasY = deltasX, deltasY
		body = rest2
		out[i] = tv
	}
	return out, nil
}

func parsePackedPointNumbers(data []byte) ([]uint16, []byte, error) {
	if len(data) < 1 {
		return nil, nil, malformed("gvar", "packed point numbers: unexpected eof")
	}
	var count int
	var consumed int
	if data[0] == 0 {
		return nil, data[1:], nil // all points
	} else if data[0]&0x80 == 0 {
		count = int(data[0])
		consumed = 1
	} else {
		if len(data) < 2 {
			return nil, nil, malformed("gvar", "packed point numbers: unexpected eof")
		}
		count = int(data[0]&0x7F)<<8 | int(data[1])
		consumed = 2
	}
	data = data[consumed:]

	points := make([]uint16, 0, count)
	var last uint16
	for len(points) < count {
		if len(data) < 1 {
			return nil, nil, malformed("gvar", "packed point numbers: unexpected eof")
		}
		control := data[0]
		runLength := int(control&0x7F) + 1
		is16Bit := control&0x80 != 0
		data = data[1:]
		if is16Bit {
			if len(data) < 2*runLength {
				return nil, nil, malformed("gvar", "packed point numbers: unexpected eof")
			}
			for i := 0; i < runLength && len(points) < count; i++ {
				v := uint16(data[0])<<8 | uint16(data[1])
				data = data[2:]
				last += v
				points = append(points, last)
			}
		} else {
			if len(data) < runLength {
				return nil, nil, malformed("gvar", "packed point numbers: unexpected eof")
			}
			for i := 0; i < runLength && len(points) < count; i++ {
				last += uint16(data[0])
				data = data[1:]
				points = append(points, last)
			}
		}
	}
	return points, data, nil
}

func parsePackedDeltas(data []byte, count int) ([]int16, []byte, error) {
	out := make([]int16, 0, count)
	for len(out) < count {
		if len(data) < 1 {
			return nil, nil, malformed("gvar", "packed deltas: unexpected eof")
		}
		control := data[0]
		runLength := int(control&0x3F) + 1
		data = data[1:]
		switch {
		case control&0x80 != 0: // zeroes
			for i := 0; i < runLength && len(out) < count; i++ {
				out = append(out, 0)
			}
		case control&0x40 != 0: // int16 values
			if len(data) < 2*runLength {
				return nil, nil, malformed("gvar", "packed deltas: unexpected eof")
			}
			for i := 0; i < runLength && len(out) < count; i++ {
				out = append(out, int16(uint16(data[0])<<8|uint16(data[1])))
				data = data[2:]
			}
		default: // int8 values
			if len(data) < runLength {
				return nil, nil, malformed("gvar", "packed deltas: unexpected eof")
			}
			for i := 0; i < runLength && len(out) < count; i++ {
				out = append(out, int16(int8(data[0])))
				data = data[1:]
			}
		}
	}
	return out, data, nil
}

// VariationPoint is one point of a glyph outline (on- or off-curve, or a
// phantom point) subject to gvar deltas.
type VariationPoint struct {
	X, Y       float64
	OnCurve    bool
	IsExplicit bool // set by ApplyGvarDeltas to mark points with a direct delta
}

// ApplyGvarDeltas mutates points in place, applying every active tuple
// variation for glyphID at the given normalized coordinates. endPoints
// gives, for each contour, the index of its last point within points
// (phantom points, if included, are treated as trailing unreferenced
// points of one final implicit "contour").
func (sfnt *SFNT) ApplyGvarDeltas(glyphID uint16, coords []float64, points []VariationPoint, endPoints []int) {
	if sfnt.Gvar == nil || int(glyphID) >= len(sfnt.Gvar.PerGlyph) {
		return
	}
	tvs := sfnt.Gvar.PerGlyph[glyphID]
	if len(tvs) == 0 {
		return
	}
	orig := make([]VariationPoint, len(points))
	copy(orig, points)

	deltaX := make([]float64, len(points))
	deltaY := make([]float64, len(points))
	explicit := make([]bool, len(points))

	for _, tv := range tvs {
		scalar := tv.scalar(coords, sfnt.Gvar.SharedTuples)
		if scalar == 0 {
			continue
		}
		for i := range explicit {
			explicit[i] = false
		}
		if tv.PrivatePoints == nil {
			for i := 0; i < len(points) && i < len(tv.DeltasX); i++ {
				deltaX[i] += float64(tv.DeltasX[i]) * scalar
				deltaY[i] += float64(tv.DeltasY[i]) * scalar
				explicit[i] = true
			}
			continue
		}
		for i, pt := range tv.PrivatePoints {
			if int(pt) >= len(points) || i >= len(tv.DeltasX) {
				continue
			}
			deltaX[pt] += float64(tv.DeltasX[i]) * scalar
			deltaY[pt] += float64(tv.DeltasY[i]) * scalar
			explicit[pt] = true
		}
		inferUnreferencedDeltas(orig, deltaX, deltaY, explicit, endPoints)
	}

	for i := range points {
		points[i].X += deltaX[i]
		points[i].Y += deltaY[i]
		points[i].IsExplicit = explicit[i]
	}
}

// inferUnreferencedDeltas implements the IUP (Inferred Unreferenced Points)
// algorithm: points without an explicit delta receive one interpolated
// between their contour's nearest explicitly-moved neighbors.
func inferUnreferencedDeltas(orig []VariationPoint, deltaX, deltaY []float64, explicit []bool, endPoints []int) {
	start := 0
	for _, end := range endPoints {
		if end < start || end >= len(orig) {
			start = end + 1
			continue
		}
		n := end - start + 1
		anyExplicit, allExplicit := false, true
		for i := start; i <= end; i++ {
			if explicit[i] {
				anyExplicit = true
			} else {
				allExplicit = false
			}
		}
		if !anyExplicit || allExplicit || n < 2 {
			start = end + 1
			continue
		}

		firstExplicit := -1
		for i := start; i <= end; i++ {
			if explicit[i] {
				firstExplicit = i
				break
			}
		}
		prev := firstExplicit
		i := firstExplicit
		for count := 0; count < n; count++ {
			i++
			if i > end {
				i = start
			}
			if explicit[i] {
				if i != prev {
					interpolateIUPRun(orig, deltaX, deltaY, prev, i, start, end)
				}
				prev = i
			}
		}
		start = end + 1
	}
}

func interpolateIUPRun(orig []VariationPoint, deltaX, deltaY []float64, prev, next, start, end int) {
	n := end - start + 1
	gap := next - prev
	if gap < 0 {
		gap += n
	}
	if gap <= 1 {
		return
	}
	i := prev
	for k := 1; k < gap; k++ {
		i++
		if i > end {
			i = start
		}
		deltaX[i] = iupInferAxis(orig[i].X, orig[prev].X, orig[next].X, deltaX[prev], deltaX[next])
		deltaY[i] = iupInferAxis(orig[i].Y, orig[prev].Y, orig[next].Y, deltaY[prev], deltaY[next])
	}
}

func iupInferAxis(target, prevVal, nextVal, prevDelta, nextDelta float64) float64 {
	if prevVal == nextVal {
		if prevDelta == nextDelta {
			return prevDelta
		}
		return 0
	}
	lo, hi := prevVal, nextVal
	loDelta, hiDelta := prevDelta, nextDelta
	if lo > hi {
		lo, hi = hi, lo
		loDelta, hiDelta = hiDelta, loDelta
	}
	if target <= lo {
		return loDelta
	} else if target >= hi {
		return hiDelta
	}
	r := (target - lo) / (hi - lo)
	return loDelta + r*(hiDelta-loDelta)
}
