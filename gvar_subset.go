package font

import (
	"github.com/tdewolff/parse/v2"
)

// subsetGvar rebuilds a gvar table restricted to glyphIDs (given in their new
// order), remapping nothing inside each glyph's tuple variation data since
// point numbers and deltas are relative to a single glyph's own outline.
func subsetGvar(gvarOld *gvarTable, glyphIDs []uint16) []byte {
	axisCount := gvarOld.AxisCount
	glyphCount := len(glyphIDs)

	perGlyph := make([][]byte, glyphCount)
	for i, glyphID := range glyphIDs {
		var tvs []tupleVariation
		if int(glyphID) < len(gvarOld.PerGlyph) {
			tvs = gvarOld.PerGlyph[glyphID]
		}
		perGlyph[i] = writeGlyphVariationData(tvs, axisCount)
	}

	sharedTuplesBody := parse.NewBinaryWriter(make([]byte, 0, 4*axisCount*len(gvarOld.SharedTuples)))
	for _, tuple := range gvarOld.SharedTuples {
		for _, v := range tuple {
			sharedTuplesBody.WriteUint16(encodeF2Dot14(v))
		}
	}

	// try short (u16, halved) offsets first; fall back to long (u32) offsets
	// if any per-glyph block would straddle a non-even boundary or the table
	// grows past what a doubled u16 offset can address.
	long := false
	var total uint32
	for _, block := range perGlyph {
		total += uint32(len(block))
		if total&1 != 0 {
			long = true
		}
	}
	if total > 2*0xFFFF {
		long = true
	}

	headerSize := uint32(20)
	offsetsSize := uint32(glyphCount+1) * 4
	if !long {
		offsetsSize = uint32(glyphCount+1) * 2
	}
	sharedTuplesOffset := headerSize + offsetsSize
	dataArrayOffset := sharedTuplesOffset + uint32(sharedTuplesBody.Len())

	w := parse.NewBinaryWriter(make([]byte, 0, int(dataArrayOffset+total)))
	w.WriteUint16(1) // majorVersion
	w.WriteUint16(0) // minorVersion
	w.WriteUint16(uint16(axisCount))
	w.WriteUint16(uint16(len(gvarOld.SharedTuples)))
	w.WriteUint32(sharedTuplesOffset)
	w.WriteUint16(uint16(glyphCount))
	if long {
		w.WriteUint16(0x0001)
	} else {
		w.WriteUint16(0x0000)
	}
	w.WriteUint32(dataArrayOffset)

	var offset uint32
	for _, block := range perGlyph {
		if long {
			w.WriteUint32(offset)
		} else {
			w.WriteUint16(uint16(offset / 2))
		}
		offset += uint32(len(block))
	}
	if long {
		w.WriteUint32(offset)
	} else {
		w.WriteUint16(uint16(offset / 2))
	}

	w.WriteBytes(sharedTuplesBody.Bytes())
	for _, block := range perGlyph {
		w.WriteBytes(block)
	}
	return w.Bytes()
}

func writeGlyphVariationData(tvs []tupleVariation, axisCount int) []byte {
	if len(tvs) == 0 {
		return nil
	}

	headers := parse.NewBinaryWriter(make([]byte, 0, 64))
	bodies := parse.NewBinaryWriter(make([]byte, 0, 64))
	for _, tv := range tvs {
		tupleIndex := uint16(0) // reference the shared tuple when no peak is embedded
		if tv.PeakTuple == nil {
			tupleIndex = uint16(tv.SharedIndex) & 0x0FFF
		} else {
			tupleIndex |= 0x8000
		}
		if tv.IntermediateStart != nil {
			tupleIndex |= 0x4000
		}
		tupleIndex |= 0x2000 // privatePointNumbersFlag: always write explicit point numbers

		body := parse.NewBinaryWriter(make([]byte, 0, 64))
		body.WriteBytes(packPointNumbers(tv.PrivatePoints))
		body.WriteBytes(packDeltas(tv.DeltasX))
		body.WriteBytes(packDeltas(tv.DeltasY))

		headers.WriteUint16(uint16(body.Len()))
		headers.WriteUint16(tupleIndex)
		if tupleIndex&0x8000 != 0 {
			for _, v := range tv.PeakTuple {
				headers.WriteUint16(encodeF2Dot14(v))
			}
		}
		if tupleIndex&0x4000 != 0 {
			for _, v := range tv.IntermediateStart {
				headers.WriteUint16(encodeF2Dot14(v))
			}
			for _, v := range tv.IntermediateEnd {
				headers.WriteUint16(encodeF2Dot14(v))
			}
		}
		bodies.WriteBytes(body.Bytes())
	}
	_ = axisCount

	out := parse.NewBinaryWriter(make([]byte, 0, int(4+headers.Len()+bodies.Len())))
	out.WriteUint16(uint16(len(tvs)))          // tupleCount, sharedPointNumbers flag left unset
	out.WriteUint16(uint16(4 + headers.Len())) // serializedDataOffset
	out.WriteBytes(headers.Bytes())
	out.WriteBytes(bodies.Bytes())
	return out.Bytes()
}

// packPointNumbers encodes points as delta runs of at most 128 points each,
// each run entirely 8-bit or entirely 16-bit depending on whether every
// delta in it fits a byte: simple to produce, always valid, just not
// maximally compact. nil means "all points".
func packPointNumbers(points []uint16) []byte {
	if points == nil {
		return []byte{0x00}
	}
	w := parse.NewBinaryWriter(make([]byte, 0, 2+3*len(points)))
	count := len(points)
	if count < 128 {
		w.WriteUint8(uint8(count))
	} else {
		w.WriteUint16(uint16(count) | 0x8000)
	}
	var last uint16
	for i := 0; i < len(points); {
		run := len(points) - i
		if run > 128 {
			run = 128
		}
		is16Bit := false
		probe := last
		for j := 0; j < run; j++ {
			if points[i+j]-probe > 0xFF {
				is16Bit = true
				run = j + 1 // this point forces the switch; stop the run here
				break
			}
			probe = points[i+j]
		}
		if is16Bit {
			w.WriteUint8(uint8(0x80 | (run - 1)))
			for j := 0; j < run; j++ {
				d := points[i+j] - last
				w.WriteUint16(d)
				last = points[i+j]
			}
		} else {
			w.WriteUint8(uint8(run - 1)) // top bit clear: 8-bit deltas follow
			for j := 0; j < run; j++ {
				d := points[i+j] - last
				w.WriteUint8(uint8(d))
				last = points[i+j]
			}
		}
		i += run
	}
	return w.Bytes()
}

// packDeltas writes 16-bit delta runs of at most 64 values each, the
// simplest valid encoding of the packed deltas format.
func packDeltas(deltas []int16) []byte {
	w := parse.NewBinaryWriter(make([]byte, 0, 1+2*len(deltas)))
	for i := 0; i < len(deltas); i += 64 {
		run := len(deltas) - i
		if run > 64 {
			run = 64
		}
		w.WriteUint8(uint8(0x40 | (run - 1))) // int16 values
		for j := 0; j < run; j++ {
			w.WriteInt16(deltas[i+j])
		}
	}
	if len(deltas) == 0 {
		return []byte{}
	}
	return w.Bytes()
}

func encodeF2Dot14(v float64) uint16 {
	return uint16(int16(v * 16384))
}
