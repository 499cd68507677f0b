package font

import (
	"testing"

	"github.com/tdewolff/test"
)

func TestWriteGlyphVariationDataRoundTrip(t *testing.T) {
	tvs := []tupleVariation{
		{
			PeakTuple:     []float64{1.0, 0.0},
			PrivatePoints: []uint16{0, 1, 4},
			DeltasX:       []int16{10, -10, 5},
			DeltasY:       []int16{0, 3, -3},
		},
		{
			PeakTuple:         []float64{0.0, 0.5},
			IntermediateStart: []float64{0.0, 0.0},
			IntermediateEnd:   []float64{0.0, 1.0},
			PrivatePoints:     nil, // all points
			DeltasX:           []int16{1, 1, 1, 1, 1},
			DeltasY:           []int16{2, 2, 2, 2, 2},
		},
	}

	data := writeGlyphVariationData(tvs, 2)
	got, err := parseGlyphVariationData(data, 2, 5)
	test.Error(t, err)
	test.T(t, len(got), len(tvs))

	test.T(t, got[0].PeakTuple, tvs[0].PeakTuple)
	test.T(t, got[0].PrivatePoints, tvs[0].PrivatePoints)
	test.T(t, got[0].DeltasX, tvs[0].DeltasX)
	test.T(t, got[0].DeltasY, tvs[0].DeltasY)

	test.T(t, got[1].PeakTuple, tvs[1].PeakTuple)
	test.T(t, got[1].IntermediateStart, tvs[1].IntermediateStart)
	test.T(t, got[1].IntermediateEnd, tvs[1].IntermediateEnd)
	test.T(t, len(got[1].PrivatePoints), 0)
	test.T(t, got[1].DeltasX, tvs[1].DeltasX)
	test.T(t, got[1].DeltasY, tvs[1].DeltasY)
}

func TestWriteGlyphVariationDataEmpty(t *testing.T) {
	data := writeGlyphVariationData(nil, 2)
	test.T(t, len(data), 0)
}

func TestSubsetGvar(t *testing.T) {
	gvarOld := &gvarTable{
		AxisCount:    1,
		SharedTuples: nil,
		PerGlyph: [][]tupleVariation{
			{{PeakTuple: []float64{1.0}, PrivatePoints: []uint16{0}, DeltasX: []int16{5}, DeltasY: []int16{0}}}, // glyph 0
			nil, // glyph 1: no variation data
			{{PeakTuple: []float64{1.0}, PrivatePoints: []uint16{1}, DeltasX: []int16{-5}, DeltasY: []int16{0}}}, // glyph 2
		},
	}

	// subset keeps glyph 2 then glyph 0, dropping glyph 1
	out := subsetGvar(gvarOld, []uint16{2, 0})
	if len(out) == 0 {
		t.Fatal("expected non-empty gvar table")
	}

	majorVersion := uint16(out[0])<<8 | uint16(out[1])
	test.T(t, majorVersion, uint16(1))
	glyphCount := uint16(out[12])<<8 | uint16(out[13])
	test.T(t, glyphCount, uint16(2))
}
