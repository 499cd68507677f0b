package font

import (
	"testing"

	"github.com/tdewolff/test"
)

func TestTupleVariationScalar(t *testing.T) {
	// peak at wght=1.0, no intermediate region
	tv := &tupleVariation{PeakTuple: []float64{1.0}}
	test.T(t, tv.scalar([]float64{0.0}, nil), 0.0)
	test.T(t, tv.scalar([]float64{1.0}, nil), 1.0)
	test.T(t, tv.scalar([]float64{0.5}, nil), 0.5)
	test.T(t, tv.scalar([]float64{-1.0}, nil), 0.0) // wrong side of zero

	// intermediate region [0, 1] peaking at 0.5
	tvi := &tupleVariation{
		PeakTuple:         []float64{0.5},
		IntermediateStart: []float64{0.0},
		IntermediateEnd:   []float64{1.0},
	}
	test.T(t, tvi.scalar([]float64{0.5}, nil), 1.0)
	test.T(t, tvi.scalar([]float64{0.0}, nil), 0.0)
	test.T(t, tvi.scalar([]float64{1.0}, nil), 0.0)
	test.T(t, tvi.scalar([]float64{0.25}, nil), 0.5)
}

func TestAvarSegmentIdentity(t *testing.T) {
	seg := avarSegmentMap{
		FromCoord: []float64{-1, 0, 1},
		ToCoord:   []float64{-1, 0, 1},
	}
	test.T(t, applyAvarSegment(seg, -1), -1.0)
	test.T(t, applyAvarSegment(seg, 0), 0.0)
	test.T(t, applyAvarSegment(seg, 1), 1.0)
	test.T(t, applyAvarSegment(seg, 0.5), 0.5)
}

func TestAvarSegmentRemap(t *testing.T) {
	// compress the positive half into [0, 0.5]
	seg := avarSegmentMap{
		FromCoord: []float64{-1, 0, 1},
		ToCoord:   []float64{-1, 0, 0.5},
	}
	test.T(t, applyAvarSegment(seg, 1), 0.5)
	test.T(t, applyAvarSegment(seg, 0.5), 0.25)
}

func TestValidAvarSegment(t *testing.T) {
	test.T(t, validAvarSegment(avarSegmentMap{}), true)

	test.T(t, validAvarSegment(avarSegmentMap{
		FromCoord: []float64{-1, 0, 1},
		ToCoord:   []float64{-1, 0, 1},
	}), true)

	test.T(t, validAvarSegment(avarSegmentMap{
		FromCoord: []float64{-1, 0, 0.5, 1},
		ToCoord:   []float64{-1, 0, 0.25, 1},
	}), true)

	// missing the (0,0) identity point
	test.T(t, validAvarSegment(avarSegmentMap{
		FromCoord: []float64{-1, 1},
		ToCoord:   []float64{-1, 1},
	}), false)

	// unsorted FromCoord
	test.T(t, validAvarSegment(avarSegmentMap{
		FromCoord: []float64{-1, 0.5, 0, 1},
		ToCoord:   []float64{-1, 0.25, 0, 1},
	}), false)
}

func TestPackedPointNumbersRoundTrip(t *testing.T) {
	points := []uint16{0, 1, 2, 5, 9, 200, 201, 500}
	packed := packPointNumbers(points)
	got, rest, err := parsePackedPointNumbers(packed)
	test.Error(t, err)
	test.T(t, len(rest), 0)
	test.T(t, got, points)
}

func TestPackedPointNumbersAllPoints(t *testing.T) {
	packed := packPointNumbers(nil)
	got, rest, err := parsePackedPointNumbers(packed)
	test.Error(t, err)
	test.T(t, len(rest), 0)
	test.T(t, len(got), 0)
}

func TestPackedDeltasRoundTrip(t *testing.T) {
	deltas := []int16{0, 1, -1, 300, -300, 32767, -32768}
	packed := packDeltas(deltas)
	got, rest, err := parsePackedDeltas(packed, len(deltas))
	test.Error(t, err)
	test.T(t, len(rest), 0)
	test.T(t, got, deltas)
}

func TestRegionScalar(t *testing.T) {
	region := []varRegionAxis{{Start: 0, Peak: 1, End: 1}}
	test.T(t, regionScalar(region, []float64{1}), 1.0)
	test.T(t, regionScalar(region, []float64{0}), 0.0)
	test.T(t, regionScalar(region, []float64{0.5}), 0.5)
	test.T(t, regionScalar(region, []float64{-1}), 0.0)
}
