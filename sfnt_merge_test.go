package font

import (
	"testing"

	"github.com/tdewolff/test"
)

func TestMergeEndToEnd(t *testing.T) {
	sfnt, err := Parse(buildTestTTF(), 0)
	test.Error(t, err)

	other, err := Parse(buildTestTTF(), 0)
	test.Error(t, err)

	// two copies of the same font share unicode mappings, so fall back to
	// an identity cmap rather than tripping the duplicate-mapping check
	err = sfnt.Merge(other, MergeOptions{IdentityCmap: true})
	test.Error(t, err)
	test.T(t, sfnt.NumGlyphs(), uint16(5)) // 3 + 3 - 1 (shared .notdef)

	b := sfnt.Write()
	reopened, err := Parse(b, 0)
	test.Error(t, err)
	test.T(t, reopened.NumGlyphs(), uint16(5))
}
