package font

import (
	"github.com/tdewolff/parse/v2"
)

// Structural parsing for the OpenType layout tables (GSUB, GPOS, GDEF, BASE,
// JSTF). These tables describe substitution and positioning rules, glyph
// classes, and baseline/justification metadata. None of their rules are
// applied by this package: parsing only validates that the script, feature,
// lookup, and class-definition structures are well-formed and in-bounds
// (coverage tables are not read during parsing; ParseCoverage reads one on
// demand), so that a caller who wants to walk the raw lookups (for a
// shaping engine built on top of this package) can do so safely.

type langSysRecord struct {
	Tag                  string
	RequiredFeatureIndex uint16
	FeatureIndices       []uint16
}

type scriptRecord struct {
	Tag      string
	Default  *langSysRecord
	LangSyss []langSysRecord
}

type featureRecord struct {
	Tag           string
	LookupIndices []uint16
}

type lookupTable struct {
	Type             uint16
	Flags            uint16
	SubtableOffsets  []uint16
	MarkFilteringSet uint16
}

// CoverageTable is a parsed OpenType Coverage table, mapping each covered
// glyph ID to its coverage index. Exported so a shaping engine built on top
// of this package can resolve a lookup subtable's coverage offset itself.
type CoverageTable struct {
	Glyphs map[uint16]uint16
}

// ParseCoverage parses a Coverage table from the current reader position.
func ParseCoverage(r *parse.BinaryReader) (*CoverageTable, error) {
	format := r.ReadUint16()
	cov := &CoverageTable{Glyphs: map[uint16]uint16{}}
	switch format {
	case 1:
		glyphCount := r.ReadUint16()
		if r.Len() < 2*int64(glyphCount) {
			return nil, malformed("coverage", "glyph array out of bounds")
		}
		for i := 0; i < int(glyphCount); i++ {
			cov.Glyphs[r.ReadUint16()] = uint16(i)
		}
	case 2:
		rangeCount := r.ReadUint16()
		if r.Len() < 6*int64(rangeCount) {
			return nil, malformed("coverage", "range array out of bounds")
		}
		for i := 0; i < int(rangeCount); i++ {
			start := r.ReadUint16()
			end := r.ReadUint16()
			startCoverageIndex := r.ReadUint16()
			if end < start {
				return nil, malformed("coverage", "range end before start")
			}
			for g := uint32(start); g <= uint32(end); g++ {
				cov.Glyphs[uint16(g)] = startCoverageIndex + uint16(g-uint32(start))
			}
		}
	default:
		return nil, &ErrUnsupportedVersion{Container: "coverage", Got: uint32(format)}
	}
	return cov, nil
}

type classDefTable struct {
	Classes map[uint16]uint16 // glyphID -> class; glyphs absent are class 0
}

func parseClassDef(r *parse.BinaryReader) (*classDefTable, error) {
	format := r.ReadUint16()
	cd := &classDefTable{Classes: map[uint16]uint16{}}
	switch format {
	case 1:
		startGlyphID := r.ReadUint16()
		glyphCount := r.ReadUint16()
		if r.Len() < 2*int64(glyphCount) {
			return nil, malformed("classDef", "class array out of bounds")
		}
		for i := 0; i < int(glyphCount); i++ {
			if class := r.ReadUint16(); class != 0 {
				cd.Classes[startGlyphID+uint16(i)] = class
			}
		}
	case 2:
		rangeCount := r.ReadUint16()
		if r.Len() < 6*int64(rangeCount) {
			return nil, malformed("classDef", "range array out of bounds")
		}
		for i := 0; i < int(rangeCount); i++ {
			start := r.ReadUint16()
			end := r.ReadUint16()
			class := r.ReadUint16()
			if end < start {
				return nil, malformed("classDef", "range end before start")
			}
			if class == 0 {
				continue
			}
			for g := uint32(start); g <= uint32(end); g++ {
				cd.Classes[uint16(g)] = class
			}
		}
	default:
		return nil, &ErrUnsupportedVersion{Container: "classDef", Got: uint32(format)}
	}
	return cd, nil
}

// gposgsubTable holds the structural content common to GPOS and GSUB: a
// script list, a feature list, and a lookup list. Lookup subtables are kept
// as raw offsets; their type-specific bodies are not parsed.
type gposgsubTable struct {
	Scripts  []scriptRecord
	Features []featureRecord
	Lookups  []lookupTable
}

func parseLangSys(offset uint16, base []byte) (*langSysRecord, error) {
	lr := parse.NewBinaryReader(base)
	lr.Seek(int64(offset), 0)
	if lr.Len() < 6 {
		return nil, malformed("LangSys", "table out of bounds")
	}
	_ = lr.ReadUint16() // lookupOrder, reserved
	ls := &langSysRecord{}
	ls.RequiredFeatureIndex = lr.ReadUint16()
	featureIndexCount := lr.ReadUint16()
	if lr.Len() < 2*int64(featureIndexCount) {
		return nil, malformed("LangSys", "feature index array out of bounds")
	}
	ls.FeatureIndices = make([]uint16, featureIndexCount)
	for i := range ls.FeatureIndices {
		ls.FeatureIndices[i] = lr.ReadUint16()
	}
	return ls, nil
}

func parseScriptList(b []byte, offset uint32) ([]scriptRecord, error) {
	r := parse.NewBinaryReader(b)
	r.Seek(int64(offset), 0)
	if r.Len() < 2 {
		return nil, malformed("ScriptList", "table out of bounds")
	}
	scriptCount := r.ReadUint16()
	if r.Len() < 6*int64(scriptCount) {
		return nil, malformed("ScriptList", "script record array out of bounds")
	}
	type rec struct {
		tag    string
		offset uint16
	}
	recs := make([]rec, scriptCount)
	for i := range recs {
		recs[i] = rec{tag: r.ReadString(4), offset: r.ReadUint16()}
	}

	scriptBase := b[offset:]
	scripts := make([]scriptRecord, scriptCount)
	for i, rc := range recs {
		sr := parse.NewBinaryReader(scriptBase)
		sr.Seek(int64(rc.offset), 0)
		if sr.Len() < 4 {
			return nil, malformed("Script", "table out of bounds")
		}
		defaultLangSysOffset := sr.ReadUint16()
		langSysCount := sr.ReadUint16()
		if sr.Len() < 6*int64(langSysCount) {
			return nil, malformed("Script", "langSys record array out of bounds")
		}
		scripts[i].Tag = rc.tag
		if defaultLangSysOffset != 0 {
			ls, err := parseLangSys(defaultLangSysOffset, scriptBase[rc.offset:])
			if err != nil {
				return nil, err
			}
			scripts[i].Default = ls
		}
		for j := 0; j < int(langSysCount); j++ {
			tag := sr.ReadString(4)
			langSysOffset := sr.ReadUint16()
			ls, err := parseLangSys(langSysOffset, scriptBase[rc.offset:])
			if err != nil {
				return nil, err
			}
			ls.Tag = tag
			scripts[i].LangSyss = append(scripts[i].LangSyss, *ls)
		}
	}
	return scripts, nil
}

func parseFeatureList(b []byte, offset uint32) ([]featureRecord, error) {
	r := parse.NewBinaryReader(b)
	r.Seek(int64(offset), 0)
	if r.Len() < 2 {
		return nil, malformed("FeatureList", "table out of bounds")
	}
	featureCount := r.ReadUint16()
	if r.Len() < 6*int64(featureCount) {
		return nil, malformed("FeatureList", "feature record array out of bounds")
	}
	type rec struct {
		tag    string
		offset uint16
	}
	recs := make([]rec, featureCount)
	for i := range recs {
		recs[i] = rec{tag: r.ReadString(4), offset: r.ReadUint16()}
	}

	base := b[offset:]
	features := make([]featureRecord, featureCount)
	for i, rc := range recs {
		fr := parse.NewBinaryReader(base)
		fr.Seek(int64(rc.offset), 0)
		if fr.Len() < 4 {
			return nil, malformed("Feature", "table out of bounds")
		}
		_ = fr.ReadUint16() // featureParams offset
		lookupIndexCount := fr.ReadUint16()
		if fr.Len() < 2*int64(lookupIndexCount) {
			return nil, malformed("Feature", "lookup index array out of bounds")
		}
		features[i].Tag = rc.tag
		features[i].LookupIndices = make([]uint16, lookupIndexCount)
		for j := range features[i].LookupIndices {
			features[i].LookupIndices[j] = fr.ReadUint16()
		}
	}
	return features, nil
}

func parseLookupList(b []byte, offset uint32) ([]lookupTable, error) {
	r := parse.NewBinaryReader(b)
	r.Seek(int64(offset), 0)
	if r.Len() < 2 {
		return nil, malformed("LookupList", "table out of bounds")
	}
	lookupCount := r.ReadUint16()
	if r.Len() < 2*int64(lookupCount) {
		return nil, malformed("LookupList", "lookup offset array out of bounds")
	}
	offsets := make([]uint16, lookupCount)
	for i := range offsets {
		offsets[i] = r.ReadUint16()
	}

	base := b[offset:]
	lookups := make([]lookupTable, lookupCount)
	for i, lookupOffset := range offsets {
		lr := parse.NewBinaryReader(base)
		lr.Seek(int64(lookupOffset), 0)
		if lr.Len() < 6 {
			return nil, malformed("Lookup", "table out of bounds")
		}
		lt := lookupTable{}
		lt.Type = lr.ReadUint16()
		lt.Flags = lr.ReadUint16()
		subtableCount := lr.ReadUint16()
		if lr.Len() < 2*int64(subtableCount) {
			return nil, malformed("Lookup", "subtable offset array out of bounds")
		}
		lt.SubtableOffsets = make([]uint16, subtableCount)
		for j := range lt.SubtableOffsets {
			lt.SubtableOffsets[j] = lr.ReadUint16()
		}
		if lt.Flags&0x0010 != 0 { // USE_MARK_FILTERING_SET
			if lr.Len() < 2 {
				return nil, malformed("Lookup", "markFilteringSet out of bounds")
			}
			lt.MarkFilteringSet = lr.ReadUint16()
		}
		lookups[i] = lt
	}
	return lookups, nil
}

func parseGposgsub(b []byte) (*gposgsubTable, error) {
	if len(b) < 10 {
		return nil, malformed("GPOS/GSUB", "table too short")
	}
	r := parse.NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	minorVersion := r.ReadUint16()
	if majorVersion != 1 || (minorVersion != 0 && minorVersion != 1) {
		return nil, &ErrUnsupportedVersion{Container: "GPOS/GSUB", Got: uint32(majorVersion)<<16 | uint32(minorVersion)}
	}
	scriptListOffset := uint32(r.ReadUint16())
	featureListOffset := uint32(r.ReadUint16())
	lookupListOffset := uint32(r.ReadUint16())
	// minorVersion 1 adds a featureVariationsOffset, not parsed here

	t := &gposgsubTable{}
	var err error
	if t.Scripts, err = parseScriptList(b, scriptListOffset); err != nil {
		return nil, err
	}
	if t.Features, err = parseFeatureList(b, featureListOffset); err != nil {
		return nil, err
	}
	if t.Lookups, err = parseLookupList(b, lookupListOffset); err != nil {
		return nil, err
	}
	return t, nil
}

func (sfnt *SFNT) parseGPOS() error {
	b, ok := sfnt.Tables["GPOS"]
	if !ok {
		return ErrMissingTable("GPOS")
	}
	t, err := parseGposgsub(b)
	if err != nil {
		return err
	}
	sfnt.Gpos = t
	return nil
}

func (sfnt *SFNT) parseGSUB() error {
	b, ok := sfnt.Tables["GSUB"]
	if !ok {
		return ErrMissingTable("GSUB")
	}
	t, err := parseGposgsub(b)
	if err != nil {
		return err
	}
	sfnt.Gsub = t
	return nil
}

////////////////////////////////////////////////////////////////

// gdefTable holds the structural content of GDEF: glyph classes, attachment
// points, ligature caret lists, and mark attachment classes.
type gdefTable struct {
	GlyphClassDef          *classDefTable
	MarkAttachClassDef     *classDefTable
	HasAttachList          bool
	HasLigCaretList        bool
	MarkGlyphSetsDefOffset uint32
}

func (sfnt *SFNT) parseGDEF() error {
	b, ok := sfnt.Tables["GDEF"]
	if !ok {
		return ErrMissingTable("GDEF")
	} else if len(b) < 12 {
		return malformed("GDEF", "table too short")
	}
	r := parse.NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	minorVersion := r.ReadUint16()
	if majorVersion != 1 || 3 < minorVersion {
		return &ErrUnsupportedVersion{Container: "GDEF", Got: uint32(majorVersion)<<16 | uint32(minorVersion)}
	}
	glyphClassDefOffset := r.ReadUint16()
	attachListOffset := r.ReadUint16()
	ligCaretListOffset := r.ReadUint16()
	markAttachClassDefOffset := r.ReadUint16()

	t := &gdefTable{
		HasAttachList:   attachListOffset != 0,
		HasLigCaretList: ligCaretListOffset != 0,
	}
	if glyphClassDefOffset != 0 {
		cr := parse.NewBinaryReader(b)
		cr.Seek(int64(glyphClassDefOffset), 0)
		cd, err := parseClassDef(cr)
		if err != nil {
			return err
		}
		t.GlyphClassDef = cd
	}
	if markAttachClassDefOffset != 0 {
		cr := parse.NewBinaryReader(b)
		cr.Seek(int64(markAttachClassDefOffset), 0)
		cd, err := parseClassDef(cr)
		if err != nil {
			return err
		}
		t.MarkAttachClassDef = cd
	}
	if 1 <= minorVersion && r.Len() >= 2 {
		t.MarkGlyphSetsDefOffset = uint32(r.ReadUint16())
	}
	sfnt.Gdef = t
	return nil
}

////////////////////////////////////////////////////////////////

// baseTable holds the structural content of BASE: the horizontal and
// vertical axis tables, each naming its baseline tags without resolving
// per-script baseline coordinates (those are only meaningful to a layout
// engine, not to this package).
type baseTable struct {
	HorizAxisBaselineTags []string
	VertAxisBaselineTags  []string
}

func parseBaseAxis(b []byte, offset uint16) ([]string, error) {
	if offset == 0 {
		return nil, nil
	}
	r := parse.NewBinaryReader(b)
	r.Seek(int64(offset), 0)
	if r.Len() < 4 {
		return nil, malformed("BASE", "axis table out of bounds")
	}
	baseTagListOffset := r.ReadUint16()
	_ = r.ReadUint16() // baseScriptListOffset
	if baseTagListOffset == 0 {
		return nil, nil
	}
	tr := parse.NewBinaryReader(b[offset:])
	tr.Seek(int64(baseTagListOffset), 0)
	if tr.Len() < 2 {
		return nil, malformed("BASE", "baseTagList out of bounds")
	}
	baseTagCount := tr.ReadUint16()
	if tr.Len() < 4*int64(baseTagCount) {
		return nil, malformed("BASE", "baseline tag array out of bounds")
	}
	tags := make([]string, baseTagCount)
	for i := range tags {
		tags[i] = tr.ReadString(4)
	}
	return tags, nil
}

func (sfnt *SFNT) parseBASE() error {
	b, ok := sfnt.Tables["BASE"]
	if !ok {
		return ErrMissingTable("BASE")
	} else if len(b) < 8 {
		return malformed("BASE", "table too short")
	}
	r := parse.NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	minorVersion := r.ReadUint16()
	if majorVersion != 1 || 1 < minorVersion {
		return &ErrUnsupportedVersion{Container: "BASE", Got: uint32(majorVersion)<<16 | uint32(minorVersion)}
	}
	horizAxisOffset := r.ReadUint16()
	vertAxisOffset := r.ReadUint16()

	t := &baseTable{}
	var err error
	if t.HorizAxisBaselineTags, err = parseBaseAxis(b, horizAxisOffset); err != nil {
		return err
	}
	if t.VertAxisBaselineTags, err = parseBaseAxis(b, vertAxisOffset); err != nil {
		return err
	}
	sfnt.Base = t
	return nil
}

////////////////////////////////////////////////////////////////

// jsftTable holds the structural content of JSTF: the tags of the scripts
// it declares. Language systems, extender glyphs and justification
// priorities are not parsed.
type jsftTable struct {
	Scripts []string
}

func (sfnt *SFNT) parseJSTF() error {
	b, ok := sfnt.Tables["JSTF"]
	if !ok {
		return ErrMissingTable("JSTF")
	} else if len(b) < 6 {
		return malformed("JSTF", "table too short")
	}
	r := parse.NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	minorVersion := r.ReadUint16()
	if majorVersion != 1 || minorVersion != 0 {
		return &ErrUnsupportedVersion{Container: "JSTF", Got: uint32(majorVersion)<<16 | uint32(minorVersion)}
	}
	jstfScriptCount := r.ReadUint16()
	if r.Len() < 6*int64(jstfScriptCount) {
		return malformed("JSTF", "script record array out of bounds")
	}
	t := &jsftTable{}
	for i := 0; i < int(jstfScriptCount); i++ {
		tag := r.ReadString(4)
		_ = r.ReadUint16() // jstfScriptOffset, not resolved further
		t.Scripts = append(t.Scripts, tag)
	}
	sfnt.Jsft = t
	return nil
}
