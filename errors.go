package font

import "fmt"

// ErrUnknownContainer is returned when the first four bytes of the input
// match none of the recognized container magics (sfnt, OTTO, ttcf, wOFF,
// wOF2).
var ErrUnknownContainer = fmt.Errorf("unknown font container")

// ErrUnsupportedVersion is returned when a container's magic is recognized
// but its version field is not.
type ErrUnsupportedVersion struct {
	Container string
	Got       uint32
}

func (e *ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("%s: unsupported version 0x%08x", e.Container, e.Got)
}

// ErrMissingTable is returned when a table required for the requested
// operation is absent from the font.
type ErrMissingTable string

func (e ErrMissingTable) Error() string {
	return fmt.Sprintf("%s: missing table", string(e))
}

// ErrMalformedTable is returned when a table's internal structure violates
// an invariant (bad offset, inconsistent count, reserved bits set).
type ErrMalformedTable struct {
	Tag    string
	Reason string
}

func (e *ErrMalformedTable) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("malformed table: %s", e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Tag, e.Reason)
}

func malformed(tag, reason string) error {
	return &ErrMalformedTable{Tag: tag, Reason: reason}
}

// ErrCompression is returned when zlib/Brotli decompression fails or the
// decompressed size does not match the table directory's declared length.
type ErrCompression struct {
	Tag    string
	Reason string
}

func (e *ErrCompression) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("compression error: %s", e.Reason)
	}
	return fmt.Sprintf("%s: compression error: %s", e.Tag, e.Reason)
}

// ErrTransform is returned when a WOFF2 reverse transform (glyf/loca,
// hmtx) fails to reconstruct valid table data.
type ErrTransform string

func (e ErrTransform) Error() string {
	return fmt.Sprintf("transform error: %s", string(e))
}

// ErrCycleDetected is returned when a composite glyph or CFF subroutine
// graph contains a cycle.
type ErrCycleDetected struct {
	Tag     string
	GlyphID uint16
}

func (e *ErrCycleDetected) Error() string {
	return fmt.Sprintf("%s: cycle detected at glyph %d", e.Tag, e.GlyphID)
}

// ErrBudgetExceeded is returned when a bounded recursion (composite glyph
// nesting, CFF subroutine closure) exceeds its configured limit.
type ErrBudgetExceeded struct {
	Reason string
}

func (e *ErrBudgetExceeded) Error() string {
	return fmt.Sprintf("budget exceeded: %s", e.Reason)
}
