// Package isobox walks the ISO-BMFF box layout of a fragmented MP4
// segment far enough to find the boxes a caller names by path, without
// assuming anything about the container hierarchy beyond the path
// itself. A malformed box never fails the walk: it ends the scan at its
// own depth (boxes after it at that depth are not reached), while the
// enclosing levels keep scanning their own siblings.
package isobox

import "encoding/binary"

const headerMinSize = 8 // 4-byte size + 4-byte type

// Box is a byte range inside a segment, tagged with its four-character
// type code. Content borrows from the caller's buffer; it is never
// copied.
type Box struct {
	Type    string
	Offset  int // offset of Content within the buffer passed to Locate
	Content []byte
}

// Locate returns every descendant box reachable from data whose path
// (from data's own top level) matches path exactly. Each path element
// is a four-character ISO-BMFF box type.
func Locate(data []byte, path ...string) []Box {
	if len(path) == 0 {
		return nil
	}
	return locate(data, 0, path)
}

// LocateAll returns the direct children of data, regardless of type.
// Used by callers that need to pair same-depth boxes positionally
// (e.g. moof/mdat pairing), where a type-path walk doesn't apply.
func LocateAll(data []byte) []Box {
	var out []Box
	children(data, 0, func(b Box) {
		out = append(out, b)
	})
	return out
}

func locate(data []byte, baseOffset int, path []string) []Box {
	var out []Box

	children(data, baseOffset, func(b Box) {
		if b.Type != path[0] {
			return
		}
		if len(path) == 1 {
			out = append(out, b)
			return
		}
		out = append(out, locate(b.Content, b.Offset, path[1:])...)
	})

	return out
}

// children walks the immediate child boxes of data, invoking fn for
// each one successfully decoded. A malformed header aborts the scan at
// the point of the error, but never panics or propagates an error to
// the caller, per the skip-the-branch recovery spec.md §4.1 requires.
func children(data []byte, baseOffset int, fn func(Box)) {
	i := 0
	for {
		if i+headerMinSize > len(data) {
			return
		}

		declaredSize := uint64(binary.BigEndian.Uint32(data[i : i+4]))
		boxType := string(data[i+4 : i+8])
		headerSize := headerMinSize

		if declaredSize == 1 {
			if i+headerMinSize+8 > len(data) {
				return
			}
			declaredSize = binary.BigEndian.Uint64(data[i+8 : i+16])
			headerSize = headerMinSize + 8
		}

		var end int
		switch {
		case declaredSize == 0:
			// box extends to end-of-input, but only legally so if this
			// is the last box at this depth; further siblings expected
			// after a zero-size box is itself malformed.
			end = len(data)
		case declaredSize < uint64(headerSize):
			// declared size doesn't even cover its own header.
			return
		default:
			end = i + int(declaredSize)
			if end > len(data) || end < 0 {
				return
			}
		}

		fn(Box{
			Type:    boxType,
			Offset:  baseOffset + i + headerSize,
			Content: data[i+headerSize : end],
		})

		if declaredSize == 0 {
			return
		}
		i = end
	}
}
