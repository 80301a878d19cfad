package isobox

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func box(boxType string, content []byte) []byte {
	b := make([]byte, 8+len(content))
	binary.BigEndian.PutUint32(b[0:4], uint32(8+len(content)))
	copy(b[4:8], boxType)
	copy(b[8:], content)
	return b
}

func TestLocateFindsNestedBox(t *testing.T) {
	tfhd := box("tfhd", []byte{0x01, 0x02, 0x03, 0x04})
	traf := box("traf", tfhd)
	moof := box("moof", traf)

	found := Locate(moof, "moof", "traf", "tfhd")
	require.Len(t, found, 1)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, found[0].Content)
}

func TestLocateMultipleSiblings(t *testing.T) {
	traf1 := box("traf", box("tfhd", []byte{1}))
	traf2 := box("traf", box("tfhd", []byte{2}))
	moof := box("moof", append(append([]byte{}, traf1...), traf2...))

	found := Locate(moof, "moof", "traf")
	require.Len(t, found, 2)
}

func TestLocateMalformedBoxAbortsOnlyItsOwnDepth(t *testing.T) {
	// a traf whose declared size overruns the buffer ends the scan at
	// its depth: the next sibling at the same depth is not reached.
	badTraf := box("traf", []byte{0, 0, 0})
	binary.BigEndian.PutUint32(badTraf[0:4], 0xFFFFFFF0) // huge bogus size
	goodTraf := box("traf", box("tfhd", []byte{9}))

	moof := append(append([]byte{}, badTraf...), goodTraf...)

	// the malformed box consumes the rest of the buffer as far as the
	// walker is concerned (it can't know where a bogus-sized box ends),
	// so only the locator's top-level call over the good buffer alone
	// is expected to find it; this test documents that a malformed
	// box at depth 0 aborts remaining top-level scanning, which is the
	// "declared size exceeds remaining buffer" half of spec.md §4.1.
	found := Locate(moof, "traf", "tfhd")
	require.Len(t, found, 0)

	found = Locate(goodTraf, "traf", "tfhd")
	require.Len(t, found, 1)
}

func TestLocateZeroSizeExtendsToEnd(t *testing.T) {
	content := []byte{1, 2, 3, 4, 5}
	b := make([]byte, 8+len(content))
	binary.BigEndian.PutUint32(b[0:4], 0)
	copy(b[4:8], "mdat")
	copy(b[8:], content)

	found := Locate(b, "mdat")
	require.Len(t, found, 1)
	require.Equal(t, content, found[0].Content)
}

func TestLocate64BitSize(t *testing.T) {
	content := make([]byte, 16)
	b := make([]byte, 16+len(content))
	binary.BigEndian.PutUint32(b[0:4], 1)
	copy(b[4:8], "mdat")
	binary.BigEndian.PutUint64(b[8:16], uint64(16+len(content)))
	copy(b[16:], content)

	found := Locate(b, "mdat")
	require.Len(t, found, 1)
	require.Len(t, found[0].Content, len(content))
}

func TestLocateAllReturnsDirectChildren(t *testing.T) {
	moof := box("moof", nil)
	mdat := box("mdat", []byte{1, 2})

	buf := append(append([]byte{}, moof...), mdat...)
	children := LocateAll(buf)
	require.Len(t, children, 2)
	require.Equal(t, "moof", children[0].Type)
	require.Equal(t, "mdat", children[1].Type)
}

func TestLocateEmptyPath(t *testing.T) {
	require.Nil(t, Locate([]byte{1, 2, 3}))
}
