package fmp4frag

import (
	"encoding/binary"
	"fmt"
)

// ParseTfdt decodes a tfdt box payload and returns the fragment's base
// media decode time. A version-0 box uses a 32-bit field, version 1 a
// 64-bit one; both are widened to int64 per SPEC_FULL.md §3.
func ParseTfdt(b []byte) (int64, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("tfdt: too short")
	}

	version := b[0]

	switch version {
	case 1:
		if len(b) < 12 {
			return 0, fmt.Errorf("tfdt: too short for version 1")
		}
		return int64(binary.BigEndian.Uint64(b[4:12])), nil
	default:
		if len(b) < 8 {
			return 0, fmt.Errorf("tfdt: too short for version 0")
		}
		return int64(binary.BigEndian.Uint32(b[4:8])), nil
	}
}
