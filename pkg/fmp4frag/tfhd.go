package fmp4frag

import (
	"encoding/binary"
	"fmt"
)

const (
	tfhdFlagBaseDataOffsetPresent         = 0x000001
	tfhdFlagSampleDescriptionIndexPresent = 0x000002
	tfhdFlagDefaultSampleDurationPresent  = 0x000008
	tfhdFlagDefaultSampleSizePresent      = 0x000010
	tfhdFlagDefaultSampleFlagsPresent     = 0x000020
)

// Tfhd is a decoded track fragment header box.
type Tfhd struct {
	TrackID                int64
	DefaultSampleDuration  int64
	DefaultSampleSize      int64
	DefaultSampleFlags     int64
	HasDefaultSampleDur    bool
	HasDefaultSampleSize   bool
	HasDefaultSampleFlags  bool
}

// ParseTfhd decodes a tfhd box payload (version/flags word onward, i.e.
// the box Content as returned by isobox.Locate).
func ParseTfhd(b []byte) (Tfhd, error) {
	if len(b) < 8 {
		return Tfhd{}, fmt.Errorf("tfhd: too short")
	}

	flags := uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	trackID := binary.BigEndian.Uint32(b[4:8])

	tfhd := Tfhd{TrackID: int64(trackID)}
	i := 8

	if flags&tfhdFlagBaseDataOffsetPresent != 0 {
		if i+8 > len(b) {
			return tfhd, nil
		}
		i += 8
	}
	if flags&tfhdFlagSampleDescriptionIndexPresent != 0 {
		if i+4 > len(b) {
			return tfhd, nil
		}
		i += 4
	}
	if flags&tfhdFlagDefaultSampleDurationPresent != 0 {
		if i+4 > len(b) {
			return tfhd, nil
		}
		tfhd.DefaultSampleDuration = int64(binary.BigEndian.Uint32(b[i : i+4]))
		tfhd.HasDefaultSampleDur = true
		i += 4
	}
	if flags&tfhdFlagDefaultSampleSizePresent != 0 {
		if i+4 > len(b) {
			return tfhd, nil
		}
		tfhd.DefaultSampleSize = int64(binary.BigEndian.Uint32(b[i : i+4]))
		tfhd.HasDefaultSampleSize = true
		i += 4
	}
	if flags&tfhdFlagDefaultSampleFlagsPresent != 0 {
		if i+4 > len(b) {
			return tfhd, nil
		}
		tfhd.DefaultSampleFlags = int64(binary.BigEndian.Uint32(b[i : i+4]))
		tfhd.HasDefaultSampleFlags = true
		i += 4
	}

	return tfhd, nil
}
