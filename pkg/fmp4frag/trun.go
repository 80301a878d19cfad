package fmp4frag

import (
	"encoding/binary"
	"fmt"
)

const (
	trunFlagDataOffsetPresent                   = 0x000001
	trunFlagFirstSampleFlagsPresent             = 0x000004
	trunFlagSampleDurationPresent               = 0x000100
	trunFlagSampleSizePresent                   = 0x000200
	trunFlagSampleFlagsPresent                  = 0x000400
	trunFlagSampleCompositionTimeOffsetsPresent = 0x000800
)

// TrunSample is one sample entry inside a trun box, before tfhd
// defaults are applied.
type TrunSample struct {
	Duration                 int64
	HasDuration              bool
	Size                     int64
	HasSize                  bool
	CompositionTimeOffset    int64
	HasCompositionTimeOffset bool
}

// Trun is a decoded track run box.
type Trun struct {
	Samples []TrunSample
}

// ParseTrun decodes a trun box payload. A truncated per-sample loop
// yields as many samples as could be fully read, with no error, per
// spec.md §4.2 failure semantics.
func ParseTrun(b []byte) (Trun, error) {
	if len(b) < 8 {
		return Trun{}, fmt.Errorf("trun: too short")
	}

	version := b[0]
	flags := uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	sampleCount := binary.BigEndian.Uint32(b[4:8])

	i := 8

	if flags&trunFlagDataOffsetPresent != 0 {
		if i+4 > len(b) {
			return Trun{}, nil
		}
		i += 4
	}
	if flags&trunFlagFirstSampleFlagsPresent != 0 {
		if i+4 > len(b) {
			return Trun{}, nil
		}
		i += 4
	}

	samples := make([]TrunSample, 0, sampleCount)

	for n := uint32(0); n < sampleCount; n++ {
		var s TrunSample

		if flags&trunFlagSampleDurationPresent != 0 {
			if i+4 > len(b) {
				break
			}
			s.Duration = int64(binary.BigEndian.Uint32(b[i : i+4]))
			s.HasDuration = true
			i += 4
		}
		if flags&trunFlagSampleSizePresent != 0 {
			if i+4 > len(b) {
				break
			}
			s.Size = int64(binary.BigEndian.Uint32(b[i : i+4]))
			s.HasSize = true
			i += 4
		}
		if flags&trunFlagSampleFlagsPresent != 0 {
			if i+4 > len(b) {
				break
			}
			i += 4
		}
		if flags&trunFlagSampleCompositionTimeOffsetsPresent != 0 {
			if i+4 > len(b) {
				break
			}
			raw := binary.BigEndian.Uint32(b[i : i+4])
			if version == 1 {
				s.CompositionTimeOffset = int64(int32(raw))
			} else {
				s.CompositionTimeOffset = int64(raw)
			}
			s.HasCompositionTimeOffset = true
			i += 4
		}

		samples = append(samples, s)
	}

	return Trun{Samples: samples}, nil
}
