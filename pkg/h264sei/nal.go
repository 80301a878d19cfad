// Package h264sei scans an AVC length-prefixed mdat payload for SEI
// (Supplemental Enhancement Information) NAL units, reverses their
// emulation-prevention byte escaping, and decodes the SEI message
// header described in ITU-T H.264 §7.3.2.3.1. It surfaces raw SEI
// payload bytes plus type/size; interpreting a particular payload type
// (e.g. CEA-608/708) is left to the caller, per spec.md §1.
package h264sei

import (
	"encoding/binary"
	"fmt"

	"github.com/bluenviron/fmp4sei/pkg/fmp4frag"
	"github.com/bluenviron/fmp4sei/pkg/seilog"
)

// NALUnitType values relevant to this scanner. Only type 6 (SEI) is
// ever decoded further; SPS/PPS are exported for callers only, and the
// scanner skips them like any other non-SEI NAL (SPEC_FULL.md §4.4).
const (
	NALUnitTypeSEI = 6
	NALUnitTypeSPS = 7
	NALUnitTypePPS = 8
)

// SEINAL is one SEI NAL unit found inside an mdat, with the timestamps
// of the sample it was found inside.
type SEINAL struct {
	TrackID     int64
	Size        int
	RawData     []byte // NAL payload, excluding the 1-byte NAL header
	EscapedRBSP []byte // RawData with emulation-prevention bytes removed
	DTS         int64
	PTS         int64
}

// ScanNALUs walks mdat as a sequence of 4-byte-length-prefixed NAL
// units and returns every SEI NAL found, timestamped from samples
// (which must be in decode order and cover mdat via their Size fields,
// per spec.md §3's cumulative-offset invariant).
func ScanNALUs(mdat []byte, samples []fmp4frag.Sample, trackID int64) ([]SEINAL, []seilog.Record) {
	var nals []SEINAL
	var logs []seilog.Record

	matchedAny := false
	var lastDTS, lastPTS int64

	sampleEnd := make([]int, len(samples))
	running := 0
	for idx, s := range samples {
		running += int(s.Size)
		sampleEnd[idx] = running
	}

	sampleForOffset := func(offset int) (int64, int64, bool) {
		for idx, end := range sampleEnd {
			if offset < end {
				return samples[idx].DTS, samples[idx].PTS, true
			}
		}
		return 0, 0, false
	}

	i := 0
	for i+4 <= len(mdat) {
		length := int(int32(binary.BigEndian.Uint32(mdat[i : i+4])))
		if length <= 0 {
			i += 4
			continue
		}

		naluStart := i
		i += 4

		if i >= len(mdat) {
			break
		}

		header := mdat[i]
		nalType := header & 0x1F

		if nalType == NALUnitTypeSEI {
			dataEnd := i + length
			if dataEnd > len(mdat) {
				dataEnd = len(mdat)
			}

			var data []byte
			if i+1 <= dataEnd {
				data = mdat[i+1 : dataEnd]
			}

			dts, pts, ok := sampleForOffset(naluStart)
			if ok {
				matchedAny = true
				lastDTS, lastPTS = dts, pts
			} else if matchedAny {
				dts, pts = lastDTS, lastPTS
				ok = true
			}

			if !ok {
				logs = append(logs, seilog.Record{
					Level:   seilog.Warn,
					Message: fmt.Sprintf("SEI without data at offset %d for trackId %d", naluStart, trackID),
				})
			} else {
				nals = append(nals, SEINAL{
					TrackID:     trackID,
					Size:        length,
					RawData:     data,
					EscapedRBSP: DeescapeRBSP(data),
					DTS:         dts,
					PTS:         pts,
				})
			}
		}

		i = naluStart + 4 + length
	}

	return nals, logs
}

// DeescapeRBSP removes emulation-prevention bytes (the 0x03 following
// two consecutive 0x00 bytes) from an RBSP byte stream. Idempotent on
// input already free of 00 00 03 triples.
func DeescapeRBSP(data []byte) []byte {
	out := make([]byte, 0, len(data))
	zeros := 0

	for _, b := range data {
		if zeros >= 2 && b == 0x03 {
			zeros = 0
			continue
		}
		out = append(out, b)
		if b == 0x00 {
			zeros++
		} else {
			zeros = 0
		}
	}

	return out
}
